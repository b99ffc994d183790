package ipp

import (
	"bytes"
	"testing"
)

func newMessage(op uint16, id uint32, groups ...Group) *Message {
	return &Message{VersionMajor: 2, VersionMinor: 0, OpOrStatus: op, RequestID: id, Groups: groups}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	op := NewOperationGroup("utf-8", "en")
	printerGroup := Group{Tag: TagPrinterGroup}
	printerGroup.Add("printer-name", StrValue(TagNameWithoutLang, "HP"))
	printerGroup.AddMulti("operations-supported",
		IntValue(TagEnum, int32(OpPrintJob)),
		IntValue(TagEnum, int32(OpGetPrinterAttributes)),
		IntValue(TagEnum, int32(OpValidateJob)),
	)

	msg := newMessage(OpGetPrinterAttributes, 42, op, printerGroup)
	wire := Encode(msg)

	got, err := Decode(wire)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if got.VersionMajor != 2 || got.VersionMinor != 0 {
		t.Fatalf("version = %d.%d, want 2.0", got.VersionMajor, got.VersionMinor)
	}
	if got.OpOrStatus != OpGetPrinterAttributes {
		t.Fatalf("op = %#x, want %#x", got.OpOrStatus, OpGetPrinterAttributes)
	}
	if got.RequestID != 42 {
		t.Fatalf("request_id = %d, want 42", got.RequestID)
	}

	opGroup := got.Group(TagOperationGroup)
	if opGroup == nil {
		t.Fatal("missing operation group")
	}
	if len(opGroup.Attributes) < 2 {
		t.Fatalf("operation group has %d attributes, want >= 2", len(opGroup.Attributes))
	}
	if opGroup.Attributes[0].Name != "attributes-charset" || opGroup.Attributes[0].Values[0].Str != "utf-8" {
		t.Errorf("first operation attribute = %+v, want attributes-charset=utf-8", opGroup.Attributes[0])
	}
	if opGroup.Attributes[1].Name != "attributes-natural-language" || opGroup.Attributes[1].Values[0].Str != "en" {
		t.Errorf("second operation attribute = %+v, want attributes-natural-language=en", opGroup.Attributes[1])
	}

	pg := got.Group(TagPrinterGroup)
	if pg == nil {
		t.Fatal("missing printer group")
	}
	name, ok := pg.Get("printer-name")
	if !ok || name.Str != "HP" {
		t.Errorf("printer-name = %+v, want HP", name)
	}

	var ops []int32
	for _, a := range pg.Attributes {
		if a.Name == "operations-supported" {
			for _, v := range a.Values {
				ops = append(ops, v.Int)
			}
		}
	}
	want := []int32{int32(OpPrintJob), int32(OpGetPrinterAttributes), int32(OpValidateJob)}
	if len(ops) != len(want) {
		t.Fatalf("operations-supported = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("operations-supported[%d] = %d, want %d", i, ops[i], want[i])
		}
	}
}

func TestDecodeShortHeader(t *testing.T) {
	for n := 0; n < HeaderLen; n++ {
		b := make([]byte, n)
		_, err := Decode(b)
		var perr *ParseError
		if err == nil {
			t.Fatalf("len %d: expected error, got nil", n)
		}
		if !isParseErrorKind(err, &perr, KindShort) {
			t.Errorf("len %d: error = %v, want Kind=%s", n, err, KindShort)
		}
	}
}

func TestDecodeBadTag(t *testing.T) {
	b := append(header(OpGetPrinterAttributes, 1), 0x99)
	_, err := Decode(b)
	var perr *ParseError
	if !isParseErrorKind(err, &perr, KindBadTag) {
		t.Fatalf("error = %v, want Kind=%s", err, KindBadTag)
	}
}

func TestDecodeTruncated(t *testing.T) {
	b := header(OpGetPrinterAttributes, 1)
	b = append(b, byte(TagOperationGroup))
	b = append(b, byte(TagCharset))
	b = append(b, 0, 20) // name length says 20 bytes but none follow
	_, err := Decode(b)
	var perr *ParseError
	if !isParseErrorKind(err, &perr, KindTruncated) {
		t.Fatalf("error = %v, want Kind=%s", err, KindTruncated)
	}
}

func TestDecodeBadValue(t *testing.T) {
	b := header(OpGetPrinterAttributes, 1)
	b = append(b, byte(TagOperationGroup))
	b = append(b, byte(TagBoolean))
	b = append(b, 0, 4, 'n', 'a', 'm', 'e')
	b = append(b, 0, 2, 0, 0) // boolean value length 2, not 1
	_, err := Decode(b)
	var perr *ParseError
	if !isParseErrorKind(err, &perr, KindBadValue) {
		t.Fatalf("error = %v, want Kind=%s", err, KindBadValue)
	}
}

func TestDecodePreservesUnknownTagAsOctetString(t *testing.T) {
	b := header(OpGetPrinterAttributes, 1)
	b = append(b, byte(TagOperationGroup))
	b = append(b, 0x7F) // not in the known value-tag set
	b = append(b, 0, 4, 'n', 'a', 'm', 'e')
	b = append(b, 0, 3, 'f', 'o', 'o')
	b = append(b, byte(TagEndGroup))

	msg, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode() error = %v, want success (unknown tags pass through)", err)
	}
	og := msg.Group(TagOperationGroup)
	v, ok := og.Get("name")
	if !ok {
		t.Fatal("missing attribute 'name'")
	}
	if v.Tag != TagOctetString || v.Str != "foo" {
		t.Errorf("value = %+v, want OctetString(foo)", v)
	}
}

func TestDecodeMultiValueZeroLengthName(t *testing.T) {
	b := header(OpGetPrinterAttributes, 1)
	b = append(b, byte(TagPrinterGroup))
	b = append(b, byte(TagKeyword))
	b = append(b, 0, 19, 'd', 'o', 'c', 'u', 'm', 'e', 'n', 't', '-', 'f', 'o', 'r', 'm', 'a', 't', '-', 's', 'u', 'p')
	b = append(b, 0, 3, 'p', 'd', 'f')
	b = append(b, byte(TagKeyword))
	b = append(b, 0, 0) // zero-length name: continuation
	b = append(b, 0, 3, 'j', 'p', 'g')
	b = append(b, byte(TagEndGroup))

	msg, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	pg := msg.Group(TagPrinterGroup)
	if len(pg.Attributes) != 1 {
		t.Fatalf("got %d attributes, want 1 (multi-valued folded)", len(pg.Attributes))
	}
	if len(pg.Attributes[0].Values) != 2 {
		t.Fatalf("got %d values, want 2", len(pg.Attributes[0].Values))
	}
	if pg.Attributes[0].Values[0].Str != "pdf" || pg.Attributes[0].Values[1].Str != "jpg" {
		t.Errorf("values = %+v, want [pdf jpg]", pg.Attributes[0].Values)
	}
}

func isParseErrorKind(err error, target **ParseError, kind string) bool {
	pe, ok := err.(*ParseError)
	if !ok {
		return false
	}
	*target = pe
	return pe.Kind == kind
}

func header(op uint16, id uint32) []byte {
	var b bytes.Buffer
	b.WriteByte(2)
	b.WriteByte(0)
	b.WriteByte(byte(op >> 8))
	b.WriteByte(byte(op))
	b.WriteByte(byte(id >> 24))
	b.WriteByte(byte(id >> 16))
	b.WriteByte(byte(id >> 8))
	b.WriteByte(byte(id))
	return b.Bytes()
}
