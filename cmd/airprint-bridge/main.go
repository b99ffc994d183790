package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/cyra/airprint-everywhere/internal/daemon"
	"github.com/cyra/airprint-everywhere/internal/facade"
	"github.com/cyra/airprint-everywhere/internal/i18n"
	"github.com/cyra/airprint-everywhere/internal/lifecycle"
	"github.com/cyra/airprint-everywhere/internal/netutil"
	"github.com/cyra/airprint-everywhere/internal/printerdir"
	"github.com/cyra/airprint-everywhere/internal/sysprint"
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "unknown"
)

// Config is the merged, post-flag-override runtime configuration.
type Config struct {
	CUPSHost     string
	CUPSPort     int
	IPPAddr      string
	Hostname     string
	CatalogPath  string
	PollInterval time.Duration
	SharedOnly   bool
	ExcludeList  []string
	LogLevel     string
	LogFormat    string
}

// DefaultConfig mirrors the teacher's DefaultConfig.
func DefaultConfig() Config {
	return Config{
		CUPSHost:     "localhost",
		CUPSPort:     631,
		IPPAddr:      ":631",
		Hostname:     "",
		PollInterval: 30 * time.Second,
		SharedOnly:   true,
	}
}

// ConfigFile represents the YAML configuration file structure
type ConfigFile struct {
	CUPS struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"cups"`

	IPP struct {
		Addr     string `yaml:"addr"`
		Hostname string `yaml:"hostname"`
	} `yaml:"ipp"`

	Monitor struct {
		PollInterval string `yaml:"poll_interval"`
	} `yaml:"monitor"`

	Printers struct {
		SharedOnly bool     `yaml:"shared_only"`
		Exclude    []string `yaml:"exclude"`
	} `yaml:"printers"`

	I18n struct {
		CatalogPath string `yaml:"catalog_path"`
	} `yaml:"i18n"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

func main() {
	var (
		configPath   = flag.String("config", "/etc/airprint-bridge/airprint-bridge.yaml", "path to config file")
		cupsHost     = flag.String("cups-host", "", "CUPS server host (default: localhost)")
		cupsPort     = flag.Int("cups-port", 0, "CUPS server port (default: 631)")
		ippAddr      = flag.String("ipp-addr", "", "IPP listen address (default: :631)")
		hostname     = flag.String("hostname", "", "advertised hostname (default: auto-detected)")
		pollInterval = flag.String("poll-interval", "", "printer polling interval (default: 30s)")
		sharedOnly   = flag.Bool("shared-only", true, "only share printers that are online")
		exclude      = flag.String("exclude", "", "comma-separated printer ids to never share")
		catalogPath  = flag.String("catalog", "", "path to an i18n message catalog (YAML)")
		logLevel     = flag.String("log-level", "", "log level: debug, info, warn, error")
		logFormat    = flag.String("log-format", "", "log format: json, console")
		showVersion  = flag.Bool("version", false, "show version and exit")
		listPrinters = flag.Bool("list-printers", false, "list host-known printers and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("airprint-bridge version %s (commit %s)\n", version, commit)
		os.Exit(0)
	}

	config := DefaultConfig()

	if cfg, err := loadConfig(*configPath); err == nil {
		applyFileConfig(&config, cfg)
	} else if !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config file: %v\n", err)
	}

	if *cupsHost != "" {
		config.CUPSHost = *cupsHost
	}
	if *cupsPort != 0 {
		config.CUPSPort = *cupsPort
	}
	if *ippAddr != "" {
		config.IPPAddr = *ippAddr
	}
	if *hostname != "" {
		config.Hostname = *hostname
	}
	if *pollInterval != "" {
		if d, err := time.ParseDuration(*pollInterval); err == nil {
			config.PollInterval = d
		}
	}
	config.SharedOnly = *sharedOnly
	if *exclude != "" {
		config.ExcludeList = append(config.ExcludeList, strings.Split(*exclude, ",")...)
	}
	if *catalogPath != "" {
		config.CatalogPath = *catalogPath
	}
	if *logLevel != "" {
		config.LogLevel = *logLevel
	}
	if *logFormat != "" {
		config.LogFormat = *logFormat
	}

	log := newLogger(config)

	dir := printerdir.NewDirectory()

	if *listPrinters {
		listAvailablePrinters(dir)
		os.Exit(0)
	}

	rawHostname := config.Hostname
	if rawHostname == "" {
		rawHostname = "airprint-everywhere"
		if h, err := os.Hostname(); err == nil && h != "" {
			rawHostname = h
		}
	}
	if !strings.HasSuffix(strings.TrimSuffix(rawHostname, "."), ".local") {
		rawHostname += ".local"
	}
	normalizedHostname, err := netutil.NormalizeHostname(rawHostname)
	if err != nil {
		log.Fatal().Err(err).Str("hostname", rawHostname).Msg("invalid hostname")
	}

	sys := sysprint.NewCUPSPrinter(config.CUPSHost, config.CUPSPort, log)
	coord := lifecycle.New(config.IPPAddr, listenPort(config.IPPAddr), normalizedHostname, sys, log)

	translator := i18n.New()
	if config.CatalogPath != "" {
		data, err := os.ReadFile(config.CatalogPath)
		if err != nil {
			log.Error().Err(err).Str("path", config.CatalogPath).Msg("failed to read message catalog")
		} else if err := translator.LoadCatalog(data); err != nil {
			log.Error().Err(err).Str("path", config.CatalogPath).Msg("failed to parse message catalog")
		}
	}

	f := facade.New(dir, coord, translator)

	d := daemon.New(daemon.Config{
		PollInterval: config.PollInterval,
		SharedOnly:   config.SharedOnly,
		ExcludeList:  config.ExcludeList,
	}, f, log)

	if err := d.Run(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("daemon failed")
	}
}

func listenPort(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 631
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port == 0 {
		return 631
	}
	return port
}

func newLogger(config Config) zerolog.Logger {
	level := zerolog.InfoLevel
	if config.LogLevel != "" {
		level = parseLogLevel(config.LogLevel)
	}
	zerolog.SetGlobalLevel(level)

	if config.LogFormat == "json" {
		return zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

func loadConfig(path string) (*ConfigFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg ConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}

func applyFileConfig(config *Config, cfg *ConfigFile) {
	if cfg.CUPS.Host != "" {
		config.CUPSHost = cfg.CUPS.Host
	}
	if cfg.CUPS.Port != 0 {
		config.CUPSPort = cfg.CUPS.Port
	}
	if cfg.IPP.Addr != "" {
		config.IPPAddr = cfg.IPP.Addr
	}
	if cfg.IPP.Hostname != "" {
		config.Hostname = cfg.IPP.Hostname
	}
	if cfg.Monitor.PollInterval != "" {
		if d, err := time.ParseDuration(cfg.Monitor.PollInterval); err == nil {
			config.PollInterval = d
		}
	}
	config.SharedOnly = cfg.Printers.SharedOnly
	config.ExcludeList = cfg.Printers.Exclude
	if cfg.I18n.CatalogPath != "" {
		config.CatalogPath = cfg.I18n.CatalogPath
	}
	if cfg.Log.Level != "" {
		config.LogLevel = cfg.Log.Level
	}
	if cfg.Log.Format != "" {
		config.LogFormat = cfg.Log.Format
	}
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func listAvailablePrinters(dir printerdir.Directory) {
	printers := dir.Detect()
	if len(printers) == 0 {
		fmt.Println("No printers found")
		return
	}

	fmt.Println("Available printers:")
	fmt.Println()
	for _, p := range printers {
		fmt.Printf("  %s  [%s]  id=%s\n", p.Name, p.Status, p.ID)
	}
}
