// Package config loads console settings from defaults, a TOML file, a .env
// file, LOTTERYDESK_ environment variables and command-line flags, in that
// order of increasing precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix prefixes every environment variable the console reads
const EnvPrefix = "LOTTERYDESK_"

// Defaults
const (
	DefaultServiceURL     = "http://localhost:8080"
	DefaultAddr           = ":3000"
	DefaultDBPath         = "lotterydesk.db"
	DefaultEnvFile        = ".env"
	DefaultOperator       = "System"
	DefaultSessionID      = "default"
	DefaultLogLevel       = "info"
	DefaultRequestTimeout = 30 * time.Second
	DefaultReconnectDelay = 5 * time.Second
	DefaultHeartbeat      = 4 * time.Second
	DefaultChatLimit      = 20
)

// Config holds every console setting
type Config struct {
	ServiceURL       string        `env:"SERVICE_URL"`
	Addr             string        `env:"ADDR"`
	DBPath           string        `env:"DB"`
	OperatorPassword string        `env:"OPERATOR_PASSWORD"`
	Operator         string        `env:"OPERATOR"`
	SessionID        string        `env:"SESSION_ID"`
	LogLevel         string        `env:"LOG_LEVEL"`
	RequestTimeout   time.Duration `env:"REQUEST_TIMEOUT"`
	ReconnectDelay   time.Duration `env:"RECONNECT_DELAY"`
	Heartbeat        time.Duration `env:"HEARTBEAT"`
	ChatLimit        int           `env:"CHAT_LIMIT"`
	NoKeyboard       bool          `env:"NO_KEYBOARD"`
	NoMessaging      bool          `env:"NO_MESSAGING"`

	// ConfigFile and EnvFile are where the values above were read from
	ConfigFile string `env:"CONFIG"`
	EnvFile    string `env:"ENV_FILE"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		ServiceURL:     DefaultServiceURL,
		Addr:           DefaultAddr,
		DBPath:         DefaultDBPath,
		Operator:       DefaultOperator,
		SessionID:      DefaultSessionID,
		LogLevel:       DefaultLogLevel,
		RequestTimeout: DefaultRequestTimeout,
		ReconnectDelay: DefaultReconnectDelay,
		Heartbeat:      DefaultHeartbeat,
		ChatLimit:      DefaultChatLimit,
		EnvFile:        DefaultEnvFile,
	}
}

// fileConfig mirrors Config in the TOML file. Durations are strings like "30s".
type fileConfig struct {
	ServiceURL       *string `toml:"service_url"`
	Addr             *string `toml:"addr"`
	DBPath           *string `toml:"db"`
	OperatorPassword *string `toml:"operator_password"`
	Operator         *string `toml:"operator"`
	SessionID        *string `toml:"session_id"`
	LogLevel         *string `toml:"log_level"`
	RequestTimeout   *string `toml:"request_timeout"`
	ReconnectDelay   *string `toml:"reconnect_delay"`
	Heartbeat        *string `toml:"heartbeat"`
	ChatLimit        *int    `toml:"chat_limit"`
	NoKeyboard       *bool   `toml:"no_keyboard"`
	NoMessaging      *bool   `toml:"no_messaging"`
}

// Load builds the configuration for args (without the program name).
// environ supplies environment variables; nil means the process environment.
// It returns the configuration and the arguments left after the flags.
func Load(args []string, environ map[string]string, output io.Writer) (*Config, []string, error) {
	if environ == nil {
		environ = env.ToMap(os.Environ())
	}

	// First pass only discovers -config and -env.
	probe := Default()
	if _, err := parseFlags(&probe, args, io.Discard); err != nil {
		// Parse again so the message and usage reach output.
		_, err = parseFlags(&probe, args, output)
		return nil, nil, err
	}

	cfg := Default()

	configFile := probe.ConfigFile
	if configFile == "" {
		configFile = environ[EnvPrefix+"CONFIG"]
	}
	if configFile != "" {
		if err := LoadFile(&cfg, configFile); err != nil {
			return nil, nil, err
		}
		cfg.ConfigFile = configFile
	}

	envFile := probe.EnvFile
	if v, ok := environ[EnvPrefix+"ENV_FILE"]; ok && !flagWasSet(args, "env") {
		envFile = v
	}
	merged, err := mergeDotEnv(environ, envFile, envFile != DefaultEnvFile)
	if err != nil {
		return nil, nil, err
	}

	if err := ApplyEnv(&cfg, merged); err != nil {
		return nil, nil, err
	}

	rest, err := parseFlags(&cfg, args, output)
	if err != nil {
		return nil, nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return &cfg, rest, nil
}

// LoadFile overlays the TOML file at path onto cfg
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&cfg.ServiceURL, fc.ServiceURL)
	setString(&cfg.Addr, fc.Addr)
	setString(&cfg.DBPath, fc.DBPath)
	setString(&cfg.OperatorPassword, fc.OperatorPassword)
	setString(&cfg.Operator, fc.Operator)
	setString(&cfg.SessionID, fc.SessionID)
	setString(&cfg.LogLevel, fc.LogLevel)

	durations := []struct {
		name string
		src  *string
		dst  *time.Duration
	}{
		{"request_timeout", fc.RequestTimeout, &cfg.RequestTimeout},
		{"reconnect_delay", fc.ReconnectDelay, &cfg.ReconnectDelay},
		{"heartbeat", fc.Heartbeat, &cfg.Heartbeat},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		v, err := time.ParseDuration(*d.src)
		if err != nil {
			return fmt.Errorf("parse config %s: %s: %w", path, d.name, err)
		}
		*d.dst = v
	}

	if fc.ChatLimit != nil {
		cfg.ChatLimit = *fc.ChatLimit
	}
	if fc.NoKeyboard != nil {
		cfg.NoKeyboard = *fc.NoKeyboard
	}
	if fc.NoMessaging != nil {
		cfg.NoMessaging = *fc.NoMessaging
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// mergeDotEnv adds variables from the .env file at path to environ without
// overriding ones already set. A missing file is only an error when required.
func mergeDotEnv(environ map[string]string, path string, required bool) (map[string]string, error) {
	merged := make(map[string]string, len(environ))
	for k, v := range environ {
		merged[k] = v
	}
	if path == "" {
		return merged, nil
	}

	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return merged, nil
		}
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}
	for k, v := range values {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	return merged, nil
}

// ApplyEnv overlays LOTTERYDESK_ variables from environ onto cfg
func ApplyEnv(cfg *Config, environ map[string]string) error {
	if err := env.ParseWithOptions(cfg, env.Options{
		Prefix:      EnvPrefix,
		Environment: environ,
	}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func parseFlags(cfg *Config, args []string, output io.Writer) ([]string, error) {
	fs := flag.NewFlagSet("lotterydesk", flag.ContinueOnError)
	fs.SetOutput(output)
	cfg.RegisterFlags(fs)
	fs.Usage = func() { usage(fs) }
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return fs.Args(), nil
}

func flagWasSet(args []string, name string) bool {
	for _, a := range args {
		if a == "--" {
			return false
		}
		a = strings.TrimLeft(a, "-")
		if a == name || strings.HasPrefix(a, name+"=") {
			return true
		}
	}
	return false
}

// RegisterFlags binds cfg's fields to fs, using the current values as defaults
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "TOML config file")
	fs.StringVar(&c.EnvFile, "env", c.EnvFile, ".env file with LOTTERYDESK_ variables")
	fs.StringVar(&c.ServiceURL, "service", c.ServiceURL, "Lottery service base URL")
	fs.StringVar(&c.Addr, "addr", c.Addr, "Console listen address")
	fs.StringVar(&c.DBPath, "db", c.DBPath, "SQLite journal path")
	fs.StringVar(&c.OperatorPassword, "operatorpw", c.OperatorPassword, "Operator password (generated and stored if not set)")
	fs.StringVar(&c.Operator, "operator", c.Operator, "Operator name recorded with draws")
	fs.StringVar(&c.SessionID, "session", c.SessionID, "Voice command session id")
	fs.StringVar(&c.LogLevel, "loglevel", c.LogLevel, "Log level: debug, info, warn, error")
	fs.DurationVar(&c.RequestTimeout, "timeout", c.RequestTimeout, "Lottery service request timeout")
	fs.DurationVar(&c.ReconnectDelay, "reconnect", c.ReconnectDelay, "Delay between messaging reconnect attempts")
	fs.DurationVar(&c.Heartbeat, "heartbeat", c.Heartbeat, "STOMP heart-beat interval")
	fs.IntVar(&c.ChatLimit, "chatlimit", c.ChatLimit, "Chat messages kept in the log")
	fs.BoolVar(&c.NoKeyboard, "nokeyboard", c.NoKeyboard, "Disable keyboard shortcuts")
	fs.BoolVar(&c.NoMessaging, "nomessaging", c.NoMessaging, "Do not connect the voice command channel")
}

// Validate checks the loaded configuration
func (c *Config) Validate() error {
	c.ServiceURL = strings.TrimRight(strings.TrimSpace(c.ServiceURL), "/")
	if c.ServiceURL == "" {
		return fmt.Errorf("config: service URL is required")
	}
	parsed, err := url.Parse(c.ServiceURL)
	if err != nil {
		return fmt.Errorf("config: invalid service URL %q: %w", c.ServiceURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("config: invalid service URL %q: scheme must be http or https", c.ServiceURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("config: invalid service URL %q: missing host", c.ServiceURL)
	}

	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("config: listen address is required")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("config: request timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("config: reconnect delay must be positive, got %s", c.ReconnectDelay)
	}
	if c.Heartbeat < 0 {
		return fmt.Errorf("config: heart-beat must not be negative, got %s", c.Heartbeat)
	}
	if c.ChatLimit < 1 {
		return fmt.Errorf("config: chat limit must be at least 1, got %d", c.ChatLimit)
	}
	if strings.TrimSpace(c.Operator) == "" {
		c.Operator = DefaultOperator
	}
	if strings.TrimSpace(c.SessionID) == "" {
		c.SessionID = DefaultSessionID
	}
	return nil
}

func usage(fs *flag.FlagSet) {
	out := fs.Output()
	fmt.Fprintf(out, `LotteryDesk - lottery drawing console

Usage:
  lotterydesk [options] [command] [arguments]

Commands:
  serve                          Run the console server (default)
  participants [status]          List participants
  participant-add <name> [employee-id] [department]
  participant-update <id> <name> [employee-id] [department]
  participant-delete <id>...     Delete participants
  import <file.xlsx>             Import participants from a spreadsheet
  prizes [status]                List prizes
  prize-add <name> <level> <count> [description]
  prize-update <id> <name> <level> <count> [description]
  prize-delete <id>              Delete a prize
  next-prize                     Show the next prize to draw
  stats                          Participant and prize statistics
  draw <prize-id>                Draw winners for a prize
  cancel-win <participant-id>    Revoke a win
  reset                          Reset all draws
  records [-all] [-prize id] [-participant id]
  say <text>                     Send a voice command and print the reply
  watch                          Print pushed draw results until interrupted
  health                         Check the lottery service
  info                           Show lottery service information
  version                        Show version

Options:
`)
	fs.PrintDefaults()
	fmt.Fprintf(out, `
Environment variables use the %s prefix, e.g. %sSERVICE_URL.
`, EnvPrefix, EnvPrefix)
}
