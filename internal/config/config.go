// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"serial-terminal/internal/model"
)

// Config represents the application configuration
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Security SecurityConfig `mapstructure:"security"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Serial   SerialConfig   `mapstructure:"serial"`
	Network  NetworkConfig  `mapstructure:"network"`
	Terminal TerminalConfig `mapstructure:"terminal"`
	Console  ConsoleConfig  `mapstructure:"console"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// ServerConfig represents the HTTP/WebSocket consumer API
type ServerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	TLS          TLSConfig     `mapstructure:"tls"`
}

// TLSConfig represents TLS configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// SecurityConfig represents browser access policy for the API
type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// SerialConfig represents the default serial link
type SerialConfig struct {
	Port        string        `mapstructure:"port"`
	BaudRate    int           `mapstructure:"baud_rate"`
	DataBits    int           `mapstructure:"data_bits"`
	StopBits    int           `mapstructure:"stop_bits"`
	Parity      string        `mapstructure:"parity"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	Charset     string        `mapstructure:"charset"`
	AutoOpen    bool          `mapstructure:"auto_open"`

	// PortPatterns filters discovery results, e.g. "/dev/ttyUSB*"
	PortPatterns []string `mapstructure:"port_patterns"`
}

// NetworkConfig represents tcp:// and tls:// serial bridge settings
type NetworkConfig struct {
	DialTimeout        time.Duration `mapstructure:"dial_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	KeepAlive          time.Duration `mapstructure:"keep_alive"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`

	// Bridges are listed by port discovery when they accept a connection
	Bridges []string `mapstructure:"bridges"`
}

// TerminalConfig represents display and drain behaviour
type TerminalConfig struct {
	DisplayMode   string        `mapstructure:"display_mode"`
	Timestamps    bool          `mapstructure:"timestamps"`
	DrainInterval time.Duration `mapstructure:"drain_interval"`
	MaxRecords    int           `mapstructure:"max_records"`
}

// ConsoleConfig represents the stdin/stdout operator console
type ConsoleConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	LineEnding string `mapstructure:"line_ending"`
}

// Line endings the console can append to Ascii sends
var lineEndings = map[string]string{
	"none": "",
	"lf":   "\n",
	"cr":   "\r",
	"crlf": "\r\n",
}

// RegisterFlags adds the command line overrides understood by Load
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to config file")
	fs.String("port", "", "serial port to open at startup")
	fs.Int("baud", 0, "baud rate")
	fs.String("listen", "", "HTTP listen port")
	fs.Bool("no-console", false, "disable the stdin console")
	fs.Bool("no-server", false, "disable the HTTP/WebSocket API")
	fs.Bool("hex", false, "start in hex display mode")
}

// Load loads configuration from file, environment variables and flags.
// fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("SERIALTERM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	configFile := ""
	if fs != nil {
		if err := bindFlags(v, fs); err != nil {
			return nil, err
		}
		configFile, _ = fs.GetString("config")
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("./internal/config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if fs != nil {
		applyToggleFlags(&config, fs)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	bindings := map[string]string{
		"serial.port":      "port",
		"serial.baud_rate": "baud",
		"server.port":      "listen",
	}
	for key, name := range bindings {
		flag := fs.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// applyToggleFlags handles negative flags, which only override when set
func applyToggleFlags(config *Config, fs *pflag.FlagSet) {
	if fs.Changed("no-console") {
		if off, _ := fs.GetBool("no-console"); off {
			config.Console.Enabled = false
		}
	}
	if fs.Changed("no-server") {
		if off, _ := fs.GetBool("no-server"); off {
			config.Server.Enabled = false
		}
	}
	if fs.Changed("hex") {
		if hex, _ := fs.GetBool("hex"); hex {
			config.Terminal.DisplayMode = string(model.DisplayModeHex)
		}
	}
	if fs.Changed("port") {
		config.Serial.AutoOpen = true
	}
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "serialterm")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)

	// Server defaults
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", "8085")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.tls.enabled", false)

	// Security defaults
	v.SetDefault("security.allowed_origins", []string{})

	// Logging defaults; stdout belongs to the console
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Serial defaults
	v.SetDefault("serial.port", "")
	v.SetDefault("serial.baud_rate", model.DefaultBaudRate)
	v.SetDefault("serial.data_bits", 8)
	v.SetDefault("serial.stop_bits", 1)
	v.SetDefault("serial.parity", model.ParityNone)
	v.SetDefault("serial.read_timeout", "1s")
	v.SetDefault("serial.charset", "utf-8")
	v.SetDefault("serial.auto_open", false)
	v.SetDefault("serial.port_patterns", []string{})

	// Network bridge defaults
	v.SetDefault("network.dial_timeout", "5s")
	v.SetDefault("network.write_timeout", "5s")
	v.SetDefault("network.keep_alive", "30s")
	v.SetDefault("network.insecure_skip_verify", false)
	v.SetDefault("network.bridges", []string{})

	// Terminal defaults
	v.SetDefault("terminal.display_mode", "ascii")
	v.SetDefault("terminal.timestamps", true)
	v.SetDefault("terminal.drain_interval", "50ms")
	v.SetDefault("terminal.max_records", 10000)

	// Console defaults
	v.SetDefault("console.enabled", true)
	v.SetDefault("console.line_ending", "none")
}

// validate validates the configuration
func validate(config *Config) error {
	validEnvs := []string{"development", "staging", "production", "test"}
	if !slices.Contains(validEnvs, config.App.Environment) {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !slices.Contains(validLevels, config.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	if config.Server.Enabled && config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if config.Server.TLS.Enabled && (config.Server.TLS.CertFile == "" || config.Server.TLS.KeyFile == "") {
		return fmt.Errorf("server.tls.cert_file and server.tls.key_file are required when TLS is enabled")
	}

	if config.Serial.BaudRate <= 0 {
		return fmt.Errorf("serial.baud_rate must be positive")
	}
	if config.Serial.ReadTimeout <= 0 {
		return fmt.Errorf("serial.read_timeout must be positive")
	}
	if config.Serial.AutoOpen && config.Serial.Port == "" {
		return fmt.Errorf("serial.port is required when serial.auto_open is set")
	}
	for _, pattern := range config.Serial.PortPatterns {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("serial.port_patterns: invalid pattern %q: %w", pattern, err)
		}
	}

	if config.Network.DialTimeout <= 0 {
		return fmt.Errorf("network.dial_timeout must be positive")
	}
	if config.Network.WriteTimeout < 0 {
		return fmt.Errorf("network.write_timeout must not be negative")
	}
	for _, bridge := range config.Network.Bridges {
		lower := strings.ToLower(bridge)
		if !strings.HasPrefix(lower, "tcp://") && !strings.HasPrefix(lower, "tls://") {
			return fmt.Errorf("network.bridges: %q must start with tcp:// or tls://", bridge)
		}
	}

	if _, err := model.ParseDisplayMode(config.Terminal.DisplayMode); err != nil {
		return fmt.Errorf("terminal.display_mode: %w", err)
	}
	if config.Terminal.DrainInterval <= 0 {
		return fmt.Errorf("terminal.drain_interval must be positive")
	}
	if config.Terminal.MaxRecords < 0 {
		return fmt.Errorf("terminal.max_records must not be negative")
	}

	if _, ok := lineEndings[strings.ToLower(config.Console.LineEnding)]; !ok {
		return fmt.Errorf("console.line_ending must be one of: none, lf, cr, crlf")
	}

	return nil
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment checks if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// ConnectionConfig returns the configured default link
func (c *Config) ConnectionConfig() model.ConnectionConfig {
	return model.ConnectionConfig{
		Port:        c.Serial.Port,
		BaudRate:    c.Serial.BaudRate,
		DataBits:    c.Serial.DataBits,
		StopBits:    c.Serial.StopBits,
		Parity:      c.Serial.Parity,
		ReadTimeout: c.Serial.ReadTimeout,
	}
}

// DisplayMode returns the configured initial display mode
func (c *Config) DisplayMode() model.DisplayMode {
	mode, err := model.ParseDisplayMode(c.Terminal.DisplayMode)
	if err != nil {
		return model.DisplayModeASCII
	}
	return mode
}

// LineEnding returns the bytes the console appends to Ascii sends
func (c *Config) LineEnding() string {
	return lineEndings[strings.ToLower(c.Console.LineEnding)]
}
