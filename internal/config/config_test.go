// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serial-terminal/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("serialterm", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 9600, cfg.Serial.BaudRate)
	assert.Equal(t, time.Second, cfg.Serial.ReadTimeout)
	assert.Equal(t, model.DisplayModeASCII, cfg.DisplayMode())
	assert.True(t, cfg.Terminal.Timestamps)
	assert.Equal(t, 50*time.Millisecond, cfg.Terminal.DrainInterval)
	assert.Equal(t, 10000, cfg.Terminal.MaxRecords)
	assert.Equal(t, "", cfg.LineEnding())
	assert.Equal(t, "stderr", cfg.Logging.Output)
	assert.Equal(t, "127.0.0.1:8085", cfg.GetServerAddr())
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 5*time.Second, cfg.Network.DialTimeout)
	assert.Equal(t, 30*time.Second, cfg.Network.KeepAlive)
	assert.False(t, cfg.Network.InsecureSkipVerify)
}

func TestLoad_File(t *testing.T) {
	chdir(t, t.TempDir())
	path := writeConfig(t, `
serial:
  port: /dev/ttyUSB1
  baud_rate: 115200
  parity: even
  read_timeout: 200ms
  charset: gbk
  port_patterns:
    - /dev/ttyUSB*
terminal:
  display_mode: hex
  timestamps: false
console:
  line_ending: crlf
network:
  bridges:
    - tcp://10.0.0.5:4001
`)

	cfg, err := Load(newFlags(t, "--config", path))
	require.NoError(t, err)

	conn := cfg.ConnectionConfig()
	assert.Equal(t, "/dev/ttyUSB1", conn.Port)
	assert.Equal(t, 115200, conn.BaudRate)
	assert.Equal(t, model.ParityEven, conn.Parity)
	assert.Equal(t, 200*time.Millisecond, conn.ReadTimeout)
	assert.Equal(t, "gbk", cfg.Serial.Charset)
	assert.Equal(t, []string{"/dev/ttyUSB*"}, cfg.Serial.PortPatterns)
	assert.Equal(t, model.DisplayModeHex, cfg.DisplayMode())
	assert.False(t, cfg.Terminal.Timestamps)
	assert.Equal(t, "\r\n", cfg.LineEnding())
	assert.Equal(t, []string{"tcp://10.0.0.5:4001"}, cfg.Network.Bridges)
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	chdir(t, t.TempDir())
	path := writeConfig(t, `
serial:
  port: /dev/ttyUSB1
  baud_rate: 115200
`)

	cfg, err := Load(newFlags(t, "--config", path, "--port", "/dev/ttyACM0", "--baud", "57600",
		"--listen", "9090", "--no-console", "--hex"))
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, 57600, cfg.Serial.BaudRate)
	assert.True(t, cfg.Serial.AutoOpen)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.False(t, cfg.Console.Enabled)
	assert.True(t, cfg.Server.Enabled)
	assert.Equal(t, model.DisplayModeHex, cfg.DisplayMode())
}

func TestLoad_Env(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SERIALTERM_SERIAL_BAUD_RATE", "38400")
	t.Setenv("SERIALTERM_TERMINAL_DISPLAY_MODE", "hex")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 38400, cfg.Serial.BaudRate)
	assert.Equal(t, model.DisplayModeHex, cfg.DisplayMode())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(newFlags(t, "--config", filepath.Join(t.TempDir(), "nope.yaml")))
	assert.ErrorContains(t, err, "error reading config file")
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"display mode": "terminal:\n  display_mode: octal\n",
		"drain":        "terminal:\n  drain_interval: 0s\n",
		"line ending":  "console:\n  line_ending: nul\n",
		"log level":    "logging:\n  level: loud\n",
		"auto open":    "serial:\n  auto_open: true\n",
		"baud":         "serial:\n  baud_rate: -1\n",
		"max records":  "terminal:\n  max_records: -5\n",
		"environment":  "app:\n  environment: moon\n",
		"tls":          "server:\n  tls:\n    enabled: true\n",
		"read timeout": "serial:\n  read_timeout: 0s\n",
		"port pattern": "serial:\n  port_patterns: [\"/dev/tty[\"]\n",
		"dial timeout": "network:\n  dial_timeout: 0s\n",
		"bridge":       "network:\n  bridges: [\"/dev/ttyS0\"]\n",
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			chdir(t, t.TempDir())
			_, err := Load(newFlags(t, "--config", writeConfig(t, body)))
			assert.ErrorContains(t, err, "config validation failed")
		})
	}
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains: it changes
// the working directory and restores it when the test finishes.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
