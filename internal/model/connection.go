// internal/model/connection.go
package model

import (
	"fmt"
	"strings"
	"time"
)

// ConnectionState represents the lifecycle state of the terminal link
type ConnectionState string

const (
	StateClosed  ConnectionState = "CLOSED"
	StateOpen    ConnectionState = "OPEN"
	StateClosing ConnectionState = "CLOSING"
)

// Parity values understood by the transport
const (
	ParityNone  = "none"
	ParityOdd   = "odd"
	ParityEven  = "even"
	ParityMark  = "mark"
	ParitySpace = "space"
)

// DefaultReadTimeout bounds every receive-loop read when none is configured
const DefaultReadTimeout = time.Second

// DefaultBaudRate is used when no rate is configured
const DefaultBaudRate = 9600

// BaudRates are the presets offered to operators
var BaudRates = []int{9600, 19200, 38400, 57600, 115200}

// ConnectionConfig describes one serial link. It is treated as immutable once
// a connection has been opened with it.
type ConnectionConfig struct {
	Port        string        `json:"port"`
	BaudRate    int           `json:"baud_rate"`
	DataBits    int           `json:"data_bits"`
	StopBits    int           `json:"stop_bits"`
	Parity      string        `json:"parity"`
	ReadTimeout time.Duration `json:"read_timeout"`
}

// Normalize validates the config and fills unset framing fields with 8N1 and
// the default read timeout.
func (c ConnectionConfig) Normalize() (ConnectionConfig, error) {
	cfg := c
	cfg.Port = strings.TrimSpace(cfg.Port)
	if cfg.Port == "" {
		return cfg, fmt.Errorf("port is required")
	}

	if cfg.BaudRate <= 0 {
		return cfg, fmt.Errorf("invalid baud rate %d: must be positive", cfg.BaudRate)
	}

	if cfg.DataBits == 0 {
		cfg.DataBits = 8
	}
	if cfg.DataBits < 5 || cfg.DataBits > 8 {
		return cfg, fmt.Errorf("invalid data bits %d: must be between 5 and 8", cfg.DataBits)
	}

	if cfg.StopBits == 0 {
		cfg.StopBits = 1
	}
	if cfg.StopBits != 1 && cfg.StopBits != 2 {
		return cfg, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", cfg.StopBits)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Parity)) {
	case "", "n", ParityNone:
		cfg.Parity = ParityNone
	case "o", ParityOdd:
		cfg.Parity = ParityOdd
	case "e", ParityEven:
		cfg.Parity = ParityEven
	case "m", ParityMark:
		cfg.Parity = ParityMark
	case "s", ParitySpace:
		cfg.Parity = ParitySpace
	default:
		return cfg, fmt.Errorf("unsupported parity %q: expected none, odd, even, mark or space", c.Parity)
	}

	if cfg.ReadTimeout < 0 {
		return cfg, fmt.Errorf("invalid read timeout %s", cfg.ReadTimeout)
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}

	return cfg, nil
}

// String renders the config as e.g. "/dev/ttyUSB0 9600 8N1"
func (c ConnectionConfig) String() string {
	p := "N"
	if c.Parity != "" {
		p = strings.ToUpper(c.Parity[:1])
	}
	return fmt.Sprintf("%s %d %d%s%d", c.Port, c.BaudRate, c.DataBits, p, c.StopBits)
}

// PortDescriptor describes a serial port found on the host
type PortDescriptor struct {
	Name         string `json:"name"`
	IsUSB        bool   `json:"is_usb"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Product      string `json:"product,omitempty"`
	// Vendor and Adapter are filled in for known USB to serial bridges
	Vendor  string `json:"vendor,omitempty"`
	Adapter string `json:"adapter,omitempty"`
}
