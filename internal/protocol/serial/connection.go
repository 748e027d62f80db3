// internal/protocol/serial/connection.go
package serial

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"serial-terminal/internal/model"
	"serial-terminal/internal/terminal"
)

// openPort is swapped out in tests
var openPort = serial.Open

// Transport opens serial devices through go.bug.st/serial
type Transport struct {
	logger *zap.Logger
}

// NewTransport creates a transport
func NewTransport(logger *zap.Logger) *Transport {
	return &Transport{
		logger: logger.With(zap.String("component", "serial_transport")),
	}
}

// Open opens cfg.Port with the configured framing and read timeout.
// Failures are returned as *terminal.OpenError. Opening a local device does
// not block, so ctx is only checked up front.
func (t *Transport) Open(ctx context.Context, cfg model.ConnectionConfig) (terminal.Port, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode, err := buildMode(cfg)
	if err != nil {
		return nil, &terminal.OpenError{Port: cfg.Port, Reason: terminal.OpenInvalidConfig, Err: err}
	}

	port, err := openPort(cfg.Port, mode)
	if err != nil {
		return nil, &terminal.OpenError{Port: cfg.Port, Reason: classify(err), Err: err}
	}

	timeout := cfg.ReadTimeout
	if timeout <= 0 {
		timeout = model.DefaultReadTimeout
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		_ = port.Close()
		return nil, &terminal.OpenError{
			Port:   cfg.Port,
			Reason: terminal.OpenInvalidConfig,
			Err:    fmt.Errorf("failed to set read timeout: %w", err),
		}
	}

	t.logger.Debug("Serial device acquired",
		zap.String("port", cfg.Port),
		zap.Int("baud_rate", cfg.BaudRate),
		zap.Duration("read_timeout", timeout),
	)

	return &Connection{port: port, name: cfg.Port, logger: t.logger}, nil
}

// Connection is an open serial device
type Connection struct {
	port   serial.Port
	name   string
	logger *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// Read returns (0, nil) when the read timeout expires with no data
func (c *Connection) Read(p []byte) (int, error) {
	n, err := c.port.Read(p)
	if err != nil {
		return n, fmt.Errorf("failed to read from serial port: %w", err)
	}
	return n, nil
}

// Write writes p to the device
func (c *Connection) Write(p []byte) (int, error) {
	n, err := c.port.Write(p)
	if err != nil {
		return n, fmt.Errorf("failed to write to serial port: %w", err)
	}
	c.logger.Debug("Data written to serial port",
		zap.String("port", c.name),
		zap.Int("bytes_written", n),
		zap.Binary("data", p[:n]),
	)
	return n, nil
}

// Close releases the device. A blocked Read returns with an error.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		if err := c.port.Close(); err != nil {
			c.closeErr = fmt.Errorf("failed to close serial port: %w", err)
		}
	})
	return c.closeErr
}

func buildMode(cfg model.ConnectionConfig) (*serial.Mode, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
	}
	if mode.DataBits == 0 {
		mode.DataBits = 8
	}

	switch cfg.StopBits {
	case 0, 1:
		mode.StopBits = serial.OneStopBit
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("unsupported stop bits %d", cfg.StopBits)
	}

	switch cfg.Parity {
	case "", model.ParityNone:
		mode.Parity = serial.NoParity
	case model.ParityOdd:
		mode.Parity = serial.OddParity
	case model.ParityEven:
		mode.Parity = serial.EvenParity
	case model.ParityMark:
		mode.Parity = serial.MarkParity
	case model.ParitySpace:
		mode.Parity = serial.SpaceParity
	default:
		return nil, fmt.Errorf("unsupported parity %q", cfg.Parity)
	}

	return mode, nil
}

// classify maps driver and OS errors onto open failure reasons
func classify(err error) terminal.OpenFailure {
	code, ok := portErrorCode(err)
	if ok {
		switch code {
		case serial.PortBusy:
			return terminal.OpenBusy
		case serial.PortNotFound:
			return terminal.OpenNotFound
		case serial.PermissionDenied:
			return terminal.OpenPermissionDenied
		case serial.InvalidSerialPort, serial.InvalidSpeed, serial.InvalidDataBits,
			serial.InvalidParity, serial.InvalidStopBits, serial.InvalidTimeoutValue:
			return terminal.OpenInvalidConfig
		}
	}

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return terminal.OpenNotFound
	case errors.Is(err, fs.ErrPermission):
		return terminal.OpenPermissionDenied
	}
	return terminal.OpenUnknown
}

func portErrorCode(err error) (serial.PortErrorCode, bool) {
	var ptr *serial.PortError
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.Code(), true
	}
	var val serial.PortError
	if errors.As(err, &val) {
		return val.Code(), true
	}
	return 0, false
}
