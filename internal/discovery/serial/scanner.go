// internal/discovery/serial/scanner.go
package serial

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"serial-terminal/internal/discovery/usb"
	"serial-terminal/internal/model"
)

// listPorts is swapped out in tests
var listPorts = enumerator.GetDetailedPortsList

// Config for the serial port scanner
type Config struct {
	// PortPatterns restricts results to names matching one of the globs.
	// Empty means every port the OS reports.
	PortPatterns []string `json:"port_patterns"`
}

// Scanner lists the serial ports present on this host
type Scanner struct {
	logger  *zap.Logger
	config  *Config
	devices *usb.DeviceDatabase
}

// NewScanner creates a new serial scanner
func NewScanner(logger *zap.Logger, config *Config) *Scanner {
	if config == nil {
		config = &Config{}
	}

	return &Scanner{
		logger:  logger.With(zap.String("scanner", "serial")),
		config:  config,
		devices: usb.NewDeviceDatabase(),
	}
}

// GetScannerType returns scanner type
func (s *Scanner) GetScannerType() string {
	return "serial"
}

// Scan returns the available ports sorted by name
func (s *Scanner) Scan(ctx context.Context) ([]model.PortDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	details, err := listPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to get serial ports: %w", err)
	}

	ports := make([]model.PortDescriptor, 0, len(details))
	for _, d := range details {
		if d == nil || !s.matches(d.Name) {
			continue
		}
		port := model.PortDescriptor{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          strings.ToUpper(d.VID),
			PID:          strings.ToUpper(d.PID),
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		}
		if d.IsUSB {
			port.Vendor, port.Adapter = s.devices.Identify(d.VID, d.PID)
		}
		ports = append(ports, port)
	}

	sort.Slice(ports, func(i, j int) bool { return ports[i].Name < ports[j].Name })

	s.logger.Debug("Serial scan completed", zap.Int("ports_found", len(ports)))
	return ports, nil
}

func (s *Scanner) matches(name string) bool {
	if len(s.config.PortPatterns) == 0 {
		return true
	}
	for _, pattern := range s.config.PortPatterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}
