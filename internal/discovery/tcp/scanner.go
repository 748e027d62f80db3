// internal/discovery/tcp/scanner.go
package tcp

import (
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"serial-terminal/internal/model"
	"serial-terminal/internal/protocol"
)

// Scanner reports configured network serial bridges that accept connections
type Scanner struct {
	logger *zap.Logger
	config *Config
}

// Config for the bridge scanner
type Config struct {
	// Bridges are port names such as "tcp://10.0.0.5:4001"
	Bridges     []string      `json:"bridges"`
	ConnTimeout time.Duration `json:"connection_timeout"`
}

// NewScanner creates a new bridge scanner
func NewScanner(logger *zap.Logger, config *Config) *Scanner {
	if config == nil {
		config = &Config{}
	}
	if config.ConnTimeout <= 0 {
		config.ConnTimeout = 2 * time.Second
	}

	return &Scanner{
		logger: logger.With(zap.String("scanner", "tcp")),
		config: config,
	}
}

// GetScannerType returns scanner type
func (s *Scanner) GetScannerType() string {
	return "tcp"
}

// Scan dials every configured bridge concurrently. Unreachable or
// malformed entries are left out.
func (s *Scanner) Scan(ctx context.Context) ([]model.PortDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reachable := make([]bool, len(s.config.Bridges))
	var wg sync.WaitGroup
	for i, name := range s.config.Bridges {
		ep, err := protocol.ParseEndpoint(name)
		if err != nil || ep.Type == protocol.ConnectionTypeSerial {
			s.logger.Warn("Skipping invalid bridge", zap.String("bridge", name))
			continue
		}

		wg.Add(1)
		go func(i int, address string) {
			defer wg.Done()
			reachable[i] = s.dialable(ctx, address)
		}(i, ep.Address)
	}
	wg.Wait()

	ports := make([]model.PortDescriptor, 0, len(s.config.Bridges))
	for i, ok := range reachable {
		if ok {
			ports = append(ports, model.PortDescriptor{Name: s.config.Bridges[i]})
		}
	}

	s.logger.Debug("Bridge scan completed",
		zap.Int("configured", len(s.config.Bridges)),
		zap.Int("reachable", len(ports)),
	)
	return ports, nil
}

func (s *Scanner) dialable(ctx context.Context, address string) bool {
	ctx, cancel := context.WithTimeout(ctx, s.config.ConnTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		s.logger.Debug("Bridge unreachable", zap.String("address", address), zap.Error(err))
		return false
	}
	_ = conn.Close()
	return true
}
