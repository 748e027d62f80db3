// internal/protocol/factory.go
package protocol

import (
	"context"

	"go.uber.org/zap"

	"serial-terminal/internal/model"
	"serial-terminal/internal/terminal"
)

// Factory opens ports by name, dispatching to the local serial opener or a
// network serial bridge
type Factory struct {
	serial terminal.Opener
	tcp    TCPConfig
	logger *zap.Logger
}

// NewFactory creates a factory. serial handles every port name without a
// network scheme.
func NewFactory(serial terminal.Opener, tcp TCPConfig, logger *zap.Logger) *Factory {
	return &Factory{
		serial: serial,
		tcp:    tcp.withDefaults(),
		logger: logger.With(zap.String("component", "protocol_factory")),
	}
}

// Open implements terminal.Opener. Cancelling ctx aborts a network dial.
func (f *Factory) Open(ctx context.Context, cfg model.ConnectionConfig) (terminal.Port, error) {
	ep, err := ParseEndpoint(cfg.Port)
	if err != nil {
		return nil, &terminal.OpenError{Port: cfg.Port, Reason: terminal.OpenInvalidConfig, Err: err}
	}

	switch ep.Type {
	case ConnectionTypeTCP, ConnectionTypeTLS:
		f.logger.Info("Opening network serial bridge",
			zap.String("type", string(ep.Type)),
			zap.String("address", ep.Address),
		)
		return dialTCP(ctx, ep, cfg, f.tcp, f.logger)
	default:
		return f.serial.Open(ctx, cfg)
	}
}
