// internal/service/terminal_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"serial-terminal/internal/codec"
	"serial-terminal/internal/config"
	"serial-terminal/internal/model"
	"serial-terminal/internal/terminal"
	"serial-terminal/internal/utils"
)

// PortScanner lists the serial ports present on the host
type PortScanner interface {
	Scan(ctx context.Context) ([]model.PortDescriptor, error)
}

// Listener receives rendered records and connection state changes. Both
// methods are called from service goroutines and must not block.
type Listener interface {
	OnRecord(rec model.Record)
	OnState(ev StateEvent)
}

// StateEvent describes one connection state transition
type StateEvent struct {
	State  model.ConnectionState `json:"state"`
	Handle *terminal.Handle      `json:"handle,omitempty"`
	Error  string                `json:"error,omitempty"`
	At     time.Time             `json:"at"`
}

// Status is a snapshot of the terminal
type Status struct {
	State      model.ConnectionState `json:"state"`
	Handle     *terminal.Handle      `json:"handle,omitempty"`
	Stats      *terminal.LinkStats   `json:"stats,omitempty"`
	Mode       model.DisplayMode     `json:"mode"`
	Timestamps bool                  `json:"timestamps"`
	Charset    string                `json:"charset"`
	LastError  string                `json:"last_error,omitempty"`
	LastSeq    uint64                `json:"last_seq"`
	Pending    int                   `json:"pending"`
}

// ServiceOption configures a TerminalService
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	clock func() time.Time
}

// WithServiceClock overrides the time source used for event timestamps
func WithServiceClock(clock func() time.Time) ServiceOption {
	return func(o *serviceOptions) { o.clock = clock }
}

// TerminalService is the consumer side of the serial engine: it drains the
// event queue, renders records, keeps the display log and fans records out
// to listeners. Commands from the console and API go through it.
type TerminalService struct {
	ctrl       *terminal.Controller
	queue      *terminal.EventQueue
	settings   *terminal.Settings
	codec      *codec.Codec
	scanner    PortScanner
	transcript *Transcript
	listeners  *xsync.MapOf[uuid.UUID, Listener]
	defaults   model.ConnectionConfig
	interval   time.Duration
	clock      func() time.Time
	logger     *utils.ServiceLogger
}

// NewTerminalService wires a controller around opener and prepares the
// display log
func NewTerminalService(
	cfg *config.Config,
	opener terminal.Opener,
	scanner PortScanner,
	logger *zap.Logger,
	opts ...ServiceOption,
) (*TerminalService, error) {
	o := serviceOptions{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	cd, err := codec.New(cfg.Serial.Charset)
	if err != nil {
		return nil, fmt.Errorf("invalid serial.charset: %w", err)
	}

	s := &TerminalService{
		queue:      terminal.NewEventQueue(),
		settings:   terminal.NewSettings(cfg.DisplayMode(), cfg.Terminal.Timestamps),
		codec:      cd,
		scanner:    scanner,
		transcript: NewTranscript(cfg.Terminal.MaxRecords),
		listeners:  xsync.NewMapOf[uuid.UUID, Listener](),
		defaults:   cfg.ConnectionConfig(),
		interval:   cfg.Terminal.DrainInterval,
		clock:      o.clock,
		logger:     utils.NewServiceLogger(logger, "terminal-service"),
	}
	if s.interval <= 0 {
		s.interval = 50 * time.Millisecond
	}

	s.ctrl = terminal.NewController(opener, s.queue, s.settings, logger,
		terminal.WithCodec(cd),
		terminal.WithClock(o.clock),
		terminal.WithStateObserver(s.onStateChange),
	)

	return s, nil
}

// Run drains the event queue until ctx is cancelled. It wakes on the drain
// interval and whenever the queue signals new events.
func (s *TerminalService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Debug("Drain loop started", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.Drain()
			return nil
		case <-ticker.C:
			s.Drain()
		case <-s.queue.Ready():
			s.Drain()
		}
	}
}

// Drain renders every queued event with the display mode in effect now and
// returns the new records. Records already in the log are never re-rendered.
func (s *TerminalService) Drain() []model.Record {
	events := s.queue.Drain()
	if len(events) == 0 {
		return nil
	}

	mode := s.settings.Mode()
	records := make([]model.Record, len(events))
	for i, ev := range events {
		records[i] = model.Record{
			Timestamp: ev.Timestamp,
			Direction: ev.Direction,
			Mode:      mode,
			Text:      s.codec.Format(ev.Payload, mode),
			Size:      len(ev.Payload),
		}
	}
	s.transcript.Append(records)

	s.listeners.Range(func(_ uuid.UUID, l Listener) bool {
		for _, rec := range records {
			l.OnRecord(rec)
		}
		return true
	})
	return records
}

// ListPorts returns the serial ports currently present
func (s *TerminalService) ListPorts(ctx context.Context) ([]model.PortDescriptor, error) {
	if s.scanner == nil {
		return nil, errors.New("port scanning not available")
	}
	return s.scanner.Scan(ctx)
}

// Open opens a link. Zero fields in cfg are taken from the configured
// serial defaults.
func (s *TerminalService) Open(ctx context.Context, cfg model.ConnectionConfig) (terminal.Handle, error) {
	return s.ctrl.Open(ctx, s.withDefaults(cfg))
}

// OpenDefault opens the port named in configuration
func (s *TerminalService) OpenDefault(ctx context.Context) (terminal.Handle, error) {
	return s.ctrl.Open(ctx, s.defaults)
}

// Close closes the current link, if any
func (s *TerminalService) Close() error {
	return s.ctrl.Close()
}

// Send writes text using the current display mode
func (s *TerminalService) Send(ctx context.Context, text string) error {
	return s.ctrl.Send(ctx, text, s.settings.Mode())
}

// Mode returns the current display mode
func (s *TerminalService) Mode() model.DisplayMode {
	return s.settings.Mode()
}

// SetMode switches the display mode. It affects records drained from now on
// and how later input is interpreted.
func (s *TerminalService) SetMode(mode model.DisplayMode) {
	s.settings.SetMode(mode)
	s.logger.Info("Display mode changed", zap.String("mode", string(mode)))
}

// Timestamps reports whether new events are stamped
func (s *TerminalService) Timestamps() bool {
	return s.settings.Timestamps()
}

// SetTimestamps toggles stamping of events emitted from now on
func (s *TerminalService) SetTimestamps(enabled bool) {
	s.settings.SetTimestamps(enabled)
	s.logger.Info("Timestamping changed", zap.Bool("enabled", enabled))
}

// Status returns a snapshot of the terminal
func (s *TerminalService) Status() Status {
	st := Status{
		State:      s.ctrl.State(),
		Mode:       s.settings.Mode(),
		Timestamps: s.settings.Timestamps(),
		Charset:    s.codec.Charset(),
		LastSeq:    s.transcript.LastSeq(),
		Pending:    s.queue.Len(),
	}
	if h, ok := s.ctrl.Handle(); ok {
		st.Handle = &h
	}
	if stats, ok := s.ctrl.Stats(); ok {
		st.Stats = &stats
	}
	if err := s.ctrl.LastError(); err != nil {
		st.LastError = err.Error()
	}
	return st
}

// Records returns up to limit log records newer than after
func (s *TerminalService) Records(after uint64, limit int) []model.Record {
	return s.transcript.Since(after, limit)
}

// Subscribe registers l for records and state changes
func (s *TerminalService) Subscribe(l Listener) uuid.UUID {
	id := uuid.New()
	s.listeners.Store(id, l)
	s.logger.Debug("Listener subscribed", zap.String("listener_id", id.String()))
	return id
}

// Unsubscribe removes a listener
func (s *TerminalService) Unsubscribe(id uuid.UUID) {
	s.listeners.Delete(id)
}

// Shutdown closes the link and flushes remaining events to listeners
func (s *TerminalService) Shutdown() error {
	err := s.ctrl.Close()
	s.Drain()
	return err
}

func (s *TerminalService) withDefaults(cfg model.ConnectionConfig) model.ConnectionConfig {
	if cfg.Port == "" {
		cfg.Port = s.defaults.Port
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = s.defaults.BaudRate
	}
	if cfg.DataBits == 0 {
		cfg.DataBits = s.defaults.DataBits
	}
	if cfg.StopBits == 0 {
		cfg.StopBits = s.defaults.StopBits
	}
	if cfg.Parity == "" {
		cfg.Parity = s.defaults.Parity
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = s.defaults.ReadTimeout
	}
	return cfg
}

func (s *TerminalService) onStateChange(ch terminal.StateChange) {
	ev := StateEvent{State: ch.State, At: s.clock()}
	if ch.State == model.StateOpen {
		h := ch.Handle
		ev.Handle = &h
	}
	if ch.Err != nil {
		ev.Error = ch.Err.Error()
	}

	// CLOSING is transient; the CLOSED that follows is logged
	if ch.State != model.StateClosing {
		action := "close"
		switch {
		case ch.State == model.StateOpen:
			action = "open"
		case errors.As(ch.Err, new(*terminal.LinkError)):
			action = "lost"
		}
		utils.NewConnectionLogger(s.logger.Logger, ch.Handle.Config.Port).
			LogConnection(action, ch.Err == nil, ch.Err, zap.String("link_id", ch.Handle.ID.String()))
	}

	s.listeners.Range(func(_ uuid.UUID, l Listener) bool {
		l.OnState(ev)
		return true
	})
}
