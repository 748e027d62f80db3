// internal/terminal/controller.go
package terminal

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"serial-terminal/internal/codec"
	"serial-terminal/internal/model"
)

// Port is an open serial device. Read must return within the configured read
// timeout; a timeout with no data is reported as (0, nil).
type Port interface {
	io.Reader
	io.Writer
	io.Closer
}

// Opener acquires a Port for a connection configuration. Openers that block
// on the network should give up when ctx is done.
type Opener interface {
	Open(ctx context.Context, cfg model.ConnectionConfig) (Port, error)
}

// OpenerFunc adapts a function to the Opener interface
type OpenerFunc func(ctx context.Context, cfg model.ConnectionConfig) (Port, error)

// Open calls f(ctx, cfg)
func (f OpenerFunc) Open(ctx context.Context, cfg model.ConnectionConfig) (Port, error) {
	return f(ctx, cfg)
}

// Handle identifies one open link
type Handle struct {
	ID       uuid.UUID              `json:"id"`
	Config   model.ConnectionConfig `json:"config"`
	OpenedAt time.Time              `json:"opened_at"`
}

// StateChange is delivered to the state observer after every transition
type StateChange struct {
	State  model.ConnectionState
	Handle Handle
	Err    error
}

// Option configures a Controller
type Option func(*Controller)

// WithClock overrides the time source used for timestamps
func WithClock(clock func() time.Time) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithCodec sets the charset used for Ascii sends
func WithCodec(cd *codec.Codec) Option {
	return func(c *Controller) { c.codec = cd }
}

// WithStateObserver registers a callback for state transitions. It is
// invoked without any Controller lock held and must not block for long.
func WithStateObserver(fn func(StateChange)) Option {
	return func(c *Controller) { c.observer = fn }
}

// Controller owns the lifecycle of at most one serial link and the
// goroutines attached to it.
type Controller struct {
	opener   Opener
	queue    *EventQueue
	settings *Settings
	codec    *codec.Codec
	clock    func() time.Time
	observer func(StateChange)
	logger   *zap.Logger

	// openMu serializes Open calls; mu guards the fields below and is never
	// held while the opener runs
	openMu sync.Mutex

	mu      sync.Mutex
	state   model.ConnectionState
	link    *link
	lastErr error
	// closeGen is bumped by Close so an Open still dialling can tell it was
	// cancelled
	closeGen uint64
}

// NewController creates a closed controller
func NewController(opener Opener, queue *EventQueue, settings *Settings, logger *zap.Logger, opts ...Option) *Controller {
	c := &Controller{
		opener:   opener,
		queue:    queue,
		settings: settings,
		codec:    codec.Default(),
		clock:    time.Now,
		logger:   logger.With(zap.String("component", "serial_controller")),
		state:    model.StateClosed,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open acquires the port described by cfg and starts its receiver. An open
// link is shut down first. On failure the controller is left closed. A Close
// issued while the port is being acquired makes Open fail with
// ErrOpenAborted.
func (c *Controller) Open(ctx context.Context, cfg model.ConnectionConfig) (Handle, error) {
	cfg, err := cfg.Normalize()
	if err != nil {
		return Handle{}, &OpenError{Port: cfg.Port, Reason: OpenInvalidConfig, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return Handle{}, err
	}

	c.openMu.Lock()
	defer c.openMu.Unlock()

	c.mu.Lock()
	prev := c.link
	if prev != nil {
		c.link = nil
		c.state = model.StateClosed
	}
	gen := c.closeGen
	c.mu.Unlock()

	if prev != nil {
		if err := prev.shutdown(); err != nil {
			prev.logger.Warn("Error closing previous serial link", zap.Error(err))
		}
		c.notify(StateChange{State: model.StateClosed, Handle: prev.handle})
	}

	port, err := c.opener.Open(ctx, cfg)
	if err != nil {
		openErr := asOpenError(cfg.Port, err)
		c.mu.Lock()
		c.lastErr = openErr
		c.mu.Unlock()

		c.logger.Error("Failed to open serial port",
			zap.String("port", cfg.Port),
			zap.String("reason", string(openErr.Reason)),
			zap.Error(err),
		)
		return Handle{}, openErr
	}

	handle := Handle{
		ID:       uuid.New(),
		Config:   cfg,
		OpenedAt: c.clock(),
	}
	l := newLink(handle, port, c.logger)

	c.mu.Lock()
	if c.closeGen != gen || ctx.Err() != nil {
		c.mu.Unlock()
		_ = port.Close()
		if err := ctx.Err(); err != nil {
			return Handle{}, err
		}
		c.logger.Info("Open abandoned by close", zap.String("port", cfg.Port))
		return Handle{}, ErrOpenAborted
	}
	c.link = l
	c.state = model.StateOpen
	c.lastErr = nil
	go c.receive(l)
	c.mu.Unlock()

	l.logger.Info("Serial port opened", zap.String("settings", cfg.String()))
	c.notify(StateChange{State: model.StateOpen, Handle: handle})
	return handle, nil
}

// Close stops the receiver and releases the port without waiting for the
// receiver goroutine, which exits within one read timeout. Closing a closed
// controller is a no-op apart from abandoning an Open in progress.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.closeGen++
	l := c.link
	if l == nil {
		c.mu.Unlock()
		return nil
	}
	c.link = nil
	c.state = model.StateClosing
	c.mu.Unlock()

	c.notify(StateChange{State: model.StateClosing, Handle: l.handle})

	err := l.shutdown()

	c.mu.Lock()
	// an Open may already have installed a new link
	if c.link == nil && c.state == model.StateClosing {
		c.state = model.StateClosed
	}
	c.mu.Unlock()

	if err != nil {
		l.logger.Warn("Serial port closed with error", zap.Error(err))
		err = &CloseError{Port: l.handle.Config.Port, Err: err}
	} else {
		l.logger.Info("Serial port closed", l.stats.fields()...)
	}
	c.notify(StateChange{State: model.StateClosed, Handle: l.handle, Err: err})
	return err
}

// State returns the current connection state
func (c *Controller) State() model.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Handle returns the open link's handle; ok is false when closed
func (c *Controller) Handle() (Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.link == nil {
		return Handle{}, false
	}
	return c.link.handle, true
}

// LastError returns the error that last ended or prevented a link, if any
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Stats returns counters for the open link
func (c *Controller) Stats() (LinkStats, bool) {
	c.mu.Lock()
	l := c.link
	c.mu.Unlock()
	if l == nil {
		return LinkStats{}, false
	}
	return l.stats.snapshot(), true
}

// linkFailed tears down l after an I/O error. A link that has already been
// replaced or closed only gets its resources released.
func (c *Controller) linkFailed(l *link, cause error) {
	c.mu.Lock()
	if c.link != l {
		c.mu.Unlock()
		_ = l.shutdown()
		return
	}
	c.link = nil
	c.state = model.StateClosed
	linkErr := &LinkError{Port: l.handle.Config.Port, Err: cause}
	c.lastErr = linkErr
	closeErr := l.shutdown()
	c.mu.Unlock()

	l.logger.Error("Serial link lost", zap.Error(cause))
	if closeErr != nil {
		l.logger.Debug("Error releasing failed serial port", zap.Error(closeErr))
	}
	c.notify(StateChange{State: model.StateClosed, Handle: l.handle, Err: linkErr})
}

func (c *Controller) notify(changes ...StateChange) {
	if c.observer == nil {
		return
	}
	for _, ch := range changes {
		c.observer(ch)
	}
}

// newEvent stamps the event only if timestamping is on right now
func (c *Controller) newEvent(dir model.Direction, payload []byte) model.DataEvent {
	var at time.Time
	if c.settings.Timestamps() {
		at = c.clock()
	}
	return model.NewDataEvent(dir, payload, at)
}
