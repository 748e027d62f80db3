// internal/terminal/settings.go
package terminal

import (
	"go.uber.org/atomic"

	"serial-terminal/internal/model"
)

// Settings holds the operator toggles that the I/O goroutines read and the
// consumer writes. Each flag is read independently; no snapshot is taken.
type Settings struct {
	mode       *atomic.String
	timestamps *atomic.Bool
}

// NewSettings creates settings with the given initial values
func NewSettings(mode model.DisplayMode, timestamps bool) *Settings {
	if mode == "" {
		mode = model.DisplayModeASCII
	}
	return &Settings{
		mode:       atomic.NewString(string(mode)),
		timestamps: atomic.NewBool(timestamps),
	}
}

// Mode returns the current display mode
func (s *Settings) Mode() model.DisplayMode {
	return model.DisplayMode(s.mode.Load())
}

// SetMode changes the display mode for future renders and sends
func (s *Settings) SetMode(mode model.DisplayMode) {
	s.mode.Store(string(mode))
}

// Timestamps reports whether new events get stamped
func (s *Settings) Timestamps() bool {
	return s.timestamps.Load()
}

// SetTimestamps toggles stamping of events emitted from now on
func (s *Settings) SetTimestamps(enabled bool) {
	s.timestamps.Store(enabled)
}
