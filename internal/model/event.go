// internal/model/event.go
package model

import (
	"fmt"
	"strings"
	"time"
)

// Direction tells whether a payload was written to or read from the device
type Direction string

const (
	DirectionSent     Direction = "TX"
	DirectionReceived Direction = "RX"
)

// DisplayMode is the rendering convention applied to payloads at drain time
type DisplayMode string

const (
	DisplayModeASCII DisplayMode = "ASCII"
	DisplayModeHex   DisplayMode = "HEX"
)

// ParseDisplayMode accepts "ascii"/"hex" in any case
func ParseDisplayMode(s string) (DisplayMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(DisplayModeASCII), "TEXT":
		return DisplayModeASCII, nil
	case string(DisplayModeHex):
		return DisplayModeHex, nil
	default:
		return "", fmt.Errorf("unknown display mode %q: expected ascii or hex", s)
	}
}

// DataEvent is one unit handed from the I/O engine to the consumer.
// Timestamp is nil when timestamping was disabled at emission time.
// Payload must not be modified after construction.
type DataEvent struct {
	Timestamp *time.Time
	Payload   []byte
	Direction Direction
}

// NewDataEvent builds an event; a zero at leaves the timestamp unset.
func NewDataEvent(dir Direction, payload []byte, at time.Time) DataEvent {
	ev := DataEvent{
		Payload:   payload,
		Direction: dir,
	}
	if !at.IsZero() {
		ts := at
		ev.Timestamp = &ts
	}
	return ev
}

// HasTimestamp reports whether the event was stamped
func (e DataEvent) HasTimestamp() bool {
	return e.Timestamp != nil
}

// Record is a rendered DataEvent as it sits in the display log
type Record struct {
	Seq       uint64      `json:"seq"`
	Timestamp *time.Time  `json:"timestamp,omitempty"`
	Direction Direction   `json:"direction"`
	Mode      DisplayMode `json:"mode"`
	Text      string      `json:"text"`
	Size      int         `json:"size"`
}

// TimeLayout is the wall clock layout used in rendered lines
const TimeLayout = "15:04:05.000"

// Line renders the record the way the terminal log shows it,
// e.g. "12:30:01.250 RX: hello".
func (r Record) Line() string {
	if r.Timestamp == nil {
		return fmt.Sprintf("%s: %s", r.Direction, r.Text)
	}
	return fmt.Sprintf("%s %s: %s", r.Timestamp.Format(TimeLayout), r.Direction, r.Text)
}
