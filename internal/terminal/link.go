// internal/terminal/link.go
package terminal

import (
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// link is one open port plus the receiver goroutine reading it
type link struct {
	handle Handle
	port   Port
	logger *zap.Logger
	stats  *linkStats

	writeMu sync.Mutex

	stop     chan struct{}
	stopOnce sync.Once
	closeErr error
	done     chan struct{}
}

func newLink(handle Handle, port Port, logger *zap.Logger) *link {
	return &link{
		handle: handle,
		port:   port,
		logger: logger.With(
			zap.String("port", handle.Config.Port),
			zap.String("link_id", handle.ID.String()),
		),
		stats: newLinkStats(),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// shutdown signals the receiver and closes the port. It does not wait for
// the receiver; any read it completes afterwards is discarded.
func (l *link) shutdown() error {
	l.stopOnce.Do(func() {
		close(l.stop)
		l.closeErr = l.port.Close()
	})
	return l.closeErr
}

func (l *link) stopped() bool {
	select {
	case <-l.stop:
		return true
	default:
		return false
	}
}

// LinkStats is a point-in-time copy of link counters
type LinkStats struct {
	BytesReceived  int64     `json:"bytes_received"`
	BytesSent      int64     `json:"bytes_sent"`
	FramesReceived int64     `json:"frames_received"`
	FramesSent     int64     `json:"frames_sent"`
	LastActivity   time.Time `json:"last_activity"`
}

type linkStats struct {
	bytesRx  *atomic.Int64
	bytesTx  *atomic.Int64
	framesRx *atomic.Int64
	framesTx *atomic.Int64
	lastSeen *atomic.Time
}

func newLinkStats() *linkStats {
	return &linkStats{
		bytesRx:  atomic.NewInt64(0),
		bytesTx:  atomic.NewInt64(0),
		framesRx: atomic.NewInt64(0),
		framesTx: atomic.NewInt64(0),
		lastSeen: atomic.NewTime(time.Time{}),
	}
}

func (s *linkStats) received(n int, frames int) {
	s.bytesRx.Add(int64(n))
	s.framesRx.Add(int64(frames))
	s.lastSeen.Store(time.Now())
}

func (s *linkStats) sent(n int) {
	s.bytesTx.Add(int64(n))
	s.framesTx.Inc()
	s.lastSeen.Store(time.Now())
}

func (s *linkStats) snapshot() LinkStats {
	return LinkStats{
		BytesReceived:  s.bytesRx.Load(),
		BytesSent:      s.bytesTx.Load(),
		FramesReceived: s.framesRx.Load(),
		FramesSent:     s.framesTx.Load(),
		LastActivity:   s.lastSeen.Load(),
	}
}

func (s *linkStats) fields() []zap.Field {
	return []zap.Field{
		zap.Int64("bytes_received", s.bytesRx.Load()),
		zap.Int64("bytes_sent", s.bytesTx.Load()),
		zap.Int64("frames_received", s.framesRx.Load()),
		zap.Int64("frames_sent", s.framesTx.Load()),
	}
}
