// internal/terminal/receiver.go
package terminal

import (
	"io"

	"go.uber.org/zap"

	"serial-terminal/internal/model"
)

const readBufferSize = 4096

// receive reads l until it is stopped or fails. Frames are pushed as
// Received events in arrival order. Bytes still pending in the framer when
// the loop ends are dropped.
func (c *Controller) receive(l *link) {
	defer close(l.done)

	framer := NewFramer()
	buf := make([]byte, readBufferSize)

	for {
		if l.stopped() {
			c.dropPending(l, framer)
			return
		}

		n, err := l.port.Read(buf)

		if l.stopped() {
			c.dropPending(l, framer)
			return
		}

		if n > 0 {
			frames := framer.Feed(buf[:n])
			l.stats.received(n, len(frames))
			for _, frame := range frames {
				c.queue.Push(c.newEvent(model.DirectionReceived, frame))
			}
		}

		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			c.dropPending(l, framer)
			// linkFailed takes the controller lock, which a concurrent
			// Close may hold while it waits on this port.
			go c.linkFailed(l, err)
			return
		}
	}
}

func (c *Controller) dropPending(l *link, framer *Framer) {
	if n := framer.Pending(); n > 0 {
		l.logger.Debug("Discarding incomplete frame", zap.Int("bytes", n))
	}
	framer.Reset()
}
