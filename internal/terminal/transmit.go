// internal/terminal/transmit.go
package terminal

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"serial-terminal/internal/model"
)

// Send encodes text under mode and writes it to the open link. Encoding
// errors are returned before the port is touched. A failed write closes the
// link. On success a Sent event is queued before Send returns.
func (c *Controller) Send(ctx context.Context, text string, mode model.DisplayMode) error {
	payload, err := c.codec.Encode(text, mode)
	if err != nil {
		return err
	}
	if len(payload) == 0 {
		return ErrEmptyPayload
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	l := c.link
	c.mu.Unlock()
	if l == nil {
		return ErrNotOpen
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	if l.stopped() {
		return ErrNotOpen
	}

	n, err := l.port.Write(payload)
	if err == nil && n != len(payload) {
		err = fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(payload))
	}
	if err != nil {
		c.linkFailed(l, err)
		return &SendError{Port: l.handle.Config.Port, Err: err}
	}

	l.stats.sent(n)
	c.queue.Push(c.newEvent(model.DirectionSent, payload))
	l.logger.Debug("Data sent", zap.Int("bytes", n), zap.String("mode", string(mode)))
	return nil
}
