// internal/terminal/framer.go
package terminal

import "bytes"

// Delimiter terminates every received frame
const Delimiter = '\n'

// Framer accumulates raw reads and cuts them into newline-delimited frames.
// It is owned by a single receive loop and is not safe for concurrent use.
type Framer struct {
	buf []byte
}

// NewFramer creates an empty framer
func NewFramer() *Framer {
	return &Framer{buf: make([]byte, 0, 256)}
}

// Feed appends chunk and returns every frame it completes, with the delimiter
// and one trailing carriage return removed. Bytes after the last delimiter are
// kept for the next call.
func (f *Framer) Feed(chunk []byte) [][]byte {
	f.buf = append(f.buf, chunk...)

	var frames [][]byte
	start := 0
	for {
		i := bytes.IndexByte(f.buf[start:], Delimiter)
		if i < 0 {
			break
		}
		frame := bytes.TrimSuffix(f.buf[start:start+i], []byte{'\r'})
		frames = append(frames, bytes.Clone(frame))
		start += i + 1
	}

	if start > 0 {
		n := copy(f.buf, f.buf[start:])
		f.buf = f.buf[:n]
	}
	return frames
}

// Pending returns the number of buffered bytes not yet part of a frame
func (f *Framer) Pending() int {
	return len(f.buf)
}

// Reset drops any partial frame
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
}
