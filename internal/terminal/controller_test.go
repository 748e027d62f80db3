// internal/terminal/controller_test.go
package terminal

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"serial-terminal/internal/codec"
	"serial-terminal/internal/model"
)

type readResult struct {
	data []byte
	err  error
}

// fakePort is a Port whose reads are fed by the test. Reads time out after a
// few milliseconds like a real port configured with a read timeout.
type fakePort struct {
	reads     chan readResult
	closed    chan struct{}
	closeOnce sync.Once
	closes    *atomic.Int32

	mu       sync.Mutex
	written  [][]byte
	writeErr error
	short    bool
	closeErr error
}

func newFakePort() *fakePort {
	return &fakePort{
		reads:  make(chan readResult, 16),
		closed: make(chan struct{}),
		closes: atomic.NewInt32(0),
	}
}

func (p *fakePort) Read(b []byte) (int, error) {
	select {
	case r := <-p.reads:
		return copy(b, r.data), r.err
	case <-p.closed:
		return 0, errors.New("port has been closed")
	case <-time.After(5 * time.Millisecond):
		return 0, nil
	}
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	if p.short {
		p.written = append(p.written, append([]byte(nil), b[:len(b)-1]...))
		return len(b) - 1, nil
	}
	p.written = append(p.written, append([]byte(nil), b...))
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.closes.Inc()
	p.closeOnce.Do(func() { close(p.closed) })
	return p.closeErr
}

func (p *fakePort) feed(data string) {
	p.reads <- readResult{data: []byte(data)}
}

func (p *fakePort) fail(err error) {
	p.reads <- readResult{err: err}
}

func (p *fakePort) writes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.written))
	for i, w := range p.written {
		out[i] = string(w)
	}
	return out
}

// fakeOpener hands out ports in order
type fakeOpener struct {
	mu    sync.Mutex
	ports []*fakePort
	err   error
	calls int
}

func (o *fakeOpener) Open(_ context.Context, cfg model.ConnectionConfig) (Port, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	if o.err != nil {
		return nil, o.err
	}
	if len(o.ports) == 0 {
		return nil, errors.New("no port available")
	}
	p := o.ports[0]
	o.ports = o.ports[1:]
	return p, nil
}

type testRig struct {
	ctrl     *Controller
	queue    *EventQueue
	settings *Settings
	opener   *fakeOpener

	mu      sync.Mutex
	changes []StateChange
}

func newTestRig(t *testing.T, ports ...*fakePort) *testRig {
	t.Helper()

	rig := &testRig{
		queue:    NewEventQueue(),
		settings: NewSettings(model.DisplayModeASCII, false),
		opener:   &fakeOpener{ports: ports},
	}
	rig.ctrl = NewController(rig.opener, rig.queue, rig.settings, zap.NewNop(),
		WithStateObserver(func(ch StateChange) {
			rig.mu.Lock()
			rig.changes = append(rig.changes, ch)
			rig.mu.Unlock()
		}),
	)
	t.Cleanup(func() { _ = rig.ctrl.Close() })
	return rig
}

func (r *testRig) stateChanges() []StateChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]StateChange(nil), r.changes...)
}

func testConfig(port string) model.ConnectionConfig {
	return model.ConnectionConfig{Port: port, BaudRate: 9600}
}

func payloads(events []model.DataEvent) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = string(ev.Payload)
	}
	return out
}

func waitForEvents(t *testing.T, q *EventQueue, n int) []model.DataEvent {
	t.Helper()
	require.Eventually(t, func() bool { return q.Len() >= n }, time.Second, 5*time.Millisecond)
	return q.Drain()
}

func TestController_OpenAndReceive(t *testing.T) {
	port := newFakePort()
	rig := newTestRig(t, port)

	handle, err := rig.ctrl.Open(context.Background(), testConfig("/dev/ttyTEST0"))
	require.NoError(t, err)
	assert.Equal(t, model.StateOpen, rig.ctrl.State())
	assert.Equal(t, "/dev/ttyTEST0", handle.Config.Port)
	assert.Equal(t, 8, handle.Config.DataBits)
	assert.Equal(t, model.DefaultReadTimeout, handle.Config.ReadTimeout)

	got, ok := rig.ctrl.Handle()
	require.True(t, ok)
	assert.Equal(t, handle.ID, got.ID)

	port.feed("hello\r\nworld\n")
	events := waitForEvents(t, rig.queue, 2)
	assert.Equal(t, []string{"hello", "world"}, payloads(events))
	for _, ev := range events {
		assert.Equal(t, model.DirectionReceived, ev.Direction)
	}

	stats, ok := rig.ctrl.Stats()
	require.True(t, ok)
	assert.EqualValues(t, 14, stats.BytesReceived)
	assert.EqualValues(t, 2, stats.FramesReceived)
}

func TestController_FrameSplitAcrossReads(t *testing.T) {
	port := newFakePort()
	rig := newTestRig(t, port)

	_, err := rig.ctrl.Open(context.Background(), testConfig("/dev/ttyTEST0"))
	require.NoError(t, err)

	port.feed("AB")
	port.feed("CD\n")

	events := waitForEvents(t, rig.queue, 1)
	assert.Equal(t, []string{"ABCD"}, payloads(events))
}

func TestController_ReadErrorDiscardsPartialFrame(t *testing.T) {
	port := newFakePort()
	rig := newTestRig(t, port)

	_, err := rig.ctrl.Open(context.Background(), testConfig("/dev/ttyTEST0"))
	require.NoError(t, err)

	port.feed("partial")
	port.fail(io.EOF)

	require.Eventually(t, func() bool {
		return rig.ctrl.State() == model.StateClosed
	}, time.Second, 5*time.Millisecond)

	assert.Zero(t, rig.queue.Len())
	assert.EqualValues(t, 1, port.closes.Load())

	var linkErr *LinkError
	require.ErrorAs(t, rig.ctrl.LastError(), &linkErr)
	assert.ErrorIs(t, linkErr, io.ErrUnexpectedEOF)

	require.Eventually(t, func() bool { return len(rig.stateChanges()) == 2 }, time.Second, 5*time.Millisecond)
	last := rig.stateChanges()[1]
	assert.Equal(t, model.StateClosed, last.State)
	assert.ErrorAs(t, last.Err, &linkErr)

	_, ok := rig.ctrl.Handle()
	assert.False(t, ok)
	assert.ErrorIs(t, rig.ctrl.Send(context.Background(), "x", model.DisplayModeASCII), ErrNotOpen)
}

func TestController_CloseIsIdempotent(t *testing.T) {
	port := newFakePort()
	rig := newTestRig(t, port)

	assert.NoError(t, rig.ctrl.Close())

	_, err := rig.ctrl.Open(context.Background(), testConfig("/dev/ttyTEST0"))
	require.NoError(t, err)

	assert.NoError(t, rig.ctrl.Close())
	assert.NoError(t, rig.ctrl.Close())
	assert.Equal(t, model.StateClosed, rig.ctrl.State())
	assert.EqualValues(t, 1, port.closes.Load())
	assert.NoError(t, rig.ctrl.LastError())

	changes := rig.stateChanges()
	require.Len(t, changes, 3)
	assert.Equal(t, model.StateOpen, changes[0].State)
	assert.Equal(t, model.StateClosing, changes[1].State)
	assert.Equal(t, model.StateClosed, changes[2].State)
}

func TestController_CloseReportsPortError(t *testing.T) {
	port := newFakePort()
	port.closeErr = errors.New("device vanished")
	rig := newTestRig(t, port)

	_, err := rig.ctrl.Open(context.Background(), testConfig("/dev/ttyTEST0"))
	require.NoError(t, err)

	err = rig.ctrl.Close()
	var closeErr *CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, "/dev/ttyTEST0", closeErr.Port)
	assert.Equal(t, model.StateClosed, rig.ctrl.State())
}

func TestController_NoEventsAfterClose(t *testing.T) {
	port := newFakePort()
	rig := newTestRig(t, port)

	_, err := rig.ctrl.Open(context.Background(), testConfig("/dev/ttyTEST0"))
	require.NoError(t, err)
	require.NoError(t, rig.ctrl.Close())

	port.feed("late\n")
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, rig.queue.Len())
}

func TestController_ReopenReplacesLink(t *testing.T) {
	first, second := newFakePort(), newFakePort()
	rig := newTestRig(t, first, second)

	h1, err := rig.ctrl.Open(context.Background(), testConfig("/dev/ttyTEST0"))
	require.NoError(t, err)
	rig.ctrl.mu.Lock()
	stale := rig.ctrl.link
	rig.ctrl.mu.Unlock()

	h2, err := rig.ctrl.Open(context.Background(), testConfig("/dev/ttyTEST1"))
	require.NoError(t, err)
	assert.NotEqual(t, h1.ID, h2.ID)
	assert.EqualValues(t, 1, first.closes.Load())

	// a late failure of the replaced link must not disturb the new one
	rig.ctrl.linkFailed(stale, io.ErrUnexpectedEOF)
	assert.Equal(t, model.StateOpen, rig.ctrl.State())
	assert.NoError(t, rig.ctrl.LastError())

	current, ok := rig.ctrl.Handle()
	require.True(t, ok)
	assert.Equal(t, h2.ID, current.ID)

	second.feed("from second\n")
	events := waitForEvents(t, rig.queue, 1)
	assert.Equal(t, []string{"from second"}, payloads(events))
}

func TestController_OpenFailureLeavesClosed(t *testing.T) {
	rig := newTestRig(t)
	rig.opener.err = &OpenError{Port: "/dev/ttyTEST0", Reason: OpenBusy, Err: errors.New("resource busy")}

	_, err := rig.ctrl.Open(context.Background(), testConfig("/dev/ttyTEST0"))

	var openErr *OpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, OpenBusy, openErr.Reason)
	assert.Equal(t, model.StateClosed, rig.ctrl.State())
	assert.ErrorAs(t, rig.ctrl.LastError(), &openErr)
	assert.Empty(t, rig.stateChanges())
}

func TestController_OpenUnclassifiedFailure(t *testing.T) {
	rig := newTestRig(t)
	rig.opener.err = errors.New("boom")

	_, err := rig.ctrl.Open(context.Background(), testConfig("/dev/ttyTEST0"))

	var openErr *OpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, OpenUnknown, openErr.Reason)
}

func TestController_OpenInvalidConfig(t *testing.T) {
	rig := newTestRig(t)

	tests := []model.ConnectionConfig{
		{Port: "", BaudRate: 9600},
		{Port: "/dev/ttyTEST0", BaudRate: 0},
		{Port: "/dev/ttyTEST0", BaudRate: 9600, Parity: "sideways"},
	}
	for _, cfg := range tests {
		_, err := rig.ctrl.Open(context.Background(), cfg)
		var openErr *OpenError
		require.ErrorAs(t, err, &openErr)
		assert.Equal(t, OpenInvalidConfig, openErr.Reason)
	}
	assert.Zero(t, rig.opener.calls)
}

func TestController_SendAscii(t *testing.T) {
	port := newFakePort()
	rig := newTestRig(t, port)

	_, err := rig.ctrl.Open(context.Background(), testConfig("/dev/ttyTEST0"))
	require.NoError(t, err)

	require.NoError(t, rig.ctrl.Send(context.Background(), "AT", model.DisplayModeASCII))

	// no delimiter is appended
	assert.Equal(t, []string{"AT"}, port.writes())

	// the event is queued before Send returns
	events := rig.queue.Drain()
	require.Len(t, events, 1)
	assert.Equal(t, model.DirectionSent, events[0].Direction)
	assert.Equal(t, []byte("AT"), events[0].Payload)
}

func TestController_SendHex(t *testing.T) {
	port := newFakePort()
	rig := newTestRig(t, port)

	_, err := rig.ctrl.Open(context.Background(), testConfig("/dev/ttyTEST0"))
	require.NoError(t, err)

	require.NoError(t, rig.ctrl.Send(context.Background(), "01 ff 7E", model.DisplayModeHex))
	assert.Equal(t, []string{"\x01\xff\x7e"}, port.writes())
}

func TestController_SendOrder(t *testing.T) {
	port := newFakePort()
	rig := newTestRig(t, port)

	_, err := rig.ctrl.Open(context.Background(), testConfig("/dev/ttyTEST0"))
	require.NoError(t, err)

	for _, s := range []string{"one", "two", "three"} {
		require.NoError(t, rig.ctrl.Send(context.Background(), s, model.DisplayModeASCII))
	}

	assert.Equal(t, []string{"one", "two", "three"}, port.writes())
	assert.Equal(t, []string{"one", "two", "three"}, payloads(rig.queue.Drain()))
}

func TestController_SendConcurrentWritesMatchEvents(t *testing.T) {
	port := newFakePort()
	rig := newTestRig(t, port)

	_, err := rig.ctrl.Open(context.Background(), testConfig("/dev/ttyTEST0"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = rig.ctrl.Send(context.Background(), string(rune('a'+i)), model.DisplayModeASCII)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, port.writes(), payloads(rig.queue.Drain()))
}

func TestController_SendInvalidHex(t *testing.T) {
	port := newFakePort()
	rig := newTestRig(t, port)

	// rejected even when nothing is open
	err := rig.ctrl.Send(context.Background(), "ABC", model.DisplayModeHex)
	assert.ErrorIs(t, err, codec.ErrInvalidHex)

	_, err = rig.ctrl.Open(context.Background(), testConfig("/dev/ttyTEST0"))
	require.NoError(t, err)

	for _, input := range []string{"ABC", "ZZ", "0x01"} {
		err := rig.ctrl.Send(context.Background(), input, model.DisplayModeHex)
		var hexErr *codec.InvalidHexError
		assert.ErrorAs(t, err, &hexErr, input)
	}

	assert.Empty(t, port.writes())
	assert.Zero(t, rig.queue.Len())
	assert.Equal(t, model.StateOpen, rig.ctrl.State())
}

func TestController_SendEmpty(t *testing.T) {
	port := newFakePort()
	rig := newTestRig(t, port)

	_, err := rig.ctrl.Open(context.Background(), testConfig("/dev/ttyTEST0"))
	require.NoError(t, err)

	assert.ErrorIs(t, rig.ctrl.Send(context.Background(), "", model.DisplayModeASCII), ErrEmptyPayload)
	assert.ErrorIs(t, rig.ctrl.Send(context.Background(), "  ", model.DisplayModeHex), ErrEmptyPayload)
	assert.Empty(t, port.writes())
}

func TestController_SendNotOpen(t *testing.T) {
	rig := newTestRig(t)
	assert.ErrorIs(t, rig.ctrl.Send(context.Background(), "hi", model.DisplayModeASCII), ErrNotOpen)
	assert.Zero(t, rig.queue.Len())
}

func TestController_SendCancelledContext(t *testing.T) {
	port := newFakePort()
	rig := newTestRig(t, port)

	_, err := rig.ctrl.Open(context.Background(), testConfig("/dev/ttyTEST0"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, rig.ctrl.Send(ctx, "hi", model.DisplayModeASCII), context.Canceled)
	assert.Empty(t, port.writes())
}

func TestController_SendFailureClosesLink(t *testing.T) {
	port := newFakePort()
	port.writeErr = errors.New("input/output error")
	rig := newTestRig(t, port)

	_, err := rig.ctrl.Open(context.Background(), testConfig("/dev/ttyTEST0"))
	require.NoError(t, err)

	err = rig.ctrl.Send(context.Background(), "hi", model.DisplayModeASCII)
	var sendErr *SendError
	require.ErrorAs(t, err, &sendErr)
	assert.ErrorIs(t, err, port.writeErr)

	assert.Equal(t, model.StateClosed, rig.ctrl.State())
	var linkErr *LinkError
	assert.ErrorAs(t, rig.ctrl.LastError(), &linkErr)
	assert.EqualValues(t, 1, port.closes.Load())
	assert.Zero(t, rig.queue.Len())
}

func TestController_ShortWriteClosesLink(t *testing.T) {
	port := newFakePort()
	port.short = true
	rig := newTestRig(t, port)

	_, err := rig.ctrl.Open(context.Background(), testConfig("/dev/ttyTEST0"))
	require.NoError(t, err)

	err = rig.ctrl.Send(context.Background(), "hello", model.DisplayModeASCII)
	var sendErr *SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Contains(t, err.Error(), "incomplete write: wrote 4 of 5 bytes")
	assert.Equal(t, model.StateClosed, rig.ctrl.State())
}

func TestController_TimestampPolicy(t *testing.T) {
	port := newFakePort()
	rig := newTestRig(t, port)

	fixed := time.Date(2024, 3, 1, 12, 30, 1, 250_000_000, time.Local)
	rig.ctrl.clock = func() time.Time { return fixed }

	_, err := rig.ctrl.Open(context.Background(), testConfig("/dev/ttyTEST0"))
	require.NoError(t, err)

	require.NoError(t, rig.ctrl.Send(context.Background(), "off", model.DisplayModeASCII))
	rig.settings.SetTimestamps(true)
	require.NoError(t, rig.ctrl.Send(context.Background(), "on", model.DisplayModeASCII))

	events := rig.queue.Drain()
	require.Len(t, events, 2)
	assert.False(t, events[0].HasTimestamp())
	require.True(t, events[1].HasTimestamp())
	assert.Equal(t, fixed, *events[1].Timestamp)

	port.feed("rx\n")
	events = waitForEvents(t, rig.queue, 1)
	require.True(t, events[0].HasTimestamp())
	assert.Equal(t, fixed, *events[0].Timestamp)
}

func TestController_OpenWithCancelledContext(t *testing.T) {
	rig := newTestRig(t, newFakePort())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := rig.ctrl.Open(ctx, testConfig("/dev/ttyTEST0"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, rig.opener.calls)
}

func TestController_CharsetCodec(t *testing.T) {
	port := newFakePort()
	gbk, err := codec.New("gbk")
	require.NoError(t, err)

	queue := NewEventQueue()
	ctrl := NewController(&fakeOpener{ports: []*fakePort{port}}, queue,
		NewSettings(model.DisplayModeASCII, false), zap.NewNop(), WithCodec(gbk))
	t.Cleanup(func() { _ = ctrl.Close() })

	_, err = ctrl.Open(context.Background(), testConfig("/dev/ttyTEST0"))
	require.NoError(t, err)

	require.NoError(t, ctrl.Send(context.Background(), "你好", model.DisplayModeASCII))
	assert.Equal(t, []string{"\xc4\xe3\xba\xc3"}, port.writes())
}

// stuckPort is a Port whose Read ignores Close until released
type stuckPort struct {
	*fakePort
	reading     chan struct{}
	readingOnce sync.Once
	release     chan struct{}
}

func newStuckPort() *stuckPort {
	return &stuckPort{
		fakePort: newFakePort(),
		reading:  make(chan struct{}),
		release:  make(chan struct{}),
	}
}

func (p *stuckPort) Read([]byte) (int, error) {
	p.readingOnce.Do(func() { close(p.reading) })
	select {
	case <-p.release:
	case <-time.After(2 * time.Second):
	}
	return 0, nil
}

// blockingOpener holds Open until released, regardless of ctx
type blockingOpener struct {
	port    *fakePort
	entered chan struct{}
	release chan struct{}
}

func newBlockingOpener(port *fakePort) *blockingOpener {
	return &blockingOpener{
		port:    port,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (o *blockingOpener) Open(context.Context, model.ConnectionConfig) (Port, error) {
	close(o.entered)
	<-o.release
	return o.port, nil
}

func within(t *testing.T, d time.Duration, fn func()) {
	t.Helper()
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		fn()
	}()
	select {
	case <-finished:
	case <-time.After(d):
		t.Fatalf("call did not return within %s", d)
	}
}

func TestController_CloseDoesNotWaitForRead(t *testing.T) {
	port := newStuckPort()
	t.Cleanup(func() { close(port.release) })

	ctrl := NewController(OpenerFunc(func(context.Context, model.ConnectionConfig) (Port, error) {
		return port, nil
	}), NewEventQueue(), NewSettings(model.DisplayModeASCII, false), zap.NewNop())

	_, err := ctrl.Open(context.Background(), testConfig("/dev/ttyTEST0"))
	require.NoError(t, err)
	ctrl.mu.Lock()
	l := ctrl.link
	ctrl.mu.Unlock()

	select {
	case <-port.reading:
	case <-time.After(time.Second):
		t.Fatal("receiver never started reading")
	}

	start := time.Now()
	require.NoError(t, ctrl.Close())
	assert.Less(t, time.Since(start), 200*time.Millisecond)
	assert.Equal(t, model.StateClosed, ctrl.State())
	assert.EqualValues(t, 1, port.closes.Load())

	// the receiver exits once its read returns
	require.Eventually(t, func() bool {
		select {
		case <-l.done:
			return true
		default:
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)
}

func TestController_StateWhileOpenerBlocked(t *testing.T) {
	port := newFakePort()
	opener := newBlockingOpener(port)
	ctrl := NewController(opener, NewEventQueue(), NewSettings(model.DisplayModeASCII, false), zap.NewNop())
	t.Cleanup(func() { _ = ctrl.Close() })

	opened := make(chan error, 1)
	go func() {
		_, err := ctrl.Open(context.Background(), testConfig("/dev/ttyTEST0"))
		opened <- err
	}()
	<-opener.entered

	within(t, 100*time.Millisecond, func() {
		assert.Equal(t, model.StateClosed, ctrl.State())
		_, ok := ctrl.Handle()
		assert.False(t, ok)
		assert.NoError(t, ctrl.LastError())
	})

	close(opener.release)
	require.NoError(t, <-opened)
	assert.Equal(t, model.StateOpen, ctrl.State())
}

func TestController_CloseAbortsOpenInProgress(t *testing.T) {
	port := newFakePort()
	opener := newBlockingOpener(port)
	var (
		mu      sync.Mutex
		changes []StateChange
	)
	ctrl := NewController(opener, NewEventQueue(), NewSettings(model.DisplayModeASCII, false), zap.NewNop(),
		WithStateObserver(func(ch StateChange) {
			mu.Lock()
			changes = append(changes, ch)
			mu.Unlock()
		}))

	opened := make(chan error, 1)
	go func() {
		_, err := ctrl.Open(context.Background(), testConfig("/dev/ttyTEST0"))
		opened <- err
	}()
	<-opener.entered

	within(t, 100*time.Millisecond, func() { assert.NoError(t, ctrl.Close()) })

	close(opener.release)
	assert.ErrorIs(t, <-opened, ErrOpenAborted)
	assert.Equal(t, model.StateClosed, ctrl.State())
	assert.EqualValues(t, 1, port.closes.Load())

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, changes)
}

func TestController_ContextCancelledWhileOpening(t *testing.T) {
	port := newFakePort()
	opener := newBlockingOpener(port)
	ctrl := NewController(opener, NewEventQueue(), NewSettings(model.DisplayModeASCII, false), zap.NewNop())
	t.Cleanup(func() { _ = ctrl.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	opened := make(chan error, 1)
	go func() {
		_, err := ctrl.Open(ctx, testConfig("/dev/ttyTEST0"))
		opened <- err
	}()
	<-opener.entered

	cancel()
	close(opener.release)

	assert.ErrorIs(t, <-opened, context.Canceled)
	assert.Equal(t, model.StateClosed, ctrl.State())
	assert.EqualValues(t, 1, port.closes.Load())
}

func TestController_ClosingIsObservable(t *testing.T) {
	port := newFakePort()
	var (
		ctrl   *Controller
		mu     sync.Mutex
		states []model.ConnectionState
		during model.ConnectionState
	)
	ctrl = NewController(&fakeOpener{ports: []*fakePort{port}}, NewEventQueue(),
		NewSettings(model.DisplayModeASCII, false), zap.NewNop(),
		WithStateObserver(func(ch StateChange) {
			mu.Lock()
			defer mu.Unlock()
			states = append(states, ch.State)
			if ch.State == model.StateClosing {
				during = ctrl.State()
			}
		}))

	_, err := ctrl.Open(context.Background(), testConfig("/dev/ttyTEST0"))
	require.NoError(t, err)
	require.NoError(t, ctrl.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []model.ConnectionState{model.StateOpen, model.StateClosing, model.StateClosed}, states)
	assert.Equal(t, model.StateClosing, during)
}
