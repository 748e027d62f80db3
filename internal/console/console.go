// internal/console/console.go
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"serial-terminal/internal/model"
	"serial-terminal/internal/service"
	"serial-terminal/internal/terminal"
)

const (
	commandPrefix   = "/"
	portScanTimeout = 10 * time.Second
)

// Terminal is the part of the terminal service the console drives
type Terminal interface {
	ListPorts(ctx context.Context) ([]model.PortDescriptor, error)
	Open(ctx context.Context, cfg model.ConnectionConfig) (terminal.Handle, error)
	Close() error
	Send(ctx context.Context, text string) error
	Mode() model.DisplayMode
	SetMode(mode model.DisplayMode)
	Timestamps() bool
	SetTimestamps(enabled bool)
	Status() service.Status
}

// Console is a line-oriented operator console. Lines starting with "/" are
// commands; every other line is sent to the open port. Rendered records are
// printed as the service drains them.
type Console struct {
	term       Terminal
	in         io.Reader
	out        io.Writer
	outMu      sync.Mutex
	lineEnding string
	logger     *zap.Logger
}

// New creates a console reading commands from in and printing to out.
// lineEnding is appended to every Ascii-mode send.
func New(term Terminal, in io.Reader, out io.Writer, lineEnding string, logger *zap.Logger) *Console {
	return &Console{
		term:       term,
		in:         in,
		out:        out,
		lineEnding: lineEnding,
		logger:     logger.With(zap.String("component", "console")),
	}
}

// Run reads input until EOF, /quit or ctx cancellation
func (c *Console) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	c.println("Serial terminal ready. Type /help for commands.")

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-scanErr:
			if err != nil {
				return fmt.Errorf("failed to read console input: %w", err)
			}
			return nil
		case line := <-lines:
			if quit := c.handleLine(ctx, line); quit {
				return nil
			}
		}
	}
}

// OnRecord implements service.Listener
func (c *Console) OnRecord(rec model.Record) {
	c.println(rec.Line())
}

// OnState implements service.Listener
func (c *Console) OnState(ev service.StateEvent) {
	switch {
	case ev.State == model.StateOpen && ev.Handle != nil:
		c.printf("*** opened %s\n", ev.Handle.Config)
	case ev.State == model.StateClosing:
		c.println("*** closing")
	case ev.Error != "":
		c.printf("*** closed: %s\n", ev.Error)
	default:
		c.println("*** closed")
	}
}

func (c *Console) handleLine(ctx context.Context, line string) bool {
	line = strings.TrimSuffix(line, "\r")
	if strings.TrimSpace(line) == "" {
		return false
	}

	// "//text" sends "/text"
	if strings.HasPrefix(line, commandPrefix) && !strings.HasPrefix(line, commandPrefix+commandPrefix) {
		return c.handleCommand(ctx, strings.Fields(line[len(commandPrefix):]))
	}
	if strings.HasPrefix(line, commandPrefix+commandPrefix) {
		line = line[len(commandPrefix):]
	}

	c.send(ctx, line)
	return false
}

func (c *Console) send(ctx context.Context, line string) {
	text := line
	if c.term.Mode() == model.DisplayModeASCII {
		unescaped, err := Unescape(line)
		if err != nil {
			c.printf("error: %v\n", err)
			return
		}
		text = unescaped + c.lineEnding
	}

	if err := c.term.Send(ctx, text); err != nil {
		c.logger.Debug("Console send failed", zap.Error(err))
		c.printf("error: %v\n", err)
	}
}

func (c *Console) handleCommand(ctx context.Context, args []string) bool {
	if len(args) == 0 {
		c.printHelp()
		return false
	}

	cmd, args := strings.ToLower(args[0]), args[1:]
	switch cmd {
	case "quit", "exit", "q":
		return true
	case "help", "?":
		c.printHelp()
	case "ports":
		c.listPorts(ctx)
	case "open":
		c.open(ctx, args)
	case "close":
		if err := c.term.Close(); err != nil {
			c.printf("error: %v\n", err)
		}
	case "mode":
		c.setMode(args)
	case "ts":
		c.setTimestamps(args)
	case "status":
		c.printStatus()
	default:
		c.printf("unknown command /%s, type /help\n", cmd)
	}
	return false
}

func (c *Console) listPorts(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, portScanTimeout)
	defer cancel()

	ports, err := c.term.ListPorts(ctx)
	if err != nil {
		c.printf("error: %v\n", err)
		return
	}
	if len(ports) == 0 {
		c.println("no serial ports found")
		return
	}
	for _, p := range ports {
		if p.IsUSB {
			parts := []string{fmt.Sprintf("  %s  [%s:%s]", p.Name, p.VID, p.PID)}
			if p.Product != "" {
				parts = append(parts, p.Product)
			}
			if p.Vendor != "" {
				parts = append(parts, "("+strings.TrimSpace(p.Vendor+" "+p.Adapter)+")")
			}
			c.println(strings.Join(parts, " "))
		} else {
			c.printf("  %s\n", p.Name)
		}
	}
}

func (c *Console) open(ctx context.Context, args []string) {
	var cfg model.ConnectionConfig
	if len(args) > 0 {
		cfg.Port = args[0]
	}
	if len(args) > 1 {
		baud, err := strconv.Atoi(args[1])
		if err != nil || baud <= 0 {
			c.printf("error: invalid baud rate %q\n", args[1])
			return
		}
		cfg.BaudRate = baud
	}

	if _, err := c.term.Open(ctx, cfg); err != nil {
		c.printf("error: %v\n", err)
	}
}

func (c *Console) setMode(args []string) {
	if len(args) == 0 {
		c.printf("mode: %s\n", c.term.Mode())
		return
	}
	mode, err := model.ParseDisplayMode(args[0])
	if err != nil {
		c.printf("error: %v\n", err)
		return
	}
	c.term.SetMode(mode)
	c.printf("mode: %s\n", mode)
}

func (c *Console) setTimestamps(args []string) {
	if len(args) == 0 {
		c.printf("timestamps: %s\n", onOff(c.term.Timestamps()))
		return
	}
	switch strings.ToLower(args[0]) {
	case "on", "true", "1":
		c.term.SetTimestamps(true)
	case "off", "false", "0":
		c.term.SetTimestamps(false)
	default:
		c.printf("error: expected on or off, got %q\n", args[0])
		return
	}
	c.printf("timestamps: %s\n", onOff(c.term.Timestamps()))
}

func (c *Console) printStatus() {
	st := c.term.Status()

	var b strings.Builder
	fmt.Fprintf(&b, "state:      %s\n", st.State)
	if st.Handle != nil {
		fmt.Fprintf(&b, "port:       %s\n", st.Handle.Config)
		fmt.Fprintf(&b, "opened:     %s\n", st.Handle.OpenedAt.Format(time.RFC3339))
	}
	if st.Stats != nil {
		fmt.Fprintf(&b, "rx:         %d bytes, %d frames\n", st.Stats.BytesReceived, st.Stats.FramesReceived)
		fmt.Fprintf(&b, "tx:         %d bytes, %d sends\n", st.Stats.BytesSent, st.Stats.FramesSent)
	}
	fmt.Fprintf(&b, "mode:       %s\n", st.Mode)
	fmt.Fprintf(&b, "timestamps: %s\n", onOff(st.Timestamps))
	fmt.Fprintf(&b, "charset:    %s\n", st.Charset)
	if st.LastError != "" {
		fmt.Fprintf(&b, "last error: %s\n", st.LastError)
	}

	c.outMu.Lock()
	defer c.outMu.Unlock()
	io.WriteString(c.out, b.String())
}

func (c *Console) printHelp() {
	c.println(`Commands:
  /ports              list serial ports
  /open [port] [baud] open a port (defaults from config)
  /close              close the port
  /mode [ascii|hex]   show or switch display and input mode
  /ts [on|off]        show or toggle timestamps
  /status             show connection status
  /quit               exit
Any other line is sent. In ascii mode \n \r \t \\ \xHH are expanded;
in hex mode type byte pairs such as "48 65 6C".
Start a line with // to send text beginning with /.`)
}

func (c *Console) println(s string) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintln(c.out, s)
}

func (c *Console) printf(format string, args ...interface{}) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
