package terminal

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Color is an ANSI foreground color.
type Color int

const (
	ColorDefault Color = 0
	ColorRed     Color = 31
	ColorGreen   Color = 32
	ColorYellow  Color = 33
	ColorBlue    Color = 34
	ColorMagenta Color = 35
	ColorCyan    Color = 36
	ColorWhite   Color = 37
)

// Terminal is the output collaborator a session renders through. The core
// owns no rendering logic; implementations decide how text reaches the
// client.
type Terminal interface {
	Print(s string)
	Println(s string)
	Printf(format string, args ...any)
	// ReadKey blocks for a single key press.
	ReadKey() (byte, error)
	// ReadLine blocks for a full line of input, without the line ending.
	ReadLine() (string, error)
	SetColor(c Color)
	// WithColor runs fn with the color applied and restores the previous
	// color even if fn panics.
	WithColor(c Color, fn func())
	Flush() error
}

// ANSI renders over a raw byte stream using ANSI escape codes. Writes from
// concurrent goroutines (bus fan-out, heartbeat) are serialized.
type ANSI struct {
	mu    sync.Mutex
	w     *bufio.Writer
	r     *bufio.Reader
	color Color
}

// NewANSI wraps a bidirectional stream.
func NewANSI(rw io.ReadWriter) *ANSI {
	return &ANSI{
		w: bufio.NewWriter(rw),
		r: bufio.NewReader(rw),
	}
}

func (t *ANSI) Print(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.w.WriteString(s)
}

func (t *ANSI) Println(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.w.WriteString(s)
	t.w.WriteString("\r\n")
}

func (t *ANSI) Printf(format string, args ...any) {
	t.Print(fmt.Sprintf(format, args...))
}

func (t *ANSI) ReadKey() (byte, error) {
	if err := t.Flush(); err != nil {
		return 0, err
	}
	return t.r.ReadByte()
}

func (t *ANSI) ReadLine() (string, error) {
	if err := t.Flush(); err != nil {
		return "", err
	}
	line, err := t.r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (t *ANSI) SetColor(c Color) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setColorLocked(c)
}

func (t *ANSI) WithColor(c Color, fn func()) {
	t.mu.Lock()
	prev := t.color
	t.setColorLocked(c)
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.setColorLocked(prev)
		t.mu.Unlock()
	}()
	fn()
}

func (t *ANSI) setColorLocked(c Color) {
	t.color = c
	if c == ColorDefault {
		t.w.WriteString("\x1b[0m")
		return
	}
	fmt.Fprintf(t.w, "\x1b[%dm", c)
}

func (t *ANSI) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.w.Flush()
}
