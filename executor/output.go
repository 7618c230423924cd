package executor

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// Capture accumulates the text one execution writes. Each Execute call gets
// a fresh Capture, so it starts empty.
type Capture struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func NewCapture() *Capture {
	return &Capture{}
}

func (c *Capture) Write(data []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(data)
}

func (c *Capture) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

func (c *Capture) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Len()
}

// redirectWriter is the interpreter's standard output. Writes go to the
// current target; between executions the target discards.
type redirectWriter struct {
	target io.Writer
	mu     sync.Mutex
}

func newRedirectWriter() *redirectWriter {
	return &redirectWriter{target: io.Discard}
}

func (r *redirectWriter) Write(data []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.target.Write(data); err != nil {
		return 0, err
	}
	return len(data), nil
}

// redirect sends writes to w until the returned restore func is called.
func (r *redirectWriter) redirect(w io.Writer) (restore func()) {
	r.mu.Lock()
	prev := r.target
	r.target = w
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			r.target = prev
			r.mu.Unlock()
		})
	}
}

// logWriter turns the interpreter's standard error into log records, one
// per line. It never reaches a Capture: only standard output is captured.
type logWriter struct {
	logger *slog.Logger
	attrs  []any
	mu     sync.Mutex
	buf    bytes.Buffer
}

func newLogWriter(logger *slog.Logger, attrs ...any) *logWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &logWriter{logger: logger, attrs: attrs}
}

func (l *logWriter) Write(data []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf.Write(data)
	for {
		line, err := l.buf.ReadString('\n')
		if err != nil {
			// incomplete line, keep it for the next write
			l.buf.Reset()
			l.buf.WriteString(line)
			break
		}
		l.emit(line)
	}
	return len(data), nil
}

// Flush logs any buffered partial line.
func (l *logWriter) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.buf.Len() > 0 {
		l.emit(l.buf.String())
		l.buf.Reset()
	}
}

func (l *logWriter) emit(line string) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return
	}
	l.logger.Info("interpreter stderr", append([]any{"line", line}, l.attrs...)...)
}
