package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	defaultLogLines      = 1000
	defaultBatchSize     = 10
	defaultFlushInterval = 100 * time.Millisecond
	feedBuffer           = 100
)

// Logger keeps the most recent diagnostic lines in memory, mirrors them to
// an optional append-only file and feeds them to a live viewer channel.
// A nil *Logger discards everything.
type Logger struct {
	mu     sync.Mutex
	lines  *ring[string]
	clock  Clock
	prefix string

	filePath string
	file     *os.File
	ch       chan string // viewer feed, drops when full
	sink     chan string // file writer queue
	done     chan struct{}
	closed   bool
}

// NewLogger creates a logger keeping capacity lines. An empty filePath keeps
// lines in memory only.
func NewLogger(filePath string, capacity int) *Logger {
	if capacity <= 0 {
		capacity = defaultLogLines
	}

	l := &Logger{
		lines:    newRing[string](capacity),
		clock:    RealClock{},
		filePath: filePath,
		ch:       make(chan string, feedBuffer),
	}

	if err := l.openFile(); err != nil || l.file == nil {
		return l
	}

	l.sink = make(chan string, feedBuffer)
	l.done = make(chan struct{})
	go l.writer()

	return l
}

func (l *Logger) openFile() error {
	if l.filePath == "" {
		return nil
	}

	if dir := filepath.Dir(l.filePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(l.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return err
	}
	l.file = f
	return nil
}

// withSession tags subsequent lines with a short session id.
func (l *Logger) withSession(id string, clock Clock) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(id) > 8 {
		id = id[:8]
	}
	l.prefix = id
	if clock != nil {
		l.clock = clock
	}
}

func (l *Logger) Printf(format string, args ...any) {
	if l == nil {
		return
	}
	l.Write(fmt.Sprintf(format, args...))
}

// Write appends one line, stamped with the clock time.
func (l *Logger) Write(msg string) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	ts := l.clock.Now().Format("15:04:05.000")
	line := fmt.Sprintf("[%s] %s", ts, msg)
	if l.prefix != "" {
		line = fmt.Sprintf("[%s] [%s] %s", ts, l.prefix, msg)
	}
	l.lines.push(line)

	select {
	case l.ch <- line:
	default:
	}

	if l.sink != nil {
		select {
		case l.sink <- line:
		default:
		}
	}
}

// Lines returns the retained lines, oldest first.
func (l *Logger) Lines() []string {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lines.slice()
}

func (l *Logger) ReadAll() string {
	lines := l.Lines()
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// Chan is the live feed. Lines are dropped when nobody drains it.
func (l *Logger) Chan() <-chan string {
	if l == nil {
		return nil
	}
	return l.ch
}

func (l *Logger) writer() {
	defer close(l.done)

	batch := make([]string, 0, defaultBatchSize)
	ticker := time.NewTicker(defaultFlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		l.file.WriteString(strings.Join(batch, "\n") + "\n")
		batch = batch[:0]
	}

	for {
		select {
		case msg, ok := <-l.sink:
			if !ok {
				flush()
				return
			}
			batch = append(batch, msg)
			if len(batch) >= defaultBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// Close flushes pending lines and closes the file and the live feed.
func (l *Logger) Close() {
	if l == nil {
		return
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	close(l.ch)
	if l.sink != nil {
		close(l.sink)
	}
	l.mu.Unlock()

	if l.done != nil {
		<-l.done
	}
	if l.file != nil {
		l.file.Close()
	}
}
