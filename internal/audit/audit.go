package audit

import (
	"fmt"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Log appends every raw received line to a size-rotated file. Rotation
// keeps the newest MaxBackups files; writes are serialized because lines
// arrive from every transport goroutine at once.
type Log struct {
	mu  sync.Mutex
	out *lumberjack.Logger
	now func() time.Time
}

func New(path string, maxSizeMB, maxBackups int) *Log {
	return &Log{
		out: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
		},
		now: time.Now,
	}
}

func (l *Log) Write(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "%s %s\n", l.now().UTC().Format(time.RFC3339), line)
}

// Sink adapts the log for the protocol engine's audit hook.
func (l *Log) Sink() func(string) {
	return l.Write
}

func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Close()
}
