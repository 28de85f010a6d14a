package telemetry

import (
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/phuslu/log"
)

var (
	mu     sync.RWMutex
	logger = newLogger(os.Stdout)
)

func newLogger(w io.Writer) *log.Logger {
	return &log.Logger{
		Level:      log.InfoLevel,
		TimeField:  "ts",
		TimeFormat: time.RFC3339,
		Writer:     &log.IOWriter{Writer: w},
	}
}

// SetOutput redirects log lines to w and returns a func restoring the previous writer.
func SetOutput(w io.Writer) func() {
	mu.Lock()
	prev := logger
	logger = newLogger(w)
	mu.Unlock()
	return func() {
		mu.Lock()
		logger = prev
		mu.Unlock()
	}
}

// Info writes an info-level log line with the given fields.
func Info(msg string, fields map[string]any) {
	write(current().Info(), msg, fields)
}

// Warn writes a warn-level log line with the given fields.
func Warn(msg string, fields map[string]any) {
	write(current().Warn(), msg, fields)
}

// Error writes an error-level log line with the given fields.
func Error(msg string, fields map[string]any) {
	write(current().Error(), msg, fields)
}

func current() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func write(entry *log.Entry, msg string, fields map[string]any) {
	if entry == nil {
		return
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := fields[k].(type) {
		case error:
			entry = entry.Str(k, v.Error())
		case string:
			entry = entry.Str(k, v)
		default:
			entry = entry.Any(k, v)
		}
	}
	entry.Msg(msg)
}
