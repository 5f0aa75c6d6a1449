package progress

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrorEntry is one failed item.
type ErrorEntry struct {
	Item      string
	Error     string
	Timestamp time.Time
}

// ErrorLogger records failed items and appends them to a log file, one
// line per failure.
type ErrorLogger struct {
	mu      sync.Mutex
	logFile string
	errors  []ErrorEntry
	file    *os.File
	now     func() time.Time
}

// NewErrorLogger creates an error logger. An empty logFile keeps entries in
// memory only.
func NewErrorLogger(logFile string) (*ErrorLogger, error) {
	l := &ErrorLogger{logFile: logFile, now: time.Now}
	if logFile == "" {
		return l, nil
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		return nil, fmt.Errorf("could not create log directory: %w", err)
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("could not open log file: %w", err)
	}
	l.file = f
	return l, nil
}

// Log records err for item.
func (l *ErrorLogger) Log(item string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := ErrorEntry{Item: item, Error: err.Error(), Timestamp: l.now()}
	l.errors = append(l.errors, e)
	if l.file != nil {
		fmt.Fprintf(l.file, "%s | %s | %s\n", e.Timestamp.Format(time.RFC3339), e.Item, e.Error)
	}
}

// Entries returns a copy of the logged failures.
func (l *ErrorLogger) Entries() []ErrorEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ErrorEntry(nil), l.errors...)
}

// Summary returns a one-line summary of logged errors.
func (l *ErrorLogger) Summary() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch {
	case len(l.errors) == 0:
		return "No errors"
	case l.logFile == "":
		return fmt.Sprintf("%d errors", len(l.errors))
	}
	return fmt.Sprintf("%d errors logged to %s", len(l.errors), l.logFile)
}

func (l *ErrorLogger) ErrorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors)
}

// Close closes the log file.
func (l *ErrorLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
