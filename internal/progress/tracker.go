package progress

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Status is the outcome recorded for an item.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Entry is one processed item.
type Entry struct {
	Status Status `json:"status"`
	// Fingerprint identifies the input state the outcome applies to. A
	// success only counts while the fingerprint is unchanged.
	Fingerprint string `json:"fingerprint"`
	Output      string `json:"output,omitempty"`
	Error       string `json:"error,omitempty"`
	Timestamp   string `json:"timestamp"`
}

// trackerData is the persisted form.
type trackerData struct {
	Items   map[string]*Entry `json:"items"`
	Updated string            `json:"updated"`
	Summary struct {
		Success int `json:"success"`
		Error   int `json:"error"`
		Total   int `json:"total"`
	} `json:"summary"`
}

// Tracker records per-item outcomes so that interrupted runs can resume.
// It is saved after every change.
type Tracker struct {
	mu     sync.Mutex
	path   string
	items  map[string]*Entry
	logger *slog.Logger
}

// NewTracker loads path if it exists. An empty path keeps state in memory.
func NewTracker(path string, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{path: path, items: make(map[string]*Entry), logger: logger.With("component", "progress")}
	if path != "" {
		t.load()
	}
	return t
}

func (t *Tracker) load() {
	data, err := os.ReadFile(t.path)
	if err != nil {
		return
	}
	var d trackerData
	if err := json.Unmarshal(data, &d); err != nil {
		t.logger.Warn("could not load progress file", "path", t.path, "error", err)
		return
	}
	if d.Items != nil {
		t.items = d.Items
	}
	t.logger.Info("progress loaded", "succeeded", t.countStatus(StatusSuccess), "failed", t.countStatus(StatusError))
}

func (t *Tracker) save() {
	if t.path == "" {
		return
	}
	d := trackerData{Items: t.items, Updated: time.Now().Format(time.RFC3339)}
	d.Summary.Success = t.countStatus(StatusSuccess)
	d.Summary.Error = t.countStatus(StatusError)
	d.Summary.Total = len(t.items)

	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		t.logger.Warn("could not marshal progress", "error", err)
		return
	}
	if err := os.WriteFile(t.path, data, 0o644); err != nil {
		t.logger.Warn("could not save progress", "path", t.path, "error", err)
	}
}

func (t *Tracker) countStatus(s Status) int {
	n := 0
	for _, e := range t.items {
		if e.Status == s {
			n++
		}
	}
	return n
}

// IsDone reports whether item succeeded with the same fingerprint.
func (t *Tracker) IsDone(item, fingerprint string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.items[item]
	return ok && e.Status == StatusSuccess && e.Fingerprint == fingerprint
}

// MarkSuccess records a successful item and where its output went.
func (t *Tracker) MarkSuccess(item, fingerprint, output string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items[item] = &Entry{
		Status:      StatusSuccess,
		Fingerprint: fingerprint,
		Output:      output,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
	t.save()
}

// MarkError records a failed item.
func (t *Tracker) MarkError(item, fingerprint string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items[item] = &Entry{
		Status:      StatusError,
		Fingerprint: fingerprint,
		Error:       err.Error(),
		Timestamp:   time.Now().Format(time.RFC3339),
	}
	t.save()
}

// Output returns the output recorded for a successful item.
func (t *Tracker) Output(item string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.items[item]
	if !ok || e.Status != StatusSuccess {
		return "", false
	}
	return e.Output, true
}

// ClearFailed removes failed entries so they are retried.
func (t *Tracker) ClearFailed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for k, e := range t.items {
		if e.Status == StatusError {
			delete(t.items, k)
			n++
		}
	}
	if n > 0 {
		t.save()
		t.logger.Info("cleared failed entries", "count", n)
	}
	return n
}

// Stats returns success and error counts.
func (t *Tracker) Stats() (success, failed int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.countStatus(StatusSuccess), t.countStatus(StatusError)
}
