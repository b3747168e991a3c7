// Package recorder writes a rotating JSONL trace of interaction sessions:
// every screen transition, popup dismissal, profile interaction and break
// lands here, so a failed run can be replayed step by step.
package recorder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const (
	MaxRotatedFiles = 3
	TraceDir        = "data/traces"
)

// Event types written to the trace.
const (
	EventSessionStart = "session_start"
	EventSessionEnd   = "session_end"
	EventScreen       = "screen"
	EventPopup        = "popup"
	EventInteraction  = "interaction"
	EventSkip         = "skip"
	EventBreak        = "break"
	EventError        = "error"
)

// Event is a single record in the session trace.
type Event struct {
	Timestamp time.Time `json:"ts"`
	Type      string    `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Username  string    `json:"username,omitempty"`
	Data      any       `json:"data,omitempty"`
}

// Recorder manages rotating trace files, one per session.
type Recorder struct {
	mu        sync.Mutex
	file      *os.File
	encoder   *json.Encoder
	basePath  string
	sessionID string
}

// NewRecorder creates a recorder writing under basePath, creating it if
// needed.
func NewRecorder(basePath string) (*Recorder, error) {
	if basePath == "" {
		basePath = TraceDir
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, err
	}
	return &Recorder{basePath: basePath}, nil
}

// Start opens a new trace file for a session, rotating out the oldest ones.
func (r *Recorder) Start(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		_ = r.file.Close()
		r.file = nil
	}

	if err := r.rotate(); err != nil {
		return fmt.Errorf("rotate traces: %w", err)
	}

	filename := fmt.Sprintf("session_%s_%d.jsonl", sessionID, time.Now().UnixMilli())
	path := filepath.Join(r.basePath, filename)
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	r.file = f
	r.encoder = json.NewEncoder(f)
	r.sessionID = sessionID
	return nil
}

// Screen records a screen classification result.
func (r *Recorder) Screen(kind, popup string) {
	data := map[string]string{"kind": kind}
	if popup != "" {
		data["popup"] = popup
	}
	r.log(EventScreen, "", data)
}

// Popup records a popup dismissal attempt.
func (r *Recorder) Popup(kind string, dismissed bool) {
	r.log(EventPopup, "", map[string]any{"kind": kind, "dismissed": dismissed})
}

// Interaction records the outcome of one profile visit.
func (r *Recorder) Interaction(username string, data any) {
	r.log(EventInteraction, username, data)
}

// Skip records a profile skipped before navigation, with the reason.
func (r *Recorder) Skip(username, reason string) {
	r.log(EventSkip, username, map[string]string{"reason": reason})
}

// Break records a human-behavior pause.
func (r *Recorder) Break(kind string, d time.Duration) {
	r.log(EventBreak, "", map[string]any{"kind": kind, "seconds": d.Seconds()})
}

// Error records a non-fatal session error.
func (r *Recorder) Error(username, kind string, err error) {
	data := map[string]string{"kind": kind}
	if err != nil {
		data["error"] = err.Error()
	}
	r.log(EventError, username, data)
}

// Log writes an arbitrary event. The typed helpers above cover the common
// cases; this is the escape hatch for session start/end payloads.
func (r *Recorder) Log(eventType string, data any) {
	r.log(eventType, "", data)
}

func (r *Recorder) log(eventType, username string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.encoder == nil {
		return
	}

	_ = r.encoder.Encode(Event{
		Timestamp: time.Now(),
		Type:      eventType,
		SessionID: r.sessionID,
		Username:  username,
		Data:      data,
	})
}

// rotate keeps only the newest MaxRotatedFiles traces.
func (r *Recorder) rotate() error {
	entries, err := os.ReadDir(r.basePath)
	if err != nil {
		return err
	}

	var traces []struct {
		Name string
		Time time.Time
	}

	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".jsonl" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		traces = append(traces, struct {
			Name string
			Time time.Time
		}{e.Name(), info.ModTime()})
	}

	sort.Slice(traces, func(i, j int) bool {
		return traces[i].Time.After(traces[j].Time)
	})

	if len(traces) >= MaxRotatedFiles {
		keep := MaxRotatedFiles - 1
		for i := keep; i < len(traces); i++ {
			_ = os.Remove(filepath.Join(r.basePath, traces[i].Name))
		}
	}
	return nil
}

// Close finishes the current trace.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		r.encoder = nil
		return err
	}
	return nil
}
