package recorder

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRecorderRotation(t *testing.T) {
	tempDir := t.TempDir()

	r, err := NewRecorder(tempDir)
	if err != nil {
		t.Fatal(err)
	}

	// Start more sessions than the rotation keeps.
	for i := 0; i < MaxRotatedFiles+2; i++ {
		if err := r.Start("sess"); err != nil {
			t.Fatal(err)
		}
		r.Interaction("someone", map[string]bool{"liked": true})
		time.Sleep(10 * time.Millisecond) // distinct mod times
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != MaxRotatedFiles {
		t.Errorf("expected %d files, got %d", MaxRotatedFiles, len(entries))
	}
}

func TestRecorderEvents(t *testing.T) {
	tempDir := t.TempDir()

	r, err := NewRecorder(tempDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Start("session1"); err != nil {
		t.Fatal(err)
	}

	r.Screen("list", "")
	r.Popup("suggestions", true)
	r.Skip("bot_account", "already_processed")
	r.Break("short", 7*time.Second)
	r.Close()

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 trace file, got %d", len(entries))
	}

	f, err := os.Open(filepath.Join(tempDir, entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var types []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var evt Event
		if err := json.Unmarshal(sc.Bytes(), &evt); err != nil {
			t.Fatalf("bad trace line %q: %v", sc.Text(), err)
		}
		if evt.SessionID != "session1" {
			t.Errorf("event %q has session %q", evt.Type, evt.SessionID)
		}
		types = append(types, evt.Type)
	}

	want := []string{EventScreen, EventPopup, EventSkip, EventBreak}
	if len(types) != len(want) {
		t.Fatalf("got %d events, want %d", len(types), len(want))
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event[%d] = %q, want %q", i, types[i], want[i])
		}
	}
}

func TestRecorderNoSessionIsNoop(t *testing.T) {
	r, err := NewRecorder(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	// Logging before Start must not panic or create files.
	r.Interaction("x", nil)
	if err := r.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
