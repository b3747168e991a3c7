// Package checkpoint persists session progress so an interrupted followers
// run can resume from where it stopped instead of re-walking the list.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Session status values stored in the checkpoint file.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// State is the on-disk checkpoint for one target's followers run. The
// followers slice holds every username discovered so far in list order;
// CurrentIndex points at the first one not yet processed.
type State struct {
	SessionID      string   `json:"session_id"`
	TargetUsername string   `json:"target_username"`
	Followers      []string `json:"followers"`
	CurrentIndex   int      `json:"current_index"`
	TotalFollowers int      `json:"total_followers"`
	CreatedAt      int64    `json:"created_at"`
	UpdatedAt      int64    `json:"updated_at"`
	Status         string   `json:"status"`
}

// Remaining returns the followers not yet processed.
func (s *State) Remaining() []string {
	if s.CurrentIndex >= len(s.Followers) {
		return nil
	}
	return s.Followers[s.CurrentIndex:]
}

// Processed returns the followers already handled in a previous run.
func (s *State) Processed() []string {
	if s.CurrentIndex > len(s.Followers) {
		return s.Followers
	}
	return s.Followers[:s.CurrentIndex]
}

// Store reads and writes checkpoint files, one per target username.
type Store struct {
	dir string
	log zerolog.Logger
}

// NewStore creates the checkpoint directory if needed.
func NewStore(dir string, log zerolog.Logger) (*Store, error) {
	if dir == "" {
		dir = "data/checkpoints"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	return &Store{dir: dir, log: log}, nil
}

func (st *Store) path(target string) string {
	// Usernames are [A-Za-z0-9._] on the platform, but sanitize anyway.
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		}
		return '_'
	}, target)
	return filepath.Join(st.dir, safe+"_followers.json")
}

// Create writes a fresh checkpoint for a new session.
func (st *Store) Create(sessionID, target string, followers []string) (*State, error) {
	now := time.Now().Unix()
	s := &State{
		SessionID:      sessionID,
		TargetUsername: target,
		Followers:      followers,
		CurrentIndex:   0,
		TotalFollowers: len(followers),
		CreatedAt:      now,
		UpdatedAt:      now,
		Status:         StatusInProgress,
	}
	if err := st.write(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Load returns the checkpoint for a target, or nil when none exists. A file
// that cannot be parsed is treated the same as a missing one: the session
// starts fresh rather than aborting on stale state.
func (st *Store) Load(target string) (*State, error) {
	data, err := os.ReadFile(st.path(target))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		st.log.Warn().Str("target", target).Err(err).Msg("corrupt checkpoint, starting fresh")
		return nil, nil
	}
	if s.CurrentIndex < 0 {
		s.CurrentIndex = 0
	}
	return &s, nil
}

// Advance moves the cursor past one processed follower and persists the
// change. The index only ever moves forward.
func (st *Store) Advance(s *State, index int) error {
	if index+1 <= s.CurrentIndex {
		return nil
	}
	s.CurrentIndex = index + 1
	s.UpdatedAt = time.Now().Unix()
	return st.write(s)
}

// Extend appends newly discovered followers to the checkpoint without moving
// the cursor.
func (st *Store) Extend(s *State, followers []string) error {
	if len(followers) == 0 {
		return nil
	}
	s.Followers = append(s.Followers, followers...)
	s.TotalFollowers = len(s.Followers)
	s.UpdatedAt = time.Now().Unix()
	return st.write(s)
}

// Complete marks the session done and removes the checkpoint file so the next
// run starts from the top of the list.
func (st *Store) Complete(s *State) error {
	s.Status = StatusCompleted
	return st.Delete(s.TargetUsername)
}

// Delete removes a target's checkpoint. Missing files are not an error.
func (st *Store) Delete(target string) error {
	err := os.Remove(st.path(target))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// List returns every stored checkpoint, skipping unreadable files.
func (st *Store) List() ([]*State, error) {
	entries, err := os.ReadDir(st.dir)
	if err != nil {
		return nil, err
	}
	var out []*State
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(st.dir, e.Name()))
		if err != nil {
			continue
		}
		var s State
		if err := json.Unmarshal(data, &s); err != nil {
			continue
		}
		out = append(out, &s)
	}
	return out, nil
}

func (st *Store) write(s *State) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp := st.path(s.TargetUsername) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return os.Rename(tmp, st.path(s.TargetUsername))
}
