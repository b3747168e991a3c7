package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/masterFuf/taktik-bot-sub003/internal/profile"
)

// ErrBusy is returned when a session start races an active one.
var ErrBusy = errors.New("a session is already running")

// Status is a point-in-time view of the manager.
type Status struct {
	Running   bool      `json:"running"`
	Target    string    `json:"target,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Last      *Result   `json:"last_result,omitempty"`
}

// Manager serializes sessions: the device can only host one at a time.
type Manager struct {
	eng   *Engine
	actor *profile.Actor
	log   zerolog.Logger

	mu        sync.Mutex
	running   bool
	target    string
	startedAt time.Time
	cancel    context.CancelFunc
	last      *Result
}

// NewManager wraps an engine for use by the control surface.
func NewManager(eng *Engine, actor *profile.Actor, log zerolog.Logger) *Manager {
	return &Manager{eng: eng, actor: actor, log: log}
}

// Start launches a session in the background. It fails fast with ErrBusy if
// one is already running.
func (m *Manager) Start(parent context.Context, params Params) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return ErrBusy
	}

	ctx, cancel := context.WithCancel(parent)
	m.running = true
	m.target = params.Target
	m.startedAt = time.Now()
	m.cancel = cancel

	go func() {
		defer cancel()
		res, err := m.eng.Run(ctx, params, m.actor)

		m.mu.Lock()
		m.running = false
		m.cancel = nil
		if err != nil {
			m.log.Error().Err(err).Msg("session ended with error")
		} else {
			m.last = res
		}
		m.mu.Unlock()
	}()
	return nil
}

// Stop cancels the active session, if any, and reports whether one was
// running. The session winds down asynchronously.
func (m *Manager) Stop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running || m.cancel == nil {
		return false
	}
	m.cancel()
	return true
}

// Status returns the current manager state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Status{Running: m.running, Last: m.last}
	if m.running {
		s.Target = m.target
		s.StartedAt = m.startedAt
	}
	return s
}
