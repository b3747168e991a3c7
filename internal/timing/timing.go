package timing

import (
	"math/rand"
	"time"

	"github.com/masterFuf/taktik-bot-sub003/internal/config"
)

// Delay band names. Unknown names fall back to the default band.
const (
	Click        = "click"
	Navigation   = "navigation"
	Scroll       = "scroll"
	Typing       = "typing"
	ReadingBio   = "reading_bio"
	BeforeLike   = "before_like"
	AfterLike    = "after_like"
	BeforeFollow = "before_follow"
	StoryView    = "story_view"
	StoryLoad    = "story_load"
	LoadMore     = "load_more"
	ProfileView  = "profile_view"
	PopupClose   = "popup_close"
)

type band struct{ min, max float64 } // seconds

var bands = map[string]band{
	Click:        {0.2, 0.5},
	Navigation:   {0.7, 1.5},
	Scroll:       {0.3, 0.7},
	Typing:       {0.08, 0.15},
	ReadingBio:   {2.0, 5.0},
	BeforeLike:   {0.5, 2.0},
	AfterLike:    {1.0, 3.0},
	BeforeFollow: {1.0, 3.0},
	StoryView:    {2.0, 5.0},
	StoryLoad:    {1.0, 2.0},
	LoadMore:     {2.0, 4.0},
	ProfileView:  {1.5, 4.0},
	PopupClose:   {0.5, 1.2},
}

var defaultBand = band{0.3, 0.8}

// Break is a pause the engine should take before continuing.
type Break struct {
	Kind     string // "short" | "long"
	Duration time.Duration
}

// Model produces human-paced delays for one session. It is a plain value
// owned by the engine; elapsed counters come in as arguments, so there is no
// hidden process-wide state. Not safe for concurrent use, which matches the
// single-driver session model.
type Model struct {
	fatigueCap    float64
	breaksEnabled bool
	rng           *rand.Rand

	lastShortAt int
	lastLongAt  int
	shortEvery  int
	longEvery   int
}

// NewModel builds a timing model. A nil source falls back to a time-seeded
// one.
func NewModel(cfg config.TimingConfig, src rand.Source) *Model {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	cap := cfg.FatigueCap
	if cap <= 1 {
		cap = 1.5
	}
	m := &Model{
		fatigueCap:    cap,
		breaksEnabled: cfg.AreBreaksEnabled(),
		rng:           rand.New(src),
	}
	m.rerollThresholds()
	return m
}

func (m *Model) rerollThresholds() {
	m.shortEvery = 8 + m.rng.Intn(8)  // 8-15 interactions
	m.longEvery = 30 + m.rng.Intn(21) // 30-50 interactions
}

// FatigueMultiplier grows with session length and cumulative actions, capped
// so a marathon session never crawls completely.
func (m *Model) FatigueMultiplier(elapsedActions int, elapsed time.Duration) float64 {
	mult := 1.0 + elapsed.Hours()*0.6 + float64(elapsedActions)*0.001
	if mult > m.fatigueCap {
		return m.fatigueCap
	}
	return mult
}

// DelayFor draws a gaussian delay for one action kind, stretched by fatigue.
func (m *Model) DelayFor(kind string, elapsedActions int, elapsed time.Duration) time.Duration {
	b, ok := bands[kind]
	if !ok {
		b = defaultBand
	}

	mean := (b.min + b.max) / 2
	std := (b.max - b.min) / 4
	d := m.rng.NormFloat64()*std + mean

	// Clamp with a small margin so outliers stay plausible.
	if lo := b.min * 0.8; d < lo {
		d = lo
	}
	if hi := b.max * 1.2; d > hi {
		d = hi
	}

	d *= m.FatigueMultiplier(elapsedActions, elapsed)
	return time.Duration(d * float64(time.Second))
}

// ShouldPause decides whether the session owes a break after the given
// number of real interactions (likes and follows, not mere profile visits).
// Triggering a break re-randomizes the next thresholds.
func (m *Model) ShouldPause(elapsedInteractions int) (Break, bool) {
	if !m.breaksEnabled {
		return Break{}, false
	}

	// Long and short cadences run on separate counters: a short break must
	// not push the long one out indefinitely. A long break absorbs the
	// pending short one.
	if elapsedInteractions-m.lastLongAt >= m.longEvery {
		m.lastLongAt = elapsedInteractions
		m.lastShortAt = elapsedInteractions
		m.rerollThresholds()
		return Break{Kind: "long", Duration: m.uniform(60, 180)}, true
	}
	if elapsedInteractions-m.lastShortAt >= m.shortEvery {
		m.lastShortAt = elapsedInteractions
		m.shortEvery = 8 + m.rng.Intn(8)
		return Break{Kind: "short", Duration: m.uniform(5, 15)}, true
	}
	return Break{}, false
}

func (m *Model) uniform(lo, hi float64) time.Duration {
	sec := lo + m.rng.Float64()*(hi-lo)
	return time.Duration(sec * float64(time.Second))
}
