package screen

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/masterFuf/taktik-bot-sub003/internal/device"
	"github.com/masterFuf/taktik-bot-sub003/internal/markers"
)

// Kind names a recognized screen.
type Kind string

const (
	KindList        Kind = "list"
	KindProfile     Kind = "profile"
	KindOwnProfile  Kind = "own_profile"
	KindPost        Kind = "post"
	KindPopup       Kind = "popup"
	KindLogin       Kind = "login"
	KindRateLimited Kind = "rate_limited"
	KindUnknown     Kind = "unknown"
)

// State is a fresh classification of the current display. It is never cached
// across state-changing actions.
type State struct {
	Kind Kind
	// Popup is the popup kind when Kind == KindPopup.
	Popup string
}

func (s State) Is(k Kind) bool { return s.Kind == k }

func (s State) String() string {
	if s.Kind == KindPopup {
		return "popup:" + s.Popup
	}
	return string(s.Kind)
}

// Classifier names the displayed screen from marker groups. Every probe is a
// single short existence query; the only deliberate wait is the configured
// post-action settle delay.
type Classifier struct {
	ch     device.Channel
	cat    *markers.Catalog
	settle time.Duration
	log    zerolog.Logger

	popupKinds []string

	// sleep is swappable for tests.
	sleep func(time.Duration)
}

// NewClassifier builds a classifier over the channel and catalog.
func NewClassifier(ch device.Channel, cat *markers.Catalog, settle time.Duration, log zerolog.Logger) *Classifier {
	kinds := make([]string, 0, len(cat.Popups))
	for k := range cat.Popups {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	return &Classifier{
		ch:         ch,
		cat:        cat,
		settle:     settle,
		log:        log.With().Str("component", "classifier").Logger(),
		popupKinds: kinds,
		sleep:      time.Sleep,
	}
}

// Catalog exposes the marker catalog the classifier probes with.
func (c *Classifier) Catalog() *markers.Catalog {
	return c.cat
}

// Settle blocks for the configured post-action delay. Call it after any
// state-changing action, before reclassifying.
func (c *Classifier) Settle() {
	if c.settle > 0 {
		c.sleep(c.settle)
	}
}

// Classify probes marker groups in priority order and returns the first
// match. The result reflects this instant only.
func (c *Classifier) Classify(ctx context.Context) State {
	if c.probe(ctx, c.cat.Screens.List) {
		return State{Kind: KindList}
	}
	if c.probe(ctx, c.cat.Screens.Profile) {
		if c.probe(ctx, c.cat.Screens.OwnProfile) {
			return State{Kind: KindOwnProfile}
		}
		return State{Kind: KindProfile}
	}
	if c.probe(ctx, c.cat.Screens.Post) {
		return State{Kind: KindPost}
	}
	for _, kind := range c.popupKinds {
		if c.probe(ctx, c.cat.Popups[kind].Indicators) {
			return State{Kind: KindPopup, Popup: kind}
		}
	}
	if c.probe(ctx, c.cat.Screens.Login) {
		return State{Kind: KindLogin}
	}
	if c.probe(ctx, c.cat.Screens.RateLimit) {
		return State{Kind: KindRateLimited}
	}
	return State{Kind: KindUnknown}
}

// PopupOpen reports whether the given popup kind is currently indicated,
// regardless of what sits underneath it.
func (c *Classifier) PopupOpen(ctx context.Context, kind string) bool {
	spec, ok := c.cat.Popups[kind]
	if !ok {
		return false
	}
	return c.probe(ctx, spec.Indicators)
}

// probe reports whether any expression in the group resolves right now.
func (c *Classifier) probe(ctx context.Context, group markers.Group) bool {
	for _, marker := range group {
		els, err := c.ch.Query(ctx, marker)
		if err != nil {
			// Unreachable channel surfaces as "nothing matches"; the caller's
			// own operations will hit the fatal error.
			return false
		}
		if len(els) > 0 {
			return true
		}
	}
	return false
}
