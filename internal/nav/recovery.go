package nav

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/masterFuf/taktik-bot-sub003/internal/device"
	"github.com/masterFuf/taktik-bot-sub003/internal/markers"
	"github.com/masterFuf/taktik-bot-sub003/internal/popup"
	"github.com/masterFuf/taktik-bot-sub003/internal/screen"
)

// BackControl is the catalog key for the local back affordance.
const BackControl = "back"

// backAttempts is the number of back-button rungs before the last-resort
// re-navigation. Two rungs clear an interposed screen (profile → post → list).
const backAttempts = 2

// reclassifyTries bounds how often one rung re-checks the screen before the
// ladder escalates.
const reclassifyTries = 2

var errNotOnTarget = errors.New("nav: not on target screen")

// Recoverer restores a caller-specified known screen after a side-effecting
// action, escalating from local back actions to a full re-navigation.
type Recoverer struct {
	ch  device.Channel
	cls *screen.Classifier
	dis *popup.Dismisser
	cat *markers.Catalog
	log zerolog.Logger

	// Reenter performs a full stable re-navigation to the entry point for
	// target, accepting loss of scroll position. Supplied by the session
	// owner; without it the third rung is skipped.
	Reenter func(ctx context.Context, target screen.Kind) bool

	retryWait time.Duration
}

// NewRecoverer builds a recoverer over the shared channel, classifier and
// dismisser.
func NewRecoverer(ch device.Channel, cls *screen.Classifier, dis *popup.Dismisser, cat *markers.Catalog, log zerolog.Logger) *Recoverer {
	return &Recoverer{
		ch:        ch,
		cls:       cls,
		dis:       dis,
		cat:       cat,
		log:       log.With().Str("component", "nav").Logger(),
		retryWait: 400 * time.Millisecond,
	}
}

// Ensure returns true once the target screen is displayed. With force unset
// it trusts a matching classification immediately; otherwise it climbs the
// strategy ladder and returns false only when every rung is exhausted.
// Callers must treat false as session-fatal.
func (r *Recoverer) Ensure(ctx context.Context, target screen.Kind, force bool) bool {
	if !force && r.onTarget(ctx, target) {
		return true
	}

	for attempt := 1; attempt <= backAttempts; attempt++ {
		r.goBack(ctx)
		r.cls.Settle()
		if r.awaitTarget(ctx, target) {
			r.log.Debug().Str("target", string(target)).Int("attempt", attempt).Msg("recovered via back")
			return true
		}
	}

	if r.Reenter == nil {
		r.log.Error().Str("target", string(target)).Msg("recovery exhausted, no re-entry configured")
		return false
	}

	r.log.Warn().Str("target", string(target)).Msg("recovering via full re-navigation, scroll position lost")
	if !r.Reenter(ctx, target) {
		return false
	}
	r.cls.Settle()
	return r.awaitTarget(ctx, target)
}

// onTarget classifies once, clearing an interposed popup first.
func (r *Recoverer) onTarget(ctx context.Context, target screen.Kind) bool {
	st := r.cls.Classify(ctx)
	if st.Is(screen.KindPopup) && r.dis != nil {
		if r.dis.Dismiss(ctx, st.Popup) {
			st = r.cls.Classify(ctx)
		}
	}
	return st.Is(target)
}

// awaitTarget re-checks the screen a bounded number of times, spaced by a
// constant interval, so a slow transition is not mistaken for a miss.
func (r *Recoverer) awaitTarget(ctx context.Context, target screen.Kind) bool {
	check := func() error {
		if r.onTarget(ctx, target) {
			return nil
		}
		return errNotOnTarget
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.retryWait), reclassifyTries),
		ctx,
	)
	return backoff.Retry(check, policy) == nil
}

// goBack prefers the catalog's local back marker, falling back to the
// platform back action.
func (r *Recoverer) goBack(ctx context.Context) {
	if marker, ok := r.cat.Control(BackControl); ok {
		if els, err := r.ch.Query(ctx, marker); err == nil && len(els) > 0 {
			if r.ch.Click(ctx, els[0]) == nil {
				return
			}
		}
	}
	_ = r.ch.Back(ctx)
}
