// Package engine drives a followers interaction session: discover candidates
// on the list screen, visit each profile, run the planned actions, and keep
// the device recoverable between steps.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/masterFuf/taktik-bot-sub003/internal/checkpoint"
	"github.com/masterFuf/taktik-bot-sub003/internal/config"
	"github.com/masterFuf/taktik-bot-sub003/internal/device"
	"github.com/masterFuf/taktik-bot-sub003/internal/history"
	"github.com/masterFuf/taktik-bot-sub003/internal/nav"
	"github.com/masterFuf/taktik-bot-sub003/internal/plan"
	"github.com/masterFuf/taktik-bot-sub003/internal/popup"
	"github.com/masterFuf/taktik-bot-sub003/internal/profile"
	"github.com/masterFuf/taktik-bot-sub003/internal/recorder"
	"github.com/masterFuf/taktik-bot-sub003/internal/screen"
	"github.com/masterFuf/taktik-bot-sub003/internal/timing"
)

// ErrorKind classifies session errors for the stats and trace.
type ErrorKind string

const (
	ErrQueryMiss       ErrorKind = "query_miss"
	ErrNavigation      ErrorKind = "navigation"
	ErrSessionFatal    ErrorKind = "session_fatal"
	ErrPersistence     ErrorKind = "persistence"
	ErrSoftRestriction ErrorKind = "soft_restriction"
)

// Stop reasons reported in the session result.
const (
	StopQuota           = "quota_reached"
	StopEndOfList       = "end_of_list"
	StopCancelled       = "cancelled"
	StopSoftRestriction = "soft_restriction"
	StopFatal           = "fatal"
)

// Stats accumulates what a session did.
type Stats struct {
	Interacted     int `json:"interacted"`
	Skipped        int `json:"skipped"`
	Filtered       int `json:"filtered"`
	Errors         int `json:"errors"`
	Likes          int `json:"likes"`
	Comments       int `json:"comments"`
	Follows        int `json:"follows"`
	StoriesWatched int `json:"stories_watched"`
	StoryLikes     int `json:"story_likes"`
	ScrollAttempts int `json:"scroll_attempts"`
}

// Params describe one followers session.
type Params struct {
	// Account is the bot's own username; it never interacts with itself.
	Account string
	// Target is the account whose followers list is walked.
	Target string
	// Quota overrides the configured interaction quota when positive.
	Quota int
}

// Result is the final report of a session.
type Result struct {
	SessionID string    `json:"session_id"`
	Target    string    `json:"target"`
	Stats     Stats     `json:"stats"`
	StopCause string    `json:"stop_cause"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// Engine owns everything a session needs. Build it once, run sessions one at
// a time; it is not safe for concurrent Run calls.
type Engine struct {
	cfg     *config.Config
	ch      device.Channel
	cls     *screen.Classifier
	dis     *popup.Dismisser
	rec     *nav.Recoverer
	planner *plan.Planner
	model   *timing.Model
	cps     *checkpoint.Store
	hist    history.Store
	trace   *recorder.Recorder
	log     zerolog.Logger

	softRestricted bool
	startedAt      time.Time
	stats          *Stats

	// Reopen performs a cold re-navigation to the screen kind for a target
	// account, used as the recovery ladder's last rung. Optional.
	Reopen func(ctx context.Context, target string, kind screen.Kind) bool

	// ShouldContinue is an optional external limits check, polled before
	// every scroll poll and every candidate. Returning false ends the
	// session as cancelled. Mid-action cancellation is not supported.
	ShouldContinue func() bool

	sleep func(time.Duration) // test seam
}

// New wires an engine. The recoverer's Reenter hook must already be set by
// the caller; the engine only decides when to invoke recovery.
func New(
	cfg *config.Config,
	ch device.Channel,
	cls *screen.Classifier,
	dis *popup.Dismisser,
	rec *nav.Recoverer,
	planner *plan.Planner,
	model *timing.Model,
	cps *checkpoint.Store,
	hist history.Store,
	trace *recorder.Recorder,
	log zerolog.Logger,
) *Engine {
	e := &Engine{
		cfg:     cfg,
		ch:      ch,
		cls:     cls,
		dis:     dis,
		rec:     rec,
		planner: planner,
		model:   model,
		cps:     cps,
		hist:    hist,
		trace:   trace,
		log:     log.With().Str("component", "engine").Logger(),
		sleep:   time.Sleep,
	}
	dis.OnSoftRestriction = func(kind string) {
		e.softRestricted = true
		if e.trace != nil {
			e.trace.Error("", string(ErrSoftRestriction), nil)
		}
	}
	return e
}

// Sleep implements profile.Pacer with the session's timing model.
func (e *Engine) Sleep(kind string) {
	if e.model == nil || e.stats == nil {
		return
	}
	e.sleep(e.model.DelayFor(kind, e.stats.Interacted, time.Since(e.startedAt)))
}

// Run walks the target's followers until the quota is reached, the list is
// exhausted, the context is cancelled, or the session hits a wall.
func (e *Engine) Run(ctx context.Context, params Params, actor *profile.Actor) (*Result, error) {
	sessionID := uuid.NewString()
	e.startedAt = time.Now()
	e.softRestricted = false

	res := &Result{
		SessionID: sessionID,
		Target:    params.Target,
		StartedAt: e.startedAt,
	}
	e.stats = &res.Stats

	quota := e.cfg.Engine.Quota
	if params.Quota > 0 {
		quota = params.Quota
	}

	if e.Reopen != nil {
		e.rec.Reenter = func(ctx context.Context, kind screen.Kind) bool {
			return e.Reopen(ctx, params.Target, kind)
		}
	}

	if e.trace != nil {
		if err := e.trace.Start(sessionID); err != nil {
			e.log.Warn().Err(err).Msg("trace unavailable for this session")
		}
		e.trace.Log(recorder.EventSessionStart, map[string]any{
			"target": params.Target,
			"quota":  quota,
		})
		defer func() {
			e.trace.Log(recorder.EventSessionEnd, res)
			_ = e.trace.Close()
		}()
	}

	run := e.restore(params.Target)

	res.StopCause = e.loop(ctx, params, actor, quota, run)
	res.EndedAt = time.Now()

	if res.StopCause == StopEndOfList && run.state != nil {
		if err := e.cps.Complete(run.state); err != nil {
			e.log.Warn().Err(err).Msg("checkpoint cleanup failed")
			res.Stats.Errors++
		}
	}

	e.log.Info().
		Str("session_id", sessionID).
		Str("stop_cause", res.StopCause).
		Int("interacted", res.Stats.Interacted).
		Int("skipped", res.Stats.Skipped).
		Int("errors", res.Stats.Errors).
		Msg("session finished")
	return res, nil
}

// runState is the mutable bookkeeping of one session loop.
type runState struct {
	state   *checkpoint.State
	seen    map[string]bool // processed or in-flight candidates
	tracked map[string]bool // everything recorded in the checkpoint
	cursor  int
}

// restore loads the target's checkpoint and seeds the seen-set with every
// follower already processed in earlier runs.
func (e *Engine) restore(target string) *runState {
	run := &runState{
		seen:    make(map[string]bool),
		tracked: make(map[string]bool),
	}
	state, err := e.cps.Load(target)
	if err != nil {
		e.log.Warn().Err(err).Msg("checkpoint load failed, starting fresh")
		return run
	}
	if state == nil {
		return run
	}
	run.state = state
	run.cursor = state.CurrentIndex
	for _, u := range state.Processed() {
		run.seen[u] = true
	}
	for _, u := range state.Followers {
		run.tracked[u] = true
	}
	e.log.Info().
		Str("target", target).
		Int("resume_index", state.CurrentIndex).
		Int("total", state.TotalFollowers).
		Msg("resuming from checkpoint")
	return run
}

func (e *Engine) loop(ctx context.Context, params Params, actor *profile.Actor, quota int, run *runState) string {
	emptyPolls := 0

	if !e.rec.Ensure(ctx, screen.KindList, false) {
		e.log.Error().Msg("could not reach the followers list")
		e.stats.Errors++
		return StopFatal
	}

	for {
		if e.cancelled(ctx) {
			return StopCancelled
		}
		if e.softRestricted && e.cfg.Engine.StopOnSoftRestriction {
			return StopSoftRestriction
		}
		if e.stats.Interacted >= quota {
			return StopQuota
		}

		fresh, err := e.poll(ctx, run.seen)
		if err != nil {
			e.stats.Errors++
			// A dead channel must not masquerade as an exhausted list: that
			// would "complete" the session and drop the checkpoint.
			if errors.Is(err, device.ErrUnreachable) {
				e.traceError("", ErrSessionFatal, err)
				return StopFatal
			}
			e.traceError("", ErrQueryMiss, err)
			if !e.rec.Ensure(ctx, screen.KindList, true) {
				return StopFatal
			}
			continue
		}

		if len(fresh) == 0 {
			emptyPolls++
			if emptyPolls >= e.cfg.Engine.PollLimit {
				return StopEndOfList
			}
			if e.stats.ScrollAttempts >= e.cfg.Engine.MaxScrollAttempts {
				return StopEndOfList
			}
			e.scrollList(ctx)
			continue
		}
		emptyPolls = 0

		e.track(params.Target, run, fresh)

		for _, username := range fresh {
			if e.cancelled(ctx) {
				return StopCancelled
			}
			if e.softRestricted && e.cfg.Engine.StopOnSoftRestriction {
				return StopSoftRestriction
			}
			if e.stats.Interacted >= quota {
				return StopQuota
			}

			run.seen[username] = true
			navigated := e.processCandidate(ctx, params, actor, username)

			if run.state != nil {
				if aerr := e.cps.Advance(run.state, run.cursor); aerr != nil {
					e.stats.Errors++
					e.traceError(username, ErrPersistence, aerr)
				}
			}
			run.cursor++

			// Candidates skipped before any click never left the list, so
			// there is nothing to recover from.
			if navigated && !e.rec.Ensure(ctx, screen.KindList, true) {
				e.log.Error().Str("username", username).Msg("lost the followers list and could not recover")
				e.stats.Errors++
				return StopFatal
			}

			if br, ok := e.model.ShouldPause(e.stats.Interacted); ok {
				e.log.Info().Str("kind", br.Kind).Dur("duration", br.Duration).Msg("taking a break")
				if e.trace != nil {
					e.trace.Break(br.Kind, br.Duration)
				}
				e.sleep(br.Duration)
			}
		}
	}
}

func (e *Engine) cancelled(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	return e.ShouldContinue != nil && !e.ShouldContinue()
}

// track records newly discovered candidates in the checkpoint, creating it
// on first discovery. Names already in the checkpoint are not re-appended.
func (e *Engine) track(target string, run *runState, fresh []string) {
	var added []string
	for _, u := range fresh {
		if !run.tracked[u] {
			added = append(added, u)
			run.tracked[u] = true
		}
	}

	if run.state == nil {
		state, err := e.cps.Create(uuid.NewString(), target, added)
		if err != nil {
			e.log.Warn().Err(err).Msg("checkpoint create failed, running without one")
			e.stats.Errors++
			e.traceError("", ErrPersistence, err)
			return
		}
		run.state = state
		return
	}
	if err := e.cps.Extend(run.state, added); err != nil {
		e.stats.Errors++
		e.traceError("", ErrPersistence, err)
	}
}

// poll reads the candidate rows currently on screen and returns the ones not
// seen before, in list order.
func (e *Engine) poll(ctx context.Context, seen map[string]bool) ([]string, error) {
	rows, err := e.ch.Query(ctx, e.cls.Catalog().List.Row)
	if err != nil {
		return nil, err
	}
	var fresh []string
	for _, row := range rows {
		name := row.Text
		if name == "" || seen[name] {
			continue
		}
		fresh = append(fresh, name)
	}
	return fresh, nil
}

// scrollList advances the list: tap "see more" when present, otherwise swipe
// up one viewport.
func (e *Engine) scrollList(ctx context.Context) {
	e.stats.ScrollAttempts++
	e.Sleep(timing.LoadMore)

	cat := e.cls.Catalog()
	if cat.List.LoadMore != "" {
		if els, err := e.ch.Query(ctx, cat.List.LoadMore); err == nil && len(els) > 0 {
			_ = e.ch.Click(ctx, els[0])
			e.cls.Settle()
			return
		}
	}

	info, err := e.ch.Screen(ctx)
	if err != nil {
		return
	}
	x := float64(info.Width) / 2
	_ = e.ch.Swipe(ctx, x, float64(info.Height)*0.75, x, float64(info.Height)*0.25, 400*time.Millisecond)
	e.cls.Settle()
}

// processCandidate handles one username end to end. Failures are absorbed
// into the stats; only recovery failure ends the session, and that is decided
// by the caller. The return reports whether the device may have left the
// list screen: skips decided before the first click return false.
func (e *Engine) processCandidate(ctx context.Context, params Params, actor *profile.Actor, username string) bool {
	if username == params.Account {
		e.skip(username, history.ReasonOwnAccount)
		return false
	}
	if username == params.Target {
		e.skip(username, history.ReasonTarget)
		return false
	}

	window := e.cfg.History.GetProcessedWindow()
	if done, err := e.hist.ProcessedWithin(ctx, params.Account, username, window); err != nil {
		e.stats.Errors++
		e.traceError(username, ErrPersistence, err)
	} else if done {
		e.skip(username, history.ReasonProcessed)
		return false
	}
	if rejected, err := e.hist.Filtered(ctx, params.Account, username); err != nil {
		e.stats.Errors++
		e.traceError(username, ErrPersistence, err)
	} else if rejected {
		e.skip(username, history.ReasonFiltered)
		return false
	}

	if !e.openProfile(ctx, username) {
		e.stats.Errors++
		e.traceError(username, ErrNavigation, nil)
		return true
	}
	e.Sleep(timing.ProfileView)

	info, err := profile.Extract(ctx, e.ch, e.cls.Catalog())
	if err != nil {
		e.stats.Errors++
		e.traceError(username, ErrQueryMiss, err)
		return true
	}

	if pass, reason := profile.CheckFilters(info, e.cfg.Filters); !pass {
		e.stats.Filtered++
		e.skipTrace(username, reason)
		if herr := e.hist.MarkFiltered(ctx, params.Account, username, reason); herr != nil {
			e.stats.Errors++
			e.traceError(username, ErrPersistence, herr)
		}
		return true
	}

	p := e.planner.Plan()
	if p.Empty() {
		e.stats.Skipped++
		e.skipTrace(username, "no_actions_drawn")
		return true
	}

	out, err := actor.Execute(ctx, info, p, e.cfg.Actions.CommentTemplates)
	e.fold(out)
	if err != nil {
		e.stats.Errors++
		e.traceError(username, ErrNavigation, err)
		return true
	}

	if !out.Any() {
		e.stats.Skipped++
		e.skipTrace(username, "nothing_to_do")
		return true
	}

	e.stats.Interacted++
	if e.trace != nil {
		e.trace.Interaction(username, out)
	}
	if herr := e.hist.MarkProcessed(ctx, params.Account, username); herr != nil {
		e.stats.Errors++
		e.traceError(username, ErrPersistence, herr)
	}
	return true
}

// openProfile clicks the candidate's row and verifies the profile screen
// came up, clearing at most one interposed popup.
func (e *Engine) openProfile(ctx context.Context, username string) bool {
	rows, err := e.ch.Query(ctx, e.cls.Catalog().List.Row)
	if err != nil {
		return false
	}
	for _, row := range rows {
		if row.Text != username {
			continue
		}
		e.Sleep(timing.Click)
		if e.ch.Click(ctx, row) != nil {
			return false
		}
		e.cls.Settle()

		st := e.cls.Classify(ctx)
		if st.Kind == screen.KindPopup {
			e.dis.Dismiss(ctx, st.Popup)
			st = e.cls.Classify(ctx)
		}
		return st.Kind == screen.KindProfile
	}
	return false
}

func (e *Engine) fold(out profile.Outcome) {
	e.stats.Likes += out.Likes
	e.stats.Comments += out.Comments
	if out.Followed {
		e.stats.Follows++
	}
	e.stats.StoriesWatched += out.StoriesWatched
	e.stats.StoryLikes += out.StoryLikes
}

func (e *Engine) skip(username, reason string) {
	e.stats.Skipped++
	e.skipTrace(username, reason)
	e.log.Debug().Str("username", username).Str("reason", reason).Msg("skipping candidate")
}

func (e *Engine) skipTrace(username, reason string) {
	if e.trace != nil {
		e.trace.Skip(username, reason)
	}
}

func (e *Engine) traceError(username string, kind ErrorKind, err error) {
	if e.trace != nil {
		e.trace.Error(username, string(kind), err)
	}
}
