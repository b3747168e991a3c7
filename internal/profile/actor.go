package profile

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/masterFuf/taktik-bot-sub003/internal/device"
	"github.com/masterFuf/taktik-bot-sub003/internal/markers"
	"github.com/masterFuf/taktik-bot-sub003/internal/plan"
	"github.com/masterFuf/taktik-bot-sub003/internal/popup"
	"github.com/masterFuf/taktik-bot-sub003/internal/screen"
	"github.com/masterFuf/taktik-bot-sub003/internal/timing"
)

// Catalog control keys used while acting on a profile.
const (
	CtrlPostLike      = "post.like_button"
	CtrlPostLiked     = "post.liked_badge"
	CtrlPostComment   = "post.comment_field"
	CtrlCommentSubmit = "post.comment_submit"
	CtrlStoryLike     = "story.like_button"
)

// SuggestionsPopup is the popup kind the app may open right after a follow.
const SuggestionsPopup = "suggestions"

// Pacer injects human-paced waits between gestures. The engine provides one
// backed by the timing model; tests pass a no-op.
type Pacer interface {
	Sleep(kind string)
}

// NopPacer skips all waits.
type NopPacer struct{}

func (NopPacer) Sleep(string) {}

// Outcome is what actually happened on one profile. Planned actions that
// found nothing to act on (no posts, button already in the followed state)
// leave their field at zero.
type Outcome struct {
	Likes          int
	Comments       int
	Followed       bool
	StoriesWatched int
	StoryLikes     int
}

// Any reports whether at least one action landed. Visits where nothing
// landed do not count against the session quota.
func (o Outcome) Any() bool {
	return o.Likes > 0 || o.Comments > 0 || o.Followed || o.StoriesWatched > 0
}

// Actor executes a plan against the profile currently on screen.
type Actor struct {
	ch   device.Channel
	cls  *screen.Classifier
	dis  *popup.Dismisser
	cat  *markers.Catalog
	pace Pacer
	rng  *rand.Rand
	log  zerolog.Logger
}

// NewActor wires an actor over the shared channel. A nil pacer disables
// waits; a nil source seeds from the clock.
func NewActor(ch device.Channel, cls *screen.Classifier, dis *popup.Dismisser, cat *markers.Catalog, pace Pacer, src rand.Source, log zerolog.Logger) *Actor {
	if pace == nil {
		pace = NopPacer{}
	}
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Actor{
		ch:   ch,
		cls:  cls,
		dis:  dis,
		cat:  cat,
		pace: pace,
		rng:  rand.New(src),
		log:  log.With().Str("component", "actor").Logger(),
	}
}

// Execute runs every planned action that the profile state allows. It assumes
// the profile screen is already on display and leaves the device back on it.
func (a *Actor) Execute(ctx context.Context, info Info, p plan.Plan, comments []string) (Outcome, error) {
	var out Outcome

	a.pace.Sleep(timing.ReadingBio)

	if p.Has(plan.ActionStoryWatch) && info.HasStory {
		watched, liked, err := a.watchStories(ctx, p, info)
		out.StoriesWatched, out.StoryLikes = watched, liked
		if err != nil {
			return out, err
		}
	}

	if p.Has(plan.ActionLike) {
		likes, cmts, err := a.likePosts(ctx, p, comments)
		out.Likes, out.Comments = likes, cmts
		if err != nil {
			return out, err
		}
	}

	if p.Has(plan.ActionFollow) {
		followed, err := a.follow(ctx, info)
		out.Followed = followed
		if err != nil {
			return out, err
		}
	}

	return out, nil
}

// likePosts opens up to MaxLikes post thumbnails, liking each unless it is
// already liked. A comment rides along on the first liked post when planned.
func (a *Actor) likePosts(ctx context.Context, p plan.Plan, comments []string) (likes, cmts int, err error) {
	thumbMarker, ok := a.cat.Control(CtrlPostThumb)
	if !ok {
		return 0, 0, nil
	}

	max := p.MaxLikes
	if max <= 0 {
		max = 1
	}

	for i := 0; i < max; i++ {
		thumbs, qerr := a.ch.Query(ctx, thumbMarker)
		if qerr != nil {
			return likes, cmts, qerr
		}
		if i >= len(thumbs) {
			break
		}

		if cerr := a.ch.Click(ctx, thumbs[i]); cerr != nil {
			return likes, cmts, cerr
		}
		a.cls.Settle()
		a.pace.Sleep(timing.BeforeLike)

		if a.controlPresent(ctx, CtrlPostLiked) {
			a.log.Debug().Int("post", i).Msg("post already liked, leaving it alone")
		} else if el, found := a.findControl(ctx, CtrlPostLike); found {
			if cerr := a.ch.Click(ctx, el); cerr != nil {
				a.backToProfile(ctx)
				return likes, cmts, cerr
			}
			likes++
			a.pace.Sleep(timing.AfterLike)

			if p.Has(plan.ActionComment) && cmts < p.MaxComments && len(comments) > 0 {
				if a.comment(ctx, comments[a.rng.Intn(len(comments))]) {
					cmts++
				}
			}
		}

		a.backToProfile(ctx)
	}
	return likes, cmts, nil
}

func (a *Actor) comment(ctx context.Context, text string) bool {
	field, ok := a.findControl(ctx, CtrlPostComment)
	if !ok {
		return false
	}
	if err := a.ch.Click(ctx, field); err != nil {
		return false
	}
	a.pace.Sleep(timing.Typing)
	if err := a.ch.Type(ctx, text); err != nil {
		return false
	}
	submit, ok := a.findControl(ctx, CtrlCommentSubmit)
	if !ok {
		return false
	}
	if err := a.ch.Click(ctx, submit); err != nil {
		return false
	}
	a.cls.Settle()
	return true
}

// follow presses the follow button unless the relationship already exists,
// then clears the suggestions panel the app likes to unfold afterwards.
func (a *Actor) follow(ctx context.Context, info Info) (bool, error) {
	if info.FollowState == FollowStateFollowing || info.FollowState == FollowStateRequested {
		a.log.Debug().Str("username", info.Username).Str("state", info.FollowState).Msg("already following, skipping follow")
		return false, nil
	}

	el, ok := a.findControl(ctx, CtrlFollowButton)
	if !ok {
		return false, nil
	}
	a.pace.Sleep(timing.BeforeFollow)
	if err := a.ch.Click(ctx, el); err != nil {
		return false, err
	}
	a.cls.Settle()

	if a.cls.PopupOpen(ctx, SuggestionsPopup) {
		a.dis.Dismiss(ctx, SuggestionsPopup)
	}
	return true, nil
}

// watchStories opens the story ring and sits through up to MaxStories
// stories, occasionally liking one.
func (a *Actor) watchStories(ctx context.Context, p plan.Plan, info Info) (watched, liked int, err error) {
	ring, ok := a.findControl(ctx, CtrlStoryRing)
	if !ok {
		return 0, 0, nil
	}
	if cerr := a.ch.Click(ctx, ring); cerr != nil {
		return 0, 0, cerr
	}
	a.pace.Sleep(timing.StoryLoad)

	max := p.MaxStories
	if max <= 0 {
		max = 1
	}
	for i := 0; i < max; i++ {
		a.pace.Sleep(timing.StoryView)
		watched++

		if p.Has(plan.ActionStoryLike) {
			if el, found := a.findControl(ctx, CtrlStoryLike); found {
				if a.ch.Click(ctx, el) == nil {
					liked++
				}
			}
		}

		// Tap the right edge to advance. The last story exits on its own;
		// we leave explicitly instead of waiting for it.
		if i < max-1 {
			info, serr := a.ch.Screen(ctx)
			if serr != nil {
				break
			}
			if a.ch.ClickAt(ctx, float64(info.Width)*0.92, float64(info.Height)/2) != nil {
				break
			}
		}
	}

	_ = a.ch.Back(ctx)
	a.cls.Settle()
	return watched, liked, nil
}

func (a *Actor) findControl(ctx context.Context, key string) (device.Element, bool) {
	marker, ok := a.cat.Control(key)
	if !ok {
		return device.Element{}, false
	}
	els, err := a.ch.Query(ctx, marker)
	if err != nil || len(els) == 0 {
		return device.Element{}, false
	}
	return els[0], true
}

func (a *Actor) controlPresent(ctx context.Context, key string) bool {
	_, ok := a.findControl(ctx, key)
	return ok
}

// backToProfile leaves a post view. One back normally suffices; the screen
// state is verified so a stray popup gets cleared on the way.
func (a *Actor) backToProfile(ctx context.Context) {
	_ = a.ch.Back(ctx)
	a.cls.Settle()
	st := a.cls.Classify(ctx)
	if st.Kind == screen.KindPopup {
		a.dis.Dismiss(ctx, st.Popup)
	}
}
