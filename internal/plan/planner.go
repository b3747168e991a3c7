package plan

import (
	"math/rand"
	"time"

	"github.com/masterFuf/taktik-bot-sub003/internal/config"
)

// ActionKind names one interaction a plan may include.
type ActionKind string

const (
	ActionLike       ActionKind = "like"
	ActionFollow     ActionKind = "follow"
	ActionComment    ActionKind = "comment"
	ActionStoryWatch ActionKind = "story_watch"
	ActionStoryLike  ActionKind = "story_like"
)

// AllActionKinds lists every kind in a stable order.
var AllActionKinds = []ActionKind{ActionLike, ActionFollow, ActionComment, ActionStoryWatch, ActionStoryLike}

// Rates holds the normalized probability per action kind. The union fields in
// config resolve here exactly once, at session start.
type Rates struct {
	Like       float64
	Follow     float64
	Comment    float64
	StoryWatch float64
	StoryLike  float64
}

// RatesFromConfig normalizes the configured rates (percentage form wins over
// probability form).
func RatesFromConfig(a config.ActionsConfig) Rates {
	return Rates{
		Like:       a.Like.Normalize(),
		Follow:     a.Follow.Normalize(),
		Comment:    a.Comment.Normalize(),
		StoryWatch: a.StoryWatch.Normalize(),
		StoryLike:  a.StoryLike.Normalize(),
	}
}

func (r Rates) rate(k ActionKind) float64 {
	switch k {
	case ActionLike:
		return r.Like
	case ActionFollow:
		return r.Follow
	case ActionComment:
		return r.Comment
	case ActionStoryWatch:
		return r.StoryWatch
	case ActionStoryLike:
		return r.StoryLike
	}
	return 0
}

// Plan is the action set chosen for one candidate, plus per-profile caps.
type Plan struct {
	actions map[ActionKind]bool

	MaxLikes    int
	MaxComments int
	MaxStories  int
}

// Has reports whether the plan includes kind.
func (p Plan) Has(k ActionKind) bool { return p.actions[k] }

// Empty reports a plan with no actions at all.
func (p Plan) Empty() bool { return len(p.actions) == 0 }

// Kinds returns the included kinds in stable order.
func (p Plan) Kinds() []ActionKind {
	var out []ActionKind
	for _, k := range AllActionKinds {
		if p.actions[k] {
			out = append(out, k)
		}
	}
	return out
}

// PlanOf builds a fixed plan; test seam for the engine.
func PlanOf(caps config.ActionsConfig, kinds ...ActionKind) Plan {
	p := Plan{
		actions:     make(map[ActionKind]bool, len(kinds)),
		MaxLikes:    caps.MaxLikesPerProfile,
		MaxComments: caps.MaxCommentsPerProfile,
		MaxStories:  caps.MaxStoriesPerProfile,
	}
	for _, k := range kinds {
		p.actions[k] = true
	}
	return p
}

// Planner draws one independent uniform sample per action kind. Long-run
// frequencies converge to the configured rates while any single candidate's
// plan stays unpredictable.
type Planner struct {
	rates Rates
	caps  config.ActionsConfig
	rng   *rand.Rand
}

// NewPlanner builds a planner. A nil source falls back to a time-seeded one.
func NewPlanner(actions config.ActionsConfig, src rand.Source) *Planner {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Planner{
		rates: RatesFromConfig(actions),
		caps:  actions,
		rng:   rand.New(src),
	}
}

// Plan rolls the dice for one candidate. Draws are independent: a candidate
// may be planned for both follow and comment.
func (p *Planner) Plan() Plan {
	out := Plan{
		actions:     make(map[ActionKind]bool, len(AllActionKinds)),
		MaxLikes:    p.caps.MaxLikesPerProfile,
		MaxComments: p.caps.MaxCommentsPerProfile,
		MaxStories:  p.caps.MaxStoriesPerProfile,
	}
	for _, k := range AllActionKinds {
		if rate := p.rates.rate(k); rate > 0 && p.rng.Float64() < rate {
			out.actions[k] = true
		}
	}
	return out
}
