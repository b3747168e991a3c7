package plan

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masterFuf/taktik-bot-sub003/internal/config"
)

func TestRatesFromConfigUnion(t *testing.T) {
	actions := config.ActionsConfig{
		Like:    config.Pct(70),
		Follow:  config.Prob(0.15),
		Comment: config.Rate{Percentage: floatPtr(30), Probability: floatPtr(0.9)},
	}
	rates := RatesFromConfig(actions)

	assert.InDelta(t, 0.7, rates.Like, 1e-9)
	assert.InDelta(t, 0.15, rates.Follow, 1e-9)
	// Percentage takes precedence when both forms are present.
	assert.InDelta(t, 0.3, rates.Comment, 1e-9)
	assert.Zero(t, rates.StoryWatch)
	assert.Zero(t, rates.StoryLike)
}

func floatPtr(v float64) *float64 { return &v }

func TestPlannerRateBounds(t *testing.T) {
	const n = 20000
	actions := config.ActionsConfig{
		Like:   config.Prob(0.8),
		Follow: config.Pct(20),
	}
	p := NewPlanner(actions, rand.NewSource(42))

	likes, follows := 0, 0
	for i := 0; i < n; i++ {
		plan := p.Plan()
		if plan.Has(ActionLike) {
			likes++
		}
		if plan.Has(ActionFollow) {
			follows++
		}
		require.False(t, plan.Has(ActionComment), "zero-rate kind must never be planned")
	}

	// Three-sigma tolerance for a binomial at the configured rate.
	tol := func(rate float64) float64 { return 3 * math.Sqrt(rate*(1-rate)/n) }
	assert.InDelta(t, 0.8, float64(likes)/n, tol(0.8))
	assert.InDelta(t, 0.2, float64(follows)/n, tol(0.2))
}

func TestPlannerDrawsAreIndependent(t *testing.T) {
	actions := config.ActionsConfig{
		Follow:  config.Prob(0.5),
		Comment: config.Prob(0.5),
	}
	p := NewPlanner(actions, rand.NewSource(7))

	both := 0
	for i := 0; i < 10000; i++ {
		plan := p.Plan()
		if plan.Has(ActionFollow) && plan.Has(ActionComment) {
			both++
		}
	}
	// Independent draws co-occur near 25%; mutually exclusive draws would
	// make this zero.
	assert.InDelta(t, 0.25, float64(both)/10000, 0.03)
}

func TestPlanCarriesCaps(t *testing.T) {
	actions := config.ActionsConfig{
		Like:                  config.Prob(1),
		MaxLikesPerProfile:    3,
		MaxCommentsPerProfile: 1,
		MaxStoriesPerProfile:  2,
	}
	p := NewPlanner(actions, rand.NewSource(1))

	plan := p.Plan()
	require.True(t, plan.Has(ActionLike))
	assert.Equal(t, 3, plan.MaxLikes)
	assert.Equal(t, 1, plan.MaxComments)
	assert.Equal(t, 2, plan.MaxStories)
}

func TestPlanOf(t *testing.T) {
	plan := PlanOf(config.ActionsConfig{MaxLikesPerProfile: 2}, ActionLike, ActionStoryWatch)
	assert.True(t, plan.Has(ActionLike))
	assert.True(t, plan.Has(ActionStoryWatch))
	assert.False(t, plan.Has(ActionFollow))
	assert.Equal(t, []ActionKind{ActionLike, ActionStoryWatch}, plan.Kinds())
	assert.False(t, plan.Empty())
	assert.True(t, PlanOf(config.ActionsConfig{}).Empty())
}
