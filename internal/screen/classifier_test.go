package screen

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/masterFuf/taktik-bot-sub003/internal/device/devicetest"
	"github.com/masterFuf/taktik-bot-sub003/internal/markers"
)

func testCatalog() *markers.Catalog {
	return &markers.Catalog{
		Screens: markers.ScreenMarkers{
			List:       markers.Group{"m.list"},
			Profile:    markers.Group{"m.profile"},
			OwnProfile: markers.Group{"m.own"},
			Post:       markers.Group{"m.post"},
			Login:      markers.Group{"m.login"},
			RateLimit:  markers.Group{"m.ratelimit"},
		},
		List: markers.ListMarkers{Row: "m.row"},
		Popups: map[string]markers.PopupSpec{
			"suggestions": {Indicators: markers.Group{"m.popup.suggestions"}},
			"blocked":     {Indicators: markers.Group{"m.popup.blocked"}, SoftRestriction: true},
		},
	}
}

func TestClassifyPriorityOrder(t *testing.T) {
	fake := devicetest.New()
	c := NewClassifier(fake, testCatalog(), 0, zerolog.Nop())
	ctx := context.Background()

	if got := c.Classify(ctx); !got.Is(KindUnknown) {
		t.Errorf("empty screen: got %v, want unknown", got)
	}

	fake.ShowText("m.ratelimit", "try again later")
	if got := c.Classify(ctx); !got.Is(KindRateLimited) {
		t.Errorf("got %v, want rate_limited", got)
	}

	fake.ShowText("m.popup.blocked", "action blocked")
	got := c.Classify(ctx)
	if !got.Is(KindPopup) || got.Popup != "blocked" {
		t.Errorf("got %v, want popup:blocked", got)
	}

	// A visible profile outranks any popup indicator.
	fake.ShowText("m.profile", "header")
	if got := c.Classify(ctx); !got.Is(KindProfile) {
		t.Errorf("got %v, want profile", got)
	}

	// List outranks everything.
	fake.ShowText("m.list", "followers")
	if got := c.Classify(ctx); !got.Is(KindList) {
		t.Errorf("got %v, want list", got)
	}
}

func TestClassifyOwnProfile(t *testing.T) {
	fake := devicetest.New()
	c := NewClassifier(fake, testCatalog(), 0, zerolog.Nop())
	ctx := context.Background()

	fake.ShowText("m.profile", "header")
	fake.ShowText("m.own", "edit profile")
	if got := c.Classify(ctx); !got.Is(KindOwnProfile) {
		t.Errorf("got %v, want own_profile", got)
	}

	fake.Hide("m.own")
	if got := c.Classify(ctx); !got.Is(KindProfile) {
		t.Errorf("got %v, want profile", got)
	}
}

func TestPopupOpen(t *testing.T) {
	fake := devicetest.New()
	c := NewClassifier(fake, testCatalog(), 0, zerolog.Nop())
	ctx := context.Background()

	if c.PopupOpen(ctx, "suggestions") {
		t.Error("expected suggestions popup closed")
	}
	fake.ShowText("m.popup.suggestions", "suggested for you")
	if !c.PopupOpen(ctx, "suggestions") {
		t.Error("expected suggestions popup open")
	}
	if c.PopupOpen(ctx, "no-such-kind") {
		t.Error("unknown popup kind must report closed")
	}
}

func TestSettleUsesConfiguredDelay(t *testing.T) {
	fake := devicetest.New()
	c := NewClassifier(fake, testCatalog(), 700*time.Millisecond, zerolog.Nop())

	var slept time.Duration
	c.sleep = func(d time.Duration) { slept += d }

	c.Settle()
	if slept != 700*time.Millisecond {
		t.Errorf("expected settle of 700ms, got %v", slept)
	}
}

func TestStateString(t *testing.T) {
	if s := (State{Kind: KindPopup, Popup: "blocked"}).String(); s != "popup:blocked" {
		t.Errorf("got %q", s)
	}
	if s := (State{Kind: KindList}).String(); s != "list" {
		t.Errorf("got %q", s)
	}
}
