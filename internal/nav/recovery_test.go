package nav

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/masterFuf/taktik-bot-sub003/internal/device/devicetest"
	"github.com/masterFuf/taktik-bot-sub003/internal/markers"
	"github.com/masterFuf/taktik-bot-sub003/internal/popup"
	"github.com/masterFuf/taktik-bot-sub003/internal/screen"
)

func testCatalog() *markers.Catalog {
	return &markers.Catalog{
		Screens: markers.ScreenMarkers{
			List:    markers.Group{"m.list"},
			Profile: markers.Group{"m.profile"},
			Post:    markers.Group{"m.post"},
		},
		List: markers.ListMarkers{Row: "m.row"},
		Popups: map[string]markers.PopupSpec{
			"suggestions": {
				Indicators: markers.Group{"m.popup.suggestions"},
				Recipe:     []markers.Step{{Back: true}},
			},
		},
		Controls: map[string]string{},
	}
}

func newRecoverer(fake *devicetest.Fake) *Recoverer {
	cat := testCatalog()
	cls := screen.NewClassifier(fake, cat, 0, zerolog.Nop())
	dis := popup.NewDismisser(fake, cls, cat, zerolog.Nop())
	r := NewRecoverer(fake, cls, dis, cat, zerolog.Nop())
	r.retryWait = time.Millisecond
	return r
}

func TestEnsureFastPath(t *testing.T) {
	fake := devicetest.New()
	r := newRecoverer(fake)

	fake.ShowText("m.list", "followers")
	if !r.Ensure(context.Background(), screen.KindList, false) {
		t.Fatal("expected fast path success")
	}
	if fake.CallCount("back") != 0 {
		t.Errorf("fast path must not press back, got %d", fake.CallCount("back"))
	}
}

func TestEnsureForceGoesBackOnce(t *testing.T) {
	fake := devicetest.New()
	r := newRecoverer(fake)

	// On a profile; one back lands on the list.
	fake.ShowText("m.profile", "header")
	fake.OnBack = func() {
		fake.Hide("m.profile")
		fake.ShowText("m.list", "followers")
	}

	if !r.Ensure(context.Background(), screen.KindList, true) {
		t.Fatal("expected recovery after one back")
	}
	if fake.CallCount("back") != 1 {
		t.Errorf("expected exactly 1 back, got %d", fake.CallCount("back"))
	}
}

func TestEnsureSecondBackClearsInterposedScreen(t *testing.T) {
	fake := devicetest.New()
	r := newRecoverer(fake)

	// profile -> post -> list: two backs needed.
	fake.ShowText("m.post", "post detail")
	backs := 0
	fake.OnBack = func() {
		backs++
		switch backs {
		case 1:
			fake.Clear()
			fake.ShowText("m.profile", "header")
		case 2:
			fake.Clear()
			fake.ShowText("m.list", "followers")
		}
	}

	if !r.Ensure(context.Background(), screen.KindList, true) {
		t.Fatal("expected recovery after two backs")
	}
	if backs != 2 {
		t.Errorf("expected exactly 2 backs, got %d", backs)
	}
}

func TestEnsureEscalatesToReentry(t *testing.T) {
	fake := devicetest.New()
	r := newRecoverer(fake)

	// Backs never help.
	fake.ShowText("m.post", "stuck")
	reentered := 0
	r.Reenter = func(ctx context.Context, target screen.Kind) bool {
		reentered++
		fake.Clear()
		fake.ShowText("m.list", "followers")
		return true
	}

	if !r.Ensure(context.Background(), screen.KindList, true) {
		t.Fatal("expected recovery via re-entry")
	}
	if reentered != 1 {
		t.Errorf("expected one re-entry, got %d", reentered)
	}
	if fake.CallCount("back") != 2 {
		t.Errorf("expected both back rungs first, got %d", fake.CallCount("back"))
	}
}

func TestEnsureExhaustionReturnsFalse(t *testing.T) {
	fake := devicetest.New()
	r := newRecoverer(fake)

	fake.ShowText("m.post", "stuck forever")
	if r.Ensure(context.Background(), screen.KindList, true) {
		t.Fatal("expected recovery failure with no re-entry configured")
	}
	if fake.CallCount("back") != 2 {
		t.Errorf("ladder must stop after two back attempts, got %d backs", fake.CallCount("back"))
	}
}

func TestEnsureDismissesPopupOnFastPath(t *testing.T) {
	fake := devicetest.New()
	r := newRecoverer(fake)

	fake.ShowText("m.list", "followers")
	fake.ShowText("m.popup.suggestions", "suggested for you")
	fake.OnBack = func() { fake.Hide("m.popup.suggestions") }

	// The classifier ranks list above popups, so the fast path matches even
	// with the popup indicator present; no back rung may run.
	if !r.Ensure(context.Background(), screen.KindList, false) {
		t.Fatal("expected success")
	}
}

func TestEnsurePopupOverUnknownScreen(t *testing.T) {
	fake := devicetest.New()
	r := newRecoverer(fake)

	fake.ShowText("m.popup.suggestions", "suggested for you")
	fake.OnBack = func() {
		fake.Hide("m.popup.suggestions")
		fake.ShowText("m.list", "followers")
	}

	if !r.Ensure(context.Background(), screen.KindList, false) {
		t.Fatal("expected popup dismissal to reveal the list")
	}
}
