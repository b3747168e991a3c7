package mcp

import (
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/masterFuf/taktik-bot-sub003/internal/checkpoint"
	"github.com/masterFuf/taktik-bot-sub003/internal/config"
	"github.com/masterFuf/taktik-bot-sub003/internal/device/devicetest"
	"github.com/masterFuf/taktik-bot-sub003/internal/engine"
	"github.com/masterFuf/taktik-bot-sub003/internal/history"
	"github.com/masterFuf/taktik-bot-sub003/internal/markers"
	"github.com/masterFuf/taktik-bot-sub003/internal/nav"
	"github.com/masterFuf/taktik-bot-sub003/internal/plan"
	"github.com/masterFuf/taktik-bot-sub003/internal/popup"
	"github.com/masterFuf/taktik-bot-sub003/internal/profile"
	"github.com/masterFuf/taktik-bot-sub003/internal/screen"
	"github.com/masterFuf/taktik-bot-sub003/internal/timing"
)

func testServer(t *testing.T) (*Server, *devicetest.Fake, *checkpoint.Store) {
	t.Helper()

	defaults := config.DefaultConfig()
	cfg := &defaults
	cfg.Engine.PollLimit = 1
	off := false
	cfg.Timing.BreaksEnabled = &off

	cat := &markers.Catalog{
		Screens: markers.ScreenMarkers{
			List:    markers.Group{"m.list"},
			Profile: markers.Group{"m.profile"},
		},
		List:   markers.ListMarkers{Row: "m.row"},
		Popups: map[string]markers.PopupSpec{},
	}

	fake := devicetest.New()
	cls := screen.NewClassifier(fake, cat, 0, zerolog.Nop())
	dis := popup.NewDismisser(fake, cls, cat, zerolog.Nop())
	rec := nav.NewRecoverer(fake, cls, dis, cat, zerolog.Nop())
	planner := plan.NewPlanner(cfg.Actions, rand.NewSource(1))
	model := timing.NewModel(cfg.Timing, rand.NewSource(2))
	cps, err := checkpoint.NewStore(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	hist := history.NewMemory()

	eng := engine.New(cfg, fake, cls, dis, rec, planner, model, cps, hist, nil, zerolog.Nop())
	actor := profile.NewActor(fake, cls, dis, cat, nil, rand.NewSource(3), zerolog.Nop())
	manager := engine.NewManager(eng, actor, zerolog.Nop())

	srv, err := NewServer(cfg, manager, cps, cls, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv, fake, cps
}

func TestClassifyScreenTool(t *testing.T) {
	srv, fake, _ := testServer(t)
	fake.ShowText("m.list", "followers")

	res, err := srv.ExecuteTool("classify-screen", nil)
	if err != nil {
		t.Fatalf("classify-screen: %v", err)
	}
	out := res.(map[string]interface{})
	if out["screen"] != "list" {
		t.Errorf("screen = %v, want list", out["screen"])
	}
}

func TestCheckpointTools(t *testing.T) {
	srv, _, cps := testServer(t)
	if _, err := cps.Create("s1", "someone", []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}

	res, err := srv.ExecuteTool("list-checkpoints", nil)
	if err != nil {
		t.Fatalf("list-checkpoints: %v", err)
	}
	states := res.(map[string]interface{})["checkpoints"].([]*checkpoint.State)
	if len(states) != 1 || states[0].TargetUsername != "someone" {
		t.Errorf("checkpoints = %+v", states)
	}

	if _, err := srv.ExecuteTool("delete-checkpoint", map[string]interface{}{"target": "someone"}); err != nil {
		t.Fatalf("delete-checkpoint: %v", err)
	}
	state, err := cps.Load("someone")
	if err != nil {
		t.Fatal(err)
	}
	if state != nil {
		t.Error("checkpoint still present after delete")
	}

	if _, err := srv.ExecuteTool("delete-checkpoint", nil); err == nil {
		t.Error("delete-checkpoint without target must fail")
	}
}

func TestRunSessionToolValidation(t *testing.T) {
	srv, _, _ := testServer(t)
	if _, err := srv.ExecuteTool("run-followers-session", map[string]interface{}{}); err == nil {
		t.Error("missing target must fail")
	}
}

func TestSessionLifecycleTools(t *testing.T) {
	srv, fake, _ := testServer(t)
	fake.ShowText("m.list", "followers")

	res, err := srv.ExecuteTool("stop-session", nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.(map[string]interface{})["stopped"] != false {
		t.Error("stop with no session must report false")
	}

	if _, err := srv.ExecuteTool("run-followers-session", map[string]interface{}{"target": "someone", "account": "me"}); err != nil {
		t.Fatalf("run-followers-session: %v", err)
	}

	// An empty list exhausts its polls immediately; wait for the finish.
	deadline := time.After(5 * time.Second)
	for {
		res, err := srv.ExecuteTool("session-status", nil)
		if err != nil {
			t.Fatal(err)
		}
		st := res.(engine.Status)
		if !st.Running && st.Last != nil {
			if st.Last.StopCause != engine.StopEndOfList {
				t.Errorf("stop cause = %q, want %q", st.Last.StopCause, engine.StopEndOfList)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("session never finished")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestUnknownTool(t *testing.T) {
	srv, _, _ := testServer(t)
	if _, err := srv.ExecuteTool("no-such-tool", nil); err == nil {
		t.Error("expected error for unknown tool")
	}
}
