package timing

import (
	"math/rand"
	"testing"
	"time"

	"github.com/masterFuf/taktik-bot-sub003/internal/config"
)

func newModel(t *testing.T) *Model {
	t.Helper()
	return NewModel(config.TimingConfig{}, rand.NewSource(99))
}

func TestDelayForStaysInBand(t *testing.T) {
	m := newModel(t)
	b := bands[Navigation]

	for i := 0; i < 1000; i++ {
		d := m.DelayFor(Navigation, 0, 0)
		secs := d.Seconds()
		if secs < b.min*0.8 || secs > b.max*1.2 {
			t.Fatalf("fresh-session delay %v outside clamp [%v, %v]", secs, b.min*0.8, b.max*1.2)
		}
	}
}

func TestDelayForUnknownKindUsesDefaultBand(t *testing.T) {
	m := newModel(t)
	d := m.DelayFor("no-such-kind", 0, 0)
	if d < time.Duration(defaultBand.min*0.8*float64(time.Second)) {
		t.Errorf("delay %v below default band", d)
	}
}

func TestFatigueGrowsAndCaps(t *testing.T) {
	m := NewModel(config.TimingConfig{FatigueCap: 1.5}, rand.NewSource(1))

	fresh := m.FatigueMultiplier(0, 0)
	if fresh != 1.0 {
		t.Errorf("fresh multiplier = %v, want 1.0", fresh)
	}
	mid := m.FatigueMultiplier(50, 30*time.Minute)
	if mid <= fresh {
		t.Errorf("multiplier must grow with the session, got %v", mid)
	}
	long := m.FatigueMultiplier(10000, 10*time.Hour)
	if long != 1.5 {
		t.Errorf("multiplier must cap at 1.5, got %v", long)
	}
}

func TestShouldPauseCadence(t *testing.T) {
	m := NewModel(config.TimingConfig{}, rand.NewSource(5))

	var breaks []Break
	for i := 1; i <= 200; i++ {
		if br, ok := m.ShouldPause(i); ok {
			breaks = append(breaks, br)
		}
	}

	if len(breaks) < 10 {
		t.Fatalf("expected regular breaks over 200 interactions, got %d", len(breaks))
	}
	sawLong := false
	for _, br := range breaks {
		switch br.Kind {
		case "short":
			if br.Duration < 5*time.Second || br.Duration > 15*time.Second {
				t.Errorf("short break %v outside 5-15s", br.Duration)
			}
		case "long":
			sawLong = true
			if br.Duration < 60*time.Second || br.Duration > 180*time.Second {
				t.Errorf("long break %v outside 60-180s", br.Duration)
			}
		default:
			t.Errorf("unknown break kind %q", br.Kind)
		}
	}
	if !sawLong {
		t.Error("expected at least one long break over 200 interactions")
	}
}

func TestShouldPauseDisabled(t *testing.T) {
	off := false
	m := NewModel(config.TimingConfig{BreaksEnabled: &off}, rand.NewSource(5))
	for i := 1; i <= 500; i++ {
		if _, ok := m.ShouldPause(i); ok {
			t.Fatal("breaks disabled but a pause was requested")
		}
	}
}

func TestShouldPauseResetsAfterBreak(t *testing.T) {
	m := NewModel(config.TimingConfig{}, rand.NewSource(11))

	first := -1
	for i := 1; i <= 100; i++ {
		if _, ok := m.ShouldPause(i); ok {
			first = i
			break
		}
	}
	if first < 0 {
		t.Fatal("no break in 100 interactions")
	}
	// Immediately after a break the counter restarts; the next interaction
	// must not trigger another one.
	if _, ok := m.ShouldPause(first + 1); ok {
		t.Error("break fired twice in a row")
	}
}
