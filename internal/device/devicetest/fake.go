// Package devicetest provides a scriptable in-memory device channel for tests.
package devicetest

import (
	"context"
	"sync"
	"time"

	"github.com/masterFuf/taktik-bot-sub003/internal/device"
)

// Call records one channel operation.
type Call struct {
	Op     string
	Marker string
	Text   string
	X1, Y1 float64
	X2, Y2 float64
}

// Fake implements device.Channel against a mutable map of visible elements.
// Hooks let tests mutate the "screen" in response to actions.
type Fake struct {
	mu       sync.Mutex
	elements map[string][]device.Element
	calls    []Call

	// Err, when set, is returned by every operation.
	Err error
	// Info is returned by Screen.
	Info device.ScreenInfo

	// OnQuery runs after a Query is recorded, before it resolves.
	OnQuery func(marker string)
	// OnClick runs after a Click or ClickAt is recorded.
	OnClick func(el device.Element)
	// OnBack runs after a Back is recorded.
	OnBack func()
	// OnSwipe runs after a Swipe is recorded.
	OnSwipe func()
}

// New returns an empty fake with a phone-sized screen.
func New() *Fake {
	return &Fake{
		elements: make(map[string][]device.Element),
		Info:     device.ScreenInfo{Width: 420, Height: 900},
	}
}

// Show makes elements visible under marker, replacing previous ones.
func (f *Fake) Show(marker string, els ...device.Element) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.elements[marker] = els
}

// ShowText is shorthand for showing simple text elements under marker.
func (f *Fake) ShowText(marker string, texts ...string) {
	els := make([]device.Element, 0, len(texts))
	for i, txt := range texts {
		els = append(els, device.NewElement(marker, txt, device.Rect{X: 10, Y: float64(100 + 60*i), W: 380, H: 50}, nil))
	}
	f.Show(marker, els...)
}

// Hide removes all elements under marker.
func (f *Fake) Hide(marker string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.elements, marker)
}

// Clear removes everything from the screen.
func (f *Fake) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.elements = make(map[string][]device.Element)
}

// Calls returns a snapshot of recorded operations.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns how many operations of the given kind were recorded.
func (f *Fake) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (f *Fake) record(c Call) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

func (f *Fake) Query(ctx context.Context, marker string) ([]device.Element, error) {
	f.record(Call{Op: "query", Marker: marker})
	if f.OnQuery != nil {
		f.OnQuery(marker)
	}
	if f.Err != nil {
		return nil, f.Err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	els := f.elements[marker]
	out := make([]device.Element, len(els))
	copy(out, els)
	return out, nil
}

func (f *Fake) Click(ctx context.Context, el device.Element) error {
	f.record(Call{Op: "click", Marker: el.Marker, Text: el.Text})
	if f.Err != nil {
		return f.Err
	}
	if f.OnClick != nil {
		f.OnClick(el)
	}
	return nil
}

func (f *Fake) ClickAt(ctx context.Context, x, y float64) error {
	f.record(Call{Op: "click_at", X1: x, Y1: y})
	if f.Err != nil {
		return f.Err
	}
	if f.OnClick != nil {
		f.OnClick(device.Element{})
	}
	return nil
}

func (f *Fake) Swipe(ctx context.Context, x1, y1, x2, y2 float64, dur time.Duration) error {
	f.record(Call{Op: "swipe", X1: x1, Y1: y1, X2: x2, Y2: y2})
	if f.Err != nil {
		return f.Err
	}
	if f.OnSwipe != nil {
		f.OnSwipe()
	}
	return nil
}

func (f *Fake) Type(ctx context.Context, text string) error {
	f.record(Call{Op: "type", Text: text})
	return f.Err
}

func (f *Fake) Back(ctx context.Context) error {
	f.record(Call{Op: "back"})
	if f.Err != nil {
		return f.Err
	}
	if f.OnBack != nil {
		f.OnBack()
	}
	return nil
}

func (f *Fake) Screen(ctx context.Context) (device.ScreenInfo, error) {
	f.record(Call{Op: "screen"})
	if f.Err != nil {
		return device.ScreenInfo{}, f.Err
	}
	return f.Info, nil
}
