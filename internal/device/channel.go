package device

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// ErrUnreachable reports that the control channel itself is gone. It is the
// only device error callers may treat as fatal; everything else means
// "element absent".
var ErrUnreachable = errors.New("device: control channel unreachable")

// Rect is an on-screen bounding box in device pixels.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Center returns the midpoint of the box.
func (r Rect) Center() (float64, float64) {
	return r.X + r.W/2, r.Y + r.H/2
}

// Element is a weak handle to a UI element. It stays valid only while the
// screen that produced it is on display; re-query by marker when in doubt.
type Element struct {
	Marker string
	Text   string
	Bounds Rect

	handle any
}

// NewElement builds an element around a transport-specific handle.
func NewElement(marker, text string, bounds Rect, handle any) Element {
	return Element{Marker: marker, Text: text, Bounds: bounds, handle: handle}
}

// Handle exposes the transport-specific handle for channel implementations.
func (e Element) Handle() any { return e.handle }

// ScreenInfo is the transport's view of the current display.
type ScreenInfo struct {
	Width  int
	Height int
	// Hint is a transport-specific description of the current screen
	// (page title, activity name). Informational only.
	Hint string
}

// Channel is the device-control channel. All operations are synchronous and
// timeout-bounded through ctx; none auto-retries. A failed lookup returns an
// empty element set, not an error.
type Channel interface {
	// Query resolves a marker to the elements currently matching it.
	Query(ctx context.Context, marker string) ([]Element, error)
	// Click taps an element obtained from Query.
	Click(ctx context.Context, el Element) error
	// ClickAt taps a raw coordinate.
	ClickAt(ctx context.Context, x, y float64) error
	// Swipe drags from one coordinate to another over the given duration.
	Swipe(ctx context.Context, x1, y1, x2, y2 float64, dur time.Duration) error
	// Type sends text to the focused element.
	Type(ctx context.Context, text string) error
	// Back triggers the platform back action.
	Back(ctx context.Context) error
	// Screen reports display dimensions and a transport hint.
	Screen(ctx context.Context) (ScreenInfo, error)
}

type pacedChannel struct {
	ch  Channel
	lim *rate.Limiter
}

// Paced wraps a channel with a hard frequency floor: no matter how short the
// humanized delays get, device operations never exceed opsPerSecond.
func Paced(ch Channel, opsPerSecond float64) Channel {
	if opsPerSecond <= 0 {
		return ch
	}
	return &pacedChannel{ch: ch, lim: rate.NewLimiter(rate.Limit(opsPerSecond), 1)}
}

func (p *pacedChannel) wait(ctx context.Context) error {
	return p.lim.Wait(ctx)
}

func (p *pacedChannel) Query(ctx context.Context, marker string) ([]Element, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return p.ch.Query(ctx, marker)
}

func (p *pacedChannel) Click(ctx context.Context, el Element) error {
	if err := p.wait(ctx); err != nil {
		return err
	}
	return p.ch.Click(ctx, el)
}

func (p *pacedChannel) ClickAt(ctx context.Context, x, y float64) error {
	if err := p.wait(ctx); err != nil {
		return err
	}
	return p.ch.ClickAt(ctx, x, y)
}

func (p *pacedChannel) Swipe(ctx context.Context, x1, y1, x2, y2 float64, dur time.Duration) error {
	if err := p.wait(ctx); err != nil {
		return err
	}
	return p.ch.Swipe(ctx, x1, y1, x2, y2, dur)
}

func (p *pacedChannel) Type(ctx context.Context, text string) error {
	if err := p.wait(ctx); err != nil {
		return err
	}
	return p.ch.Type(ctx, text)
}

func (p *pacedChannel) Back(ctx context.Context) error {
	if err := p.wait(ctx); err != nil {
		return err
	}
	return p.ch.Back(ctx)
}

func (p *pacedChannel) Screen(ctx context.Context) (ScreenInfo, error) {
	if err := p.wait(ctx); err != nil {
		return ScreenInfo{}, err
	}
	return p.ch.Screen(ctx)
}
