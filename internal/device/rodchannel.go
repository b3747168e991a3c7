package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"

	"github.com/masterFuf/taktik-bot-sub003/internal/config"
)

// RodChannel implements Channel on top of a Chrome DevTools connection,
// driving the target application's web UI. Markers are resolved as CSS
// selectors. The channel owns exactly one page; it is not safe for
// concurrent use, matching the single-driver contract.
type RodChannel struct {
	cfg     config.DeviceConfig
	log     zerolog.Logger
	browser *rod.Browser
	page    *rod.Page
}

// NewRodChannel builds an unconnected channel. Call Start before use.
func NewRodChannel(cfg config.DeviceConfig, log zerolog.Logger) *RodChannel {
	return &RodChannel{cfg: cfg, log: log.With().Str("component", "device").Logger()}
}

// Start connects to (or launches) the browser and opens the entry page.
func (c *RodChannel) Start(ctx context.Context, startURL string) error {
	controlURL := c.cfg.DebuggerURL
	if controlURL == "" {
		l := launcher.New().Headless(c.cfg.IsHeadless())
		if len(c.cfg.Launch) > 0 {
			l = l.Bin(c.cfg.Launch[0])
		}
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("launching browser: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connecting to %s: %w", controlURL, err)
	}
	c.browser = browser

	page, err := browser.Page(proto.TargetCreateTarget{URL: startURL})
	if err != nil {
		return fmt.Errorf("opening entry page: %w", err)
	}
	if c.cfg.ViewportWidth > 0 && c.cfg.ViewportHeight > 0 {
		_ = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             c.cfg.ViewportWidth,
			Height:            c.cfg.ViewportHeight,
			DeviceScaleFactor: 1,
			Mobile:            true,
		})
	}
	c.page = page
	c.log.Info().Str("url", startURL).Msg("device channel started")
	return nil
}

// Navigate loads a URL in the channel's page and waits for it to settle.
// Not part of the Channel interface: only cold re-entry uses direct URLs.
func (c *RodChannel) Navigate(ctx context.Context, url string) error {
	if c.page == nil {
		return ErrUnreachable
	}
	page := c.page.Context(ctx).Timeout(c.cfg.GetActionTimeout())
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return page.WaitLoad()
}

// Close shuts down the browser connection.
func (c *RodChannel) Close() error {
	if c.browser == nil {
		return nil
	}
	err := c.browser.Close()
	c.browser = nil
	c.page = nil
	return err
}

// Query resolves a marker as a CSS selector. Lookup misses and probe
// timeouts come back as an empty set; any other error means the DevTools
// connection itself is broken and surfaces as ErrUnreachable.
func (c *RodChannel) Query(ctx context.Context, marker string) ([]Element, error) {
	if c.page == nil {
		return nil, ErrUnreachable
	}

	timeout := c.cfg.GetProbeTimeout()
	els, err := c.page.Context(ctx).Timeout(timeout).Elements(marker)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			c.log.Debug().Str("marker", marker).Msg("query timed out")
			return nil, nil
		}
		return nil, fmt.Errorf("query %s: %w: %s", marker, ErrUnreachable, err)
	}

	out := make([]Element, 0, len(els))
	for _, el := range els {
		text, _ := el.Text()
		var bounds Rect
		if shape, err := el.Shape(); err == nil && len(shape.Quads) > 0 {
			box := shape.Box()
			bounds = Rect{X: box.X, Y: box.Y, W: box.Width, H: box.Height}
		}
		out = append(out, NewElement(marker, text, bounds, el))
	}
	return out, nil
}

// Click taps an element. A stale handle (its screen is no longer displayed)
// fails; callers re-query or recover via the classifier.
func (c *RodChannel) Click(ctx context.Context, el Element) error {
	if c.page == nil {
		return ErrUnreachable
	}
	handle, ok := el.Handle().(*rod.Element)
	if !ok || handle == nil {
		return fmt.Errorf("click %s: stale element handle", el.Marker)
	}
	return handle.Context(ctx).Timeout(c.cfg.GetActionTimeout()).Click(proto.InputMouseButtonLeft, 1)
}

func (c *RodChannel) ClickAt(ctx context.Context, x, y float64) error {
	if c.page == nil {
		return ErrUnreachable
	}
	page := c.page.Context(ctx).Timeout(c.cfg.GetActionTimeout())
	if err := page.Mouse.MoveTo(proto.Point{X: x, Y: y}); err != nil {
		return err
	}
	return page.Mouse.Click(proto.InputMouseButtonLeft, 1)
}

// Swipe drags in small steps so the app sees a gesture, not a teleport.
func (c *RodChannel) Swipe(ctx context.Context, x1, y1, x2, y2 float64, dur time.Duration) error {
	if c.page == nil {
		return ErrUnreachable
	}
	page := c.page.Context(ctx).Timeout(c.cfg.GetActionTimeout() + dur)

	if err := page.Mouse.MoveTo(proto.Point{X: x1, Y: y1}); err != nil {
		return err
	}
	if err := page.Mouse.Down(proto.InputMouseButtonLeft, 1); err != nil {
		return err
	}
	const steps = 12
	for i := 1; i <= steps; i++ {
		t := float64(i) / steps
		px := x1 + (x2-x1)*t
		py := y1 + (y2-y1)*t
		if err := page.Mouse.MoveTo(proto.Point{X: px, Y: py}); err != nil {
			_ = page.Mouse.Up(proto.InputMouseButtonLeft, 1)
			return err
		}
		time.Sleep(dur / steps)
	}
	return page.Mouse.Up(proto.InputMouseButtonLeft, 1)
}

func (c *RodChannel) Type(ctx context.Context, text string) error {
	if c.page == nil {
		return ErrUnreachable
	}
	return c.page.Context(ctx).Timeout(c.cfg.GetActionTimeout()).InsertText(text)
}

func (c *RodChannel) Back(ctx context.Context) error {
	if c.page == nil {
		return ErrUnreachable
	}
	return c.page.Context(ctx).Timeout(c.cfg.GetActionTimeout()).NavigateBack()
}

func (c *RodChannel) Screen(ctx context.Context) (ScreenInfo, error) {
	if c.page == nil {
		return ScreenInfo{}, ErrUnreachable
	}
	info := ScreenInfo{Width: c.cfg.ViewportWidth, Height: c.cfg.ViewportHeight}

	page := c.page.Context(ctx).Timeout(c.cfg.GetProbeTimeout())
	if res, err := page.Eval(`() => ({w: window.innerWidth, h: window.innerHeight})`); err == nil {
		info.Width = res.Value.Get("w").Int()
		info.Height = res.Value.Get("h").Int()
	}
	if pi, err := page.Info(); err == nil {
		info.Hint = pi.Title
	}
	return info, nil
}
