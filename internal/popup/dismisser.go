package popup

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/masterFuf/taktik-bot-sub003/internal/device"
	"github.com/masterFuf/taktik-bot-sub003/internal/markers"
	"github.com/masterFuf/taktik-bot-sub003/internal/screen"
)

// DragHandleControl is the catalog key for the popup drag handle.
const DragHandleControl = "popup.drag_handle"

// Dismisser clears known popups by running their ordered recipe, re-verifying
// after every step. It reports soft-restriction popups loudly but never
// decides to stop a session itself.
type Dismisser struct {
	ch  device.Channel
	cls *screen.Classifier
	cat *markers.Catalog
	log zerolog.Logger

	// OnSoftRestriction fires once per Dismiss call when the popup kind is
	// flagged as a rate-limit signal, before any dismissal attempt.
	OnSoftRestriction func(kind string)
}

// NewDismisser builds a dismisser over the shared channel and classifier.
func NewDismisser(ch device.Channel, cls *screen.Classifier, cat *markers.Catalog, log zerolog.Logger) *Dismisser {
	return &Dismisser{
		ch:  ch,
		cls: cls,
		cat: cat,
		log: log.With().Str("component", "popup").Logger(),
	}
}

// Dismiss runs the recipe for kind until one step clears the popup. Unknown
// kinds fall back to a single back action.
func (d *Dismisser) Dismiss(ctx context.Context, kind string) bool {
	spec, known := d.cat.Popups[kind]
	recipe := spec.Recipe
	if len(recipe) == 0 {
		recipe = []markers.Step{{Back: true}}
	}

	if known && spec.SoftRestriction {
		d.log.Warn().Str("popup", kind).Msg("soft restriction popup detected")
		if d.OnSoftRestriction != nil {
			d.OnSoftRestriction(kind)
		}
	}

	if known && !d.cls.PopupOpen(ctx, kind) {
		return true
	}

	for i, step := range recipe {
		d.runStep(ctx, step)
		d.cls.Settle()

		if !d.cls.PopupOpen(ctx, kind) {
			d.log.Debug().Str("popup", kind).Int("step", i+1).Msg("popup dismissed")
			return true
		}
	}

	cleared := !d.cls.PopupOpen(ctx, kind)
	if !cleared {
		d.log.Warn().Str("popup", kind).Msg("popup survived all recipe steps")
	}
	return cleared
}

// runStep executes one recipe step. Failures are treated as "control absent"
// and the next step gets its turn.
func (d *Dismisser) runStep(ctx context.Context, step markers.Step) {
	switch {
	case step.Tap != "":
		marker, ok := d.cat.Control(step.Tap)
		if !ok {
			d.log.Debug().Str("control", step.Tap).Msg("tap step references unknown control")
			return
		}
		els, err := d.ch.Query(ctx, marker)
		if err != nil || len(els) == 0 {
			return
		}
		_ = d.ch.Click(ctx, els[0])

	case step.SwipeHandle > 0:
		d.swipeHandleDown(ctx, step.SwipeHandle)

	case step.TapOutside:
		info, err := d.ch.Screen(ctx)
		if err != nil {
			return
		}
		// Top strip of the screen sits above any bottom-sheet popup.
		_ = d.ch.ClickAt(ctx, float64(info.Width)/2, float64(info.Height)*0.06)

	case step.Back:
		_ = d.ch.Back(ctx)
	}
}

// swipeHandleDown drags the popup's handle toward the bottom of the screen.
// Without a visible handle it falls back to the typical sheet position.
func (d *Dismisser) swipeHandleDown(ctx context.Context, fraction float64) {
	info, err := d.ch.Screen(ctx)
	if err != nil {
		return
	}
	h := float64(info.Height)
	w := float64(info.Width)

	startX := w / 2
	startY := h * 0.37
	if marker, ok := d.cat.Control(DragHandleControl); ok {
		if els, err := d.ch.Query(ctx, marker); err == nil && len(els) > 0 {
			startX, startY = els[0].Bounds.Center()
		}
	}

	endY := startY + h*fraction
	if max := h * 0.95; endY > max {
		endY = max
	}
	_ = d.ch.Swipe(ctx, startX, startY, startX, endY, 300*time.Millisecond)
}
