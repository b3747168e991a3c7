package markers

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Group is an ordered list of lookup expressions identifying one UI feature.
// A group matches when any of its expressions resolves to an element.
type Group []string

// Step is one entry of a popup dismissal recipe. Exactly one field is set.
type Step struct {
	// Tap clicks the control registered under this key.
	Tap string `yaml:"tap,omitempty"`
	// SwipeHandle drags the popup's drag handle downward by this fraction of
	// the screen height.
	SwipeHandle float64 `yaml:"swipe_handle,omitempty"`
	// TapOutside clicks above the popup bounds.
	TapOutside bool `yaml:"tap_outside,omitempty"`
	// Back triggers the generic back action.
	Back bool `yaml:"back,omitempty"`
}

// PopupSpec describes one known popup kind.
type PopupSpec struct {
	Indicators Group  `yaml:"indicators"`
	Recipe     []Step `yaml:"recipe"`
	// SoftRestriction marks rate-limit style popups that must be surfaced as
	// a distinct event, not merely dismissed.
	SoftRestriction bool `yaml:"soft_restriction"`
}

// ScreenMarkers groups the indicators the classifier probes, one group per
// screen kind.
type ScreenMarkers struct {
	List       Group `yaml:"list"`
	Profile    Group `yaml:"profile"`
	OwnProfile Group `yaml:"own_profile"`
	Post       Group `yaml:"post"`
	Login      Group `yaml:"login"`
	RateLimit  Group `yaml:"rate_limit"`
}

// ListMarkers locate candidate rows on the list screen.
type ListMarkers struct {
	// Row selects one clickable candidate row; the element text is the
	// candidate's profile id.
	Row string `yaml:"row"`
	// LoadMore selects the "see more" control that appears before the
	// suggestions section.
	LoadMore string `yaml:"load_more"`
}

// Catalog is the external table of UI lookup expressions. Its contents are
// maintained outside this module; only the shape is defined here.
type Catalog struct {
	Screens  ScreenMarkers        `yaml:"screens"`
	List     ListMarkers          `yaml:"list"`
	Popups   map[string]PopupSpec `yaml:"popups"`
	Controls map[string]string    `yaml:"controls"`
}

// Control returns the lookup expression registered under key.
func (c *Catalog) Control(key string) (string, bool) {
	v, ok := c.Controls[key]
	return v, ok
}

// Load reads a catalog file.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading marker catalog: %w", err)
	}
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parsing marker catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects catalogs that would leave the classifier blind.
func (c *Catalog) Validate() error {
	if len(c.Screens.List) == 0 {
		return fmt.Errorf("marker catalog: screens.list must not be empty")
	}
	if len(c.Screens.Profile) == 0 {
		return fmt.Errorf("marker catalog: screens.profile must not be empty")
	}
	if c.List.Row == "" {
		return fmt.Errorf("marker catalog: list.row is required")
	}
	for kind, spec := range c.Popups {
		if len(spec.Indicators) == 0 {
			return fmt.Errorf("marker catalog: popup %q has no indicators", kind)
		}
	}
	return nil
}
