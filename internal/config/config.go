package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures all tunable settings for the automation server.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Device     DeviceConfig     `yaml:"device"`
	Engine     EngineConfig     `yaml:"engine"`
	Actions    ActionsConfig    `yaml:"actions"`
	Filters    FilterConfig     `yaml:"filters"`
	Timing     TimingConfig     `yaml:"timing"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	History    HistoryConfig    `yaml:"history"`
	Markers    MarkersConfig    `yaml:"markers"`
	MCP        MCPConfig        `yaml:"mcp"`
}

type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type LoggingConfig struct {
	// Level: trace | debug | info | warn | error.
	Level string `yaml:"level"`
	// Output: console | file. Stdio MCP mode forces file (stdout carries the protocol).
	Output string `yaml:"output"`
	File   string `yaml:"file"`
}

// DeviceConfig configures the device-control channel.
type DeviceConfig struct {
	// Control endpoint for the rod-backed channel (e.g., ws://localhost:9222).
	DebuggerURL string `yaml:"debugger_url"`
	// AppURL is the entry page the channel opens on start.
	AppURL string `yaml:"app_url"`
	// Optional launch command to start the browser in detached mode.
	Launch []string `yaml:"launch"`
	// Headless controls whether the browser runs headless (default: true).
	Headless *bool `yaml:"headless"`
	// Timeout for a single existence probe (e.g., "2s"). Probes never wait long.
	ProbeTimeout string `yaml:"probe_timeout"`
	// Timeout for side-effecting operations: click, type, swipe (e.g., "8s").
	ActionTimeout string `yaml:"action_timeout"`
	// Delay after a state-changing action before the screen is reclassified.
	SettleDelay string `yaml:"settle_delay"`
	// Hard floor on device operation frequency, independent of humanized delays.
	MaxOpsPerSecond float64 `yaml:"max_ops_per_second"`
	ViewportWidth   int     `yaml:"viewport_width"`
	ViewportHeight  int     `yaml:"viewport_height"`
}

// EngineConfig bounds a single interaction session.
type EngineConfig struct {
	// Quota is the target number of successful interactions per session.
	Quota int `yaml:"quota"`
	// PollLimit ends the session after this many consecutive candidate polls
	// that surface nothing new ("end of list").
	PollLimit int `yaml:"poll_limit"`

	// Account is the bot's own username; it is skipped when it appears in a
	// followers list and keys the interaction history.
	Account string `yaml:"account"`
	// MaxScrollAttempts is an absolute cap on scroll polls per session.
	MaxScrollAttempts int `yaml:"max_scroll_attempts"`
	// StopOnSoftRestriction ends the session early when a rate-limit popup
	// is classified. The engine itself never stops on the signal alone.
	StopOnSoftRestriction bool `yaml:"stop_on_soft_restriction"`
}

// Rate configures the chance of one action kind. Percentage (0-100) takes
// precedence over Probability (0.0-1.0) when both are present.
type Rate struct {
	Percentage  *float64 `yaml:"percentage"`
	Probability *float64 `yaml:"probability"`
}

// Normalize resolves the union to a probability in [0, 1].
func (r Rate) Normalize() float64 {
	var p float64
	switch {
	case r.Percentage != nil:
		p = *r.Percentage / 100
	case r.Probability != nil:
		p = *r.Probability
	}
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Pct is a convenience constructor for percentage-form rates.
func Pct(v float64) Rate { return Rate{Percentage: &v} }

// Prob is a convenience constructor for probability-form rates.
func Prob(v float64) Rate { return Rate{Probability: &v} }

// ActionsConfig holds per-kind rates and per-profile caps.
type ActionsConfig struct {
	Like       Rate `yaml:"like"`
	Follow     Rate `yaml:"follow"`
	Comment    Rate `yaml:"comment"`
	StoryWatch Rate `yaml:"story_watch"`
	StoryLike  Rate `yaml:"story_like"`

	MaxLikesPerProfile    int `yaml:"max_likes_per_profile"`
	MaxCommentsPerProfile int `yaml:"max_comments_per_profile"`
	MaxStoriesPerProfile  int `yaml:"max_stories_per_profile"`

	CommentTemplates []string `yaml:"comment_templates"`
}

// FilterConfig rejects profiles before any action is planned.
type FilterConfig struct {
	MinFollowers int `yaml:"min_followers"`
	MaxFollowers int `yaml:"max_followers"`
	MinPosts     int `yaml:"min_posts"`
	MaxFollowing int `yaml:"max_following"`
	// MaxFollowersFollowingRatio rejects obvious broadcast accounts.
	MaxFollowersFollowingRatio float64 `yaml:"max_followers_following_ratio"`
	SkipPrivate                *bool   `yaml:"skip_private"`
}

// ShouldSkipPrivate defaults to true.
func (f FilterConfig) ShouldSkipPrivate() bool {
	if f.SkipPrivate == nil {
		return true
	}
	return *f.SkipPrivate
}

// TimingConfig tunes the human-pacing model.
type TimingConfig struct {
	// BreaksEnabled toggles the short/long pause mechanism (default: true).
	BreaksEnabled *bool `yaml:"breaks_enabled"`
	// FatigueCap bounds the session-length delay multiplier (default: 1.5).
	FatigueCap float64 `yaml:"fatigue_cap"`
}

func (t TimingConfig) AreBreaksEnabled() bool {
	if t.BreaksEnabled == nil {
		return true
	}
	return *t.BreaksEnabled
}

type CheckpointConfig struct {
	Dir string `yaml:"dir"`
}

// HistoryConfig selects the skip-oracle backend.
type HistoryConfig struct {
	// Backend: memory | redis.
	Backend   string `yaml:"backend"`
	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`
	KeyPrefix string `yaml:"key_prefix"`
	// ProcessedWindow is how long a processed profile stays skippable.
	ProcessedWindow string `yaml:"processed_window"`
}

type MarkersConfig struct {
	// CatalogPath points at the external marker catalog file.
	CatalogPath string `yaml:"catalog_path"`
}

type MCPConfig struct {
	// When set, starts an SSE server on this port instead of stdio-only.
	SSEPort int `yaml:"sse_port"`
}

// DefaultConfig provides reasonable defaults for local development.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Name:    "taktik-bot",
			Version: "0.3.1",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "file",
			File:   "taktik-bot.log",
		},
		Device: DeviceConfig{
			AppURL:          "https://www.instagram.com/",
			Headless:        nil,
			ProbeTimeout:    "2s",
			ActionTimeout:   "8s",
			SettleDelay:     "1200ms",
			MaxOpsPerSecond: 2,
			ViewportWidth:   420,
			ViewportHeight:  900,
		},
		Engine: EngineConfig{
			Quota:             30,
			PollLimit:         4,
			MaxScrollAttempts: 100,
		},
		Actions: ActionsConfig{
			Like:                  Prob(0.8),
			Follow:                Prob(0.2),
			Comment:               Prob(0.1),
			StoryWatch:            Prob(0.2),
			StoryLike:             Prob(0.05),
			MaxLikesPerProfile:    3,
			MaxCommentsPerProfile: 1,
			MaxStoriesPerProfile:  3,
		},
		Filters: FilterConfig{
			MinFollowers:               0,
			MaxFollowers:               100000,
			MinPosts:                   3,
			MaxFollowing:               10000,
			MaxFollowersFollowingRatio: 10,
		},
		Timing: TimingConfig{
			FatigueCap: 1.5,
		},
		Checkpoint: CheckpointConfig{
			Dir: "data/checkpoints",
		},
		History: HistoryConfig{
			Backend:         "memory",
			RedisAddr:       "localhost:6379",
			KeyPrefix:       "taktik",
			ProcessedWindow: "24h",
		},
		Markers: MarkersConfig{
			CatalogPath: "markers.yaml",
		},
		MCP: MCPConfig{
			SSEPort: 0,
		},
	}
}

// Load reads YAML config from disk and overlays defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, errors.New("config path is required")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// Validate ensures required fields exist so the server can start deterministically.
func (c *Config) Validate() error {
	if c.Server.Name == "" {
		return errors.New("server.name is required")
	}
	if c.Engine.Quota < 0 {
		return errors.New("engine.quota must not be negative")
	}
	if c.Engine.PollLimit < 1 {
		return errors.New("engine.poll_limit must be at least 1")
	}
	switch c.History.Backend {
	case "", "memory":
	case "redis":
		if c.History.RedisAddr == "" {
			return errors.New("history.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown history backend %q", c.History.Backend)
	}
	return nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// GetProbeTimeout returns the parsed probe timeout with a sane default.
func (d DeviceConfig) GetProbeTimeout() time.Duration {
	return parseDuration(d.ProbeTimeout, 2*time.Second)
}

// GetActionTimeout returns the parsed action timeout with a sane default.
func (d DeviceConfig) GetActionTimeout() time.Duration {
	return parseDuration(d.ActionTimeout, 8*time.Second)
}

// GetSettleDelay returns the parsed post-action settle delay.
func (d DeviceConfig) GetSettleDelay() time.Duration {
	return parseDuration(d.SettleDelay, 1200*time.Millisecond)
}

// IsHeadless returns whether the browser should run headless (default: true).
func (d DeviceConfig) IsHeadless() bool {
	if d.Headless == nil {
		return true
	}
	return *d.Headless
}

// GetProcessedWindow returns the parsed skip window with a sane default.
func (h HistoryConfig) GetProcessedWindow() time.Duration {
	return parseDuration(h.ProcessedWindow, 24*time.Hour)
}
