package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/masterFuf/taktik-bot-sub003/internal/checkpoint"
	"github.com/masterFuf/taktik-bot-sub003/internal/config"
	"github.com/masterFuf/taktik-bot-sub003/internal/device"
	"github.com/masterFuf/taktik-bot-sub003/internal/engine"
	"github.com/masterFuf/taktik-bot-sub003/internal/history"
	"github.com/masterFuf/taktik-bot-sub003/internal/logging"
	"github.com/masterFuf/taktik-bot-sub003/internal/markers"
	mcpserver "github.com/masterFuf/taktik-bot-sub003/internal/mcp"
	"github.com/masterFuf/taktik-bot-sub003/internal/nav"
	"github.com/masterFuf/taktik-bot-sub003/internal/plan"
	"github.com/masterFuf/taktik-bot-sub003/internal/popup"
	"github.com/masterFuf/taktik-bot-sub003/internal/profile"
	"github.com/masterFuf/taktik-bot-sub003/internal/recorder"
	"github.com/masterFuf/taktik-bot-sub003/internal/screen"
	"github.com/masterFuf/taktik-bot-sub003/internal/timing"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the config file")
	ssePort := flag.Int("sse-port", 0, "Optional SSE port override (falls back to config)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *ssePort != 0 {
		cfg.MCP.SSEPort = *ssePort
	}

	// In stdio mode the transport owns stdout/stderr, so logs must go to a
	// file regardless of the configured output.
	log, closer, err := logging.Init(cfg.Logging, cfg.MCP.SSEPort == 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}

	if err := run(ctx, &cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	cat, err := markers.Load(cfg.Markers.CatalogPath)
	if err != nil {
		return fmt.Errorf("loading marker catalog: %w", err)
	}

	rodCh := device.NewRodChannel(cfg.Device, log)
	if err := rodCh.Start(ctx, cfg.Device.AppURL); err != nil {
		return fmt.Errorf("starting device channel: %w", err)
	}
	defer rodCh.Close()

	var ch device.Channel = rodCh
	if cfg.Device.MaxOpsPerSecond > 0 {
		ch = device.Paced(ch, cfg.Device.MaxOpsPerSecond)
	}

	cls := screen.NewClassifier(ch, cat, cfg.Device.GetSettleDelay(), log)
	dis := popup.NewDismisser(ch, cls, cat, log)
	rec := nav.NewRecoverer(ch, cls, dis, cat, log)

	cps, err := checkpoint.NewStore(cfg.Checkpoint.Dir, log)
	if err != nil {
		return err
	}

	hist, err := openHistory(ctx, cfg)
	if err != nil {
		return err
	}
	defer hist.Close()

	trace, err := recorder.NewRecorder("")
	if err != nil {
		log.Warn().Err(err).Msg("session tracing disabled")
		trace = nil
	}

	planner := plan.NewPlanner(cfg.Actions, nil)
	model := timing.NewModel(cfg.Timing, nil)

	eng := engine.New(cfg, ch, cls, dis, rec, planner, model, cps, hist, trace, log)
	eng.Reopen = func(ctx context.Context, target string, kind screen.Kind) bool {
		url := strings.TrimRight(cfg.Device.AppURL, "/") + "/" + target + "/"
		if kind == screen.KindList {
			url += "followers/"
		}
		if err := rodCh.Navigate(ctx, url); err != nil {
			log.Warn().Str("url", url).Err(err).Msg("re-navigation failed")
			return false
		}
		return true
	}
	actor := profile.NewActor(ch, cls, dis, cat, eng, rand.NewSource(time.Now().UnixNano()), log)
	manager := engine.NewManager(eng, actor, log)

	server, err := mcpserver.NewServer(cfg, manager, cps, cls, log)
	if err != nil {
		return fmt.Errorf("initializing MCP server: %w", err)
	}

	if cfg.MCP.SSEPort > 0 {
		log.Info().Int("port", cfg.MCP.SSEPort).Msg("starting MCP SSE server")
		return server.StartSSE(ctx, cfg.MCP.SSEPort)
	}
	log.Info().Msg("starting MCP stdio server")
	return server.Start(ctx)
}

func openHistory(ctx context.Context, cfg *config.Config) (history.Store, error) {
	switch cfg.History.Backend {
	case "", "memory":
		return history.NewMemory(), nil
	case "redis":
		return history.NewRedis(ctx, cfg.History.RedisAddr, cfg.History.RedisDB, cfg.History.KeyPrefix, cfg.History.GetProcessedWindow())
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.History.Backend)
	}
}
