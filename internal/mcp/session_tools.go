package mcp

import (
	"context"
	"fmt"

	"github.com/masterFuf/taktik-bot-sub003/internal/checkpoint"
	"github.com/masterFuf/taktik-bot-sub003/internal/config"
	"github.com/masterFuf/taktik-bot-sub003/internal/engine"
	"github.com/masterFuf/taktik-bot-sub003/internal/screen"
)

type RunSessionTool struct {
	manager *engine.Manager
	cfg     *config.Config
}

func (t *RunSessionTool) Name() string { return "run-followers-session" }
func (t *RunSessionTool) Description() string {
	return `Start an interaction session over a target account's followers list.

The session runs in the background: it walks the list, visits each new
profile, applies the configured filters and action rates, and records
progress in a checkpoint so it can resume after interruption.

Only one session can run at a time; starting while one is active fails.

Use session-status to follow progress and stop-session to cancel.

Returns: {started: true, target}.`
}
func (t *RunSessionTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"target": map[string]interface{}{
				"type":        "string",
				"description": "Username whose followers list to walk",
			},
			"account": map[string]interface{}{
				"type":        "string",
				"description": "The bot's own username, never interacted with",
			},
			"quota": map[string]interface{}{
				"type":        "integer",
				"description": "Override the configured interaction quota",
			},
		},
		"required": []string{"target"},
	}
}
func (t *RunSessionTool) Execute(_ context.Context, args map[string]interface{}) (interface{}, error) {
	target := getStringArg(args, "target")
	if target == "" {
		return nil, fmt.Errorf("target is required")
	}

	account := getStringArg(args, "account")
	if account == "" {
		account = t.cfg.Engine.Account
	}

	params := engine.Params{
		Account: account,
		Target:  target,
		Quota:   getIntArg(args, "quota", 0),
	}

	// Sessions outlive the tool call, so they get their own root context.
	if err := t.manager.Start(context.Background(), params); err != nil {
		return nil, err
	}
	return map[string]interface{}{"started": true, "target": target}, nil
}

type SessionStatusTool struct {
	manager *engine.Manager
}

func (t *SessionStatusTool) Name() string { return "session-status" }
func (t *SessionStatusTool) Description() string {
	return `Report whether a session is running and the result of the last
finished one, including its interaction stats and stop cause.`
}
func (t *SessionStatusTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}
func (t *SessionStatusTool) Execute(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	return t.manager.Status(), nil
}

type StopSessionTool struct {
	manager *engine.Manager
}

func (t *StopSessionTool) Name() string { return "stop-session" }
func (t *StopSessionTool) Description() string {
	return `Cancel the running session. The session winds down after the
current profile; its checkpoint stays on disk so the next run resumes.

Returns: {stopped: bool} - false when no session was running.`
}
func (t *StopSessionTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}
func (t *StopSessionTool) Execute(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{"stopped": t.manager.Stop()}, nil
}

type ListCheckpointsTool struct {
	cps *checkpoint.Store
}

func (t *ListCheckpointsTool) Name() string { return "list-checkpoints" }
func (t *ListCheckpointsTool) Description() string {
	return `List every stored session checkpoint: target, progress cursor and
total discovered followers. Checkpoints of completed sessions are removed
automatically, so anything listed here belongs to an interrupted run.`
}
func (t *ListCheckpointsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}
func (t *ListCheckpointsTool) Execute(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	states, err := t.cps.List()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"checkpoints": states}, nil
}

type DeleteCheckpointTool struct {
	cps *checkpoint.Store
}

func (t *DeleteCheckpointTool) Name() string { return "delete-checkpoint" }
func (t *DeleteCheckpointTool) Description() string {
	return `Discard a target's checkpoint so the next session starts from the
top of its followers list instead of resuming.`
}
func (t *DeleteCheckpointTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"target": map[string]interface{}{
				"type":        "string",
				"description": "Target username whose checkpoint to delete",
			},
		},
		"required": []string{"target"},
	}
}
func (t *DeleteCheckpointTool) Execute(_ context.Context, args map[string]interface{}) (interface{}, error) {
	target := getStringArg(args, "target")
	if target == "" {
		return nil, fmt.Errorf("target is required")
	}
	if err := t.cps.Delete(target); err != nil {
		return nil, err
	}
	return map[string]interface{}{"deleted": true, "target": target}, nil
}

type ClassifyScreenTool struct {
	cls *screen.Classifier
}

func (t *ClassifyScreenTool) Name() string { return "classify-screen" }
func (t *ClassifyScreenTool) Description() string {
	return `Probe the device and report which screen is currently displayed
(list, profile, post, a known popup, login, rate_limited or unknown).

Useful for diagnosing a stuck device before or after a session.`
}
func (t *ClassifyScreenTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}
func (t *ClassifyScreenTool) Execute(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	st := t.cls.Classify(ctx)
	out := map[string]interface{}{"screen": string(st.Kind)}
	if st.Popup != "" {
		out["popup"] = st.Popup
	}
	return out, nil
}
