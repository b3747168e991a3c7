// Package history remembers which profiles a bot account has already touched,
// so sessions skip them before spending a navigation on the device.
package history

import (
	"context"
	"time"
)

// Skip reasons recorded alongside a filtered profile.
const (
	ReasonProcessed    = "already_processed"
	ReasonFiltered     = "filtered"
	ReasonOwnAccount   = "own_account"
	ReasonTarget       = "target_account"
	ReasonPrivate      = "private"
	ReasonFollowerBand = "follower_count"
)

// Store is the session history backend. The engine consults it before
// navigating to a candidate and records outcomes after each interaction.
type Store interface {
	// ProcessedWithin reports whether the profile was interacted with inside
	// the given window. A zero window means "ever".
	ProcessedWithin(ctx context.Context, account, username string, window time.Duration) (bool, error)

	// Filtered reports whether the profile was previously rejected by the
	// session filters. Filter verdicts do not expire: the account is unlikely
	// to change character between sessions.
	Filtered(ctx context.Context, account, username string) (bool, error)

	// MarkProcessed records a completed interaction with the profile.
	MarkProcessed(ctx context.Context, account, username string) error

	// MarkFiltered records a filter rejection and its reason.
	MarkFiltered(ctx context.Context, account, username, reason string) error

	Close() error
}
