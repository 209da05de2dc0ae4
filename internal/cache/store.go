// Package cache provides the intermediate result cache used by
// sequential workflow runs: a best-effort, TTL-bound store of step
// outcomes keyed by session and step id. It is an optimization, never a
// correctness dependency; callers treat every error as a miss.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/resumeforge/orchestrator/internal/workflow"
)

// DefaultTTL bounds how long an intermediate outcome stays reusable.
const DefaultTTL = time.Hour

// Store is the capability the engine is handed. Implementations must
// tolerate concurrent access; last write wins for a given key.
type Store interface {
	// Get returns the cached outcome for (sessionID, stepID), with
	// ok=false on a miss.
	Get(ctx context.Context, sessionID, stepID string) (workflow.Outcome, bool, error)
	// Set stores an outcome with the given TTL.
	Set(ctx context.Context, sessionID, stepID string, out workflow.Outcome, ttl time.Duration) error
}

// Key builds the storage key for a session/step pair.
func Key(sessionID, stepID string) string {
	return fmt.Sprintf("workflow:intermediate:%s:%s", sessionID, stepID)
}
