package quota

import (
	"context"

	"github.com/agrlayush/smart-bedrock-api-load-balancer/internal/models"
)

// Store persists per-region quota state. The conditional write in TryUpdate is
// the only mutation path; concurrent callers coordinate through it instead of
// in-process locks.
type Store interface {
	// LoadAll returns a snapshot of every configured endpoint, no ordering
	// guarantee.
	LoadAll(ctx context.Context) ([]models.Endpoint, error)

	// TryUpdate commits newUsed/newReset for the region iff the stored record
	// still carries expectedUsed/expectedReset. It returns false on conflict,
	// which is a normal concurrency outcome, not an error. The lifetime
	// request counter is advanced by the number of requests the transition
	// admits.
	TryUpdate(ctx context.Context, region string, expectedUsed, expectedReset, newUsed, newReset int64) (bool, error)
}

// requestDelta returns how many admitted requests a state transition carries.
// When the window rolls forward the new window's usage is all fresh; otherwise
// it is the usage growth within the same window. Pure resets and corrections
// contribute zero.
func requestDelta(expectedUsed, expectedReset, newUsed, newReset int64) int64 {
	var delta int64
	if newReset > expectedReset {
		delta = newUsed
	} else {
		delta = newUsed - expectedUsed
	}
	if delta < 0 {
		return 0
	}
	return delta
}
