package quota

import "errors"

// Sentinel errors surfaced by the quota layer.
var (
	// ErrStoreUnavailable indicates a transient failure reading or writing
	// quota state. Callers retry a bounded number of times before giving up.
	ErrStoreUnavailable = errors.New("quota: store unavailable")

	// ErrNoAvailableEndpoint indicates every configured endpoint has exhausted
	// its window quota.
	ErrNoAvailableEndpoint = errors.New("quota: no endpoint with available quota")
)
