package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agrlayush/smart-bedrock-api-load-balancer/internal/models"
	"github.com/agrlayush/smart-bedrock-api-load-balancer/internal/quota"
	log "github.com/sirupsen/logrus"
)

// ErrUpstreamInvocation indicates every attempted candidate's generation call
// failed. It wraps the last underlying failure.
var ErrUpstreamInvocation = errors.New("dispatch: upstream invocation failed")

// Invoker runs a generation request against a region's backend.
type Invoker interface {
	Invoke(ctx context.Context, region, prompt string) (string, error)
}

// Options bounds the dispatcher's per-request retry budget.
type Options struct {
	MaxAttempts     int // Candidates tried before giving up.
	ConflictRetries int // Conditional-write retries per candidate.
}

// Result is a successfully served generation request.
type Result struct {
	Region   string        // Endpoint that actually served the request.
	Text     string        // Generated text.
	Attempts int           // Candidates tried, including the winner.
	Duration time.Duration // Winning invocation latency.
}

// Dispatcher admits requests against the ranked candidate list, reserving a
// quota slot before each invocation and falling back to the next candidate on
// failure. Reservations are never rolled back: the upstream resource was
// consumed or contended either way.
type Dispatcher struct {
	store   quota.Store
	manager *quota.Manager
	invoker Invoker
	opts    Options
	nowFn   func() time.Time
}

// New constructs a Dispatcher.
func New(store quota.Store, manager *quota.Manager, invoker Invoker, opts Options) *Dispatcher {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.ConflictRetries < 0 {
		opts.ConflictRetries = 0
	}
	return &Dispatcher{
		store:   store,
		manager: manager,
		invoker: invoker,
		opts:    opts,
		nowFn:   time.Now,
	}
}

// Do serves one request. It snapshots the store, ranks candidates, and walks
// them in order until an invocation succeeds or the attempt budget runs out.
func (d *Dispatcher) Do(ctx context.Context, prompt string) (Result, error) {
	snapshot, errLoad := d.store.LoadAll(ctx)
	if errLoad != nil {
		return Result{}, errLoad
	}
	ranked, errRank := d.manager.Rank(snapshot, d.nowFn())
	if errRank != nil {
		return Result{}, errRank
	}

	var errLast error
	attempts := 0
	for _, candidate := range ranked {
		if attempts >= d.opts.MaxAttempts {
			break
		}
		attempts++

		reserved, errReserve := d.reserve(ctx, candidate)
		if errReserve != nil {
			return Result{}, errReserve
		}
		if !reserved {
			log.WithField("region", candidate.Region).Debug("reservation lost, trying next candidate")
			continue
		}

		started := d.nowFn()
		text, errInvoke := d.invoker.Invoke(ctx, candidate.Region, prompt)
		if errInvoke != nil {
			errLast = errInvoke
			log.WithError(errInvoke).WithField("region", candidate.Region).Warn("invocation failed, falling back")
			continue
		}
		return Result{
			Region:   candidate.Region,
			Text:     text,
			Attempts: attempts,
			Duration: d.nowFn().Sub(started),
		}, nil
	}

	if errLast != nil {
		return Result{}, fmt.Errorf("%w after %d attempts: %w", ErrUpstreamInvocation, attempts, errLast)
	}
	return Result{}, quota.ErrNoAvailableEndpoint
}

// reserve durably increments the candidate's usage before invocation, folding
// in a window reset when the record is stale. On conflict it re-reads the
// record and retries the same candidate a bounded number of times.
func (d *Dispatcher) reserve(ctx context.Context, candidate models.Endpoint) (bool, error) {
	current := candidate
	for attempt := 0; attempt <= d.opts.ConflictRetries; attempt++ {
		now := d.nowFn()
		newUsed, newReset, ok := d.manager.Reserve(current, now)
		if !ok {
			return false, nil
		}
		committed, errUpdate := d.store.TryUpdate(ctx, current.Region, current.UsedQuota, current.LastReset, newUsed, newReset)
		if errUpdate != nil {
			return false, errUpdate
		}
		if committed {
			return true, nil
		}
		reloaded, errReload := d.reload(ctx, current.Region)
		if errReload != nil {
			return false, errReload
		}
		if reloaded == nil {
			return false, nil
		}
		current = *reloaded
	}
	return false, nil
}

func (d *Dispatcher) reload(ctx context.Context, region string) (*models.Endpoint, error) {
	snapshot, errLoad := d.store.LoadAll(ctx)
	if errLoad != nil {
		return nil, errLoad
	}
	for i := range snapshot {
		if snapshot[i].Region == region {
			return &snapshot[i], nil
		}
	}
	return nil, nil
}
