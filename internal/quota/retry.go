package quota

import (
	"context"
	"errors"
	"time"

	"github.com/agrlayush/smart-bedrock-api-load-balancer/internal/models"
	log "github.com/sirupsen/logrus"
)

const retryBackoff = 100 * time.Millisecond

// RetryingStore decorates a Store with bounded retries on transient store
// failures. Conflicts pass through untouched; they are a concurrency signal,
// not a failure.
type RetryingStore struct {
	inner   Store
	retries int
	sleepFn func(time.Duration)
}

// NewRetryingStore constructs a RetryingStore that retries each failed call up
// to retries additional times.
func NewRetryingStore(inner Store, retries int) *RetryingStore {
	if retries < 0 {
		retries = 0
	}
	return &RetryingStore{inner: inner, retries: retries, sleepFn: time.Sleep}
}

// LoadAll delegates with retry on ErrStoreUnavailable.
func (s *RetryingStore) LoadAll(ctx context.Context) ([]models.Endpoint, error) {
	var rows []models.Endpoint
	err := s.do(ctx, "load", func() error {
		var errLoad error
		rows, errLoad = s.inner.LoadAll(ctx)
		return errLoad
	})
	return rows, err
}

// TryUpdate delegates with retry on ErrStoreUnavailable.
func (s *RetryingStore) TryUpdate(ctx context.Context, region string, expectedUsed, expectedReset, newUsed, newReset int64) (bool, error) {
	var committed bool
	err := s.do(ctx, "update", func() error {
		var errUpdate error
		committed, errUpdate = s.inner.TryUpdate(ctx, region, expectedUsed, expectedReset, newUsed, newReset)
		return errUpdate
	})
	return committed, err
}

func (s *RetryingStore) do(ctx context.Context, op string, fn func() error) error {
	var errLast error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			s.sleepFn(retryBackoff)
		}
		errLast = fn()
		if errLast == nil {
			return nil
		}
		if !errors.Is(errLast, ErrStoreUnavailable) {
			return errLast
		}
		log.WithError(errLast).WithField("op", op).Warn("quota store unavailable, retrying")
	}
	return errLast
}
