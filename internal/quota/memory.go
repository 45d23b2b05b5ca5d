package quota

import (
	"context"
	"sync"

	"github.com/agrlayush/smart-bedrock-api-load-balancer/internal/models"
)

// MemoryStore implements Store over an in-process map. It backs tests and
// single-process deployments where durability does not matter.
type MemoryStore struct {
	mu        sync.Mutex
	endpoints map[string]*models.Endpoint
}

// NewMemoryStore constructs a MemoryStore seeded with the given endpoints.
func NewMemoryStore(endpoints []models.Endpoint) *MemoryStore {
	s := &MemoryStore{endpoints: make(map[string]*models.Endpoint, len(endpoints))}
	for _, ep := range endpoints {
		copied := ep
		s.endpoints[ep.Region] = &copied
	}
	return s
}

// LoadAll returns a copy of every endpoint record.
func (s *MemoryStore) LoadAll(_ context.Context) ([]models.Endpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Endpoint, 0, len(s.endpoints))
	for _, ep := range s.endpoints {
		out = append(out, *ep)
	}
	return out, nil
}

// TryUpdate commits the transition iff the record still matches the expected
// used/reset pair.
func (s *MemoryStore) TryUpdate(_ context.Context, region string, expectedUsed, expectedReset, newUsed, newReset int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ep, ok := s.endpoints[region]
	if !ok {
		return false, nil
	}
	if ep.UsedQuota != expectedUsed || ep.LastReset != expectedReset {
		return false, nil
	}
	ep.RequestCount += requestDelta(expectedUsed, expectedReset, newUsed, newReset)
	ep.UsedQuota = newUsed
	ep.LastReset = newReset
	return true, nil
}
