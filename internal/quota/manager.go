package quota

import (
	"sort"
	"time"

	"github.com/agrlayush/smart-bedrock-api-load-balancer/internal/models"
)

// DefaultWindow is the quota accumulation window applied when config omits one.
const DefaultWindow = 60 * time.Second

// Manager makes window-reset decisions and ranks endpoints for admission. It
// is stateless over store snapshots; all mutation goes through Store.TryUpdate.
type Manager struct {
	window time.Duration
}

// NewManager constructs a Manager with the given window length.
func NewManager(window time.Duration) *Manager {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Manager{window: window}
}

// Window returns the configured window length.
func (m *Manager) Window() time.Duration { return m.window }

// Stale reports whether the endpoint's window has elapsed and its counter is
// due for a reset.
func (m *Manager) Stale(ep models.Endpoint, now time.Time) bool {
	return now.Unix()-ep.LastReset >= int64(m.window/time.Second)
}

// Available returns the endpoint's remaining quota, treating a stale window as
// already reset so admission never waits on a separate reset round-trip.
func (m *Manager) Available(ep models.Endpoint, now time.Time) int64 {
	if m.Stale(ep, now) {
		return ep.TotalQuota
	}
	return ep.Available()
}

// Rank orders endpoints by descending available quota, ties broken by
// ascending region for determinism. Endpoints without available quota are
// excluded. Returns ErrNoAvailableEndpoint when nothing remains.
func (m *Manager) Rank(endpoints []models.Endpoint, now time.Time) ([]models.Endpoint, error) {
	ranked := make([]models.Endpoint, 0, len(endpoints))
	for _, ep := range endpoints {
		if m.Available(ep, now) > 0 {
			ranked = append(ranked, ep)
		}
	}
	if len(ranked) == 0 {
		return nil, ErrNoAvailableEndpoint
	}
	sort.Slice(ranked, func(i, j int) bool {
		availI := m.Available(ranked[i], now)
		availJ := m.Available(ranked[j], now)
		if availI != availJ {
			return availI > availJ
		}
		return ranked[i].Region < ranked[j].Region
	})
	return ranked, nil
}

// Reserve computes the target state admitting one request against the
// endpoint: the usage increment, with the window reset folded in when the
// record is stale. The caller submits the result through Store.TryUpdate in a
// single conditional write. Returns false when the endpoint has no quota left.
func (m *Manager) Reserve(ep models.Endpoint, now time.Time) (newUsed, newReset int64, ok bool) {
	if m.Stale(ep, now) {
		return 1, now.Unix(), true
	}
	if ep.Available() <= 0 {
		return 0, 0, false
	}
	return ep.UsedQuota + 1, ep.LastReset, true
}
