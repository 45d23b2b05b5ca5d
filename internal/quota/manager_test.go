package quota

import (
	"testing"
	"time"

	"github.com/agrlayush/smart-bedrock-api-load-balancer/internal/models"
)

func TestManagerRankPrefersMostAvailable(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 30, 0, time.UTC)
	reset := now.Add(-30 * time.Second).Unix()
	m := NewManager(60 * time.Second)

	endpoints := []models.Endpoint{
		{Region: "us-east-1", TotalQuota: 500, UsedQuota: 499, LastReset: reset},
		{Region: "us-west-2", TotalQuota: 500, UsedQuota: 0, LastReset: reset},
	}

	ranked, errRank := m.Rank(endpoints, now)
	if errRank != nil {
		t.Fatalf("rank: %v", errRank)
	}
	if len(ranked) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(ranked))
	}
	if ranked[0].Region != "us-west-2" {
		t.Fatalf("expected us-west-2 first, got %s", ranked[0].Region)
	}
	if ranked[1].Region != "us-east-1" {
		t.Fatalf("expected us-east-1 second, got %s", ranked[1].Region)
	}
}

func TestManagerRankTieBreaksByRegion(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 30, 0, time.UTC)
	reset := now.Add(-30 * time.Second).Unix()
	m := NewManager(60 * time.Second)

	endpoints := []models.Endpoint{
		{Region: "us-west-2", TotalQuota: 100, UsedQuota: 50, LastReset: reset},
		{Region: "ap-south-1", TotalQuota: 100, UsedQuota: 50, LastReset: reset},
		{Region: "eu-west-1", TotalQuota: 100, UsedQuota: 50, LastReset: reset},
	}

	ranked, errRank := m.Rank(endpoints, now)
	if errRank != nil {
		t.Fatalf("rank: %v", errRank)
	}
	want := []string{"ap-south-1", "eu-west-1", "us-west-2"}
	for i, region := range want {
		if ranked[i].Region != region {
			t.Fatalf("position %d: expected %s, got %s", i, region, ranked[i].Region)
		}
	}
}

func TestManagerRankTreatsStaleAsFull(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 2, 0, 0, time.UTC)
	m := NewManager(60 * time.Second)

	endpoints := []models.Endpoint{
		{Region: "us-east-1", TotalQuota: 500, UsedQuota: 500, LastReset: now.Add(-90 * time.Second).Unix()},
		{Region: "us-west-2", TotalQuota: 100, UsedQuota: 0, LastReset: now.Add(-30 * time.Second).Unix()},
	}

	ranked, errRank := m.Rank(endpoints, now)
	if errRank != nil {
		t.Fatalf("rank: %v", errRank)
	}
	if ranked[0].Region != "us-east-1" {
		t.Fatalf("expected stale us-east-1 ranked first with full availability, got %s", ranked[0].Region)
	}
	if avail := m.Available(ranked[0], now); avail != 500 {
		t.Fatalf("expected available 500 for stale endpoint, got %d", avail)
	}
}

func TestManagerRankExcludesExhausted(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 30, 0, time.UTC)
	reset := now.Add(-30 * time.Second).Unix()
	m := NewManager(60 * time.Second)

	endpoints := []models.Endpoint{
		{Region: "us-east-1", TotalQuota: 500, UsedQuota: 500, LastReset: reset},
	}

	if _, errRank := m.Rank(endpoints, now); errRank != ErrNoAvailableEndpoint {
		t.Fatalf("expected ErrNoAvailableEndpoint, got %v", errRank)
	}
}

func TestManagerReserveFoldsResetIntoIncrement(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 2, 0, 0, time.UTC)
	m := NewManager(60 * time.Second)

	stale := models.Endpoint{Region: "us-east-1", TotalQuota: 500, UsedQuota: 500, LastReset: now.Add(-90 * time.Second).Unix()}
	newUsed, newReset, ok := m.Reserve(stale, now)
	if !ok {
		t.Fatalf("expected reservation on stale endpoint")
	}
	if newUsed != 1 {
		t.Fatalf("expected used 1 after folded reset, got %d", newUsed)
	}
	if newReset != now.Unix() {
		t.Fatalf("expected last_reset %d, got %d", now.Unix(), newReset)
	}

	fresh := models.Endpoint{Region: "us-east-1", TotalQuota: 500, UsedQuota: 3, LastReset: now.Add(-10 * time.Second).Unix()}
	newUsed, newReset, ok = m.Reserve(fresh, now)
	if !ok || newUsed != 4 || newReset != fresh.LastReset {
		t.Fatalf("expected 4/%d, got %d/%d ok=%v", fresh.LastReset, newUsed, newReset, ok)
	}

	exhausted := models.Endpoint{Region: "us-east-1", TotalQuota: 500, UsedQuota: 500, LastReset: now.Add(-10 * time.Second).Unix()}
	if _, _, ok = m.Reserve(exhausted, now); ok {
		t.Fatalf("expected no reservation on exhausted endpoint")
	}
}

func TestManagerStaleBoundary(t *testing.T) {
	m := NewManager(60 * time.Second)
	reset := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ep := models.Endpoint{Region: "us-east-1", TotalQuota: 10, UsedQuota: 5, LastReset: reset.Unix()}

	if m.Stale(ep, reset.Add(59*time.Second)) {
		t.Fatalf("expected window fresh at 59s")
	}
	if !m.Stale(ep, reset.Add(60*time.Second)) {
		t.Fatalf("expected window stale at 60s")
	}
}
