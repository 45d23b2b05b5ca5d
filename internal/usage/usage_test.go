package usage

import (
	"context"
	"testing"
	"time"

	"github.com/agrlayush/smart-bedrock-api-load-balancer/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	conn, errOpen := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := conn.AutoMigrate(&models.Usage{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return NewRecorder(conn)
}

func TestRecorderRecordAndRecent(t *testing.T) {
	recorder := newTestRecorder(t)

	recorder.Record("us-east-1", "test-model", 1, 120*time.Millisecond, map[string]any{"prompt_len": 24})
	recorder.Record("us-west-2", "test-model", 2, 340*time.Millisecond, nil)

	rows, errRecent := recorder.Recent(context.Background(), 10)
	if errRecent != nil {
		t.Fatalf("recent: %v", errRecent)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	// Newest first.
	if rows[0].Region != "us-west-2" || rows[0].Attempts != 2 {
		t.Fatalf("unexpected first row %+v", rows[0])
	}
	if rows[1].DurationMS != 120 {
		t.Fatalf("expected 120ms, got %d", rows[1].DurationMS)
	}
	if len(rows[1].Detail) == 0 {
		t.Fatalf("expected detail payload")
	}
}

func TestRecorderNilSafe(t *testing.T) {
	var recorder *Recorder
	recorder.Record("us-east-1", "m", 1, 0, nil)
	if rows, errRecent := recorder.Recent(context.Background(), 10); errRecent != nil || rows != nil {
		t.Fatalf("expected nil-safe recent, got %v %v", rows, errRecent)
	}
}
