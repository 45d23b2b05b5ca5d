package usage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/agrlayush/smart-bedrock-api-load-balancer/internal/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const recordTimeout = 5 * time.Second

// Recorder persists a usage row per served request. Recording is best-effort:
// a failed insert is logged, never surfaced to the request path.
type Recorder struct {
	db *gorm.DB
}

// NewRecorder constructs a Recorder backed by GORM.
func NewRecorder(db *gorm.DB) *Recorder { return &Recorder{db: db} }

// Record stores one served request.
func (r *Recorder) Record(region, model string, attempts int, duration time.Duration, detail map[string]any) {
	if r == nil || r.db == nil {
		return
	}

	dbCtx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	row := models.Usage{
		Region:     region,
		Model:      model,
		Attempts:   attempts,
		DurationMS: duration.Milliseconds(),
	}
	if len(detail) > 0 {
		payload, errMarshal := json.Marshal(detail)
		if errMarshal == nil {
			row.Detail = datatypes.JSON(payload)
		}
	}

	if errCreate := r.db.WithContext(dbCtx).Create(&row).Error; errCreate != nil {
		log.WithError(errCreate).WithField("region", region).Warn("usage: record failed")
	}
}

// Recent returns the most recent usage rows, newest first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]models.Usage, error) {
	if r == nil || r.db == nil {
		return nil, nil
	}
	if limit < 1 || limit > 500 {
		limit = 50
	}
	var rows []models.Usage
	if errFind := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error; errFind != nil {
		return nil, errFind
	}
	return rows, nil
}
