package quota

import (
	"context"
	"fmt"

	"github.com/agrlayush/smart-bedrock-api-load-balancer/internal/models"
	"gorm.io/gorm"
)

// GormStore persists endpoint quota state through GORM. The conditional write
// is an UPDATE guarded on the previously observed used_quota/last_reset pair,
// checked via RowsAffected.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore constructs a GormStore.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// LoadAll returns every endpoint record.
func (s *GormStore) LoadAll(ctx context.Context) ([]models.Endpoint, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("quota gorm store: not initialized: %w", ErrStoreUnavailable)
	}
	var rows []models.Endpoint
	if errFind := s.db.WithContext(ctx).Order("region ASC").Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("quota gorm store: load endpoints: %w: %w", ErrStoreUnavailable, errFind)
	}
	return rows, nil
}

// TryUpdate commits the transition iff the stored record is unchanged since it
// was read. RowsAffected zero means another caller won the race.
func (s *GormStore) TryUpdate(ctx context.Context, region string, expectedUsed, expectedReset, newUsed, newReset int64) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("quota gorm store: not initialized: %w", ErrStoreUnavailable)
	}
	delta := requestDelta(expectedUsed, expectedReset, newUsed, newReset)
	res := s.db.WithContext(ctx).
		Model(&models.Endpoint{}).
		Where("region = ? AND used_quota = ? AND last_reset = ?", region, expectedUsed, expectedReset).
		Updates(map[string]any{
			"used_quota":    newUsed,
			"last_reset":    newReset,
			"request_count": gorm.Expr("request_count + ?", delta),
		})
	if res.Error != nil {
		return false, fmt.Errorf("quota gorm store: update %s: %w: %w", region, ErrStoreUnavailable, res.Error)
	}
	return res.RowsAffected == 1, nil
}
