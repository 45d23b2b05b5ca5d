package models

import (
	"time"

	"gorm.io/datatypes"
)

// Usage records one served generation request.
type Usage struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	Region string `gorm:"type:text;not null;index" json:"region"` // Serving region.
	Model  string `gorm:"type:text;not null" json:"model"`        // Upstream model identifier.

	Attempts   int   `gorm:"not null;default:1" json:"attempts"`   // Candidates tried before success.
	DurationMS int64 `gorm:"not null;default:0" json:"duration_ms"` // Invocation latency.

	Detail datatypes.JSON `gorm:"type:jsonb" json:"detail,omitempty"` // Extra invocation metadata.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"` // Creation timestamp.
}

// TableName overrides the gorm table name.
func (Usage) TableName() string { return "usage" }
