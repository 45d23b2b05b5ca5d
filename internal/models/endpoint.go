package models

// Endpoint tracks per-region quota state for a generation backend.
type Endpoint struct {
	Region string `gorm:"primaryKey;type:text" json:"region"` // Region identifier, unique key.

	TotalQuota int64 `gorm:"not null" json:"total_quota"`           // Requests allowed per window.
	UsedQuota  int64 `gorm:"not null;default:0" json:"used_quota"`  // Requests served in the current window.
	LastReset  int64 `gorm:"not null;default:0" json:"last_reset"`  // Window start, seconds since epoch.

	RequestCount int64 `gorm:"not null;default:0" json:"request_count"` // Lifetime request counter, observational only.
}

// TableName overrides the gorm table name.
func (Endpoint) TableName() string { return "endpoints" }

// Available returns the remaining quota in the endpoint's current window.
func (e Endpoint) Available() int64 {
	return e.TotalQuota - e.UsedQuota
}
