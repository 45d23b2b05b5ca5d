package db

import (
	"fmt"
	"strings"

	"github.com/agrlayush/smart-bedrock-api-load-balancer/internal/config"
	"github.com/agrlayush/smart-bedrock-api-load-balancer/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Migrate applies the schema for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if errAutoMigrate := conn.AutoMigrate(
		&models.Endpoint{},
		&models.Usage{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	return nil
}

// SeedEndpoints upserts the configured endpoint set. New regions start with
// zeroed counters; existing regions only pick up total_quota changes so usage
// history survives restarts.
func SeedEndpoints(conn *gorm.DB, endpoints []config.EndpointConfig) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if len(endpoints) == 0 {
		return fmt.Errorf("db: no endpoints to seed")
	}

	rows := make([]models.Endpoint, 0, len(endpoints))
	for _, ep := range endpoints {
		region := strings.TrimSpace(ep.Region)
		if region == "" || ep.TotalQuota <= 0 {
			return fmt.Errorf("db: invalid endpoint config: region=%q total=%d", ep.Region, ep.TotalQuota)
		}
		rows = append(rows, models.Endpoint{Region: region, TotalQuota: ep.TotalQuota})
	}

	if errUpsert := conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "region"}},
		DoUpdates: clause.AssignmentColumns([]string{"total_quota"}),
	}).Create(&rows).Error; errUpsert != nil {
		return fmt.Errorf("db: seed endpoints: %w", errUpsert)
	}
	return nil
}
