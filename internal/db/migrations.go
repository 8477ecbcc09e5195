package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,

	// One row per plate number; exp_date is the first day of the expiry month.
	`CREATE TABLE IF NOT EXISTS plates (
		id              UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		plate_number    TEXT NOT NULL,
		normalized      TEXT NOT NULL,
		plate_origin    TEXT,
		exp_date        DATE,
		detected_at     TIMESTAMPTZ NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_plates_plate_number ON plates(plate_number);`,
	`CREATE INDEX IF NOT EXISTS idx_plates_normalized ON plates(normalized);`,
	`CREATE INDEX IF NOT EXISTS idx_plates_detected_at ON plates(detected_at DESC);`,

	// Audit trail of registry exports
	`CREATE TABLE IF NOT EXISTS plate_sync_batches (
		id          UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		row_count   INT NOT NULL,
		payload     JSONB,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_plate_sync_batches_created_at ON plate_sync_batches(created_at);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
