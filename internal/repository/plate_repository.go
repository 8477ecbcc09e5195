package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lpr-service/internal/domain/plate"
	"lpr-service/internal/utils"
)

type PlateRepository struct {
	db *gorm.DB
}

func NewPlateRepository(db *gorm.DB) *PlateRepository {
	return &PlateRepository{db: db}
}

func (Plate) TableName() string {
	return "plates"
}

func (SyncBatch) TableName() string {
	return "plate_sync_batches"
}

type Plate struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	PlateNumber string          `gorm:"not null;uniqueIndex" json:"plate_number"`
	Normalized  string          `gorm:"not null" json:"normalized"`
	PlateOrigin *string         `json:"plate_origin,omitempty"`
	ExpDate     *datatypes.Date `gorm:"type:date" json:"exp_date,omitempty"`
	DetectedAt  time.Time       `gorm:"not null" json:"detected_at"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type SyncBatch struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	RowCount  int            `gorm:"not null"`
	Payload   datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time
}

// SyncRow is what the registry exports for durable storage.
type SyncRow struct {
	PlateNumber string    `json:"plate_number"`
	ExpiryToken string    `json:"expiry_date"`
	ObservedAt  time.Time `json:"observed_at"`
}

// SyncPlates upserts rows by plate number. A stored expiry date is kept when
// the incoming row has none, and detected_at only moves forward. The batch is
// recorded in plate_sync_batches in the same transaction.
func (r *PlateRepository) SyncPlates(ctx context.Context, rows []SyncRow) (uuid.UUID, int, error) {
	plates := buildPlateRows(rows)
	if len(plates) == 0 {
		return uuid.Nil, 0, nil
	}

	payload, err := json.Marshal(rows)
	if err != nil {
		return uuid.Nil, 0, fmt.Errorf("marshal sync payload: %w", err)
	}
	batch := SyncBatch{
		ID:        uuid.New(),
		RowCount:  len(plates),
		Payload:   datatypes.JSON(payload),
		CreatedAt: time.Now(),
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upsert := clause.OnConflict{
			Columns: []clause.Column{{Name: "plate_number"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"normalized":   gorm.Expr("EXCLUDED.normalized"),
				"plate_origin": gorm.Expr("EXCLUDED.plate_origin"),
				"exp_date":     gorm.Expr("COALESCE(EXCLUDED.exp_date, plates.exp_date)"),
				"detected_at":  gorm.Expr("GREATEST(EXCLUDED.detected_at, plates.detected_at)"),
				"updated_at":   gorm.Expr("now()"),
			}),
		}
		if err := tx.Clauses(upsert).Create(&plates).Error; err != nil {
			return fmt.Errorf("upsert plates: %w", err)
		}
		if err := tx.Create(&batch).Error; err != nil {
			return fmt.Errorf("record sync batch: %w", err)
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, 0, err
	}
	return batch.ID, len(plates), nil
}

// ListRecent returns the most recently detected plates.
func (r *PlateRepository) ListRecent(ctx context.Context, limit int) ([]Plate, error) {
	var plates []Plate
	err := r.db.WithContext(ctx).
		Order("detected_at DESC").
		Limit(limit).
		Find(&plates).Error
	return plates, err
}

// ListDetectedBetween returns plates detected in [from, to), newest first.
func (r *PlateRepository) ListDetectedBetween(ctx context.Context, from, to time.Time) ([]Plate, error) {
	var plates []Plate
	err := r.db.WithContext(ctx).
		Where("detected_at >= ? AND detected_at < ?", from, to).
		Order("detected_at DESC").
		Find(&plates).Error
	return plates, err
}

func (r *PlateRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Plate{}).Count(&count).Error
	return count, err
}

func buildPlateRows(rows []SyncRow) []Plate {
	plates := make([]Plate, 0, len(rows))
	index := make(map[string]int, len(rows))

	for _, row := range rows {
		number := strings.TrimSpace(row.PlateNumber)
		if number == "" {
			continue
		}

		p := Plate{
			ID:          uuid.New(),
			PlateNumber: number,
			Normalized:  utils.NormalizePlate(number),
			DetectedAt:  row.ObservedAt,
		}
		if origin := plate.OriginFromPlate(number); origin != "" {
			p.PlateOrigin = &origin
		}
		if exp, ok := plate.ExpiryToDate(row.ExpiryToken); ok {
			d := datatypes.Date(exp)
			p.ExpDate = &d
		}
		if p.DetectedAt.IsZero() {
			p.DetectedAt = time.Now()
		}

		// one row per plate per statement, or Postgres rejects the upsert
		if i, seen := index[number]; seen {
			plates[i] = mergeRows(plates[i], p)
			continue
		}
		index[number] = len(plates)
		plates = append(plates, p)
	}
	return plates
}

func mergeRows(existing, incoming Plate) Plate {
	if existing.ExpDate == nil {
		existing.ExpDate = incoming.ExpDate
	}
	if incoming.DetectedAt.After(existing.DetectedAt) {
		existing.DetectedAt = incoming.DetectedAt
	}
	return existing
}
