package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wardflow/wardflow/internal/domain/bed"
	"github.com/wardflow/wardflow/pkg/metrics"
)

type BedRepository struct {
	db *gorm.DB
	mc *metrics.Collector
}

func NewBedRepository(db *gorm.DB, mc *metrics.Collector) *BedRepository {
	return &BedRepository{db: db, mc: mc}
}

func (r *BedRepository) GetByID(ctx context.Context, id uuid.UUID) (*bed.Bed, error) {
	defer observe(r.mc, "select", "beds", time.Now())

	var b bed.Bed
	if err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, bed.ErrBedNotFound
		}
		return nil, fmt.Errorf("fetching bed: %w", err)
	}
	return &b, nil
}

// MarkOccupied is the double-booking guard: the conditional UPDATE only
// matches while the bed is still available, so of two concurrent admits at
// most one row update wins.
func (r *BedRepository) MarkOccupied(ctx context.Context, bedID, admissionID uuid.UUID) error {
	defer observe(r.mc, "update", "beds", time.Now())

	res := r.db.WithContext(ctx).
		Model(&bed.Bed{}).
		Where("id = ? AND status = ?", bedID, bed.StatusAvailable).
		Updates(map[string]any{
			"status":                 bed.StatusOccupied,
			"occupying_admission_id": admissionID,
		})
	if res.Error != nil {
		return fmt.Errorf("occupying bed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Distinguish a missing bed from a taken one.
		if _, err := r.GetByID(ctx, bedID); err != nil {
			return err
		}
		return bed.ErrBedUnavailable
	}
	return nil
}

// MarkAvailable releases only while the bed is still held by the expected
// admission; a bed already handed to someone else is left untouched.
func (r *BedRepository) MarkAvailable(ctx context.Context, bedID, expectedAdmissionID uuid.UUID) error {
	defer observe(r.mc, "update", "beds", time.Now())

	res := r.db.WithContext(ctx).
		Model(&bed.Bed{}).
		Where("id = ? AND occupying_admission_id = ?", bedID, expectedAdmissionID).
		Updates(map[string]any{
			"status":                 bed.StatusAvailable,
			"occupying_admission_id": nil,
		})
	if res.Error != nil {
		return fmt.Errorf("releasing bed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, bedID); err != nil {
			return err
		}
		return bed.ErrBedReassigned
	}
	return nil
}

func (r *BedRepository) List(ctx context.Context, q *bed.ListQuery) ([]*bed.Bed, error) {
	defer observe(r.mc, "select", "beds", time.Now())

	db := r.db.WithContext(ctx).Model(&bed.Bed{})
	if q.Ward != "" {
		db = db.Where("ward = ?", q.Ward)
	}
	if q.Status != nil {
		db = db.Where("status = ?", *q.Status)
	}

	var beds []*bed.Bed
	if err := db.Order("ward, bed_number").Find(&beds).Error; err != nil {
		return nil, fmt.Errorf("listing beds: %w", err)
	}
	return beds, nil
}

func (r *BedRepository) ListByWard(ctx context.Context) (map[string][]*bed.Bed, error) {
	beds, err := r.List(ctx, &bed.ListQuery{})
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]*bed.Bed)
	for _, b := range beds {
		grouped[b.Ward] = append(grouped[b.Ward], b)
	}
	return grouped, nil
}
