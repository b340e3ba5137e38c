package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/wardflow/wardflow/internal/domain"
	"github.com/wardflow/wardflow/pkg/metrics"
)

type AuditRepository struct {
	db *gorm.DB
	mc *metrics.Collector
}

func NewAuditRepository(db *gorm.DB, mc *metrics.Collector) *AuditRepository {
	return &AuditRepository{db: db, mc: mc}
}

func (r *AuditRepository) Create(ctx context.Context, entry *domain.AuditLog) error {
	defer observe(r.mc, "insert", "audit_logs", time.Now())

	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("writing audit log: %w", err)
	}
	return nil
}
