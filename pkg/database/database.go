package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wardflow/wardflow/internal/config"
	"github.com/wardflow/wardflow/internal/directory"
	"github.com/wardflow/wardflow/internal/domain"
	"github.com/wardflow/wardflow/internal/domain/admission"
	"github.com/wardflow/wardflow/internal/domain/bed"
)

func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:      gormlogger.Default.LogMode(gormlogger.Silent),
		PrepareStmt: true,
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: cfg.DSN(),
	}), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}

func Migrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("running database migrations")
	start := time.Now()

	schemas := []string{"ipd", "registry", "audit"} // logical namespace
	for _, schema := range schemas {
		if err := db.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)).Error; err != nil {
			return fmt.Errorf("creating schema %s: %w", schema, err)
		}
	}

	models := []any{
		&domain.AuditLog{},
		&directory.Patient{},
		&directory.Doctor{},
		&directory.Panel{},
		&bed.Bed{},
		&admission.Admission{},
		&admission.DoctorAssignment{},
	}

	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto-migrating models: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("creating indexes: %w", err)
	}

	log.Info("migrations completed", zap.Duration("duration", time.Since(start)))
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []struct {
		name  string
		query string
	}{
		// One live stay per patient. Backstop for the application-level
		// check, which is read-then-decide and racy on its own.
		{
			name:  "uq_admissions_patient_live",
			query: `CREATE UNIQUE INDEX IF NOT EXISTS uq_admissions_patient_live ON ipd.admissions (patient_id) WHERE status = 'admitted'`,
		},
		// A bed may back at most one live stay.
		{
			name:  "uq_admissions_bed_live",
			query: `CREATE UNIQUE INDEX IF NOT EXISTS uq_admissions_bed_live ON ipd.admissions (bed_id) WHERE status = 'admitted'`,
		},
		{
			name:  "idx_admissions_period",
			query: `CREATE INDEX IF NOT EXISTS idx_admissions_period ON ipd.admissions (admission_number text_pattern_ops)`,
		},
		{
			name:  "idx_beds_ward_status",
			query: `CREATE INDEX IF NOT EXISTS idx_beds_ward_status ON ipd.beds (ward, status)`,
		},
	}

	for _, idx := range indexes {
		if err := db.Exec(idx.query).Error; err != nil {
			return fmt.Errorf("creating index %s: %w", idx.name, err)
		}
	}

	return nil
}
