// Package repository provides the gorm-backed implementations of the domain
// repository interfaces. All cross-row consistency that the store can
// guarantee lives here (compare-and-set bed updates, partial unique
// indexes); everything else is the coordinator's job.
package repository

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wardflow/wardflow/pkg/metrics"
)

const (
	uniqueViolation = "23505"

	constraintPatientLive     = "uq_admissions_patient_live"
	constraintBedLive         = "uq_admissions_bed_live"
	constraintAdmissionNumber = "idx_ipd_admissions_admission_number"
)

// violatedConstraint returns the name of the violated unique constraint, or
// "" when err is not a uniqueness violation.
func violatedConstraint(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pgErr.ConstraintName
	}
	return ""
}

func observe(mc *metrics.Collector, operation, table string, start time.Time) {
	if mc != nil {
		mc.DBQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
