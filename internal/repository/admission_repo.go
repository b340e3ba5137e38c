package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wardflow/wardflow/internal/domain/admission"
	"github.com/wardflow/wardflow/pkg/metrics"
)

type AdmissionRepository struct {
	db *gorm.DB
	mc *metrics.Collector
}

func NewAdmissionRepository(db *gorm.DB, mc *metrics.Collector) *AdmissionRepository {
	return &AdmissionRepository{db: db, mc: mc}
}

func (r *AdmissionRepository) Create(ctx context.Context, a *admission.Admission) error {
	defer observe(r.mc, "insert", "admissions", time.Now())

	err := r.db.WithContext(ctx).Create(a).Error
	if err == nil {
		return nil
	}

	switch name := violatedConstraint(err); {
	case name == constraintPatientLive:
		// The read-then-decide check in the coordinator lost a race;
		// resolve the winning stay so the error carries its number.
		if live, lookupErr := r.GetActiveByPatient(ctx, a.PatientID); lookupErr == nil {
			return &admission.AlreadyAdmittedError{AdmissionNumber: live.AdmissionNumber}
		}
		return &admission.AlreadyAdmittedError{}
	case name == constraintAdmissionNumber || strings.Contains(name, "admission_number"):
		return admission.ErrDuplicateNumber
	}
	return fmt.Errorf("creating admission: %w", err)
}

func (r *AdmissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*admission.Admission, error) {
	defer observe(r.mc, "select", "admissions", time.Now())

	var a admission.Admission
	err := r.db.WithContext(ctx).Preload("Doctors").First(&a, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, admission.ErrAdmissionNotFound
		}
		return nil, fmt.Errorf("fetching admission: %w", err)
	}
	return &a, nil
}

func (r *AdmissionRepository) GetActiveByPatient(ctx context.Context, patientID uuid.UUID) (*admission.Admission, error) {
	defer observe(r.mc, "select", "admissions", time.Now())

	var a admission.Admission
	err := r.db.WithContext(ctx).
		Preload("Doctors").
		Where("patient_id = ? AND status = ?", patientID, admission.StatusAdmitted).
		First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, admission.ErrAdmissionNotFound
		}
		return nil, fmt.Errorf("fetching active admission: %w", err)
	}
	return &a, nil
}

func (r *AdmissionRepository) Update(ctx context.Context, a *admission.Admission) error {
	defer observe(r.mc, "update", "admissions", time.Now())

	res := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Model(&admission.Admission{}).
		Where("id = ?", a.ID).
		Updates(map[string]any{
			"bed_id":          a.BedID,
			"panel_id":        a.PanelID,
			"attendant_name":  a.AttendantName,
			"attendant_phone": a.AttendantPhone,
			"id_doc_type":     a.IdentityDocument.Type,
			"id_doc_number":   a.IdentityDocument.Number,
			"status":          a.Status,
			"discharge_time":  a.DischargeTime,
		})
	if res.Error != nil {
		return fmt.Errorf("updating admission: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return admission.ErrAdmissionNotFound
	}
	return nil
}

func (r *AdmissionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	defer observe(r.mc, "delete", "admissions", time.Now())

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("admission_id = ?", id).
			Delete(&admission.DoctorAssignment{}).Error; err != nil {
			return fmt.Errorf("deleting doctor assignments: %w", err)
		}
		res := tx.Delete(&admission.Admission{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("deleting admission: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return admission.ErrAdmissionNotFound
		}
		return nil
	})
}

func (r *AdmissionRepository) List(ctx context.Context, q *admission.ListQuery) (*admission.PagedAdmissions, error) {
	defer observe(r.mc, "select", "admissions", time.Now())

	db := r.db.WithContext(ctx).Model(&admission.Admission{})

	if q.PatientID != nil {
		db = db.Where("patient_id = ?", *q.PatientID)
	}
	if q.BedID != nil {
		db = db.Where("bed_id = ?", *q.BedID)
	}
	if q.Status != nil {
		db = db.Where("status = ?", *q.Status)
	}
	if q.Period != "" {
		db = db.Where("admission_number LIKE ?", q.Period+"/%")
	}
	if q.From != nil {
		db = db.Where("admission_time >= ?", *q.From)
	}
	if q.To != nil {
		db = db.Where("admission_time < ?", *q.To)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("counting admissions: %w", err)
	}

	var items []*admission.Admission
	err := db.Preload("Doctors").
		Order("admission_time DESC").
		Offset((q.Page - 1) * q.PageSize).
		Limit(q.PageSize).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("listing admissions: %w", err)
	}

	totalPages := int((total + int64(q.PageSize) - 1) / int64(q.PageSize))
	return &admission.PagedAdmissions{
		Admissions: items,
		TotalCount: total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: totalPages,
	}, nil
}

func (r *AdmissionRepository) ReplaceDoctors(ctx context.Context, admissionID uuid.UUID, doctorIDs []uuid.UUID) error {
	defer observe(r.mc, "update", "admission_doctors", time.Now())

	// Delete-then-insert inside one transaction, so a reader never sees
	// the set empty mid-replace.
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("admission_id = ?", admissionID).
			Delete(&admission.DoctorAssignment{}).Error; err != nil {
			return fmt.Errorf("clearing doctor assignments: %w", err)
		}
		if len(doctorIDs) == 0 {
			return nil
		}
		rows := make([]admission.DoctorAssignment, 0, len(doctorIDs))
		for _, docID := range doctorIDs {
			rows = append(rows, admission.DoctorAssignment{
				AdmissionID: admissionID,
				DoctorID:    docID,
			})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("inserting doctor assignments: %w", err)
		}
		return nil
	})
}

func (r *AdmissionRepository) LatestNumberForPeriod(ctx context.Context, period string) (string, error) {
	defer observe(r.mc, "select", "admissions", time.Now())

	var number string
	err := r.db.WithContext(ctx).
		Model(&admission.Admission{}).
		Select("admission_number").
		Where("admission_number LIKE ?", period+"/%").
		Order("admission_number DESC").
		Limit(1).
		Scan(&number).Error
	if err != nil {
		return "", fmt.Errorf("querying latest admission number: %w", err)
	}
	return number, nil
}
