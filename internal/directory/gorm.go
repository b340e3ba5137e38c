package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormDirectory serves all three registries from the shared hospital
// database. The admission core treats it as read-only.
type GormDirectory struct {
	db *gorm.DB
}

func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

func (d *GormDirectory) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	var p Patient
	if err := d.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("fetching patient: %w", err)
	}
	return &p, nil
}

func (d *GormDirectory) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	var doc Doctor
	if err := d.db.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("fetching doctor: %w", err)
	}
	return &doc, nil
}

func (d *GormDirectory) ListDoctors(ctx context.Context) ([]*Doctor, error) {
	var docs []*Doctor
	if err := d.db.WithContext(ctx).Order("last_name, first_name").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("listing doctors: %w", err)
	}
	return docs, nil
}

func (d *GormDirectory) GetPanelByID(ctx context.Context, id uuid.UUID) (*Panel, error) {
	var p Panel
	if err := d.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPanelNotFound
		}
		return nil, fmt.Errorf("fetching panel: %w", err)
	}
	return &p, nil
}

func (d *GormDirectory) ListPanels(ctx context.Context) ([]*Panel, error) {
	var panels []*Panel
	if err := d.db.WithContext(ctx).Order("name").Find(&panels).Error; err != nil {
		return nil, fmt.Errorf("listing panels: %w", err)
	}
	return panels, nil
}

// Typed views so each consumer depends only on the registry it needs.

type doctorView struct{ *GormDirectory }

func (v doctorView) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return v.GetDoctorByID(ctx, id)
}

func (v doctorView) List(ctx context.Context) ([]*Doctor, error) {
	return v.ListDoctors(ctx)
}

type panelView struct{ *GormDirectory }

func (v panelView) GetByID(ctx context.Context, id uuid.UUID) (*Panel, error) {
	return v.GetPanelByID(ctx, id)
}

func (v panelView) List(ctx context.Context) ([]*Panel, error) {
	return v.ListPanels(ctx)
}

func (d *GormDirectory) Patients() PatientDirectory { return d }
func (d *GormDirectory) Doctors() DoctorDirectory   { return doctorView{d} }
func (d *GormDirectory) Panels() PanelDirectory     { return panelView{d} }
