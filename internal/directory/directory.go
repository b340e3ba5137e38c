// Package directory exposes read-only lookups into the hospital registries
// that the admission core consumes but does not own: patients, doctors and
// panels (insurers). The records here are projections for validation and
// display; their CRUD lives elsewhere in the hospital system.
package directory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound = errors.New("patient not found")
	ErrDoctorNotFound  = errors.New("doctor not found")
	ErrPanelNotFound   = errors.New("panel not found")
)

type Patient struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	FirstName   string    `gorm:"column:first_name;type:varchar(100);not null" json:"first_name"`
	LastName    string    `gorm:"column:last_name;type:varchar(100);not null" json:"last_name"`
	DateOfBirth time.Time `gorm:"column:date_of_birth" json:"date_of_birth"`
	Gender      string    `gorm:"column:gender;type:varchar(20)" json:"gender"`
	Phone       string    `gorm:"column:phone;type:varchar(20)" json:"phone"`
}

func (Patient) TableName() string {
	return "registry.patients"
}

type Doctor struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	FirstName      string    `gorm:"column:first_name;type:varchar(100);not null" json:"first_name"`
	LastName       string    `gorm:"column:last_name;type:varchar(100);not null" json:"last_name"`
	Specialization string    `gorm:"column:specialization;type:varchar(100)" json:"specialization"`
}

func (Doctor) TableName() string {
	return "registry.doctors"
}

type Panel struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name string    `gorm:"column:name;type:varchar(150);not null" json:"name"`
	Code string    `gorm:"column:code;type:varchar(50);uniqueIndex" json:"code"`
}

func (Panel) TableName() string {
	return "registry.panels"
}

type PatientDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
}

type DoctorDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	List(ctx context.Context) ([]*Doctor, error)
}

type PanelDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Panel, error)
	List(ctx context.Context) ([]*Panel, error)
}
