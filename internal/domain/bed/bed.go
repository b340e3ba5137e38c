package bed

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusAvailable   Status = "available"
	StatusOccupied    Status = "occupied"
	StatusMaintenance Status = "maintenance"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusAvailable, StatusOccupied, StatusMaintenance:
		return true
	}
	return false
}

// Bed is a physical allocatable unit. OccupyingAdmissionID is set iff the
// status is occupied; the registry is the single source of truth for whether
// a bed is free.
type Bed struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	Ward      string `gorm:"column:ward;type:varchar(100);not null;index;uniqueIndex:idx_beds_ward_number"`
	BedNumber string `gorm:"column:bed_number;type:varchar(20);not null;uniqueIndex:idx_beds_ward_number"`

	Status               Status     `gorm:"column:status;type:varchar(20);not null;default:'available';index"`
	OccupyingAdmissionID *uuid.UUID `gorm:"column:occupying_admission_id;type:uuid;index"`
}

func (Bed) TableName() string {
	return "ipd.beds"
}

func (b *Bed) IsAvailable() bool {
	return b.Status == StatusAvailable
}

type ListQuery struct {
	Ward   string
	Status *Status
}

// WardOccupancy is one row of the per-ward breakdown produced by the
// occupancy aggregator.
type WardOccupancy struct {
	Ward        string `json:"ward"`
	Total       int    `json:"total"`
	Available   int    `json:"available"`
	Occupied    int    `json:"occupied"`
	Maintenance int    `json:"maintenance"`
}
