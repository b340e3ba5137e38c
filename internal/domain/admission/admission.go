package admission

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an in-patient stay.
//
// State transitions possibilities:
//
//	admitted → discharged | lama | expired | transferred  (via discharge)
//	admitted → admitted                                   (via shift-bed or edit)
//
// Terminal states accept no further transitions; hard delete is allowed in
// any state.
type Status string

const (
	StatusAdmitted    Status = "admitted"
	StatusDischarged  Status = "discharged"
	StatusLAMA        Status = "lama"
	StatusTransferred Status = "transferred"
	StatusExpired     Status = "expired"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusAdmitted, StatusDischarged, StatusLAMA, StatusTransferred, StatusExpired:
		return true
	}
	return false
}

// IsTerminal reports whether the stay has ended.
func (s Status) IsTerminal() bool {
	return s.IsValid() && s != StatusAdmitted
}

// IdentityDocType classifies the attendant-supplied identity document.
type IdentityDocType string

const (
	IDDocAadhaar        IdentityDocType = "aadhaar"
	IDDocPassport       IdentityDocType = "passport"
	IDDocVoterID        IdentityDocType = "voter_id"
	IDDocDrivingLicence IdentityDocType = "driving_licence"
	IDDocNone           IdentityDocType = "none"
)

func (t IdentityDocType) IsValid() bool {
	switch t {
	case IDDocAadhaar, IDDocPassport, IDDocVoterID, IDDocDrivingLicence, IDDocNone:
		return true
	}
	return false
}

type IdentityDocument struct {
	Type   IdentityDocType `gorm:"column:id_doc_type;type:varchar(30);not null;default:'none'" json:"type"`
	Number string          `gorm:"column:id_doc_number;type:varchar(50)" json:"number"`
}

type Admission struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	// AdmissionNumber is the human-facing IPD number, "<period>/<seq>".
	// Immutable once assigned.
	AdmissionNumber string `gorm:"column:admission_number;type:varchar(20);not null;uniqueIndex"`

	PatientID uuid.UUID  `gorm:"column:patient_id;type:uuid;not null;index"`
	BedID     uuid.UUID  `gorm:"column:bed_id;type:uuid;not null;index"`
	PanelID   *uuid.UUID `gorm:"column:panel_id;type:uuid;index"`

	AttendantName  string `gorm:"column:attendant_name;type:varchar(100);not null"`
	AttendantPhone string `gorm:"column:attendant_phone;type:varchar(20);not null"`

	IdentityDocument

	Status        Status     `gorm:"column:status;type:varchar(20);not null;default:'admitted';index"`
	AdmissionTime time.Time  `gorm:"column:admission_time;not null;index"`
	DischargeTime *time.Time `gorm:"column:discharge_time"`

	Doctors []DoctorAssignment `gorm:"foreignKey:AdmissionID;constraint:OnDelete:CASCADE"`

	CreatedBy uuid.UUID `gorm:"column:created_by;type:uuid;not null"`
}

func (Admission) TableName() string {
	return "ipd.admissions"
}

// CanTransitionTo reports whether the discharge path may move the stay to
// newStatus. Bed shifts and edits do not change status and are not modeled
// here.
func (a *Admission) CanTransitionTo(newStatus Status) bool {
	return a.Status == StatusAdmitted && newStatus.IsTerminal()
}

// Close ends the stay with the given terminal status.
func (a *Admission) Close(terminal Status, dischargeTime time.Time) error {
	if a.Status.IsTerminal() {
		return ErrAdmissionTerminal
	}
	if !a.CanTransitionTo(terminal) {
		return ErrInvalidStatusTransition
	}
	a.Status = terminal
	a.DischargeTime = &dischargeTime
	return nil
}

// DoctorAssignment links an admission to one attending doctor. Rows have no
// independent lifecycle: created with the admission, replaced wholesale on
// edit, removed with the admission.
type DoctorAssignment struct {
	AdmissionID uuid.UUID `gorm:"column:admission_id;type:uuid;primaryKey"`
	DoctorID    uuid.UUID `gorm:"column:doctor_id;type:uuid;primaryKey;index"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (DoctorAssignment) TableName() string {
	return "ipd.admission_doctors"
}

// DoctorIDs returns the attending-doctor set in assignment order.
func (a *Admission) DoctorIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(a.Doctors))
	for _, d := range a.Doctors {
		ids = append(ids, d.DoctorID)
	}
	return ids
}

type AdmitCommand struct {
	PatientID        uuid.UUID
	BedID            uuid.UUID
	DoctorIDs        []uuid.UUID
	PanelID          *uuid.UUID
	AdmissionTime    time.Time
	AttendantName    string
	AttendantPhone   string
	IdentityDocument IdentityDocument
	// Period overrides the fiscal period derived from AdmissionTime when set.
	Period    string
	CreatedBy uuid.UUID
}

type EditCommand struct {
	DoctorIDs        *[]uuid.UUID
	PanelID          *uuid.UUID
	AttendantName    *string
	AttendantPhone   *string
	IdentityDocument *IdentityDocument
	UpdatedBy        uuid.UUID
}

type ListQuery struct {
	PatientID *uuid.UUID
	BedID     *uuid.UUID
	Status    *Status
	Period    string
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}

type PagedAdmissions struct {
	Admissions []*Admission
	TotalCount int64
	Page       int
	PageSize   int
	TotalPages int
}
