package admission

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create persists a new admission together with its doctor assignments.
	// Returns ErrDuplicateNumber when the admission number is already taken
	// and AlreadyAdmittedError when the patient already has a live stay
	// (store-level backstops for the allocator and uniqueness races).
	Create(ctx context.Context, a *Admission) error

	// GetByID retrieves an admission with its doctor assignments.
	// Returns ErrAdmissionNotFound if not found.
	GetByID(ctx context.Context, id uuid.UUID) (*Admission, error)

	// GetActiveByPatient returns the patient's live (status = admitted)
	// stay, or ErrAdmissionNotFound when there is none.
	GetActiveByPatient(ctx context.Context, patientID uuid.UUID) (*Admission, error)

	// Update persists mutable admission fields (status, bed, discharge
	// time, attendant, panel, identity document). Doctor assignments are
	// managed through ReplaceDoctors.
	Update(ctx context.Context, a *Admission) error

	// Delete hard-removes the admission and its doctor assignments.
	Delete(ctx context.Context, id uuid.UUID) error

	// List returns a paginated, filtered view of the ledger.
	List(ctx context.Context, q *ListQuery) (*PagedAdmissions, error)

	// ReplaceDoctors swaps the attending-doctor set wholesale, within a
	// single transaction so the set is never observably empty mid-edit.
	ReplaceDoctors(ctx context.Context, admissionID uuid.UUID, doctorIDs []uuid.UUID) error

	// LatestNumberForPeriod returns the greatest admission number with the
	// "<period>/" prefix, or "" when the period has no admissions yet.
	LatestNumberForPeriod(ctx context.Context, period string) (string, error)
}
