package bed

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// GetByID returns the bed or ErrBedNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*Bed, error)

	// MarkOccupied is the compare-and-set that prevents double-booking:
	// it succeeds only when the bed is currently available, and records
	// the occupying admission. Returns ErrBedUnavailable otherwise.
	MarkOccupied(ctx context.Context, bedID, admissionID uuid.UUID) error

	// MarkAvailable releases the bed only while it is still held by
	// expectedAdmissionID, so a bed already reassigned elsewhere is left
	// untouched. Returns ErrBedReassigned on mismatch.
	MarkAvailable(ctx context.Context, bedID, expectedAdmissionID uuid.UUID) error

	// List returns beds matching the query, ordered by ward then number.
	List(ctx context.Context, q *ListQuery) ([]*Bed, error)

	// ListByWard groups every bed by ward for the occupancy aggregator.
	ListByWard(ctx context.Context) (map[string][]*Bed, error)
}
