package bed

import "errors"

var (
	ErrBedNotFound = errors.New("bed not found")

	// ErrBedUnavailable is returned by the occupy compare-and-set when the
	// bed is not currently available. This is what the loser of a
	// double-booking race sees.
	ErrBedUnavailable = errors.New("bed is not available")

	// ErrBedReassigned is returned by the guarded release when the bed is
	// no longer held by the expected admission. The release must leave the
	// bed untouched in that case.
	ErrBedReassigned = errors.New("bed is not held by this admission")
)
