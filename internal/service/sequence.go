package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// seqWidth is the zero-padded width of the numeric suffix in an IPD number,
// "2024-25/007".
const seqWidth = 3

// NumberSource is the slice of the admission ledger the allocator reads.
type NumberSource interface {
	LatestNumberForPeriod(ctx context.Context, period string) (string, error)
}

// SequenceAllocator derives the next IPD number for a period from the
// highest number already issued. There is no counter table: deleting an
// admission frees its number for reuse by construction. Uniqueness under
// concurrent admits is enforced by the store's unique index, with the
// coordinator retrying on conflict.
type SequenceAllocator struct {
	source NumberSource
}

func NewSequenceAllocator(source NumberSource) *SequenceAllocator {
	return &SequenceAllocator{source: source}
}

// NextAdmissionNumber returns "<period>/<seq+1>" zero-padded, or
// "<period>/001" when the period has no admissions yet. Read failures come
// back wrapped in ErrAllocationFailed.
func (s *SequenceAllocator) NextAdmissionNumber(ctx context.Context, period string) (string, error) {
	latest, err := s.source.LatestNumberForPeriod(ctx, period)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAllocationFailed, err)
	}
	if latest == "" {
		return format(period, 1), nil
	}

	suffix, ok := strings.CutPrefix(latest, period+"/")
	if !ok {
		return "", fmt.Errorf("%w: malformed number %q for period %q", ErrAllocationFailed, latest, period)
	}
	seq, err := strconv.Atoi(suffix)
	if err != nil {
		return "", fmt.Errorf("%w: malformed suffix in %q", ErrAllocationFailed, latest)
	}
	return format(period, seq+1), nil
}

func format(period string, seq int) string {
	return fmt.Sprintf("%s/%0*d", period, seqWidth, seq)
}

// PeriodFor returns the accounting-period token for t, e.g. "2024-25" for
// any time between startMonth 2024 and startMonth 2025.
func PeriodFor(t time.Time, startMonth time.Month) string {
	year := t.Year()
	if t.Month() < startMonth {
		year--
	}
	return fmt.Sprintf("%d-%02d", year, (year+1)%100)
}
