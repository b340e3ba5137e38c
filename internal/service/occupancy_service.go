package service

import (
	"context"
	"sort"

	"github.com/wardflow/wardflow/internal/domain/bed"
	"github.com/wardflow/wardflow/pkg/metrics"
)

// OccupancyReport is a point-in-time snapshot derived from the bed registry.
type OccupancyReport struct {
	Total       int                 `json:"total"`
	Available   int                 `json:"available"`
	Occupied    int                 `json:"occupied"`
	Maintenance int                 `json:"maintenance"`
	Wards       []bed.WardOccupancy `json:"wards"`
}

// OccupancyService derives ward and hospital-wide occupancy statistics by
// scanning the bed registry. It never caches and never mutates.
type OccupancyService struct {
	bedRepo bed.Repository
	mc      *metrics.Collector
}

func NewOccupancyService(bedRepo bed.Repository, mc *metrics.Collector) *OccupancyService {
	return &OccupancyService{bedRepo: bedRepo, mc: mc}
}

func (s *OccupancyService) Aggregate(ctx context.Context) (*OccupancyReport, error) {
	byWard, err := s.bedRepo.ListByWard(ctx)
	if err != nil {
		return nil, err
	}

	report := &OccupancyReport{Wards: make([]bed.WardOccupancy, 0, len(byWard))}
	for ward, beds := range byWard {
		row := bed.WardOccupancy{Ward: ward}
		for _, b := range beds {
			row.Total++
			switch b.Status {
			case bed.StatusAvailable:
				row.Available++
			case bed.StatusOccupied:
				row.Occupied++
			case bed.StatusMaintenance:
				row.Maintenance++
			}
		}
		report.Total += row.Total
		report.Available += row.Available
		report.Occupied += row.Occupied
		report.Maintenance += row.Maintenance
		report.Wards = append(report.Wards, row)
	}

	sort.Slice(report.Wards, func(i, j int) bool {
		return report.Wards[i].Ward < report.Wards[j].Ward
	})

	s.mc.BedsOccupied.Set(float64(report.Occupied))

	return report, nil
}
