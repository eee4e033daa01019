package store

import (
	"context"

	"github.com/montanaflynn/stats"
)

// FitnessSummary describes the fitness distribution of a study's complete
// trials. Statistics are zero when no trial has completed.
type FitnessSummary struct {
	Complete int     `json:"complete"`
	Failed   int     `json:"failed"`
	Running  int     `json:"running"`
	Mean     float64 `json:"mean"`
	Median   float64 `json:"median"`
	StdDev   float64 `json:"stddev"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
}

// Summary computes the fitness summary of a study.
func (s *Store) Summary(ctx context.Context, studyID string) (*FitnessSummary, error) {
	counts, err := s.CountByState(ctx, studyID)
	if err != nil {
		return nil, err
	}
	data, err := s.CompletedFitness(ctx, studyID)
	if err != nil {
		return nil, err
	}

	sum := &FitnessSummary{
		Complete: counts[StateComplete],
		Failed:   counts[StateFailed],
		Running:  counts[StateRunning],
	}
	if len(data) == 0 {
		return sum, nil
	}
	if sum.Mean, err = stats.Mean(data); err != nil {
		return nil, err
	}
	if sum.Median, err = stats.Median(data); err != nil {
		return nil, err
	}
	if sum.StdDev, err = stats.StandardDeviation(data); err != nil {
		return nil, err
	}
	if sum.Min, err = stats.Min(data); err != nil {
		return nil, err
	}
	if sum.Max, err = stats.Max(data); err != nil {
		return nil, err
	}
	return sum, nil
}
