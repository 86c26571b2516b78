package health

import (
	"fmt"

	"builddesk/internal/domain"
)

// Aggregate averages dimension scores without weighting.
func Aggregate(dimensions []domain.DimensionResult) (domain.AggregateResult, error) {
	if len(dimensions) == 0 {
		return domain.AggregateResult{}, fmt.Errorf("aggregate of no dimensions: %w", domain.ErrUndefinedAggregate)
	}
	var sum float64
	for _, d := range dimensions {
		sum += d.Score
	}
	overall := sum / float64(len(dimensions))

	out := make([]domain.DimensionResult, len(dimensions))
	copy(out, dimensions)
	return domain.AggregateResult{
		OverallScore:  overall,
		OverallStatus: OverallStatus(overall),
		Dimensions:    out,
	}, nil
}

func OverallStatus(score float64) domain.HealthStatus {
	switch {
	case score >= 85:
		return domain.StatusExcellent
	case score >= 70:
		return domain.StatusGood
	case score >= 50:
		return domain.StatusWarning
	default:
		return domain.StatusCritical
	}
}
