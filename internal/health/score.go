package health

import (
	"fmt"

	"builddesk/internal/domain"
)

// Inputs bundles the backing data of every dimension for one project.
type Inputs struct {
	Schedule ScheduleInput
	Budget   BudgetInput
	Safety   SafetyInput
	Team     TeamInput
	Progress ProgressInput
}

// ScoreDimension scores one named dimension.
func ScoreDimension(name domain.Dimension, in Inputs) (domain.DimensionResult, error) {
	switch name {
	case domain.DimensionSchedule:
		return ScoreSchedule(in.Schedule)
	case domain.DimensionBudget:
		return ScoreBudget(in.Budget)
	case domain.DimensionSafety:
		return ScoreSafety(in.Safety)
	case domain.DimensionTeam:
		return ScoreTeam(in.Team)
	case domain.DimensionProgress:
		return ScoreProgress(in.Progress)
	default:
		return domain.DimensionResult{}, domain.InvalidInput("unknown dimension %q", name)
	}
}

// Pass is the outcome of scoring every dimension once. Dimensions that
// could not be scored are listed in Failed and left out of the aggregate.
type Pass struct {
	Aggregate domain.AggregateResult
	Failed    map[domain.Dimension]error
}

// ScoreAll scores each dimension independently and aggregates whatever
// succeeded.
func ScoreAll(in Inputs) (Pass, error) {
	var results []domain.DimensionResult
	failed := make(map[domain.Dimension]error)
	for _, name := range domain.Dimensions {
		r, err := ScoreDimension(name, in)
		if err != nil {
			failed[name] = err
			continue
		}
		results = append(results, r)
	}

	agg, err := Aggregate(results)
	if err != nil {
		return Pass{Failed: failed}, fmt.Errorf("score project: %d of %d dimensions failed: %w", len(failed), len(domain.Dimensions), err)
	}
	return Pass{Aggregate: agg, Failed: failed}, nil
}
