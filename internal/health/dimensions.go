// Package health scores a project along five independent dimensions and
// averages them into an overall score.
//
// Every scorer is a pure function of its input. Thresholds are exact; do not
// swap >= for > when editing them.
package health

import (
	"fmt"
	"math"
	"time"

	"builddesk/internal/domain"
)

const (
	SafetyWindow = 30 * 24 * time.Hour
	TeamWindow   = 7 * 24 * time.Hour
)

// Previous is the score of the same dimension on the last pass, if any.
type Previous = *float64

type ScheduleInput struct {
	StartDate         time.Time
	EndDate           time.Time
	Now               time.Time
	ActualProgressPct float64
	Previous          Previous
}

// ScoreSchedule compares actual progress with the progress expected from
// elapsed calendar days. Days are counted in Now's location, so a window
// crossing a DST change still counts every calendar day once.
func ScoreSchedule(in ScheduleInput) (domain.DimensionResult, error) {
	loc := in.Now.Location()
	totalDays := calendarDays(in.StartDate, in.EndDate, loc)
	if totalDays <= 0 {
		return domain.DimensionResult{}, fmt.Errorf("schedule: project spans %d days: %w", totalDays, domain.ErrDivisionByZero)
	}
	elapsedDays := calendarDays(in.StartDate, in.Now, loc)
	expected := float64(elapsedDays) / float64(totalDays) * 100
	variance := in.ActualProgressPct - expected

	score, status := scheduleBucket(variance)
	return domain.DimensionResult{
		Name:    domain.DimensionSchedule,
		Score:   score,
		Status:  status,
		Trend:   trendFrom(score, in.Previous),
		Details: fmt.Sprintf("%.1f%% complete vs %.1f%% expected (%+.1f pts)", in.ActualProgressPct, expected, variance),
	}, nil
}

func scheduleBucket(variance float64) (float64, domain.HealthStatus) {
	switch {
	case variance >= 10:
		return 100, domain.StatusExcellent
	case variance >= 0:
		return 85, domain.StatusGood
	case variance >= -10:
		return 60, domain.StatusWarning
	default:
		return 30, domain.StatusCritical
	}
}

type BudgetInput struct {
	Budget     float64
	ActualCost float64
	Previous   Previous
}

// ScoreBudget scores remaining budget as a percentage of the total.
func ScoreBudget(in BudgetInput) (domain.DimensionResult, error) {
	if in.Budget == 0 {
		return domain.DimensionResult{}, fmt.Errorf("budget: zero budget: %w", domain.ErrDivisionByZero)
	}
	variance := (in.Budget - in.ActualCost) / in.Budget * 100

	score, status := budgetBucket(variance)
	return domain.DimensionResult{
		Name:    domain.DimensionBudget,
		Score:   score,
		Status:  status,
		Trend:   trendFrom(score, in.Previous),
		Details: fmt.Sprintf("$%.2f spent of $%.2f (%+.1f%% remaining)", in.ActualCost, in.Budget, variance),
	}, nil
}

func budgetBucket(variance float64) (float64, domain.HealthStatus) {
	switch {
	case variance > 20:
		return 100, domain.StatusExcellent
	case variance > 10:
		return 85, domain.StatusGood
	case variance >= 0:
		// exactly on budget counts as good
		return 70, domain.StatusGood
	case variance > -10:
		return 50, domain.StatusWarning
	default:
		return 25, domain.StatusCritical
	}
}

type SafetyInput struct {
	Incidents []domain.Incident
	Now       time.Time
	Previous  Previous
}

// ScoreSafety looks at incidents from the last 30 days.
func ScoreSafety(in SafetyInput) (domain.DimensionResult, error) {
	since := in.Now.Add(-SafetyWindow)
	count := 0
	critical := 0
	for _, inc := range in.Incidents {
		if inc.OccurredAt.Before(since) || inc.OccurredAt.After(in.Now) {
			continue
		}
		count++
		if inc.Severity == domain.SeverityCritical {
			critical++
		}
	}

	var score float64
	var status domain.HealthStatus
	switch {
	case critical > 0:
		score, status = 20, domain.StatusCritical
	case count == 0:
		score, status = 100, domain.StatusExcellent
	case count <= 2:
		score, status = 75, domain.StatusGood
	default:
		score, status = 45, domain.StatusWarning
	}

	details := fmt.Sprintf("%d incidents in the last 30 days", count)
	if critical > 0 {
		details = fmt.Sprintf("%s, %d critical", details, critical)
	}
	return domain.DimensionResult{
		Name:    domain.DimensionSafety,
		Score:   score,
		Status:  status,
		Trend:   trendFrom(score, in.Previous),
		Details: details,
	}, nil
}

type TeamInput struct {
	AssignedTeamSize int
	Activity         []domain.WorkerActivity
	Now              time.Time
	Previous         Previous
}

// ScoreTeam measures how much of the assigned crew logged activity in the
// last 7 days. A project with nobody assigned is critical whatever the
// activity says.
func ScoreTeam(in TeamInput) (domain.DimensionResult, error) {
	if in.AssignedTeamSize < 0 {
		return domain.DimensionResult{}, domain.InvalidInput("team: negative team size %d", in.AssignedTeamSize)
	}
	if in.AssignedTeamSize == 0 {
		return domain.DimensionResult{
			Name:    domain.DimensionTeam,
			Score:   30,
			Status:  domain.StatusCritical,
			Trend:   trendFrom(30, in.Previous),
			Details: "no team assigned",
		}, nil
	}

	since := in.Now.Add(-TeamWindow)
	active := make(map[string]bool)
	for _, a := range in.Activity {
		if a.WorkerID == "" || a.At.Before(since) || a.At.After(in.Now) {
			continue
		}
		active[a.WorkerID] = true
	}
	utilization := float64(len(active)) / float64(in.AssignedTeamSize) * 100

	var score float64
	var status domain.HealthStatus
	switch {
	case utilization >= 80:
		score, status = 100, domain.StatusExcellent
	case utilization >= 60:
		score, status = 75, domain.StatusGood
	case utilization >= 40:
		score, status = 50, domain.StatusWarning
	default:
		score, status = 30, domain.StatusCritical
	}
	return domain.DimensionResult{
		Name:    domain.DimensionTeam,
		Score:   score,
		Status:  status,
		Trend:   trendFrom(score, in.Previous),
		Details: fmt.Sprintf("%d of %d workers active this week (%.0f%%)", len(active), in.AssignedTeamSize, utilization),
	}, nil
}

type ProgressInput struct {
	CompletionPct float64
	Previous      Previous
}

// ScoreProgress uses the completion percentage as the score.
func ScoreProgress(in ProgressInput) (domain.DimensionResult, error) {
	c := in.CompletionPct
	if math.IsNaN(c) || c < 0 || c > 100 {
		return domain.DimensionResult{}, domain.InvalidInput("progress: completion %.2f outside 0-100", c)
	}

	var status domain.HealthStatus
	switch {
	case c >= 90:
		status = domain.StatusExcellent
	case c >= 40:
		// 70 and 40 both land in good
		status = domain.StatusGood
	default:
		// 20 splits the warning band but not the status
		status = domain.StatusWarning
	}
	return domain.DimensionResult{
		Name:    domain.DimensionProgress,
		Score:   c,
		Status:  status,
		Trend:   trendFrom(c, in.Previous),
		Details: fmt.Sprintf("%.1f%% complete", c),
	}, nil
}

func trendFrom(score float64, previous Previous) domain.Trend {
	switch {
	case previous == nil:
		return domain.TrendStable
	case score > *previous:
		return domain.TrendUp
	case score < *previous:
		return domain.TrendDown
	default:
		return domain.TrendStable
	}
}

// calendarDays is the number of midnights between from and to in loc.
func calendarDays(from, to time.Time, loc *time.Location) int {
	return int(dateOf(to, loc).Sub(dateOf(from, loc)) / (24 * time.Hour))
}

func dateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
