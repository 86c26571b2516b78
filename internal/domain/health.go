package domain

import "time"

type HealthStatus string

const (
	StatusExcellent HealthStatus = "excellent"
	StatusGood      HealthStatus = "good"
	StatusWarning   HealthStatus = "warning"
	StatusCritical  HealthStatus = "critical"
)

type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

type Dimension string

const (
	DimensionSchedule Dimension = "schedule"
	DimensionBudget   Dimension = "budget"
	DimensionSafety   Dimension = "safety"
	DimensionTeam     Dimension = "team"
	DimensionProgress Dimension = "progress"
)

var Dimensions = []Dimension{
	DimensionSchedule,
	DimensionBudget,
	DimensionSafety,
	DimensionTeam,
	DimensionProgress,
}

func (d Dimension) Valid() bool {
	for _, known := range Dimensions {
		if d == known {
			return true
		}
	}
	return false
}

type DimensionResult struct {
	Name    Dimension    `json:"name"`
	Score   float64      `json:"score"`
	Status  HealthStatus `json:"status"`
	Trend   Trend        `json:"trend"`
	Details string       `json:"details"`
}

type AggregateResult struct {
	OverallScore  float64           `json:"overall_score"`
	OverallStatus HealthStatus      `json:"overall_status"`
	Dimensions    []DimensionResult `json:"dimensions"`
}

type IncidentSeverity string

const (
	SeverityLow      IncidentSeverity = "low"
	SeverityMedium   IncidentSeverity = "medium"
	SeverityHigh     IncidentSeverity = "high"
	SeverityCritical IncidentSeverity = "critical"
)

type Project struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Status           string    `json:"status"` // "active", "on_hold", "completed"
	StartDate        time.Time `json:"start_date"`
	EndDate          time.Time `json:"end_date"`
	Budget           float64   `json:"budget"`
	ActualCost       float64   `json:"actual_cost"`
	CompletionPct    float64   `json:"completion_pct"`
	AssignedTeamSize int       `json:"assigned_team_size"`
	CreatedAt        time.Time `json:"created_at"`
}

type Incident struct {
	ID         int64            `json:"id"`
	ProjectID  int64            `json:"project_id"`
	Severity   IncidentSeverity `json:"severity"`
	Summary    string           `json:"summary"`
	OccurredAt time.Time        `json:"occurred_at"`
}

type WorkerActivity struct {
	ProjectID int64     `json:"project_id"`
	WorkerID  string    `json:"worker_id"`
	At        time.Time `json:"at"`
}

// HealthSnapshot is one persisted scoring pass.
type HealthSnapshot struct {
	ID           int64             `json:"id"`
	ProjectID    int64             `json:"project_id"`
	OverallScore float64           `json:"overall_score"`
	Status       HealthStatus      `json:"status"`
	Dimensions   []DimensionResult `json:"dimensions"`
	ScoredAt     time.Time         `json:"scored_at"`
}
