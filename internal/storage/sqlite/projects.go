package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"builddesk/internal/domain"
)

const projectColumns = `id, name, status, start_date, end_date, budget, actual_cost, completion_pct, assigned_team_size, created_at`

func scanProject(row interface{ Scan(...any) error }) (domain.Project, error) {
	var p domain.Project
	err := row.Scan(&p.ID, &p.Name, &p.Status, &p.StartDate, &p.EndDate,
		&p.Budget, &p.ActualCost, &p.CompletionPct, &p.AssignedTeamSize, &p.CreatedAt)
	return p, err
}

func (s *Store) InsertProject(ctx context.Context, p domain.Project) (int64, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.Status == "" {
		p.Status = "active"
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (name, status, start_date, end_date, budget, actual_cost, completion_pct, assigned_team_size, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Status, p.StartDate.UTC(), p.EndDate.UTC(), p.Budget, p.ActualCost,
		p.CompletionPct, p.AssignedTeamSize, p.CreatedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert project: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) GetProject(ctx context.Context, id int64) (domain.Project, error) {
	p, err := scanProject(s.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if err != nil {
		return domain.Project{}, notFound(err, "project", id)
	}
	return p, nil
}

func (s *Store) ListProjectsByStatus(ctx context.Context, status string) ([]domain.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE status = ? ORDER BY id`, status)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) InsertIncident(ctx context.Context, in domain.Incident) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO project_incidents (project_id, severity, summary, occurred_at) VALUES (?, ?, ?, ?)`,
		in.ProjectID, string(in.Severity), in.Summary, in.OccurredAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert incident: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) IncidentsSince(ctx context.Context, projectID int64, since time.Time) ([]domain.Incident, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, severity, summary, occurred_at
		 FROM project_incidents
		 WHERE project_id = ? AND occurred_at >= ?
		 ORDER BY occurred_at`,
		projectID, since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("incidents for project %d: %w", projectID, err)
	}
	defer rows.Close()

	var out []domain.Incident
	for rows.Next() {
		var in domain.Incident
		var severity string
		if err := rows.Scan(&in.ID, &in.ProjectID, &severity, &in.Summary, &in.OccurredAt); err != nil {
			return nil, err
		}
		in.Severity = domain.IncidentSeverity(severity)
		out = append(out, in)
	}
	return out, rows.Err()
}

func (s *Store) RecordActivity(ctx context.Context, a domain.WorkerActivity) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO worker_activity (project_id, worker_id, active_at) VALUES (?, ?, ?)`,
		a.ProjectID, a.WorkerID, a.At.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record activity: %w", err)
	}
	return nil
}

func (s *Store) ActivitySince(ctx context.Context, projectID int64, since time.Time) ([]domain.WorkerActivity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT project_id, worker_id, active_at
		 FROM worker_activity
		 WHERE project_id = ? AND active_at >= ?
		 ORDER BY active_at`,
		projectID, since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("activity for project %d: %w", projectID, err)
	}
	defer rows.Close()

	var out []domain.WorkerActivity
	for rows.Next() {
		var a domain.WorkerActivity
		if err := rows.Scan(&a.ProjectID, &a.WorkerID, &a.At); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) SaveSnapshot(ctx context.Context, snap domain.HealthSnapshot) (int64, error) {
	if snap.ScoredAt.IsZero() {
		snap.ScoredAt = time.Now().UTC()
	}
	dims, err := json.Marshal(snap.Dimensions)
	if err != nil {
		return 0, fmt.Errorf("encode dimensions: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO health_snapshots (project_id, overall_score, status, dimensions, scored_at)
		 VALUES (?, ?, ?, ?, ?)`,
		snap.ProjectID, snap.OverallScore, string(snap.Status), string(dims), snap.ScoredAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	return res.LastInsertId()
}

const snapshotColumns = `id, project_id, overall_score, status, dimensions, scored_at`

func scanSnapshot(row interface{ Scan(...any) error }) (domain.HealthSnapshot, error) {
	var snap domain.HealthSnapshot
	var status, dims string
	if err := row.Scan(&snap.ID, &snap.ProjectID, &snap.OverallScore, &status, &dims, &snap.ScoredAt); err != nil {
		return snap, err
	}
	snap.Status = domain.HealthStatus(status)
	if err := json.Unmarshal([]byte(dims), &snap.Dimensions); err != nil {
		return snap, fmt.Errorf("decode dimensions of snapshot %d: %w", snap.ID, err)
	}
	return snap, nil
}

func (s *Store) LatestSnapshot(ctx context.Context, projectID int64) (domain.HealthSnapshot, error) {
	snap, err := scanSnapshot(s.db.QueryRowContext(ctx,
		`SELECT `+snapshotColumns+` FROM health_snapshots
		 WHERE project_id = ? ORDER BY scored_at DESC, id DESC LIMIT 1`,
		projectID,
	))
	if err != nil {
		return domain.HealthSnapshot{}, notFound(err, "snapshot for project", projectID)
	}
	return snap, nil
}

// SnapshotHistory returns up to limit snapshots, newest first.
func (s *Store) SnapshotHistory(ctx context.Context, projectID int64, limit int) ([]domain.HealthSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+snapshotColumns+` FROM health_snapshots
		 WHERE project_id = ? ORDER BY scored_at DESC, id DESC LIMIT ?`,
		projectID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot history: %w", err)
	}
	defer rows.Close()

	var out []domain.HealthSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}
