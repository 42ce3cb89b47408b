// Package postgres provides PostgreSQL-backed implementations of repository interfaces.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/nadmax/medrank/internal/apperr"
	"github.com/nadmax/medrank/internal/repository"
	"github.com/nadmax/medrank/internal/task"
	"github.com/rs/zerolog"
)

var _ repository.TaskRepository = (*PostgresTaskRepository)(nil)

type PostgresTaskRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewPostgresTaskRepository(db *sql.DB, logger zerolog.Logger) *PostgresTaskRepository {
	return &PostgresTaskRepository{db: db, logger: logger}
}

const taskColumns = `
	id, title, description,
	patient_name, patient_age, primary_complaint, patient_notes,
	assigned_student_id, assigned_student_name,
	status, reject_reason, quality_score,
	created_at, completed_at`

func (r *PostgresTaskRepository) Insert(ctx context.Context, t *task.Task, ev *task.Event) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO patient_tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = tx.ExecContext(
		ctx,
		query,
		t.ID,
		t.Title,
		t.Description,
		t.Patient.Name,
		t.Patient.Age,
		t.Patient.PrimaryComplaint,
		nullString(t.Patient.Notes),
		t.AssignedStudentID,
		nullString(t.AssignedStudentName),
		string(t.Status),
		nullString(t.RejectReason),
		nullFloat(t.QualityScore),
		t.CreatedAt,
		nullTime(t.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}

	if err := insertEvent(ctx, tx, ev); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *PostgresTaskRepository) Get(ctx context.Context, taskID string) (*task.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM patient_tasks WHERE id = $1`

	t, err := scanTask(r.db.QueryRowContext(ctx, query, taskID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("task %s not found", taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return t, nil
}

func (r *PostgresTaskRepository) List(ctx context.Context, f task.Filter) ([]*task.Task, error) {
	var (
		conds []string
		args  []any
	)
	if f.StudentID != "" {
		args = append(args, f.StudentID)
		conds = append(conds, fmt.Sprintf("assigned_student_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + taskColumns + ` FROM patient_tasks`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Warn().Err(err).Msg("Failed to close task rows")
		}
	}()

	tasks := []*task.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}

	return tasks, rows.Err()
}

func (r *PostgresTaskRepository) Update(ctx context.Context, next, prev *task.Task, ev *task.Event) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		UPDATE patient_tasks
		SET status = $1,
		    reject_reason = $2,
		    quality_score = $3,
		    completed_at = $4
		WHERE id = $5
		  AND status = $6
		  AND (quality_score IS NULL) = $7
	`

	res, err := tx.ExecContext(
		ctx,
		query,
		string(next.Status),
		nullString(next.RejectReason),
		nullFloat(next.QualityScore),
		nullTime(next.CompletedAt),
		prev.ID,
		string(prev.Status),
		!prev.IsScored(),
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return repository.ErrConflict
	}

	if err := insertEvent(ctx, tx, ev); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *PostgresTaskRepository) History(ctx context.Context, taskID string) ([]task.Event, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM patient_tasks WHERE id = $1)`, taskID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check task: %w", err)
	}
	if !exists {
		return nil, apperr.NotFound("task %s not found", taskID)
	}

	query := `
		SELECT id, task_id, task_title, student_id, actor_id, role, action, reason, score, occurred_at
		FROM task_events
		WHERE task_id = $1
		ORDER BY seq ASC
	`

	rows, err := r.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task history: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Warn().Err(err).Msg("Failed to close event rows")
		}
	}()

	events := []task.Event{}
	for rows.Next() {
		var (
			ev     task.Event
			action string
			reason sql.NullString
			score  sql.NullFloat64
		)
		err := rows.Scan(&ev.ID, &ev.TaskID, &ev.TaskTitle, &ev.StudentID, &ev.ActorID, &ev.Role, &action, &reason, &score, &ev.OccurredAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Action = task.Action(action)
		ev.Reason = reason.String
		if score.Valid {
			s := score.Float64
			ev.Score = &s
		}
		events = append(events, ev)
	}

	return events, rows.Err()
}

func (r *PostgresTaskRepository) Close() error {
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*task.Task, error) {
	var (
		t                                task.Task
		status                           string
		notes, studentName, rejectReason sql.NullString
		qualityScore                     sql.NullFloat64
		completedAt                      sql.NullTime
	)

	err := s.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&t.Patient.Name,
		&t.Patient.Age,
		&t.Patient.PrimaryComplaint,
		&notes,
		&t.AssignedStudentID,
		&studentName,
		&status,
		&rejectReason,
		&qualityScore,
		&t.CreatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Status = task.TaskStatus(status)
	t.Patient.Notes = notes.String
	t.AssignedStudentName = studentName.String
	t.RejectReason = rejectReason.String
	if qualityScore.Valid {
		score := qualityScore.Float64
		t.QualityScore = &score
	}
	if completedAt.Valid {
		ts := completedAt.Time
		t.CompletedAt = &ts
	}

	return &t, nil
}

func insertEvent(ctx context.Context, tx *sql.Tx, ev *task.Event) error {
	if ev == nil {
		return nil
	}

	query := `
		INSERT INTO task_events (
			id, task_id, task_title, student_id, actor_id, role, action, reason, score, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := tx.ExecContext(
		ctx,
		query,
		ev.ID,
		ev.TaskID,
		ev.TaskTitle,
		ev.StudentID,
		ev.ActorID,
		ev.Role,
		string(ev.Action),
		nullString(ev.Reason),
		nullFloat(ev.Score),
		ev.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task event: %w", err)
	}

	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
