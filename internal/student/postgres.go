package student

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nadmax/medrank/internal/apperr"
	"github.com/rs/zerolog"
)

// PostgresDirectory reads students from the students table.
type PostgresDirectory struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewPostgresDirectory(db *sql.DB, logger zerolog.Logger) *PostgresDirectory {
	return &PostgresDirectory{db: db, logger: logger}
}

func (d *PostgresDirectory) Get(ctx context.Context, id string) (*Student, error) {
	query := `SELECT id, name, email FROM students WHERE id = $1`

	var s Student
	err := d.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.Name, &s.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("student %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}

	return &s, nil
}

func (d *PostgresDirectory) List(ctx context.Context) ([]Student, error) {
	query := `SELECT id, name, email FROM students ORDER BY name ASC, id ASC`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to close student rows")
		}
	}()

	students := []Student{}
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ID, &s.Name, &s.Email); err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		students = append(students, s)
	}

	return students, rows.Err()
}
