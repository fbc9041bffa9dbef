package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-grading-api/internal/models"
)

const upsertScoreQuery = `INSERT INTO scores (id, student_id, component_id, value, recorded_by, created_at, updated_at)
        VALUES (:id, :student_id, :component_id, :value, :recorded_by, :created_at, :updated_at)
        ON CONFLICT (student_id, component_id)
        DO UPDATE SET value = EXCLUDED.value, recorded_by = EXCLUDED.recorded_by, updated_at = EXCLUDED.updated_at`

// ScoreRepository handles raw score persistence.
type ScoreRepository struct {
	db *sqlx.DB
}

// NewScoreRepository creates a new score repository.
func NewScoreRepository(db *sqlx.DB) *ScoreRepository {
	return &ScoreRepository{db: db}
}

// List returns scores matching the filter.
func (r *ScoreRepository) List(ctx context.Context, filter models.ScoreFilter) ([]models.Score, error) {
	query := `SELECT s.id, s.student_id, s.component_id, s.value, s.recorded_by, s.created_at, s.updated_at
        FROM scores s
        JOIN grade_components gc ON gc.id = s.component_id
        JOIN grading_criteria cr ON cr.id = gc.criterion_id
        WHERE 1=1`
	var args []interface{}
	if filter.ClassID != "" {
		query += fmt.Sprintf(" AND cr.class_id = $%d", len(args)+1)
		args = append(args, filter.ClassID)
	}
	if filter.TermID != "" {
		query += fmt.Sprintf(" AND cr.term_id = $%d", len(args)+1)
		args = append(args, filter.TermID)
	}
	if filter.StudentID != "" {
		query += fmt.Sprintf(" AND s.student_id = $%d", len(args)+1)
		args = append(args, filter.StudentID)
	}
	if filter.ComponentID != "" {
		query += fmt.Sprintf(" AND s.component_id = $%d", len(args)+1)
		args = append(args, filter.ComponentID)
	}
	query += " ORDER BY s.student_id, s.component_id"
	var scores []models.Score
	if err := r.db.SelectContext(ctx, &scores, query, args...); err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	return scores, nil
}

// Save applies score changes and overwrites the term grades computed from
// them in one transaction. A failed term grade write rolls the scores back.
// Concurrent writers resolve last write wins.
func (r *ScoreRepository) Save(ctx context.Context, changes models.ScoreChanges, grades []models.TermGrade) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for i := range changes.Upserts {
		stampScore(&changes.Upserts[i], now)
		if _, err := tx.NamedExecContext(ctx, upsertScoreQuery, changes.Upserts[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("upsert score: %w", err)
		}
	}
	for _, key := range changes.Deletes {
		res, err := tx.ExecContext(ctx, "DELETE FROM scores WHERE student_id = $1 AND component_id = $2", key.StudentID, key.ComponentID)
		if err == nil {
			err = requireAffected(res)
		}
		if err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("delete score: %w", err)
		}
	}
	for i := range grades {
		stampTermGrade(&grades[i], now)
		if _, err := tx.NamedExecContext(ctx, upsertTermGradeQuery, grades[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("upsert term grade: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit scores: %w", err)
	}
	return nil
}

func stampScore(score *models.Score, now time.Time) {
	if score.ID == "" {
		score.ID = uuid.NewString()
	}
	if score.CreatedAt.IsZero() {
		score.CreatedAt = now
	}
	score.UpdatedAt = now
}
