package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-grading-api/internal/models"
)

const (
	termGradeColumns     = "id, student_id, class_id, term_id, grade, calculated_at, calculation_note"
	upsertTermGradeQuery = `INSERT INTO term_grades (id, student_id, class_id, term_id, grade, calculated_at, calculation_note)
        VALUES (:id, :student_id, :class_id, :term_id, :grade, :calculated_at, :calculation_note)
        ON CONFLICT (student_id, class_id, term_id)
        DO UPDATE SET grade = EXCLUDED.grade, calculated_at = EXCLUDED.calculated_at, calculation_note = EXCLUDED.calculation_note`
)

// TermGradeRepository stores materialised term grades. Rows are a cache of the
// computation and are always overwritten, never merged.
type TermGradeRepository struct {
	db *sqlx.DB
}

// NewTermGradeRepository constructs the repository.
func NewTermGradeRepository(db *sqlx.DB) *TermGradeRepository {
	return &TermGradeRepository{db: db}
}

// Upsert overwrites the cached grade of one student term.
func (r *TermGradeRepository) Upsert(ctx context.Context, grade *models.TermGrade) error {
	stampTermGrade(grade, time.Now().UTC())
	if _, err := r.db.NamedExecContext(ctx, upsertTermGradeQuery, grade); err != nil {
		return fmt.Errorf("upsert term grade: %w", err)
	}
	return nil
}

// UpsertBatch overwrites many cached grades atomically.
func (r *TermGradeRepository) UpsertBatch(ctx context.Context, grades []models.TermGrade) error {
	if len(grades) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for i := range grades {
		stampTermGrade(&grades[i], now)
		if _, err := tx.NamedExecContext(ctx, upsertTermGradeQuery, grades[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("upsert term grade batch: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit term grades: %w", err)
	}
	return nil
}

// ListByClass returns every cached term grade of a class.
func (r *TermGradeRepository) ListByClass(ctx context.Context, classID string) ([]models.TermGrade, error) {
	query := "SELECT " + termGradeColumns + " FROM term_grades WHERE class_id = $1"
	var grades []models.TermGrade
	if err := r.db.SelectContext(ctx, &grades, query, classID); err != nil {
		return nil, fmt.Errorf("list term grades: %w", err)
	}
	return grades, nil
}

// ListByStudent returns the cached term grades of a student in a class.
func (r *TermGradeRepository) ListByStudent(ctx context.Context, classID, studentID string) ([]models.TermGrade, error) {
	query := "SELECT " + termGradeColumns + " FROM term_grades WHERE class_id = $1 AND student_id = $2"
	var grades []models.TermGrade
	if err := r.db.SelectContext(ctx, &grades, query, classID, studentID); err != nil {
		return nil, fmt.Errorf("list student term grades: %w", err)
	}
	return grades, nil
}

func stampTermGrade(grade *models.TermGrade, now time.Time) {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	grade.CalculatedAt = now
}
