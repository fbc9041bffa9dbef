package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-grading-api/internal/grading"
	"github.com/noah-isme/sma-grading-api/internal/models"
)

const (
	termStatusColumns     = "id, student_id, class_id, term_id, status, note, updated_by, updated_at"
	upsertTermStatusQuery = `INSERT INTO student_term_statuses (id, student_id, class_id, term_id, status, note, updated_by, updated_at)
        VALUES (:id, :student_id, :class_id, :term_id, :status, :note, :updated_by, :updated_at)
        ON CONFLICT (student_id, class_id, term_id)
        DO UPDATE SET status = EXCLUDED.status, note = EXCLUDED.note, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`
)

// TermStatusRepository persists per student, per term status flags.
type TermStatusRepository struct {
	db *sqlx.DB
}

// NewTermStatusRepository constructs the repository.
func NewTermStatusRepository(db *sqlx.DB) *TermStatusRepository {
	return &TermStatusRepository{db: db}
}

// ListByClass returns every status row of a class.
func (r *TermStatusRepository) ListByClass(ctx context.Context, classID string) ([]models.StudentTermStatus, error) {
	query := "SELECT " + termStatusColumns + " FROM student_term_statuses WHERE class_id = $1"
	var statuses []models.StudentTermStatus
	if err := r.db.SelectContext(ctx, &statuses, query, classID); err != nil {
		return nil, fmt.Errorf("list term statuses: %w", err)
	}
	return statuses, nil
}

// ListByStudent returns the status rows of a student in a class.
func (r *TermStatusRepository) ListByStudent(ctx context.Context, classID, studentID string) ([]models.StudentTermStatus, error) {
	query := "SELECT " + termStatusColumns + " FROM student_term_statuses WHERE class_id = $1 AND student_id = $2"
	var statuses []models.StudentTermStatus
	if err := r.db.SelectContext(ctx, &statuses, query, classID, studentID); err != nil {
		return nil, fmt.Errorf("list student term statuses: %w", err)
	}
	return statuses, nil
}

// Upsert writes a single term status.
func (r *TermStatusRepository) Upsert(ctx context.Context, status *models.StudentTermStatus) error {
	stampTermStatus(status, time.Now().UTC())
	if _, err := r.db.NamedExecContext(ctx, upsertTermStatusQuery, status); err != nil {
		return fmt.Errorf("upsert term status: %w", err)
	}
	return nil
}

// PropagateDropped marks the student DROPPED on every listed term of the class
// in one transaction, so no reader observes a partially dropped student.
func (r *TermStatusRepository) PropagateDropped(ctx context.Context, studentID, classID string, termIDs []string, updatedBy string, note *string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, termID := range termIDs {
		row := models.StudentTermStatus{
			StudentID: studentID,
			ClassID:   classID,
			TermID:    termID,
			Status:    grading.StatusDropped,
			Note:      note,
			UpdatedBy: updatedBy,
		}
		stampTermStatus(&row, now)
		if _, err := tx.NamedExecContext(ctx, upsertTermStatusQuery, row); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("propagate dropped status: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit dropped status: %w", err)
	}
	return nil
}

// Reset restores NORMAL on every term of the student in the class.
func (r *TermStatusRepository) Reset(ctx context.Context, studentID, classID, updatedBy string) (int64, error) {
	const query = `UPDATE student_term_statuses SET status = $1, note = NULL, updated_by = $2, updated_at = $3
        WHERE student_id = $4 AND class_id = $5`
	res, err := r.db.ExecContext(ctx, query, grading.StatusNormal, updatedBy, time.Now().UTC(), studentID, classID)
	if err != nil {
		return 0, fmt.Errorf("reset term statuses: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

func stampTermStatus(status *models.StudentTermStatus, now time.Time) {
	if status.ID == "" {
		status.ID = uuid.NewString()
	}
	status.UpdatedAt = now
}
