package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-grading-api/internal/models"
)

const submissionColumns = "id, class_id, term_id, status, submitted_by, submitted_at, reviewed_by, reviewed_at, remarks"

// SubmissionRepository persists grade submission workflow rows.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// FindLatest returns the most recent submission of a class term.
func (r *SubmissionRepository) FindLatest(ctx context.Context, classID, termID string) (*models.GradeSubmission, error) {
	query := "SELECT " + submissionColumns + " FROM grade_submissions WHERE class_id = $1 AND term_id = $2 ORDER BY submitted_at DESC LIMIT 1"
	var submission models.GradeSubmission
	if err := r.db.GetContext(ctx, &submission, query, classID, termID); err != nil {
		return nil, err
	}
	return &submission, nil
}

// FindByID loads a submission.
func (r *SubmissionRepository) FindByID(ctx context.Context, id string) (*models.GradeSubmission, error) {
	query := "SELECT " + submissionColumns + " FROM grade_submissions WHERE id = $1"
	var submission models.GradeSubmission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		return nil, err
	}
	return &submission, nil
}

// List returns submissions matching the filter, newest first.
func (r *SubmissionRepository) List(ctx context.Context, filter models.SubmissionFilter) ([]models.GradeSubmission, error) {
	query := "SELECT " + submissionColumns + " FROM grade_submissions WHERE 1=1"
	var args []interface{}
	if filter.ClassID != "" {
		query += fmt.Sprintf(" AND class_id = $%d", len(args)+1)
		args = append(args, filter.ClassID)
	}
	if filter.TermID != "" {
		query += fmt.Sprintf(" AND term_id = $%d", len(args)+1)
		args = append(args, filter.TermID)
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}
	query += " ORDER BY submitted_at DESC"
	var submissions []models.GradeSubmission
	if err := r.db.SelectContext(ctx, &submissions, query, args...); err != nil {
		return nil, fmt.Errorf("list grade submissions: %w", err)
	}
	return submissions, nil
}

// Create inserts a PENDING submission.
func (r *SubmissionRepository) Create(ctx context.Context, submission *models.GradeSubmission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.Status == "" {
		submission.Status = models.SubmissionStatusPending
	}
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO grade_submissions (id, class_id, term_id, status, submitted_by, submitted_at, reviewed_by, reviewed_at, remarks)
        VALUES (:id, :class_id, :term_id, :status, :submitted_by, :submitted_at, :reviewed_by, :reviewed_at, :remarks)`
	if _, err := r.db.NamedExecContext(ctx, query, submission); err != nil {
		return fmt.Errorf("create grade submission: %w", err)
	}
	return nil
}

// Decide records a reviewer decision. The update only applies while the row is
// still PENDING so two reviewers cannot both decide.
func (r *SubmissionRepository) Decide(ctx context.Context, submission *models.GradeSubmission) error {
	const query = `UPDATE grade_submissions SET status = :status, reviewed_by = :reviewed_by, reviewed_at = :reviewed_at, remarks = :remarks
        WHERE id = :id AND status = 'PENDING'`
	res, err := r.db.NamedExecContext(ctx, query, submission)
	if err != nil {
		return fmt.Errorf("decide grade submission: %w", err)
	}
	return requireAffected(res)
}
