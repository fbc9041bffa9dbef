package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-grading-api/internal/models"
	appErrors "github.com/noah-isme/sma-grading-api/pkg/errors"
)

type submissionRepository interface {
	FindLatest(ctx context.Context, classID, termID string) (*models.GradeSubmission, error)
	FindByID(ctx context.Context, id string) (*models.GradeSubmission, error)
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.GradeSubmission, error)
	Create(ctx context.Context, submission *models.GradeSubmission) error
	Decide(ctx context.Context, submission *models.GradeSubmission) error
}

// DecisionRequest carries reviewer remarks. Rejections require a reason.
type DecisionRequest struct {
	Remarks string `json:"remarks" validate:"max=500"`
}

// SubmissionDeps groups SubmissionService collaborators.
type SubmissionDeps struct {
	Submissions submissionRepository
	Classes     classReader
	Terms       termLookup
	Audit       auditWriter
	Metrics     *MetricsService
}

// SubmissionService runs the submit, approve and reject workflow of class term grades.
type SubmissionService struct {
	deps      SubmissionDeps
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewSubmissionService constructs the service.
func NewSubmissionService(deps SubmissionDeps, validate *validator.Validate, logger *zap.Logger) *SubmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{deps: deps, validator: validate, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// List returns submissions. Teachers must scope the listing to one of their classes.
func (s *SubmissionService) List(ctx context.Context, actor *models.JWTClaims, filter models.SubmissionFilter) ([]models.GradeSubmission, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.Role.IsAdmin() {
		if filter.ClassID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "class_id is required")
		}
		if _, err := loadClass(ctx, s.deps.Classes, filter.ClassID, actor); err != nil {
			return nil, err
		}
	}
	submissions, err := s.deps.Submissions.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grade submissions")
	}
	return submissions, nil
}

// Latest returns the most recent submission of a class term.
func (s *SubmissionService) Latest(ctx context.Context, actor *models.JWTClaims, classID, termID string) (*models.GradeSubmission, error) {
	if _, err := loadClass(ctx, s.deps.Classes, classID, actor); err != nil {
		return nil, err
	}
	submission, err := s.deps.Submissions.FindLatest(ctx, classID, termID)
	if err != nil {
		return nil, mapMissing(err, "no submission for class term", "failed to load grade submission")
	}
	return submission, nil
}

// Submit sends a class term's grades for review, locking further edits.
func (s *SubmissionService) Submit(ctx context.Context, actor *models.JWTClaims, classID, termID string, meta AuditMeta) (*models.GradeSubmission, error) {
	if _, err := loadClass(ctx, s.deps.Classes, classID, actor); err != nil {
		return nil, err
	}
	if _, err := s.deps.Terms.FindByID(ctx, termID); err != nil {
		return nil, mapMissing(err, "term not found", "failed to load term")
	}
	latest, err := s.deps.Submissions.FindLatest(ctx, classID, termID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade submission")
	}
	if latest.Locked() {
		return nil, appErrors.Clone(appErrors.ErrSubmissionState, "grades already "+string(latest.Status))
	}
	submission := &models.GradeSubmission{
		ClassID:     classID,
		TermID:      termID,
		Status:      models.SubmissionStatusPending,
		SubmittedBy: actor.UserID,
		SubmittedAt: s.now(),
	}
	if err := s.deps.Submissions.Create(ctx, submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create grade submission")
	}
	s.deps.Metrics.RecordSubmission(string(submission.Status))
	recordAudit(ctx, s.deps.Audit, s.logger, actor, meta, models.AuditActionSubmissionSubmit, "grade_submission", submission.ID, nil, submission)
	return submission, nil
}

// Approve accepts a pending submission; the class term stays locked.
func (s *SubmissionService) Approve(ctx context.Context, actor *models.JWTClaims, id string, req DecisionRequest, meta AuditMeta) (*models.GradeSubmission, error) {
	return s.decide(ctx, actor, id, models.SubmissionStatusApproved, req, meta)
}

// Reject returns a pending submission to the teacher with a reason and
// reopens grade entry.
func (s *SubmissionService) Reject(ctx context.Context, actor *models.JWTClaims, id string, req DecisionRequest, meta AuditMeta) (*models.GradeSubmission, error) {
	if req.Remarks == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a reason is required to reject grades")
	}
	return s.decide(ctx, actor, id, models.SubmissionStatusRejected, req, meta)
}

func (s *SubmissionService) decide(ctx context.Context, actor *models.JWTClaims, id string, status models.SubmissionStatus, req DecisionRequest, meta AuditMeta) (*models.GradeSubmission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.Role.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators may review grades")
	}
	submission, err := s.deps.Submissions.FindByID(ctx, id)
	if err != nil {
		return nil, mapMissing(err, "grade submission not found", "failed to load grade submission")
	}
	if submission.Status != models.SubmissionStatusPending {
		return nil, appErrors.Clone(appErrors.ErrSubmissionState, "submission already "+string(submission.Status))
	}
	previous := *submission
	reviewer := actor.UserID
	reviewedAt := s.now()
	submission.Status = status
	submission.ReviewedBy = &reviewer
	submission.ReviewedAt = &reviewedAt
	if req.Remarks != "" {
		remarks := req.Remarks
		submission.Remarks = &remarks
	}
	if err := s.deps.Submissions.Decide(ctx, submission); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrSubmissionState, "submission was already reviewed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
	}
	action := models.AuditActionSubmissionApprove
	if status == models.SubmissionStatusRejected {
		action = models.AuditActionSubmissionReject
	}
	s.deps.Metrics.RecordSubmission(string(status))
	recordAudit(ctx, s.deps.Audit, s.logger, actor, meta, action, "grade_submission", submission.ID, previous, submission)
	return submission, nil
}
