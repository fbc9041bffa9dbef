package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-grading-api/internal/grading"
	"github.com/noah-isme/sma-grading-api/internal/models"
	appErrors "github.com/noah-isme/sma-grading-api/pkg/errors"
)

type termStatusRepository interface {
	ListByStudent(ctx context.Context, classID, studentID string) ([]models.StudentTermStatus, error)
	Upsert(ctx context.Context, status *models.StudentTermStatus) error
	PropagateDropped(ctx context.Context, studentID, classID string, termIDs []string, updatedBy string, note *string) error
	Reset(ctx context.Context, studentID, classID, updatedBy string) (int64, error)
}

type termLister interface {
	ListAll(ctx context.Context) ([]models.Term, error)
}

type classCacheInvalidator interface {
	InvalidateClass(ctx context.Context, classID string)
}

// SetStatusRequest changes a student's status for one term.
type SetStatusRequest struct {
	Status string  `json:"status" validate:"required"`
	Note   *string `json:"note" validate:"omitempty,max=255"`
}

// StatusResetResult reports an administrative reset.
type StatusResetResult struct {
	StudentID string `json:"student_id"`
	ClassID   string `json:"class_id"`
	Reset     int64  `json:"reset"`
}

// StatusDeps groups StatusService collaborators.
type StatusDeps struct {
	Statuses termStatusRepository
	Terms    termLister
	Roster   rosterReader
	Classes  classReader
	Cache    classCacheInvalidator
	Audit    auditWriter
	Metrics  *MetricsService
}

// StatusService manages NORMAL/INC/DROPPED flags of enrolled students.
type StatusService struct {
	deps      StatusDeps
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStatusService constructs the service.
func NewStatusService(deps StatusDeps, validate *validator.Validate, logger *zap.Logger) *StatusService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusService{deps: deps, validator: validate, logger: logger}
}

// List returns the stored statuses of a student in a class.
func (s *StatusService) List(ctx context.Context, actor *models.JWTClaims, classID, studentID string) ([]models.StudentTermStatus, error) {
	if _, err := loadClass(ctx, s.deps.Classes, classID, actor); err != nil {
		return nil, err
	}
	statuses, err := s.deps.Statuses.ListByStudent(ctx, classID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list term statuses")
	}
	return statuses, nil
}

// SetStatus applies a status change. DROPPED is written to every term of the
// student, active or not, in one transaction; leaving DROPPED requires Reset.
func (s *StatusService) SetStatus(ctx context.Context, actor *models.JWTClaims, classID, studentID, termID string, req SetStatusRequest, meta AuditMeta) ([]models.StudentTermStatus, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	target, ok := grading.ParseStatus(req.Status)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be NORMAL, INC or DROPPED")
	}
	if _, err := loadClass(ctx, s.deps.Classes, classID, actor); err != nil {
		return nil, err
	}
	if _, err := s.deps.Roster.FindByStudent(ctx, classID, studentID); err != nil {
		return nil, mapMissing(err, "student is not enrolled in class", "failed to load enrollment")
	}
	terms, err := s.deps.Terms.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list terms")
	}
	if !containsTerm(terms, termID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
	}
	current, err := s.deps.Statuses.ListByStudent(ctx, classID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term statuses")
	}
	existing := indexStatuses(current)[studentID]
	from := grading.EffectiveStatus(existing, termID)
	if !grading.CanTransition(from, target) {
		return nil, appErrors.Clone(appErrors.ErrStatusTransition, "cannot change status from "+string(from)+" to "+string(target))
	}

	if target == grading.StatusDropped {
		termIDs := make([]string, len(terms))
		for i, t := range terms {
			termIDs[i] = t.ID
		}
		if err := s.deps.Statuses.PropagateDropped(ctx, studentID, classID, termIDs, actor.UserID, req.Note); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to drop student")
		}
	} else {
		status := &models.StudentTermStatus{StudentID: studentID, ClassID: classID, TermID: termID, Status: target, Note: req.Note, UpdatedBy: actor.UserID}
		if err := s.deps.Statuses.Upsert(ctx, status); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save term status")
		}
	}

	s.deps.Metrics.RecordStatusChange(string(target))
	recordAudit(ctx, s.deps.Audit, s.logger, actor, meta, models.AuditActionStatusChange, "student_term_status", studentID+":"+termID,
		map[string]string{"status": string(from)}, map[string]interface{}{"status": target, "term_id": termID, "note": req.Note})
	s.invalidate(ctx, classID)
	return s.List(ctx, actor, classID, studentID)
}

// Reset restores NORMAL on every term of a student. Administrators only.
func (s *StatusService) Reset(ctx context.Context, actor *models.JWTClaims, classID, studentID string, meta AuditMeta) (*StatusResetResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.Role.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators may reset statuses")
	}
	if _, err := loadClass(ctx, s.deps.Classes, classID, actor); err != nil {
		return nil, err
	}
	before, err := s.deps.Statuses.ListByStudent(ctx, classID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term statuses")
	}
	affected, err := s.deps.Statuses.Reset(ctx, studentID, classID, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset term statuses")
	}
	result := &StatusResetResult{StudentID: studentID, ClassID: classID, Reset: affected}
	s.deps.Metrics.RecordStatusChange(string(grading.StatusNormal))
	recordAudit(ctx, s.deps.Audit, s.logger, actor, meta, models.AuditActionStatusReset, "student", studentID, before, result)
	s.invalidate(ctx, classID)
	return result, nil
}

func (s *StatusService) invalidate(ctx context.Context, classID string) {
	if s.deps.Cache != nil {
		s.deps.Cache.InvalidateClass(ctx, classID)
	}
}
