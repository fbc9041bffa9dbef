package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-grading-api/internal/grading"
	"github.com/noah-isme/sma-grading-api/internal/models"
	appErrors "github.com/noah-isme/sma-grading-api/pkg/errors"
)

const (
	bulkModeAtomic         = "atomic"
	bulkModePartialOnError = "partialOnError"
)

type scoreRepository interface {
	List(ctx context.Context, filter models.ScoreFilter) ([]models.Score, error)
	Save(ctx context.Context, changes models.ScoreChanges, grades []models.TermGrade) error
}

type componentScopeReader interface {
	FindScope(ctx context.Context, id string) (*models.ComponentScope, error)
	FindScopes(ctx context.Context, ids []string) (map[string]models.ComponentScope, error)
}

type enrollmentChecker interface {
	EnrolledStudents(ctx context.Context, classID string, studentIDs []string) (map[string]bool, error)
}

type studentTermRecomputer interface {
	PlanStudents(ctx context.Context, classID, termID string, studentIDs []string, pending models.ScoreChanges, trigger string) (*TermGradePlan, error)
	Applied(ctx context.Context, classID string, plans ...*TermGradePlan)
}

// UpsertScoreRequest records one raw score.
type UpsertScoreRequest struct {
	StudentID   string  `json:"student_id" validate:"required"`
	ComponentID string  `json:"component_id" validate:"required"`
	Value       float64 `json:"value"`
}

// BulkScoreItem is one entry of a bulk upload.
type BulkScoreItem struct {
	StudentID   string  `json:"student_id" validate:"required"`
	ComponentID string  `json:"component_id" validate:"required"`
	Value       float64 `json:"value"`
}

// BulkScoresRequest uploads many scores of a class. Atomic mode stores nothing
// when any item is rejected; partialOnError stores every valid item. Valid
// items are always stored in one transaction with their term grades.
type BulkScoresRequest struct {
	Mode  string          `json:"mode" validate:"omitempty,oneof=atomic partialOnError"`
	Items []BulkScoreItem `json:"items" validate:"required,min=1,dive"`
}

// BulkScoresResult summarises a bulk upload.
type BulkScoresResult struct {
	SuccessCount int                `json:"success_count"`
	Failures     []BulkScoreFailure `json:"failures,omitempty"`
}

// BulkScoreFailure captures a rejected bulk item.
type BulkScoreFailure struct {
	StudentID   string `json:"student_id"`
	ComponentID string `json:"component_id"`
	Reason      string `json:"reason"`
}

// ScoreResult is a stored score with the recomputed term of the student.
type ScoreResult struct {
	Score models.Score       `json:"score"`
	Term  grading.TermResult `json:"term"`
}

// ScoreDeps groups ScoreService collaborators.
type ScoreDeps struct {
	Scores      scoreRepository
	Components  componentScopeReader
	Enrollments enrollmentChecker
	Classes     classReader
	Submissions submissionLockReader
	Recomputer  studentTermRecomputer
	Audit       auditWriter
}

// ScoreService records raw scores and keeps cached term grades current.
type ScoreService struct {
	deps      ScoreDeps
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScoreService constructs the service.
func NewScoreService(deps ScoreDeps, validate *validator.Validate, logger *zap.Logger) *ScoreService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScoreService{deps: deps, validator: validate, logger: logger}
}

// List returns scores of a class, optionally narrowed by term, student or component.
func (s *ScoreService) List(ctx context.Context, actor *models.JWTClaims, filter models.ScoreFilter) ([]models.Score, error) {
	if _, err := loadClass(ctx, s.deps.Classes, filter.ClassID, actor); err != nil {
		return nil, err
	}
	scores, err := s.deps.Scores.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list scores")
	}
	return scores, nil
}

// Upsert stores a score and the student's recomputed term grade together.
func (s *ScoreService) Upsert(ctx context.Context, actor *models.JWTClaims, classID string, req UpsertScoreRequest, meta AuditMeta) (*ScoreResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid score payload")
	}
	if _, err := loadClass(ctx, s.deps.Classes, classID, actor); err != nil {
		return nil, err
	}
	scope, err := s.deps.Components.FindScope(ctx, req.ComponentID)
	if err != nil {
		return nil, mapMissing(err, "grade component not found", "failed to load grade component")
	}
	if err := checkComponentClass(scope, classID); err != nil {
		return nil, err
	}
	if err := ensureUnlocked(ctx, s.deps.Submissions, classID, scope.TermID); err != nil {
		return nil, err
	}
	enrolled, err := s.deps.Enrollments.EnrolledStudents(ctx, classID, []string{req.StudentID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !enrolled[req.StudentID] {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student is not enrolled in class")
	}
	if err := checkScoreRange(req.Value, scope.MaxScore); err != nil {
		return nil, err
	}

	changes := models.ScoreChanges{Upserts: []models.Score{{StudentID: req.StudentID, ComponentID: req.ComponentID, Value: req.Value, RecordedBy: actor.UserID}}}
	plan, err := s.deps.Recomputer.PlanStudents(ctx, classID, scope.TermID, []string{req.StudentID}, changes, TriggerScore)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Scores.Save(ctx, changes, plan.Rows); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save score")
	}
	s.deps.Recomputer.Applied(ctx, classID, plan)
	score := changes.Upserts[0]
	recordAudit(ctx, s.deps.Audit, s.logger, actor, meta, models.AuditActionScoreUpsert, "score", score.ID, nil, score)
	return &ScoreResult{Score: score, Term: plan.Results[req.StudentID]}, nil
}

// BulkUpsert stores many scores of a class and recomputes every affected
// student term once, in the same transaction as the scores.
func (s *ScoreService) BulkUpsert(ctx context.Context, actor *models.JWTClaims, classID string, req BulkScoresRequest, meta AuditMeta) (*BulkScoresResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk payload")
	}
	if _, err := loadClass(ctx, s.deps.Classes, classID, actor); err != nil {
		return nil, err
	}
	componentIDs := make([]string, 0, len(req.Items))
	studentIDs := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		componentIDs = append(componentIDs, item.ComponentID)
		studentIDs = append(studentIDs, item.StudentID)
	}
	scopes, err := s.deps.Components.FindScopes(ctx, uniqueStrings(componentIDs))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade components")
	}
	enrolled, err := s.deps.Enrollments.EnrolledStudents(ctx, classID, uniqueStrings(studentIDs))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}

	atomic := req.Mode == "" || req.Mode == bulkModeAtomic
	locks := make(map[string]error)
	result := &BulkScoresResult{}
	var changes models.ScoreChanges
	affected := make(map[string][]string)
	var terms []string

	for _, item := range req.Items {
		scope, err := s.checkBulkItem(ctx, classID, item, scopes, enrolled, locks)
		if err != nil {
			if atomic {
				return nil, err
			}
			result.Failures = append(result.Failures, BulkScoreFailure{StudentID: item.StudentID, ComponentID: item.ComponentID, Reason: appErrors.FromError(err).Message})
			continue
		}
		changes.Upserts = append(changes.Upserts, models.Score{StudentID: item.StudentID, ComponentID: item.ComponentID, Value: item.Value, RecordedBy: actor.UserID})
		if _, seen := affected[scope.TermID]; !seen {
			terms = append(terms, scope.TermID)
		}
		affected[scope.TermID] = append(affected[scope.TermID], item.StudentID)
	}
	if len(changes.Upserts) == 0 {
		return result, nil
	}

	plans := make([]*TermGradePlan, 0, len(terms))
	var rows []models.TermGrade
	for _, termID := range terms {
		plan, err := s.deps.Recomputer.PlanStudents(ctx, classID, termID, affected[termID], changes, TriggerBulkScore)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
		rows = append(rows, plan.Rows...)
	}
	if err := s.deps.Scores.Save(ctx, changes, rows); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to bulk save scores")
	}
	s.deps.Recomputer.Applied(ctx, classID, plans...)
	result.SuccessCount = len(changes.Upserts)
	recordAudit(ctx, s.deps.Audit, s.logger, actor, meta, models.AuditActionScoreUpsert, "class", classID, nil, result)
	return result, nil
}

// Delete clears a score and stores the recomputed term grade in the same write.
func (s *ScoreService) Delete(ctx context.Context, actor *models.JWTClaims, classID, studentID, componentID string, meta AuditMeta) error {
	if _, err := loadClass(ctx, s.deps.Classes, classID, actor); err != nil {
		return err
	}
	scope, err := s.deps.Components.FindScope(ctx, componentID)
	if err != nil {
		return mapMissing(err, "grade component not found", "failed to load grade component")
	}
	if err := checkComponentClass(scope, classID); err != nil {
		return err
	}
	if err := ensureUnlocked(ctx, s.deps.Submissions, classID, scope.TermID); err != nil {
		return err
	}
	changes := models.ScoreChanges{Deletes: []models.ScoreKey{{StudentID: studentID, ComponentID: componentID}}}
	plan, err := s.deps.Recomputer.PlanStudents(ctx, classID, scope.TermID, []string{studentID}, changes, TriggerScore)
	if err != nil {
		return err
	}
	if err := s.deps.Scores.Save(ctx, changes, plan.Rows); err != nil {
		return mapMissing(err, "score not found", "failed to delete score")
	}
	s.deps.Recomputer.Applied(ctx, classID, plan)
	recordAudit(ctx, s.deps.Audit, s.logger, actor, meta, models.AuditActionScoreUpsert, "score", studentID+":"+componentID,
		map[string]string{"student_id": studentID, "component_id": componentID}, nil)
	return nil
}

func (s *ScoreService) checkBulkItem(ctx context.Context, classID string, item BulkScoreItem, scopes map[string]models.ComponentScope, enrolled map[string]bool, locks map[string]error) (*models.ComponentScope, error) {
	scope, ok := scopes[item.ComponentID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("grade component %s not found", item.ComponentID))
	}
	if err := checkComponentClass(&scope, classID); err != nil {
		return nil, err
	}
	if !enrolled[item.StudentID] {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s is not enrolled in class", item.StudentID))
	}
	lockErr, checked := locks[scope.TermID]
	if !checked {
		lockErr = ensureUnlocked(ctx, s.deps.Submissions, classID, scope.TermID)
		locks[scope.TermID] = lockErr
	}
	if lockErr != nil {
		return nil, lockErr
	}
	if err := checkScoreRange(item.Value, scope.MaxScore); err != nil {
		return nil, err
	}
	return &scope, nil
}

func checkComponentClass(scope *models.ComponentScope, classID string) error {
	if scope.ClassID != classID {
		return appErrors.Clone(appErrors.ErrValidation, "grade component does not belong to class")
	}
	return nil
}

func checkScoreRange(value, max float64) error {
	if value < 0 || value > max {
		return appErrors.Clone(appErrors.ErrScoreOutOfRange, fmt.Sprintf("score %.2f outside 0 to %.2f", value, max))
	}
	return nil
}
