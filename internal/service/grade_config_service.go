package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-grading-api/internal/grading"
	"github.com/noah-isme/sma-grading-api/internal/models"
	appErrors "github.com/noah-isme/sma-grading-api/pkg/errors"
)

type criteriaRepository interface {
	ListByScope(ctx context.Context, classID, termID string) ([]models.GradingCriterion, error)
	FindByID(ctx context.Context, id string) (*models.GradingCriterion, error)
	ExistsByName(ctx context.Context, classID, termID, name, excludeID string) (bool, error)
	Create(ctx context.Context, criterion *models.GradingCriterion) error
	Update(ctx context.Context, criterion *models.GradingCriterion) error
	Delete(ctx context.Context, id string) error
}

type componentRepository interface {
	FindScope(ctx context.Context, id string) (*models.ComponentScope, error)
	Create(ctx context.Context, component *models.GradeComponent) error
	Update(ctx context.Context, component *models.GradeComponent) error
	Delete(ctx context.Context, id string) error
}

type termLookup interface {
	FindByID(ctx context.Context, id string) (*models.Term, error)
}

type classTermRecomputer interface {
	RecomputeClassTerm(ctx context.Context, classID, termID, trigger string) error
}

// ComponentRequest describes a gradable item of a criterion.
type ComponentRequest struct {
	Name     string  `json:"name" validate:"required,max=64"`
	MaxScore float64 `json:"max_score" validate:"gt=0"`
	Position int     `json:"position" validate:"gte=0"`
}

// CriterionRequest describes a grading criterion. Components are only read on create.
type CriterionRequest struct {
	Name          string             `json:"name" validate:"required,max=64"`
	WeightPercent float64            `json:"weight_percent" validate:"gte=0,lte=100"`
	Position      int                `json:"position" validate:"gte=0"`
	Components    []ComponentRequest `json:"components" validate:"dive"`
}

// CriteriaDeps groups CriteriaService collaborators.
type CriteriaDeps struct {
	Criteria    criteriaRepository
	Components  componentRepository
	Classes     classReader
	Terms       termLookup
	Submissions submissionLockReader
	Recomputer  classTermRecomputer
}

// CriteriaService manages grading criteria and their components.
type CriteriaService struct {
	deps      CriteriaDeps
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCriteriaService constructs the service.
func NewCriteriaService(deps CriteriaDeps, validate *validator.Validate, logger *zap.Logger) *CriteriaService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CriteriaService{deps: deps, validator: validate, logger: logger}
}

// List returns the criteria of a class term with their components.
func (s *CriteriaService) List(ctx context.Context, actor *models.JWTClaims, classID, termID string) ([]models.GradingCriterion, error) {
	if _, err := loadClass(ctx, s.deps.Classes, classID, actor); err != nil {
		return nil, err
	}
	criteria, err := s.deps.Criteria.ListByScope(ctx, classID, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grading criteria")
	}
	return criteria, nil
}

// Weights reports whether the criteria weights of a class term sum to 100%.
func (s *CriteriaService) Weights(ctx context.Context, actor *models.JWTClaims, classID, termID string) (*models.WeightSummary, error) {
	criteria, err := s.List(ctx, actor, classID, termID)
	if err != nil {
		return nil, err
	}
	summary := &models.WeightSummary{Scope: "criteria", Items: make([]models.WeightItem, 0, len(criteria))}
	weights := make([]float64, 0, len(criteria))
	for _, c := range criteria {
		summary.Items = append(summary.Items, models.WeightItem{ID: c.ID, Name: c.Name, WeightPercent: c.WeightPercent})
		weights = append(weights, c.WeightPercent)
	}
	summary.Check = grading.CheckWeights(weights...)
	return summary, nil
}

// Create adds a criterion with its initial components.
func (s *CriteriaService) Create(ctx context.Context, actor *models.JWTClaims, classID, termID string, req CriterionRequest) (*models.GradingCriterion, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid criterion payload")
	}
	if err := s.ensureEditable(ctx, actor, classID, termID); err != nil {
		return nil, err
	}
	if _, err := s.deps.Terms.FindByID(ctx, termID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	if err := s.ensureUniqueName(ctx, classID, termID, req.Name, ""); err != nil {
		return nil, err
	}
	criterion := &models.GradingCriterion{
		ClassID:       classID,
		TermID:        termID,
		Name:          req.Name,
		WeightPercent: req.WeightPercent,
		Position:      req.Position,
		Components:    make([]models.GradeComponent, 0, len(req.Components)),
	}
	for i, c := range req.Components {
		position := c.Position
		if position == 0 {
			position = i + 1
		}
		criterion.Components = append(criterion.Components, models.GradeComponent{Name: c.Name, MaxScore: c.MaxScore, Position: position})
	}
	if err := s.deps.Criteria.Create(ctx, criterion); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create grading criterion")
	}
	s.recompute(ctx, classID, termID)
	return criterion, nil
}

// Update changes a criterion's name, weight or position.
func (s *CriteriaService) Update(ctx context.Context, actor *models.JWTClaims, id string, req CriterionRequest) (*models.GradingCriterion, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid criterion payload")
	}
	criterion, err := s.findCriterion(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureEditable(ctx, actor, criterion.ClassID, criterion.TermID); err != nil {
		return nil, err
	}
	if err := s.ensureUniqueName(ctx, criterion.ClassID, criterion.TermID, req.Name, id); err != nil {
		return nil, err
	}
	criterion.Name = req.Name
	criterion.WeightPercent = req.WeightPercent
	criterion.Position = req.Position
	if err := s.deps.Criteria.Update(ctx, criterion); err != nil {
		return nil, mapMissing(err, "grading criterion not found", "failed to update grading criterion")
	}
	s.recompute(ctx, criterion.ClassID, criterion.TermID)
	return criterion, nil
}

// Delete removes a criterion together with its components and scores.
func (s *CriteriaService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	criterion, err := s.findCriterion(ctx, id)
	if err != nil {
		return err
	}
	if err := s.ensureEditable(ctx, actor, criterion.ClassID, criterion.TermID); err != nil {
		return err
	}
	if err := s.deps.Criteria.Delete(ctx, id); err != nil {
		return mapMissing(err, "grading criterion not found", "failed to delete grading criterion")
	}
	s.recompute(ctx, criterion.ClassID, criterion.TermID)
	return nil
}

// AddComponent appends a component to a criterion.
func (s *CriteriaService) AddComponent(ctx context.Context, actor *models.JWTClaims, criterionID string, req ComponentRequest) (*models.GradeComponent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid component payload")
	}
	criterion, err := s.findCriterion(ctx, criterionID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureEditable(ctx, actor, criterion.ClassID, criterion.TermID); err != nil {
		return nil, err
	}
	position := req.Position
	if position == 0 {
		position = len(criterion.Components) + 1
	}
	component := &models.GradeComponent{CriterionID: criterionID, Name: req.Name, MaxScore: req.MaxScore, Position: position}
	if err := s.deps.Components.Create(ctx, component); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create grade component")
	}
	s.recompute(ctx, criterion.ClassID, criterion.TermID)
	return component, nil
}

// UpdateComponent changes a component. Existing scores above a lowered
// maximum are clamped by the engine.
func (s *CriteriaService) UpdateComponent(ctx context.Context, actor *models.JWTClaims, componentID string, req ComponentRequest) (*models.GradeComponent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid component payload")
	}
	scope, err := s.findComponent(ctx, componentID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureEditable(ctx, actor, scope.ClassID, scope.TermID); err != nil {
		return nil, err
	}
	component := scope.GradeComponent
	component.Name = req.Name
	component.MaxScore = req.MaxScore
	if req.Position > 0 {
		component.Position = req.Position
	}
	if err := s.deps.Components.Update(ctx, &component); err != nil {
		return nil, mapMissing(err, "grade component not found", "failed to update grade component")
	}
	s.recompute(ctx, scope.ClassID, scope.TermID)
	return &component, nil
}

// DeleteComponent removes a component and its scores.
func (s *CriteriaService) DeleteComponent(ctx context.Context, actor *models.JWTClaims, componentID string) error {
	scope, err := s.findComponent(ctx, componentID)
	if err != nil {
		return err
	}
	if err := s.ensureEditable(ctx, actor, scope.ClassID, scope.TermID); err != nil {
		return err
	}
	if err := s.deps.Components.Delete(ctx, componentID); err != nil {
		return mapMissing(err, "grade component not found", "failed to delete grade component")
	}
	s.recompute(ctx, scope.ClassID, scope.TermID)
	return nil
}

func (s *CriteriaService) ensureEditable(ctx context.Context, actor *models.JWTClaims, classID, termID string) error {
	if _, err := loadClass(ctx, s.deps.Classes, classID, actor); err != nil {
		return err
	}
	return ensureUnlocked(ctx, s.deps.Submissions, classID, termID)
}

func (s *CriteriaService) ensureUniqueName(ctx context.Context, classID, termID, name, excludeID string) error {
	exists, err := s.deps.Criteria.ExistsByName(ctx, classID, termID, name, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate criterion name")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "criterion name already used in term")
	}
	return nil
}

func (s *CriteriaService) findCriterion(ctx context.Context, id string) (*models.GradingCriterion, error) {
	criterion, err := s.deps.Criteria.FindByID(ctx, id)
	if err != nil {
		return nil, mapMissing(err, "grading criterion not found", "failed to load grading criterion")
	}
	return criterion, nil
}

func (s *CriteriaService) findComponent(ctx context.Context, id string) (*models.ComponentScope, error) {
	scope, err := s.deps.Components.FindScope(ctx, id)
	if err != nil {
		return nil, mapMissing(err, "grade component not found", "failed to load grade component")
	}
	return scope, nil
}

// recompute refreshes cached term grades after a structural change. Failures
// are logged; the next recalculation or score save repairs them.
func (s *CriteriaService) recompute(ctx context.Context, classID, termID string) {
	if s.deps.Recomputer == nil {
		return
	}
	if err := s.deps.Recomputer.RecomputeClassTerm(ctx, classID, termID, TriggerCriteria); err != nil {
		s.logger.Warn("failed to recompute term grades", zap.String("class_id", classID), zap.String("term_id", termID), zap.Error(err))
	}
}

func mapMissing(err error, notFound, internal string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internal)
}
