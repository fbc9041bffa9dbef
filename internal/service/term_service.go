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

type termRepository interface {
	List(ctx context.Context, filter models.TermFilter) ([]models.Term, int, error)
	ListActive(ctx context.Context) ([]models.Term, error)
	FindByID(ctx context.Context, id string) (*models.Term, error)
	ExistsByCode(ctx context.Context, academicYear, code, excludeID string) (bool, error)
	Create(ctx context.Context, term *models.Term) error
	Update(ctx context.Context, term *models.Term) error
	Delete(ctx context.Context, id string) error
}

// TermRequest describes the payload for creating or updating a grading term.
type TermRequest struct {
	Code          string  `json:"code" validate:"required,max=16"`
	Name          string  `json:"name" validate:"required,max=64"`
	AcademicYear  string  `json:"academic_year" validate:"required"`
	WeightPercent float64 `json:"weight_percent" validate:"gte=0,lte=100"`
	Position      int     `json:"position" validate:"gte=0"`
	IsActive      *bool   `json:"is_active"`
}

// TermService orchestrates term workflows.
type TermService struct {
	repo      termRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTermService creates a new term service instance.
func NewTermService(repo termRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *TermService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TermService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// List returns paginated terms.
func (s *TermService) List(ctx context.Context, filter models.TermFilter) ([]models.Term, *models.Pagination, error) {
	terms, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list terms")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return terms, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a single term.
func (s *TermService) Get(ctx context.Context, id string) (*models.Term, error) {
	term, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	return term, nil
}

// Create registers a new grading term.
func (s *TermService) Create(ctx context.Context, req TermRequest) (*models.Term, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term payload")
	}
	if err := s.ensureUniqueCode(ctx, req.AcademicYear, req.Code, ""); err != nil {
		return nil, err
	}
	term := &models.Term{
		Code:          req.Code,
		Name:          req.Name,
		AcademicYear:  req.AcademicYear,
		WeightPercent: req.WeightPercent,
		Position:      req.Position,
		IsActive:      true,
	}
	if req.IsActive != nil {
		term.IsActive = *req.IsActive
	}
	if err := s.repo.Create(ctx, term); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create term")
	}
	s.invalidate(ctx)
	return term, nil
}

// Update modifies a term. Weight changes invalidate every cached grade view.
func (s *TermService) Update(ctx context.Context, id string, req TermRequest) (*models.Term, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term payload")
	}
	term, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUniqueCode(ctx, req.AcademicYear, req.Code, id); err != nil {
		return nil, err
	}
	term.Code = req.Code
	term.Name = req.Name
	term.AcademicYear = req.AcademicYear
	term.WeightPercent = req.WeightPercent
	term.Position = req.Position
	if req.IsActive != nil {
		term.IsActive = *req.IsActive
	}
	if err := s.repo.Update(ctx, term); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update term")
	}
	s.invalidate(ctx)
	return term, nil
}

// Delete removes a term.
func (s *TermService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete term")
	}
	s.invalidate(ctx)
	return nil
}

// Weights reports whether active term weights sum to 100%. The result is
// advisory; grades are computed with whatever weights are configured.
func (s *TermService) Weights(ctx context.Context) (*models.WeightSummary, error) {
	terms, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list terms")
	}
	summary := &models.WeightSummary{Scope: "terms", Items: make([]models.WeightItem, 0, len(terms))}
	weights := make([]float64, 0, len(terms))
	for _, t := range terms {
		summary.Items = append(summary.Items, models.WeightItem{ID: t.ID, Name: t.Name, WeightPercent: t.WeightPercent})
		weights = append(weights, t.WeightPercent)
	}
	summary.Check = grading.CheckWeights(weights...)
	if !summary.Check.Balanced {
		s.logger.Debug("term weights unbalanced", zap.Float64("total", summary.Check.Total))
	}
	return summary, nil
}

func (s *TermService) ensureUniqueCode(ctx context.Context, academicYear, code, excludeID string) error {
	exists, err := s.repo.ExistsByCode(ctx, academicYear, code, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate term code")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "term code already used in academic year")
	}
	return nil
}

func (s *TermService) invalidate(ctx context.Context) {
	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.logger.Warn("failed to invalidate grading cache", zap.Error(err))
	}
}
