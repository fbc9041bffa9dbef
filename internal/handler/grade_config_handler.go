package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-grading-api/internal/models"
	"github.com/noah-isme/sma-grading-api/internal/service"
	"github.com/noah-isme/sma-grading-api/pkg/response"
)

type criteriaService interface {
	List(ctx context.Context, actor *models.JWTClaims, classID, termID string) ([]models.GradingCriterion, error)
	Weights(ctx context.Context, actor *models.JWTClaims, classID, termID string) (*models.WeightSummary, error)
	Create(ctx context.Context, actor *models.JWTClaims, classID, termID string, req service.CriterionRequest) (*models.GradingCriterion, error)
	Update(ctx context.Context, actor *models.JWTClaims, id string, req service.CriterionRequest) (*models.GradingCriterion, error)
	Delete(ctx context.Context, actor *models.JWTClaims, id string) error
	AddComponent(ctx context.Context, actor *models.JWTClaims, criterionID string, req service.ComponentRequest) (*models.GradeComponent, error)
	UpdateComponent(ctx context.Context, actor *models.JWTClaims, componentID string, req service.ComponentRequest) (*models.GradeComponent, error)
	DeleteComponent(ctx context.Context, actor *models.JWTClaims, componentID string) error
}

// GradeConfigHandler exposes grading criteria and component endpoints.
type GradeConfigHandler struct {
	criteria criteriaService
}

// NewGradeConfigHandler constructs handler.
func NewGradeConfigHandler(criteria criteriaService) *GradeConfigHandler {
	return &GradeConfigHandler{criteria: criteria}
}

// List godoc
// @Summary List grading criteria
// @Tags Grading Criteria
// @Produce json
// @Param classId path string true "Class ID"
// @Param termId path string true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/terms/{termId}/criteria [get]
func (h *GradeConfigHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	items, err := h.criteria.List(c.Request.Context(), claims, c.Param("classId"), c.Param("termId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Weights godoc
// @Summary Criteria weight summary
// @Description Advisory total of criteria weights for a class term
// @Tags Grading Criteria
// @Produce json
// @Param classId path string true "Class ID"
// @Param termId path string true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/terms/{termId}/criteria/weights [get]
func (h *GradeConfigHandler) Weights(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	summary, err := h.criteria.Weights(c.Request.Context(), claims, c.Param("classId"), c.Param("termId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Create godoc
// @Summary Create grading criterion
// @Tags Grading Criteria
// @Accept json
// @Produce json
// @Param classId path string true "Class ID"
// @Param termId path string true "Term ID"
// @Param payload body service.CriterionRequest true "Criterion payload"
// @Success 201 {object} response.Envelope
// @Router /classes/{classId}/terms/{termId}/criteria [post]
func (h *GradeConfigHandler) Create(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req service.CriterionRequest
	if !bindJSON(c, &req) {
		return
	}
	criterion, err := h.criteria.Create(c.Request.Context(), claims, c.Param("classId"), c.Param("termId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, criterion)
}

// Update godoc
// @Summary Update grading criterion
// @Tags Grading Criteria
// @Accept json
// @Produce json
// @Param id path string true "Criterion ID"
// @Param payload body service.CriterionRequest true "Criterion payload"
// @Success 200 {object} response.Envelope
// @Router /criteria/{id} [put]
func (h *GradeConfigHandler) Update(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req service.CriterionRequest
	if !bindJSON(c, &req) {
		return
	}
	criterion, err := h.criteria.Update(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, criterion, nil)
}

// Delete godoc
// @Summary Delete grading criterion
// @Tags Grading Criteria
// @Param id path string true "Criterion ID"
// @Success 204
// @Router /criteria/{id} [delete]
func (h *GradeConfigHandler) Delete(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	if err := h.criteria.Delete(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddComponent godoc
// @Summary Add grade component
// @Tags Grading Criteria
// @Accept json
// @Produce json
// @Param id path string true "Criterion ID"
// @Param payload body service.ComponentRequest true "Component payload"
// @Success 201 {object} response.Envelope
// @Router /criteria/{id}/components [post]
func (h *GradeConfigHandler) AddComponent(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req service.ComponentRequest
	if !bindJSON(c, &req) {
		return
	}
	component, err := h.criteria.AddComponent(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, component)
}

// UpdateComponent godoc
// @Summary Update grade component
// @Tags Grading Criteria
// @Accept json
// @Produce json
// @Param id path string true "Component ID"
// @Param payload body service.ComponentRequest true "Component payload"
// @Success 200 {object} response.Envelope
// @Router /components/{id} [put]
func (h *GradeConfigHandler) UpdateComponent(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req service.ComponentRequest
	if !bindJSON(c, &req) {
		return
	}
	component, err := h.criteria.UpdateComponent(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, component, nil)
}

// DeleteComponent godoc
// @Summary Delete grade component
// @Tags Grading Criteria
// @Param id path string true "Component ID"
// @Success 204
// @Router /components/{id} [delete]
func (h *GradeConfigHandler) DeleteComponent(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	if err := h.criteria.DeleteComponent(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
