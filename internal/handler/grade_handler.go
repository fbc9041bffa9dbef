package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-grading-api/internal/models"
	"github.com/noah-isme/sma-grading-api/internal/service"
	"github.com/noah-isme/sma-grading-api/pkg/response"
)

type scoreService interface {
	List(ctx context.Context, actor *models.JWTClaims, filter models.ScoreFilter) ([]models.Score, error)
	Upsert(ctx context.Context, actor *models.JWTClaims, classID string, req service.UpsertScoreRequest, meta service.AuditMeta) (*service.ScoreResult, error)
	BulkUpsert(ctx context.Context, actor *models.JWTClaims, classID string, req service.BulkScoresRequest, meta service.AuditMeta) (*service.BulkScoresResult, error)
	Delete(ctx context.Context, actor *models.JWTClaims, classID, studentID, componentID string, meta service.AuditMeta) error
}

// GradeHandler exposes score entry endpoints.
type GradeHandler struct {
	scores scoreService
}

// NewGradeHandler constructs handler.
func NewGradeHandler(scores scoreService) *GradeHandler {
	return &GradeHandler{scores: scores}
}

// List godoc
// @Summary List raw scores of a class
// @Tags Scores
// @Produce json
// @Param classId path string true "Class ID"
// @Param termId query string false "Filter by term"
// @Param studentId query string false "Filter by student"
// @Param componentId query string false "Filter by component"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/scores [get]
func (h *GradeHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	filter := models.ScoreFilter{
		ClassID:     c.Param("classId"),
		TermID:      c.Query("termId"),
		StudentID:   c.Query("studentId"),
		ComponentID: c.Query("componentId"),
	}
	scores, err := h.scores.List(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scores, nil)
}

// Upsert godoc
// @Summary Record a score
// @Description Stores a raw score and recomputes the student's term grade
// @Tags Scores
// @Accept json
// @Produce json
// @Param classId path string true "Class ID"
// @Param payload body service.UpsertScoreRequest true "Score payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /classes/{classId}/scores [post]
func (h *GradeHandler) Upsert(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req service.UpsertScoreRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.scores.Upsert(c.Request.Context(), claims, c.Param("classId"), req, auditMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Bulk godoc
// @Summary Bulk upsert scores
// @Tags Scores
// @Accept json
// @Produce json
// @Param classId path string true "Class ID"
// @Param payload body service.BulkScoresRequest true "Bulk payload"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/scores/bulk [post]
func (h *GradeHandler) Bulk(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req service.BulkScoresRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.scores.BulkUpsert(c.Request.Context(), claims, c.Param("classId"), req, auditMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Delete godoc
// @Summary Delete a score
// @Tags Scores
// @Param classId path string true "Class ID"
// @Param studentId path string true "Student ID"
// @Param componentId path string true "Component ID"
// @Success 204
// @Router /classes/{classId}/scores/{studentId}/{componentId} [delete]
func (h *GradeHandler) Delete(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	err := h.scores.Delete(c.Request.Context(), claims, c.Param("classId"), c.Param("studentId"), c.Param("componentId"), auditMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
