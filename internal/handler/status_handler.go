package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-grading-api/internal/models"
	"github.com/noah-isme/sma-grading-api/internal/service"
	"github.com/noah-isme/sma-grading-api/pkg/response"
)

type statusService interface {
	List(ctx context.Context, actor *models.JWTClaims, classID, studentID string) ([]models.StudentTermStatus, error)
	SetStatus(ctx context.Context, actor *models.JWTClaims, classID, studentID, termID string, req service.SetStatusRequest, meta service.AuditMeta) ([]models.StudentTermStatus, error)
	Reset(ctx context.Context, actor *models.JWTClaims, classID, studentID string, meta service.AuditMeta) (*service.StatusResetResult, error)
}

// StatusHandler exposes student term status endpoints.
type StatusHandler struct {
	statuses statusService
}

// NewStatusHandler constructs handler.
func NewStatusHandler(statuses statusService) *StatusHandler {
	return &StatusHandler{statuses: statuses}
}

// List godoc
// @Summary List a student's term statuses
// @Tags Statuses
// @Produce json
// @Param classId path string true "Class ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/students/{studentId}/statuses [get]
func (h *StatusHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	statuses, err := h.statuses.List(c.Request.Context(), claims, c.Param("classId"), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, statuses, nil)
}

// Set godoc
// @Summary Set a student's term status
// @Description INC applies to one term; DROPPED applies to every active term
// @Tags Statuses
// @Accept json
// @Produce json
// @Param classId path string true "Class ID"
// @Param studentId path string true "Student ID"
// @Param termId path string true "Term ID"
// @Param payload body service.SetStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /classes/{classId}/students/{studentId}/terms/{termId}/status [put]
func (h *StatusHandler) Set(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req service.SetStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	statuses, err := h.statuses.SetStatus(c.Request.Context(), claims, c.Param("classId"), c.Param("studentId"), c.Param("termId"), req, auditMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, statuses, nil)
}

// Reset godoc
// @Summary Reset a student's statuses
// @Description Administrative reset of every term back to NORMAL
// @Tags Statuses
// @Produce json
// @Param classId path string true "Class ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/students/{studentId}/statuses/reset [post]
func (h *StatusHandler) Reset(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	result, err := h.statuses.Reset(c.Request.Context(), claims, c.Param("classId"), c.Param("studentId"), auditMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
