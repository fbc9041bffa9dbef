package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-grading-api/internal/models"
	"github.com/noah-isme/sma-grading-api/internal/service"
	"github.com/noah-isme/sma-grading-api/pkg/response"
)

type submissionService interface {
	List(ctx context.Context, actor *models.JWTClaims, filter models.SubmissionFilter) ([]models.GradeSubmission, error)
	Latest(ctx context.Context, actor *models.JWTClaims, classID, termID string) (*models.GradeSubmission, error)
	Submit(ctx context.Context, actor *models.JWTClaims, classID, termID string, meta service.AuditMeta) (*models.GradeSubmission, error)
	Approve(ctx context.Context, actor *models.JWTClaims, id string, req service.DecisionRequest, meta service.AuditMeta) (*models.GradeSubmission, error)
	Reject(ctx context.Context, actor *models.JWTClaims, id string, req service.DecisionRequest, meta service.AuditMeta) (*models.GradeSubmission, error)
}

// SubmissionHandler exposes the grade approval workflow.
type SubmissionHandler struct {
	submissions submissionService
}

// NewSubmissionHandler constructs handler.
func NewSubmissionHandler(submissions submissionService) *SubmissionHandler {
	return &SubmissionHandler{submissions: submissions}
}

// List godoc
// @Summary List grade submissions
// @Tags Submissions
// @Produce json
// @Param classId query string false "Filter by class"
// @Param termId query string false "Filter by term"
// @Param status query string false "PENDING, APPROVED or REJECTED"
// @Success 200 {object} response.Envelope
// @Router /submissions [get]
func (h *SubmissionHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	filter := models.SubmissionFilter{
		ClassID: c.Query("classId"),
		TermID:  c.Query("termId"),
		Status:  models.SubmissionStatus(strings.ToUpper(c.Query("status"))),
	}
	items, err := h.submissions.List(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Latest godoc
// @Summary Latest submission of a class term
// @Tags Submissions
// @Produce json
// @Param classId path string true "Class ID"
// @Param termId path string true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/terms/{termId}/submission [get]
func (h *SubmissionHandler) Latest(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	submission, err := h.submissions.Latest(c.Request.Context(), claims, c.Param("classId"), c.Param("termId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// Submit godoc
// @Summary Submit class term grades for approval
// @Tags Submissions
// @Produce json
// @Param classId path string true "Class ID"
// @Param termId path string true "Term ID"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /classes/{classId}/terms/{termId}/submission [post]
func (h *SubmissionHandler) Submit(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	submission, err := h.submissions.Submit(c.Request.Context(), claims, c.Param("classId"), c.Param("termId"), auditMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, submission)
}

// Approve godoc
// @Summary Approve a submission
// @Tags Submissions
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body service.DecisionRequest false "Remarks"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/approve [post]
func (h *SubmissionHandler) Approve(c *gin.Context) {
	h.decide(c, h.submissions.Approve)
}

// Reject godoc
// @Summary Reject a submission
// @Description Reopens score entry; remarks are required
// @Tags Submissions
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body service.DecisionRequest true "Remarks"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/reject [post]
func (h *SubmissionHandler) Reject(c *gin.Context) {
	h.decide(c, h.submissions.Reject)
}

type decisionFunc func(ctx context.Context, actor *models.JWTClaims, id string, req service.DecisionRequest, meta service.AuditMeta) (*models.GradeSubmission, error)

func (h *SubmissionHandler) decide(c *gin.Context, fn decisionFunc) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req service.DecisionRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	submission, err := fn(c.Request.Context(), claims, c.Param("id"), req, auditMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}
