package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-grading-api/internal/models"
	"github.com/noah-isme/sma-grading-api/pkg/response"
)

type enrollmentService interface {
	List(ctx context.Context, actor *models.JWTClaims, classID string, status models.EnrollmentStatus) ([]models.EnrollmentDetail, error)
	MyClasses(ctx context.Context, actor *models.JWTClaims) ([]models.Class, error)
}

// EnrollmentHandler exposes class roster endpoints.
type EnrollmentHandler struct {
	enrollments enrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// List godoc
// @Summary List students enrolled in a class
// @Tags Enrollments
// @Produce json
// @Param classId path string true "Class ID"
// @Param status query string false "ACTIVE (default), WITHDRAWN or ALL"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	status := models.EnrollmentStatus(strings.ToUpper(c.Query("status")))
	enrollments, err := h.enrollments.List(c.Request.Context(), claims, c.Param("classId"), status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, nil)
}

// MyClasses godoc
// @Summary Classes handled by the current teacher
// @Tags Enrollments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/classes [get]
func (h *EnrollmentHandler) MyClasses(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	classes, err := h.enrollments.MyClasses(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, nil)
}
