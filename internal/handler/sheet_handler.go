package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-grading-api/internal/models"
	"github.com/noah-isme/sma-grading-api/internal/service"
	"github.com/noah-isme/sma-grading-api/pkg/response"
)

type gradingService interface {
	Sheet(ctx context.Context, actor *models.JWTClaims, classID, termID string) (*models.GradeSheet, bool, error)
	StudentGrades(ctx context.Context, actor *models.JWTClaims, classID, studentID string) (*models.StudentGradeRow, bool, error)
	OwnGrades(ctx context.Context, actor *models.JWTClaims, classID string) (*models.StudentGradeRow, bool, error)
	Recalculate(ctx context.Context, actor *models.JWTClaims, classID, termID string, meta service.AuditMeta) (*service.RecalculateResult, error)
}

// SheetHandler serves computed grade sheets and student grade records.
type SheetHandler struct {
	grading gradingService
}

// NewSheetHandler constructs handler.
func NewSheetHandler(grading gradingService) *SheetHandler {
	return &SheetHandler{grading: grading}
}

// Sheet godoc
// @Summary Class grade sheet
// @Description Computed grades of every enrolled student for the term being edited
// @Tags Grade Sheets
// @Produce json
// @Param classId path string true "Class ID"
// @Param termId path string true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/terms/{termId}/sheet [get]
func (h *SheetHandler) Sheet(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	sheet, hit, err := h.grading.Sheet(c.Request.Context(), claims, c.Param("classId"), c.Param("termId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sheet, nil, cacheMeta(c, hit))
}

// StudentGrades godoc
// @Summary Student grade record
// @Description Every term of one student computed from scores
// @Tags Grade Sheets
// @Produce json
// @Param classId path string true "Class ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/students/{studentId}/grades [get]
func (h *SheetHandler) StudentGrades(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	row, hit, err := h.grading.StudentGrades(c.Request.Context(), claims, c.Param("classId"), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, row, nil, cacheMeta(c, hit))
}

// OwnGrades godoc
// @Summary Own grade record
// @Description Grades of the authenticated student
// @Tags Grade Sheets
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /me/classes/{classId}/grades [get]
func (h *SheetHandler) OwnGrades(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	row, hit, err := h.grading.OwnGrades(c.Request.Context(), claims, c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, row, nil, cacheMeta(c, hit))
}

// Recalculate godoc
// @Summary Recalculate term grades
// @Description Rebuilds stored term grades of every enrolled student
// @Tags Grade Sheets
// @Produce json
// @Param classId path string true "Class ID"
// @Param termId path string true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/terms/{termId}/recalculate [post]
func (h *SheetHandler) Recalculate(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	result, err := h.grading.Recalculate(c.Request.Context(), claims, c.Param("classId"), c.Param("termId"), auditMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
