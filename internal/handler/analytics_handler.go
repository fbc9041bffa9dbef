package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-grading-api/internal/models"
	"github.com/noah-isme/sma-grading-api/pkg/response"
)

type analyticsService interface {
	ClassTerm(ctx context.Context, actor *models.JWTClaims, classID, termID string) (*models.GradeAnalytics, bool, error)
}

// AnalyticsHandler exposes grade statistics endpoints.
type AnalyticsHandler struct {
	analytics analyticsService
}

// NewAnalyticsHandler constructs the handler.
func NewAnalyticsHandler(analytics analyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// ClassTerm godoc
// @Summary Class term grade analytics
// @Description Pass and fail counts, average, median, bands and rank for the term
// @Tags Analytics
// @Produce json
// @Param classId path string true "Class ID"
// @Param termId path string true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/terms/{termId}/analytics [get]
func (h *AnalyticsHandler) ClassTerm(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	start := time.Now()
	summary, hit, err := h.analytics.ClassTerm(c.Request.Context(), claims, c.Param("classId"), c.Param("termId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := cacheMeta(c, hit)
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, summary, nil, meta)
}
