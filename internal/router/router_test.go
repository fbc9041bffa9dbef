package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-grading-api/internal/handler"
	"github.com/noah-isme/sma-grading-api/pkg/config"
)

func newTestEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	Register(r, &config.Config{Env: config.EnvProduction, APIPrefix: "/api/v1"}, Dependencies{
		AuthHandler:        handler.NewAuthHandler(nil),
		AnalyticsHandler:   handler.NewAnalyticsHandler(nil),
		TermHandler:        handler.NewTermHandler(nil),
		GradeConfigHandler: handler.NewGradeConfigHandler(nil),
		GradeHandler:       handler.NewGradeHandler(nil),
		SheetHandler:       handler.NewSheetHandler(nil),
		StatusHandler:      handler.NewStatusHandler(nil),
		SubmissionHandler:  handler.NewSubmissionHandler(nil),
		ExportHandler:      handler.NewExportHandler(nil),
		EnrollmentHandler:  handler.NewEnrollmentHandler(nil),
		MetricsHandler:     handler.NewMetricsHandler(nil),
		JWTMiddleware: func(c *gin.Context) {
			c.AbortWithStatus(http.StatusUnauthorized)
		},
	})
	return r
}

func TestRegisterExposesGradingRoutes(t *testing.T) {
	r := newTestEngine()
	registered := make(map[string]bool)
	for _, route := range r.Routes() {
		registered[route.Method+" "+route.Path] = true
	}

	for _, want := range []string{
		"POST /api/v1/auth/login",
		"GET /api/v1/terms/weights",
		"GET /api/v1/classes/:classId/terms/:termId/criteria/weights",
		"GET /api/v1/classes/:classId/terms/:termId/sheet",
		"GET /api/v1/classes/:classId/terms/:termId/analytics",
		"GET /api/v1/classes/:classId/students/:studentId/grades",
		"PUT /api/v1/classes/:classId/students/:studentId/terms/:termId/status",
		"POST /api/v1/classes/:classId/scores/bulk",
		"POST /api/v1/submissions/:id/reject",
		"GET /api/v1/exports/download/:token",
		"GET /api/v1/me/classes/:classId/grades",
	} {
		assert.True(t, registered[want], want)
	}
	assert.False(t, registered["GET /docs/*any"], "docs are hidden in production")
}

func TestSecuredRoutesRunJWTMiddleware(t *testing.T) {
	r := newTestEngine()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/classes/class-1/terms/prelim/sheet", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
}
