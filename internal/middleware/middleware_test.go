package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-grading-api/internal/models"
	appErrors "github.com/noah-isme/sma-grading-api/pkg/errors"
)

type stubValidator struct {
	claims *models.JWTClaims
}

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return s.claims, nil
}

type recordingAudit struct {
	logs []models.AuditLog
	err  error
}

func (r *recordingAudit) Create(ctx context.Context, log *models.AuditLog) error {
	r.logs = append(r.logs, *log)
	return r.err
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/terms/:id", append(handlers, func(c *gin.Context) { c.Status(http.StatusOK) })...)
	return r
}

func perform(r *gin.Engine, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/terms/term-1", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTMiddleware(t *testing.T) {
	validator := stubValidator{claims: &models.JWTClaims{UserID: "u1", Role: models.RoleTeacher}}
	r := newRouter(JWT(validator))

	assert.Equal(t, http.StatusUnauthorized, perform(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, "Token good").Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, "Bearer bad").Code)
	assert.Equal(t, http.StatusOK, perform(r, "Bearer good").Code)
}

func TestRBACMiddleware(t *testing.T) {
	teacher := stubValidator{claims: &models.JWTClaims{UserID: "u1", Role: models.RoleTeacher}}
	admin := stubValidator{claims: &models.JWTClaims{UserID: "u2", Role: models.RoleAdmin}}

	assert.Equal(t, http.StatusForbidden, perform(newRouter(JWT(teacher), RequireRoles(models.RoleAdmin)), "Bearer good").Code)
	assert.Equal(t, http.StatusOK, perform(newRouter(JWT(admin), RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)), "Bearer good").Code)
}

func TestAuditMiddlewareRecordsSuccessfulRequests(t *testing.T) {
	audit := &recordingAudit{err: errors.New("ignored")}
	validator := stubValidator{claims: &models.JWTClaims{UserID: "u2", Role: models.RoleAdmin}}
	r := newRouter(JWT(validator), Audit(audit, "TERM_UPDATE", "term"))

	require.Equal(t, http.StatusOK, perform(r, "Bearer good").Code)
	require.Len(t, audit.logs, 1)
	log := audit.logs[0]
	assert.Equal(t, "TERM_UPDATE", log.Action)
	require.NotNil(t, log.UserID)
	assert.Equal(t, "u2", *log.UserID)
	require.NotNil(t, log.ResourceID)
	assert.Equal(t, "term-1", *log.ResourceID)

	require.Equal(t, http.StatusUnauthorized, perform(r, "Bearer bad").Code)
	assert.Len(t, audit.logs, 1)
}

func TestResponseMetaRecordsCacheHitAndTiming(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var meta Meta
	r := gin.New()
	r.Use(WithResponseMeta())
	r.GET("/classes/:id/grades", func(c *gin.Context) {
		SetCacheHit(c, true)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/classes/class-1/grades", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, meta[MetaCacheHit])
	assert.Contains(t, meta, MetaProcessingTime)
}

func TestSetMetaWithoutResponseMetaMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, ExtractMeta(c))

	SetCacheHit(c, false)
	assert.Equal(t, Meta{MetaCacheHit: false}, ExtractMeta(c))
}
