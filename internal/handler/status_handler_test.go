package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-grading-api/internal/grading"
	"github.com/noah-isme/sma-grading-api/internal/models"
	"github.com/noah-isme/sma-grading-api/internal/service"
	appErrors "github.com/noah-isme/sma-grading-api/pkg/errors"
)

type statusServiceStub struct {
	err      error
	lastReq  service.SetStatusRequest
	lastTerm string
	lastMeta service.AuditMeta
	reset    bool
}

func (s *statusServiceStub) List(ctx context.Context, actor *models.JWTClaims, classID, studentID string) ([]models.StudentTermStatus, error) {
	return []models.StudentTermStatus{{StudentID: studentID, ClassID: classID, TermID: "prelim", Status: grading.StatusNormal}}, s.err
}

func (s *statusServiceStub) SetStatus(ctx context.Context, actor *models.JWTClaims, classID, studentID, termID string, req service.SetStatusRequest, meta service.AuditMeta) ([]models.StudentTermStatus, error) {
	s.lastReq, s.lastTerm, s.lastMeta = req, termID, meta
	if s.err != nil {
		return nil, s.err
	}
	return []models.StudentTermStatus{
		{StudentID: studentID, ClassID: classID, TermID: "prelim", Status: grading.Status(req.Status)},
		{StudentID: studentID, ClassID: classID, TermID: "midterm", Status: grading.Status(req.Status)},
	}, nil
}

func (s *statusServiceStub) Reset(ctx context.Context, actor *models.JWTClaims, classID, studentID string, meta service.AuditMeta) (*service.StatusResetResult, error) {
	s.reset = true
	if s.err != nil {
		return nil, s.err
	}
	return &service.StatusResetResult{StudentID: studentID, ClassID: classID, Reset: 2}, nil
}

func statusParams(c *gin.Context) {
	c.Params = gin.Params{{Key: "classId", Value: "class-1"}, {Key: "studentId", Value: "s1"}, {Key: "termId", Value: "prelim"}}
}

func TestStatusHandlerSetDropped(t *testing.T) {
	stub := &statusServiceStub{}
	h := NewStatusHandler(stub)
	c, w := newGinContext(http.MethodPut, "/classes/class-1/students/s1/terms/prelim/status", mustJSON(t, service.SetStatusRequest{Status: "DROPPED"}))
	statusParams(c)
	withClaims(c, teacherClaims())

	h.Set(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "prelim", stub.lastTerm)
	assert.Equal(t, "DROPPED", stub.lastReq.Status)
	assert.Equal(t, "handler-test", stub.lastMeta.UserAgent)

	var statuses []models.StudentTermStatus
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &statuses))
	require.Len(t, statuses, 2)
	for _, st := range statuses {
		assert.Equal(t, grading.StatusDropped, st.Status)
	}
}

func TestStatusHandlerSetRejectsInvalidTransition(t *testing.T) {
	h := NewStatusHandler(&statusServiceStub{err: appErrors.ErrStatusTransition})
	c, w := newGinContext(http.MethodPut, "/classes/class-1/students/s1/terms/prelim/status", mustJSON(t, service.SetStatusRequest{Status: "NORMAL"}))
	statusParams(c)
	withClaims(c, teacherClaims())

	h.Set(c)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, appErrors.ErrStatusTransition.Code, decodeEnvelope(t, w).Error.Code)
}

func TestStatusHandlerReset(t *testing.T) {
	stub := &statusServiceStub{}
	h := NewStatusHandler(stub)
	c, w := newGinContext(http.MethodPost, "/classes/class-1/students/s1/statuses/reset", nil)
	statusParams(c)
	withClaims(c, adminClaims())

	h.Reset(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, stub.reset)
}

func TestStatusHandlerListRequiresClaims(t *testing.T) {
	h := NewStatusHandler(&statusServiceStub{})
	c, w := newGinContext(http.MethodGet, "/classes/class-1/students/s1/statuses", nil)
	statusParams(c)

	h.List(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
