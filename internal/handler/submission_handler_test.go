package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-grading-api/internal/models"
	"github.com/noah-isme/sma-grading-api/internal/service"
	appErrors "github.com/noah-isme/sma-grading-api/pkg/errors"
)

type submissionServiceStub struct {
	lastFilter   models.SubmissionFilter
	lastDecision *service.DecisionRequest
	decided      models.SubmissionStatus
	err          error
}

func (s *submissionServiceStub) List(ctx context.Context, actor *models.JWTClaims, filter models.SubmissionFilter) ([]models.GradeSubmission, error) {
	s.lastFilter = filter
	return nil, s.err
}

func (s *submissionServiceStub) Latest(ctx context.Context, actor *models.JWTClaims, classID, termID string) (*models.GradeSubmission, error) {
	return &models.GradeSubmission{ClassID: classID, TermID: termID, Status: models.SubmissionStatusPending}, s.err
}

func (s *submissionServiceStub) Submit(ctx context.Context, actor *models.JWTClaims, classID, termID string, meta service.AuditMeta) (*models.GradeSubmission, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.GradeSubmission{ID: "sub-1", ClassID: classID, TermID: termID, Status: models.SubmissionStatusPending}, nil
}

func (s *submissionServiceStub) Approve(ctx context.Context, actor *models.JWTClaims, id string, req service.DecisionRequest, meta service.AuditMeta) (*models.GradeSubmission, error) {
	s.lastDecision, s.decided = &req, models.SubmissionStatusApproved
	return &models.GradeSubmission{ID: id, Status: models.SubmissionStatusApproved}, s.err
}

func (s *submissionServiceStub) Reject(ctx context.Context, actor *models.JWTClaims, id string, req service.DecisionRequest, meta service.AuditMeta) (*models.GradeSubmission, error) {
	s.lastDecision, s.decided = &req, models.SubmissionStatusRejected
	if s.err != nil {
		return nil, s.err
	}
	return &models.GradeSubmission{ID: id, Status: models.SubmissionStatusRejected}, nil
}

func TestSubmissionHandlerSubmit(t *testing.T) {
	h := NewSubmissionHandler(&submissionServiceStub{})
	c, w := newGinContext(http.MethodPost, "/classes/class-1/terms/prelim/submission", nil)
	c.Params = gin.Params{{Key: "classId", Value: "class-1"}, {Key: "termId", Value: "prelim"}}
	withClaims(c, teacherClaims())

	h.Submit(c)

	require.Equal(t, http.StatusCreated, w.Code)
}

func TestSubmissionHandlerApproveWithoutBody(t *testing.T) {
	stub := &submissionServiceStub{}
	h := NewSubmissionHandler(stub)
	c, w := newGinContext(http.MethodPost, "/submissions/sub-1/approve", nil)
	c.Params = gin.Params{{Key: "id", Value: "sub-1"}}
	withClaims(c, adminClaims())

	h.Approve(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.SubmissionStatusApproved, stub.decided)
	assert.Empty(t, stub.lastDecision.Remarks)
}

func TestSubmissionHandlerRejectCarriesRemarks(t *testing.T) {
	stub := &submissionServiceStub{}
	h := NewSubmissionHandler(stub)
	c, w := newGinContext(http.MethodPost, "/submissions/sub-1/reject", mustJSON(t, service.DecisionRequest{Remarks: "missing finals"}))
	c.Params = gin.Params{{Key: "id", Value: "sub-1"}}
	withClaims(c, adminClaims())

	h.Reject(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "missing finals", stub.lastDecision.Remarks)
}

func TestSubmissionHandlerStateConflict(t *testing.T) {
	h := NewSubmissionHandler(&submissionServiceStub{err: appErrors.ErrSubmissionState})
	c, w := newGinContext(http.MethodPost, "/submissions/sub-1/reject", mustJSON(t, service.DecisionRequest{Remarks: "late"}))
	c.Params = gin.Params{{Key: "id", Value: "sub-1"}}
	withClaims(c, adminClaims())

	h.Reject(c)

	require.Equal(t, http.StatusConflict, w.Code)
}

func TestSubmissionHandlerListNormalisesStatus(t *testing.T) {
	stub := &submissionServiceStub{}
	h := NewSubmissionHandler(stub)
	c, w := newGinContext(http.MethodGet, "/submissions?status=pending&classId=class-1", nil)
	withClaims(c, adminClaims())

	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.SubmissionStatusPending, stub.lastFilter.Status)
	assert.Equal(t, "class-1", stub.lastFilter.ClassID)
}
