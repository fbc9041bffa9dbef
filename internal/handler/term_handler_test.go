package handler

import (
	"context"
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

type termServiceStub struct {
	err        error
	lastFilter models.TermFilter
	lastReq    service.TermRequest
	deleted    string
}

func (s *termServiceStub) List(ctx context.Context, filter models.TermFilter) ([]models.Term, *models.Pagination, error) {
	s.lastFilter = filter
	return []models.Term{{ID: "prelim", Code: "PRE", WeightPercent: 30}}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: 1}, s.err
}

func (s *termServiceStub) Get(ctx context.Context, id string) (*models.Term, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.Term{ID: id}, nil
}

func (s *termServiceStub) Create(ctx context.Context, req service.TermRequest) (*models.Term, error) {
	s.lastReq = req
	return &models.Term{ID: "final", Code: req.Code, WeightPercent: req.WeightPercent}, s.err
}

func (s *termServiceStub) Update(ctx context.Context, id string, req service.TermRequest) (*models.Term, error) {
	s.lastReq = req
	return &models.Term{ID: id, Code: req.Code}, s.err
}

func (s *termServiceStub) Delete(ctx context.Context, id string) error {
	s.deleted = id
	return s.err
}

func (s *termServiceStub) Weights(ctx context.Context) (*models.WeightSummary, error) {
	return &models.WeightSummary{Scope: "terms", Check: grading.WeightCheck{Total: 90, Missing: 10}}, s.err
}

func TestTermHandlerListParsesFilter(t *testing.T) {
	stub := &termServiceStub{}
	h := NewTermHandler(stub)
	c, w := newGinContext(http.MethodGet, "/terms?academicYear=2024-2025&isActive=true&page=2&limit=5", nil)

	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-2025", stub.lastFilter.AcademicYear)
	require.NotNil(t, stub.lastFilter.IsActive)
	assert.True(t, *stub.lastFilter.IsActive)
	assert.Equal(t, 2, stub.lastFilter.Page)
	assert.Equal(t, 5, stub.lastFilter.PageSize)
}

func TestTermHandlerCreate(t *testing.T) {
	stub := &termServiceStub{}
	h := NewTermHandler(stub)
	body := mustJSON(t, service.TermRequest{Code: "FIN", Name: "Finals", AcademicYear: "2024-2025", WeightPercent: 40})
	c, w := newGinContext(http.MethodPost, "/terms", body)

	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 40.0, stub.lastReq.WeightPercent)
}

func TestTermHandlerWeightsAreAdvisory(t *testing.T) {
	h := NewTermHandler(&termServiceStub{})
	c, w := newGinContext(http.MethodGet, "/terms/weights", nil)

	h.Weights(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"balanced":false`)
}

func TestTermHandlerGetNotFound(t *testing.T) {
	h := NewTermHandler(&termServiceStub{err: appErrors.Clone(appErrors.ErrNotFound, "term not found")})
	c, w := newGinContext(http.MethodGet, "/terms/nope", nil)
	c.Params = gin.Params{{Key: "id", Value: "nope"}}

	h.Get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTermHandlerDelete(t *testing.T) {
	stub := &termServiceStub{}
	h := NewTermHandler(stub)
	c, _ := newGinContext(http.MethodDelete, "/terms/prelim", nil)
	c.Params = gin.Params{{Key: "id", Value: "prelim"}}

	h.Delete(c)

	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.Equal(t, "prelim", stub.deleted)
}
