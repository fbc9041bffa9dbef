package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-grading-api/internal/models"
	appErrors "github.com/noah-isme/sma-grading-api/pkg/errors"
)

type mockTermRepo struct {
	terms   map[string]*models.Term
	order   []string
	created int
}

func newMockTermRepo(terms ...models.Term) *mockTermRepo {
	repo := &mockTermRepo{terms: map[string]*models.Term{}}
	for i := range terms {
		t := terms[i]
		repo.terms[t.ID] = &t
		repo.order = append(repo.order, t.ID)
	}
	return repo
}

func (m *mockTermRepo) List(ctx context.Context, filter models.TermFilter) ([]models.Term, int, error) {
	out := make([]models.Term, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.terms[id])
	}
	return out, len(out), nil
}

func (m *mockTermRepo) ListActive(ctx context.Context) ([]models.Term, error) {
	out := make([]models.Term, 0, len(m.order))
	for _, id := range m.order {
		if t := m.terms[id]; t.IsActive {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *mockTermRepo) ListAll(ctx context.Context) ([]models.Term, error) {
	out := make([]models.Term, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.terms[id])
	}
	return out, nil
}

func (m *mockTermRepo) FindByID(ctx context.Context, id string) (*models.Term, error) {
	t, ok := m.terms[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copyTerm := *t
	return &copyTerm, nil
}

func (m *mockTermRepo) ExistsByCode(ctx context.Context, academicYear, code, excludeID string) (bool, error) {
	for id, t := range m.terms {
		if id != excludeID && t.AcademicYear == academicYear && t.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockTermRepo) Create(ctx context.Context, term *models.Term) error {
	m.created++
	term.ID = "term-new"
	copyTerm := *term
	m.terms[term.ID] = &copyTerm
	m.order = append(m.order, term.ID)
	return nil
}

func (m *mockTermRepo) Update(ctx context.Context, term *models.Term) error {
	if _, ok := m.terms[term.ID]; !ok {
		return sql.ErrNoRows
	}
	copyTerm := *term
	m.terms[term.ID] = &copyTerm
	return nil
}

func (m *mockTermRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.terms[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.terms, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func defaultTerms() []models.Term {
	return []models.Term{
		{ID: "prelim", Code: "PRELIM", Name: "Prelim", AcademicYear: "2025/2026", WeightPercent: 30, Position: 1, IsActive: true},
		{ID: "midterm", Code: "MIDTERM", Name: "Midterm", AcademicYear: "2025/2026", WeightPercent: 30, Position: 2, IsActive: true},
		{ID: "finals", Code: "FINALS", Name: "Finals", AcademicYear: "2025/2026", WeightPercent: 40, Position: 3, IsActive: true},
	}
}

func TestTermServiceCreateRejectsDuplicateCode(t *testing.T) {
	repo := newMockTermRepo(defaultTerms()...)
	svc := NewTermService(repo, nil, nil, nil)

	_, err := svc.Create(context.Background(), TermRequest{Code: "PRELIM", Name: "Prelim", AcademicYear: "2025/2026", WeightPercent: 30})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Zero(t, repo.created)
}

func TestTermServiceCreateValidatesWeight(t *testing.T) {
	svc := NewTermService(newMockTermRepo(), nil, nil, nil)

	_, err := svc.Create(context.Background(), TermRequest{Code: "X", Name: "X", AcademicYear: "2025/2026", WeightPercent: 120})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTermServiceCreateDefaultsActive(t *testing.T) {
	repo := newMockTermRepo()
	svc := NewTermService(repo, nil, nil, nil)

	term, err := svc.Create(context.Background(), TermRequest{Code: "PRELIM", Name: "Prelim", AcademicYear: "2025/2026", WeightPercent: 30})
	require.NoError(t, err)
	assert.True(t, term.IsActive)
	assert.Equal(t, "term-new", term.ID)
}

func TestTermServiceUpdateInvalidatesAllGrades(t *testing.T) {
	cacheRepo := newMockCacheRepo()
	cache := newTestCache(cacheRepo)
	require.NoError(t, cache.Set(context.Background(), sheetCacheKey("class-1", "prelim"), map[string]string{"a": "b"}, 0))

	svc := NewTermService(newMockTermRepo(defaultTerms()...), cache, nil, nil)
	term, err := svc.Update(context.Background(), "finals", TermRequest{Code: "FINALS", Name: "Finals", AcademicYear: "2025/2026", WeightPercent: 50, Position: 3})
	require.NoError(t, err)
	assert.Equal(t, 50.0, term.WeightPercent)
	assert.Contains(t, cacheRepo.invalidated, allGradingCachePattern)
	assert.False(t, cacheRepo.has(sheetCacheKey("class-1", "prelim")))
}

func TestTermServiceGetAndDeleteNotFound(t *testing.T) {
	svc := NewTermService(newMockTermRepo(), nil, nil, nil)

	_, err := svc.Get(context.Background(), "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	err = svc.Delete(context.Background(), "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTermServiceWeights(t *testing.T) {
	terms := defaultTerms()
	svc := NewTermService(newMockTermRepo(terms...), nil, nil, nil)

	summary, err := svc.Weights(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "terms", summary.Scope)
	assert.Len(t, summary.Items, 3)
	assert.True(t, summary.Check.Balanced)

	terms[2].WeightPercent = 30
	svc = NewTermService(newMockTermRepo(terms...), nil, nil, nil)
	summary, err = svc.Weights(context.Background())
	require.NoError(t, err)
	assert.False(t, summary.Check.Balanced)
	assert.InDelta(t, 10.0, summary.Check.Missing, 1e-9)
}

func TestTermServiceListPagination(t *testing.T) {
	svc := NewTermService(newMockTermRepo(defaultTerms()...), nil, nil, nil)

	terms, pagination, err := svc.List(context.Background(), models.TermFilter{PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, terms, 3)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 3, pagination.TotalCount)
}
