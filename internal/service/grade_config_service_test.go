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

type mockComponentRepo struct {
	criteria *mockCriteriaRepo
	created  []models.GradeComponent
	updated  []models.GradeComponent
	deleted  []string
}

func (m *mockComponentRepo) FindScope(ctx context.Context, id string) (*models.ComponentScope, error) {
	for _, c := range m.criteria.criteria {
		for _, comp := range c.Components {
			if comp.ID == id {
				return &models.ComponentScope{GradeComponent: comp, ClassID: c.ClassID, TermID: c.TermID}, nil
			}
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockComponentRepo) Create(ctx context.Context, component *models.GradeComponent) error {
	component.ID = "component-new"
	m.created = append(m.created, *component)
	return nil
}

func (m *mockComponentRepo) Update(ctx context.Context, component *models.GradeComponent) error {
	m.updated = append(m.updated, *component)
	return nil
}

func (m *mockComponentRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type mockSubmissionLock struct {
	latest *models.GradeSubmission
}

func (m *mockSubmissionLock) FindLatest(ctx context.Context, classID, termID string) (*models.GradeSubmission, error) {
	if m.latest == nil {
		return nil, sql.ErrNoRows
	}
	return m.latest, nil
}

type recordingRecomputer struct {
	calls []string
}

func (r *recordingRecomputer) RecomputeClassTerm(ctx context.Context, classID, termID, trigger string) error {
	r.calls = append(r.calls, classID+"/"+termID+"/"+trigger)
	return nil
}

type criteriaFixture struct {
	svc        *CriteriaService
	criteria   *mockCriteriaRepo
	components *mockComponentRepo
	lock       *mockSubmissionLock
	recomputer *recordingRecomputer
}

func newCriteriaFixture() *criteriaFixture {
	criteria := newGradingFixture().criteria
	components := &mockComponentRepo{criteria: criteria}
	lock := &mockSubmissionLock{}
	recomputer := &recordingRecomputer{}
	svc := NewCriteriaService(CriteriaDeps{
		Criteria:    criteria,
		Components:  components,
		Classes:     classFixture(),
		Terms:       newMockTermRepo(defaultTerms()...),
		Submissions: lock,
		Recomputer:  recomputer,
	}, nil, nil)
	return &criteriaFixture{svc: svc, criteria: criteria, components: components, lock: lock, recomputer: recomputer}
}

func TestCriteriaServiceCreateAssignsComponentPositions(t *testing.T) {
	f := newCriteriaFixture()

	criterion, err := f.svc.Create(context.Background(), teacherActor, "class-1", "finals", CriterionRequest{
		Name: "Projects", WeightPercent: 100,
		Components: []ComponentRequest{{Name: "Project 1", MaxScore: 50}, {Name: "Project 2", MaxScore: 50}},
	})
	require.NoError(t, err)
	assert.Equal(t, "finals", criterion.TermID)
	require.Len(t, criterion.Components, 2)
	assert.Equal(t, 1, criterion.Components[0].Position)
	assert.Equal(t, 2, criterion.Components[1].Position)
	assert.Equal(t, []string{"class-1/finals/" + TriggerCriteria}, f.recomputer.calls)
}

func TestCriteriaServiceCreateValidation(t *testing.T) {
	f := newCriteriaFixture()
	ctx := context.Background()

	_, err := f.svc.Create(ctx, teacherActor, "class-1", "prelim", CriterionRequest{Name: "Bad", WeightPercent: 40, Components: []ComponentRequest{{Name: "Zero", MaxScore: 0}}})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Create(ctx, teacherActor, "class-1", "prelim", CriterionRequest{Name: "Quizzes", WeightPercent: 10})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Create(ctx, teacherActor, "class-1", "missing", CriterionRequest{Name: "Labs", WeightPercent: 10})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Create(ctx, otherTeacher, "class-1", "prelim", CriterionRequest{Name: "Labs", WeightPercent: 10})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.recomputer.calls)
}

func TestCriteriaServiceLockedBySubmission(t *testing.T) {
	f := newCriteriaFixture()
	f.lock.latest = &models.GradeSubmission{ID: "sub-1", Status: models.SubmissionStatusApproved}

	_, err := f.svc.Update(context.Background(), teacherActor, "quizzes", CriterionRequest{Name: "Quizzes", WeightPercent: 50})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrLocked.Code, appErrors.FromError(err).Code)

	f.lock.latest.Status = models.SubmissionStatusRejected
	updated, err := f.svc.Update(context.Background(), teacherActor, "quizzes", CriterionRequest{Name: "Quizzes", WeightPercent: 50})
	require.NoError(t, err)
	assert.Equal(t, 50.0, updated.WeightPercent)
}

func TestCriteriaServiceWeights(t *testing.T) {
	f := newCriteriaFixture()

	summary, err := f.svc.Weights(context.Background(), adminActor, "class-1", "prelim")
	require.NoError(t, err)
	assert.Equal(t, "criteria", summary.Scope)
	assert.Len(t, summary.Items, 2)
	assert.True(t, summary.Check.Balanced)

	require.NoError(t, f.svc.Delete(context.Background(), adminActor, "exam"))
	summary, err = f.svc.Weights(context.Background(), adminActor, "class-1", "prelim")
	require.NoError(t, err)
	assert.False(t, summary.Check.Balanced)
	assert.InDelta(t, 60.0, summary.Check.Missing, 1e-9)
}

func TestCriteriaServiceComponentLifecycle(t *testing.T) {
	f := newCriteriaFixture()
	ctx := context.Background()

	created, err := f.svc.AddComponent(ctx, teacherActor, "quizzes", ComponentRequest{Name: "Quiz 3", MaxScore: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, created.Position)

	updated, err := f.svc.UpdateComponent(ctx, teacherActor, "q1", ComponentRequest{Name: "Quiz 1", MaxScore: 25})
	require.NoError(t, err)
	assert.Equal(t, 25.0, updated.MaxScore)
	assert.Equal(t, 0, updated.Position)

	require.NoError(t, f.svc.DeleteComponent(ctx, teacherActor, "q2"))
	assert.Equal(t, []string{"q2"}, f.components.deleted)

	err = f.svc.DeleteComponent(ctx, teacherActor, "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Len(t, f.recomputer.calls, 3)
}
