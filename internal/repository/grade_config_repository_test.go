package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-grading-api/internal/models"
)

func TestCriteriaRepositoryListByScopeAttachesComponents(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCriteriaRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM grading_criteria WHERE class_id = $1 AND term_id = $2")).
		WithArgs("class-1", "term-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "class_id", "term_id", "name", "weight_percent", "position", "created_at", "updated_at"}).
			AddRow("cr-1", "class-1", "term-1", "Quizzes", 40.0, 1, now, now).
			AddRow("cr-2", "class-1", "term-1", "Exams", 60.0, 2, now, now))
	mock.ExpectQuery("FROM grade_components WHERE criterion_id IN").
		WithArgs("cr-1", "cr-2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "criterion_id", "name", "max_score", "position", "created_at", "updated_at"}).
			AddRow("c-1", "cr-1", "Quiz 1", 10.0, 1, now, now).
			AddRow("c-2", "cr-1", "Quiz 2", 10.0, 2, now, now))

	criteria, err := repo.ListByScope(context.Background(), "class-1", "term-1")
	require.NoError(t, err)
	require.Len(t, criteria, 2)
	assert.Len(t, criteria[0].Components, 2)
	assert.NotNil(t, criteria[1].Components)
	assert.Empty(t, criteria[1].Components)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCriteriaRepositoryCreateRollsBackOnComponentFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCriteriaRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO grading_criteria").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO grade_components").WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.GradingCriterion{
		ClassID: "class-1", TermID: "term-1", Name: "Quizzes", WeightPercent: 40,
		Components: []models.GradeComponent{{Name: "Quiz 1", MaxScore: 10}},
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeComponentRepositoryFindScope(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGradeComponentRepository(db)

	now := time.Now()
	mock.ExpectQuery("JOIN grading_criteria cr ON cr.id = gc.criterion_id").
		WithArgs("c-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "criterion_id", "name", "max_score", "position", "created_at", "updated_at", "class_id", "term_id"}).
			AddRow("c-1", "cr-1", "Quiz 1", 20.0, 1, now, now, "class-1", "term-1"))

	scope, err := repo.FindScope(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Equal(t, "class-1", scope.ClassID)
	assert.Equal(t, 20.0, scope.MaxScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}
