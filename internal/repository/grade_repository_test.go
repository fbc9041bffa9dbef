package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-grading-api/internal/models"
)

func TestScoreRepositoryListFiltersByScope(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewScoreRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("AND cr.class_id = $1 AND cr.term_id = $2 AND s.student_id = $3 ORDER BY s.student_id, s.component_id")).
		WithArgs("class-1", "term-1", "stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "component_id", "value", "recorded_by", "created_at", "updated_at"}).
			AddRow("s-1", "stu-1", "c-1", 15.0, "teacher-1", now, now))

	scores, err := repo.List(context.Background(), models.ScoreFilter{ClassID: "class-1", TermID: "term-1", StudentID: "stu-1"})
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, 15.0, scores[0].Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScoreRepositorySaveCommitsScoresWithTermGrades(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewScoreRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO scores .* ON CONFLICT \\(student_id, component_id\\)").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM scores WHERE student_id = $1 AND component_id = $2")).
		WithArgs("stu-1", "c-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO term_grades .* ON CONFLICT \\(student_id, class_id, term_id\\)").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	changes := models.ScoreChanges{
		Upserts: []models.Score{{StudentID: "stu-1", ComponentID: "c-1", Value: 8}},
		Deletes: []models.ScoreKey{{StudentID: "stu-1", ComponentID: "c-2"}},
	}
	grades := []models.TermGrade{{StudentID: "stu-1", ClassID: "class-1", TermID: "term-1", Grade: 2.5}}
	require.NoError(t, repo.Save(context.Background(), changes, grades))
	assert.NotEmpty(t, changes.Upserts[0].ID)
	assert.False(t, changes.Upserts[0].UpdatedAt.IsZero())
	assert.NotEmpty(t, grades[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScoreRepositorySaveRollsBackScoreWhenTermGradeFails(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewScoreRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO scores").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO term_grades").WillReturnError(errors.New("term_grades unavailable"))
	mock.ExpectRollback()

	err := repo.Save(context.Background(),
		models.ScoreChanges{Upserts: []models.Score{{StudentID: "stu-2", ComponentID: "c-1", Value: 100}}},
		[]models.TermGrade{{StudentID: "stu-2", ClassID: "class-1", TermID: "term-1", Grade: 2.6}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert term grade")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScoreRepositorySaveRollsBackMissingDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewScoreRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM scores").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Save(context.Background(), models.ScoreChanges{Deletes: []models.ScoreKey{{StudentID: "stu-1", ComponentID: "c-9"}}},
		[]models.TermGrade{{StudentID: "stu-1", ClassID: "class-1", TermID: "term-1", Grade: 5}})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTermGradeRepositoryUpsertBatchCommits(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTermGradeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO term_grades .* ON CONFLICT \\(student_id, class_id, term_id\\)").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO term_grades").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	grades := []models.TermGrade{
		{StudentID: "stu-1", ClassID: "class-1", TermID: "term-1", Grade: 1.9},
		{StudentID: "stu-2", ClassID: "class-1", TermID: "term-1", Grade: 5},
	}
	require.NoError(t, repo.UpsertBatch(context.Background(), grades))
	assert.NotEmpty(t, grades[0].ID)
	assert.False(t, grades[1].CalculatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTermGradeRepositoryUpsertBatchEmpty(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	require.NoError(t, NewTermGradeRepository(db).UpsertBatch(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}
