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

	"github.com/noah-isme/sma-grading-api/internal/grading"
)

func TestTermStatusRepositoryPropagateDropped(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTermStatusRepository(db)

	mock.ExpectBegin()
	for i := 0; i < 3; i++ {
		mock.ExpectExec("INSERT INTO student_term_statuses").WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	err := repo.PropagateDropped(context.Background(), "stu-1", "class-1", []string{"t1", "t2", "t3"}, "teacher-1", nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTermStatusRepositoryPropagateDroppedIsAllOrNothing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTermStatusRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO student_term_statuses").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO student_term_statuses").WillReturnError(errors.New("deadlock"))
	mock.ExpectRollback()

	err := repo.PropagateDropped(context.Background(), "stu-1", "class-1", []string{"t1", "t2", "t3"}, "teacher-1", nil)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTermStatusRepositoryReset(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTermStatusRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_term_statuses SET status = $1, note = NULL")).
		WithArgs(grading.StatusNormal, "admin-1", sqlmock.AnyArg(), "stu-1", "class-1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	affected, err := repo.Reset(context.Background(), "stu-1", "class-1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTermStatusRepositoryListByStudent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTermStatusRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM student_term_statuses WHERE class_id = $1 AND student_id = $2")).
		WithArgs("class-1", "stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "class_id", "term_id", "status", "note", "updated_by", "updated_at"}).
			AddRow("st-1", "stu-1", "class-1", "t2", "INC", nil, "teacher-1", time.Now()))

	statuses, err := repo.ListByStudent(context.Background(), "class-1", "stu-1")
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, grading.StatusInc, statuses[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
