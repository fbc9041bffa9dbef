package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStudentRepositoryFindByUserID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	query := regexp.QuoteMeta("SELECT id, student_number, full_name, user_id, active, created_at, updated_at FROM students WHERE user_id = $1 LIMIT 1")
	mock.ExpectQuery(query).
		WithArgs("user-7").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_number", "full_name", "user_id", "active", "created_at", "updated_at"}).
			AddRow("s7", "2024-007", "Dela Cruz, Ana", "user-7", true, time.Now(), time.Now()))

	student, err := repo.FindByUserID(context.Background(), "user-7")
	require.NoError(t, err)
	assert.Equal(t, "s7", student.ID)
	require.NotNil(t, student.UserID)
	assert.Equal(t, "user-7", *student.UserID)

	mock.ExpectQuery(query).WithArgs("ghost").WillReturnError(sql.ErrNoRows)
	_, err = repo.FindByUserID(context.Background(), "ghost")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
