package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-grading-api/internal/models"
)

func TestEnrollmentRepositoryListByClass(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "class_id", "status", "enrolled_at", "student_name", "student_number"}).
		AddRow("enr-1", "stu-1", "class-1", models.EnrollmentStatusActive, time.Now(), "Ana Cruz", "2024-001")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.class_id = $1 AND e.status = $2 ORDER BY s.full_name ASC, s.student_number ASC")).
		WithArgs("class-1", models.EnrollmentStatusActive).
		WillReturnRows(rows)

	enrollments, err := repo.ListByClass(context.Background(), "class-1", models.EnrollmentStatusActive)
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	assert.Equal(t, "Ana Cruz", enrollments[0].StudentName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryEnrolledStudents(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery("SELECT student_id FROM enrollments WHERE class_id = \\? AND status = \\? AND student_id IN").
		WithArgs("class-1", models.EnrollmentStatusActive, "stu-1", "stu-2").
		WillReturnRows(sqlmock.NewRows([]string{"student_id"}).AddRow("stu-1"))

	enrolled, err := repo.EnrolledStudents(context.Background(), "class-1", []string{"stu-1", "stu-2"})
	require.NoError(t, err)
	assert.True(t, enrolled["stu-1"])
	assert.False(t, enrolled["stu-2"])
	require.NoError(t, mock.ExpectationsWereMet())
}
