package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-grading-api/internal/models"
)

// EnrollmentRepository reads class rosters.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// ListByClass returns the students enrolled in a class ordered by name. An
// empty status lists every enrollment.
func (r *EnrollmentRepository) ListByClass(ctx context.Context, classID string, status models.EnrollmentStatus) ([]models.EnrollmentDetail, error) {
	query := `SELECT e.id, e.student_id, e.class_id, e.status, e.enrolled_at, s.full_name AS student_name, s.student_number
FROM enrollments e
JOIN students s ON s.id = e.student_id
WHERE e.class_id = $1`
	args := []interface{}{classID}
	if status != "" {
		query += " AND e.status = $2"
		args = append(args, status)
	}
	query += " ORDER BY " + strings.Join([]string{"s.full_name ASC", "s.student_number ASC"}, ", ")
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, fmt.Errorf("list class enrollments: %w", err)
	}
	return enrollments, nil
}

// FindByStudent returns the enrollment of a student in a class.
func (r *EnrollmentRepository) FindByStudent(ctx context.Context, classID, studentID string) (*models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.class_id, e.status, e.enrolled_at, s.full_name AS student_name, s.student_number
FROM enrollments e
JOIN students s ON s.id = e.student_id
WHERE e.class_id = $1 AND e.student_id = $2`
	var enrollment models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &enrollment, query, classID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	return &enrollment, nil
}

// EnrolledStudents reports which of the given students are actively enrolled in the class.
func (r *EnrollmentRepository) EnrolledStudents(ctx context.Context, classID string, studentIDs []string) (map[string]bool, error) {
	result := make(map[string]bool, len(studentIDs))
	if len(studentIDs) == 0 {
		return result, nil
	}
	query, args, err := sqlx.In("SELECT student_id FROM enrollments WHERE class_id = ? AND status = ? AND student_id IN (?)",
		classID, models.EnrollmentStatusActive, studentIDs)
	if err != nil {
		return nil, fmt.Errorf("build enrollment query: %w", err)
	}
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("check enrollments: %w", err)
	}
	for _, id := range ids {
		result[id] = true
	}
	return result, nil
}
