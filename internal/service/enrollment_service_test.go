package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-grading-api/internal/models"
	appErrors "github.com/noah-isme/sma-grading-api/pkg/errors"
)

type mockTeacherClasses struct {
	*mockClassRepo
}

func (m mockTeacherClasses) ListByTeacher(ctx context.Context, teacherID string) ([]models.Class, error) {
	out := []models.Class{}
	for _, c := range m.classes {
		if c.TeacherID != nil && *c.TeacherID == teacherID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func TestEnrollmentServiceList(t *testing.T) {
	withdrawn := enrollment("s3", "Citra")
	withdrawn.Status = models.EnrollmentStatusWithdrawn
	roster := &mockRoster{enrollments: []models.EnrollmentDetail{enrollment("s1", "Ana"), withdrawn}}
	svc := NewEnrollmentService(roster, mockTeacherClasses{classFixture()}, nil)
	ctx := context.Background()

	active, err := svc.List(ctx, teacherActor, "class-1", "")
	require.NoError(t, err)
	assert.Len(t, active, 1)

	all, err := svc.List(ctx, adminActor, "class-1", "ALL")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = svc.List(ctx, teacherActor, "class-1", "GONE")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.List(ctx, otherTeacher, "class-1", "")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceMyClasses(t *testing.T) {
	svc := NewEnrollmentService(&mockRoster{}, mockTeacherClasses{classFixture()}, nil)

	classes, err := svc.MyClasses(context.Background(), teacherActor)
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, "class-1", classes[0].ID)

	classes, err = svc.MyClasses(context.Background(), otherTeacher)
	require.NoError(t, err)
	assert.Empty(t, classes)
}
