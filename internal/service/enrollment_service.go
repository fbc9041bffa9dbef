package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-grading-api/internal/models"
	appErrors "github.com/noah-isme/sma-grading-api/pkg/errors"
)

type enrollmentReader interface {
	ListByClass(ctx context.Context, classID string, status models.EnrollmentStatus) ([]models.EnrollmentDetail, error)
}

type teacherClassReader interface {
	classReader
	ListByTeacher(ctx context.Context, teacherID string) ([]models.Class, error)
}

// EnrollmentService exposes class rosters and the classes a teacher handles.
type EnrollmentService struct {
	enrollments enrollmentReader
	classes     teacherClassReader
	logger      *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(enrollments enrollmentReader, classes teacherClassReader, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{enrollments: enrollments, classes: classes, logger: logger}
}

// List returns the roster of a class. An empty status defaults to ACTIVE.
func (s *EnrollmentService) List(ctx context.Context, actor *models.JWTClaims, classID string, status models.EnrollmentStatus) ([]models.EnrollmentDetail, error) {
	if _, err := loadClass(ctx, s.classes, classID, actor); err != nil {
		return nil, err
	}
	switch status {
	case "":
		status = models.EnrollmentStatusActive
	case "ALL":
		status = ""
	case models.EnrollmentStatusActive, models.EnrollmentStatusWithdrawn:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be ACTIVE, WITHDRAWN or ALL")
	}
	enrollments, err := s.enrollments.ListByClass(ctx, classID, status)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, nil
}

// MyClasses lists the classes assigned to the calling teacher.
func (s *EnrollmentService) MyClasses(ctx context.Context, actor *models.JWTClaims) ([]models.Class, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	classes, err := s.classes.ListByTeacher(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return classes, nil
}
