package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-grading-api/internal/models"
	appErrors "github.com/noah-isme/sma-grading-api/pkg/errors"
)

type classReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type auditWriter interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// AuditMeta carries request details stored alongside audit rows.
type AuditMeta struct {
	IP        string
	UserAgent string
}

// loadClass resolves a class and verifies the actor may edit its grades.
// Administrators manage every class; teachers only the classes they handle.
func loadClass(ctx context.Context, classes classReader, classID string, actor *models.JWTClaims) (*models.Class, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	class, err := classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if actor.Role.IsAdmin() {
		return class, nil
	}
	if actor.Role == models.RoleTeacher && class.TeacherID != nil && *class.TeacherID == actor.UserID {
		return class, nil
	}
	return nil, appErrors.Clone(appErrors.ErrForbidden, "class is not assigned to you")
}

func recordAudit(ctx context.Context, repo auditWriter, logger *zap.Logger, actor *models.JWTClaims, meta AuditMeta, action, resource, resourceID string, oldValues, newValues interface{}) {
	if repo == nil {
		return
	}
	entry := &models.AuditLog{
		Action:    action,
		Resource:  resource,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	}
	if actor != nil {
		userID := actor.UserID
		entry.UserID = &userID
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if oldValues != nil {
		entry.OldValues, _ = json.Marshal(oldValues)
	}
	if newValues != nil {
		entry.NewValues, _ = json.Marshal(newValues)
	}
	if err := repo.Create(ctx, entry); err != nil {
		logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

type submissionLockReader interface {
	FindLatest(ctx context.Context, classID, termID string) (*models.GradeSubmission, error)
}

// ensureUnlocked rejects edits while the latest submission of a class term is
// pending review or approved.
func ensureUnlocked(ctx context.Context, submissions submissionLockReader, classID, termID string) error {
	if submissions == nil {
		return nil
	}
	latest, err := submissions.FindLatest(ctx, classID, termID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade submission")
	}
	if latest.Locked() {
		return appErrors.Clone(appErrors.ErrLocked, "grades are locked by a "+strings.ToLower(string(latest.Status))+" submission")
	}
	return nil
}
