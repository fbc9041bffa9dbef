package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/noah-isme/sma-grading-api/internal/models"
	appErrors "github.com/noah-isme/sma-grading-api/pkg/errors"
)

type mockAudit struct {
	mu   sync.Mutex
	logs []*models.AuditLog
	err  error
}

func (m *mockAudit) Create(ctx context.Context, log *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, log)
	return m.err
}

func (m *mockAudit) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.logs))
	for i, l := range m.logs {
		out[i] = l.Action
	}
	return out
}

type mockClassRepo struct {
	classes map[string]*models.Class
}

func (m *mockClassRepo) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if c, ok := m.classes[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func strPtr(v string) *string {
	return &v
}

func classFixture() *mockClassRepo {
	return &mockClassRepo{classes: map[string]*models.Class{
		"class-1": {ID: "class-1", Name: "Math 10 - A", TeacherID: strPtr("teacher-1")},
	}}
}

var (
	teacherActor = &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher}
	otherTeacher = &models.JWTClaims{UserID: "teacher-2", Role: models.RoleTeacher}
	adminActor   = &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
	studentActor = &models.JWTClaims{UserID: "user-stu-1", Role: models.RoleStudent}
)

type mockCacheRepo struct {
	mu          sync.Mutex
	entries     map[string][]byte
	invalidated []string
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{entries: map[string][]byte{}}
}

func (m *mockCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mockCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = raw
	return nil
}

func (m *mockCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated = append(m.invalidated, pattern)
	for key := range m.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.entries, key)
		}
	}
	return nil
}

func (m *mockCacheRepo) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	return ok
}

func newTestCache(repo *mockCacheRepo) *CacheService {
	return NewCacheService(repo, nil, time.Minute, nil, true)
}

var errNoRowsWrapped = fmt.Errorf("get row: %w", sql.ErrNoRows)
