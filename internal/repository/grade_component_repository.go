package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-grading-api/internal/models"
)

const componentColumns = "id, criterion_id, name, max_score, position, created_at, updated_at"

// GradeComponentRepository persists gradable items of a criterion.
type GradeComponentRepository struct {
	db *sqlx.DB
}

// NewGradeComponentRepository constructs the repository.
func NewGradeComponentRepository(db *sqlx.DB) *GradeComponentRepository {
	return &GradeComponentRepository{db: db}
}

// FindScope loads a component with the class and term of its criterion.
func (r *GradeComponentRepository) FindScope(ctx context.Context, id string) (*models.ComponentScope, error) {
	const query = `SELECT gc.id, gc.criterion_id, gc.name, gc.max_score, gc.position, gc.created_at, gc.updated_at, cr.class_id, cr.term_id
        FROM grade_components gc
        JOIN grading_criteria cr ON cr.id = gc.criterion_id
        WHERE gc.id = $1`
	var scope models.ComponentScope
	if err := r.db.GetContext(ctx, &scope, query, id); err != nil {
		return nil, err
	}
	return &scope, nil
}

// FindScopes loads several components keyed by ID.
func (r *GradeComponentRepository) FindScopes(ctx context.Context, ids []string) (map[string]models.ComponentScope, error) {
	result := make(map[string]models.ComponentScope, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	query, args, err := sqlx.In(`SELECT gc.id, gc.criterion_id, gc.name, gc.max_score, gc.position, gc.created_at, gc.updated_at, cr.class_id, cr.term_id
        FROM grade_components gc
        JOIN grading_criteria cr ON cr.id = gc.criterion_id
        WHERE gc.id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build component scope query: %w", err)
	}
	var scopes []models.ComponentScope
	if err := r.db.SelectContext(ctx, &scopes, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("load component scopes: %w", err)
	}
	for _, s := range scopes {
		result[s.ID] = s
	}
	return result, nil
}

// Create inserts a component.
func (r *GradeComponentRepository) Create(ctx context.Context, component *models.GradeComponent) error {
	return insertComponent(ctx, r.db, component)
}

// Update modifies a component's name, maximum or position.
func (r *GradeComponentRepository) Update(ctx context.Context, component *models.GradeComponent) error {
	component.UpdatedAt = time.Now().UTC()
	const query = `UPDATE grade_components SET name = :name, max_score = :max_score, position = :position, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, component)
	if err != nil {
		return fmt.Errorf("update grade component: %w", err)
	}
	return requireAffected(res)
}

// Delete removes a component and, by cascade, its scores.
func (r *GradeComponentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM grade_components WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete grade component: %w", err)
	}
	return requireAffected(res)
}

type namedExecer interface {
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

func insertComponent(ctx context.Context, exec namedExecer, component *models.GradeComponent) error {
	if component.ID == "" {
		component.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if component.CreatedAt.IsZero() {
		component.CreatedAt = now
	}
	component.UpdatedAt = now
	const query = `INSERT INTO grade_components (id, criterion_id, name, max_score, position, created_at, updated_at)
        VALUES (:id, :criterion_id, :name, :max_score, :position, :created_at, :updated_at)`
	if _, err := exec.NamedExecContext(ctx, query, component); err != nil {
		return fmt.Errorf("insert grade component: %w", err)
	}
	return nil
}
