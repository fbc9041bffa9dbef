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

const criterionColumns = "id, class_id, term_id, name, weight_percent, position, created_at, updated_at"

// CriteriaRepository manages grading criteria (weighted categories) of a class term.
type CriteriaRepository struct {
	db *sqlx.DB
}

// NewCriteriaRepository creates a new repository instance.
func NewCriteriaRepository(db *sqlx.DB) *CriteriaRepository {
	return &CriteriaRepository{db: db}
}

// ListByScope returns the criteria of a class term with their components, ordered for display.
func (r *CriteriaRepository) ListByScope(ctx context.Context, classID, termID string) ([]models.GradingCriterion, error) {
	query := "SELECT " + criterionColumns + " FROM grading_criteria WHERE class_id = $1 AND term_id = $2 ORDER BY position ASC, name ASC"
	var criteria []models.GradingCriterion
	if err := r.db.SelectContext(ctx, &criteria, query, classID, termID); err != nil {
		return nil, fmt.Errorf("list grading criteria: %w", err)
	}
	if len(criteria) == 0 {
		return criteria, nil
	}
	ids := make([]string, len(criteria))
	for i := range criteria {
		ids[i] = criteria[i].ID
	}
	components, err := r.loadComponents(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range criteria {
		criteria[i].Components = components[criteria[i].ID]
		if criteria[i].Components == nil {
			criteria[i].Components = []models.GradeComponent{}
		}
	}
	return criteria, nil
}

// ListByClass returns every criterion of a class across terms.
func (r *CriteriaRepository) ListByClass(ctx context.Context, classID string) ([]models.GradingCriterion, error) {
	query := "SELECT " + criterionColumns + " FROM grading_criteria WHERE class_id = $1 ORDER BY term_id, position ASC, name ASC"
	var criteria []models.GradingCriterion
	if err := r.db.SelectContext(ctx, &criteria, query, classID); err != nil {
		return nil, fmt.Errorf("list class criteria: %w", err)
	}
	if len(criteria) == 0 {
		return criteria, nil
	}
	ids := make([]string, len(criteria))
	for i := range criteria {
		ids[i] = criteria[i].ID
	}
	components, err := r.loadComponents(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range criteria {
		criteria[i].Components = components[criteria[i].ID]
	}
	return criteria, nil
}

// FindByID returns a criterion with its components.
func (r *CriteriaRepository) FindByID(ctx context.Context, id string) (*models.GradingCriterion, error) {
	query := "SELECT " + criterionColumns + " FROM grading_criteria WHERE id = $1"
	var criterion models.GradingCriterion
	if err := r.db.GetContext(ctx, &criterion, query, id); err != nil {
		return nil, err
	}
	components, err := r.loadComponents(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	criterion.Components = components[id]
	return &criterion, nil
}

// ExistsByName checks for a duplicate criterion name inside a class term.
func (r *CriteriaRepository) ExistsByName(ctx context.Context, classID, termID, name, excludeID string) (bool, error) {
	query := "SELECT 1 FROM grading_criteria WHERE class_id = $1 AND term_id = $2 AND LOWER(name) = LOWER($3)"
	args := []interface{}{classID, termID, name}
	if excludeID != "" {
		query += " AND id <> $4"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check grading criterion: %w", err)
	}
	return true, nil
}

// Create inserts a criterion together with its initial components.
func (r *CriteriaRepository) Create(ctx context.Context, criterion *models.GradingCriterion) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if criterion.ID == "" {
		criterion.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if criterion.CreatedAt.IsZero() {
		criterion.CreatedAt = now
	}
	criterion.UpdatedAt = now
	const insertCriterion = `INSERT INTO grading_criteria (id, class_id, term_id, name, weight_percent, position, created_at, updated_at)
        VALUES (:id, :class_id, :term_id, :name, :weight_percent, :position, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertCriterion, criterion); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("insert grading criterion: %w", err)
	}
	for i := range criterion.Components {
		criterion.Components[i].CriterionID = criterion.ID
		if err := insertComponent(ctx, tx, &criterion.Components[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit grading criterion: %w", err)
	}
	return nil
}

// Update changes criterion metadata. Components are managed individually.
func (r *CriteriaRepository) Update(ctx context.Context, criterion *models.GradingCriterion) error {
	criterion.UpdatedAt = time.Now().UTC()
	const query = `UPDATE grading_criteria SET name = :name, weight_percent = :weight_percent, position = :position, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, criterion)
	if err != nil {
		return fmt.Errorf("update grading criterion: %w", err)
	}
	return requireAffected(res)
}

// Delete removes a criterion; components and scores cascade.
func (r *CriteriaRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM grading_criteria WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete grading criterion: %w", err)
	}
	return requireAffected(res)
}

func (r *CriteriaRepository) loadComponents(ctx context.Context, criterionIDs []string) (map[string][]models.GradeComponent, error) {
	query, args, err := sqlx.In("SELECT "+componentColumns+" FROM grade_components WHERE criterion_id IN (?) ORDER BY position ASC, name ASC", criterionIDs)
	if err != nil {
		return nil, fmt.Errorf("build components query: %w", err)
	}
	var components []models.GradeComponent
	if err := r.db.SelectContext(ctx, &components, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("load grade components: %w", err)
	}
	result := make(map[string][]models.GradeComponent, len(criterionIDs))
	for _, c := range components {
		result[c.CriterionID] = append(result[c.CriterionID], c)
	}
	return result, nil
}
