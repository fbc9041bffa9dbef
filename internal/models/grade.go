package models

import (
	"time"

	"github.com/noah-isme/sma-grading-api/internal/grading"
)

// GradingCriterion is a weighted category (Quizzes, Exams) of a class term.
type GradingCriterion struct {
	ID            string           `db:"id" json:"id"`
	ClassID       string           `db:"class_id" json:"class_id"`
	TermID        string           `db:"term_id" json:"term_id"`
	Name          string           `db:"name" json:"name"`
	WeightPercent float64          `db:"weight_percent" json:"weight_percent"`
	Position      int              `db:"position" json:"position"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updated_at"`
	Components    []GradeComponent `json:"components"`
}

// GradeComponent is a single gradable item of a criterion.
type GradeComponent struct {
	ID          string    `db:"id" json:"id"`
	CriterionID string    `db:"criterion_id" json:"criterion_id"`
	Name        string    `db:"name" json:"name"`
	MaxScore    float64   `db:"max_score" json:"max_score"`
	Position    int       `db:"position" json:"position"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ComponentScope is a component joined with the class and term it belongs to.
type ComponentScope struct {
	GradeComponent
	ClassID string `db:"class_id" json:"class_id"`
	TermID  string `db:"term_id" json:"term_id"`
}

// Score is a student's raw score on a component.
type Score struct {
	ID          string    `db:"id" json:"id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	ComponentID string    `db:"component_id" json:"component_id"`
	Value       float64   `db:"value" json:"value"`
	RecordedBy  string    `db:"recorded_by" json:"recorded_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ScoreFilter scopes score queries.
type ScoreFilter struct {
	ClassID     string
	TermID      string
	StudentID   string
	ComponentID string
}

// ScoreKey identifies one student's score on a component.
type ScoreKey struct {
	StudentID   string
	ComponentID string
}

// ScoreChanges is a set of score writes stored together with the term grades
// they produce.
type ScoreChanges struct {
	Upserts []Score
	Deletes []ScoreKey
}

// StudentTermStatus is the NORMAL/INC/DROPPED flag of a student for one term of a class.
type StudentTermStatus struct {
	ID        string         `db:"id" json:"id"`
	StudentID string         `db:"student_id" json:"student_id"`
	ClassID   string         `db:"class_id" json:"class_id"`
	TermID    string         `db:"term_id" json:"term_id"`
	Status    grading.Status `db:"status" json:"status"`
	Note      *string        `db:"note" json:"note,omitempty"`
	UpdatedBy string         `db:"updated_by" json:"updated_by"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// TermGrade is the materialised term grade of a student. It is a cache of the
// computation and is overwritten on every score save.
type TermGrade struct {
	ID              string    `db:"id" json:"id"`
	StudentID       string    `db:"student_id" json:"student_id"`
	ClassID         string    `db:"class_id" json:"class_id"`
	TermID          string    `db:"term_id" json:"term_id"`
	Grade           float64   `db:"grade" json:"grade"`
	CalculatedAt    time.Time `db:"calculated_at" json:"calculated_at"`
	CalculationNote string    `db:"calculation_note" json:"calculation_note"`
}

// StudentGradeRow is one student's line of a grade sheet.
type StudentGradeRow struct {
	StudentID     string                `json:"student_id"`
	StudentName   string                `json:"student_name"`
	StudentNumber string                `json:"student_number"`
	Result        grading.StudentResult `json:"result"`
}

// GradeSheet is the computed grading view of a class for the term being edited.
type GradeSheet struct {
	ClassID         string              `json:"class_id"`
	TermID          string              `json:"term_id"`
	Terms           []Term              `json:"terms"`
	Criteria        []GradingCriterion  `json:"criteria"`
	Students        []StudentGradeRow   `json:"students"`
	CriteriaWeights grading.WeightCheck `json:"criteria_weights"`
	TermWeights     grading.WeightCheck `json:"term_weights"`
	GeneratedAt     time.Time           `json:"generated_at"`
}

// WeightSummary reports advisory weight totals.
type WeightSummary struct {
	Scope string              `json:"scope"`
	Check grading.WeightCheck `json:"check"`
	Items []WeightItem        `json:"items"`
}

// WeightItem is a named weight contributing to a WeightSummary.
type WeightItem struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	WeightPercent float64 `json:"weight_percent"`
}
