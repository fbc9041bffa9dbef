package grading

// TermInput carries one term of a student's evaluation. When Live is true the
// term grade is computed from Categories and the student's scores; otherwise
// StoredGrade (possibly nil) is used as previously persisted.
type TermInput struct {
	Term        TermDef       `json:"term"`
	Categories  []CategoryDef `json:"categories,omitempty"`
	Live        bool          `json:"live"`
	StoredGrade *float64      `json:"stored_grade,omitempty"`
}

// StudentInput is everything the engine needs to grade one student.
type StudentInput struct {
	StudentID string            `json:"student_id"`
	Terms     []TermInput       `json:"terms"`
	Scores    ScoreLookup       `json:"-"`
	Statuses  map[string]Status `json:"statuses,omitempty"`
}

// TermResult is the evaluated state of one term.
type TermResult struct {
	TermID        string           `json:"term_id"`
	Name          string           `json:"name"`
	WeightPercent float64          `json:"weight_percent"`
	Categories    []CategoryResult `json:"categories,omitempty"`
	Grade         *float64         `json:"grade,omitempty"`
	Computed      bool             `json:"computed"`
	Status        Status           `json:"status"`
	Display       string           `json:"display"`
	Remarks       Remarks          `json:"remarks"`
}

// StudentResult is the full computed grade record of a student.
type StudentResult struct {
	StudentID string       `json:"student_id"`
	Terms     []TermResult `json:"terms"`
	Overall   Overall      `json:"overall"`
	Status    Status       `json:"status"`
	Display   string       `json:"display"`
	Remarks   Remarks      `json:"remarks"`
}

// Engine evaluates students against a grading scale.
type Engine struct {
	scale Scale
}

// NewEngine builds an engine. A nil or empty scale falls back to DefaultScale.
func NewEngine(scale Scale) *Engine {
	if len(scale) == 0 {
		scale = DefaultScale
	}
	return &Engine{scale: scale}
}

// Scale exposes the engine's band table.
func (e *Engine) Scale() Scale {
	return e.scale
}

// EvaluateTerm computes one term from its categories.
func (e *Engine) EvaluateTerm(term TermDef, categories []CategoryDef, scores ScoreLookup) TermResult {
	results := make([]CategoryResult, 0, len(categories))
	for _, category := range categories {
		results = append(results, e.scale.AggregateCategory(category, scores))
	}
	result := TermResult{
		TermID:        term.ID,
		Name:          term.Name,
		WeightPercent: term.WeightPercent,
		Categories:    results,
		Computed:      true,
	}
	if len(results) > 0 {
		grade := TermGrade(results)
		result.Grade = &grade
	}
	return result
}

// Evaluate runs the whole pipeline for a student: categories, term grades,
// cross-term weighting, status override and remarks.
func (e *Engine) Evaluate(input StudentInput) StudentResult {
	out := StudentResult{StudentID: input.StudentID, Terms: make([]TermResult, 0, len(input.Terms))}
	contributions := make([]TermContribution, 0, len(input.Terms))

	for _, ti := range input.Terms {
		var tr TermResult
		if ti.Live {
			tr = e.EvaluateTerm(ti.Term, ti.Categories, input.Scores)
		} else {
			tr = TermResult{TermID: ti.Term.ID, Name: ti.Term.Name, WeightPercent: ti.Term.WeightPercent, Grade: ti.StoredGrade}
		}
		tr.Status = EffectiveStatus(input.Statuses, ti.Term.ID)
		grade := WorstGrade
		if tr.Grade != nil {
			grade = *tr.Grade
		}
		tr.Remarks = Classify(grade, tr.Status)
		tr.Display = DisplayGrade(grade, tr.Status)
		out.Terms = append(out.Terms, tr)
		contributions = append(contributions, TermContribution{TermID: ti.Term.ID, WeightPercent: ti.Term.WeightPercent, Grade: tr.Grade})
	}

	out.Overall = OverallGrade(contributions)
	out.Status = OverallStatus(input.Statuses)
	out.Remarks = Classify(out.Overall.Grade, out.Status)
	out.Display = DisplayGrade(out.Overall.Grade, out.Status)
	return out
}
