package grading

import "math"

// TermDef is a grading period and its contribution to the overall grade.
type TermDef struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	WeightPercent float64 `json:"weight_percent"`
}

// TermGrade sums the weighted equivalents of a term's categories.
func TermGrade(results []CategoryResult) float64 {
	total := 0.0
	for _, r := range results {
		total += r.WeightedEquivalent
	}
	return total
}

// TermContribution is one term's input to the cross-term weighting. Grade is
// nil when the student has no recorded grade for the term yet.
type TermContribution struct {
	TermID        string   `json:"term_id"`
	WeightPercent float64  `json:"weight_percent"`
	Grade         *float64 `json:"grade,omitempty"`
}

// Overall is the cross-term result. Raw is the unrounded weighted sum, Grade
// the value snapped to the grade point lattice.
type Overall struct {
	Raw   float64 `json:"raw"`
	Grade float64 `json:"grade"`
}

// OverallGrade weights term grades by their configured percentages. Missing
// term grades count as WorstGrade. Without any weighted term the result is WorstGrade.
func OverallGrade(contributions []TermContribution) Overall {
	raw := 0.0
	totalWeight := 0.0
	for _, c := range contributions {
		grade := WorstGrade
		if c.Grade != nil && !math.IsNaN(*c.Grade) {
			grade = *c.Grade
		}
		raw += WeightedEquivalent(grade, c.WeightPercent)
		totalWeight += c.WeightPercent
	}
	if totalWeight <= 0 {
		return Overall{Raw: WorstGrade, Grade: WorstGrade}
	}
	return Overall{Raw: raw, Grade: SnapToLattice(raw)}
}
