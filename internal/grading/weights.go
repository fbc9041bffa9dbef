package grading

import "math"

const weightTolerance = 0.001

// WeightCheck summarises configured weights. It is advisory only.
type WeightCheck struct {
	Total    float64 `json:"total"`
	Balanced bool    `json:"balanced"`
	Missing  float64 `json:"missing"`
}

// CheckWeights sums weights and reports whether they reach 100%.
func CheckWeights(weights ...float64) WeightCheck {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	return WeightCheck{
		Total:    total,
		Balanced: math.Abs(total-100) < weightTolerance,
		Missing:  100 - total,
	}
}

// CategoryWeights extracts category weights for CheckWeights.
func CategoryWeights(categories []CategoryDef) []float64 {
	weights := make([]float64, len(categories))
	for i, c := range categories {
		weights[i] = c.WeightPercent
	}
	return weights
}

// TermWeights extracts term weights for CheckWeights.
func TermWeights(terms []TermDef) []float64 {
	weights := make([]float64, len(terms))
	for i, t := range terms {
		weights[i] = t.WeightPercent
	}
	return weights
}
