// Package grading converts raw component scores into grade points on the
// 1.00 (best) to 5.00 (worst) scale, weights them across grading criteria and
// terms, and classifies the result into remarks. Everything in this package is
// a pure function of its inputs.
package grading

import "math"

// Grade point constants of the scale.
const (
	BestGrade    = 1.0
	WorstGrade   = 5.0
	PassingGrade = 3.0
	GradeStep    = 0.25
)

// Band maps every percentage at or above MinPercent to GradePoint.
type Band struct {
	MinPercent float64
	GradePoint float64
}

// Scale is an ordered band table, highest MinPercent first.
type Scale []Band

// DefaultScale is the percentage to grade point table used by the school.
var DefaultScale = Scale{
	{MinPercent: 97, GradePoint: 1.00},
	{MinPercent: 93, GradePoint: 1.25},
	{MinPercent: 89, GradePoint: 1.50},
	{MinPercent: 85, GradePoint: 1.75},
	{MinPercent: 81, GradePoint: 2.00},
	{MinPercent: 77, GradePoint: 2.25},
	{MinPercent: 73, GradePoint: 2.50},
	{MinPercent: 69, GradePoint: 2.75},
	{MinPercent: 65, GradePoint: 3.00},
}

// bandEpsilon absorbs float noise at band boundaries, e.g. 13/20*100.
const bandEpsilon = 1e-9

// GradePoint returns the grade point for an unrounded percentage. Percentages
// below the lowest band map to WorstGrade.
func (s Scale) GradePoint(percentage float64) float64 {
	for _, band := range s {
		if percentage+bandEpsilon >= band.MinPercent {
			return band.GradePoint
		}
	}
	return WorstGrade
}

// Ratio returns total/max*100 without rounding. Band lookups use this value.
func Ratio(total, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return total / max * 100
}

// Percentage returns Ratio rounded to four decimals for display.
func Percentage(total, max float64) float64 {
	return roundTo(Ratio(total, max), 4)
}

// SnapToLattice rounds a grade to the nearest GradeStep within [BestGrade, WorstGrade].
func SnapToLattice(grade float64) float64 {
	snapped := math.Round(grade/GradeStep) * GradeStep
	if snapped < BestGrade {
		return BestGrade
	}
	if snapped > WorstGrade {
		return WorstGrade
	}
	return snapped
}

// Round2 rounds half to even at two decimals, the precision grades are stored with.
func Round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}

func roundTo(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
