package grading

import "fmt"

// Result is the pass/fail verdict for a grade.
type Result string

const (
	ResultPassed Result = "PASSED"
	ResultFailed Result = "FAILED"
)

// Descriptive band labels.
const (
	LabelExcellent    = "Excellent"
	LabelVeryGood     = "Very Good"
	LabelGood         = "Good"
	LabelSatisfactory = "Satisfactory"
	LabelPassing      = "Passing"
	LabelFailed       = "Failed"
)

// Remarks describes a classified grade. Display replaces Result when the
// student's status overrides the numeric grade.
type Remarks struct {
	Result  Result `json:"result"`
	Label   string `json:"label"`
	Display string `json:"display"`
}

// Passed reports whether grade lies within [BestGrade, PassingGrade].
func Passed(grade float64) bool {
	return grade >= BestGrade && grade <= PassingGrade
}

// BandLabel returns the informational label of a grade.
func BandLabel(grade float64) string {
	switch {
	case grade < BestGrade:
		return LabelFailed
	case grade < 1.5:
		return LabelExcellent
	case grade < 2.0:
		return LabelVeryGood
	case grade < 2.5:
		return LabelGood
	case grade < 3.0:
		return LabelSatisfactory
	case grade < WorstGrade:
		return LabelPassing
	default:
		return LabelFailed
	}
}

// Classify maps a grade and status to remarks.
func Classify(grade float64, status Status) Remarks {
	result := ResultFailed
	if Passed(grade) {
		result = ResultPassed
	}
	remarks := Remarks{Result: result, Label: BandLabel(grade), Display: string(result)}
	if status == StatusInc || status == StatusDropped {
		remarks.Display = string(status)
	}
	return remarks
}

// DisplayGrade formats a grade cell, substituting the status label when the
// status is not NORMAL.
func DisplayGrade(grade float64, status Status) string {
	if status == StatusInc || status == StatusDropped {
		return string(status)
	}
	return fmt.Sprintf("%.2f", grade)
}
