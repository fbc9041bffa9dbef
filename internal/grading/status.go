package grading

import "strings"

// Status is a per student, per term override flag.
type Status string

const (
	StatusNormal  Status = "NORMAL"
	StatusInc     Status = "INC"
	StatusDropped Status = "DROPPED"
)

// ParseStatus normalises a raw status value. Empty input maps to NORMAL.
func ParseStatus(raw string) (Status, bool) {
	switch Status(strings.ToUpper(strings.TrimSpace(raw))) {
	case "", StatusNormal:
		return StatusNormal, true
	case StatusInc:
		return StatusInc, true
	case StatusDropped:
		return StatusDropped, true
	default:
		return "", false
	}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusNormal || s == StatusInc || s == StatusDropped
}

// EffectiveStatus resolves the status shown for termID. DROPPED in any term
// applies to every term of the student.
func EffectiveStatus(statuses map[string]Status, termID string) Status {
	for _, st := range statuses {
		if st == StatusDropped {
			return StatusDropped
		}
	}
	if st, ok := statuses[termID]; ok && st.Valid() {
		return st
	}
	return StatusNormal
}

// OverallStatus is DROPPED if any term is dropped, INC if any term is
// incomplete, NORMAL otherwise.
func OverallStatus(statuses map[string]Status) Status {
	result := StatusNormal
	for _, st := range statuses {
		switch st {
		case StatusDropped:
			return StatusDropped
		case StatusInc:
			result = StatusInc
		}
	}
	return result
}

// CanTransition reports whether a teacher may move a status from one value to
// another. Leaving DROPPED requires an administrative reset.
func CanTransition(from, to Status) bool {
	if !to.Valid() {
		return false
	}
	if from == "" {
		from = StatusNormal
	}
	if from == to {
		return true
	}
	switch from {
	case StatusNormal:
		return to == StatusInc || to == StatusDropped
	case StatusInc:
		return to == StatusNormal || to == StatusDropped
	default:
		return false
	}
}
