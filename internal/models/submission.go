package models

import "time"

// SubmissionStatus tracks the approval workflow of a class term's grades.
type SubmissionStatus string

const (
	SubmissionStatusPending  SubmissionStatus = "PENDING"
	SubmissionStatusApproved SubmissionStatus = "APPROVED"
	SubmissionStatusRejected SubmissionStatus = "REJECTED"
)

// GradeSubmission is a teacher's request to have a class term's grades approved.
type GradeSubmission struct {
	ID          string           `db:"id" json:"id"`
	ClassID     string           `db:"class_id" json:"class_id"`
	TermID      string           `db:"term_id" json:"term_id"`
	Status      SubmissionStatus `db:"status" json:"status"`
	SubmittedBy string           `db:"submitted_by" json:"submitted_by"`
	SubmittedAt time.Time        `db:"submitted_at" json:"submitted_at"`
	ReviewedBy  *string          `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time       `db:"reviewed_at" json:"reviewed_at,omitempty"`
	Remarks     *string          `db:"remarks" json:"remarks,omitempty"`
}

// Locked reports whether score entry is closed for the submission's scope.
func (s *GradeSubmission) Locked() bool {
	return s != nil && (s.Status == SubmissionStatusPending || s.Status == SubmissionStatusApproved)
}

// SubmissionFilter scopes submission listing.
type SubmissionFilter struct {
	ClassID string
	TermID  string
	Status  SubmissionStatus
}
