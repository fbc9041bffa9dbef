package models

import "time"

// GradeAnalytics summarises a class term's computed grades.
type GradeAnalytics struct {
	ClassID      string         `json:"class_id"`
	TermID       string         `json:"term_id"`
	Students     int            `json:"students"`
	Passed       int            `json:"passed"`
	Failed       int            `json:"failed"`
	Incomplete   int            `json:"incomplete"`
	Dropped      int            `json:"dropped"`
	AverageGrade *float64       `json:"average_grade,omitempty"`
	MedianGrade  *float64       `json:"median_grade,omitempty"`
	Bands        map[string]int `json:"bands"`
	Rank         []GradeRank    `json:"rank"`
	GeneratedAt  time.Time      `json:"generated_at"`
}

// GradeRank orders graded students; 1.00 is the best grade. Ties share a rank.
type GradeRank struct {
	StudentID   string  `json:"student_id"`
	StudentName string  `json:"student_name"`
	Grade       float64 `json:"grade"`
	Rank        int     `json:"rank"`
}
