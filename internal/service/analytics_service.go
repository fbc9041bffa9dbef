package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-grading-api/internal/grading"
	"github.com/noah-isme/sma-grading-api/internal/models"
)

type sheetReader interface {
	Sheet(ctx context.Context, actor *models.JWTClaims, classID, termID string) (*models.GradeSheet, bool, error)
}

// AnalyticsService derives class statistics from computed grade sheets.
type AnalyticsService struct {
	sheets  sheetReader
	metrics *MetricsService
	logger  *zap.Logger
}

// NewAnalyticsService constructs the service.
func NewAnalyticsService(sheets sheetReader, metrics *MetricsService, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{sheets: sheets, metrics: metrics, logger: logger}
}

// ClassTerm summarises the term grades of a class. INC and DROPPED students
// are counted but left out of the average, median and rank.
func (s *AnalyticsService) ClassTerm(ctx context.Context, actor *models.JWTClaims, classID, termID string) (*models.GradeAnalytics, bool, error) {
	start := time.Now()
	sheet, cached, err := s.sheets.Sheet(ctx, actor, classID, termID)
	if err != nil {
		return nil, false, err
	}
	summary := SummariseSheet(sheet)
	s.metrics.ObserveComputation("analytics", time.Since(start))
	return summary, cached, nil
}

// SummariseSheet computes statistics for the sheet's edited term.
func SummariseSheet(sheet *models.GradeSheet) *models.GradeAnalytics {
	out := &models.GradeAnalytics{
		ClassID:     sheet.ClassID,
		TermID:      sheet.TermID,
		Students:    len(sheet.Students),
		Bands:       make(map[string]int),
		Rank:        []models.GradeRank{},
		GeneratedAt: time.Now().UTC(),
	}

	graded := make([]models.GradeRank, 0, len(sheet.Students))
	for _, row := range sheet.Students {
		term, ok := findTerm(row.Result.Terms, sheet.TermID)
		if !ok {
			continue
		}
		switch term.Status {
		case grading.StatusInc:
			out.Incomplete++
			continue
		case grading.StatusDropped:
			out.Dropped++
			continue
		}
		grade := grading.WorstGrade
		if term.Grade != nil {
			grade = *term.Grade
		}
		if term.Remarks.Result == grading.ResultPassed {
			out.Passed++
		} else {
			out.Failed++
		}
		out.Bands[term.Remarks.Label]++
		graded = append(graded, models.GradeRank{StudentID: row.StudentID, StudentName: row.StudentName, Grade: grade})
	}
	if len(graded) == 0 {
		return out
	}

	sort.SliceStable(graded, func(i, j int) bool { return graded[i].Grade < graded[j].Grade })
	total := 0.0
	for i := range graded {
		total += graded[i].Grade
		if i > 0 && graded[i].Grade == graded[i-1].Grade {
			graded[i].Rank = graded[i-1].Rank
		} else {
			graded[i].Rank = i + 1
		}
	}
	avg := grading.Round2(total / float64(len(graded)))
	median := medianGrade(graded)
	out.AverageGrade = &avg
	out.MedianGrade = &median
	out.Rank = graded
	return out
}

func findTerm(terms []grading.TermResult, termID string) (grading.TermResult, bool) {
	for _, t := range terms {
		if t.TermID == termID {
			return t, true
		}
	}
	return grading.TermResult{}, false
}

func medianGrade(sorted []models.GradeRank) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2].Grade
	}
	return grading.Round2((sorted[n/2-1].Grade + sorted[n/2].Grade) / 2)
}
