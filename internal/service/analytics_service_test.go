package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-grading-api/internal/grading"
	"github.com/noah-isme/sma-grading-api/internal/models"
	appErrors "github.com/noah-isme/sma-grading-api/pkg/errors"
)

type stubSheets struct {
	sheet *models.GradeSheet
	err   error
}

func (s stubSheets) Sheet(ctx context.Context, actor *models.JWTClaims, classID, termID string) (*models.GradeSheet, bool, error) {
	return s.sheet, false, s.err
}

func analyticsRow(id string, grade float64, status grading.Status) models.StudentGradeRow {
	g := grade
	return models.StudentGradeRow{
		StudentID:   id,
		StudentName: "Student " + id,
		Result: grading.StudentResult{StudentID: id, Terms: []grading.TermResult{{
			TermID:  "prelim",
			Grade:   &g,
			Status:  status,
			Remarks: grading.Classify(grade, status),
		}}},
	}
}

func TestSummariseSheet(t *testing.T) {
	sheet := &models.GradeSheet{ClassID: "class-1", TermID: "prelim", Students: []models.StudentGradeRow{
		analyticsRow("s1", 1.75, grading.StatusNormal),
		analyticsRow("s2", 1.25, grading.StatusNormal),
		analyticsRow("s3", 1.75, grading.StatusNormal),
		analyticsRow("s4", 5.0, grading.StatusNormal),
		analyticsRow("s5", 2.0, grading.StatusInc),
		analyticsRow("s6", 5.0, grading.StatusDropped),
	}}

	summary := SummariseSheet(sheet)

	assert.Equal(t, 6, summary.Students)
	assert.Equal(t, 3, summary.Passed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Incomplete)
	assert.Equal(t, 1, summary.Dropped)
	require.NotNil(t, summary.AverageGrade)
	assert.InDelta(t, 2.44, *summary.AverageGrade, 1e-9)
	require.NotNil(t, summary.MedianGrade)
	assert.InDelta(t, 1.75, *summary.MedianGrade, 1e-9)
	assert.Equal(t, 1, summary.Bands[grading.LabelExcellent])
	assert.Equal(t, 2, summary.Bands[grading.LabelVeryGood])
	assert.Equal(t, 1, summary.Bands[grading.LabelFailed])

	require.Len(t, summary.Rank, 4)
	assert.Equal(t, "s2", summary.Rank[0].StudentID)
	assert.Equal(t, 1, summary.Rank[0].Rank)
	assert.Equal(t, 2, summary.Rank[1].Rank)
	assert.Equal(t, 2, summary.Rank[2].Rank)
	assert.Equal(t, 4, summary.Rank[3].Rank)
}

func TestSummariseSheetWithoutGradedStudents(t *testing.T) {
	summary := SummariseSheet(&models.GradeSheet{ClassID: "class-1", TermID: "prelim"})
	assert.Nil(t, summary.AverageGrade)
	assert.Empty(t, summary.Rank)
}

func TestAnalyticsServicePropagatesSheetErrors(t *testing.T) {
	svc := NewAnalyticsService(stubSheets{err: appErrors.ErrForbidden}, nil, nil)
	_, _, err := svc.ClassTerm(context.Background(), teacherActor, "class-1", "prelim")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
