package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-grading-api/internal/grading"
	"github.com/noah-isme/sma-grading-api/internal/models"
	appErrors "github.com/noah-isme/sma-grading-api/pkg/errors"
)

// Recompute triggers, used as metric labels and calculation notes.
const (
	TriggerScore       = "score"
	TriggerBulkScore   = "bulk_score"
	TriggerCriteria    = "criteria"
	TriggerRecalculate = "recalculate"
)

type activeTermReader interface {
	ListActive(ctx context.Context) ([]models.Term, error)
}

type criteriaReader interface {
	ListByScope(ctx context.Context, classID, termID string) ([]models.GradingCriterion, error)
	ListByClass(ctx context.Context, classID string) ([]models.GradingCriterion, error)
}

type scoreReader interface {
	List(ctx context.Context, filter models.ScoreFilter) ([]models.Score, error)
}

type termStatusReader interface {
	ListByClass(ctx context.Context, classID string) ([]models.StudentTermStatus, error)
	ListByStudent(ctx context.Context, classID, studentID string) ([]models.StudentTermStatus, error)
}

type termGradeStore interface {
	UpsertBatch(ctx context.Context, grades []models.TermGrade) error
	ListByClass(ctx context.Context, classID string) ([]models.TermGrade, error)
}

type rosterReader interface {
	ListByClass(ctx context.Context, classID string, status models.EnrollmentStatus) ([]models.EnrollmentDetail, error)
	FindByStudent(ctx context.Context, classID, studentID string) (*models.EnrollmentDetail, error)
}

type studentAccountReader interface {
	FindByUserID(ctx context.Context, userID string) (*models.Student, error)
}

// GradingRepositories groups the data sources read by GradingService.
type GradingRepositories struct {
	Terms      activeTermReader
	Classes    classReader
	Criteria   criteriaReader
	Scores     scoreReader
	Statuses   termStatusReader
	TermGrades termGradeStore
	Roster     rosterReader
	Students   studentAccountReader
	Audit      auditWriter
}

// RecalculateResult reports a recalculation run.
type RecalculateResult struct {
	ClassID  string `json:"class_id"`
	TermID   string `json:"term_id"`
	Students int    `json:"students"`
}

// GradingService assembles grade sheets from stored data and keeps the
// term_grades cache in step with scores.
type GradingService struct {
	repos    GradingRepositories
	engine   *grading.Engine
	cache    *CacheService
	metrics  *MetricsService
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewGradingService constructs the service. A nil engine uses the default scale.
func NewGradingService(repos GradingRepositories, engine *grading.Engine, cache *CacheService, metrics *MetricsService, cacheTTL time.Duration, logger *zap.Logger) *GradingService {
	if engine == nil {
		engine = grading.NewEngine(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradingService{
		repos:    repos,
		engine:   engine,
		cache:    cache,
		metrics:  metrics,
		cacheTTL: cacheTTL,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Sheet returns the class grade sheet for the term being edited. The second
// return value reports whether the sheet came from cache.
func (s *GradingService) Sheet(ctx context.Context, actor *models.JWTClaims, classID, termID string) (*models.GradeSheet, bool, error) {
	if _, err := loadClass(ctx, s.repos.Classes, classID, actor); err != nil {
		return nil, false, err
	}
	key := sheetCacheKey(classID, termID)
	var cached models.GradeSheet
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, true, nil
	}
	sheet, err := s.BuildSheet(ctx, classID, termID)
	if err != nil {
		return nil, false, err
	}
	_ = s.cache.Set(ctx, key, sheet, s.cacheTTL)
	return sheet, false, nil
}

// BuildSheet computes the sheet without authorisation or caching. The
// requested term is computed live; other terms use their cached term grades.
func (s *GradingService) BuildSheet(ctx context.Context, classID, termID string) (*models.GradeSheet, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveComputation("sheet", time.Since(start)) }()

	terms, err := s.activeTerms(ctx)
	if err != nil {
		return nil, err
	}
	if !containsTerm(terms, termID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
	}
	criteria, err := s.repos.Criteria.ListByScope(ctx, classID, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grading criteria")
	}
	roster, err := s.repos.Roster.ListByClass(ctx, classID, models.EnrollmentStatusActive)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	scores, err := s.repos.Scores.List(ctx, models.ScoreFilter{ClassID: classID, TermID: termID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scores")
	}
	statuses, err := s.repos.Statuses.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term statuses")
	}
	stored, err := s.repos.TermGrades.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term grades")
	}

	categories := toCategoryDefs(criteria)
	scoreIndex := indexScores(scores)
	statusIndex := indexStatuses(statuses)
	storedIndex := indexTermGrades(stored)

	sheet := &models.GradeSheet{
		ClassID:         classID,
		TermID:          termID,
		Terms:           terms,
		Criteria:        criteria,
		Students:        make([]models.StudentGradeRow, 0, len(roster)),
		CriteriaWeights: grading.CheckWeights(grading.CategoryWeights(categories)...),
		TermWeights:     grading.CheckWeights(termWeights(terms)...),
		GeneratedAt:     s.now(),
	}
	for _, enrollment := range roster {
		input := grading.StudentInput{
			StudentID: enrollment.StudentID,
			Scores:    grading.MapScores(scoreIndex[enrollment.StudentID]),
			Statuses:  statusIndex[enrollment.StudentID],
			Terms:     make([]grading.TermInput, 0, len(terms)),
		}
		for _, term := range terms {
			if term.ID == termID {
				input.Terms = append(input.Terms, grading.TermInput{Term: toTermDef(term), Categories: categories, Live: true})
				continue
			}
			input.Terms = append(input.Terms, grading.TermInput{Term: toTermDef(term), StoredGrade: storedIndex[enrollment.StudentID][term.ID]})
		}
		sheet.Students = append(sheet.Students, models.StudentGradeRow{
			StudentID:     enrollment.StudentID,
			StudentName:   enrollment.StudentName,
			StudentNumber: enrollment.StudentNumber,
			Result:        s.engine.Evaluate(input),
		})
	}
	return sheet, nil
}

// StudentGrades returns one student's full record in a class with every term
// computed live. Students may only read their own record.
func (s *GradingService) StudentGrades(ctx context.Context, actor *models.JWTClaims, classID, studentID string) (*models.StudentGradeRow, bool, error) {
	if err := s.authorizeStudentRead(ctx, actor, classID, studentID); err != nil {
		return nil, false, err
	}
	key := studentCacheKey(classID, studentID)
	var cached models.StudentGradeRow
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, true, nil
	}
	row, err := s.buildStudent(ctx, classID, studentID)
	if err != nil {
		return nil, false, err
	}
	_ = s.cache.Set(ctx, key, row, s.cacheTTL)
	return row, false, nil
}

// OwnGrades resolves the student behind a STUDENT account and returns their record.
func (s *GradingService) OwnGrades(ctx context.Context, actor *models.JWTClaims, classID string) (*models.StudentGradeRow, bool, error) {
	if actor == nil || actor.Role != models.RoleStudent {
		return nil, false, appErrors.Clone(appErrors.ErrForbidden, "only students have their own grades")
	}
	student, err := s.repos.Students.FindByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "no student record linked to account")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student")
	}
	return s.StudentGrades(ctx, actor, classID, student.ID)
}

// Recalculate rebuilds the cached term grades of every enrolled student.
func (s *GradingService) Recalculate(ctx context.Context, actor *models.JWTClaims, classID, termID string, meta AuditMeta) (*RecalculateResult, error) {
	if _, err := loadClass(ctx, s.repos.Classes, classID, actor); err != nil {
		return nil, err
	}
	terms, err := s.activeTerms(ctx)
	if err != nil {
		return nil, err
	}
	if !containsTerm(terms, termID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
	}
	roster, err := s.repos.Roster.ListByClass(ctx, classID, models.EnrollmentStatusActive)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	ids := make([]string, len(roster))
	for i, e := range roster {
		ids[i] = e.StudentID
	}
	if _, err := s.RecomputeStudents(ctx, classID, termID, ids, TriggerRecalculate); err != nil {
		return nil, err
	}
	result := &RecalculateResult{ClassID: classID, TermID: termID, Students: len(ids)}
	recordAudit(ctx, s.repos.Audit, s.logger, actor, meta, models.AuditActionGradesRecalculated, "class_term", classID+":"+termID, nil, result)
	return result, nil
}

// TermGradePlan is a computed set of term grades waiting to be stored.
type TermGradePlan struct {
	Trigger string
	Rows    []models.TermGrade
	Results map[string]grading.TermResult
}

// RecomputeStudents recomputes one term for the given students, overwrites
// their cached term grades and drops cached views of the class.
func (s *GradingService) RecomputeStudents(ctx context.Context, classID, termID string, studentIDs []string, trigger string) (map[string]grading.TermResult, error) {
	plan, err := s.PlanStudents(ctx, classID, termID, studentIDs, models.ScoreChanges{}, trigger)
	if err != nil {
		return nil, err
	}
	if err := s.repos.TermGrades.UpsertBatch(ctx, plan.Rows); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store term grades")
	}
	s.Applied(ctx, classID, plan)
	return plan.Results, nil
}

// PlanStudents computes one term for the given students as if the pending
// score changes were already stored. Nothing is written; the caller stores
// the rows together with the changes and then calls Applied.
func (s *GradingService) PlanStudents(ctx context.Context, classID, termID string, studentIDs []string, pending models.ScoreChanges, trigger string) (*TermGradePlan, error) {
	plan := &TermGradePlan{Trigger: trigger, Results: make(map[string]grading.TermResult, len(studentIDs))}
	if len(studentIDs) == 0 {
		return plan, nil
	}
	start := time.Now()
	defer func() { s.metrics.ObserveComputation(trigger, time.Since(start)) }()

	criteria, err := s.repos.Criteria.ListByScope(ctx, classID, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grading criteria")
	}
	filter := models.ScoreFilter{ClassID: classID, TermID: termID}
	if len(studentIDs) == 1 {
		filter.StudentID = studentIDs[0]
	}
	scores, err := s.repos.Scores.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scores")
	}
	categories := toCategoryDefs(criteria)
	scoreIndex := applyScoreChanges(indexScores(scores), pending)
	note := fmt.Sprintf("%s: %d categories", trigger, len(categories))

	for _, studentID := range uniqueStrings(studentIDs) {
		result := s.engine.EvaluateTerm(grading.TermDef{ID: termID}, categories, grading.MapScores(scoreIndex[studentID]))
		grade := grading.WorstGrade
		if result.Grade != nil {
			grade = *result.Grade
		}
		plan.Rows = append(plan.Rows, models.TermGrade{StudentID: studentID, ClassID: classID, TermID: termID, Grade: grade, CalculationNote: note})
		plan.Results[studentID] = result
	}
	return plan, nil
}

// Applied records stored plans and drops cached views of the class.
func (s *GradingService) Applied(ctx context.Context, classID string, plans ...*TermGradePlan) {
	for _, plan := range plans {
		s.metrics.AddRecomputations(plan.Trigger, len(plan.Rows))
	}
	s.InvalidateClass(ctx, classID)
}

// RecomputeClassTerm recomputes every enrolled student, used after criteria changes.
func (s *GradingService) RecomputeClassTerm(ctx context.Context, classID, termID, trigger string) error {
	roster, err := s.repos.Roster.ListByClass(ctx, classID, models.EnrollmentStatusActive)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	ids := make([]string, len(roster))
	for i, e := range roster {
		ids[i] = e.StudentID
	}
	_, err = s.RecomputeStudents(ctx, classID, termID, ids, trigger)
	return err
}

// InvalidateClass drops cached sheets and student records of a class.
func (s *GradingService) InvalidateClass(ctx context.Context, classID string) {
	if err := s.cache.InvalidateClass(ctx, classID); err != nil {
		s.logger.Warn("failed to invalidate class cache", zap.String("class_id", classID), zap.Error(err))
	}
}

func (s *GradingService) buildStudent(ctx context.Context, classID, studentID string) (*models.StudentGradeRow, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveComputation("student", time.Since(start)) }()

	enrollment, err := s.repos.Roster.FindByStudent(ctx, classID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student is not enrolled in class")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	terms, err := s.activeTerms(ctx)
	if err != nil {
		return nil, err
	}
	criteria, err := s.repos.Criteria.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grading criteria")
	}
	scores, err := s.repos.Scores.List(ctx, models.ScoreFilter{ClassID: classID, StudentID: studentID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scores")
	}
	statuses, err := s.repos.Statuses.ListByStudent(ctx, classID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term statuses")
	}

	byTerm := make(map[string][]models.GradingCriterion)
	for _, c := range criteria {
		byTerm[c.TermID] = append(byTerm[c.TermID], c)
	}
	input := grading.StudentInput{
		StudentID: studentID,
		Scores:    grading.MapScores(indexScores(scores)[studentID]),
		Statuses:  indexStatuses(statuses)[studentID],
		Terms:     make([]grading.TermInput, 0, len(terms)),
	}
	for _, term := range terms {
		input.Terms = append(input.Terms, grading.TermInput{Term: toTermDef(term), Categories: toCategoryDefs(byTerm[term.ID]), Live: true})
	}
	return &models.StudentGradeRow{
		StudentID:     studentID,
		StudentName:   enrollment.StudentName,
		StudentNumber: enrollment.StudentNumber,
		Result:        s.engine.Evaluate(input),
	}, nil
}

func (s *GradingService) authorizeStudentRead(ctx context.Context, actor *models.JWTClaims, classID, studentID string) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleStudent {
		_, err := loadClass(ctx, s.repos.Classes, classID, actor)
		return err
	}
	student, err := s.repos.Students.FindByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrForbidden, "no student record linked to account")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student")
	}
	if student.ID != studentID {
		return appErrors.Clone(appErrors.ErrForbidden, "students may only view their own grades")
	}
	return nil
}

func (s *GradingService) activeTerms(ctx context.Context) ([]models.Term, error) {
	terms, err := s.repos.Terms.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list terms")
	}
	return terms, nil
}

func toTermDef(term models.Term) grading.TermDef {
	return grading.TermDef{ID: term.ID, Name: term.Name, WeightPercent: term.WeightPercent}
}

func toCategoryDefs(criteria []models.GradingCriterion) []grading.CategoryDef {
	defs := make([]grading.CategoryDef, 0, len(criteria))
	for _, c := range criteria {
		def := grading.CategoryDef{ID: c.ID, Name: c.Name, WeightPercent: c.WeightPercent, Order: c.Position}
		for _, comp := range c.Components {
			def.Components = append(def.Components, grading.ComponentDef{ID: comp.ID, Name: comp.Name, MaxScore: comp.MaxScore})
		}
		defs = append(defs, def)
	}
	return defs
}

func termWeights(terms []models.Term) []float64 {
	weights := make([]float64, len(terms))
	for i, t := range terms {
		weights[i] = t.WeightPercent
	}
	return weights
}

func containsTerm(terms []models.Term, termID string) bool {
	for _, t := range terms {
		if t.ID == termID {
			return true
		}
	}
	return false
}

func indexScores(scores []models.Score) map[string]map[string]float64 {
	index := make(map[string]map[string]float64)
	for _, sc := range scores {
		if index[sc.StudentID] == nil {
			index[sc.StudentID] = make(map[string]float64)
		}
		index[sc.StudentID][sc.ComponentID] = sc.Value
	}
	return index
}

func applyScoreChanges(index map[string]map[string]float64, changes models.ScoreChanges) map[string]map[string]float64 {
	for _, sc := range changes.Upserts {
		if index[sc.StudentID] == nil {
			index[sc.StudentID] = make(map[string]float64)
		}
		index[sc.StudentID][sc.ComponentID] = sc.Value
	}
	for _, key := range changes.Deletes {
		delete(index[key.StudentID], key.ComponentID)
	}
	return index
}

func indexStatuses(statuses []models.StudentTermStatus) map[string]map[string]grading.Status {
	index := make(map[string]map[string]grading.Status)
	for _, st := range statuses {
		if index[st.StudentID] == nil {
			index[st.StudentID] = make(map[string]grading.Status)
		}
		index[st.StudentID][st.TermID] = st.Status
	}
	return index
}

func indexTermGrades(grades []models.TermGrade) map[string]map[string]*float64 {
	index := make(map[string]map[string]*float64)
	for _, g := range grades {
		if index[g.StudentID] == nil {
			index[g.StudentID] = make(map[string]*float64)
		}
		value := g.Grade
		index[g.StudentID][g.TermID] = &value
	}
	return index
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok || v == "" {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
