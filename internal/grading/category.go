package grading

// ComponentDef is a gradable item inside a category.
type ComponentDef struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	MaxScore float64 `json:"max_score"`
}

// CategoryDef is a weighted grading criterion of one term.
type CategoryDef struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	WeightPercent float64        `json:"weight_percent"`
	Order         int            `json:"order"`
	Components    []ComponentDef `json:"components"`
}

// ScoreLookup returns the recorded raw score of a component for one student.
type ScoreLookup func(componentID string) (float64, bool)

// MapScores adapts a componentID keyed map to a ScoreLookup.
func MapScores(scores map[string]float64) ScoreLookup {
	return func(componentID string) (float64, bool) {
		v, ok := scores[componentID]
		return v, ok
	}
}

// CategoryResult is the aggregated outcome of one category for one student.
type CategoryResult struct {
	CategoryID         string  `json:"category_id"`
	Name               string  `json:"name"`
	WeightPercent      float64 `json:"weight_percent"`
	TotalScore         float64 `json:"total_score"`
	MaxScore           float64 `json:"max_score"`
	Percentage         float64 `json:"percentage"`
	GradePoint         float64 `json:"grade_point"`
	WeightedEquivalent float64 `json:"weighted_equivalent"`
	Graded             bool    `json:"graded"`
}

// AggregateCategory sums a student's scores within a category and converts the
// percentage to a weighted grade point. A category without any positive score
// is ungraded and receives WorstGrade.
func (s Scale) AggregateCategory(category CategoryDef, scores ScoreLookup) CategoryResult {
	result := CategoryResult{
		CategoryID:    category.ID,
		Name:          category.Name,
		WeightPercent: category.WeightPercent,
	}
	for _, component := range category.Components {
		max := component.MaxScore
		if max < 0 {
			max = 0
		}
		result.MaxScore += max
		if scores == nil {
			continue
		}
		value, ok := scores(component.ID)
		if !ok {
			continue
		}
		value = clamp(value, 0, max)
		if value > 0 {
			result.Graded = true
		}
		result.TotalScore += value
	}

	result.Percentage = Percentage(result.TotalScore, result.MaxScore)
	if !result.Graded || result.MaxScore <= 0 {
		result.Graded = false
		result.GradePoint = WorstGrade
	} else {
		result.GradePoint = s.GradePoint(Ratio(result.TotalScore, result.MaxScore))
	}
	result.WeightedEquivalent = WeightedEquivalent(result.GradePoint, category.WeightPercent)
	return result
}

// AggregateCategory aggregates using DefaultScale.
func AggregateCategory(category CategoryDef, scores ScoreLookup) CategoryResult {
	return DefaultScale.AggregateCategory(category, scores)
}

// WeightedEquivalent applies a percentage weight to a grade point.
func WeightedEquivalent(gradePoint, weightPercent float64) float64 {
	return gradePoint * (weightPercent / 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
