package scoring

import (
	"testing"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uintPtr(v uint) *uint { return &v }

func objectiveQuestion() *models.Question {
	return &models.Question{
		ID:     1,
		Type:   models.QuestionObjective,
		Points: 10,
		Options: []models.Option{
			{ID: 11, Text: "A"},
			{ID: 12, Text: "B", IsCorrect: true},
			{ID: 13, Text: "C"},
		},
	}
}

func TestGradeObjective(t *testing.T) {
	tests := []struct {
		name     string
		selected *uint
		points   int
		feedback string
	}{
		{name: "correct option", selected: uintPtr(12), points: 10, feedback: FeedbackCorrect},
		{name: "wrong option", selected: uintPtr(11), points: 0, feedback: FeedbackIncorrect},
		{name: "no selection", selected: nil, points: 0, feedback: FeedbackIncorrect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GradeObjective(objectiveQuestion(), tt.selected)
			assert.Equal(t, tt.points, result.PointsAwarded)
			assert.Equal(t, tt.feedback, result.Feedback)
		})
	}
}

func TestGradeObjective_FirstCorrectOptionWins(t *testing.T) {
	q := objectiveQuestion()
	q.Options[0].IsCorrect = true

	assert.Equal(t, 10, GradeObjective(q, uintPtr(11)).PointsAwarded)
	assert.Equal(t, 0, GradeObjective(q, uintPtr(12)).PointsAwarded)
}

func TestGradeObjective_NoCorrectOption(t *testing.T) {
	q := objectiveQuestion()
	q.Options[1].IsCorrect = false

	result := GradeObjective(q, uintPtr(12))
	assert.Equal(t, 0, result.PointsAwarded)
	assert.False(t, result.Correct)
}

func TestAutoGradeSheet(t *testing.T) {
	now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	descriptive := &models.Question{ID: 2, Type: models.QuestionDescriptive, Points: 10}
	questions := map[uint]*models.Question{1: objectiveQuestion(), 2: descriptive}

	sheet := &models.AnswerSheet{Answers: []models.Answer{
		{ID: 100, QuestionID: 1, SelectedOptionID: uintPtr(12)},
		{ID: 101, QuestionID: 2},
	}}

	touched := AutoGradeSheet(sheet, questions, false, now)
	require.Equal(t, []int{0}, touched)
	require.NotNil(t, sheet.Answers[0].PointsAwarded)
	assert.Equal(t, 10, *sheet.Answers[0].PointsAwarded)
	assert.True(t, sheet.Answers[0].IsAutoGraded)
	assert.Equal(t, FeedbackCorrect, *sheet.Answers[0].Feedback)
	assert.Nil(t, sheet.Answers[1].PointsAwarded)

	t.Run("skip already auto graded", func(t *testing.T) {
		sheet.Answers[0].SelectedOptionID = uintPtr(11)
		touched := AutoGradeSheet(sheet, questions, true, now)
		assert.Empty(t, touched)
		assert.Equal(t, 10, *sheet.Answers[0].PointsAwarded)
	})
}

func TestClampPoints(t *testing.T) {
	assert.Equal(t, 0, ClampPoints(-3, 10))
	assert.Equal(t, 7, ClampPoints(7, 10))
	assert.Equal(t, 10, ClampPoints(15, 10))
}

func TestPercentage(t *testing.T) {
	assert.InDelta(t, 90.0, Percentage(18, 20), 1e-9)
	assert.InDelta(t, 500.0, Percentage(5, 0), 1e-9)
	assert.InDelta(t, 0.0, Percentage(0, 40), 1e-9)
}

func TestCompetitionRanks(t *testing.T) {
	tests := []struct {
		name        string
		percentages []float64
		expected    []int
	}{
		{name: "ties share rank and skip", percentages: []float64{90, 90, 70, 50}, expected: []int{1, 1, 3, 4}},
		{name: "all distinct", percentages: []float64{40, 80, 60}, expected: []int{3, 1, 2}},
		{name: "all tied", percentages: []float64{75, 75, 75}, expected: []int{1, 1, 1}},
		{name: "empty", percentages: nil, expected: []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CompetitionRanks(tt.percentages))
		})
	}
}

func TestAverage(t *testing.T) {
	assert.InDelta(t, 70.0, Average([]float64{80, 60}), 1e-9)
	assert.Equal(t, 0.0, Average(nil))
}
