package scoring

import (
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
)

const (
	FeedbackCorrect   = "Correct answer"
	FeedbackIncorrect = "Incorrect answer"
)

// ObjectiveResult is the outcome of comparing a selection against the correct option.
type ObjectiveResult struct {
	PointsAwarded int
	Feedback      string
	Correct       bool
}

// GradeObjective awards full points when selected matches the question's correct option.
// A missing selection or a question without a correct option scores zero.
func GradeObjective(question *models.Question, selected *uint) ObjectiveResult {
	correct := question.CorrectOptionID()
	if selected != nil && correct != nil && *selected == *correct {
		return ObjectiveResult{PointsAwarded: question.Points, Feedback: FeedbackCorrect, Correct: true}
	}
	return ObjectiveResult{PointsAwarded: 0, Feedback: FeedbackIncorrect}
}

// ApplyObjective writes the auto-grade outcome onto the answer.
func ApplyObjective(answer *models.Answer, question *models.Question, now time.Time) ObjectiveResult {
	result := GradeObjective(question, answer.SelectedOptionID)
	points := result.PointsAwarded
	feedback := result.Feedback
	answer.PointsAwarded = &points
	answer.Feedback = &feedback
	answer.IsAutoGraded = true
	answer.GradedBy = nil
	answer.GradedAt = &now
	return result
}

// AutoGradeSheet grades every objective answer of the sheet in place and returns the
// indexes of the answers it touched. With skipGraded set, answers already auto-graded
// are left alone. Answers whose question is unknown are skipped.
func AutoGradeSheet(sheet *models.AnswerSheet, questions map[uint]*models.Question, skipGraded bool, now time.Time) []int {
	var touched []int
	for i := range sheet.Answers {
		answer := &sheet.Answers[i]
		question, ok := questions[answer.QuestionID]
		if !ok || question.Type != models.QuestionObjective {
			continue
		}
		if skipGraded && answer.IsAutoGraded {
			continue
		}
		ApplyObjective(answer, question, now)
		touched = append(touched, i)
	}
	return touched
}

// ClampPoints bounds a manual grade to [0, max].
func ClampPoints(points, max int) int {
	if points < 0 {
		return 0
	}
	if points > max {
		return max
	}
	return points
}
