package workflow

import (
	"sort"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/scoring"
)

type SheetTransition struct {
	Sheet   models.AnswerSheet
	Changed bool
	// Touched holds indexes into Sheet.Answers that were modified.
	Touched []int
	Intents Intents
}

// NewAnswerSheet materializes an attempt: the total is snapshotted from the exam and one
// blank answer is created per question, in exam order.
func NewAnswerSheet(exam *models.Exam, studentID string, now time.Time) (models.AnswerSheet, Intents) {
	questions := make([]models.Question, len(exam.Questions))
	copy(questions, exam.Questions)
	sort.SliceStable(questions, func(i, j int) bool {
		if questions[i].OrderNumber == questions[j].OrderNumber {
			return questions[i].ID < questions[j].ID
		}
		return questions[i].OrderNumber < questions[j].OrderNumber
	})

	answers := make([]models.Answer, 0, len(questions))
	for _, q := range questions {
		answers = append(answers, models.Answer{QuestionID: q.ID})
	}

	sheet := models.AnswerSheet{
		ExamID:      exam.ID,
		StudentID:   studentID,
		Status:      models.SheetInProgress,
		StartedAt:   now,
		ExpiresAt:   now.Add(time.Duration(exam.DurationMinutes) * time.Minute),
		TotalPoints: exam.SumPoints(),
		Answers:     answers,
	}

	return sheet, Intents{persist(), publish(EventAttemptStarted)}
}

// CheckAnswerEdit allows answer capture only while the attempt is open.
func CheckAnswerEdit(sheet *models.AnswerSheet, now time.Time) error {
	if sheet.Status != models.SheetInProgress {
		return ErrSheetNotInProgress
	}
	if !now.Before(sheet.ExpiresAt) {
		return ErrSheetExpired
	}
	return nil
}

// SubmitSheet closes an attempt, auto-grading every objective answer and totalling the
// awarded points with ungraded answers counted as zero. A sheet that already left
// IN_PROGRESS is returned unchanged so a losing submitter observes the winner's result.
func SubmitSheet(sheet models.AnswerSheet, questions map[uint]*models.Question, source models.SubmissionSource, now time.Time) SheetTransition {
	if sheet.Status != models.SheetInProgress {
		return SheetTransition{Sheet: sheet}
	}

	sheet.Answers = cloneAnswers(sheet.Answers)
	touched := scoring.AutoGradeSheet(&sheet, questions, false, now)

	obtained := sheet.SumAwarded()
	sheet.ObtainedPoints = &obtained
	sheet.Status = models.SheetSubmitted
	sheet.SubmittedAt = &now
	sheet.SubmittedBy = source

	return SheetTransition{
		Sheet:   sheet,
		Changed: true,
		Touched: touched,
		Intents: Intents{persist(), publish(EventAttemptSubmitted)},
	}
}

// AutoGradePending grades objective answers that were not auto-graded yet. Only
// submitted sheets qualify.
func AutoGradePending(sheet models.AnswerSheet, questions map[uint]*models.Question, now time.Time) (SheetTransition, error) {
	if err := checkGradable(&sheet); err != nil {
		return SheetTransition{}, err
	}

	sheet.Answers = cloneAnswers(sheet.Answers)
	touched := scoring.AutoGradeSheet(&sheet, questions, true, now)
	if len(touched) == 0 {
		return SheetTransition{Sheet: sheet}, nil
	}

	obtained := sheet.SumAwarded()
	sheet.ObtainedPoints = &obtained

	return SheetTransition{
		Sheet:   sheet,
		Changed: true,
		Touched: touched,
		Intents: Intents{persist()},
	}, nil
}

// GradeAnswer records a manual grade, clamped to the question's points.
func GradeAnswer(sheet *models.AnswerSheet, answer models.Answer, question *models.Question, points int, feedback *string, graderID string, now time.Time) (models.Answer, Intents, error) {
	if err := checkGradable(sheet); err != nil {
		return models.Answer{}, nil, err
	}
	if question == nil || question.ID != answer.QuestionID {
		return models.Answer{}, nil, ErrQuestionNotGraded
	}

	awarded := scoring.ClampPoints(points, question.Points)
	answer.PointsAwarded = &awarded
	answer.Feedback = feedback
	answer.IsAutoGraded = false
	answer.GradedBy = &graderID
	answer.GradedAt = &now

	return answer, Intents{persist()}, nil
}

// FinalizeGrading moves a fully graded SUBMITTED sheet to GRADED.
func FinalizeGrading(sheet models.AnswerSheet, now time.Time) (SheetTransition, error) {
	if err := checkGradable(&sheet); err != nil {
		return SheetTransition{}, err
	}
	if !sheet.IsFullyGraded() {
		return SheetTransition{}, ErrGradingIncomplete
	}

	obtained := sheet.SumAwarded()
	sheet.ObtainedPoints = &obtained
	sheet.Status = models.SheetGraded
	sheet.GradedAt = &now

	return SheetTransition{
		Sheet:   sheet,
		Changed: true,
		Intents: Intents{
			persist(),
			publish(EventAttemptGraded),
			{Kind: IntentRecomputePerformance},
			{Kind: IntentInvalidateCache},
		},
	}, nil
}

// SetOverallFeedback attaches the grader's sheet level remark while grading is open.
func SetOverallFeedback(sheet models.AnswerSheet, feedback *string) (SheetTransition, error) {
	if err := checkGradable(&sheet); err != nil {
		return SheetTransition{}, err
	}
	sheet.OverallFeedback = feedback
	return SheetTransition{Sheet: sheet, Changed: true, Intents: Intents{persist()}}, nil
}

func checkGradable(sheet *models.AnswerSheet) error {
	switch sheet.Status {
	case models.SheetSubmitted:
		return nil
	case models.SheetGraded:
		return ErrSheetAlreadyGraded
	default:
		return ErrSheetNotSubmitted
	}
}

func cloneAnswers(in []models.Answer) []models.Answer {
	out := make([]models.Answer, len(in))
	copy(out, in)
	return out
}
