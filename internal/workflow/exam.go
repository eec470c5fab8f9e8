package workflow

import (
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
)

type ExamTransition struct {
	Exam    models.Exam
	Changed bool
	Intents Intents
}

// PublishExam moves a DRAFT exam with questions to PUBLISHED. Publishing an exam that is
// already published yields an unchanged transition.
func PublishExam(exam models.Exam, now time.Time) (ExamTransition, error) {
	switch exam.Status {
	case models.ExamStatusPublished:
		return ExamTransition{Exam: exam}, nil
	case models.ExamStatusClosed:
		return ExamTransition{}, ErrExamClosed
	}

	if len(exam.Questions) == 0 {
		return ExamTransition{}, ErrExamHasNoQuestions
	}

	exam.Status = models.ExamStatusPublished
	exam.PublishedAt = &now
	exam.FillComputed()

	return ExamTransition{
		Exam:    exam,
		Changed: true,
		Intents: Intents{persist(), publish(EventExamPublished)},
	}, nil
}

// CloseExam ends a published exam. CLOSED is terminal; closing twice is a no-op.
func CloseExam(exam models.Exam, now time.Time) (ExamTransition, error) {
	switch exam.Status {
	case models.ExamStatusClosed:
		return ExamTransition{Exam: exam}, nil
	case models.ExamStatusDraft:
		return ExamTransition{}, ErrExamNotPublished
	}

	exam.Status = models.ExamStatusClosed
	exam.ClosedAt = &now

	return ExamTransition{
		Exam:    exam,
		Changed: true,
		Intents: Intents{persist(), publish(EventExamClosed)},
	}, nil
}

// CheckStructuralEdit rejects question or settings changes once an exam left DRAFT.
func CheckStructuralEdit(exam *models.Exam) error {
	if exam.Status != models.ExamStatusDraft {
		return ErrExamNotEditable
	}
	return nil
}

// CheckStartable requires a published exam for a new attempt.
func CheckStartable(exam *models.Exam) error {
	switch exam.Status {
	case models.ExamStatusPublished:
		return nil
	case models.ExamStatusClosed:
		return ErrExamClosed
	default:
		return ErrExamNotPublished
	}
}
