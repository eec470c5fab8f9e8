package workflow

import "errors"

// State errors. Callers classify all of them as invalid state.
var (
	ErrExamHasNoQuestions = errors.New("exam must have at least one question to publish")
	ErrExamNotEditable    = errors.New("exam structure cannot change after publishing")
	ErrExamNotPublished   = errors.New("exam is not published")
	ErrExamClosed         = errors.New("exam is closed")

	ErrSheetNotInProgress = errors.New("answer sheet is no longer in progress")
	ErrSheetExpired       = errors.New("answer sheet time limit has elapsed")
	ErrSheetNotSubmitted  = errors.New("answer sheet has not been submitted")
	ErrSheetAlreadyGraded = errors.New("answer sheet is already graded")
	ErrGradingIncomplete  = errors.New("All answers must be graded")
	ErrQuestionNotGraded  = errors.New("answer does not belong to a gradable question")
)

var stateErrors = []error{
	ErrExamHasNoQuestions,
	ErrExamNotEditable,
	ErrExamNotPublished,
	ErrExamClosed,
	ErrSheetNotInProgress,
	ErrSheetExpired,
	ErrSheetNotSubmitted,
	ErrSheetAlreadyGraded,
	ErrGradingIncomplete,
	ErrQuestionNotGraded,
}

// IsStateError reports whether err was raised by a rejected transition.
func IsStateError(err error) bool {
	for _, target := range stateErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
