package services

import (
	"errors"
	"fmt"

	apperrors "github.com/SAP-F-2025/exam-service/internal/errors"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/workflow"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Exam specific errors
	ErrExamNotFound   = errors.New("exam not found")
	ErrNotBatchMember = errors.New("student is not enrolled in the exam batch")
	ErrBatchNotFound  = errors.New("batch not found")

	// Question specific errors
	ErrQuestionNotFound    = errors.New("question not found")
	ErrOptionNotInQuestion = errors.New("option does not belong to the question")

	// Answer sheet specific errors
	ErrAnswerSheetNotFound = errors.New("answer sheet not found")
	ErrAnswerNotFound      = errors.New("answer not found")
	ErrImageNotFound       = errors.New("image is not attached to the answer")
	// ErrDuplicateAttempt is a start that lost the unique index race to a sheet it cannot read back
	ErrDuplicateAttempt = errors.New("an attempt for this exam already exists")

	// User errors
	ErrUserNotFound = errors.New("user not found")
)

// State errors come from the workflow package so services and transitions agree
var (
	ErrExamNotEditable          = workflow.ErrExamNotEditable
	ErrExamHasNoQuestions       = workflow.ErrExamHasNoQuestions
	ErrExamNotPublished         = workflow.ErrExamNotPublished
	ErrExamClosed               = workflow.ErrExamClosed
	ErrAnswerSheetNotEditable   = workflow.ErrSheetNotInProgress
	ErrAnswerSheetExpired       = workflow.ErrSheetExpired
	ErrAnswerSheetNotSubmitted  = workflow.ErrSheetNotSubmitted
	ErrAnswerSheetAlreadyGraded = workflow.ErrSheetAlreadyGraded
	ErrGradingIncomplete        = workflow.ErrGradingIncomplete
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

type PermissionError struct {
	UserID     string `json:"user_id"`
	ResourceID uint   `json:"resource_id"`
	Resource   string `json:"resource"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
}

func (pe *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s %s %d - %s",
		pe.UserID, pe.Action, pe.Resource, pe.ResourceID, pe.Reason)
}

// ===== ERROR HELPERS =====

// NewValidationError creates a new validation error using the shared type
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrExamNotFound) ||
		errors.Is(err, ErrBatchNotFound) ||
		errors.Is(err, ErrQuestionNotFound) ||
		errors.Is(err, ErrAnswerSheetNotFound) ||
		errors.Is(err, ErrAnswerNotFound) ||
		errors.Is(err, ErrImageNotFound) ||
		errors.Is(err, ErrUserNotFound)
}

// IsUnauthorized checks if error represents an "unauthorized" condition
func IsUnauthorized(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe) || errors.Is(err, ErrNotBatchMember)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrOptionNotInQuestion) {
		return true
	}
	var ve apperrors.ValidationErrors
	return errors.As(err, &ve)
}

// IsInvalidState checks if error is a rejected state transition
func IsInvalidState(err error) bool {
	return workflow.IsStateError(err)
}

// IsConflict checks if error represents a resource conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateAttempt) || errors.Is(err, repositories.ErrConcurrentUpdate)
}

// notFoundOr maps a gorm not found error to the domain sentinel and wraps everything else
func notFoundOr(err error, sentinel error, action string) error {
	if repositories.IsNotFoundError(err) {
		return sentinel
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}
