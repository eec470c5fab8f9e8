package validator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/SAP-F-2025/exam-service/internal/models"
)

var allowedImageTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// QuestionValidator enforces the structural rules of authored questions
type QuestionValidator struct{}

func NewQuestionValidator() *QuestionValidator {
	return &QuestionValidator{}
}

// ValidateQuestion checks option layout against the question type. Objective questions
// need at least two options with exactly one marked correct; descriptive ones carry none.
func (v *QuestionValidator) ValidateQuestion(q *models.Question) ValidationErrors {
	var errs ValidationErrors

	if strings.TrimSpace(q.Text) == "" {
		errs.Add("question_text", "required", q.Text)
	}
	if q.Points < 1 {
		errs = append(errs, ValidationError{Field: "points", Message: "must be at least 1", Value: q.Points, Rule: "min"})
	}

	switch q.Type {
	case models.QuestionObjective:
		if len(q.Options) < 2 {
			errs.Add("options", "min_options", len(q.Options))
		}
		correct := 0
		seen := make(map[int]bool, len(q.Options))
		for i, o := range q.Options {
			if o.IsCorrect {
				correct++
			}
			if strings.TrimSpace(o.Text) == "" {
				errs.Add(fmt.Sprintf("options[%d].option_text", i), "required", o.Text)
			}
			if seen[o.OrderNumber] {
				errs.Add(fmt.Sprintf("options[%d].order_number", i), "distinct_order", o.OrderNumber)
			}
			seen[o.OrderNumber] = true
		}
		if correct != 1 {
			errs.Add("options", "correct_options", correct)
		}
	case models.QuestionDescriptive:
		if len(q.Options) > 0 {
			errs.Add("options", "no_options", len(q.Options))
		}
	default:
		errs.Add("type", "question_type", q.Type)
	}

	return errs
}

// ValidateOrder rejects an order number already used by another question of the exam.
func (v *QuestionValidator) ValidateOrder(existing []models.Question, orderNumber int) ValidationErrors {
	var errs ValidationErrors
	for _, q := range existing {
		if q.OrderNumber == orderNumber {
			errs.Add("order_number", "distinct_order", orderNumber)
			break
		}
	}
	return errs
}

// ValidateImage checks an uploaded answer image and returns the file extension to store it under.
func (v *QuestionValidator) ValidateImage(contentType string, size, maxBytes int64) (string, ValidationErrors) {
	var errs ValidationErrors

	ext, ok := allowedImageTypes[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		errs.Add("image", "image_type", contentType)
	}
	if size <= 0 {
		errs.Add("image", "required", size)
	}
	if maxBytes > 0 && size > maxBytes {
		errs = append(errs, ValidationError{
			Field:   "image",
			Message: fmt.Sprintf("must not exceed %s bytes", strconv.FormatInt(maxBytes, 10)),
			Value:   size,
			Rule:    "max_size",
		})
	}

	return ext, errs
}
