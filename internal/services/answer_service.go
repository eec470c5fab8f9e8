package services

import (
	"bytes"
	"context"
	"fmt"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/storage"
	"github.com/SAP-F-2025/exam-service/internal/validator"
	"github.com/SAP-F-2025/exam-service/internal/workflow"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type answerService struct {
	deps      Dependencies
	repo      repositories.Repository
	validator *validator.Validator
	images    storage.ImageStore
	log       *ServiceLogger
}

func NewAnswerService(deps Dependencies) AnswerService {
	deps = deps.withDefaults()
	return &answerService{
		deps:      deps,
		repo:      deps.Repo,
		validator: deps.Validator,
		images:    deps.Images,
		log:       NewServiceLogger(deps.Logger, "answer"),
	}
}

// answerEdit mutates the locked, freshly read answer in place
type answerEdit func(tx *gorm.DB, answer *models.Answer) error

func (s *answerService) Save(ctx context.Context, answerID uint, req *SaveAnswerRequest, actor models.Actor) (*models.Answer, error) {
	op := s.log.WithOperation(ctx, "save_answer", actor.UserID)

	if err := s.validator.Validate(req); err != nil {
		op.LogResult(answerID, "answer", err)
		return nil, err
	}
	if req.AnswerText == nil && req.SelectedOptionID == nil {
		err := ValidationErrors{*NewValidationError("answer_text", "answer_text or selected_option_id is required", nil)}
		op.LogResult(answerID, "answer", err)
		return nil, err
	}

	answer, err := s.edit(ctx, answerID, actor, func(tx *gorm.DB, a *models.Answer) error {
		if req.SelectedOptionID != nil {
			if err := s.checkOption(ctx, tx, a.QuestionID, *req.SelectedOptionID); err != nil {
				return err
			}
			a.SelectedOptionID = req.SelectedOptionID
		}
		if req.AnswerText != nil {
			a.AnswerText = req.AnswerText
		}
		return nil
	})

	op.LogResult(answerID, "answer", err)
	return answer, err
}

func (s *answerService) SelectOption(ctx context.Context, answerID, optionID uint, actor models.Actor) (*models.Answer, error) {
	return s.Save(ctx, answerID, &SaveAnswerRequest{SelectedOptionID: &optionID}, actor)
}

// AttachImage uploads first and links the URL under the sheet lock. When linking fails the
// upload is removed again.
func (s *answerService) AttachImage(ctx context.Context, answerID uint, image *ImageUpload, actor models.Actor) (*models.Answer, error) {
	op := s.log.WithOperation(ctx, "attach_answer_image", actor.UserID)

	answer, err := s.attachImage(ctx, answerID, image, actor)
	op.LogResult(answerID, "answer", err)
	return answer, err
}

func (s *answerService) attachImage(ctx context.Context, answerID uint, image *ImageUpload, actor models.Actor) (*models.Answer, error) {
	if s.images == nil {
		return nil, fmt.Errorf("image storage is not configured")
	}

	size := int64(len(image.Data))
	ext, errs := s.validator.Question().ValidateImage(image.ContentType, size, s.deps.MaxImageBytes)
	if len(errs) > 0 {
		return nil, errs
	}

	// reject early so closed sheets never reach storage
	if _, _, err := s.loadEditable(ctx, nil, answerID, actor, false); err != nil {
		return nil, err
	}

	key := storage.AnswerImageKey(answerID, uuid.NewString(), ext)
	url, err := s.images.Upload(ctx, key, bytes.NewReader(image.Data), size, image.ContentType)
	if err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}

	answer, err := s.edit(ctx, answerID, actor, func(_ *gorm.DB, a *models.Answer) error {
		a.ImageURLs = append(a.ImageURLs, url)
		return nil
	})
	if err != nil {
		if derr := s.images.Delete(ctx, key); derr != nil {
			s.log.Logger().WarnContext(ctx, "Failed to remove orphaned image", "key", key, "error", derr)
		}
		return nil, err
	}
	return answer, nil
}

func (s *answerService) RemoveImage(ctx context.Context, answerID uint, imageURL string, actor models.Actor) (*models.Answer, error) {
	op := s.log.WithOperation(ctx, "remove_answer_image", actor.UserID)

	answer, err := s.edit(ctx, answerID, actor, func(_ *gorm.DB, a *models.Answer) error {
		kept := make([]string, 0, len(a.ImageURLs))
		found := false
		for _, u := range a.ImageURLs {
			if u == imageURL && !found {
				found = true
				continue
			}
			kept = append(kept, u)
		}
		if !found {
			return ErrImageNotFound
		}
		a.ImageURLs = kept
		return nil
	})
	op.LogResult(answerID, "answer", err)
	if err != nil {
		return nil, err
	}

	// the reference is gone; deleting the object is best effort
	if s.images != nil {
		if key, ok := s.images.KeyFromURL(imageURL); ok {
			if err := s.images.Delete(ctx, key); err != nil {
				s.log.Logger().WarnContext(ctx, "Failed to delete answer image",
					"answer_id", answerID,
					"key", key,
					"error", err)
			}
		}
	}
	return answer, nil
}

// edit runs mutate on the answer while its sheet row is locked and still editable
func (s *answerService) edit(ctx context.Context, answerID uint, actor models.Actor, mutate answerEdit) (*models.Answer, error) {
	var updated models.Answer
	err := s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		_, answer, err := s.loadEditable(ctx, tx, answerID, actor, true)
		if err != nil {
			return err
		}
		if err := mutate(tx, answer); err != nil {
			return err
		}
		now := s.deps.Now()
		answer.AnsweredAt = &now
		if err := s.repo.Answer().UpdateResponse(ctx, tx, answer); err != nil {
			return fmt.Errorf("failed to save answer: %w", err)
		}
		updated = *answer
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// loadEditable resolves the answer's sheet, optionally row-locking it, and checks the
// caller may still edit it
func (s *answerService) loadEditable(ctx context.Context, tx *gorm.DB, answerID uint, actor models.Actor, lock bool) (*models.AnswerSheet, *models.Answer, error) {
	answer, err := s.repo.Answer().GetByID(ctx, tx, answerID)
	if err != nil {
		return nil, nil, notFoundOr(err, ErrAnswerNotFound, "get answer")
	}

	var sheet *models.AnswerSheet
	if lock {
		sheet, err = s.repo.AnswerSheet().GetByIDForUpdate(ctx, tx, answer.AnswerSheetID)
	} else {
		sheet, err = s.repo.AnswerSheet().GetByID(ctx, tx, answer.AnswerSheetID)
	}
	if err != nil {
		return nil, nil, notFoundOr(err, ErrAnswerSheetNotFound, "get answer sheet")
	}
	if err := checkSheetOwner(sheet, actor, "edit_answer"); err != nil {
		return nil, nil, err
	}
	if err := workflow.CheckAnswerEdit(sheet, s.deps.Now()); err != nil {
		return nil, nil, err
	}

	idx, ok := findAnswer(sheet, answerID)
	if !ok {
		return nil, nil, ErrAnswerNotFound
	}
	return sheet, &sheet.Answers[idx], nil
}

func (s *answerService) checkOption(ctx context.Context, tx *gorm.DB, questionID, optionID uint) error {
	question, err := s.repo.Question().GetByID(ctx, tx, questionID)
	if err != nil {
		return notFoundOr(err, ErrQuestionNotFound, "get question")
	}
	if question.Type != models.QuestionObjective || !question.HasOption(optionID) {
		return ErrOptionNotInQuestion
	}
	return nil
}
