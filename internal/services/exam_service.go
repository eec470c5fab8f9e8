package services

import (
	"context"
	"fmt"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/validator"
	"github.com/SAP-F-2025/exam-service/internal/workflow"
	"gorm.io/gorm"
)

type examService struct {
	deps      Dependencies
	repo      repositories.Repository
	validator *validator.Validator
	effects   *effects
	log       *ServiceLogger
}

func NewExamService(deps Dependencies) ExamService {
	deps = deps.withDefaults()
	return &examService{
		deps:      deps,
		repo:      deps.Repo,
		validator: deps.Validator,
		effects:   newEffects(deps),
		log:       NewServiceLogger(deps.Logger, "exam"),
	}
}

// ===== AUTHORING =====

func (s *examService) Create(ctx context.Context, req *CreateExamRequest, actor models.Actor) (*models.Exam, error) {
	op := s.log.WithOperation(ctx, "create_exam", actor.UserID)

	exam, err := s.create(ctx, req, actor)
	if err != nil {
		op.LogResult(0, "exam", err)
		return nil, err
	}

	op.LogResult(exam.ID, "exam", nil)
	return exam, nil
}

func (s *examService) create(ctx context.Context, req *CreateExamRequest, actor models.Actor) (*models.Exam, error) {
	if err := requireFaculty(actor, "exam", "create"); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	batch, err := s.repo.Batch().GetByID(ctx, nil, req.BatchID)
	if err != nil {
		return nil, notFoundOr(err, ErrBatchNotFound, "get batch")
	}
	if !actor.SameOrganization(batch.Organization) {
		return nil, NewPermissionError(actor.UserID, batch.ID, "batch", "assign", "organization mismatch")
	}

	exam := &models.Exam{
		Title:           req.Title,
		Instructions:    req.Instructions,
		DurationMinutes: req.DurationMinutes,
		Status:          models.ExamStatusDraft,
		BatchID:         batch.ID,
		Organization:    actor.Organization,
		CreatedBy:       actor.UserID,
	}
	if err := s.repo.Exam().Create(ctx, nil, exam); err != nil {
		return nil, fmt.Errorf("failed to create exam: %w", err)
	}
	return exam, nil
}

func (s *examService) Update(ctx context.Context, examID uint, req *UpdateExamRequest, actor models.Actor) (*models.Exam, error) {
	op := s.log.WithOperation(ctx, "update_exam", actor.UserID)

	if err := s.validator.Validate(req); err != nil {
		op.LogResult(examID, "exam", err)
		return nil, err
	}

	var updated *models.Exam
	err := s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		exam, err := s.lockOwned(ctx, tx, examID, actor, "update")
		if err != nil {
			return err
		}
		if err := workflow.CheckStructuralEdit(exam); err != nil {
			return err
		}

		if req.Title != nil {
			exam.Title = *req.Title
		}
		if req.Instructions != nil {
			exam.Instructions = req.Instructions
		}
		if req.DurationMinutes != nil {
			exam.DurationMinutes = *req.DurationMinutes
		}
		if err := s.repo.Exam().Update(ctx, tx, exam); err != nil {
			return fmt.Errorf("failed to update exam: %w", err)
		}
		updated = exam
		return nil
	})

	op.LogResult(examID, "exam", err)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *examService) GetByID(ctx context.Context, examID uint, actor models.Actor) (*models.Exam, error) {
	exam, err := s.repo.Exam().GetByIDWithQuestions(ctx, nil, examID)
	if err != nil {
		return nil, notFoundOr(err, ErrExamNotFound, "get exam")
	}
	if err := checkExamOwner(exam, actor, "view"); err != nil {
		return nil, err
	}
	return exam, nil
}

func (s *examService) ListByFaculty(ctx context.Context, actor models.Actor, limit, offset int) ([]*models.Exam, int64, error) {
	if err := requireFaculty(actor, "exam", "list"); err != nil {
		return nil, 0, err
	}
	limit, offset = normalizePage(limit, offset)

	exams, total, err := s.repo.Exam().List(ctx, nil, repositories.ExamFilters{
		CreatedBy:    actor.UserID,
		Organization: actor.Organization,
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list exams: %w", err)
	}
	return exams, total, nil
}

func (s *examService) ListBatches(ctx context.Context, actor models.Actor) ([]*repositories.BatchSummary, error) {
	if err := requireFaculty(actor, "batch", "list"); err != nil {
		return nil, err
	}
	batches, err := s.repo.Batch().ListSummaries(ctx, nil, actor.Organization)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	return batches, nil
}

// ===== QUESTIONS =====

func (s *examService) AddQuestion(ctx context.Context, examID uint, req *CreateQuestionRequest, actor models.Actor) (*models.Question, error) {
	op := s.log.WithOperation(ctx, "add_question", actor.UserID)

	if err := s.validator.Validate(req); err != nil {
		op.LogResult(examID, "exam", err)
		return nil, err
	}

	question := &models.Question{
		ExamID:      examID,
		Type:        req.Type,
		Text:        req.Text,
		Points:      req.Points,
		OrderNumber: req.OrderNumber,
	}
	for _, o := range req.Options {
		question.Options = append(question.Options, models.Option{
			Text:        o.Text,
			IsCorrect:   o.IsCorrect,
			OrderNumber: o.OrderNumber,
		})
	}
	if errs := s.validator.Question().ValidateQuestion(question); len(errs) > 0 {
		op.LogResult(examID, "exam", errs)
		return nil, errs
	}

	err := s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		exam, err := s.lockOwned(ctx, tx, examID, actor, "add_question")
		if err != nil {
			return err
		}
		if err := workflow.CheckStructuralEdit(exam); err != nil {
			return err
		}

		existing, err := s.repo.Question().GetByExam(ctx, tx, examID)
		if err != nil {
			return fmt.Errorf("failed to get questions: %w", err)
		}
		if errs := s.validator.Question().ValidateOrder(existing, question.OrderNumber); len(errs) > 0 {
			return errs
		}

		if err := s.repo.Question().Create(ctx, tx, question); err != nil {
			return fmt.Errorf("failed to create question: %w", err)
		}
		return nil
	})

	op.LogResult(examID, "exam", err)
	if err != nil {
		return nil, err
	}
	return question, nil
}

func (s *examService) DeleteQuestion(ctx context.Context, questionID uint, actor models.Actor) error {
	op := s.log.WithOperation(ctx, "delete_question", actor.UserID)

	err := s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		question, err := s.repo.Question().GetByID(ctx, tx, questionID)
		if err != nil {
			return notFoundOr(err, ErrQuestionNotFound, "get question")
		}
		exam, err := s.lockOwned(ctx, tx, question.ExamID, actor, "delete_question")
		if err != nil {
			return err
		}
		if err := workflow.CheckStructuralEdit(exam); err != nil {
			return err
		}
		if err := s.repo.Question().Delete(ctx, tx, questionID); err != nil {
			return notFoundOr(err, ErrQuestionNotFound, "delete question")
		}
		return nil
	})

	op.LogResult(questionID, "question", err)
	return err
}

// ===== LIFECYCLE =====

func (s *examService) Publish(ctx context.Context, examID uint, actor models.Actor) (*models.Exam, error) {
	return s.transition(ctx, examID, actor, "publish_exam", workflow.PublishExam)
}

func (s *examService) Close(ctx context.Context, examID uint, actor models.Actor) (*models.Exam, error) {
	return s.transition(ctx, examID, actor, "close_exam", workflow.CloseExam)
}

type examTransitionFunc func(models.Exam, time.Time) (workflow.ExamTransition, error)

func (s *examService) transition(ctx context.Context, examID uint, actor models.Actor, operation string, apply examTransitionFunc) (*models.Exam, error) {
	op := s.log.WithOperation(ctx, operation, actor.UserID)
	now := s.deps.Now()

	var result workflow.ExamTransition
	err := s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		exam, err := s.lockOwned(ctx, tx, examID, actor, operation)
		if err != nil {
			return err
		}
		questions, err := s.repo.Question().GetByExam(ctx, tx, examID)
		if err != nil {
			return fmt.Errorf("failed to get questions: %w", err)
		}
		exam.Questions = questions

		result, err = apply(*exam, now)
		if err != nil {
			return err
		}
		if !result.Changed {
			result.Exam = *exam
			return nil
		}
		if err := s.repo.Exam().Update(ctx, tx, &result.Exam); err != nil {
			return fmt.Errorf("failed to update exam: %w", err)
		}
		return nil
	})

	op.LogResult(examID, "exam", err)
	if err != nil {
		return nil, err
	}

	exam := result.Exam
	exam.FillComputed()
	s.effects.dispatch(ctx, result.Intents, func(name workflow.EventName) *events.ExamEvent {
		switch name {
		case workflow.EventExamPublished:
			return events.NewExamPublishedEvent(&exam)
		case workflow.EventExamClosed:
			return events.NewExamClosedEvent(&exam)
		}
		return nil
	})
	return &exam, nil
}

// lockOwned row-locks the exam inside tx and checks the caller owns it
func (s *examService) lockOwned(ctx context.Context, tx *gorm.DB, examID uint, actor models.Actor, action string) (*models.Exam, error) {
	exam, err := s.repo.Exam().GetByIDForUpdate(ctx, tx, examID)
	if err != nil {
		return nil, notFoundOr(err, ErrExamNotFound, "get exam")
	}
	if err := checkExamOwner(exam, actor, action); err != nil {
		return nil, err
	}
	return exam, nil
}
