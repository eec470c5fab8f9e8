package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/workflow"
	"github.com/SAP-F-2025/exam-service/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// errSubmitLost rolls back a submit whose guarded update found the sheet already submitted
var errSubmitLost = errors.New("answer sheet was submitted concurrently")

type attemptService struct {
	deps    Dependencies
	repo    repositories.Repository
	effects *effects
	log     *ServiceLogger
}

func NewAttemptService(deps Dependencies) AttemptService {
	deps = deps.withDefaults()
	return &attemptService{
		deps:    deps,
		repo:    deps.Repo,
		effects: newEffects(deps),
		log:     NewServiceLogger(deps.Logger, "attempt"),
	}
}

// ===== STUDENT CATALOGUE =====

func (s *attemptService) ListAvailable(ctx context.Context, actor models.Actor) ([]*StudentExamView, error) {
	batchIDs, err := s.repo.Batch().BatchIDsForStudent(ctx, nil, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get student batches: %w", err)
	}
	if batchIDs == nil {
		batchIDs = []uint{}
	}

	published := models.ExamStatusPublished
	exams, _, err := s.repo.Exam().List(ctx, nil, repositories.ExamFilters{
		Status:       &published,
		Organization: actor.Organization,
		BatchIDs:     batchIDs,
		Limit:        maxPageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list exams: %w", err)
	}

	views := make([]*StudentExamView, 0, len(exams))
	for _, exam := range exams {
		views = append(views, newStudentExamView(exam, false))
	}
	return views, nil
}

func (s *attemptService) GetExamForStudent(ctx context.Context, examID uint, actor models.Actor) (*StudentExamView, error) {
	exam, err := s.repo.Exam().GetByIDWithQuestions(ctx, nil, examID)
	if err != nil {
		return nil, notFoundOr(err, ErrExamNotFound, "get exam")
	}
	if err := s.checkEnrolled(ctx, exam, actor); err != nil {
		return nil, err
	}
	if exam.Status == models.ExamStatusDraft {
		return nil, ErrExamNotPublished
	}
	return newStudentExamView(exam, true), nil
}

// ===== ATTEMPTS =====

// Start returns the student's existing sheet for the exam whatever its status, otherwise
// materializes a new one. Two concurrent starts race on the (exam, student) unique index;
// the loser re-reads the winner's sheet.
func (s *attemptService) Start(ctx context.Context, examID uint, actor models.Actor) (*models.AnswerSheet, error) {
	ctx, span := tracing.StartSpan(ctx, "attempt.start",
		attribute.Int64("exam_id", int64(examID)),
		attribute.String("student_id", actor.UserID))
	defer span.End()

	op := s.log.WithOperation(ctx, "start_exam", actor.UserID)

	sheet, err := s.start(ctx, examID, actor)
	if err != nil {
		span.RecordError(err)
		op.LogResult(examID, "exam", err)
		return nil, err
	}

	op.LogResult(sheet.ID, "answer_sheet", nil)
	return sheet, nil
}

func (s *attemptService) start(ctx context.Context, examID uint, actor models.Actor) (*models.AnswerSheet, error) {
	existing, err := s.repo.AnswerSheet().GetByExamAndStudent(ctx, nil, examID, actor.UserID)
	if err == nil {
		return existing, nil
	}
	if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to get answer sheet: %w", err)
	}

	exam, err := s.repo.Exam().GetByIDWithQuestions(ctx, nil, examID)
	if err != nil {
		return nil, notFoundOr(err, ErrExamNotFound, "get exam")
	}
	if err := s.checkEnrolled(ctx, exam, actor); err != nil {
		return nil, err
	}
	if err := workflow.CheckStartable(exam); err != nil {
		return nil, err
	}

	sheet, intents := workflow.NewAnswerSheet(exam, actor.UserID, s.deps.Now())
	err = s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		return s.repo.AnswerSheet().Create(ctx, tx, &sheet)
	})
	if repositories.IsDuplicateKeyError(err) {
		s.log.Logger().InfoContext(ctx, "Concurrent start detected, returning existing answer sheet",
			"exam_id", examID,
			"student_id", actor.UserID)
		winner, rerr := s.repo.AnswerSheet().GetByExamAndStudent(ctx, nil, examID, actor.UserID)
		if repositories.IsNotFoundError(rerr) {
			return nil, ErrDuplicateAttempt
		}
		if rerr != nil {
			return nil, fmt.Errorf("failed to re-read answer sheet: %w", rerr)
		}
		return winner, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create answer sheet: %w", err)
	}

	if s.deps.Metrics != nil {
		s.deps.Metrics.AttemptsStarted.Inc()
	}
	s.effects.dispatch(ctx, intents, func(name workflow.EventName) *events.ExamEvent {
		if name == workflow.EventAttemptStarted {
			return events.NewAttemptStartedEvent(&sheet)
		}
		return nil
	})
	return &sheet, nil
}

// GetActive returns the student's open sheet, or nil when there is none
func (s *attemptService) GetActive(ctx context.Context, actor models.Actor) (*models.AnswerSheet, error) {
	sheet, err := s.repo.AnswerSheet().GetActiveByStudent(ctx, nil, actor.UserID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active answer sheet: %w", err)
	}
	return sheet, nil
}

func (s *attemptService) GetAnswerSheet(ctx context.Context, sheetID uint, actor models.Actor) (*models.AnswerSheet, error) {
	sheet, err := s.repo.AnswerSheet().GetByID(ctx, nil, sheetID)
	if err != nil {
		return nil, notFoundOr(err, ErrAnswerSheetNotFound, "get answer sheet")
	}
	if sheet.StudentID == actor.UserID {
		return sheet, nil
	}

	exam, err := s.repo.Exam().GetByID(ctx, nil, sheet.ExamID)
	if err != nil {
		return nil, notFoundOr(err, ErrExamNotFound, "get exam")
	}
	if err := checkExamOwner(exam, actor, "view_answer_sheet"); err != nil {
		return nil, err
	}
	return sheet, nil
}

// ===== SUBMISSION =====

func (s *attemptService) Submit(ctx context.Context, sheetID uint, actor models.Actor) (*models.AnswerSheet, error) {
	op := s.log.WithOperation(ctx, "submit_answer_sheet", actor.UserID)

	sheet, err := s.repo.AnswerSheet().GetByID(ctx, nil, sheetID)
	if err != nil {
		err = notFoundOr(err, ErrAnswerSheetNotFound, "get answer sheet")
		op.LogResult(sheetID, "answer_sheet", err)
		return nil, err
	}
	if err := checkSheetOwner(sheet, actor, "submit"); err != nil {
		op.LogResult(sheetID, "answer_sheet", err)
		return nil, err
	}

	submitted, _, err := s.submit(ctx, sheetID, models.SubmittedByStudent)
	op.LogResult(sheetID, "answer_sheet", err)
	return submitted, err
}

func (s *attemptService) SubmitExpired(ctx context.Context, sheetID uint) (*models.AnswerSheet, bool, error) {
	return s.submit(ctx, sheetID, models.SubmittedBySweep)
}

// submit is the one path for both the student and the sweep. The sheet row is locked for
// the transition and persisted with a guarded IN_PROGRESS update, so exactly one caller
// grades the sheet; everyone else gets the stored result. The bool reports whether this
// call performed the transition.
func (s *attemptService) submit(ctx context.Context, sheetID uint, source models.SubmissionSource) (*models.AnswerSheet, bool, error) {
	ctx, span := tracing.StartSpan(ctx, "attempt.submit",
		attribute.Int64("answer_sheet_id", int64(sheetID)),
		attribute.String("source", string(source)))
	defer span.End()

	now := s.deps.Now()

	var result models.AnswerSheet
	var transition workflow.SheetTransition
	err := s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		sheet, err := s.repo.AnswerSheet().GetByIDForUpdate(ctx, tx, sheetID)
		if err != nil {
			return notFoundOr(err, ErrAnswerSheetNotFound, "lock answer sheet")
		}
		result = *sheet

		if sheet.Status != models.SheetInProgress {
			return nil
		}
		// the sweep may have listed a sheet a moment before its deadline
		if source == models.SubmittedBySweep && now.Before(sheet.ExpiresAt) {
			return nil
		}

		questions, err := s.repo.Question().GetByExam(ctx, tx, sheet.ExamID)
		if err != nil {
			return fmt.Errorf("failed to get questions: %w", err)
		}

		t := workflow.SubmitSheet(*sheet, questionMap(questions), source, now)
		won, err := s.repo.AnswerSheet().MarkSubmitted(ctx, tx, &t.Sheet)
		if err != nil {
			return err
		}
		if !won {
			return errSubmitLost
		}
		if err := s.repo.Answer().UpdateGrades(ctx, tx, touchedAnswers(&t.Sheet, t.Touched)); err != nil {
			return fmt.Errorf("failed to store auto grades: %w", err)
		}

		result = t.Sheet
		transition = t
		return nil
	})

	if errors.Is(err, errSubmitLost) {
		s.log.Logger().InfoContext(ctx, "Answer sheet already submitted by another path",
			"answer_sheet_id", sheetID,
			"source", source)
		winner, rerr := s.repo.AnswerSheet().GetByID(ctx, nil, sheetID)
		if rerr != nil {
			return nil, false, fmt.Errorf("failed to re-read answer sheet: %w", rerr)
		}
		return winner, false, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, false, err
	}

	if transition.Changed {
		s.log.Logger().InfoContext(ctx, "Answer sheet submitted",
			"answer_sheet_id", result.ID,
			"exam_id", result.ExamID,
			"student_id", result.StudentID,
			"source", source,
			"obtained_points", derefInt(result.ObtainedPoints))
		if s.deps.Metrics != nil {
			s.deps.Metrics.SheetsSubmitted.WithLabelValues(string(source)).Inc()
		}
		s.effects.dispatch(ctx, transition.Intents, func(name workflow.EventName) *events.ExamEvent {
			if name == workflow.EventAttemptSubmitted {
				return events.NewAttemptSubmittedEvent(&result)
			}
			return nil
		})
	}
	return &result, transition.Changed, nil
}

// checkEnrolled requires the student to belong to the exam's batch and organization
func (s *attemptService) checkEnrolled(ctx context.Context, exam *models.Exam, actor models.Actor) error {
	if !actor.SameOrganization(exam.Organization) {
		return NewPermissionError(actor.UserID, exam.ID, "exam", "attempt", "organization mismatch")
	}
	member, err := s.repo.Batch().IsMember(ctx, nil, exam.BatchID, actor.UserID)
	if err != nil {
		return fmt.Errorf("failed to check batch membership: %w", err)
	}
	if !member {
		return ErrNotBatchMember
	}
	return nil
}
