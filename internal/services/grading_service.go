package services

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/validator"
	"github.com/SAP-F-2025/exam-service/internal/workflow"
	"github.com/SAP-F-2025/exam-service/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

type gradingService struct {
	deps        Dependencies
	repo        repositories.Repository
	validator   *validator.Validator
	performance PerformanceService
	effects     *effects
	log         *ServiceLogger
}

func NewGradingService(deps Dependencies, performance PerformanceService) GradingService {
	deps = deps.withDefaults()
	if performance == nil {
		performance = NewPerformanceService(deps)
	}
	return &gradingService{
		deps:        deps,
		repo:        deps.Repo,
		validator:   deps.Validator,
		performance: performance,
		effects:     newEffects(deps),
		log:         NewServiceLogger(deps.Logger, "grading"),
	}
}

// ===== QUEUE & DETAILS =====

func (s *gradingService) EvaluationQueue(ctx context.Context, examID *uint, actor models.Actor, limit, offset int) (*EvaluationQueueResponse, error) {
	if err := requireFaculty(actor, "answer_sheet", "list_queue"); err != nil {
		return nil, err
	}
	limit, offset = normalizePage(limit, offset)

	items, total, err := s.repo.AnswerSheet().EvaluationQueue(ctx, nil, repositories.EvaluationQueueFilters{
		ExamID:       examID,
		CreatedBy:    actor.UserID,
		Organization: actor.Organization,
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation queue: %w", err)
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.StudentID)
	}
	users, err := s.repo.User().GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get students: %w", err)
	}

	resp := &EvaluationQueueResponse{
		Items:  make([]AnswerSheetSummary, 0, len(items)),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}
	for _, item := range items {
		summary := AnswerSheetSummary{
			ID:             item.AnswerSheetID,
			ExamID:         item.ExamID,
			ExamTitle:      item.ExamTitle,
			StudentID:      item.StudentID,
			SubmittedAt:    item.SubmittedAt,
			Status:         item.Status,
			TotalPoints:    item.TotalPoints,
			ObtainedPoints: item.ObtainedPoints,
			PendingAnswers: item.PendingAnswers,
		}
		if u, ok := users[item.StudentID]; ok {
			summary.StudentName = u.FullName
		}
		resp.Items = append(resp.Items, summary)
	}
	return resp, nil
}

func (s *gradingService) GetAnswerSheetDetails(ctx context.Context, sheetID uint, actor models.Actor) (*AnswerSheetDetails, error) {
	sheet, err := s.repo.AnswerSheet().GetByID(ctx, nil, sheetID)
	if err != nil {
		return nil, notFoundOr(err, ErrAnswerSheetNotFound, "get answer sheet")
	}
	exam, err := s.repo.Exam().GetByIDWithQuestions(ctx, nil, sheet.ExamID)
	if err != nil {
		return nil, notFoundOr(err, ErrExamNotFound, "get exam")
	}
	if err := checkExamOwner(exam, actor, "view_answer_sheet"); err != nil {
		return nil, err
	}

	details := &AnswerSheetDetails{
		AnswerSheet: *sheet,
		ExamTitle:   exam.Title,
		Answers:     make([]AnswerDetail, 0, len(sheet.Answers)),
	}
	details.AnswerSheet.Answers = nil

	if user, err := s.repo.User().GetByID(ctx, sheet.StudentID); err == nil {
		details.StudentName = user.FullName
	} else if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}

	questions := questionMap(exam.Questions)
	for _, a := range sheet.Answers {
		detail := AnswerDetail{Answer: a}
		if q, ok := questions[a.QuestionID]; ok {
			detail.Question = *q
		}
		details.Answers = append(details.Answers, detail)
	}
	return details, nil
}

// ===== GRADING =====

func (s *gradingService) GradeAnswer(ctx context.Context, answerID uint, req *GradeAnswerRequest, actor models.Actor) (*models.Answer, error) {
	op := s.log.WithOperation(ctx, "grade_answer", actor.UserID)

	if err := s.validator.Validate(req); err != nil {
		op.LogResult(answerID, "answer", err)
		return nil, err
	}

	var before, graded models.Answer
	err := s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		answer, err := s.repo.Answer().GetByID(ctx, tx, answerID)
		if err != nil {
			return notFoundOr(err, ErrAnswerNotFound, "get answer")
		}
		sheet, _, err := s.lockOwnedSheet(ctx, tx, answer.AnswerSheetID, actor, "grade")
		if err != nil {
			return err
		}
		idx, ok := findAnswer(sheet, answerID)
		if !ok {
			return ErrAnswerNotFound
		}
		before = sheet.Answers[idx]

		question, err := s.repo.Question().GetByID(ctx, tx, before.QuestionID)
		if err != nil {
			return notFoundOr(err, ErrQuestionNotFound, "get question")
		}

		graded, _, err = workflow.GradeAnswer(sheet, before, question, *req.Points, req.Feedback, actor.UserID, s.deps.Now())
		if err != nil {
			return err
		}
		if err := s.repo.Answer().UpdateGrades(ctx, tx, []models.Answer{graded}); err != nil {
			return fmt.Errorf("failed to store grade: %w", err)
		}

		sheet.Answers[idx] = graded
		if err := s.repo.AnswerSheet().UpdateObtainedPoints(ctx, tx, sheet.ID, sheet.SumAwarded()); err != nil {
			return fmt.Errorf("failed to update obtained points: %w", err)
		}
		return nil
	})

	op.LogResult(answerID, "answer", err)
	if err != nil {
		return nil, err
	}
	op.LogAudit(answerID, "answer", before.PointsAwarded, graded.PointsAwarded)
	return &graded, nil
}

func (s *gradingService) AutoGrade(ctx context.Context, sheetID uint, actor models.Actor) (*models.AnswerSheet, error) {
	op := s.log.WithOperation(ctx, "auto_grade", actor.UserID)

	var result models.AnswerSheet
	err := s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		sheet, _, err := s.lockOwnedSheet(ctx, tx, sheetID, actor, "auto_grade")
		if err != nil {
			return err
		}
		questions, err := s.repo.Question().GetByExam(ctx, tx, sheet.ExamID)
		if err != nil {
			return fmt.Errorf("failed to get questions: %w", err)
		}

		t, err := workflow.AutoGradePending(*sheet, questionMap(questions), s.deps.Now())
		if err != nil {
			return err
		}
		result = t.Sheet
		if !t.Changed {
			return nil
		}

		if err := s.repo.Answer().UpdateGrades(ctx, tx, touchedAnswers(&t.Sheet, t.Touched)); err != nil {
			return fmt.Errorf("failed to store auto grades: %w", err)
		}
		if err := s.repo.AnswerSheet().UpdateObtainedPoints(ctx, tx, sheetID, derefInt(t.Sheet.ObtainedPoints)); err != nil {
			return fmt.Errorf("failed to update obtained points: %w", err)
		}
		return nil
	})

	op.LogResult(sheetID, "answer_sheet", err)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *gradingService) SetOverallFeedback(ctx context.Context, sheetID uint, req *FeedbackRequest, actor models.Actor) (*models.AnswerSheet, error) {
	op := s.log.WithOperation(ctx, "set_overall_feedback", actor.UserID)

	if err := s.validator.Validate(req); err != nil {
		op.LogResult(sheetID, "answer_sheet", err)
		return nil, err
	}

	var result models.AnswerSheet
	err := s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		sheet, _, err := s.lockOwnedSheet(ctx, tx, sheetID, actor, "feedback")
		if err != nil {
			return err
		}
		t, err := workflow.SetOverallFeedback(*sheet, req.Feedback)
		if err != nil {
			return err
		}
		if err := s.repo.AnswerSheet().UpdateFeedback(ctx, tx, sheetID, t.Sheet.OverallFeedback); err != nil {
			return fmt.Errorf("failed to store feedback: %w", err)
		}
		result = t.Sheet
		return nil
	})

	op.LogResult(sheetID, "answer_sheet", err)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// SubmitGrading finalizes the sheet and re-ranks its batch in one transaction. The sheet
// lock excludes concurrent GradeAnswer calls, so the completeness check sees every grade.
func (s *gradingService) SubmitGrading(ctx context.Context, sheetID uint, actor models.Actor) (*models.AnswerSheet, error) {
	ctx, span := tracing.StartSpan(ctx, "grading.submit",
		attribute.Int64("answer_sheet_id", int64(sheetID)))
	defer span.End()

	op := s.log.WithOperation(ctx, "submit_grading", actor.UserID)
	now := s.deps.Now()

	var transition workflow.SheetTransition
	var exam *models.Exam
	var recomputed *RecomputeResult
	err := s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		sheet, e, err := s.lockOwnedSheet(ctx, tx, sheetID, actor, "submit_grading")
		if err != nil {
			return err
		}
		// serializes rank recomputation per exam
		exam, err = s.repo.Exam().GetByIDForUpdate(ctx, tx, e.ID)
		if err != nil {
			return notFoundOr(err, ErrExamNotFound, "lock exam")
		}

		transition, err = workflow.FinalizeGrading(*sheet, now)
		if err != nil {
			return err
		}
		if err := s.repo.AnswerSheet().MarkGraded(ctx, tx, &transition.Sheet); err != nil {
			return err
		}

		if transition.Intents.Has(workflow.IntentRecomputePerformance) {
			recomputed, err = s.performance.Recompute(ctx, tx, &transition.Sheet, exam, now)
			if err != nil {
				return err
			}
		}
		return nil
	})

	op.LogResult(sheetID, "answer_sheet", err)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	sheet := transition.Sheet
	if s.deps.Metrics != nil {
		s.deps.Metrics.SheetsGraded.Inc()
	}
	op.LogAudit(sheetID, "answer_sheet", models.SheetSubmitted, sheet.Status)

	s.effects.dispatch(ctx, transition.Intents, func(name workflow.EventName) *events.ExamEvent {
		if name == workflow.EventAttemptGraded {
			return events.NewAttemptGradedEvent(&sheet, actor.UserID)
		}
		return nil
	})
	if recomputed != nil {
		s.effects.publish(ctx, events.NewPerformanceUpdatedEvent(&recomputed.Metrics, recomputed.RankedPeers, recomputed.BatchAverage))
	}
	if transition.Intents.Has(workflow.IntentInvalidateCache) {
		peers := []string{sheet.StudentID}
		if recomputed != nil {
			peers = recomputed.PeerIDs
		}
		s.effects.invalidate(ctx, exam, peers)
	}
	return &sheet, nil
}

// lockOwnedSheet row-locks the sheet and checks the caller owns its exam
func (s *gradingService) lockOwnedSheet(ctx context.Context, tx *gorm.DB, sheetID uint, actor models.Actor, action string) (*models.AnswerSheet, *models.Exam, error) {
	sheet, err := s.repo.AnswerSheet().GetByIDForUpdate(ctx, tx, sheetID)
	if err != nil {
		return nil, nil, notFoundOr(err, ErrAnswerSheetNotFound, "lock answer sheet")
	}
	exam, err := s.repo.Exam().GetByID(ctx, tx, sheet.ExamID)
	if err != nil {
		return nil, nil, notFoundOr(err, ErrExamNotFound, "get exam")
	}
	if err := checkExamOwner(exam, actor, action); err != nil {
		return nil, nil, err
	}
	return sheet, exam, nil
}
