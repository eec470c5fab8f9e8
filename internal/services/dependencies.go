package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/cache"
	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/metrics"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/storage"
	"github.com/SAP-F-2025/exam-service/internal/validator"
	"github.com/SAP-F-2025/exam-service/internal/workflow"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	defaultCacheTTL = 10 * time.Minute
)

// Dependencies are the collaborators shared by every service
type Dependencies struct {
	Repo      repositories.Repository
	Validator *validator.Validator
	Publisher events.EventPublisher
	Cache     cache.CacheService
	Images    storage.ImageStore
	Metrics   *metrics.Metrics
	Logger    *slog.Logger

	CacheTTL      time.Duration
	MaxImageBytes int64

	// Now defaults to time.Now; tests pin it
	Now func() time.Time
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Validator == nil {
		d.Validator = validator.New()
	}
	if d.Publisher == nil {
		d.Publisher = events.NewMockEventPublisher(d.Logger)
	}
	if d.Cache == nil {
		d.Cache = cache.NewNoopCache()
	}
	if d.CacheTTL <= 0 {
		d.CacheTTL = defaultCacheTTL
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// effects carries out the intents a workflow transition returned, after its
// transaction committed. Failures here never fail the operation.
type effects struct {
	publisher events.EventPublisher
	cache     cache.CacheService
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func newEffects(d Dependencies) *effects {
	return &effects{
		publisher: d.Publisher,
		cache:     d.Cache,
		metrics:   d.Metrics,
		logger:    d.Logger,
	}
}

// dispatch publishes every event named by intents, in order. build returns nil to skip one.
func (e *effects) dispatch(ctx context.Context, intents workflow.Intents, build func(workflow.EventName) *events.ExamEvent) {
	for _, name := range intents.Events() {
		event := build(name)
		if event == nil {
			continue
		}
		e.publish(ctx, event)
	}
}

func (e *effects) publish(ctx context.Context, event *events.ExamEvent) {
	if err := e.publisher.PublishEvent(ctx, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish event",
			"event_type", event.Type,
			"event_id", event.ID,
			"error", err)
		if e.metrics != nil {
			e.metrics.EventPublishFails.WithLabelValues(string(event.Type)).Inc()
		}
	}
}

// invalidate drops the cached read models of every listed student plus the exam leaderboard
func (e *effects) invalidate(ctx context.Context, exam *models.Exam, studentIDs []string) {
	for _, id := range studentIDs {
		if err := e.cache.DeletePattern(ctx, cache.StudentPattern(id)); err != nil {
			e.logger.WarnContext(ctx, "Failed to invalidate student cache", "student_id", id, "error", err)
		}
	}
	if err := e.cache.Delete(ctx, cache.LeaderboardKey(exam.ID)); err != nil {
		e.logger.WarnContext(ctx, "Failed to invalidate leaderboard cache", "exam_id", exam.ID, "error", err)
	}
}

// ===== AUTHORIZATION HELPERS =====

func requireFaculty(actor models.Actor, resource, action string) error {
	if !actor.IsFaculty() {
		return NewPermissionError(actor.UserID, 0, resource, action, "faculty role required")
	}
	return nil
}

// checkExamOwner allows only the creating faculty member within the exam's organization
func checkExamOwner(exam *models.Exam, actor models.Actor, action string) error {
	if !actor.IsFaculty() || exam.CreatedBy != actor.UserID {
		return NewPermissionError(actor.UserID, exam.ID, "exam", action, "not the exam owner")
	}
	if !actor.SameOrganization(exam.Organization) {
		return NewPermissionError(actor.UserID, exam.ID, "exam", action, "organization mismatch")
	}
	return nil
}

func checkSheetOwner(sheet *models.AnswerSheet, actor models.Actor, action string) error {
	if sheet.StudentID != actor.UserID {
		return NewPermissionError(actor.UserID, sheet.ID, "answer_sheet", action, "not the answer sheet owner")
	}
	return nil
}

func questionMap(questions []models.Question) map[uint]*models.Question {
	m := make(map[uint]*models.Question, len(questions))
	for i := range questions {
		m[questions[i].ID] = &questions[i]
	}
	return m
}

// touchedAnswers returns the answers at the given indexes
func touchedAnswers(sheet *models.AnswerSheet, touched []int) []models.Answer {
	out := make([]models.Answer, 0, len(touched))
	for _, i := range touched {
		out = append(out, sheet.Answers[i])
	}
	return out
}

func findAnswer(sheet *models.AnswerSheet, answerID uint) (int, bool) {
	for i := range sheet.Answers {
		if sheet.Answers[i].ID == answerID {
			return i, true
		}
	}
	return -1, false
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
