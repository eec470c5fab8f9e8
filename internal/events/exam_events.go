package events

import (
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/workflow"
	"github.com/google/uuid"
)

const (
	eventSource  = "exam-service"
	eventVersion = "1.0"
)

// EventType represents the kinds of domain events this service emits
type EventType string

const (
	EventExamPublished      = EventType(workflow.EventExamPublished)
	EventExamClosed         = EventType(workflow.EventExamClosed)
	EventAttemptStarted     = EventType(workflow.EventAttemptStarted)
	EventAttemptSubmitted   = EventType(workflow.EventAttemptSubmitted)
	EventAttemptGraded      = EventType(workflow.EventAttemptGraded)
	EventPerformanceUpdated = EventType(workflow.EventPerformanceUpdated)
)

// ExamEvent is the envelope for every event published by the service
type ExamEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Exam event payloads

type ExamPublishedEvent struct {
	ExamID          uint      `json:"exam_id"`
	Title           string    `json:"title"`
	BatchID         uint      `json:"batch_id"`
	DurationMinutes int       `json:"duration_minutes"`
	TotalPoints     int       `json:"total_points"`
	CreatedBy       string    `json:"created_by"`
	PublishedAt     time.Time `json:"published_at"`
}

type ExamClosedEvent struct {
	ExamID    uint      `json:"exam_id"`
	Title     string    `json:"title"`
	BatchID   uint      `json:"batch_id"`
	CreatedBy string    `json:"created_by"`
	ClosedAt  time.Time `json:"closed_at"`
}

// Attempt event payloads

type AttemptStartedEvent struct {
	AnswerSheetID uint      `json:"answer_sheet_id"`
	ExamID        uint      `json:"exam_id"`
	StudentID     string    `json:"student_id"`
	StartedAt     time.Time `json:"started_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

type AttemptSubmittedEvent struct {
	AnswerSheetID  uint                    `json:"answer_sheet_id"`
	ExamID         uint                    `json:"exam_id"`
	StudentID      string                  `json:"student_id"`
	SubmittedAt    time.Time               `json:"submitted_at"`
	Source         models.SubmissionSource `json:"source"`
	ObtainedPoints int                     `json:"obtained_points"`
	TotalPoints    int                     `json:"total_points"`
	PendingAnswers int                     `json:"pending_answers"`
}

type AttemptGradedEvent struct {
	AnswerSheetID  uint      `json:"answer_sheet_id"`
	ExamID         uint      `json:"exam_id"`
	StudentID      string    `json:"student_id"`
	GradedBy       string    `json:"graded_by"`
	GradedAt       time.Time `json:"graded_at"`
	ObtainedPoints int       `json:"obtained_points"`
	TotalPoints    int       `json:"total_points"`
}

type PerformanceUpdatedEvent struct {
	ExamID       uint    `json:"exam_id"`
	BatchID      uint    `json:"batch_id"`
	StudentID    string  `json:"student_id"`
	Percentage   float64 `json:"percentage"`
	BatchRank    int     `json:"batch_rank"`
	RankedPeers  int     `json:"ranked_peers"`
	BatchAverage float64 `json:"batch_average"`
}

// Event factory functions

func newEvent(t EventType, data interface{}) *ExamEvent {
	return &ExamEvent{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now().UTC(),
		Source:    eventSource,
		Version:   eventVersion,
		Data:      data,
	}
}

func NewExamPublishedEvent(exam *models.Exam) *ExamEvent {
	publishedAt := time.Now().UTC()
	if exam.PublishedAt != nil {
		publishedAt = *exam.PublishedAt
	}
	return newEvent(EventExamPublished, ExamPublishedEvent{
		ExamID:          exam.ID,
		Title:           exam.Title,
		BatchID:         exam.BatchID,
		DurationMinutes: exam.DurationMinutes,
		TotalPoints:     exam.SumPoints(),
		CreatedBy:       exam.CreatedBy,
		PublishedAt:     publishedAt,
	})
}

func NewExamClosedEvent(exam *models.Exam) *ExamEvent {
	closedAt := time.Now().UTC()
	if exam.ClosedAt != nil {
		closedAt = *exam.ClosedAt
	}
	return newEvent(EventExamClosed, ExamClosedEvent{
		ExamID:    exam.ID,
		Title:     exam.Title,
		BatchID:   exam.BatchID,
		CreatedBy: exam.CreatedBy,
		ClosedAt:  closedAt,
	})
}

func NewAttemptStartedEvent(sheet *models.AnswerSheet) *ExamEvent {
	return newEvent(EventAttemptStarted, AttemptStartedEvent{
		AnswerSheetID: sheet.ID,
		ExamID:        sheet.ExamID,
		StudentID:     sheet.StudentID,
		StartedAt:     sheet.StartedAt,
		ExpiresAt:     sheet.ExpiresAt,
	})
}

func NewAttemptSubmittedEvent(sheet *models.AnswerSheet) *ExamEvent {
	submittedAt := time.Now().UTC()
	if sheet.SubmittedAt != nil {
		submittedAt = *sheet.SubmittedAt
	}
	return newEvent(EventAttemptSubmitted, AttemptSubmittedEvent{
		AnswerSheetID:  sheet.ID,
		ExamID:         sheet.ExamID,
		StudentID:      sheet.StudentID,
		SubmittedAt:    submittedAt,
		Source:         sheet.SubmittedBy,
		ObtainedPoints: derefInt(sheet.ObtainedPoints),
		TotalPoints:    sheet.TotalPoints,
		PendingAnswers: sheet.PendingAnswers(),
	})
}

func NewAttemptGradedEvent(sheet *models.AnswerSheet, gradedBy string) *ExamEvent {
	gradedAt := time.Now().UTC()
	if sheet.GradedAt != nil {
		gradedAt = *sheet.GradedAt
	}
	return newEvent(EventAttemptGraded, AttemptGradedEvent{
		AnswerSheetID:  sheet.ID,
		ExamID:         sheet.ExamID,
		StudentID:      sheet.StudentID,
		GradedBy:       gradedBy,
		GradedAt:       gradedAt,
		ObtainedPoints: derefInt(sheet.ObtainedPoints),
		TotalPoints:    sheet.TotalPoints,
	})
}

func NewPerformanceUpdatedEvent(metrics *models.PerformanceMetrics, peers int, batchAverage float64) *ExamEvent {
	return newEvent(EventPerformanceUpdated, PerformanceUpdatedEvent{
		ExamID:       metrics.ExamID,
		BatchID:      metrics.BatchID,
		StudentID:    metrics.StudentID,
		Percentage:   metrics.Percentage,
		BatchRank:    metrics.BatchRank,
		RankedPeers:  peers,
		BatchAverage: batchAverage,
	})
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
