package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/metrics"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/stretchr/testify/require"
)

const testOrg = "acme"

var (
	faculty      = models.Actor{UserID: "prof", Role: models.RoleTeacher, Organization: testOrg}
	otherFaculty = models.Actor{UserID: "other-prof", Role: models.RoleTeacher, Organization: testOrg}
	alice        = models.Actor{UserID: "alice", Role: models.RoleStudent, Organization: testOrg}
	bob          = models.Actor{UserID: "bob", Role: models.RoleStudent, Organization: testOrg}
	mallory      = models.Actor{UserID: "mallory", Role: models.RoleStudent, Organization: testOrg}
)

func intPtr(v int) *int { return &v }

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	repo      *fakeRepo
	clock     *testClock
	publisher *events.MockEventPublisher
	metrics   *metrics.Metrics
	deps      Dependencies
	services  ServiceManager
	batchID   uint
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T, opts ...func(*Dependencies)) *testEnv {
	t.Helper()

	repo := newFakeRepo()
	repo.addUser(faculty.UserID, "Prof Ada", models.RoleTeacher, testOrg)
	repo.addUser(otherFaculty.UserID, "Prof Grace", models.RoleTeacher, testOrg)
	repo.addUser(alice.UserID, "Alice Smith", models.RoleStudent, testOrg)
	repo.addUser(bob.UserID, "Bob Jones", models.RoleStudent, testOrg)
	repo.addUser(mallory.UserID, "Mallory Moe", models.RoleStudent, testOrg)
	batchID := repo.addBatch(testOrg, alice.UserID, bob.UserID)

	logger := discardLogger()
	clock := newTestClock()
	publisher := events.NewMockEventPublisher(logger)
	m := metrics.New()

	deps := Dependencies{
		Repo:          repo,
		Publisher:     publisher,
		Metrics:       m,
		Logger:        logger,
		MaxImageBytes: 1 << 20,
		Now:           clock.Now,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	return &testEnv{
		repo:      repo,
		clock:     clock,
		publisher: publisher,
		metrics:   m,
		deps:      deps,
		services:  NewServiceManager(deps, SweeperConfig{BatchSize: 2}),
		batchID:   batchID,
	}
}

// publishedExam is a 60 minute exam with one 10 point objective question followed by one
// 10 point descriptive question
type publishedExam struct {
	exam          *models.Exam
	objective     *models.Question
	descriptive   *models.Question
	correctOption uint
	wrongOption   uint
}

func (e *testEnv) draftExam(t *testing.T, title string) *models.Exam {
	t.Helper()
	exam, err := e.services.Exam().Create(context.Background(), &CreateExamRequest{
		Title:           title,
		DurationMinutes: 60,
		BatchID:         e.batchID,
	}, faculty)
	require.NoError(t, err)
	return exam
}

func (e *testEnv) addQuestions(t *testing.T, examID uint) (*models.Question, *models.Question) {
	t.Helper()
	ctx := context.Background()

	objective, err := e.services.Exam().AddQuestion(ctx, examID, &CreateQuestionRequest{
		Type:        models.QuestionObjective,
		Text:        "2 + 2 = ?",
		Points:      10,
		OrderNumber: 1,
		Options: []CreateOptionRequest{
			{Text: "4", IsCorrect: true, OrderNumber: 1},
			{Text: "5", OrderNumber: 2},
		},
	}, faculty)
	require.NoError(t, err)

	descriptive, err := e.services.Exam().AddQuestion(ctx, examID, &CreateQuestionRequest{
		Type:        models.QuestionDescriptive,
		Text:        "Explain addition",
		Points:      10,
		OrderNumber: 2,
	}, faculty)
	require.NoError(t, err)

	return objective, descriptive
}

func (e *testEnv) publishedExam(t *testing.T) *publishedExam {
	t.Helper()
	exam := e.draftExam(t, "Arithmetic")
	objective, descriptive := e.addQuestions(t, exam.ID)

	published, err := e.services.Exam().Publish(context.Background(), exam.ID, faculty)
	require.NoError(t, err)

	pe := &publishedExam{exam: published, objective: objective, descriptive: descriptive}
	for _, o := range objective.Options {
		if o.IsCorrect {
			pe.correctOption = o.ID
		} else {
			pe.wrongOption = o.ID
		}
	}
	return pe
}

// answerFor returns the sheet's answer to question q
func answerFor(t *testing.T, sheet *models.AnswerSheet, q *models.Question) models.Answer {
	t.Helper()
	for _, a := range sheet.Answers {
		if a.QuestionID == q.ID {
			return a
		}
	}
	t.Fatalf("answer sheet %d has no answer for question %d", sheet.ID, q.ID)
	return models.Answer{}
}

// submitWith starts the exam for student, answers both questions and submits
func (e *testEnv) submitWith(t *testing.T, pe *publishedExam, student models.Actor, optionID uint) *models.AnswerSheet {
	t.Helper()
	ctx := context.Background()

	sheet, err := e.services.Attempt().Start(ctx, pe.exam.ID, student)
	require.NoError(t, err)

	_, err = e.services.Answer().SelectOption(ctx, answerFor(t, sheet, pe.objective).ID, optionID, student)
	require.NoError(t, err)

	text := "Addition combines quantities."
	_, err = e.services.Answer().Save(ctx, answerFor(t, sheet, pe.descriptive).ID, &SaveAnswerRequest{AnswerText: &text}, student)
	require.NoError(t, err)

	submitted, err := e.services.Attempt().Submit(ctx, sheet.ID, student)
	require.NoError(t, err)
	return submitted
}

// gradeAndFinalize awards descriptive points and finalizes the sheet
func (e *testEnv) gradeAndFinalize(t *testing.T, pe *publishedExam, sheet *models.AnswerSheet, points int) *models.AnswerSheet {
	t.Helper()
	ctx := context.Background()

	_, err := e.services.Grading().GradeAnswer(ctx, answerFor(t, sheet, pe.descriptive).ID, &GradeAnswerRequest{Points: intPtr(points)}, faculty)
	require.NoError(t, err)

	graded, err := e.services.Grading().SubmitGrading(ctx, sheet.ID, faculty)
	require.NoError(t, err)
	return graded
}
