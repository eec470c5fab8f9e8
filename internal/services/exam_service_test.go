package services

import (
	"context"
	"testing"

	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExamService_CreateStartsInDraft(t *testing.T) {
	env := newTestEnv(t)

	exam := env.draftExam(t, "Midterm")

	assert.Equal(t, models.ExamStatusDraft, exam.Status)
	assert.Equal(t, faculty.UserID, exam.CreatedBy)
	assert.Equal(t, testOrg, exam.Organization)
	assert.Nil(t, exam.PublishedAt)
}

func TestExamService_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.services.Exam().Create(ctx, &CreateExamRequest{Title: "", DurationMinutes: 60, BatchID: env.batchID}, faculty)
	assert.True(t, IsValidation(err))

	_, err = env.services.Exam().Create(ctx, &CreateExamRequest{Title: "Quiz", DurationMinutes: 60, BatchID: 999}, faculty)
	assert.ErrorIs(t, err, ErrBatchNotFound)

	_, err = env.services.Exam().Create(ctx, &CreateExamRequest{Title: "Quiz", DurationMinutes: 60, BatchID: env.batchID}, alice)
	assert.True(t, IsUnauthorized(err))
}

func TestExamService_PublishRequiresQuestions(t *testing.T) {
	env := newTestEnv(t)
	exam := env.draftExam(t, "Empty")

	_, err := env.services.Exam().Publish(context.Background(), exam.ID, faculty)

	assert.ErrorIs(t, err, ErrExamHasNoQuestions)
	assert.True(t, IsInvalidState(err))
	assert.Empty(t, env.publisher.GetPublishedEvents())
}

func TestExamService_PublishIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	pe := env.publishedExam(t)

	assert.Equal(t, models.ExamStatusPublished, pe.exam.Status)
	assert.Equal(t, 20, pe.exam.TotalPoints)
	assert.Equal(t, 2, pe.exam.QuestionsCount)
	require.NotNil(t, pe.exam.PublishedAt)

	again, err := env.services.Exam().Publish(context.Background(), pe.exam.ID, faculty)
	require.NoError(t, err)
	assert.Equal(t, models.ExamStatusPublished, again.Status)
	assert.Equal(t, pe.exam.PublishedAt.Unix(), again.PublishedAt.Unix())
	assert.Len(t, env.publisher.EventsOfType(events.EventExamPublished), 1)
}

func TestExamService_StructureFrozenAfterPublish(t *testing.T) {
	env := newTestEnv(t)
	pe := env.publishedExam(t)
	ctx := context.Background()

	_, err := env.services.Exam().AddQuestion(ctx, pe.exam.ID, &CreateQuestionRequest{
		Type: models.QuestionDescriptive, Text: "Late", Points: 5, OrderNumber: 3,
	}, faculty)
	assert.ErrorIs(t, err, ErrExamNotEditable)

	err = env.services.Exam().DeleteQuestion(ctx, pe.descriptive.ID, faculty)
	assert.ErrorIs(t, err, ErrExamNotEditable)

	title := "Renamed"
	_, err = env.services.Exam().Update(ctx, pe.exam.ID, &UpdateExamRequest{Title: &title}, faculty)
	assert.ErrorIs(t, err, ErrExamNotEditable)

	exam, err := env.services.Exam().GetByID(ctx, pe.exam.ID, faculty)
	require.NoError(t, err)
	assert.Len(t, exam.Questions, 2)
	assert.Equal(t, "Arithmetic", exam.Title)
}

func TestExamService_DraftEditing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	exam := env.draftExam(t, "Draft")
	_, descriptive := env.addQuestions(t, exam.ID)

	duration := 90
	updated, err := env.services.Exam().Update(ctx, exam.ID, &UpdateExamRequest{DurationMinutes: &duration}, faculty)
	require.NoError(t, err)
	assert.Equal(t, 90, updated.DurationMinutes)

	require.NoError(t, env.services.Exam().DeleteQuestion(ctx, descriptive.ID, faculty))

	loaded, err := env.services.Exam().GetByID(ctx, exam.ID, faculty)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.QuestionsCount)
	assert.Equal(t, 10, loaded.TotalPoints)
}

func TestExamService_AddQuestionValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	exam := env.draftExam(t, "Draft")

	tests := []struct {
		name string
		req  CreateQuestionRequest
	}{
		{
			name: "two correct options",
			req: CreateQuestionRequest{
				Type: models.QuestionObjective, Text: "Pick", Points: 5, OrderNumber: 1,
				Options: []CreateOptionRequest{
					{Text: "a", IsCorrect: true, OrderNumber: 1},
					{Text: "b", IsCorrect: true, OrderNumber: 2},
				},
			},
		},
		{
			name: "no correct option",
			req: CreateQuestionRequest{
				Type: models.QuestionObjective, Text: "Pick", Points: 5, OrderNumber: 1,
				Options: []CreateOptionRequest{
					{Text: "a", OrderNumber: 1},
					{Text: "b", OrderNumber: 2},
				},
			},
		},
		{
			name: "zero points",
			req:  CreateQuestionRequest{Type: models.QuestionDescriptive, Text: "Explain", Points: 0, OrderNumber: 1},
		},
		{
			name: "unknown type",
			req:  CreateQuestionRequest{Type: "ESSAY", Text: "Explain", Points: 5, OrderNumber: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := env.services.Exam().AddQuestion(ctx, exam.ID, &req, faculty)
			assert.True(t, IsValidation(err), "expected validation error, got %v", err)
		})
	}
}

func TestExamService_AddQuestionRejectsDuplicateOrder(t *testing.T) {
	env := newTestEnv(t)
	exam := env.draftExam(t, "Draft")
	env.addQuestions(t, exam.ID)

	_, err := env.services.Exam().AddQuestion(context.Background(), exam.ID, &CreateQuestionRequest{
		Type: models.QuestionDescriptive, Text: "Again", Points: 5, OrderNumber: 2,
	}, faculty)

	assert.True(t, IsValidation(err))
}

func TestExamService_OwnershipEnforced(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	exam := env.draftExam(t, "Mine")

	_, err := env.services.Exam().AddQuestion(ctx, exam.ID, &CreateQuestionRequest{
		Type: models.QuestionDescriptive, Text: "Theirs", Points: 5, OrderNumber: 1,
	}, otherFaculty)
	assert.True(t, IsUnauthorized(err))

	_, err = env.services.Exam().Publish(ctx, exam.ID, otherFaculty)
	assert.True(t, IsUnauthorized(err))

	_, err = env.services.Exam().GetByID(ctx, exam.ID, models.Actor{UserID: faculty.UserID, Role: models.RoleTeacher, Organization: "globex"})
	assert.True(t, IsUnauthorized(err))

	_, err = env.services.Exam().GetByID(ctx, 999, faculty)
	assert.True(t, IsNotFound(err))
}

func TestExamService_Close(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	draft := env.draftExam(t, "Draft")
	_, err := env.services.Exam().Close(ctx, draft.ID, faculty)
	assert.ErrorIs(t, err, ErrExamNotPublished)

	pe := env.publishedExam(t)
	closed, err := env.services.Exam().Close(ctx, pe.exam.ID, faculty)
	require.NoError(t, err)
	assert.Equal(t, models.ExamStatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)

	again, err := env.services.Exam().Close(ctx, pe.exam.ID, faculty)
	require.NoError(t, err)
	assert.Equal(t, models.ExamStatusClosed, again.Status)
	assert.Len(t, env.publisher.EventsOfType(events.EventExamClosed), 1)

	_, err = env.services.Attempt().Start(ctx, pe.exam.ID, alice)
	assert.ErrorIs(t, err, ErrExamClosed)
}

func TestExamService_ListByFaculty(t *testing.T) {
	env := newTestEnv(t)
	env.draftExam(t, "One")
	env.draftExam(t, "Two")

	exams, total, err := env.services.Exam().ListByFaculty(context.Background(), faculty, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, exams, 2)

	exams, total, err = env.services.Exam().ListByFaculty(context.Background(), otherFaculty, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, exams)
}

func TestExamService_ListBatchesScopedToOrganization(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.publishedExam(t)
	env.draftExam(t, "Still drafting")
	env.repo.addBatch("globex", "zed")

	batches, err := env.services.Exam().ListBatches(ctx, faculty)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, env.batchID, batches[0].ID)
	assert.Equal(t, 2, batches[0].StudentCount)
	assert.Equal(t, 1, batches[0].ExamCount)

	_, err = env.services.Exam().ListBatches(ctx, alice)
	assert.True(t, IsUnauthorized(err))
}
