package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockLease struct {
	mock.Mock
}

func (m *mockLease) TryAcquire(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *mockLease) Release(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// studentFirstAttempts lets the student submit just before the sweep reaches the sheet
type studentFirstAttempts struct {
	AttemptService
	before func(sheetID uint)
}

func (a studentFirstAttempts) SubmitExpired(ctx context.Context, sheetID uint) (*models.AnswerSheet, bool, error) {
	a.before(sheetID)
	return a.AttemptService.SubmitExpired(ctx, sheetID)
}

type mockExpiredSubmitter struct {
	AttemptService
	mock.Mock
}

func (m *mockExpiredSubmitter) SubmitExpired(ctx context.Context, sheetID uint) (*models.AnswerSheet, bool, error) {
	args := m.Called(ctx, sheetID)
	return nil, args.Bool(0), args.Error(1)
}

func TestSweeper_SubmitsExpiredSheets(t *testing.T) {
	env := newTestEnv(t)
	pe := env.publishedExam(t)
	ctx := context.Background()

	repo := env.services.Repository()
	aliceSheet := startedSheet(t, env, pe, alice)
	_, err := env.services.Answer().SelectOption(ctx, answerFor(t, aliceSheet, pe.objective).ID, pe.correctOption, alice)
	require.NoError(t, err)
	bobSheet := startedSheet(t, env, pe, bob)

	env.clock.Advance(61 * time.Minute)

	submitted, err := env.services.Sweeper().RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, submitted)

	for _, id := range []uint{aliceSheet.ID, bobSheet.ID} {
		sheet, err := repo.AnswerSheet().GetByID(ctx, nil, id)
		require.NoError(t, err)
		assert.Equal(t, models.SheetSubmitted, sheet.Status)
		assert.Equal(t, models.SubmittedBySweep, sheet.SubmittedBy)
	}
	stored, err := repo.AnswerSheet().GetByID(ctx, nil, aliceSheet.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, *stored.ObtainedPoints)

	assert.Len(t, env.publisher.EventsOfType(events.EventAttemptSubmitted), 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(env.metrics.SheetsSubmitted.WithLabelValues("sweep")))

	submitted, err = env.services.Sweeper().RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, submitted)
	assert.Equal(t, 2.0, testutil.ToFloat64(env.metrics.SweepRuns.WithLabelValues("ok")))
}

func TestSweeper_PagesThroughBatches(t *testing.T) {
	env := newTestEnv(t)
	pe := env.publishedExam(t)
	carol := models.Actor{UserID: "carol", Role: models.RoleStudent, Organization: testOrg}
	env.repo.mu.Lock()
	env.repo.members[env.batchID][carol.UserID] = true
	env.repo.mu.Unlock()

	for _, s := range []models.Actor{alice, bob, carol} {
		startedSheet(t, env, pe, s)
	}
	env.clock.Advance(2 * time.Hour)

	// the test sweeper lists two sheets per page
	submitted, err := env.services.Sweeper().RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, submitted)
}

func TestSweeper_IgnoresOpenSheets(t *testing.T) {
	env := newTestEnv(t)
	pe := env.publishedExam(t)
	sheet := startedSheet(t, env, pe, alice)
	env.clock.Advance(30 * time.Minute)

	submitted, err := env.services.Sweeper().RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, submitted)

	stored, err := env.services.Attempt().GetAnswerSheet(context.Background(), sheet.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, models.SheetInProgress, stored.Status)
}

func TestSweeper_SkipsWhenLeaseHeldElsewhere(t *testing.T) {
	env := newTestEnv(t)
	pe := env.publishedExam(t)
	startedSheet(t, env, pe, alice)
	env.clock.Advance(2 * time.Hour)

	lease := &mockLease{}
	lease.On("TryAcquire", mock.Anything).Return(false, nil).Once()

	sweeper := NewExpirySweeper(env.deps, env.services.Attempt(), SweeperConfig{Lease: lease})
	submitted, err := sweeper.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Zero(t, submitted)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.SweepRuns.WithLabelValues("skipped")))
	lease.AssertExpectations(t)
	lease.AssertNotCalled(t, "Release", mock.Anything)
}

func TestSweeper_ReleasesLeaseAfterPass(t *testing.T) {
	env := newTestEnv(t)
	pe := env.publishedExam(t)
	startedSheet(t, env, pe, alice)
	env.clock.Advance(2 * time.Hour)

	lease := &mockLease{}
	lease.On("TryAcquire", mock.Anything).Return(true, nil).Once()
	lease.On("Release", mock.Anything).Return(nil).Once()

	sweeper := NewExpirySweeper(env.deps, env.services.Attempt(), SweeperConfig{Lease: lease})
	submitted, err := sweeper.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, submitted)
	lease.AssertExpectations(t)
}

func TestSweeper_LeaseErrorFailsPass(t *testing.T) {
	env := newTestEnv(t)

	lease := &mockLease{}
	lease.On("TryAcquire", mock.Anything).Return(false, errors.New("redis down")).Once()

	sweeper := NewExpirySweeper(env.deps, env.services.Attempt(), SweeperConfig{Lease: lease})
	_, err := sweeper.RunOnce(context.Background())

	assert.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.SweepRuns.WithLabelValues("error")))
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	env := newTestEnv(t)
	sweeper := NewExpirySweeper(env.deps, env.services.Attempt(), SweeperConfig{Interval: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestSweeper_CountsOnlySheetsItSubmitted(t *testing.T) {
	env := newTestEnv(t)
	pe := env.publishedExam(t)
	ctx := context.Background()

	aliceSheet := startedSheet(t, env, pe, alice)
	bobSheet := startedSheet(t, env, pe, bob)
	env.clock.Advance(61 * time.Minute)

	attempts := studentFirstAttempts{
		AttemptService: env.services.Attempt(),
		before: func(sheetID uint) {
			if sheetID == aliceSheet.ID {
				_, err := env.services.Attempt().Submit(ctx, sheetID, alice)
				require.NoError(t, err)
			}
		},
	}
	sweeper := NewExpirySweeper(env.deps, attempts, SweeperConfig{})
	submitted, err := sweeper.RunOnce(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, submitted)

	stored, err := env.services.Repository().AnswerSheet().GetByID(ctx, nil, aliceSheet.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmittedByStudent, stored.SubmittedBy)
	stored, err = env.services.Repository().AnswerSheet().GetByID(ctx, nil, bobSheet.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmittedBySweep, stored.SubmittedBy)
}

func TestSweeper_StopsWhenNothingChanges(t *testing.T) {
	env := newTestEnv(t)
	pe := env.publishedExam(t)
	carol := models.Actor{UserID: "carol", Role: models.RoleStudent, Organization: testOrg}
	env.repo.mu.Lock()
	env.repo.members[env.batchID][carol.UserID] = true
	env.repo.mu.Unlock()

	for _, s := range []models.Actor{alice, bob, carol} {
		startedSheet(t, env, pe, s)
	}
	env.clock.Advance(2 * time.Hour)

	attempts := &mockExpiredSubmitter{}
	attempts.On("SubmitExpired", mock.Anything, mock.Anything).Return(false, nil)

	sweeper := NewExpirySweeper(env.deps, attempts, SweeperConfig{BatchSize: 2})
	submitted, err := sweeper.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Zero(t, submitted)
	attempts.AssertNumberOfCalls(t, "SubmitExpired", 2)
}
