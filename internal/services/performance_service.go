package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/cache"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/scoring"
	"github.com/SAP-F-2025/exam-service/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

type performanceService struct {
	deps  Dependencies
	repo  repositories.Repository
	cache cache.CacheService
	log   *ServiceLogger
}

func NewPerformanceService(deps Dependencies) PerformanceService {
	deps = deps.withDefaults()
	return &performanceService{
		deps:  deps,
		repo:  deps.Repo,
		cache: deps.Cache,
		log:   NewServiceLogger(deps.Logger, "performance"),
	}
}

// ===== RECOMPUTATION =====

// Recompute runs inside the grading transaction. The caller holds the exam row lock, so
// recomputations for one exam are serialized and every pass ranks a complete peer set.
func (s *performanceService) Recompute(ctx context.Context, tx *gorm.DB, sheet *models.AnswerSheet, exam *models.Exam, now time.Time) (*RecomputeResult, error) {
	ctx, span := tracing.StartSpan(ctx, "performance.recompute",
		attribute.Int64("exam_id", int64(exam.ID)),
		attribute.Int64("batch_id", int64(exam.BatchID)))
	defer span.End()

	obtained := derefInt(sheet.ObtainedPoints)
	metrics := &models.PerformanceMetrics{
		StudentID:     sheet.StudentID,
		ExamID:        exam.ID,
		BatchID:       exam.BatchID,
		AnswerSheetID: sheet.ID,
		ObtainedMarks: obtained,
		TotalMarks:    sheet.TotalPoints,
		Percentage:    scoring.Percentage(obtained, sheet.TotalPoints),
		CalculatedAt:  now,
	}
	if err := s.repo.Performance().Upsert(ctx, tx, metrics); err != nil {
		return nil, fmt.Errorf("failed to upsert performance metrics: %w", err)
	}

	peers, err := s.repo.Performance().ListByBatchAndExam(ctx, tx, exam.BatchID, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list batch metrics: %w", err)
	}

	percentages := make([]float64, len(peers))
	for i, p := range peers {
		percentages[i] = p.Percentage
	}
	ranks := scoring.CompetitionRanks(percentages)

	byID := make(map[uint]int, len(peers))
	result := &RecomputeResult{
		Metrics:      *metrics,
		RankedPeers:  len(peers),
		BatchAverage: scoring.Average(percentages),
		PeerIDs:      make([]string, 0, len(peers)),
	}
	for i, p := range peers {
		byID[p.ID] = ranks[i]
		result.PeerIDs = append(result.PeerIDs, p.StudentID)
		if p.StudentID == sheet.StudentID {
			own := *p
			own.BatchRank = ranks[i]
			result.Metrics = own
		}
	}
	if err := s.repo.Performance().UpdateRanks(ctx, tx, byID); err != nil {
		return nil, fmt.Errorf("failed to update batch ranks: %w", err)
	}

	s.log.Logger().InfoContext(ctx, "Performance recomputed",
		"exam_id", exam.ID,
		"batch_id", exam.BatchID,
		"student_id", sheet.StudentID,
		"percentage", result.Metrics.Percentage,
		"batch_rank", result.Metrics.BatchRank,
		"ranked_peers", result.RankedPeers)
	return result, nil
}

// ===== READ MODELS =====

func (s *performanceService) GetStudentPerformance(ctx context.Context, studentID string, actor models.Actor) (*PerformanceData, error) {
	user, err := s.authorizeStudentRead(ctx, studentID, actor)
	if err != nil {
		return nil, err
	}

	key := cache.PerformanceKey(studentID)
	var cached PerformanceData
	if s.readCache(ctx, key, &cached) {
		return &cached, nil
	}

	rows, err := s.repo.Performance().ListByStudent(ctx, nil, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list performance metrics: %w", err)
	}
	exams, err := s.examsFor(ctx, rows)
	if err != nil {
		return nil, err
	}

	data := &PerformanceData{
		StudentID:  studentID,
		TotalExams: len(rows),
		Exams:      make([]ExamPerformance, 0, len(rows)),
	}
	if user != nil {
		data.StudentName = user.FullName
	}

	percentages := make([]float64, 0, len(rows))
	for i, row := range rows {
		// rows are most recent first
		if i == 0 {
			data.CurrentRank = row.BatchRank
		}
		if row.ObtainedMarks > data.HighestScore {
			data.HighestScore = row.ObtainedMarks
		}
		percentages = append(percentages, row.Percentage)
		data.Exams = append(data.Exams, ExamPerformance{
			ExamID:       row.ExamID,
			ExamName:     examTitle(exams, row.ExamID),
			Obtained:     row.ObtainedMarks,
			Total:        row.TotalMarks,
			Percentage:   row.Percentage,
			Rank:         row.BatchRank,
			CalculatedAt: row.CalculatedAt,
		})
	}
	data.AveragePercentage = scoring.Average(percentages)

	s.writeCache(ctx, key, data)
	return data, nil
}

func (s *performanceService) GetComparison(ctx context.Context, studentID string, actor models.Actor) (*PerformanceComparison, error) {
	if _, err := s.authorizeStudentRead(ctx, studentID, actor); err != nil {
		return nil, err
	}

	key := cache.ComparisonKey(studentID)
	var cached PerformanceComparison
	if s.readCache(ctx, key, &cached) {
		return &cached, nil
	}

	rows, err := s.repo.Performance().ListByStudent(ctx, nil, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list performance metrics: %w", err)
	}
	exams, err := s.examsFor(ctx, rows)
	if err != nil {
		return nil, err
	}

	examIDs := make([]uint, 0, len(rows))
	for _, row := range rows {
		examIDs = append(examIDs, row.ExamID)
	}
	averages := map[uint]float64{}
	if len(examIDs) > 0 {
		averages, err = s.repo.Performance().BatchAverages(ctx, nil, examIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to compute batch averages: %w", err)
		}
	}

	comparison := &PerformanceComparison{
		TotalExams: len(rows),
		Exams:      make([]ExamComparison, 0, len(rows)),
	}
	for _, row := range rows {
		// a missing average reads as 0
		comparison.Exams = append(comparison.Exams, ExamComparison{
			ExamID:            row.ExamID,
			ExamName:          examTitle(exams, row.ExamID),
			StudentObtained:   row.ObtainedMarks,
			TotalMarks:        row.TotalMarks,
			StudentPercentage: row.Percentage,
			BatchAverage:      averages[row.ExamID],
		})
	}

	s.writeCache(ctx, key, comparison)
	return comparison, nil
}

func (s *performanceService) GetExamLeaderboard(ctx context.Context, examID uint, actor models.Actor) ([]ExamPerformanceRow, error) {
	exam, err := s.repo.Exam().GetByID(ctx, nil, examID)
	if err != nil {
		return nil, notFoundOr(err, ErrExamNotFound, "get exam")
	}
	if err := checkExamOwner(exam, actor, "view_leaderboard"); err != nil {
		return nil, err
	}

	key := cache.LeaderboardKey(examID)
	var cached []ExamPerformanceRow
	if s.readCache(ctx, key, &cached) {
		return cached, nil
	}

	rows, err := s.repo.Performance().ListByExam(ctx, nil, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to list exam metrics: %w", err)
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.StudentID)
	}
	users, err := s.repo.User().GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get students: %w", err)
	}

	board := make([]ExamPerformanceRow, 0, len(rows))
	for _, row := range rows {
		entry := ExamPerformanceRow{
			StudentID:     row.StudentID,
			ObtainedMarks: row.ObtainedMarks,
			TotalMarks:    row.TotalMarks,
			Percentage:    row.Percentage,
			BatchRank:     row.BatchRank,
		}
		if u, ok := users[row.StudentID]; ok {
			entry.StudentName = u.FullName
		}
		board = append(board, entry)
	}

	s.writeCache(ctx, key, board)
	return board, nil
}

// authorizeStudentRead allows the student themself or faculty of the student's organization.
// The directory entry is optional for self reads.
func (s *performanceService) authorizeStudentRead(ctx context.Context, studentID string, actor models.Actor) (*models.User, error) {
	user, err := s.repo.User().GetByID(ctx, studentID)
	if err != nil {
		if !repositories.IsNotFoundError(err) {
			return nil, fmt.Errorf("failed to get student: %w", err)
		}
		user = nil
	}

	if actor.UserID == studentID {
		return user, nil
	}
	if !actor.IsFaculty() {
		return nil, NewPermissionError(actor.UserID, 0, "performance", "view", "students may only view their own performance")
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if !actor.SameOrganization(user.Organization) {
		return nil, NewPermissionError(actor.UserID, 0, "performance", "view", "organization mismatch")
	}
	return user, nil
}

func (s *performanceService) examsFor(ctx context.Context, rows []*models.PerformanceMetrics) (map[uint]*models.Exam, error) {
	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ExamID)
	}
	if len(ids) == 0 {
		return map[uint]*models.Exam{}, nil
	}
	exams, err := s.repo.Exam().GetByIDs(ctx, nil, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get exams: %w", err)
	}
	return exams, nil
}

func (s *performanceService) readCache(ctx context.Context, key string, dest interface{}) bool {
	err := s.cache.Get(ctx, key, dest)
	if err == nil {
		return true
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.log.Logger().WarnContext(ctx, "Cache read failed", "key", key, "error", err)
	}
	return false
}

func (s *performanceService) writeCache(ctx context.Context, key string, value interface{}) {
	if err := s.cache.Set(ctx, key, value, s.deps.CacheTTL); err != nil {
		s.log.Logger().WarnContext(ctx, "Cache write failed", "key", key, "error", err)
	}
}

func examTitle(exams map[uint]*models.Exam, id uint) string {
	if exam, ok := exams[id]; ok {
		return exam.Title
	}
	return ""
}
