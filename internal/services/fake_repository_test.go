package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// fakeRepo is an in-memory repositories.Repository. Transactions are serialized, which
// stands in for the row locks the SQL implementation takes.
type fakeRepo struct {
	txMu sync.Mutex
	mu   sync.Mutex
	seq  uint

	exams     map[uint]*models.Exam
	questions map[uint]*models.Question
	sheets    map[uint]*models.AnswerSheet
	answers   map[uint]*models.Answer
	perf      map[uint]*models.PerformanceMetrics
	users     map[string]*models.User
	batches   map[uint]*models.Batch
	members   map[uint]map[string]bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		exams:     map[uint]*models.Exam{},
		questions: map[uint]*models.Question{},
		sheets:    map[uint]*models.AnswerSheet{},
		answers:   map[uint]*models.Answer{},
		perf:      map[uint]*models.PerformanceMetrics{},
		users:     map[string]*models.User{},
		batches:   map[uint]*models.Batch{},
		members:   map[uint]map[string]bool{},
	}
}

func (r *fakeRepo) nextID() uint {
	r.seq++
	return r.seq
}

func (r *fakeRepo) Exam() repositories.ExamRepository               { return fakeExams{r} }
func (r *fakeRepo) Question() repositories.QuestionRepository       { return fakeQuestions{r} }
func (r *fakeRepo) AnswerSheet() repositories.AnswerSheetRepository { return fakeSheets{r} }
func (r *fakeRepo) Answer() repositories.AnswerRepository           { return fakeAnswers{r} }
func (r *fakeRepo) Performance() repositories.PerformanceRepository { return fakePerformance{r} }
func (r *fakeRepo) User() repositories.UserRepository               { return fakeUsers{r} }
func (r *fakeRepo) Batch() repositories.BatchRepository             { return fakeBatches{r} }

func (r *fakeRepo) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()
	return fn(nil)
}

// ===== SEEDING =====

func (r *fakeRepo) addUser(id, name string, role models.UserRole, org string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[id] = &models.User{ID: id, FullName: name, Email: id + "@example.com", Role: role, Organization: org, IsActive: true}
}

func (r *fakeRepo) addBatch(org string, students ...string) uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID()
	r.batches[id] = &models.Batch{ID: id, Name: "Batch", Organization: org}
	r.members[id] = map[string]bool{}
	for _, s := range students {
		r.members[id][s] = true
	}
	return id
}

func (r *fakeRepo) sheetCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sheets)
}

// ===== COPY HELPERS =====

func copyQuestion(q *models.Question) models.Question {
	out := *q
	out.Options = append([]models.Option(nil), q.Options...)
	return out
}

func copyAnswer(a *models.Answer) models.Answer {
	out := *a
	if a.ImageURLs != nil {
		out.ImageURLs = append(datatypes.JSONSlice[string]{}, a.ImageURLs...)
	}
	return out
}

func (r *fakeRepo) assembleSheet(s *models.AnswerSheet) *models.AnswerSheet {
	out := *s
	out.Answers = nil
	for _, a := range r.answers {
		if a.AnswerSheetID == s.ID {
			out.Answers = append(out.Answers, copyAnswer(a))
		}
	}
	sort.Slice(out.Answers, func(i, j int) bool { return out.Answers[i].ID < out.Answers[j].ID })
	return &out
}

func (r *fakeRepo) examQuestions(examID uint) []models.Question {
	var out []models.Question
	for _, q := range r.questions {
		if q.ExamID == examID {
			out = append(out, copyQuestion(q))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderNumber == out[j].OrderNumber {
			return out[i].ID < out[j].ID
		}
		return out[i].OrderNumber < out[j].OrderNumber
	})
	return out
}

// ===== EXAMS =====

type fakeExams struct{ r *fakeRepo }

func (f fakeExams) Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	exam.ID = f.r.nextID()
	exam.CreatedAt = time.Now()
	exam.UpdatedAt = exam.CreatedAt
	stored := *exam
	stored.Questions = nil
	f.r.exams[exam.ID] = &stored
	return nil
}

func (f fakeExams) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	e, ok := f.r.exams[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *e
	return &out, nil
}

func (f fakeExams) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	return f.GetByID(ctx, tx, id)
}

func (f fakeExams) GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	e, ok := f.r.exams[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *e
	out.Questions = f.r.examQuestions(id)
	out.FillComputed()
	return &out, nil
}

func (f fakeExams) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) (map[uint]*models.Exam, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	out := map[uint]*models.Exam{}
	for _, id := range ids {
		if e, ok := f.r.exams[id]; ok {
			c := *e
			out[id] = &c
		}
	}
	return out, nil
}

func (f fakeExams) Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	e, ok := f.r.exams[exam.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	e.Title = exam.Title
	e.Instructions = exam.Instructions
	e.DurationMinutes = exam.DurationMinutes
	e.Status = exam.Status
	e.PublishedAt = exam.PublishedAt
	e.ClosedAt = exam.ClosedAt
	e.UpdatedAt = time.Now()
	return nil
}

func (f fakeExams) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if _, ok := f.r.exams[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(f.r.exams, id)
	return nil
}

func (f fakeExams) List(ctx context.Context, tx *gorm.DB, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()

	var batchSet map[uint]bool
	if filters.BatchIDs != nil {
		batchSet = map[uint]bool{}
		for _, id := range filters.BatchIDs {
			batchSet[id] = true
		}
	}

	var out []*models.Exam
	for _, e := range f.r.exams {
		if filters.Status != nil && e.Status != *filters.Status {
			continue
		}
		if filters.CreatedBy != "" && e.CreatedBy != filters.CreatedBy {
			continue
		}
		if filters.Organization != "" && e.Organization != filters.Organization {
			continue
		}
		if batchSet != nil && !batchSet[e.BatchID] {
			continue
		}
		c := *e
		c.Questions = f.r.examQuestions(e.ID)
		c.FillComputed()
		c.Questions = nil
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	total := int64(len(out))
	if filters.Offset < len(out) {
		out = out[filters.Offset:]
	} else {
		out = nil
	}
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, total, nil
}

// ===== QUESTIONS =====

type fakeQuestions struct{ r *fakeRepo }

func (f fakeQuestions) Create(ctx context.Context, tx *gorm.DB, q *models.Question) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	q.ID = f.r.nextID()
	for i := range q.Options {
		q.Options[i].ID = f.r.nextID()
		q.Options[i].QuestionID = q.ID
	}
	stored := copyQuestion(q)
	f.r.questions[q.ID] = &stored
	return nil
}

func (f fakeQuestions) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	q, ok := f.r.questions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := copyQuestion(q)
	return &out, nil
}

func (f fakeQuestions) GetByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]models.Question, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	return f.r.examQuestions(examID), nil
}

func (f fakeQuestions) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if _, ok := f.r.questions[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(f.r.questions, id)
	return nil
}

// ===== ANSWER SHEETS =====

type fakeSheets struct{ r *fakeRepo }

func (f fakeSheets) Create(ctx context.Context, tx *gorm.DB, sheet *models.AnswerSheet) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for _, s := range f.r.sheets {
		if s.ExamID == sheet.ExamID && s.StudentID == sheet.StudentID {
			return gorm.ErrDuplicatedKey
		}
	}
	sheet.ID = f.r.nextID()
	for i := range sheet.Answers {
		sheet.Answers[i].ID = f.r.nextID()
		sheet.Answers[i].AnswerSheetID = sheet.ID
		a := copyAnswer(&sheet.Answers[i])
		f.r.answers[a.ID] = &a
	}
	stored := *sheet
	stored.Answers = nil
	f.r.sheets[sheet.ID] = &stored
	return nil
}

func (f fakeSheets) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.AnswerSheet, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	s, ok := f.r.sheets[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return f.r.assembleSheet(s), nil
}

func (f fakeSheets) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.AnswerSheet, error) {
	return f.GetByID(ctx, tx, id)
}

func (f fakeSheets) GetByExamAndStudent(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (*models.AnswerSheet, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for _, s := range f.r.sheets {
		if s.ExamID == examID && s.StudentID == studentID {
			return f.r.assembleSheet(s), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f fakeSheets) GetActiveByStudent(ctx context.Context, tx *gorm.DB, studentID string) (*models.AnswerSheet, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for _, s := range f.r.sheets {
		if s.StudentID == studentID && s.Status == models.SheetInProgress {
			return f.r.assembleSheet(s), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f fakeSheets) ListByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.AnswerSheet, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.AnswerSheet
	for _, s := range f.r.sheets {
		if s.ExamID == examID {
			out = append(out, f.r.assembleSheet(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

func (f fakeSheets) MarkSubmitted(ctx context.Context, tx *gorm.DB, sheet *models.AnswerSheet) (bool, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	s, ok := f.r.sheets[sheet.ID]
	if !ok || s.Status != models.SheetInProgress {
		return false, nil
	}
	s.Status = sheet.Status
	s.SubmittedAt = sheet.SubmittedAt
	s.SubmittedBy = sheet.SubmittedBy
	s.ObtainedPoints = sheet.ObtainedPoints
	return true, nil
}

func (f fakeSheets) MarkGraded(ctx context.Context, tx *gorm.DB, sheet *models.AnswerSheet) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	s, ok := f.r.sheets[sheet.ID]
	if !ok || s.Status != models.SheetSubmitted {
		return repositories.ErrConcurrentUpdate
	}
	s.Status = sheet.Status
	s.GradedAt = sheet.GradedAt
	s.ObtainedPoints = sheet.ObtainedPoints
	return nil
}

func (f fakeSheets) UpdateObtainedPoints(ctx context.Context, tx *gorm.DB, id uint, obtained int) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if s, ok := f.r.sheets[id]; ok {
		s.ObtainedPoints = &obtained
	}
	return nil
}

func (f fakeSheets) UpdateFeedback(ctx context.Context, tx *gorm.DB, id uint, feedback *string) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if s, ok := f.r.sheets[id]; ok {
		s.OverallFeedback = feedback
	}
	return nil
}

func (f fakeSheets) ListExpiredIDs(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]uint, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var expired []*models.AnswerSheet
	for _, s := range f.r.sheets {
		if s.Status == models.SheetInProgress && s.ExpiresAt.Before(now) {
			expired = append(expired, s)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].ExpiresAt.Before(expired[j].ExpiresAt) })
	var ids []uint
	for _, s := range expired {
		if limit > 0 && len(ids) == limit {
			break
		}
		ids = append(ids, s.ID)
	}
	return ids, nil
}

func (f fakeSheets) EvaluationQueue(ctx context.Context, tx *gorm.DB, filters repositories.EvaluationQueueFilters) ([]*repositories.EvaluationQueueItem, int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var items []*repositories.EvaluationQueueItem
	for _, s := range f.r.sheets {
		if s.Status != models.SheetSubmitted {
			continue
		}
		exam := f.r.exams[s.ExamID]
		if exam == nil {
			continue
		}
		if filters.ExamID != nil && s.ExamID != *filters.ExamID {
			continue
		}
		if filters.CreatedBy != "" && exam.CreatedBy != filters.CreatedBy {
			continue
		}
		if filters.Organization != "" && exam.Organization != filters.Organization {
			continue
		}
		full := f.r.assembleSheet(s)
		items = append(items, &repositories.EvaluationQueueItem{
			AnswerSheetID:  s.ID,
			ExamID:         s.ExamID,
			ExamTitle:      exam.Title,
			StudentID:      s.StudentID,
			Status:         s.Status,
			SubmittedAt:    s.SubmittedAt,
			TotalPoints:    s.TotalPoints,
			ObtainedPoints: s.ObtainedPoints,
			PendingAnswers: full.PendingAnswers(),
		})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].SubmittedAt.Equal(*items[j].SubmittedAt) {
			return items[i].AnswerSheetID < items[j].AnswerSheetID
		}
		return items[i].SubmittedAt.Before(*items[j].SubmittedAt)
	})
	return items, int64(len(items)), nil
}

// ===== ANSWERS =====

type fakeAnswers struct{ r *fakeRepo }

func (f fakeAnswers) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Answer, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	a, ok := f.r.answers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := copyAnswer(a)
	return &out, nil
}

func (f fakeAnswers) UpdateResponse(ctx context.Context, tx *gorm.DB, answer *models.Answer) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	a, ok := f.r.answers[answer.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	c := copyAnswer(answer)
	a.AnswerText = c.AnswerText
	a.SelectedOptionID = c.SelectedOptionID
	a.ImageURLs = c.ImageURLs
	a.AnsweredAt = c.AnsweredAt
	return nil
}

func (f fakeAnswers) UpdateGrades(ctx context.Context, tx *gorm.DB, answers []models.Answer) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for _, in := range answers {
		a, ok := f.r.answers[in.ID]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		a.PointsAwarded = in.PointsAwarded
		a.Feedback = in.Feedback
		a.IsAutoGraded = in.IsAutoGraded
		a.GradedBy = in.GradedBy
		a.GradedAt = in.GradedAt
	}
	return nil
}

// ===== PERFORMANCE =====

type fakePerformance struct{ r *fakeRepo }

func (f fakePerformance) Upsert(ctx context.Context, tx *gorm.DB, m *models.PerformanceMetrics) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for _, p := range f.r.perf {
		if p.StudentID == m.StudentID && p.ExamID == m.ExamID {
			m.ID = p.ID
			m.BatchRank = p.BatchRank
			*p = *m
			return nil
		}
	}
	m.ID = f.r.nextID()
	stored := *m
	f.r.perf[m.ID] = &stored
	return nil
}

func (f fakePerformance) GetByStudentAndExam(ctx context.Context, tx *gorm.DB, studentID string, examID uint) (*models.PerformanceMetrics, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for _, p := range f.r.perf {
		if p.StudentID == studentID && p.ExamID == examID {
			out := *p
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f fakePerformance) collect(keep func(*models.PerformanceMetrics) bool, less func(a, b *models.PerformanceMetrics) bool) []*models.PerformanceMetrics {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.PerformanceMetrics
	for _, p := range f.r.perf {
		if keep(p) {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func (f fakePerformance) ListByStudent(ctx context.Context, tx *gorm.DB, studentID string) ([]*models.PerformanceMetrics, error) {
	return f.collect(
		func(p *models.PerformanceMetrics) bool { return p.StudentID == studentID },
		func(a, b *models.PerformanceMetrics) bool { return a.CalculatedAt.After(b.CalculatedAt) },
	), nil
}

func (f fakePerformance) ListByBatchAndExam(ctx context.Context, tx *gorm.DB, batchID, examID uint) ([]*models.PerformanceMetrics, error) {
	return f.collect(
		func(p *models.PerformanceMetrics) bool { return p.BatchID == batchID && p.ExamID == examID },
		func(a, b *models.PerformanceMetrics) bool { return a.ID < b.ID },
	), nil
}

func (f fakePerformance) ListByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.PerformanceMetrics, error) {
	return f.collect(
		func(p *models.PerformanceMetrics) bool { return p.ExamID == examID },
		func(a, b *models.PerformanceMetrics) bool {
			if a.BatchRank == b.BatchRank {
				return a.StudentID < b.StudentID
			}
			return a.BatchRank < b.BatchRank
		},
	), nil
}

func (f fakePerformance) UpdateRanks(ctx context.Context, tx *gorm.DB, ranks map[uint]int) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for id, rank := range ranks {
		if p, ok := f.r.perf[id]; ok {
			p.BatchRank = rank
		}
	}
	return nil
}

func (f fakePerformance) BatchAverages(ctx context.Context, tx *gorm.DB, examIDs []uint) (map[uint]float64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	sums := map[uint]float64{}
	counts := map[uint]int{}
	wanted := map[uint]bool{}
	for _, id := range examIDs {
		wanted[id] = true
	}
	for _, p := range f.r.perf {
		if wanted[p.ExamID] {
			sums[p.ExamID] += p.Percentage
			counts[p.ExamID]++
		}
	}
	out := map[uint]float64{}
	for id, sum := range sums {
		out[id] = sum / float64(counts[id])
	}
	return out, nil
}

// ===== USERS & BATCHES =====

type fakeUsers struct{ r *fakeRepo }

func (f fakeUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	u, ok := f.r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *u
	return &out, nil
}

func (f fakeUsers) GetByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	out := map[string]*models.User{}
	for _, id := range ids {
		if u, ok := f.r.users[id]; ok {
			c := *u
			out[id] = &c
		}
	}
	return out, nil
}

type fakeBatches struct{ r *fakeRepo }

func (f fakeBatches) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Batch, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	b, ok := f.r.batches[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *b
	return &out, nil
}

func (f fakeBatches) ListSummaries(ctx context.Context, tx *gorm.DB, organization string) ([]*repositories.BatchSummary, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	out := []*repositories.BatchSummary{}
	for id, b := range f.r.batches {
		if organization != "" && b.Organization != organization {
			continue
		}
		summary := &repositories.BatchSummary{ID: id, Name: b.Name, StudentCount: len(f.r.members[id])}
		for _, e := range f.r.exams {
			if e.BatchID == id && e.Status == models.ExamStatusPublished {
				summary.ExamCount++
			}
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f fakeBatches) IsMember(ctx context.Context, tx *gorm.DB, batchID uint, studentID string) (bool, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	return f.r.members[batchID][studentID], nil
}

func (f fakeBatches) BatchIDsForStudent(ctx context.Context, tx *gorm.DB, studentID string) ([]uint, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	ids := []uint{}
	for id, m := range f.r.members {
		if m[studentID] {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
