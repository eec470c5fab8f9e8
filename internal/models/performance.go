package models

import "time"

// PerformanceMetrics is derived from graded answer sheets and rebuilt on every grading.
type PerformanceMetrics struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	StudentID     string    `json:"student_id" gorm:"not null;size:255;uniqueIndex:idx_performance_student_exam"`
	ExamID        uint      `json:"exam_id" gorm:"not null;uniqueIndex:idx_performance_student_exam;index:idx_performance_batch_exam"`
	BatchID       uint      `json:"batch_id" gorm:"not null;index:idx_performance_batch_exam"`
	AnswerSheetID uint      `json:"answer_sheet_id" gorm:"not null"`
	ObtainedMarks int       `json:"obtained_marks"`
	TotalMarks    int       `json:"total_marks"`
	Percentage    float64   `json:"percentage"`
	BatchRank     int       `json:"batch_rank"`
	CalculatedAt  time.Time `json:"calculated_at" gorm:"index"`
}

func (PerformanceMetrics) TableName() string {
	return "performance_metrics"
}
