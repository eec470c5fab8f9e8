package cache

import "fmt"

const keyPrefix = "exam-service"

// Student read models are keyed by student alone; callers authorize before reading.

// PerformanceKey caches a student's performance report
func PerformanceKey(studentID string) string {
	return studentKey(studentID) + ":performance"
}

// ComparisonKey caches a student's batch comparison
func ComparisonKey(studentID string) string {
	return studentKey(studentID) + ":comparison"
}

// StudentPattern matches every cached read model of one student
func StudentPattern(studentID string) string {
	return studentKey(studentID) + ":*"
}

// LeaderboardKey caches the ranked results of one exam
func LeaderboardKey(examID uint) string {
	return fmt.Sprintf("%s:leaderboard:%d", keyPrefix, examID)
}

// SweepLockKey names the lease held by the expiry sweeper
const SweepLockKey = keyPrefix + ":sweep-lock"

func studentKey(studentID string) string {
	return fmt.Sprintf("%s:student:%s", keyPrefix, studentID)
}
