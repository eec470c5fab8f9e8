package scoring

// Percentage converts obtained over total points; a non positive total counts as 1.
func Percentage(obtained, total int) float64 {
	if total <= 0 {
		total = 1
	}
	return float64(obtained) * 100.0 / float64(total)
}

// CompetitionRank is one plus the number of peers scoring strictly higher than target.
func CompetitionRank(target float64, peers []float64) int {
	rank := 1
	for _, p := range peers {
		if p > target {
			rank++
		}
	}
	return rank
}

// CompetitionRanks ranks every entry against the whole set. Ties share a rank and the
// following rank skips the tied count: [90 90 70 50] ranks as [1 1 3 4].
func CompetitionRanks(percentages []float64) []int {
	ranks := make([]int, len(percentages))
	for i, p := range percentages {
		ranks[i] = CompetitionRank(p, percentages)
	}
	return ranks
}

// Average returns the arithmetic mean, or 0 for no values.
func Average(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
