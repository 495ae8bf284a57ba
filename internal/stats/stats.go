package stats

import "walknav/backend/internal/model"

const RecentWindow = 5

// Compute summarizes the whole history. It returns nil when there is nothing
// to summarize. IsImproving only compares the recent mean with the overall
// mean; it is not a trend fit.
func Compute(history []model.WalkingRecord) *model.Stats {
	if len(history) == 0 {
		return nil
	}

	average := mean(history)
	recentStart := len(history) - RecentWindow
	if recentStart < 0 {
		recentStart = 0
	}
	recent := mean(history[recentStart:])

	return &model.Stats{
		TotalWalks:      len(history),
		AverageAccuracy: average,
		RecentAccuracy:  recent,
		IsImproving:     recent < average,
	}
}

func mean(records []model.WalkingRecord) float64 {
	sum := 0.0
	for _, record := range records {
		sum += record.Accuracy
	}
	return sum / float64(len(records))
}
