package arrival

import (
	"context"
	"math"
	"time"

	"walknav/backend/internal/model"
)

const (
	VerdictOnTime = "on_time"
	VerdictLate   = "late"
	VerdictEarly  = "early"

	BandGood = "good"
	BandFair = "fair"
	BandPoor = "poor"
)

// Input describes one completed walk as confirmed by the user.
type Input struct {
	EstimatedTime     int
	Distance          float64
	Route             model.Route
	StartTime         time.Time
	ActualArrivalTime time.Time
}

// Appender is the part of profile.Store the recorder needs.
type Appender interface {
	Append(ctx context.Context, record model.WalkingRecord) model.WalkingRecord
}

type Recorder struct {
	store Appender
}

func NewRecorder(store Appender) *Recorder {
	return &Recorder{store: store}
}

// Record builds the walk record and appends it. Each call stores a new record;
// resubmitting the same arrival produces a duplicate.
func (r *Recorder) Record(ctx context.Context, input Input) model.WalkingRecord {
	return r.store.Append(ctx, Build(input))
}

// Build computes the record without an id. An arrival before the start gives
// a negative actual time, which is kept as is.
func Build(input Input) model.WalkingRecord {
	actual := ActualMinutes(input.StartTime, input.ActualArrivalTime)
	return model.WalkingRecord{
		EstimatedTime: input.EstimatedTime,
		ActualTime:    actual,
		Distance:      input.Distance,
		Route:         input.Route,
		Timestamp:     input.ActualArrivalTime,
		Accuracy:      Accuracy(actual, input.EstimatedTime),
	}
}

// ActualMinutes rounds the elapsed time to whole minutes, halves toward
// positive infinity: 2.5 becomes 3 and -2.5 becomes -2.
func ActualMinutes(start, arrival time.Time) int {
	return int(math.Floor(arrival.Sub(start).Minutes() + 0.5))
}

func Accuracy(actualTime, estimatedTime int) float64 {
	if estimatedTime > 0 {
		return float64(actualTime) / float64(estimatedTime)
	}
	return 1
}

// Adjust shifts a confirmed arrival time by whole minutes.
func Adjust(arrival time.Time, minutes int) time.Time {
	return arrival.Add(time.Duration(minutes) * time.Minute)
}

type Summary struct {
	EstimatedTime     int     `json:"estimatedTime"`
	ActualTime        int     `json:"actualTime"`
	Accuracy          float64 `json:"accuracy"`
	DifferenceMinutes int     `json:"differenceMinutes"`
	Verdict           string  `json:"verdict"`
	Band              string  `json:"band"`
}

// Summarize is what the confirmation step shows before the user commits.
func Summarize(input Input) Summary {
	record := Build(input)
	diff := record.ActualTime - record.EstimatedTime

	verdict := VerdictOnTime
	switch {
	case diff > 0:
		verdict = VerdictLate
	case diff < 0:
		verdict = VerdictEarly
	}

	band := BandPoor
	switch abs := absInt(diff); {
	case abs <= 2:
		band = BandGood
	case abs <= 5:
		band = BandFair
	}

	return Summary{
		EstimatedTime:     record.EstimatedTime,
		ActualTime:        record.ActualTime,
		Accuracy:          record.Accuracy,
		DifferenceMinutes: diff,
		Verdict:           verdict,
		Band:              band,
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
