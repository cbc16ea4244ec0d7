// Package analytics computes completion statistics over a task collection.
// Everything here is recomputed from the tasks passed in; nothing is cached.
package analytics

import (
	"math"
	"time"

	"kairon/backend"
)

// Summary holds the headline statistics. Rates are rounded whole percentages.
type Summary struct {
	Total          int `json:"total"`
	Active         int `json:"active"`
	Completed      int `json:"completed"`
	OnTime         int `json:"onTime"`
	CompletionRate int `json:"completionRate"`
	OnTimeRate     int `json:"onTimeRate"`
	TimeAccuracy   int `json:"timeAccuracy"`
}

// Compute aggregates tasks into a Summary.
func Compute(tasks []backend.Task) Summary {
	var s Summary
	var accuracySum float64

	s.Total = len(tasks)
	for _, t := range tasks {
		if t.IsActive() || t.CompletedAt == nil {
			s.Active++
			continue
		}
		s.Completed++
		if !t.CompletedAt.After(t.Due) {
			s.OnTime++
		}
		accuracySum += Accuracy(t.CreatedAt, t.Due, *t.CompletedAt)
	}

	s.CompletionRate = percent(float64(s.Completed), float64(s.Total))
	s.OnTimeRate = percent(float64(s.OnTime), float64(s.Completed))
	if s.Completed > 0 {
		s.TimeAccuracy = round(accuracySum / float64(s.Completed))
	}
	return s
}

// Accuracy scores how close the actual duration (created to completed) came
// to the estimated one (created to due), from 0 to 100. A non-positive
// estimate scores 100.
func Accuracy(created, due, completed time.Time) float64 {
	estimated := due.Sub(created)
	if estimated <= 0 {
		return 100
	}
	actual := completed.Sub(created)
	miss := math.Abs(float64(actual-estimated)) / float64(estimated) * 100
	return math.Max(0, 100-miss)
}

func percent(part, whole float64) int {
	if whole == 0 {
		return 0
	}
	return round(part / whole * 100)
}

func round(v float64) int {
	return int(math.Round(v))
}
