package models

import "math"

// Outcome distinguishes the three results of an event parse
type Outcome string

const (
	OutcomeClean    Outcome = "clean"
	OutcomeDegraded Outcome = "degraded"
	OutcomeEmpty    Outcome = "empty"
)

// TemporalEvent is a detected interval within the source, in seconds
type TemporalEvent struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
}

// EventResult is the parsed output of a black, freeze or silence detector.
// Raw is only populated for a degraded parse.
type EventResult struct {
	Outcome Outcome         `json:"outcome"`
	Events  []TemporalEvent `json:"events"`
	Raw     []string        `json:"raw,omitempty"`
}

// NumericFrameSample is one sampled frame of a streaming metric
type NumericFrameSample struct {
	TimestampSeconds float64            `json:"timestampSeconds"`
	Metrics          map[string]float64 `json:"metrics"`
}

// MetricSeries is a per-frame time series with its channel averages.
// Average is nil when there are no samples.
type MetricSeries struct {
	Samples []NumericFrameSample `json:"samples"`
	Average map[string]float64   `json:"average"`
	Dropped int                  `json:"dropped,omitempty"`
}

// Mean returns the channel average, or NaN and false when it is undefined.
func (s MetricSeries) Mean(channel string) (float64, bool) {
	if s.Average == nil {
		return math.NaN(), false
	}
	v, ok := s.Average[channel]
	if !ok {
		return math.NaN(), false
	}
	return v, true
}
