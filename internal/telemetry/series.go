package telemetry

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/bdougie/videoprobe/internal/models"
)

// SeriesKind describes a per-frame metric printed by the metadata filter
type SeriesKind struct {
	Name     string
	Filter   string
	Prefix   string
	Channels []string
}

var (
	BitplaneNoise = SeriesKind{
		Name:     "bitplaneNoise",
		Filter:   "bitplanenoise",
		Prefix:   "lavfi.bitplanenoise.",
		Channels: []string{"0.1", "1.1", "2.1"},
	}
	Entropy = SeriesKind{
		Name:   "entropy",
		Filter: "entropy",
		Prefix: "lavfi.entropy.",
		Channels: []string{
			"entropy.normal.Y", "normalized_entropy.normal.Y",
			"entropy.normal.U", "normalized_entropy.normal.U",
			"entropy.normal.V", "normalized_entropy.normal.V",
		},
	}
)

// BlockLines is the number of lines the filter prints per sampled frame.
func (k SeriesKind) BlockLines() int {
	return 1 + len(k.Channels)
}

var frameHeader = regexp.MustCompile(`^frame:\s*\d+\s+pts:\s*\S+\s+pts_time:\s*(\S+)`)

// ParseSeries reads fixed-size blocks of one header line followed by one
// line per channel of kind, and averages the selected channels over the
// accepted samples. The block size is always that of the kind; channels only
// filters what is kept. Blocks that are short, or miss a selected channel or
// carry a non-numeric value for it, are dropped.
// A nil channels slice selects all of the kind's channels.
func ParseSeries(raw string, kind SeriesKind, channels []string) models.MetricSeries {
	if channels == nil {
		channels = kind.Channels
	}
	series := models.MetricSeries{Samples: []models.NumericFrameSample{}}

	var lines []string
	sc := newScanner(raw)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}

	for i := 0; i < len(lines); {
		m := frameHeader.FindStringSubmatch(lines[i])
		if m == nil {
			i++
			continue
		}
		end := min(i+kind.BlockLines(), len(lines))
		sample, next, ok := readBlock(m[1], lines[i+1:end], kind, channels)
		if ok {
			series.Samples = append(series.Samples, sample)
		} else {
			series.Dropped++
		}
		i += 1 + next
	}

	series.Average = average(series.Samples, channels)
	return series
}

// readBlock parses the channel lines following a header. It returns how
// many lines it consumed; a header inside the block ends it early.
func readBlock(ts string, body []string, kind SeriesKind, channels []string) (models.NumericFrameSample, int, bool) {
	consumed := 0
	values := make(map[string]float64, len(kind.Channels))
	for _, line := range body {
		if frameHeader.MatchString(line) {
			break
		}
		consumed++
		key, val, found := strings.Cut(line, "=")
		if !found || !strings.HasPrefix(key, kind.Prefix) {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		values[strings.TrimPrefix(key, kind.Prefix)] = v
	}

	t, err := strconv.ParseFloat(ts, 64)
	if err != nil || consumed < len(kind.Channels) {
		return models.NumericFrameSample{}, consumed, false
	}
	metrics := make(map[string]float64, len(channels))
	for _, ch := range channels {
		v, ok := values[ch]
		if !ok {
			return models.NumericFrameSample{}, consumed, false
		}
		metrics[ch] = v
	}
	return models.NumericFrameSample{TimestampSeconds: t, Metrics: metrics}, consumed, true
}

func average(samples []models.NumericFrameSample, channels []string) map[string]float64 {
	if len(samples) == 0 {
		return nil
	}
	avg := make(map[string]float64, len(channels))
	for _, ch := range channels {
		var sum float64
		for _, s := range samples {
			sum += s.Metrics[ch]
		}
		avg[ch] = sum / float64(len(samples))
	}
	return avg
}
