package telemetry

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bitplaneBlock(frame int, ts float64, a, b, c float64) string {
	return fmt.Sprintf("frame:%d    pts:%d      pts_time:%g\nlavfi.bitplanenoise.0.1=%g\nlavfi.bitplanenoise.1.1=%g\nlavfi.bitplanenoise.2.1=%g\n",
		frame, frame*512, ts, a, b, c)
}

func TestParseSeriesAverages(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 10; i++ {
		sb.WriteString(bitplaneBlock(i, float64(i), float64(i), 2*float64(i), 0.5))
	}
	s := ParseSeries(sb.String(), BitplaneNoise, nil)

	require.Len(t, s.Samples, 10)
	assert.Zero(t, s.Dropped)
	assert.InDelta(t, 4.5, s.Average["0.1"], 1e-9)
	assert.InDelta(t, 9.0, s.Average["1.1"], 1e-9)
	assert.InDelta(t, 0.5, s.Average["2.1"], 1e-9)
	assert.Equal(t, 3.0, s.Samples[3].TimestampSeconds)

	mean, ok := s.Mean("1.1")
	assert.True(t, ok)
	assert.InDelta(t, 9.0, mean, 1e-9)
}

func TestParseSeriesEmpty(t *testing.T) {
	s := ParseSeries("", BitplaneNoise, nil)
	assert.Empty(t, s.Samples)
	assert.Nil(t, s.Average)

	mean, ok := s.Mean("0.1")
	assert.False(t, ok)
	assert.True(t, math.IsNaN(mean))
}

func TestParseSeriesDropsShortAndBadBlocks(t *testing.T) {
	raw := bitplaneBlock(0, 0, 1, 1, 1) +
		// missing one channel, next header starts immediately
		"frame:1    pts:512      pts_time:1\nlavfi.bitplanenoise.0.1=3\nlavfi.bitplanenoise.1.1=3\n" +
		bitplaneBlock(2, 2, 3, 3, 3) +
		// non-numeric value
		"frame:3    pts:1536     pts_time:3\nlavfi.bitplanenoise.0.1=abc\nlavfi.bitplanenoise.1.1=1\nlavfi.bitplanenoise.2.1=1\n"

	s := ParseSeries(raw, BitplaneNoise, nil)
	require.Len(t, s.Samples, 2)
	assert.Equal(t, 2, s.Dropped)
	assert.InDelta(t, 2.0, s.Average["0.1"], 1e-9)
	assert.Equal(t, 2.0, s.Samples[1].TimestampSeconds)
}

func TestParseSeriesEntropyBlocks(t *testing.T) {
	raw := `frame:0    pts:0       pts_time:0
lavfi.entropy.entropy.normal.Y=7.2
lavfi.entropy.normalized_entropy.normal.Y=0.9
lavfi.entropy.entropy.normal.U=5.6
lavfi.entropy.normalized_entropy.normal.U=0.7
lavfi.entropy.entropy.normal.V=5.2
lavfi.entropy.normalized_entropy.normal.V=0.65
frame:1    pts:1001    pts_time:1.001
lavfi.entropy.entropy.normal.Y=7.4
lavfi.entropy.normalized_entropy.normal.Y=0.925
lavfi.entropy.entropy.normal.U=5.8
lavfi.entropy.normalized_entropy.normal.U=0.725
lavfi.entropy.entropy.normal.V=5.4
lavfi.entropy.normalized_entropy.normal.V=0.675
`
	assert.Equal(t, 7, Entropy.BlockLines())
	s := ParseSeries(raw, Entropy, nil)
	require.Len(t, s.Samples, 2)
	assert.InDelta(t, 7.3, s.Average["entropy.normal.Y"], 1e-9)
	assert.InDelta(t, 0.6625, s.Average["normalized_entropy.normal.V"], 1e-9)
	assert.InDelta(t, 1.001, s.Samples[1].TimestampSeconds, 1e-9)
}

func TestParseSeriesChannelSubsetKeepsBlockSize(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 4; i++ {
		sb.WriteString(bitplaneBlock(i, float64(i), float64(i+1), 100, 200))
	}
	s := ParseSeries(sb.String(), BitplaneNoise, []string{"0.1"})

	require.Len(t, s.Samples, 4)
	assert.Zero(t, s.Dropped)
	for i, sample := range s.Samples {
		assert.Equal(t, float64(i), sample.TimestampSeconds)
		assert.Equal(t, map[string]float64{"0.1": float64(i + 1)}, sample.Metrics)
	}
	assert.Equal(t, map[string]float64{"0.1": 2.5}, s.Average)
}

func TestParseSeriesChannelSubsetDropsShortBlock(t *testing.T) {
	raw := "frame:0 pts:0 pts_time:0\nlavfi.bitplanenoise.0.1=4\n" + bitplaneBlock(1, 1, 6, 1, 1)
	s := ParseSeries(raw, BitplaneNoise, []string{"0.1"})
	require.Len(t, s.Samples, 1)
	assert.Equal(t, 1, s.Dropped)
	assert.Equal(t, 6.0, s.Average["0.1"])
}
