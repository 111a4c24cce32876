package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"

	"gopkg.in/vansante/go-ffprobe.v2"

	"github.com/bdougie/videoprobe/internal/errdefs"
	"github.com/bdougie/videoprobe/internal/models"
)

// Prober reads container and stream metadata of a source
type Prober interface {
	Probe(ctx context.Context, input string) (*models.MetaData, error)
}

var probeArgs = []string{
	"-loglevel", "fatal",
	"-print_format", "json",
	"-show_format",
	"-show_streams",
	"-show_chapters",
}

// FFprobe implements Prober by running the ffprobe binary of its Runner and
// decoding the output into go-ffprobe's ProbeData. The binary path lives on
// the runner, so concurrent probers with different binaries do not interfere.
type FFprobe struct {
	runner Runner
}

// NewFFprobe returns a Prober that runs ffprobe through runner.
func NewFFprobe(runner Runner) *FFprobe {
	return &FFprobe{runner: runner}
}

// Probe runs ffprobe against input.
func (p *FFprobe) Probe(ctx context.Context, input string) (*models.MetaData, error) {
	args := append(append([]string{}, probeArgs...), input)
	out, err := p.runner.Run(ctx, args)
	if err != nil {
		return nil, err
	}
	data := &ffprobe.ProbeData{}
	if err := json.Unmarshal(out.Stdout, data); err != nil {
		return nil, &errdefs.ExternalToolError{Tool: "ffprobe", Args: args, Err: err}
	}
	if data.Format == nil {
		return nil, &errdefs.ExternalToolError{Tool: "ffprobe", Args: args, Err: errors.New("no format data in output")}
	}
	return toMetaData(data), nil
}

func toMetaData(data *ffprobe.ProbeData) *models.MetaData {
	md := &models.MetaData{Streams: []models.StreamInfo{}}
	if f := data.Format; f != nil {
		md.Filename = f.Filename
		md.FormatName = f.FormatName
		md.Duration = f.DurationSeconds
		md.Size = f.Size
		md.BitRate = f.BitRate
	}
	for _, s := range data.Streams {
		if s == nil {
			continue
		}
		md.Streams = append(md.Streams, models.StreamInfo{
			Index:      s.Index,
			CodecType:  s.CodecType,
			CodecName:  s.CodecName,
			Width:      s.Width,
			Height:     s.Height,
			FrameRate:  s.AvgFrameRate,
			SampleRate: s.SampleRate,
			Channels:   s.Channels,
		})
	}
	return md
}
