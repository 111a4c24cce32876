// Package ffmpeg drives the ffmpeg and ffprobe command line tools.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/bdougie/videoprobe/internal/config"
	"github.com/bdougie/videoprobe/internal/errdefs"
)

// Output holds the captured streams of a finished process
type Output struct {
	Stdout []byte
	Stderr []byte
}

// Runner executes an external tool with the given arguments
type Runner interface {
	Run(ctx context.Context, args []string) (Output, error)
}

// ExecRunner runs a binary with os/exec. Each captured stream is capped at
// MaxOutput bytes and each invocation at Timeout.
type ExecRunner struct {
	Binary    string
	MaxOutput int
	Timeout   time.Duration
	Logger    *slog.Logger
}

// NewExecRunner creates a runner for binary using the process limits in cfg.
func NewExecRunner(binary string, cfg config.FFmpegConfig, logger *slog.Logger) *ExecRunner {
	return &ExecRunner{
		Binary:    binary,
		MaxOutput: cfg.MaxOutput,
		Timeout:   cfg.Timeout,
		Logger:    logger,
	}
}

// Run starts the process and waits for it to exit.
func (r *ExecRunner) Run(ctx context.Context, args []string) (Output, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	limit := r.MaxOutput
	if limit <= 0 {
		limit = config.DefaultMaxOutput
	}
	stdout := &limitedBuffer{limit: limit}
	stderr := &limitedBuffer{limit: limit}

	cmd := exec.CommandContext(ctx, r.Binary, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if r.Logger != nil {
		r.Logger.Log(ctx, config.LevelTrace, "exec", "binary", r.Binary, "args", args)
	}
	start := time.Now()
	err := cmd.Run()
	out := Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	switch {
	case err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded):
		err = fmt.Errorf("timed out after %s: %w", r.Timeout, ctx.Err())
	case err == nil && (stdout.overflow || stderr.overflow):
		err = fmt.Errorf("output exceeded %d bytes", limit)
	}
	if err != nil {
		return out, &errdefs.ExternalToolError{
			Tool:   r.Binary,
			Args:   args,
			Stderr: string(out.Stderr),
			Err:    err,
		}
	}
	if r.Logger != nil {
		r.Logger.Debug("exec finished", "binary", r.Binary, "elapsed", time.Since(start))
	}
	return out, nil
}

// limitedBuffer keeps the first limit bytes and discards the rest, so the
// child never blocks on a full pipe.
type limitedBuffer struct {
	buf      bytes.Buffer
	limit    int
	overflow bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	room := b.limit - b.buf.Len()
	if room <= 0 {
		b.overflow = true
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.overflow = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *limitedBuffer) Bytes() []byte {
	return b.buf.Bytes()
}
