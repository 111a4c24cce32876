// Package monitor runs analysis requests against live sources on a cron schedule.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/bdougie/videoprobe/internal/config"
	"github.com/bdougie/videoprobe/internal/metrics"
	"github.com/bdougie/videoprobe/internal/models"
	"github.com/bdougie/videoprobe/internal/orchestrator"
	"github.com/bdougie/videoprobe/internal/storage"
)

// Runner runs one analysis request
type Runner interface {
	Run(ctx context.Context, req orchestrator.Request) (*models.Report, error)
}

// JobSpec is one scheduled analysis
type JobSpec struct {
	Name     string            `mapstructure:"name"`
	Spec     string            `mapstructure:"spec"`
	Input    string            `mapstructure:"input"`
	Options  *models.Options   `mapstructure:"options"`
	Config   *config.Overrides `mapstructure:"config"`
	LogLevel string            `mapstructure:"logLevel"`
}

// LoadJobs reads the job list under the "jobs" key of a YAML, JSON or TOML file.
func LoadJobs(path string) ([]JobSpec, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read monitor file %s: %w", path, err)
	}
	var file struct {
		Jobs []JobSpec `mapstructure:"jobs"`
	}
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("decode monitor file %s: %w", path, err)
	}

	seen := make(map[string]bool, len(file.Jobs))
	for i, j := range file.Jobs {
		if j.Name == "" || j.Spec == "" || j.Input == "" {
			return nil, fmt.Errorf("job %d: name, spec and input are required", i)
		}
		if seen[j.Name] {
			return nil, fmt.Errorf("duplicate job name %q", j.Name)
		}
		seen[j.Name] = true
	}
	return file.Jobs, nil
}

// Scheduler runs jobs on their cron specs. Runs of one job never overlap and
// each job works in its own directory below the work root.
type Scheduler struct {
	cron     *cron.Cron
	runner   Runner
	store    storage.Storage
	workRoot string
	logger   *slog.Logger
}

// NewScheduler creates a scheduler. store may be nil.
func NewScheduler(runner Runner, store storage.Storage, workRoot string, logger *slog.Logger) *Scheduler {
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		runner:   runner,
		store:    store,
		workRoot: workRoot,
		logger:   logger,
	}
}

// Add registers a job.
func (s *Scheduler) Add(spec JobSpec) error {
	job := s.newJob(spec)
	if _, err := s.cron.AddJob(spec.Spec, job); err != nil {
		return fmt.Errorf("schedule job %s (spec: %s): %w", spec.Name, spec.Spec, err)
	}
	s.logger.Info("monitor job registered", "job", spec.Name, "spec", spec.Spec, "input", spec.Input)
	return nil
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits up to timeout for running jobs.
// It reports whether all running jobs finished.
func (s *Scheduler) Stop(timeout time.Duration) bool {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
		s.logger.Info("monitor stopped")
		return true
	case <-time.After(timeout):
		s.logger.Warn("monitor stop timed out, jobs may still be running")
		return false
	}
}

func (s *Scheduler) newJob(spec JobSpec) *job {
	return &job{
		spec:      spec,
		scheduler: s,
		workRoot:  filepath.Join(s.workRoot, spec.Name),
		logger:    s.logger.With("job", spec.Name),
	}
}

// job implements cron.Job
type job struct {
	spec      JobSpec
	scheduler *Scheduler
	workRoot  string
	logger    *slog.Logger
}

func (j *job) Run() {
	err := j.run(context.Background())
	metrics.MonitorRunsTotal.WithLabelValues(j.spec.Name, metrics.Status(err)).Inc()
	if err != nil {
		j.logger.Error("monitor run failed", "error", err)
	}
}

func (j *job) run(ctx context.Context) error {
	start := time.Now()
	report, err := j.scheduler.runner.Run(ctx, orchestrator.Request{
		Input:     j.spec.Input,
		Options:   j.spec.Options,
		Overrides: j.spec.Config,
		LogLevel:  j.spec.LogLevel,
		WorkRoot:  j.workRoot,
	})
	if err != nil {
		return err
	}
	j.logger.Info("monitor run done", "keys", report.Keys(), "elapsed", time.Since(start))

	if j.scheduler.store == nil {
		return nil
	}
	if err := j.scheduler.store.Save(ctx, storage.NewStoredReport(j.spec.Input, report)); err != nil {
		return fmt.Errorf("store report: %w", err)
	}
	return j.scheduler.store.Flush()
}

// cronLogger adapts slog to cron.Logger
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
