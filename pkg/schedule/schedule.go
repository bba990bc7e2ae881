// Package schedule runs batch files on cron schedules.
package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/harun/taskgate/pkg/dispatch"
	"github.com/harun/taskgate/pkg/taskerr"
)

// Dispatcher runs one batch
type Dispatcher interface {
	Dispatch(ctx context.Context, tasks []dispatch.Task) []taskerr.Envelope
}

// Run is the outcome of one scheduled batch
type Run struct {
	BatchFile string
	StartedAt time.Time
	Duration  time.Duration
	Outcomes  []dispatch.Outcome
	Err       error
}

// Options configure a Scheduler
type Options struct {
	// Location for cron expressions. Nil means local time.
	Location *time.Location
	// OnRun receives every finished run
	OnRun func(Run)
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Scheduler dispatches batch files on cron schedules. A run still in progress
// when its next tick fires causes that tick to be skipped.
type Scheduler struct {
	dispatcher Dispatcher
	cron       *cron.Cron
	onRun      func(Run)

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// New creates a scheduler
func New(d Dispatcher, opts Options) *Scheduler {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	logger := cronLogger{log.Logger}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		dispatcher: d,
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		onRun:  opts.OnRun,
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddBatch schedules batchFile on spec. The file is re-read on every run.
func (s *Scheduler) AddBatch(spec, batchFile string) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(spec, func() {
		run := s.RunOnce(s.ctx, batchFile)
		if s.onRun != nil {
			s.onRun(run)
		}
	})
	if err != nil {
		return 0, fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}

	log.Info().Str("spec", spec).Str("batch", batchFile).Msg("Batch scheduled")
	return id, nil
}

// Start begins firing schedules
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running batches and waits for them to return or ctx to end
func (s *Scheduler) Stop(ctx context.Context) error {
	var stopCtx context.Context
	s.once.Do(func() {
		s.cancel()
		stopCtx = s.cron.Stop()
	})
	if stopCtx == nil {
		return nil
	}

	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce loads and dispatches batchFile
func (s *Scheduler) RunOnce(ctx context.Context, batchFile string) Run {
	run := Run{BatchFile: batchFile, StartedAt: time.Now()}

	tasks, err := LoadBatch(batchFile)
	if err != nil {
		run.Err = err
		log.Error().Err(err).Str("batch", batchFile).Msg("Failed to load batch")
		return run
	}

	results := s.dispatcher.Dispatch(ctx, tasks)
	run.Outcomes = dispatch.Outcomes(tasks, results)
	run.Duration = time.Since(run.StartedAt)

	log.Info().
		Str("batch", batchFile).
		Int("tasks", len(tasks)).
		Dur("duration", run.Duration).
		Msg("Scheduled batch finished")

	return run
}

// NextRun returns the first activation of spec after from
func NextRun(spec string, from time.Time) (time.Time, error) {
	sched, err := parser.Parse(spec)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression: %w", err)
	}
	return sched.Next(from), nil
}

// LoadBatch reads a JSON array of tasks
func LoadBatch(path string) ([]dispatch.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}

	var tasks []dispatch.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("failed to parse batch file %s: %w", path, err)
	}
	return tasks, nil
}

// cronLogger adapts zerolog to cron.Logger
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
