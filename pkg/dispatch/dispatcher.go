package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/harun/taskgate/internal/metrics"
	"github.com/harun/taskgate/internal/tracing"
	"github.com/harun/taskgate/pkg/approval"
	"github.com/harun/taskgate/pkg/gate"
	"github.com/harun/taskgate/pkg/model"
	"github.com/harun/taskgate/pkg/taskerr"
)

const (
	tracerName      = "taskgate/dispatch"
	DefaultPoolSize = 4
)

// Options wires a Dispatcher to its collaborators
type Options struct {
	// Tools is the tool catalog; the current snapshot is taken per batch.
	Tools *approval.CatalogStore
	// Models holds per-model parameters. Nil means every model task fails
	// with a configuration error.
	Models *model.Catalog
	// Presenter collects decisions. It is shared by all batches, so it
	// should serialize itself (see approval.Broker).
	Presenter approval.Presenter
	Gate      *gate.Gate
	Caller    model.Caller
	// PoolSize bounds concurrent tasks. Zero means DefaultPoolSize.
	PoolSize int
	Metrics  *metrics.Metrics
	Recorder approval.Recorder
}

// Dispatcher runs batches of tasks on a bounded pool
type Dispatcher struct {
	tools     *approval.CatalogStore
	models    *model.Catalog
	presenter approval.Presenter
	gate      *gate.Gate
	caller    model.Caller
	poolSize  int
	metrics   *metrics.Metrics
	recorder  approval.Recorder
}

// New creates a dispatcher
func New(opts Options) (*Dispatcher, error) {
	if opts.Tools == nil {
		return nil, fmt.Errorf("tool catalog is required")
	}
	if opts.Gate == nil {
		return nil, fmt.Errorf("gate is required")
	}
	if opts.Presenter == nil {
		return nil, fmt.Errorf("presenter is required")
	}

	poolSize := opts.PoolSize
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}

	return &Dispatcher{
		tools:     opts.Tools,
		models:    opts.Models,
		presenter: opts.Presenter,
		gate:      opts.Gate,
		caller:    opts.Caller,
		poolSize:  poolSize,
		metrics:   opts.Metrics,
		recorder:  opts.Recorder,
	}, nil
}

// Dispatch runs tasks concurrently and returns one envelope per task in input
// order. Failures of any kind come back as error envelopes.
func (d *Dispatcher) Dispatch(ctx context.Context, tasks []Task) []taskerr.Envelope {
	results := make([]taskerr.Envelope, len(tasks))
	if len(tasks) == 0 {
		return results
	}

	batchID, err := gonanoid.New()
	if err != nil {
		batchID = tracing.NewRunID()
	}
	ctx = tracing.WithBatchID(ctx, batchID)
	if tracing.GetRunID(ctx) == "" {
		ctx = tracing.WithRunID(ctx, tracing.NewRunID())
	}

	ctx, span := tracing.StartSpan(ctx, tracerName, "dispatch.batch",
		attribute.String("batch_id", batchID),
		attribute.Int("tasks", len(tasks)),
	)
	defer span.End()

	logger := tracing.Logger(ctx, log.Logger)
	logger.Info().Int("tasks", len(tasks)).Int("pool_size", d.poolSize).Msg("Dispatching batch")

	if d.metrics != nil {
		d.metrics.BatchesTotal.Inc()
	}

	session := d.newSession()
	start := time.Now()

	p := pool.New().WithMaxGoroutines(d.poolSize)
	for i := range tasks {
		p.Go(func() {
			results[i] = d.runTask(tracing.WithTaskIndex(ctx, i), session, tasks[i])
		})
	}
	p.Wait()

	failed := 0
	for _, env := range results {
		if !env.OK() {
			failed++
		}
	}
	span.SetAttributes(attribute.Int("failed", failed))

	logger.Info().
		Int("tasks", len(tasks)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Batch finished")

	return results
}

func (d *Dispatcher) newSession() *approval.Manager {
	opts := []approval.ManagerOption{approval.WithMetrics(d.metrics)}
	if d.recorder != nil {
		opts = append(opts, approval.WithRecorder(d.recorder))
	}
	return approval.NewManager(d.tools.Current(), d.presenter, opts...)
}

// runTask never panics and always returns an envelope
func (d *Dispatcher) runTask(ctx context.Context, session *approval.Manager, task Task) (env taskerr.Envelope) {
	start := time.Now()

	if d.metrics != nil {
		d.metrics.TasksInFlight.Inc()
	}

	ctx, span := tracing.StartSpan(ctx, tracerName, "dispatch.task",
		attribute.String("kind", string(task.Kind)),
		attribute.String("task", task.Label()),
	)

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("task", task.Label()).
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("Task panicked")
			if d.metrics != nil {
				d.metrics.TaskPanicsTotal.Inc()
			}
			env = taskerr.Failure(taskerr.KindExecution, fmt.Sprintf("task %s panicked: %v", task.Label(), r))
		}

		if !env.OK() {
			span.SetStatus(codes.Error, env.Message)
		}
		span.End()

		if d.metrics != nil {
			d.metrics.TasksInFlight.Dec()
			d.metrics.TasksTotal.WithLabelValues(string(task.Kind), env.Status).Inc()
			d.metrics.TaskDuration.WithLabelValues(string(task.Kind)).Observe(time.Since(start).Seconds())
		}
	}()

	if err := ctx.Err(); err != nil {
		return taskerr.FromError(taskerr.Execution("dispatch", cancelError(err)))
	}

	if err := task.Validate(); err != nil {
		return taskerr.FromError(err)
	}

	task = Prepare(task)

	switch task.Kind {
	case KindModel:
		return d.runModel(ctx, task)
	default:
		return d.gate.Invoke(ctx, session, task.ToolName, task.Params)
	}
}

func (d *Dispatcher) runModel(ctx context.Context, task Task) taskerr.Envelope {
	mp, err := d.models.Lookup(task.ModelName)
	if err != nil {
		return taskerr.FromError(err)
	}
	if d.caller == nil {
		return taskerr.FromError(taskerr.Configuration("dispatch", "no model collaborator configured"))
	}

	out, err := d.caller.Complete(ctx, task.ModelName, task.Prompt, mp)
	if err != nil {
		log.Error().Err(err).Str("model", task.ModelName).Msg("Model call failed")
		return taskerr.FromError(taskerr.Execution("model", err))
	}
	return taskerr.Success(out)
}

func cancelError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("batch deadline exceeded before task started")
	}
	return fmt.Errorf("batch cancelled before task started")
}
