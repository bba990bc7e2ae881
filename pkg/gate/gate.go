package gate

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/harun/taskgate/internal/metrics"
	"github.com/harun/taskgate/pkg/approval"
	"github.com/harun/taskgate/pkg/params"
	"github.com/harun/taskgate/pkg/taskerr"
)

const (
	defaultTimeout   = 30 * time.Second
	truncationMarker = "\n... [output truncated]"
)

// Approver is the part of an approval session the gate needs
type Approver interface {
	IsApprovalRequired(tool string) (bool, error)
	RequestApproval(ctx context.Context, tool string, p params.Value) (approval.Request, error)
}

// Config tunes tool invocation
type Config struct {
	// Timeout bounds each collaborator call. Zero means 30s.
	Timeout time.Duration
	// MaxOutput truncates string results longer than this many bytes. Zero disables it.
	MaxOutput int
	Metrics   *metrics.Metrics
}

// Gate is the only path to a tool collaborator. It asks for approval when the
// tool requires it and turns every outcome into an envelope.
type Gate struct {
	registry  *Registry
	timeout   time.Duration
	maxOutput int
	metrics   *metrics.Metrics
}

// New creates a gate over registry
func New(registry *Registry, cfg Config) *Gate {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Gate{
		registry:  registry,
		timeout:   timeout,
		maxOutput: cfg.MaxOutput,
		metrics:   cfg.Metrics,
	}
}

// Invoke runs tool with p under approver's session. It never returns an error
// or panics; failures come back as error envelopes.
func (g *Gate) Invoke(ctx context.Context, approver Approver, tool string, p params.Value) taskerr.Envelope {
	env := g.invoke(ctx, approver, tool, p)

	if g.metrics != nil {
		g.metrics.ToolInvocationsTotal.WithLabelValues(tool, env.Status).Inc()
	}
	return env
}

func (g *Gate) invoke(ctx context.Context, approver Approver, tool string, p params.Value) taskerr.Envelope {
	t, ok := g.registry.lookup(tool)
	if !ok {
		err := taskerr.Configuration("gate", "tool %s is not registered", tool)
		log.Error().Str("tool", tool).Msg("Tool not found")
		return taskerr.FromError(err)
	}

	required, err := approver.IsApprovalRequired(tool)
	if err != nil {
		log.Error().Err(err).Str("tool", tool).Msg("Tool not configured")
		return taskerr.FromError(err)
	}

	if required {
		req, err := approver.RequestApproval(ctx, tool, p)
		if err != nil {
			log.Warn().Err(err).Str("tool", tool).Msg("Approval request failed")
			return taskerr.FromError(err)
		}
		if req.Status != approval.StatusApproved {
			return taskerr.FromError(taskerr.Denied("", "%s was not approved", tool))
		}
	}

	return g.execute(ctx, t, p)
}

func (g *Gate) execute(ctx context.Context, t Tool, p params.Value) taskerr.Envelope {
	startTime := time.Now()

	timeoutCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resultChan := make(chan interface{}, 1)
	errChan := make(chan error, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Str("tool", t.Name).
					Interface("panic", r).
					Str("stack", string(debug.Stack())).
					Msg("Tool panicked")
				errChan <- fmt.Errorf("tool %s panicked: %v", t.Name, r)
			}
		}()

		result, err := t.Handler(timeoutCtx, p)
		if err != nil {
			errChan <- err
		} else {
			resultChan <- result
		}
	}()

	select {
	case result := <-resultChan:
		duration := time.Since(startTime)
		g.observe(t.Name, duration)

		output, truncated := g.truncateOutput(result)

		log.Debug().
			Str("tool", t.Name).
			Dur("duration", duration).
			Bool("truncated", truncated).
			Msg("Tool execution completed")

		return taskerr.Success(output)

	case err := <-errChan:
		duration := time.Since(startTime)
		g.observe(t.Name, duration)

		log.Error().
			Str("tool", t.Name).
			Dur("duration", duration).
			Err(err).
			Msg("Tool execution failed")

		return taskerr.Failure(taskerr.KindExecution, err.Error())

	case <-timeoutCtx.Done():
		duration := time.Since(startTime)
		g.observe(t.Name, duration)

		if errors.Is(ctx.Err(), context.Canceled) {
			return taskerr.Failure(taskerr.KindExecution, fmt.Sprintf("tool %s cancelled", t.Name))
		}

		log.Error().
			Str("tool", t.Name).
			Dur("duration", duration).
			Msg("Tool execution timeout")

		return taskerr.Failure(taskerr.KindExecution, fmt.Sprintf("tool %s timed out after %v", t.Name, g.timeout))
	}
}

func (g *Gate) observe(tool string, d time.Duration) {
	if g.metrics != nil {
		g.metrics.ToolDuration.WithLabelValues(tool).Observe(d.Seconds())
	}
}

// truncateOutput shortens oversized string results
func (g *Gate) truncateOutput(output interface{}) (interface{}, bool) {
	s, ok := output.(string)
	if !ok || g.maxOutput <= 0 || len(s) <= g.maxOutput {
		return output, false
	}

	log.Warn().
		Int("original", len(s)).
		Int("truncated", g.maxOutput).
		Msg("Output truncated")

	return s[:g.maxOutput] + truncationMarker, true
}
