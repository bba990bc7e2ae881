package approval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/harun/taskgate/internal/metrics"
	"github.com/harun/taskgate/internal/tracing"
	"github.com/harun/taskgate/pkg/params"
	"github.com/harun/taskgate/pkg/taskerr"
)

const tracerName = "taskgate/approval"

// Manager owns the approval requests of one dispatch session. Requests are
// keyed by a generated invocation ID, so concurrent calls to the same tool
// never share state.
type Manager struct {
	catalog   *Catalog
	presenter Presenter
	recorder  Recorder
	metrics   *metrics.Metrics

	mu       sync.Mutex
	requests map[string]*Request
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithRecorder persists every decision
func WithRecorder(r Recorder) ManagerOption {
	return func(m *Manager) { m.recorder = r }
}

// WithMetrics counts decisions per tool
func WithMetrics(mt *metrics.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = mt }
}

// NewManager creates a session-scoped manager
func NewManager(catalog *Catalog, presenter Presenter, opts ...ManagerOption) *Manager {
	m := &Manager{
		catalog:   catalog,
		presenter: presenter,
		requests:  make(map[string]*Request),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IsApprovalRequired reports whether tool is gated
func (m *Manager) IsApprovalRequired(tool string) (bool, error) {
	spec, ok := m.catalog.Lookup(tool)
	if !ok {
		return false, taskerr.Configuration("approval", "tool %s not found in configuration", tool)
	}
	return spec.ApprovalRequired, nil
}

// ValidateParams checks p against the declared parameters of tool. A missing
// key or mismatched type yields false, not an error.
func (m *Manager) ValidateParams(tool string, p params.Value) (bool, error) {
	if _, ok := m.catalog.Lookup(tool); !ok {
		return false, taskerr.Configuration("approval", "tool %s not found in configuration", tool)
	}

	valid, problems := m.catalog.Validate(tool, p)
	if !valid {
		log.Debug().
			Str("tool", tool).
			Strs("problems", problems).
			Msg("Parameter validation failed")
	}
	return valid, nil
}

// RequestApproval creates a pending request for a validated call, collects a
// decision through the presenter and returns the decided request. A presenter
// failure or timeout rejects the request.
func (m *Manager) RequestApproval(ctx context.Context, tool string, p params.Value) (Request, error) {
	spec, ok := m.catalog.Lookup(tool)
	if !ok {
		return Request{}, taskerr.Configuration("approval", "tool %s not found in configuration", tool)
	}

	if valid, problems := m.catalog.Validate(tool, p); !valid {
		return Request{}, taskerr.Validation("approval", "invalid parameters for tool %s: %s", tool, strings.Join(problems, "; "))
	}

	if m.presenter == nil {
		return Request{}, taskerr.Configuration("approval", "no approval presenter configured")
	}

	req := &Request{
		ID:          uuid.NewString(),
		ToolName:    tool,
		Params:      p,
		Description: spec.Description,
		Status:      StatusPending,
		CreatedAt:   time.Now(),
	}

	m.mu.Lock()
	m.requests[req.ID] = req
	snapshot := *req
	m.mu.Unlock()

	ctx, span := tracing.StartSpan(ctx, tracerName, "approval.request",
		attribute.String("tool", tool),
		attribute.String("request_id", req.ID),
	)
	defer span.End()

	log.Info().
		Str("tool", tool).
		Str("request_id", req.ID).
		Msg("Requesting approval")

	decision, err := m.presenter.PresentAndCollect(ctx, snapshot)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn().
			Err(err).
			Str("tool", tool).
			Str("request_id", req.ID).
			Msg("Approval request failed, rejecting")
		decision = Decision{Approved: false, Reason: err.Error()}
	}

	target := StatusRejected
	if decision.Approved {
		target = StatusApproved
	}

	decided, err := m.decide(req.ID, target, decision.Reason)
	if err != nil && !errors.Is(err, ErrAlreadyDecided) {
		return Request{}, err
	}
	span.SetAttributes(attribute.String("status", string(decided.Status)))

	if decided.Status == StatusApproved {
		log.Info().
			Str("tool", tool).
			Str("request_id", req.ID).
			Str("reason", decided.Reason).
			Msg("Approval granted")
	} else {
		log.Warn().
			Str("tool", tool).
			Str("request_id", req.ID).
			Str("reason", decided.Reason).
			Msg("Approval denied")
	}

	return decided, nil
}

// Approve marks a pending request approved
func (m *Manager) Approve(id string) error {
	_, err := m.decide(id, StatusApproved, "approved")
	return err
}

// Reject marks a pending request rejected
func (m *Manager) Reject(id string) error {
	_, err := m.decide(id, StatusRejected, "rejected")
	return err
}

// Status returns the status of request id, or StatusNone if there is none
func (m *Manager) Status(id string) Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[id]
	if !ok {
		return StatusNone
	}
	return req.Status
}

// Get returns a copy of request id
func (m *Manager) Get(id string) (Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[id]
	if !ok {
		return Request{}, false
	}
	return *req, true
}

// List returns copies of all requests of the session, oldest first
func (m *Manager) List() []Request {
	m.mu.Lock()
	out := make([]Request, 0, len(m.requests))
	for _, req := range m.requests {
		out = append(out, *req)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// decide applies a terminal transition. Deciding twice fails with
// ErrAlreadyDecided and returns the existing decision.
func (m *Manager) decide(id string, target Status, reason string) (Request, error) {
	m.mu.Lock()
	req, ok := m.requests[id]
	if !ok {
		m.mu.Unlock()
		return Request{}, taskerr.Configuration("approval", "no approval request with id %s", id)
	}

	next, err := Transition(req.Status, target)
	if err != nil {
		snapshot := *req
		m.mu.Unlock()
		return snapshot, fmt.Errorf("request %s: %w", id, err)
	}

	req.Status = next
	req.Reason = reason
	req.DecidedAt = time.Now()
	snapshot := *req
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.ApprovalsTotal.WithLabelValues(snapshot.ToolName, string(snapshot.Status)).Inc()
	}

	if m.recorder != nil {
		if err := m.recorder.Record(context.Background(), snapshot); err != nil {
			log.Error().
				Err(err).
				Str("request_id", id).
				Msg("Failed to record approval decision")
		}
	}

	return snapshot, nil
}
