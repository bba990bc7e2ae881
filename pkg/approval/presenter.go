package approval

import (
	"context"
	"time"

	"github.com/harun/taskgate/pkg/params"
)

// Request is one gated tool invocation awaiting, or holding, a human decision
type Request struct {
	ID          string       `json:"id"`
	ToolName    string       `json:"tool_name"`
	Params      params.Value `json:"params"`
	Description string       `json:"description"`
	Status      Status       `json:"status"`
	Reason      string       `json:"reason,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	DecidedAt   time.Time    `json:"decided_at,omitempty"`
}

// Decision is the answer collected for a request
type Decision struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason"`
}

// Presenter shows a request to a human and collects a decision.
// Implementations must return when ctx is done.
type Presenter interface {
	PresentAndCollect(ctx context.Context, req Request) (Decision, error)
}

// PresenterFunc adapts a function to Presenter
type PresenterFunc func(ctx context.Context, req Request) (Decision, error)

func (f PresenterFunc) PresentAndCollect(ctx context.Context, req Request) (Decision, error) {
	return f(ctx, req)
}

// AutoPresenter answers every request with a fixed decision. Used for
// unattended runs and tests.
type AutoPresenter struct {
	Approve bool
	Delay   time.Duration
	Error   error
}

// PresentAndCollect implements Presenter
func (a *AutoPresenter) PresentAndCollect(ctx context.Context, req Request) (Decision, error) {
	if a.Delay > 0 {
		select {
		case <-time.After(a.Delay):
		case <-ctx.Done():
			return Decision{}, ctx.Err()
		}
	}

	if a.Error != nil {
		return Decision{}, a.Error
	}

	if a.Approve {
		return Decision{Approved: true, Reason: "auto-approved"}, nil
	}
	return Decision{Approved: false, Reason: "auto-rejected"}, nil
}
