package approval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	// ErrApprovalTimeout is returned when no decision arrives in time
	ErrApprovalTimeout = errors.New("approval request timed out")
	// ErrBrokerClosed is returned for requests submitted after Close
	ErrBrokerClosed = errors.New("approval broker closed")
)

type brokerItem struct {
	ctx   context.Context
	req   Request
	reply chan brokerReply
}

type brokerReply struct {
	decision Decision
	err      error
}

// Broker serializes access to a Presenter. Any number of workers may call
// PresentAndCollect; a single goroutine shows one request at a time and each
// caller waits on its own reply channel.
type Broker struct {
	presenter Presenter
	timeout   time.Duration

	queue    chan brokerItem
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewBroker starts a broker in front of presenter. A zero timeout waits
// until the caller's context ends.
func NewBroker(presenter Presenter, timeout time.Duration) *Broker {
	b := &Broker{
		presenter: presenter,
		timeout:   timeout,
		queue:     make(chan brokerItem),
		done:      make(chan struct{}),
	}

	b.wg.Add(1)
	go b.run()

	return b
}

// PresentAndCollect queues req and blocks until it is decided, the wait
// times out or ctx ends.
func (b *Broker) PresentAndCollect(ctx context.Context, req Request) (Decision, error) {
	waitCtx := ctx
	if b.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	item := brokerItem{
		ctx:   waitCtx,
		req:   req,
		reply: make(chan brokerReply, 1),
	}

	select {
	case b.queue <- item:
	case <-waitCtx.Done():
		return Decision{Reason: "timeout"}, b.waitError(ctx, waitCtx)
	case <-b.done:
		return Decision{}, ErrBrokerClosed
	}

	select {
	case r := <-item.reply:
		if r.err != nil && waitCtx.Err() != nil {
			return r.decision, b.waitError(ctx, waitCtx)
		}
		return r.decision, r.err
	case <-waitCtx.Done():
		return Decision{Reason: "timeout"}, b.waitError(ctx, waitCtx)
	}
}

// Close stops the consumer goroutine
func (b *Broker) Close() {
	b.stopOnce.Do(func() {
		close(b.done)
	})
	b.wg.Wait()
}

func (b *Broker) run() {
	defer b.wg.Done()

	for {
		select {
		case item := <-b.queue:
			if err := item.ctx.Err(); err != nil {
				item.reply <- brokerReply{err: err}
				continue
			}

			log.Debug().
				Str("tool", item.req.ToolName).
				Str("request_id", item.req.ID).
				Msg("Presenting approval request")

			decision, err := b.presenter.PresentAndCollect(item.ctx, item.req)
			item.reply <- brokerReply{decision: decision, err: err}

		case <-b.done:
			return
		}
	}
}

func (b *Broker) waitError(parent, waitCtx context.Context) error {
	if parent.Err() == nil && errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %v", ErrApprovalTimeout, b.timeout)
	}
	return fmt.Errorf("approval wait cancelled: %w", waitCtx.Err())
}
