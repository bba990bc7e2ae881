package approval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerSerializesPresentation(t *testing.T) {
	var active, maxActive int32
	presenter := PresenterFunc(func(ctx context.Context, req Request) (Decision, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			old := atomic.LoadInt32(&maxActive)
			if n <= old || atomic.CompareAndSwapInt32(&maxActive, old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return Decision{Approved: true, Reason: req.ID}, nil
	})

	broker := NewBroker(presenter, time.Second)
	defer broker.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("req-%d", i)
			d, err := broker.PresentAndCollect(context.Background(), Request{ID: id})
			assert.NoError(t, err)
			assert.True(t, d.Approved)
			assert.Equal(t, id, d.Reason, "each caller gets its own answer")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxActive))
}

func TestBrokerTimeout(t *testing.T) {
	presenter := PresenterFunc(func(ctx context.Context, req Request) (Decision, error) {
		<-ctx.Done()
		return Decision{}, ctx.Err()
	})

	broker := NewBroker(presenter, 20*time.Millisecond)
	defer broker.Close()

	_, err := broker.PresentAndCollect(context.Background(), Request{ID: "slow"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrApprovalTimeout))
}

func TestBrokerCancellation(t *testing.T) {
	presenter := PresenterFunc(func(ctx context.Context, req Request) (Decision, error) {
		<-ctx.Done()
		return Decision{}, ctx.Err()
	})

	broker := NewBroker(presenter, 0)
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := broker.PresentAndCollect(ctx, Request{ID: "cancelled"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, ErrApprovalTimeout))
}

func TestBrokerClosed(t *testing.T) {
	broker := NewBroker(&AutoPresenter{Approve: true}, 0)
	broker.Close()

	_, err := broker.PresentAndCollect(context.Background(), Request{ID: "late"})
	assert.True(t, errors.Is(err, ErrBrokerClosed))
}
