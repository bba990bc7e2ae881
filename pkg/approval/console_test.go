package approval

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/taskgate/pkg/params"
)

func consoleRequest() Request {
	return Request{
		ID:          "req-1",
		ToolName:    "scrape_website",
		Params:      params.MustFromAny(map[string]interface{}{"url": "http://a.com"}),
		Description: "Fetch a page",
		Status:      StatusPending,
	}
}

func TestConsolePresenter(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		approved bool
		reason   string
	}{
		{"yes", "y\n", true, "approved by user"},
		{"full yes uppercase", "YES\n", true, "approved by user"},
		{"no", "n\n", false, "denied by user"},
		{"invalid then yes", "maybe\n\ny\n", true, "approved by user"},
		{"eof", "", false, "no input provided"},
		{"invalid then eof", "what\n", false, "no input provided"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			p := NewConsolePresenter(strings.NewReader(tt.input), out)

			d, err := p.PresentAndCollect(context.Background(), consoleRequest())
			require.NoError(t, err)
			assert.Equal(t, tt.approved, d.Approved)
			assert.Equal(t, tt.reason, d.Reason)

			text := out.String()
			assert.Contains(t, text, "scrape_website requires approval")
			assert.Contains(t, text, "Fetch a page")
			assert.Contains(t, text, `{"url":"http://a.com"}`)
			assert.Contains(t, text, "Do you approve? (y/n)")
		})
	}
}

func TestConsolePresenterReprompts(t *testing.T) {
	out := &bytes.Buffer{}
	p := NewConsolePresenter(strings.NewReader("x\ny\n"), out)

	_, err := p.PresentAndCollect(context.Background(), consoleRequest())
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out.String(), "Do you approve? (y/n)"))
	assert.Contains(t, out.String(), "Please enter 'y' or 'n'")
}

// promptWriter records output and signals every time the approval prompt is shown
type promptWriter struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	prompts chan struct{}
}

func newPromptWriter() *promptWriter {
	return &promptWriter{prompts: make(chan struct{}, 16)}
}

func (w *promptWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if bytes.Contains(p, []byte("Do you approve?")) {
		w.prompts <- struct{}{}
	}
	return w.buf.Write(p)
}

func (w *promptWriter) waitPrompt(t *testing.T) {
	t.Helper()
	select {
	case <-w.prompts:
	case <-time.After(time.Second):
		t.Fatal("prompt was not shown")
	}
}

type consoleResult struct {
	decision Decision
	err      error
}

func presentAsync(ctx context.Context, p *ConsolePresenter, req Request) chan consoleResult {
	done := make(chan consoleResult, 1)
	go func() {
		d, err := p.PresentAndCollect(ctx, req)
		done <- consoleResult{d, err}
	}()
	return done
}

func TestConsolePresenterSequentialRequests(t *testing.T) {
	reader, writer := io.Pipe()
	defer writer.Close()

	out := newPromptWriter()
	p := NewConsolePresenter(reader, out)

	first := presentAsync(context.Background(), p, consoleRequest())
	out.waitPrompt(t)
	_, err := io.WriteString(writer, "y\n")
	require.NoError(t, err)
	r := <-first
	require.NoError(t, r.err)
	assert.True(t, r.decision.Approved)

	second := presentAsync(context.Background(), p, consoleRequest())
	out.waitPrompt(t)
	_, err = io.WriteString(writer, "n\n")
	require.NoError(t, err)
	r = <-second
	require.NoError(t, r.err)
	assert.False(t, r.decision.Approved)
}

func TestConsolePresenterDiscardsAnswerForAbandonedPrompt(t *testing.T) {
	reader, writer := io.Pipe()
	defer writer.Close()

	out := newPromptWriter()
	p := NewConsolePresenter(reader, out)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.PresentAndCollect(ctx, consoleRequest())
	require.Error(t, err)
	out.waitPrompt(t)

	// The operator answers the prompt that already timed out
	_, err = io.WriteString(writer, "y\n")
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	next := consoleRequest()
	next.ID = "req-2"
	next.ToolName = "wire_transfer"
	done := presentAsync(context.Background(), p, next)
	out.waitPrompt(t)

	select {
	case r := <-done:
		t.Fatalf("request decided without an answer: %+v", r.decision)
	case <-time.After(100 * time.Millisecond):
	}

	_, err = io.WriteString(writer, "n\n")
	require.NoError(t, err)

	r := <-done
	require.NoError(t, r.err)
	assert.False(t, r.decision.Approved)
	assert.Equal(t, "denied by user", r.decision.Reason)
}

func TestConsolePresenterReadError(t *testing.T) {
	boom := errors.New("terminal detached")
	p := NewConsolePresenter(iotest.ErrReader(boom), io.Discard)

	for i := 0; i < 3; i++ {
		d, err := p.PresentAndCollect(context.Background(), consoleRequest())
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.False(t, d.Approved)
	}
}

func TestConsolePresenterTimeout(t *testing.T) {
	reader, writer := io.Pipe()
	defer writer.Close()

	out := &bytes.Buffer{}
	p := NewConsolePresenter(reader, out)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	d, err := p.PresentAndCollect(ctx, consoleRequest())
	assert.Error(t, err)
	assert.False(t, d.Approved)
	assert.Contains(t, out.String(), "TIMED OUT")
}
