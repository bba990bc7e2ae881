package approval

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// ConsolePresenter prompts on a terminal. Input is read by a single
// background reader. Each line is stamped with the prompt that was on screen
// when it was read, so an answer typed for an abandoned prompt is never
// applied to the next one.
type ConsolePresenter struct {
	reader io.Reader
	writer io.Writer

	startOnce sync.Once
	prompt    atomic.Uint64
	lines     chan consoleLine
	// readErr is set before lines is closed
	readErr   error
}

type consoleLine struct {
	text   string
	prompt uint64
}

// NewConsolePresenter creates a presenter reading answers from reader
func NewConsolePresenter(reader io.Reader, writer io.Writer) *ConsolePresenter {
	return &ConsolePresenter{
		reader: reader,
		writer: writer,
		lines:  make(chan consoleLine),
	}
}

// PresentAndCollect displays req and asks until it gets y/yes or n/no.
// End of input counts as a rejection.
func (c *ConsolePresenter) PresentAndCollect(ctx context.Context, req Request) (Decision, error) {
	current := c.prompt.Add(1)
	c.startOnce.Do(func() { go c.readLoop() })

	c.displayRequest(req)
	fmt.Fprint(c.writer, "  Do you approve? (y/n): ")

	for {
		select {
		case line, ok := <-c.lines:
			if !ok {
				if c.readErr != nil {
					return Decision{}, fmt.Errorf("failed to read input: %w", c.readErr)
				}
				c.displayDenied()
				return Decision{Approved: false, Reason: "no input provided"}, nil
			}
			if line.prompt != current {
				log.Debug().
					Str("tool", req.ToolName).
					Str("input", line.text).
					Msg("Discarding input typed before the prompt")
				continue
			}

			switch strings.TrimSpace(strings.ToLower(line.text)) {
			case "y", "yes":
				c.displayApproved()
				log.Info().
					Str("tool", req.ToolName).
					Str("request_id", req.ID).
					Msg("Tool call approved via console")
				return Decision{Approved: true, Reason: "approved by user"}, nil

			case "n", "no":
				c.displayDenied()
				log.Info().
					Str("tool", req.ToolName).
					Str("request_id", req.ID).
					Msg("Tool call denied via console")
				return Decision{Approved: false, Reason: "denied by user"}, nil

			default:
				fmt.Fprintln(c.writer, "  Please enter 'y' or 'n'")
				fmt.Fprint(c.writer, "  Do you approve? (y/n): ")
				log.Debug().
					Str("tool", req.ToolName).
					Str("input", line.text).
					Msg("Invalid approval input")
			}

		case <-ctx.Done():
			c.displayTimeout()
			return Decision{Approved: false, Reason: "timeout"}, ctx.Err()
		}
	}
}

func (c *ConsolePresenter) readLoop() {
	scanner := bufio.NewScanner(c.reader)
	for scanner.Scan() {
		c.lines <- consoleLine{text: scanner.Text(), prompt: c.prompt.Load()}
	}
	c.readErr = scanner.Err()
	close(c.lines)
}

func (c *ConsolePresenter) displayRequest(req Request) {
	fmt.Fprintln(c.writer, "")
	fmt.Fprintln(c.writer, "╔════════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(c.writer, "║                    TOOL APPROVAL REQUIRED                      ║")
	fmt.Fprintln(c.writer, "╚════════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(c.writer, "")
	fmt.Fprintf(c.writer, "  Tool:        %s requires approval\n", req.ToolName)
	if req.Description != "" {
		fmt.Fprintf(c.writer, "  Description: %s\n", req.Description)
	}
	fmt.Fprintf(c.writer, "  Parameters:  %s\n", req.Params)
	fmt.Fprintf(c.writer, "  Request:     %s\n", req.ID)
	fmt.Fprintln(c.writer, "")
}

func (c *ConsolePresenter) displayApproved() {
	fmt.Fprintln(c.writer, "")
	fmt.Fprintln(c.writer, "  ✅ Tool call APPROVED")
	fmt.Fprintln(c.writer, "")
}

func (c *ConsolePresenter) displayDenied() {
	fmt.Fprintln(c.writer, "")
	fmt.Fprintln(c.writer, "  ❌ Tool call DENIED")
	fmt.Fprintln(c.writer, "")
}

func (c *ConsolePresenter) displayTimeout() {
	fmt.Fprintln(c.writer, "")
	fmt.Fprintln(c.writer, "  ⏱️  Approval request TIMED OUT")
	fmt.Fprintln(c.writer, "")
}
