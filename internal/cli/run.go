package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/harun/taskgate/pkg/dispatch"
	"github.com/harun/taskgate/pkg/schedule"
)

var (
	runPresenter string
	runStrict    bool
)

var runCmd = &cobra.Command{
	Use:   "run <batch.json>",
	Short: "Dispatch a batch of tasks",
	Long: `Dispatch every task in a JSON batch file and print one result per task,
in input order. Gated tools wait for an operator decision from the configured
approval presenter.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runPresenter, "presenter", "", "approval presenter (console, websocket, auto-approve, auto-reject)")
	runCmd.Flags().BoolVar(&runStrict, "strict", false, "exit with an error when any task fails")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	tasks, err := schedule.LoadBatch(args[0])
	if err != nil {
		return err
	}

	a, err := newApp(appOptions{
		Presenter: runPresenter,
		In:        cmd.InOrStdin(),
		Prompt:    cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results := a.dispatcher.Dispatch(ctx, tasks)
	outcomes := dispatch.Outcomes(tasks, results)

	data, err := json.MarshalIndent(outcomes, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))

	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}
	log.Info().Int("tasks", len(tasks)).Int("failed", failed).Msg("Batch finished")

	if runStrict && failed > 0 {
		return fmt.Errorf("%d of %d tasks failed", failed, len(tasks))
	}
	return nil
}
