package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/harun/taskgate/pkg/schedule"
)

var (
	serveSpec      string
	serveBatch     string
	servePresenter string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run scheduled batches until stopped",
	Long: `Run the scheduler service in the foreground. The configured batch file is
dispatched on its cron schedule until the process receives SIGINT or SIGTERM
(see "taskgate stop"). The tool config is reloaded when it changes.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveSpec, "schedule", "", "cron expression, overrides schedule.spec")
	serveCmd.Flags().StringVar(&serveBatch, "batch", "", "batch file, overrides schedule.batch_file")
	serveCmd.Flags().StringVar(&servePresenter, "presenter", "", "approval presenter (console, websocket, auto-approve, auto-reject)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	pidFile := getPIDFilePath()
	if isRunning(pidFile) {
		return fmt.Errorf("service is already running (PID file: %s)", pidFile)
	}

	a, err := newApp(appOptions{
		Presenter: servePresenter,
		In:        cmd.InOrStdin(),
		Prompt:    cmd.ErrOrStderr(),
		Watch:     true,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	spec, batch := a.cfg.Schedule.Spec, a.cfg.Schedule.BatchFile
	if serveSpec != "" {
		spec = serveSpec
	}
	if serveBatch != "" {
		batch = serveBatch
	}
	if spec == "" || batch == "" {
		return fmt.Errorf("nothing to schedule: set schedule.spec and schedule.batch_file or pass --schedule and --batch")
	}

	sched := schedule.New(a.dispatcher, schedule.Options{
		OnRun: func(run schedule.Run) {
			if run.Err != nil {
				return
			}
			failed := 0
			for _, o := range run.Outcomes {
				if !o.OK() {
					failed++
				}
			}
			log.Info().
				Str("batch", run.BatchFile).
				Int("tasks", len(run.Outcomes)).
				Int("failed", failed).
				Msg("Run complete")
		},
	})
	if _, err := sched.AddBatch(spec, batch); err != nil {
		return err
	}

	if err := writePIDFile(pidFile); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	defer func() {
		if err := os.Remove(pidFile); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Msg("Failed to remove PID file")
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched.Start()
	next, _ := schedule.NextRun(spec, time.Now())
	log.Info().
		Int("pid", os.Getpid()).
		Str("pid_file", pidFile).
		Time("next_run", next).
		Msg("Service started")

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil {
		log.Warn().Err(err).Msg("Scheduled batch did not finish before shutdown")
	}
	return nil
}
