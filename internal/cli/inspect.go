package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harun/taskgate/internal/config"
	"github.com/harun/taskgate/pkg/approval"
	"github.com/harun/taskgate/pkg/dispatch"
	"github.com/harun/taskgate/pkg/preprocess"
	"github.com/harun/taskgate/pkg/schedule"
)

var (
	cleanMode      string
	cleanMinLength int

	historyTool  string
	historyLimit int
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List configured tools",
	Args:  cobra.NoArgs,
	RunE:  runTools,
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List configured models",
	Args:  cobra.NoArgs,
	RunE:  runModels,
}

var cleanCmd = &cobra.Command{
	Use:   "clean <text>...",
	Short: "Show how text is cleaned before dispatch",
	Long: `Run the preprocessing pipeline over the arguments and print the result.

Modes:
  text       - drop symbols other than basic punctuation, collapse whitespace
  query      - lower case, punctuation becomes whitespace
  embedding  - lower case each argument and remove URLs, emails and bare
               numbers, dropping results shorter than --min-length`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClean,
}

var checkCmd = &cobra.Command{
	Use:   "check <batch.json>",
	Short: "Validate a batch without dispatching it",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent approval decisions",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	cleanCmd.Flags().StringVar(&cleanMode, "mode", "text", "cleaning mode (text, query, embedding)")
	cleanCmd.Flags().IntVar(&cleanMinLength, "min-length", 0, "drop texts shorter than this many runes (embedding mode)")

	historyCmd.Flags().StringVar(&historyTool, "tool", "", "only show decisions for this tool")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of decisions")

	rootCmd.AddCommand(toolsCmd, modelsCmd, cleanCmd, checkCmd, historyCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	catalog, err := config.LoadToolCatalog(cfg.ToolConfigPath)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TOOL\tAPPROVAL\tPARAMS\tDESCRIPTION")
	for _, name := range catalog.Names() {
		spec, _ := catalog.Lookup(name)
		gated := "no"
		if spec.ApprovalRequired {
			gated = "required"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, gated, formatParams(spec.ExpectedParams), spec.Description)
	}
	return w.Flush()
}

func formatParams(expected map[string]string) string {
	if len(expected) == 0 {
		return "-"
	}
	names := make([]string, 0, len(expected))
	for name := range expected {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + ":" + expected[name]
	}
	return strings.Join(parts, ", ")
}

func runModels(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	catalog, err := config.LoadModelCatalog(cfg.ModelConfigPath)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPROVIDER\tMODEL\tTEMPERATURE\tTOP_P\tMAX_TOKENS")
	for _, name := range catalog.Names() {
		p, _ := catalog.Lookup(name)
		provider := p.Provider
		if provider == "" {
			provider = "openai"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%g\t%g\t%d\n", name, provider, p.Model, p.Temperature, p.TopP, p.MaxTokens)
	}
	return w.Flush()
}

func runClean(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	switch cleanMode {
	case "text":
		fmt.Fprintln(out, preprocess.CleanText(strings.Join(args, " ")))
	case "query":
		fmt.Fprintln(out, preprocess.CleanQuery(strings.Join(args, " ")))
	case "embedding":
		texts := preprocess.PreprocessForEmbedding(args...)
		if cleanMinLength > 0 {
			texts = preprocess.FilterTexts(texts, cleanMinLength)
		}
		for _, t := range texts {
			fmt.Fprintln(out, t)
		}
	default:
		return fmt.Errorf("unknown mode %q (must be one of: text, query, embedding)", cleanMode)
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	tasks, err := schedule.LoadBatch(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	catalog, err := config.LoadToolCatalog(cfg.ToolConfigPath)
	if err != nil {
		return err
	}

	problems := checkBatch(cmd.OutOrStdout(), tasks, catalog)
	if problems > 0 {
		return fmt.Errorf("%d of %d tasks have problems", problems, len(tasks))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d tasks ok\n", len(tasks))
	return nil
}

// checkBatch reports every task that would fail validation before reaching a
// collaborator
func checkBatch(out io.Writer, tasks []dispatch.Task, catalog *approval.Catalog) int {
	problems := 0
	for i, t := range tasks {
		if err := t.Validate(); err != nil {
			fmt.Fprintf(out, "task %d (%s): %v\n", i, t.Label(), err)
			problems++
			continue
		}
		if t.Kind == dispatch.KindModel {
			continue
		}

		spec, ok := catalog.Lookup(t.ToolName)
		if !ok {
			fmt.Fprintf(out, "task %d (%s): tool not in tool config\n", i, t.Label())
			problems++
			continue
		}
		if !spec.ApprovalRequired {
			continue
		}

		prepared := dispatch.Prepare(t)
		if valid, violations := catalog.Validate(t.ToolName, prepared.Params); !valid {
			fmt.Fprintf(out, "task %d (%s): invalid parameters: %s\n", i, t.Label(), strings.Join(violations, "; "))
			problems++
		}
	}
	return problems
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ledger, err := approval.OpenLedger(cfg.Approval.LedgerPath)
	if err != nil {
		return err
	}
	defer ledger.Close()

	decisions, err := ledger.Recent(cmd.Context(), historyTool, historyLimit)
	if err != nil {
		return err
	}
	if decisions == nil {
		decisions = []approval.Request{}
	}

	data, err := json.MarshalIndent(decisions, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
