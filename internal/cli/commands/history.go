package commands

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/alvesdmateus/base-images/internal/orchestrator"
	"github.com/alvesdmateus/base-images/internal/state"
	"github.com/alvesdmateus/base-images/pkg/database"
)

var historyOpts struct {
	definition string
	runID      string
	limit      int
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded build and publish outcomes",
	Long: `Show the outcome of previous builds from the build history database.
History is only recorded when history.enabled is set in the configuration.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	flags := historyCmd.Flags()
	flags.StringVarP(&historyOpts.definition, "definition", "d", "", "only show this base image")
	flags.StringVar(&historyOpts.runID, "run", "", "only show items of this run ID")
	flags.IntVarP(&historyOpts.limit, "limit", "l", 20, "maximum number of records")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if !cfg.History.Enabled {
		return errors.New("build history is disabled, set history.enabled to record it")
	}
	if historyOpts.definition != "" && historyOpts.runID != "" {
		return errors.New("--definition and --run cannot be combined")
	}

	db, err := orchestrator.OpenHistory(cfg.History)
	if err != nil {
		return fmt.Errorf("failed to open build history: %w", err)
	}
	defer database.Close(db)

	repo := state.NewRepository(db)
	ctx := cmd.Context()

	var records []state.BuildRecord
	switch {
	case historyOpts.runID != "":
		runID, perr := uuid.Parse(historyOpts.runID)
		if perr != nil {
			return fmt.Errorf("invalid run ID %q: %w", historyOpts.runID, perr)
		}
		records, err = repo.ListByRun(ctx, runID)
	case historyOpts.definition != "":
		records, err = repo.ListByDefinition(ctx, historyOpts.definition, historyOpts.limit)
	default:
		records, err = repo.ListRecent(ctx, historyOpts.limit)
	}
	if err != nil {
		return err
	}

	return writeHistory(cmd.OutOrStdout(), records)
}

func writeHistory(out io.Writer, records []state.BuildRecord) error {
	if len(records) == 0 {
		fmt.Fprintln(out, "No builds recorded")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tRUN\tDEFINITION\tSTATUS\tSTAGE\tDURATION\tIMAGE\tERROR")
	for _, r := range records {
		image := "-"
		if r.Tag != "" && !r.BuildOnly {
			image = fmt.Sprintf("%s/%s:%s", r.Namespace, r.Repository, r.Tag)
		}
		errText := "-"
		if r.Error != "" {
			errText = r.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.RunID.String()[:8],
			r.Definition,
			r.Status,
			r.Stage,
			r.Duration().Round(time.Second),
			image,
			errText,
		)
	}
	return w.Flush()
}
