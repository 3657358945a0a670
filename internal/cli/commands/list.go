package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/alvesdmateus/base-images/internal/definitions"
	"github.com/alvesdmateus/base-images/internal/orchestrator"
	"github.com/alvesdmateus/base-images/internal/revision"
	"github.com/alvesdmateus/base-images/internal/state"
	"github.com/alvesdmateus/base-images/pkg/database"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List base image definitions and their latest revision",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

// lastPublished looks up the most recent successful publish of a definition
type lastPublished func(ctx context.Context, definition string) (*state.BuildRecord, error)

func runList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	defs, err := definitions.NewResolver(cfg.Builder.RootDir, cfg.Builder.TemplatesDir).Resolve(definitions.Wildcard)
	if err != nil {
		return err
	}

	var lookup lastPublished
	if cfg.History.Enabled {
		db, err := orchestrator.OpenHistory(cfg.History)
		if err != nil {
			return fmt.Errorf("failed to open build history: %w", err)
		}
		defer database.Close(db)
		lookup = state.NewRepository(db).LastSuccess
	}

	return writeDefinitions(cmd.Context(), cmd.OutOrStdout(), defs, revision.NewTracker(), lookup)
}

func writeDefinitions(ctx context.Context, out io.Writer, defs []definitions.Definition, tracker *revision.Tracker, lookup lastPublished) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	if lookup != nil {
		fmt.Fprintln(w, "NAME\tREVISION\tIMAGE\tLAST PUBLISHED")
	} else {
		fmt.Fprintln(w, "NAME\tREVISION\tIMAGE")
	}

	for _, def := range defs {
		rev, image := "-", "-"
		var noBase revision.NoBaseRevisionError
		latest, err := tracker.Latest(def)
		switch {
		case err == nil:
			rev = strconv.Itoa(latest.Revision)
			image = latest.Record.Image.Reference()
		case errors.As(err, &noBase):
		default:
			return err
		}

		if lookup == nil {
			fmt.Fprintf(w, "%s\t%s\t%s\n", def.Name, rev, image)
			continue
		}

		published := "-"
		record, err := lookup(ctx, def.Name)
		if err != nil {
			log.Warn().Err(err).Str("definition", def.Name).Msg("Failed to read build history")
		} else if record != nil {
			published = record.FinishedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", def.Name, rev, image, published)
	}

	return w.Flush()
}
