package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/alvesdmateus/base-images/internal/orchestrator"
)

var buildOpts struct {
	buildOnly    bool
	noCache      bool
	autoRevision bool
}

var buildCmd = &cobra.Command{
	Use:   "build <base-image-name|all>",
	Short: "Build and publish a base image, or all of them",
	Long: `Build the named base image (same as its directory name) and publish it to the
registry. Use "all" to rebuild every base image at once, which is useful when
simply rebuilding bases for security updates.

A failing image does not stop the batch. The command exits non-zero if any
image failed to build, publish or record.`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	flags := buildCmd.Flags()
	flags.StringP("namespace", "n", "gigantum", "push to a non-default namespace")
	flags.BoolVarP(&buildOpts.buildOnly, "build-only", "b", false, "only build the image, do not publish")
	flags.BoolVar(&buildOpts.noCache, "no-cache", false, "do not use the docker build cache")
	flags.BoolVarP(&buildOpts.autoRevision, "generate-base-config-yaml", "g", false,
		"write the next revision record after a successful publish")
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	reporter := newFailureReporter(cmd.ErrOrStderr())

	o, err := orchestrator.Open(ctx, cfg, reporter, out, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if err := o.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to release resources")
		}
	}()

	results, runErr := o.Run(ctx, orchestrator.RunOptions{
		Selector:     args[0],
		Namespace:    cfg.Builder.Namespace,
		BuildOnly:    buildOpts.buildOnly,
		NoCache:      buildOpts.noCache,
		AutoRevision: buildOpts.autoRevision,
	})

	printResults(out, results)

	if runErr != nil {
		return runErr
	}
	if n := reporter.Count(); n > 0 {
		return fmt.Errorf("%d base image(s) failed", n)
	}
	return nil
}
