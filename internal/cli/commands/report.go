package commands

import (
	"fmt"
	"io"

	"github.com/alvesdmateus/base-images/internal/orchestrator"
)

// failureReporter prints item failures as they happen and counts them
type failureReporter struct {
	w        io.Writer
	failures []string
}

func newFailureReporter(w io.Writer) *failureReporter {
	return &failureReporter{w: w}
}

func (r *failureReporter) ItemFailed(definition string, stage orchestrator.Stage, err error) {
	r.failures = append(r.failures, definition)
	fmt.Fprintf(r.w, "\n\n  - %s failed during %s: %v\n", definition, stage, err)
}

// Count returns the number of failed items
func (r *failureReporter) Count() int {
	return len(r.failures)
}

// printResults prints what to do next for every image that reached the
// publish step. Build-only results are not listed.
func printResults(w io.Writer, results []orchestrator.BatchResult) {
	published := 0
	for _, result := range results {
		if result.BuildOnly {
			continue
		}

		ref := result.Reference()
		switch {
		case !result.Published:
			fmt.Fprintf(w, "\n\nFailed to push image to %s. No base configuration was generated.\n", ref)

		case result.RecordPath == "":
			published++
			fmt.Fprintf(w, "\n\nSuccessfully pushed image to %s. To use this new base:\n\n", ref)
			fmt.Fprintln(w, " - Create a new base configuration yaml file (remember to increment the revision in the file!)")
			fmt.Fprintln(w, " - Update the base information:")
			fmt.Fprintf(w, "    - namespace: %s\n", result.Namespace)
			fmt.Fprintf(w, "    - repository: %s\n", result.Repository)
			fmt.Fprintf(w, "    - tag: %s\n", result.Tag)

		default:
			published++
			fmt.Fprintf(w, "\n\nSuccessfully pushed image to %s.\n\n", ref)
			fmt.Fprintf(w, " -  Base configuration yaml file automatically generated: %s\n", result.RecordPath)
		}
	}

	if published > 0 {
		fmt.Fprintln(w, " \n\nCommit changes to this repo and push to GitHub (make sure your Client config file points to"+
			" both the repository and branch if not default to test changes)")
		fmt.Fprintln(w, "\n\nNote: If pushing official bases, remember they `go live` as soon as your PR is accepted to master!")
	}
}
