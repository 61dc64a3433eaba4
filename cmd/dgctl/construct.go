package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/dyngraph/internal/construct"
	"github.com/alfredjeanlab/dyngraph/internal/graphstore"
	"github.com/alfredjeanlab/dyngraph/internal/ui"
)

var newCmd = &cobra.Command{
	Use:     "new <size>",
	Short:   "Stream a new graph of <size> nodes from the service",
	GroupID: "build",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		size, err := parseSize(args[0])
		if err != nil {
			return err
		}
		return runConstruction(cmd.Context(), newStore(), size, construct.Replace, 0)
	},
}

var growCmd = &cobra.Command{
	Use:   "grow <size>",
	Short: "Stream the current graph up to <size> nodes in total",
	Long: `Grow the graph the service holds until it has <size> nodes. The new size
must exceed the current one by at least --min-growth nodes.`,
	GroupID: "build",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		size, err := parseSize(args[0])
		if err != nil {
			return err
		}
		minGrowth, _ := cmd.Flags().GetInt("min-growth")

		store := newStore()
		if err := hydrate(cmd.Context(), store); err != nil {
			return err
		}
		return runConstruction(cmd.Context(), store, size, construct.Append, minGrowth)
	},
}

func parseSize(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return n, nil
}

// runConstruction opens one construction run against store and waits for
// it, drawing progress on stderr. An interrupt cancels the run.
func runConstruction(ctx context.Context, store *graphstore.Store, size int, mode construct.Mode, minGrowth int) error {
	opts := []construct.Option{construct.WithLogger(logger)}
	if minGrowth > 0 {
		opts = append(opts, construct.WithMinGrowth(minGrowth))
	}
	ch := construct.New(store, graphClient, opts...)

	var bar *ui.Progress
	if !jsonOutput {
		bar = ui.NewProgress(os.Stderr, mode.String())
	}
	run, err := ch.Open(ctx, size, mode, construct.Handlers{
		OnProgress: func(p construct.Progress) {
			if bar != nil {
				bar.Update(p.Percent)
			}
		},
	})
	if err != nil {
		return err
	}
	res := run.Wait()
	if bar != nil {
		bar.Done()
	}

	snap := store.Snapshot()
	if jsonOutput {
		out := map[string]any{
			"run_id":        res.RunID,
			"mode":          res.Mode.String(),
			"outcome":       res.Outcome.String(),
			"target":        res.Target,
			"last_sequence": res.LastSequence,
			"applied":       res.Applied,
			"nodes":         len(snap.Nodes),
			"edges":         len(snap.Edges),
		}
		if res.Err != nil {
			out["error"] = res.Err.Error()
		}
		if err := printJSON(out); err != nil {
			return err
		}
	} else {
		fmt.Printf("Run:         %s (%s)\n", res.RunID, res.Outcome)
		printSummary(snap)
	}

	switch res.Outcome {
	case construct.Completed:
		return nil
	case construct.Cancelled:
		return fmt.Errorf("run cancelled at sequence %d of %d", res.LastSequence, res.Target)
	}
	return res.Err
}

func init() {
	growCmd.Flags().Int("min-growth", construct.DefaultMinGrowth, "smallest number of nodes a grow must add")
}
