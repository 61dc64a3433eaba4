package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/dyngraph/internal/presence"
	"github.com/alfredjeanlab/dyngraph/internal/ui"
)

var eventsCmd = &cobra.Command{
	Use:     "events",
	Short:   "List the service's recorded lifecycle events, newest first",
	GroupID: "observe",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		evts, err := graphClient.Events(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("listing events: %w", err)
		}
		if jsonOutput {
			return printJSON(evts)
		}
		if len(evts) == 0 {
			fmt.Println("no events recorded")
			return nil
		}
		printEventTable(evts)
		return nil
	},
}

var streamsCmd = &cobra.Command{
	Use:     "streams",
	Short:   "List construction streams the service is serving or recently served",
	GroupID: "observe",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		active, _ := cmd.Flags().GetBool("active")

		streams, err := graphClient.Streams(cmd.Context(), active)
		if err != nil {
			return fmt.Errorf("listing streams: %w", err)
		}
		if jsonOutput {
			return printJSON(streams)
		}
		if len(streams) == 0 {
			fmt.Println("no streams")
			return nil
		}
		printStreamTable(streams)
		return nil
	},
}

func printStreamTable(streams []presence.Entry) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tACTION\tSTATE\tPROGRESS\tFRAMES\tDURATION\tREASON")
	for _, s := range streams {
		state := string(s.State)
		switch s.State {
		case presence.StateCompleted:
			state = ui.RenderOK(state)
		case presence.StateRunning:
			state = ui.RenderAccent(state)
		default:
			state = ui.RenderMuted(state)
		}
		seq := max(s.Sequence, 0)
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%d\t%s\t%s\n",
			s.RunID,
			s.Action,
			state,
			seq, s.Target,
			s.Frames,
			(time.Duration(s.DurationSecs * float64(time.Second))).Round(time.Millisecond),
			s.Reason,
		)
	}
	w.Flush()
}

func init() {
	eventsCmd.Flags().Int("limit", 20, "maximum number of events")
	streamsCmd.Flags().Bool("active", false, "only streams that have not ended")
}
