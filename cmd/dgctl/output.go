package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/alfredjeanlab/dyngraph/internal/model"
	"github.com/alfredjeanlab/dyngraph/internal/ui"
)

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// printSummary prints node, edge and tag counts of snap.
func printSummary(snap *model.Snapshot) {
	infected := snap.Tagged(model.TagInfected)
	principals := snap.Tagged(model.TagPrincipal)
	fmt.Printf("Nodes:       %d\n", len(snap.Nodes))
	fmt.Printf("Edges:       %d\n", len(snap.Edges))
	if len(infected) > 0 {
		fmt.Printf("Infected:    %s\n", ui.RenderTag("infected", strconv.Itoa(len(infected))))
	}
	if len(principals) > 0 {
		fmt.Printf("Principals:  %s\n", ui.RenderTag("principal", formatIDs(principals)))
	}
}

// printNodeTable lists every node with its degree and tags.
func printNodeTable(snap *model.Snapshot) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLABEL\tWEIGHT\tTAGS")
	for _, n := range snap.Nodes {
		tags := make([]string, len(n.Tags))
		for i, t := range n.Tags {
			tags[i] = ui.RenderTag(string(t), string(t))
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", n.ID, n.Label, n.Weight, strings.Join(tags, ","))
	}
	w.Flush()
}

func printEventTable(evts []*model.Event) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tTOPIC\tRUN\tGEN\tPAYLOAD")
	for _, e := range evts {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n",
			e.ID,
			e.CreatedAt.Local().Format("15:04:05"),
			ui.RenderAccent(e.Topic),
			e.RunID,
			e.Generation,
			truncate(string(e.Payload), 60),
		)
	}
	w.Flush()
}

// formatIDs renders ids as "1, 4, 9", eliding long lists.
func formatIDs(ids []model.NodeID) string {
	const limit = 12
	parts := make([]string, 0, min(len(ids), limit))
	for i, id := range ids {
		if i == limit {
			parts = append(parts, fmt.Sprintf("... (%d more)", len(ids)-limit))
			break
		}
		parts = append(parts, id.String())
	}
	return strings.Join(parts, ", ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
