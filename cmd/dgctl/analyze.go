package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/dyngraph/internal/containment"
	"github.com/alfredjeanlab/dyngraph/internal/interaction"
	"github.com/alfredjeanlab/dyngraph/internal/model"
	"github.com/alfredjeanlab/dyngraph/internal/ui"
)

var graphCmd = &cobra.Command{
	Use:     "graph",
	Short:   "Show the graph the service currently holds",
	GroupID: "analyze",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		nodes, _ := cmd.Flags().GetBool("nodes")

		store := newStore()
		if err := hydrate(cmd.Context(), store); err != nil {
			return err
		}
		snap := store.Snapshot()
		switch {
		case jsonOutput:
			return printJSON(snap)
		case nodes:
			printNodeTable(snap)
		default:
			printSummary(snap)
		}
		return nil
	},
}

var scanCmd = &cobra.Command{
	Use:     "scan",
	Short:   "Run a containment scan and tag infected and principal nodes",
	GroupID: "analyze",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		seeds, _ := cmd.Flags().GetInt("seeds")
		principals, _ := cmd.Flags().GetInt("principals")

		store := newStore()
		if err := hydrate(cmd.Context(), store); err != nil {
			return err
		}
		res, err := containment.New(store, graphClient, logger).Scan(cmd.Context(),
			containment.Request{Seeds: seeds, Principals: principals})
		if errors.Is(err, model.ErrNotFound) {
			return errNoGraph
		}
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(res)
		}
		fmt.Printf("Infected:    %s of %d nodes\n",
			ui.RenderTag("infected", strconv.Itoa(len(res.Infected))), store.NodeCount())
		fmt.Printf("Principals:  %s\n", ui.RenderTag("principal", formatIDs(res.Principals)))
		return nil
	},
}

var highlightCmd = &cobra.Command{
	Use:     "highlight <id>",
	Short:   "Show a node together with its neighbors and incident edges",
	GroupID: "analyze",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid node id %q", args[0])
		}
		id := model.NodeID(n)

		store := newStore()
		if err := hydrate(cmd.Context(), store); err != nil {
			return err
		}
		sel, ok := interaction.Highlight(store, id)
		if !ok {
			return fmt.Errorf("node %d is not in the graph", id)
		}
		if jsonOutput {
			return printJSON(sel)
		}

		node, _ := store.Node(id)
		tags := make([]string, len(node.Tags))
		for i, t := range node.Tags {
			tags[i] = ui.RenderTag(string(t), string(t))
		}
		fmt.Printf("Node:        %s\n", ui.RenderAccent(node.Label))
		if len(tags) > 0 {
			fmt.Printf("Tags:        %s\n", strings.Join(tags, ", "))
		}
		neighbors := make([]model.NodeID, 0, len(sel.Nodes))
		for _, nb := range sel.Nodes {
			if nb != id {
				neighbors = append(neighbors, nb)
			}
		}
		fmt.Printf("Neighbors:   %s\n", formatIDs(neighbors))
		fmt.Printf("Edges:       %d\n", len(sel.Edges))
		mutedNodes, mutedEdges := sel.Muted(store.Snapshot())
		fmt.Fprintln(os.Stderr, ui.RenderMuted(fmt.Sprintf("%d nodes and %d edges outside the selection", len(mutedNodes), len(mutedEdges))))
		return nil
	},
}

func init() {
	graphCmd.Flags().Bool("nodes", false, "list every node")

	scanCmd.Flags().IntP("seeds", "p", 1, "number of seed nodes")
	scanCmd.Flags().IntP("principals", "x", containment.DefaultPrincipals, "number of principal nodes")
}
