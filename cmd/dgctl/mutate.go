package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/dyngraph/internal/client"
	"github.com/alfredjeanlab/dyngraph/internal/model"
	"github.com/alfredjeanlab/dyngraph/internal/mutation"
)

var addCmd = &cobra.Command{
	Use:     "add",
	Short:   "Add nodes to the current graph in one step",
	GroupID: "build",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt("count")
		maxEdges, _ := cmd.Flags().GetInt("max-edges")

		store := newStore()
		snap, err := mutation.New(store, graphClient, logger).AddNodes(cmd.Context(), count, maxEdges)
		if errors.Is(err, model.ErrNotFound) {
			return errNoGraph
		}
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(snap.Payload())
		}
		printSummary(snap)
		return nil
	},
}

var generateCmd = &cobra.Command{
	Use:     "generate",
	Short:   "Replace the service graph with a freshly generated one, without streaming",
	GroupID: "build",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		nodes, _ := cmd.Flags().GetInt("nodes")
		maxEdges, _ := cmd.Flags().GetInt("max-edges")

		p, err := graphClient.Generate(cmd.Context(), &client.GenerateRequest{N: nodes, E: maxEdges})
		if err != nil {
			return err
		}
		snap, err := p.Snapshot()
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(p)
		}
		printSummary(snap)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [id...]",
	Short: "Delete nodes by id, by tag, or at random",
	Example: `  dgctl delete 3 17 42
  dgctl delete --tag infected
  dgctl delete --random 10`,
	GroupID: "analyze",
	RunE: func(cmd *cobra.Command, args []string) error {
		tag, _ := cmd.Flags().GetString("tag")
		random, _ := cmd.Flags().GetInt("random")

		sel := mutation.Selector{Tag: model.Tag(tag), Random: random}
		for _, a := range args {
			id, err := strconv.Atoi(a)
			if err != nil {
				return fmt.Errorf("invalid node id %q", a)
			}
			sel.IDs = append(sel.IDs, model.NodeID(id))
		}

		store := newStore()
		if err := hydrate(cmd.Context(), store); err != nil {
			return err
		}
		res, err := mutation.New(store, graphClient, logger).Delete(cmd.Context(), sel)
		if errors.Is(err, model.ErrNotFound) {
			return errNoGraph
		}
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(map[string]any{
				"removed": res.Removed,
				"nodes":   len(res.Snapshot.Nodes),
				"edges":   len(res.Snapshot.Edges),
			})
		}
		fmt.Printf("Removed:     %d\n", res.Removed)
		printSummary(res.Snapshot)
		return nil
	},
}

var errNoGraph = errors.New("the service holds no graph; run 'dgctl new' or 'dgctl generate' first")

func init() {
	addCmd.Flags().IntP("count", "l", 10, "number of nodes to add")
	addCmd.Flags().IntP("max-edges", "k", 3, "edges per new node, at most")

	generateCmd.Flags().IntP("nodes", "n", 100, "number of nodes")
	generateCmd.Flags().IntP("max-edges", "e", 3, "edges per node, at most")

	deleteCmd.Flags().String("tag", "", "delete every node carrying this tag (infected, principal)")
	deleteCmd.Flags().Int("random", 0, "delete this many nodes chosen at random")
}
