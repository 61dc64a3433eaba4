package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/dyngraph/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the service graph as JSONL",
	Long: `Write the service graph as JSONL: a header line, then one line per node
and one per edge. Output goes to stdout unless --file or --s3-bucket is given.`,
	GroupID: "observe",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		file, _ := cmd.Flags().GetString("file")
		bucket, _ := cmd.Flags().GetString("s3-bucket")
		key, _ := cmd.Flags().GetString("s3-key")
		region, _ := cmd.Flags().GetString("s3-region")
		endpoint, _ := cmd.Flags().GetString("s3-endpoint")

		store := newStore()
		if err := hydrate(ctx, store); err != nil {
			return err
		}
		snap := store.Snapshot()

		if file == "" && bucket == "" {
			return export.WriteJSONL(snap, os.Stdout)
		}

		var buf bytes.Buffer
		if err := export.WriteJSONL(snap, &buf); err != nil {
			return fmt.Errorf("encoding snapshot: %w", err)
		}

		var dests []export.Destination
		var where []string
		if file != "" {
			dests = append(dests, export.NewFileDestination(file))
			where = append(where, file)
		}
		if bucket != "" {
			s3Dest, err := export.NewS3Destination(ctx, bucket, key, region, endpoint)
			if err != nil {
				return err
			}
			dests = append(dests, s3Dest)
			where = append(where, s3Dest.Location())
		}

		for i, d := range dests {
			if err := d.Write(ctx, buf.Bytes()); err != nil {
				return fmt.Errorf("writing %s: %w", where[i], err)
			}
			fmt.Fprintf(os.Stderr, "wrote %d nodes, %d edges to %s\n", len(snap.Nodes), len(snap.Edges), where[i])
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().String("file", "", "write to this local path")
	exportCmd.Flags().String("s3-bucket", "", "upload to this S3 bucket")
	exportCmd.Flags().String("s3-key", "dyngraph/snapshot.jsonl", "object key for --s3-bucket")
	exportCmd.Flags().String("s3-region", "us-east-1", "region for --s3-bucket")
	exportCmd.Flags().String("s3-endpoint", "", "custom S3 endpoint (MinIO)")
}
