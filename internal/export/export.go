// Package export writes graph snapshots as JSONL to local files or S3.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alfredjeanlab/dyngraph/internal/model"
)

// FormatVersion is written into every export header.
const FormatVersion = "1"

// header is the first JSONL record written by WriteJSONL.
type header struct {
	Version    string    `json:"version"`
	Kind       string    `json:"kind"`
	Timestamp  time.Time `json:"timestamp"`
	Generation uint64    `json:"generation"`
	NodeCount  int       `json:"node_count"`
	EdgeCount  int       `json:"edge_count"`
}

// WriteJSONL writes a header line followed by one line per node and one per
// edge. Nodes come first so a reader can resolve every edge as it goes.
func WriteJSONL(snap *model.Snapshot, w io.Writer) error {
	line, err := json.Marshal(header{
		Version:    FormatVersion,
		Kind:       "header",
		Timestamp:  time.Now().UTC(),
		Generation: snap.Generation,
		NodeCount:  len(snap.Nodes),
		EdgeCount:  len(snap.Edges),
	})
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	body, err := snap.MarshalJSONL()
	if err != nil {
		return err
	}
	if _, err := w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	return nil
}
