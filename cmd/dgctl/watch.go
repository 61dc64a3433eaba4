package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/dyngraph/internal/events"
	"github.com/alfredjeanlab/dyngraph/internal/model"
	"github.com/alfredjeanlab/dyngraph/internal/ui"
)

const sseReconnectDelay = time.Second

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the service's lifecycle events as they happen",
	Long: `Follow lifecycle events. With a NATS URL (--nats, DYNGRAPH_NATS_URL or the
active remote) events come from the bus; otherwise from the service's
event stream, resuming after a dropped connection.`,
	GroupID: "observe",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		topics, _ := cmd.Flags().GetStringSlice("topics")
		if natsURL != "" {
			return watchNATS(cmd.Context(), natsURL, topics)
		}
		return watchSSE(cmd.Context(), topics)
	},
}

// watchNATS follows the topic patterns on the bus until ctx ends.
func watchNATS(ctx context.Context, url string, topics []string) error {
	sub, err := events.NewNATSSubscriber(url,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats: reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe(topics...)
	if err != nil {
		return err
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			printMessage(m)
		}
	}
}

// watchSSE follows GET /v1/events/stream, reconnecting with Last-Event-ID
// until ctx ends.
func watchSSE(ctx context.Context, topics []string) error {
	lastID := ""
	for {
		stream, err := graphClient.OpenEventStream(ctx, topics, lastID)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		for {
			f, err := stream.Next()
			if err != nil {
				stream.Close()
				if ctx.Err() != nil {
					return nil
				}
				if !errors.Is(err, io.EOF) && !model.IsTransport(err) {
					return err
				}
				log.Printf("event stream dropped, reconnecting: %v", err)
				break
			}
			lastID = f.ID
			printMessage(events.Message{Topic: f.Event, Data: f.Data})
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(sseReconnectDelay):
		}
	}
}

func printMessage(m events.Message) {
	if jsonOutput {
		fmt.Printf("{\"topic\":%q,\"data\":%s}\n", m.Topic, m.Data)
		return
	}
	fmt.Printf("%s  %s  %s\n",
		ui.RenderMuted(time.Now().Format("15:04:05")),
		ui.RenderAccent(m.Topic),
		describeMessage(m))
}

// describeMessage renders an event as one human-readable line. Events that
// do not decode are shown raw.
func describeMessage(m events.Message) string {
	v, err := events.Decode(m)
	if err != nil {
		return strings.TrimSpace(string(m.Data))
	}
	switch e := v.(type) {
	case *events.GraphGenerated:
		return fmt.Sprintf("%d nodes, %d edges", e.Nodes, e.Edges)
	case *events.GraphAdded:
		return fmt.Sprintf("+%d nodes, now %d nodes, %d edges", e.Added, e.Nodes, e.Edges)
	case *events.GraphScanned:
		return fmt.Sprintf("%d seeds, %d infected, principals %s", e.Seeds, e.Infected, formatIDs(e.Principals))
	case *events.GraphDeleted:
		return fmt.Sprintf("-%d nodes, now %d nodes, %d edges", e.Removed, e.Nodes, e.Edges)
	case *events.StreamStarted:
		return fmt.Sprintf("run %s: %s to %d nodes", e.RunID, e.Action, e.Target)
	case *events.StreamCompleted:
		return fmt.Sprintf("run %s: completed at %d nodes, %d edges", e.RunID, e.Sequence, e.Edges)
	case *events.StreamAborted:
		return fmt.Sprintf("run %s: aborted at %d (%s)", e.RunID, e.Sequence, e.Reason)
	}
	return string(m.Data)
}

func init() {
	watchCmd.Flags().StringSlice("topics", nil, "topic patterns to follow, e.g. graph.stream.> (default all)")
}
