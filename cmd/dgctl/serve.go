package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/alfredjeanlab/dyngraph/internal/config"
	"github.com/alfredjeanlab/dyngraph/internal/events"
	"github.com/alfredjeanlab/dyngraph/internal/export"
	"github.com/alfredjeanlab/dyngraph/internal/generator"
	"github.com/alfredjeanlab/dyngraph/internal/presence"
	"github.com/alfredjeanlab/dyngraph/internal/server"
	"github.com/alfredjeanlab/dyngraph/internal/store"
	"github.com/alfredjeanlab/dyngraph/internal/store/postgres"
)

const (
	shutdownTimeout = 10 * time.Second
	pruneInterval   = time.Hour
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Run the graph service",
	GroupID: "system",
	Args:    cobra.NoArgs,
	// The service needs no client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		slog.SetDefault(logger)

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		// Event log: Postgres when configured, otherwise in memory.
		var eventLog store.EventLog
		var pg *postgres.EventLog
		if cfg.DatabaseURL != "" {
			pg, err = postgres.New(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			eventLog = pg
			logger.Info("event log in postgres")
		} else {
			eventLog = store.NewMemoryLog(0)
			logger.Info("event log in memory (DYNGRAPH_DATABASE_URL not set)")
		}
		defer func() {
			if err := eventLog.Close(); err != nil {
				logger.Error("error closing event log", "err", err)
			}
		}()

		var publisher events.Publisher = events.NoopPublisher{}
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			logger.Info("events disabled (DYNGRAPH_NATS_URL not set)")
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Error("error closing publisher", "err", err)
			}
		}()

		var opts []generator.Option
		if cfg.Seed != 0 {
			opts = append(opts, generator.WithSeed(cfg.Seed))
		}
		opts = append(opts, generator.WithIsolation(cfg.Isolation))

		graphServer := server.NewGraphServer(generator.New(opts...), eventLog, publisher, server.StreamOptions{
			MaxEdges: cfg.MaxEdges,
			Interval: cfg.StreamInterval,
			Batch:    cfg.StreamBatch,
		}, logger)

		graphServer.Streams().StartReaper(&presence.ReaperConfig{
			OnStall: func(runID string) {
				logger.Warn("construction stream stalled", "run_id", runID)
			},
		})
		defer graphServer.Streams().Stop()

		if scheduler := newExportScheduler(cmd.Context(), cfg, graphServer, logger); scheduler != nil {
			scheduler.Start()
			logger.Info("export scheduler started", "interval", cfg.ExportInterval)
			defer scheduler.Stop()
		}

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           graphServer.NewHTTPHandler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		var (
			grpcServer *grpc.Server
			grpcLis    net.Listener
		)
		if cfg.GRPCAddr != "" {
			if grpcLis, err = net.Listen("tcp", cfg.GRPCAddr); err != nil {
				return err
			}
			grpcServer = server.NewGRPCServer(graphServer)
		}

		g, ctx := errgroup.WithContext(cmd.Context())
		g.Go(func() error {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		if grpcServer != nil {
			g.Go(func() error {
				logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
				return grpcServer.Serve(grpcLis)
			})
		}
		if pg != nil && cfg.EventRetention > 0 {
			g.Go(func() error {
				pruneEvents(ctx, pg, cfg.EventRetention, logger)
				return nil
			})
		}

		// Wait for SIGINT/SIGTERM (cancels cmd.Context) or a listener failure.
		g.Go(func() error {
			<-ctx.Done()
			logger.Info("shutting down")
			graphServer.Drain()
			if grpcServer != nil {
				grpcServer.GracefulStop()
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP server shutdown error", "err", err)
			}
			return nil
		})

		logger.Info("dyngraph service started", "http_addr", cfg.HTTPAddr, "grpc_addr", cfg.GRPCAddr)
		err = g.Wait()
		logger.Info("shutdown complete")
		return err
	},
}

// newExportScheduler returns a scheduler for every configured destination,
// or nil when there are none.
func newExportScheduler(ctx context.Context, cfg *config.Config, gs *server.GraphServer, logger *slog.Logger) *export.Scheduler {
	if !cfg.ExportEnabled() {
		return nil
	}
	var dests []export.Destination
	if cfg.ExportFile != "" {
		dests = append(dests, export.NewFileDestination(cfg.ExportFile))
		logger.Info("export file destination enabled", "path", cfg.ExportFile)
	}
	if cfg.ExportS3Bucket != "" {
		s3Dest, err := export.NewS3Destination(ctx, cfg.ExportS3Bucket, cfg.ExportS3Key, cfg.ExportS3Region, cfg.ExportS3Endpoint)
		if err != nil {
			logger.Error("failed to create S3 export destination", "err", err)
		} else {
			dests = append(dests, s3Dest)
			logger.Info("export S3 destination enabled", "location", s3Dest.Location())
		}
	}
	if len(dests) == 0 {
		return nil
	}
	return export.NewScheduler(gs.GraphSnapshot, dests, cfg.ExportInterval, logger)
}

// pruneEvents drops audit events older than retention once an hour until ctx
// ends.
func pruneEvents(ctx context.Context, pg *postgres.EventLog, retention time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		n, err := pg.Prune(ctx, retention)
		switch {
		case err != nil && ctx.Err() == nil:
			logger.Warn("pruning events failed", "err", err)
		case n > 0:
			logger.Info("pruned events", "count", n, "older_than", retention)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
