package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/dyngraph/internal/client"
	"github.com/alfredjeanlab/dyngraph/internal/model"
	"github.com/alfredjeanlab/dyngraph/internal/ui"
)

var (
	serverURL  string
	natsURL    string
	jsonOutput bool
	verbose    bool

	graphClient *client.HTTPClient
	logger      *slog.Logger
)

func defaultServerURL() string {
	if s := os.Getenv("DYNGRAPH_URL"); s != "" {
		return s
	}
	if u := activeRemoteURL(); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func defaultNATSURL() string {
	if s := os.Getenv("DYNGRAPH_NATS_URL"); s != "" {
		return s
	}
	return activeRemoteNATSURL()
}

var rootCmd = &cobra.Command{
	Use:           "dgctl <command>",
	Short:         "Build, analyze and mutate graphs on a dyngraph service",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		if !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
		graphClient = client.NewHTTPClient(serverURL)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if graphClient != nil {
			graphClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "url", defaultServerURL(), "service base URL")
	rootCmd.PersistentFlags().StringVar(&natsURL, "nats", defaultNATSURL(), "NATS URL for lifecycle events")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging on stderr")

	rootCmd.AddGroup(
		&cobra.Group{ID: "build", Title: "Build:"},
		&cobra.Group{ID: "analyze", Title: "Analyze:"},
		&cobra.Group{ID: "observe", Title: "Observe:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Build
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(growCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(generateCmd)

	// Analyze
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(highlightCmd)
	rootCmd.AddCommand(deleteCmd)

	// Observe
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(streamsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(exportCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(exitCode(err))
	}
}

// Exit codes let scripts tell bad input from an unreachable or misbehaving
// service.
const (
	exitFailure   = 1
	exitUsage     = 2
	exitNotFound  = 3
	exitTransport = 4
	exitProtocol  = 5
)

func exitCode(err error) int {
	switch {
	case model.IsValidation(err):
		return exitUsage
	case errors.Is(err, model.ErrNotFound):
		return exitNotFound
	case model.IsTransport(err):
		return exitTransport
	case model.IsProtocol(err):
		return exitProtocol
	}
	return exitFailure
}
