// Package main provides the bepview CLI: upload a build event file,
// follow its processing, and explore the results.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bepview/internal/artifact"
	"bepview/internal/chat"
	"bepview/internal/config"
	"bepview/internal/logging"
	"bepview/internal/storage"
	"bepview/internal/transport"
	"bepview/internal/upload"
)

// app is the shared wiring behind every subcommand.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	tc      *transport.Client
	store   *artifact.Store
	fetcher *artifact.Fetcher
	manager *upload.Manager
	chat    *chat.Client
}

var (
	flagServerURL string
	flagChatURL   string
	flagEnv       string
)

var rootCmd = &cobra.Command{
	Use:   "bepview",
	Short: "bepview uploads Bazel build event files and explores the results",
	Long: `bepview submits a build event protocol (BEP) artifact to the ingest
service, follows its asynchronous processing to completion, and renders
the resulting summary, dependency graph, and resource-usage series.`,
	SilenceUsage: true,
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagServerURL != "" {
		cfg.ServerURL = flagServerURL
	}
	if flagChatURL != "" {
		cfg.ChatURL = flagChatURL
	}
	if flagEnv != "" {
		cfg.Env = flagEnv
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		return nil, err
	}

	tc := transport.New(cfg.HTTPTimeout, logger)
	store := artifact.NewStore()
	fetcher, err := artifact.NewFetcher(tc, logger)
	if err != nil {
		return nil, err
	}
	manager := upload.NewManager(upload.Config{
		BaseURL:         cfg.ServerURL,
		PollInterval:    cfg.PollInterval,
		MaxPollDuration: cfg.MaxPollDuration,
		FallbackTarget:  directTarget(cfg.Storage),
	}, tc, fetcher, store, logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		tc:      tc,
		store:   store,
		fetcher: fetcher,
		manager: manager,
		chat:    chat.New(tc, cfg.ChatURL, store, logger),
	}, nil
}

// directTarget maps the optional S3 settings onto an upload target; it
// stays empty (and therefore unused) when no endpoint is configured.
func directTarget(sc config.StorageConfig) storage.Target {
	if sc.Endpoint == "" {
		return storage.Target{}
	}
	return storage.Target{
		Endpoint:  sc.Endpoint,
		Region:    sc.Region,
		Bucket:    sc.Bucket,
		AccessKey: sc.AccessKey,
		SecretKey: sc.SecretKey,
		UseSSL:    sc.UseSSL,
	}
}

func main() {
	rootCmd.PersistentFlags().StringVar(&flagServerURL, "server", "", "ingest service base URL")
	rootCmd.PersistentFlags().StringVar(&flagChatURL, "chat-url", "", "chat service base URL (defaults to --server)")
	rootCmd.PersistentFlags().StringVar(&flagEnv, "env", "", "environment name (local, production)")

	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newServeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
