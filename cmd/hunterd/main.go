package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/meghal86/smart-stake-hunter/internal/application"
	"github.com/meghal86/smart-stake-hunter/internal/infrastructure/cache"
	"github.com/meghal86/smart-stake-hunter/internal/ingest"
	"github.com/meghal86/smart-stake-hunter/internal/persistence/postgres"

	httpserver "github.com/meghal86/smart-stake-hunter/internal/interfaces/http"
	"github.com/meghal86/smart-stake-hunter/internal/interfaces/http/handlers"
)

const (
	appName = "hunterd"
	version = "v1.0.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Hunter opportunities feed service",
		Version: version,
		Long: `Hunter serves a ranked, sponsorship-capped feed of crypto opportunities
and per-wallet eligibility verdicts, backed by on-chain whale activity.`,
	}
	rootCmd.PersistentFlags().String("config", "config.yaml", "Path to YAML configuration file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long:  "Serves the feed and eligibility endpoints plus /health and /metrics",
		RunE:  runServe,
	}
	serveCmd.Flags().Int("port", 0, "Override the configured HTTP port")

	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run the whale transfer ingestion worker",
		Long:  "Backfills and streams large transfers from the configured providers into Postgres",
		RunE:  runIngest,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s %s\n", appName, version)
		},
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*application.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	config, err := application.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return config, nil
}

// applyFlagOverrides lets explicitly set flags win over file and env config.
func applyFlagOverrides(flags *pflag.FlagSet, config *application.Config) {
	if flags.Changed("port") {
		if port, err := flags.GetInt("port"); err == nil {
			config.Server.Port = port
		}
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyFlagOverrides(cmd.Flags(), config)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := postgres.Connect(ctx, config.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	redisCache := cache.NewRedisCache(config.Redis, log.Logger)
	opportunityStore := postgres.NewOpportunityStore(db, 5*time.Second)
	whaleStore := postgres.NewWhaleStore(db, 5*time.Second)

	feedService := application.NewFeedService(opportunityStore, whaleStore, redisCache, config.Feed.PageTTL(), log.Logger)
	eligibilityService := application.NewEligibilityService(opportunityStore, whaleStore, redisCache, config.Feed.EligibilityTTL(), log.Logger)

	readiness := func(ctx context.Context) map[string]bool {
		return map[string]bool{
			"postgres": db.PingContext(ctx) == nil,
			"redis":    redisCache.Health(ctx),
		}
	}

	h := handlers.NewHandlers(feedService, eligibilityService, readiness, log.Logger)
	server, err := httpserver.NewServer(config.Server, h, log.Logger)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

func runIngest(cmd *cobra.Command, args []string) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	connectCtx, connectCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, config.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	alchemy := ingest.NewAlchemyProvider(
		config.Ingest.Alchemy.WSEndpoint,
		config.Ingest.Alchemy.RESTEndpoint,
		config.Ingest.Alchemy.APIKey,
		log.Logger,
	)
	moralis := ingest.NewMoralisProvider(
		config.Ingest.Moralis.WSEndpoint,
		config.Ingest.Moralis.RESTEndpoint,
		config.Ingest.Moralis.APIKey,
		log.Logger,
	)

	var primary, fallback ingest.Provider = alchemy, moralis
	if config.Ingest.PrimaryProvider == "moralis" {
		primary, fallback = moralis, alchemy
	}

	service := ingest.NewService(ingest.Config{
		Chains:           config.Ingest.Chains,
		RateLimitPerSec:  config.Ingest.RateLimitPerSec,
		RetryBase:        time.Duration(config.Ingest.RetryBaseSeconds * float64(time.Second)),
		RetryMax:         time.Duration(config.Ingest.RetryMaxSeconds * float64(time.Second)),
		RetryMaxAttempts: config.Ingest.RetryMaxAttempts,
		StreamLag:        config.Ingest.StreamLag(),
		BackfillWindow:   config.Ingest.BackfillWindow(),
	}, postgres.NewWhaleStore(db, 5*time.Second), primary, fallback, log.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Strs("chains", config.Ingest.Chains).Str("primary", primary.Name()).Msg("starting ingestion")
	return service.Run(ctx)
}
