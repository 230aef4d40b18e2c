package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scholarscope/harvest-cli/internal/config"
	"github.com/scholarscope/harvest-cli/internal/extract"
	"github.com/scholarscope/harvest-cli/internal/fetch"
	"github.com/scholarscope/harvest-cli/internal/lifecycle"
	"github.com/scholarscope/harvest-cli/internal/llm"
	"github.com/scholarscope/harvest-cli/internal/pipeline"
	"github.com/scholarscope/harvest-cli/internal/quality"
	"github.com/scholarscope/harvest-cli/internal/resolve"
	"github.com/scholarscope/harvest-cli/internal/source"
	"github.com/scholarscope/harvest-cli/internal/store"
	"github.com/scholarscope/harvest-cli/pkg/anthropic"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "harvest-cli",
	Short: "Scholarship listing harvester",
	Long:  "Walks scholarship listing sites, extracts structured records with selector and heuristic ladders, escalates weak extractions to Claude, and tracks renewals across batch years.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "harvest.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func loadSources() (*source.Registry, error) {
	return source.Load(cfg.Sources.Path)
}

func newLifecycle(st store.Store) *lifecycle.Manager {
	return lifecycle.New(st, lifecycle.Config{
		RenewalThreshold: cfg.Match.RenewalThreshold,
		ExpiryGraceDays:  cfg.Lifecycle.ExpiryGraceDays,
	})
}

// newOrchestrator wires the full harvest pipeline. The model fallback is
// only attached when an API key is configured; without it weak extractions
// stand or fall on the heuristic ladders.
func newOrchestrator(st store.Store) *pipeline.Orchestrator {
	fetcher := fetch.NewHTTP(fetch.Config{
		Timeout:          time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		UserAgent:        cfg.Fetch.UserAgent,
		MaxBodyBytes:     cfg.Fetch.MaxBodyBytes,
		FailureThreshold: cfg.Fetch.FailureThreshold,
	})

	vocab := extract.DefaultVocabulary()

	var fallback *llm.Fallback
	if cfg.Anthropic.Key != "" {
		fallback = llm.New(anthropic.NewClient(cfg.Anthropic.Key), llm.Config{
			Model:             cfg.Anthropic.Model,
			MaxTokens:         cfg.Anthropic.MaxTokens,
			RequestsPerMinute: cfg.Anthropic.RequestsPerMinute,
			MaxAttempts:       cfg.Anthropic.MaxAttempts,
			InitialBackoff:    time.Duration(cfg.Anthropic.InitialBackoffSecs) * time.Second,
		}, vocab)
	} else {
		zap.L().Warn("no anthropic key configured, model fallback disabled")
	}

	return pipeline.New(
		pipeline.Config{
			MaxItems:        cfg.Pipeline.MaxItems,
			Concurrency:     cfg.Pipeline.Concurrency,
			ConfidenceFloor: cfg.Pipeline.ConfidenceFloor,
			Resolve: resolve.Config{
				DuplicateThreshold: cfg.Match.DuplicateThreshold,
				TitleWindow:        cfg.Match.TitleWindow,
				StreakLimit:        cfg.Pipeline.DuplicateStreak,
			},
		},
		st, fetcher,
		extract.New(vocab),
		quality.New(),
		fallback,
		newLifecycle(st),
	)
}
