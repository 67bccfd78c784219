package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dkoval/consultbot/internal/api"
	"github.com/dkoval/consultbot/internal/bot"
	cmdpkg "github.com/dkoval/consultbot/internal/commander"
	"github.com/dkoval/consultbot/internal/config"
	"github.com/dkoval/consultbot/internal/control"
	"github.com/dkoval/consultbot/internal/convo"
	"github.com/dkoval/consultbot/internal/db"
	"github.com/dkoval/consultbot/internal/dummy"
	"github.com/dkoval/consultbot/internal/llm"
	"github.com/dkoval/consultbot/internal/orchestrator"
	"github.com/dkoval/consultbot/internal/telegram"
)

var (
	cfg    *config.Config
	logger zerolog.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "consultbot",
		Short: "Telegram consultation bot backed by an LLM",
		Long: `Consultbot polls a Telegram bot for messages, keeps a bounded
per-conversation history in memory, and answers through an
OpenRouter-hosted model.

Configuration is environment-driven (TELEGRAM_BOT_TOKEN,
OPENROUTER_API_KEY, LLM_MODEL, CONVERSATION_HISTORY_LIMIT, ...).
The dummy commander and provider (BOT_COMMANDER=dummy,
BOT_MODEL_PROVIDER=dummy) allow running without external services.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return err
			}

			level, parseErr := zerolog.ParseLevel(cfg.LogLevel)
			if parseErr != nil {
				level = zerolog.InfoLevel
			}
			logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
				Level(level).
				With().
				Timestamp().
				Logger()

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot()
		},
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newCommander() (cmdpkg.Commander, error) {
	switch cfg.Commander {
	case config.CommanderTelegram:
		// The HTTP timeout must outlast the long poll.
		timeout := time.Duration(cfg.PollTimeout+15) * time.Second
		return telegram.NewClient(cfg.BotAPIBase(), timeout), nil
	case config.CommanderDummy:
		return dummy.NewCommander(cfg.DummyCommanderScript, cfg.DummySendScript)
	default:
		return nil, fmt.Errorf("unknown commander: %s", cfg.Commander)
	}
}

func newCompleter() (llm.Completer, error) {
	switch cfg.ModelProvider {
	case config.ProviderOpenRouter:
		return llm.NewOpenRouterClient(
			cfg.OpenRouterAPIKey,
			cfg.OpenRouterBaseURL,
			cfg.Model,
			cfg.Temperature,
			cfg.MaxTokens,
			cfg.RequestTimeout(),
		)
	case config.ProviderDummy:
		return dummy.NewCompleter(cfg.DummyProviderScript)
	default:
		return nil, fmt.Errorf("unknown model provider: %s", cfg.ModelProvider)
	}
}

func runBot() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var events *db.EventLog
	if cfg.EventLogPath != "" {
		var err error
		events, err = db.Open(cfg.EventLogPath)
		if err != nil {
			return fmt.Errorf("failed to open event log: %w", err)
		}
		defer events.Close()
	}

	commander, err := newCommander()
	if err != nil {
		return err
	}
	completer, err := newCompleter()
	if err != nil {
		return err
	}

	store := convo.NewStore()

	responder := orchestrator.New(store, completer, orchestrator.Params{
		SystemPrompt: cfg.SystemPrompt,
		HistoryLimit: cfg.HistoryLimit,
		Retry: control.RetryPolicy{
			Attempts: cfg.RetryAttempts,
			Delay:    cfg.RetryDelay(),
		},
	}, logger, events)

	b := bot.New(commander, store, responder, bot.Options{
		PollTimeout:          cfg.PollTimeout,
		SleepSeconds:         cfg.SleepSeconds,
		DropPending:          cfg.DropPending,
		PendingWindowSeconds: cfg.PendingWindowSeconds,
		PendingMaxMessages:   cfg.PendingMaxMessages,
	}, logger, events)

	if cfg.StatusPort > 0 {
		statusSrv := api.NewServer(store, cfg.StatusPort, cfg.Model, logger)
		go func() {
			if err := statusSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("status server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			statusSrv.Shutdown(shutdownCtx)
		}()
	}

	events.Record(db.EventProcessStarted, map[string]any{
		"commander": cfg.Commander,
		"provider":  cfg.ModelProvider,
		"model":     cfg.Model,
	})
	defer events.Record(db.EventProcessStopped, nil)

	logger.Info().
		Str("commander", cfg.Commander).
		Str("provider", cfg.ModelProvider).
		Str("model", cfg.Model).
		Int("history_limit", cfg.HistoryLimit).
		Msg("consultbot starting")

	if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info().Msg("consultbot stopped")
	return nil
}
