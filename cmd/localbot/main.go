package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	tele "gopkg.in/telebot.v4"

	"fritz-bot/handler"
	"fritz-bot/internal/cache"
	"fritz-bot/internal/config"
	"fritz-bot/internal/integrations/sheets"
	"fritz-bot/internal/integrations/telegram"
	"fritz-bot/internal/logging"
	"fritz-bot/internal/repository"
	"fritz-bot/internal/usecase"
)

func main() {
	root := &cobra.Command{
		Use:          "localbot",
		Short:        "Run the vocabulary bot outside Lambda",
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Poll Telegram for updates and drive quizzes against a SQL session store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file")
	return cmd
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadLocal(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.Logging.Level, os.Stdout)

	store, err := repository.OpenSQL(ctx, repository.Driver(cfg.Database.Driver), cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer func() { _ = store.Close() }()

	var sheetOpts []sheets.Option
	if cfg.Vocabulary.BaseURL != "" {
		sheetOpts = append(sheetOpts, sheets.WithBaseURL(cfg.Vocabulary.BaseURL))
	}
	sheetsClient, err := sheets.NewClient(sheets.FixedID(cfg.Vocabulary.SpreadsheetID), sheetOpts...)
	if err != nil {
		return fmt.Errorf("sheets client: %w", err)
	}
	vocabulary, err := cache.NewVocabulary(sheetsClient, cfg.Vocabulary.CacheTTL)
	if err != nil {
		return fmt.Errorf("vocabulary cache: %w", err)
	}

	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: &tele.LongPoller{Timeout: time.Duration(cfg.Telegram.LongPollTimeoutSeconds) * time.Second},
		OnError: func(err error, _ tele.Context) {
			logger.Error("telegram update failed", "err", err)
		},
	})
	if err != nil {
		return fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	messenger, err := telegram.New(bot)
	if err != nil {
		return err
	}

	quiz, err := usecase.NewQuizService(vocabulary, store, messenger, usecase.WithLogger(logger))
	if err != nil {
		return err
	}
	h, err := handler.NewHandler(quiz, messenger, handler.WithLogger(logger))
	if err != nil {
		return err
	}

	// Failures are already reported to the chat and logged by the handler.
	process := func(c tele.Context) error {
		_ = h.Process(ctx, c.Update())
		return nil
	}
	bot.Handle(tele.OnText, process)
	bot.Handle(tele.OnCallback, process)

	go bot.Start()
	logger.Info("local bot started", "store", cfg.Database.Driver, "bot", bot.Me.Username)
	<-ctx.Done()
	bot.Stop()
	logger.Info("local bot stopped")
	return nil
}
