package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"fritz-bot/handler"
	"fritz-bot/internal/cache"
	appconfig "fritz-bot/internal/config"
	"fritz-bot/internal/integrations/paramstore"
	"fritz-bot/internal/integrations/sheets"
	"fritz-bot/internal/integrations/telegram"
	"fritz-bot/internal/logging"
	"fritz-bot/internal/repository"
	"fritz-bot/internal/usecase"
)

const (
	tokenParam       = "telegram-token"
	spreadsheetParam = "spreadsheet-id"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	appCfg, err := appconfig.LoadLambda()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	logger := logging.New(appCfg.LogLevel, os.Stdout)
	slog.SetDefault(logger)

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg), appCfg.ParamPrefix)
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	sessionStore, err := repository.New(awsdynamodb.NewFromConfig(cfg), appCfg.SessionTable)
	if err != nil {
		slog.Error("failed to create session store", "err", err)
		os.Exit(1)
	}

	httpClient := &http.Client{Timeout: appCfg.HTTPTimeout}

	token, err := ssmClient.GetParameter(ctx, tokenParam)
	if err != nil {
		slog.Error("failed to read telegram token", "err", err)
		os.Exit(1)
	}
	bot, err := telegram.NewBot(token, httpClient)
	if err != nil {
		slog.Error("failed to create telegram bot", "err", err)
		os.Exit(1)
	}
	messenger, err := telegram.New(bot)
	if err != nil {
		slog.Error("failed to create telegram client", "err", err)
		os.Exit(1)
	}

	sheetsClient, err := sheets.NewClient(sheets.ParamID(ssmClient, spreadsheetParam), sheets.WithHTTPClient(httpClient))
	if err != nil {
		slog.Error("failed to create sheets client", "err", err)
		os.Exit(1)
	}
	vocabulary, err := cache.NewVocabulary(sheetsClient, appCfg.VocabularyCacheTTL)
	if err != nil {
		slog.Error("failed to create vocabulary cache", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	quiz, err := usecase.NewQuizService(vocabulary, sessionStore, messenger, usecase.WithLogger(logger))
	if err != nil {
		slog.Error("failed to create quiz service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(quiz, messenger, handler.WithLogger(logger))
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
