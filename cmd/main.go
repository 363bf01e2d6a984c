package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"subtrack-assistant/handler"
	"subtrack-assistant/internal/integrations/gemini"
	"subtrack-assistant/internal/integrations/paramstore"
	"subtrack-assistant/internal/repository"
	"subtrack-assistant/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	paramPrefix := mustEnv("PARAM_PREFIX")
	usageTable := os.Getenv("USAGE_TABLE") // optional; empty disables audit records
	chatModel := os.Getenv("CHAT_MODEL_ID")
	suggestModel := os.Getenv("SUGGEST_MODEL_ID")
	timeout := time.Duration(envInt("MODEL_TIMEOUT_SECONDS", 25)) * time.Second

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}

	// The API credential is resolved here, once; a missing or malformed key
	// must kill the process before it serves a single request.
	geminiClient, err := gemini.NewClient(ctx, ssmClient, paramPrefix)
	if err != nil {
		slog.Error("failed to create Gemini client", "err", err)
		os.Exit(1)
	}

	var usageWriter repository.UsageWriter
	if usageTable != "" {
		auditClient, err := repository.New(awsdynamodb.NewFromConfig(cfg), usageTable)
		if err != nil {
			slog.Error("failed to create usage audit client", "err", err)
			os.Exit(1)
		}
		usageWriter = auditClient
	}

	// ---- Handler ----
	assistService, err := usecase.NewAssistService(geminiClient, chatModel, suggestModel, timeout)
	if err != nil {
		slog.Error("failed to create assist service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(assistService, usageWriter)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
