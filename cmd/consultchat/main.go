package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"ConsultChat/internal/chatbot"
	"ConsultChat/internal/config"
	"ConsultChat/internal/controller"
	"ConsultChat/internal/document"
	"ConsultChat/internal/prompts"
	"ConsultChat/internal/store"
	"ConsultChat/internal/telemetry"
	"ConsultChat/internal/transport"
)

func main() {
	cfg := config.Default()

	flag.StringVar(&cfg.Backend, "backend", cfg.Backend, "LLM backend (ollama|anthropic|grok|openai|websocket)")
	flag.BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")
	flag.StringVar(&cfg.OllamaModel, "ollama-model", cfg.OllamaModel, "Ollama model specification (format: model:version)")
	flag.StringVar(&cfg.OllamaHost, "ollama-host", cfg.OllamaHost, "Ollama server URL")
	flag.StringVar(&cfg.AnthropicModel, "anthropic-model", cfg.AnthropicModel, "Anthropic model")
	flag.StringVar(&cfg.OpenAIModel, "openai-model", cfg.OpenAIModel, "OpenAI model")
	flag.StringVar(&cfg.GrokModel, "grok-model", cfg.GrokModel, "Grok model")
	flag.StringVar(&cfg.WebSocketURL, "ws-url", "", "Streaming endpoint for the websocket backend")

	// Persistence flags
	flag.StringVar(&cfg.StoreKind, "store", cfg.StoreKind, "Snapshot store (sqlite|file|memory)")
	flag.StringVar(&cfg.StorePath, "store-path", cfg.StorePath, "Database or file path for the snapshot store")
	flag.StringVar(&cfg.StorageKey, "storage-key", cfg.StorageKey, "Key the conversation is saved under")

	flag.StringVar(&cfg.DocumentEndpoint, "document-endpoint", "", "Resume upload endpoint (summarizes PDFs locally when empty)")
	flag.IntVar(&cfg.MaxMessageChars, "max-chars", cfg.MaxMessageChars, "Maximum characters per message")
	flag.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "Directory for logs, traces and metrics")

	flag.Parse()

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, logFile, err := telemetry.InitLogger(cfg.LogDir, cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logFile.Close()
	if cfg.Debug {
		logger.Info("Debug mode enabled")
	}

	ctx := context.Background()
	tracer, meter, shutdown, err := telemetry.InitTelemetry(ctx, cfg.LogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer shutdown()

	st, closeStore, err := store.Open(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	tr, err := transport.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize transport: %w", err)
	}

	docs := document.NewClient(cfg.DocumentEndpoint, nil, logger)

	bot := chatbot.NewChatBot(st, tr, docs, os.Stdout, logger,
		controller.WithTracer(tracer),
		controller.WithMeter(meter),
		controller.WithSystemPrompt(prompts.SystemPrompt),
		controller.WithMaxMessageChars(cfg.MaxMessageChars),
	)
	logger.Info("starting", "backend", cfg.Backend, "store", cfg.StoreKind)
	return bot.Run(ctx, os.Stdin)
}
