package config

import (
	"fmt"
	"os"
	"strings"
)

const (
	BackendOllama    = "ollama"
	BackendAnthropic = "anthropic"
	BackendGrok      = "grok"
	BackendOpenAI    = "openai"
	BackendWebSocket = "websocket"
)

const (
	StoreSQLite = "sqlite"
	StoreFile   = "file"
	StoreMemory = "memory"
)

const (
	DefaultStorageKey      = "chat-messages"
	DefaultMaxMessageChars = 2000
	DefaultLogDir          = "logs"
	DefaultOllamaHost      = "http://localhost:11434"
)

// Config holds application configuration
type Config struct {
	Backend     string
	Debug       bool
	OllamaModel string // Model specification in format "model:version" (e.g., "llama3:latest")
	OllamaHost  string

	AnthropicModel string
	OpenAIModel    string
	GrokModel      string
	WebSocketURL   string // Streaming endpoint for the websocket backend (ws:// or wss://)

	// Persistence
	StoreKind  string
	StorePath  string
	StorageKey string

	// DocumentEndpoint receives resume uploads and answers with a short summary.
	// Empty means documents are summarized locally.
	DocumentEndpoint string

	MaxMessageChars int
	LogDir          string
}

// Default returns a Config with every optional field filled in.
func Default() Config {
	return Config{
		Backend:         BackendOllama,
		OllamaModel:     "llama3:latest",
		OllamaHost:      DefaultOllamaHost,
		AnthropicModel:  "claude-sonnet-4-20250514",
		OpenAIModel:     "gpt-4o-mini",
		GrokModel:       "grok-2-latest",
		StoreKind:       StoreSQLite,
		StorePath:       "consultchat.db",
		StorageKey:      DefaultStorageKey,
		MaxMessageChars: DefaultMaxMessageChars,
		LogDir:          DefaultLogDir,
	}
}

// ApplyEnv fills endpoint settings from the environment when the flags left them empty.
func (c *Config) ApplyEnv() {
	if env := os.Getenv("OLLAMA_HOST"); env != "" && (c.OllamaHost == "" || c.OllamaHost == DefaultOllamaHost) {
		c.OllamaHost = strings.TrimRight(env, "/")
	}
	if c.WebSocketURL == "" {
		c.WebSocketURL = os.Getenv("CONSULTCHAT_WS_URL")
	}
	if c.DocumentEndpoint == "" {
		c.DocumentEndpoint = os.Getenv("CONSULTCHAT_DOCUMENT_ENDPOINT")
	}
}

// Validate rejects unknown backends and stores and fills zero-valued limits.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendOllama, BackendAnthropic, BackendGrok, BackendOpenAI:
	case BackendWebSocket:
		if c.WebSocketURL == "" {
			return fmt.Errorf("websocket backend requires a websocket url")
		}
	default:
		return fmt.Errorf("unknown backend: %s", c.Backend)
	}

	switch c.StoreKind {
	case StoreSQLite, StoreFile:
		if c.StorePath == "" {
			return fmt.Errorf("%s store requires a path", c.StoreKind)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown store: %s", c.StoreKind)
	}

	if c.StorageKey == "" {
		c.StorageKey = DefaultStorageKey
	}
	if c.MaxMessageChars <= 0 {
		c.MaxMessageChars = DefaultMaxMessageChars
	}
	if c.LogDir == "" {
		c.LogDir = DefaultLogDir
	}
	return nil
}
