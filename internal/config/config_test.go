package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, DefaultStorageKey, cfg.StorageKey)
	require.Equal(t, 2000, cfg.MaxMessageChars)
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := Default()
	cfg.Backend = "carrier-pigeon"
	require.ErrorContains(t, cfg.Validate(), "unknown backend")
}

func TestValidateRejectsUnknownStore(t *testing.T) {
	cfg := Default()
	cfg.StoreKind = "floppy"
	require.ErrorContains(t, cfg.Validate(), "unknown store")
}

func TestValidateWebSocketNeedsURL(t *testing.T) {
	cfg := Default()
	cfg.Backend = BackendWebSocket
	require.Error(t, cfg.Validate())

	cfg.WebSocketURL = "ws://localhost:8080/stream"
	require.NoError(t, cfg.Validate())
}

func TestValidateFillsZeroLimits(t *testing.T) {
	cfg := Default()
	cfg.MaxMessageChars = 0
	cfg.StorageKey = ""
	cfg.LogDir = ""
	require.NoError(t, cfg.Validate())
	require.Equal(t, DefaultMaxMessageChars, cfg.MaxMessageChars)
	require.Equal(t, DefaultStorageKey, cfg.StorageKey)
	require.Equal(t, DefaultLogDir, cfg.LogDir)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "http://gpu-box:11434/")
	t.Setenv("CONSULTCHAT_DOCUMENT_ENDPOINT", "http://localhost:3000/api/upload-resume")

	cfg := Default()
	cfg.ApplyEnv()
	require.Equal(t, "http://gpu-box:11434", cfg.OllamaHost)
	require.Equal(t, "http://localhost:3000/api/upload-resume", cfg.DocumentEndpoint)
}
