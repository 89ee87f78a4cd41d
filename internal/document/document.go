// Package document turns an uploaded resume into short context text for the
// assistant. The summary never becomes part of the message history.
package document

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

const (
	defaultTimeout    = 2 * time.Minute
	maxUploadBytes    = 10 << 20
	localSummaryChars = 4000
)

var (
	ErrUnsupportedType = errors.New("unsupported document type (expected .pdf, .doc or .docx)")
	ErrTooLarge        = errors.New("document is larger than 10 MB")

	extraneousWhitespace = regexp.MustCompile(`\s+`)
)

// Supported reports whether the file extension is accepted for upload.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".doc", ".docx":
		return true
	default:
		return false
	}
}

// Client summarizes documents, remotely when an endpoint is configured and
// locally (PDF text only) otherwise.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(endpoint string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{endpoint: endpoint, httpClient: httpClient, logger: logger}
}

// Summarize returns a short text summary of the document at path.
func (c *Client) Summarize(ctx context.Context, path string) (string, error) {
	if !Supported(path) {
		return "", ErrUnsupportedType
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat document: %w", err)
	}
	if info.Size() > maxUploadBytes {
		return "", ErrTooLarge
	}

	if c.endpoint == "" {
		if strings.ToLower(filepath.Ext(path)) != ".pdf" {
			return "", errors.New("no document endpoint configured; only PDFs can be summarized locally")
		}
		text, err := ExtractPDFText(path, localSummaryChars)
		if err != nil {
			return "", err
		}
		c.logger.Info("document summarized locally", "path", path, "chars", len(text))
		return text, nil
	}

	summary, err := c.upload(ctx, path)
	if err != nil {
		return "", err
	}
	c.logger.Info("document summarized", "path", path, "endpoint", c.endpoint, "chars", len(summary))
	return summary, nil
}

func (c *Client) upload(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open document: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upload failed: %s - %s", resp.Status, strings.TrimSpace(string(respBody)))
	}

	var parsed struct {
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	summary := strings.TrimSpace(parsed.Summary)
	if summary == "" {
		return "", errors.New("document endpoint returned an empty summary")
	}
	return summary, nil
}

// ExtractPDFText returns the whitespace-normalised plain text of a PDF,
// clipped to limit characters when limit is positive.
func ExtractPDFText(path string, limit int) (string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	defer file.Close()

	content, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text: %w", err)
	}

	var builder strings.Builder
	if _, err := io.Copy(&builder, content); err != nil {
		return "", err
	}

	text := strings.TrimSpace(extraneousWhitespace.ReplaceAllString(builder.String(), " "))
	if text == "" {
		return "", errors.New("pdf contains no extractable text")
	}
	if limit > 0 {
		if runes := []rune(text); len(runes) > limit {
			text = string(runes[:limit])
		}
	}
	return text, nil
}
