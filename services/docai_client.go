package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"docsearch-platform/internal/config"
	"docsearch-platform/internal/logger"
	"docsearch-platform/internal/telemetry"

	"github.com/sony/gobreaker"
)

// DocAIClient talks to the external document-AI provider service. The
// provider runs as its own HTTP service; a circuit breaker keeps a flaky
// provider from stalling every ingestion in the queue.
type DocAIClient struct {
	provider   string
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// providerHealth is the provider service's health check response.
type providerHealth struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func NewDocAIClient(cfg *config.Config, metrics *telemetry.Metrics) *DocAIClient {
	timeout := time.Duration(cfg.DocAITimeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "docai-provider",
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("provider circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
			metrics.RecordCircuitBreakerState("docai-provider", to.String())
		},
	})

	return &DocAIClient{
		provider:   cfg.DocAIProvider,
		baseURL:    strings.TrimRight(cfg.DocAIServiceURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
	}
}

func (c *DocAIClient) Provider() string { return c.provider }

// Enabled reports whether a provider is configured at all; without one the
// pipeline uses local extraction.
func (c *DocAIClient) Enabled() bool { return c.provider != "" }

// IsHealthy checks the provider service's health endpoint.
func (c *DocAIClient) IsHealthy(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return false, fmt.Errorf("create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("health check request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("provider unhealthy: status %d", resp.StatusCode)
	}

	var health providerHealth
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return false, fmt.Errorf("decode health response: %w", err)
	}
	return health.Status == "healthy" || health.Status == "ok", nil
}

// Analyze sends a file to the provider and returns both the raw response
// bytes (kept for audit and replay) and the parsed payload.
func (c *DocAIClient) Analyze(ctx context.Context, filePath, filename, contentType string) ([]byte, *RawPayload, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("read file for analysis: %w", err)
	}
	if filename == "" {
		filename = filepath.Base(filePath)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.analyzeOnce(ctx, data, filename, contentType)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return nil, nil, fmt.Errorf("provider circuit breaker open: %w", err)
		}
		return nil, nil, err
	}

	raw := result.([]byte)
	payload := ParsePayload(raw)
	payload.Provider = c.provider
	return raw, payload, nil
}

func (c *DocAIClient) analyzeOnce(ctx context.Context, data []byte, filename, contentType string) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("document", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := fileWriter.Write(data); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}
	writer.WriteField("content_type", contentType)
	writer.WriteField("output_formats", "elements")
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/analyze", &buf)
	if err != nil {
		return nil, fmt.Errorf("create analyze request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analyze request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read analyze response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, truncateForLog(body))
	}

	logger.Debug("provider analysis complete",
		"provider", c.provider, "filename", filename, "response_bytes", len(body))
	return body, nil
}

func truncateForLog(body []byte) string {
	const max = 512
	if len(body) <= max {
		return string(body)
	}
	return string(body[:max]) + "..."
}
