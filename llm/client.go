package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultBaseURL   = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	defaultMaxTokens = 200
	requestTimeout   = 120 * time.Second
)

const systemPrompt = "You are a professional content summarization assistant. You extract the core information of a post and write concise summaries."

const summaryPrompt = `Write a concise summary of the following Reddit post:
1. Keep the summary under 100 characters
2. Focus on the core content and key points
3. Output the summary directly, with no prefix or explanation

Post:
%s

Summary:`

// ErrNotConfigured is returned when the client has no API key
var ErrNotConfigured = errors.New("llm client not configured")

// Config describes how to reach an OpenAI-compatible chat completions API
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Client summarizes text through an OpenAI-compatible chat completions API
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *logrus.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// NewClient creates a new chat completions client
func NewClient(cfg Config, log *logrus.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: requestTimeout},
		log:        log,
	}
}

// IsConfigured reports whether an API key is set
func (c *Client) IsConfigured() bool {
	return c.cfg.APIKey != ""
}

// Summarize asks the model for a short summary of the post content
func (c *Client) Summarize(ctx context.Context, content string) (string, error) {
	return c.Complete(ctx, systemPrompt, fmt.Sprintf(summaryPrompt, content))
}

// Complete sends one system + user exchange and returns the reply text
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if !c.IsConfigured() {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("llm request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in llm response")
	}

	c.log.WithFields(logrus.Fields{
		"model":    c.cfg.Model,
		"duration": time.Since(start).String(),
	}).Debug("LLM request complete")

	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}
