package effects

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/grovetools/studio/config"
	"github.com/grovetools/studio/internal/state"
)

// AnthropicClient streams completions from the Anthropic messages API over
// server-sent events.
type AnthropicClient struct {
	baseURL    string
	model      string
	apiKey     string
	maxTokens  int
	httpClient *http.Client
}

// NewAnthropicClient builds a client from the chat config section. The API
// key is read from the configured environment variable.
func NewAnthropicClient(cfg config.ChatConfig) *AnthropicClient {
	return &AnthropicClient{
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		model:     cfg.Model,
		apiKey:    os.Getenv(cfg.APIKeyEnv),
		maxTokens: cfg.MaxTokens,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	Messages  []apiMessage `json:"messages"`
	Stream    bool         `json:"stream"`
}

// StreamCompletion implements CompletionClient. The in-flight assistant
// placeholder (status streaming) is excluded from the request; everything
// else in the history is sent as conversation context.
func (c *AnthropicClient) StreamCompletion(ctx context.Context, messages []state.ChatMessage) (<-chan string, <-chan error) {
	contentChan := make(chan string, 100)
	errorChan := make(chan error, 1)

	go func() {
		defer close(contentChan)
		defer close(errorChan)

		if c.apiKey == "" {
			errorChan <- fmt.Errorf("API key not configured")
			return
		}

		reqBody := apiRequest{
			Model:     c.model,
			MaxTokens: c.maxTokens,
			Stream:    true,
		}
		for _, m := range messages {
			if m.Status == state.MessageStreaming {
				continue
			}
			reqBody.Messages = append(reqBody.Messages, apiMessage{
				Role:    string(m.Role),
				Content: m.Content,
			})
		}

		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			errorChan <- fmt.Errorf("failed to marshal request: %w", err)
			return
		}

		req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/messages", bytes.NewReader(jsonData))
		if err != nil {
			errorChan <- fmt.Errorf("failed to create request: %w", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("anthropic-version", "2023-06-01")
		req.Header.Set("Accept", "text/event-stream")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			errorChan <- fmt.Errorf("request failed: %w", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			errorChan <- fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "" || data == "[DONE]" {
				continue
			}

			var evt struct {
				Type  string `json:"type"`
				Delta *struct {
					Type string `json:"type"`
					Text string `json:"text,omitempty"`
				} `json:"delta,omitempty"`
				Error *struct {
					Type    string `json:"type"`
					Message string `json:"message"`
				} `json:"error,omitempty"`
			}
			if err := json.Unmarshal([]byte(data), &evt); err != nil {
				continue
			}
			if evt.Error != nil {
				errorChan <- fmt.Errorf("API error: %s", evt.Error.Message)
				return
			}
			if evt.Type == "content_block_delta" && evt.Delta != nil && evt.Delta.Text != "" {
				select {
				case contentChan <- evt.Delta.Text:
				case <-ctx.Done():
					return
				}
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			errorChan <- fmt.Errorf("stream error: %w", err)
		}
	}()

	return contentChan, errorChan
}
