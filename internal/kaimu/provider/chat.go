package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultChatBase = "https://api.openai.com/v1"

// ChatConfig configures the secondary OpenAI-compatible client.
type ChatConfig struct {
	// APIKey is the bearer token. When empty the gateway skips the
	// secondary provider entirely.
	APIKey string
	// BaseURL overrides the API endpoint. Useful for OpenRouter, Groq, or
	// any other OpenAI-compatible gateway. Defaults to api.openai.com.
	BaseURL string
	// Timeout bounds each HTTP call. Defaults to 60 s.
	Timeout time.Duration
}

// chatClient calls an OpenAI-compatible chat completions endpoint.
// Safe for concurrent use.
type chatClient struct {
	cfg    ChatConfig
	client *http.Client
}

func newChatClient(cfg ChatConfig) *chatClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultChatBase
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &chatClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// --- minimal chat-completions wire types ---

// chatContentPart is one element of a multimodal user message.
type chatContentPart struct {
	Type     string        `json:"type"` // "text" | "image_url"
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"` // data URI
}

// chatMessage holds either a plain string content (text-only calls) or a
// part array (calls with images); Content is marshalled as-is.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// generate sends one chat-completions call. Images are attached as
// image_url parts with a data-URI encoding; a non-2xx status or an empty
// content field is that model's failure.
func (c *chatClient) generate(ctx context.Context, req Request, model string) (string, error) {
	var messages []chatMessage
	if req.Persona != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.Persona})
	}

	if len(req.Images) == 0 {
		messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})
	} else {
		parts := []chatContentPart{{Type: "text", Text: req.Prompt}}
		for _, img := range req.Images {
			uri := fmt.Sprintf("data:%s;base64,%s",
				img.MIME, base64.StdEncoding.EncodeToString(img.Data))
			parts = append(parts, chatContentPart{Type: "image_url", ImageURL: &chatImageURL{URL: uri}})
		}
		messages = append(messages, chatMessage{Role: "user", Content: parts})
	}

	data, err := json.Marshal(chatRequest{Model: model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("chat: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("chat: create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("chat: read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("chat: model %s: HTTP %d: %.200s", model, resp.StatusCode, respBody)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("chat: decode API response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("chat: API error (%s): %s", parsed.Error.Type, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("chat: model %s: empty content", model)
	}

	return parsed.Choices[0].Message.Content, nil
}
