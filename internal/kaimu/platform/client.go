// Package platform is the outbound messaging-platform REST client: reply
// and push delivery, profile lookup, and message-content download. It is
// the concrete implementation behind the webhook.Replier and the
// dispatcher's fetcher interfaces.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bdobrica/Kaimu/internal/kaimu/provider"
)

const (
	defaultAPIBase  = "https://api.line.me/v2/bot"
	defaultDataBase = "https://api-data.line.me/v2/bot"
	defaultTimeout  = 15 * time.Second

	// maxImageBytes caps downloaded message content. Providers reject
	// oversized inline payloads anyway.
	maxImageBytes = 10 * 1024 * 1024
)

// Config configures the platform client.
type Config struct {
	// AccessToken is the channel access token.
	AccessToken string

	// APIBase overrides the messaging API endpoint. Defaults to the
	// public one when empty.
	APIBase string

	// DataBase overrides the content-download endpoint.
	DataBase string

	// Timeout is the HTTP request timeout. Defaults to 15 s.
	Timeout time.Duration
}

// Client talks to the messaging platform. Safe for concurrent use.
type Client struct {
	cfg    Config
	client *http.Client
}

// New creates a platform client.
func New(cfg Config) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	if cfg.DataBase == "" {
		cfg.DataBase = defaultDataBase
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// --- wire types ---

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type replyRequest struct {
	ReplyToken string        `json:"replyToken"`
	Messages   []textMessage `json:"messages"`
}

type pushRequest struct {
	To       string        `json:"to"`
	Messages []textMessage `json:"messages"`
}

type profileResponse struct {
	DisplayName string `json:"displayName"`
}

// Reply consumes a reply token to answer the triggering event.
func (c *Client) Reply(ctx context.Context, replyToken, text string) error {
	return c.post(ctx, c.cfg.APIBase+"/message/reply", replyRequest{
		ReplyToken: replyToken,
		Messages:   []textMessage{{Type: "text", Text: text}},
	})
}

// Push sends a message outside the reply-token window.
func (c *Client) Push(ctx context.Context, to, text string) error {
	return c.post(ctx, c.cfg.APIBase+"/message/push", pushRequest{
		To:       to,
		Messages: []textMessage{{Type: "text", Text: text}},
	})
}

// DisplayName resolves an identity's profile name.
func (c *Client) DisplayName(ctx context.Context, identity string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.APIBase+"/profile/"+identity, nil)
	if err != nil {
		return "", fmt.Errorf("platform: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("platform: profile request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("platform: profile lookup returned HTTP %d", resp.StatusCode)
	}
	var profile profileResponse
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return "", fmt.Errorf("platform: failed to decode profile: %w", err)
	}
	return profile.DisplayName, nil
}

// Fetch downloads the binary content of a message (an image the user sent).
func (c *Client) Fetch(ctx context.Context, messageID string) (provider.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.DataBase+"/message/"+messageID+"/content", nil)
	if err != nil {
		return provider.Image{}, fmt.Errorf("platform: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return provider.Image{}, fmt.Errorf("platform: content request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return provider.Image{}, fmt.Errorf("platform: content download returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return provider.Image{}, fmt.Errorf("platform: failed to read content: %w", err)
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "image/jpeg"
	}
	return provider.Image{MIME: mime, Data: data}, nil
}

// post sends a JSON body and treats any non-2xx status as an error.
func (c *Client) post(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("platform: failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("platform: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("platform: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("platform: HTTP %d: %s", resp.StatusCode, string(detail))
	}
	return nil
}
