// Package completion wraps the Google generative-language API as an
// opaque text-completion service.
//
// Callers hand it a message plus optional prior turns and get generated
// text back; upstream failures are classified into sentinel errors so the
// HTTP layer can surface invalid credentials, quota exhaustion, and bad
// parameters distinctly.
package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"google.golang.org/genai"
)

// DefaultModel is the model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// Turn is one prior exchange in a conversation.
// Role is "user" or "assistant".
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config configures a Client.
type Config struct {
	// APIKey authenticates against the Gemini API. Required.
	APIKey string

	// Model is the model identifier. Empty means DefaultModel.
	Model string
}

// Client generates text completions via the Gemini API.
type Client struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewClient creates a completion client. A nil logger falls back to
// slog.Default().
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("completion: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &Client{client: client, model: cfg.Model, logger: logger}, nil
}

// Generate produces a completion for message. When history is non-empty
// it is sent as the conversation instead, matching the upstream contract
// where prior turns subsume the current message.
func (c *Client) Generate(ctx context.Context, message string, history []Turn) (string, error) {
	contents := buildContents(message, history)

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		classified := classify(err)
		c.logger.Error("completion request failed", "error", err, "model", c.model)
		return "", classified
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: empty response", ErrUpstream)
	}

	c.logger.Debug("completion generated", "model", c.model, "response_len", len(text))
	return text, nil
}

// buildContents maps a message and optional prior turns to the upstream
// content format. Assistant turns become the upstream's "model" role.
func buildContents(message string, history []Turn) []*genai.Content {
	if len(history) == 0 {
		return []*genai.Content{genai.NewContentFromText(message, genai.RoleUser)}
	}

	contents := make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		role := genai.Role(genai.RoleUser)
		if turn.Role == "assistant" || turn.Role == string(genai.RoleModel) {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}
	return contents
}

// classify folds an upstream error into one of the package's sentinel
// classes, preserving the original as wrapped context.
func classify(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	switch {
	case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Message)
	case apiErr.Code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, apiErr.Message)
	case apiErr.Code >= 400 && apiErr.Code < 500:
		return fmt.Errorf("%w: %s", ErrBadRequest, apiErr.Message)
	default:
		return fmt.Errorf("%w: %s", ErrUpstream, apiErr.Message)
	}
}
