// Package openai answers TextModel completions with the OpenAI chat API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bnema/taskdump/internal/domain"
	"github.com/bnema/taskdump/internal/ports"
	sdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1/"
	DefaultModel   = "gpt-4o-mini"

	temperature = 0.2
)

// KeySource resolves the API key at call time.
type KeySource func(ctx context.Context) (string, error)

type Client struct {
	BaseURL    string
	Model      string
	Key        KeySource
	HTTPClient *http.Client
}

var _ ports.TextModel = (*Client)(nil)

func StaticKey(key string) KeySource {
	return func(context.Context) (string, error) {
		return key, nil
	}
}

// Complete sends one system and one user message and returns the first
// choice. The caller owns the timeout and retries are disabled.
func (c *Client) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	key, err := c.key(ctx)
	if err != nil {
		return "", err
	}

	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithBaseURL(c.baseURL()),
		option.WithMaxRetries(0),
	}
	if c.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(c.HTTPClient))
	}
	client := sdk.NewClient(opts...)

	messages := make([]sdk.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, sdk.SystemMessage(req.System))
	}
	messages = append(messages, sdk.UserMessage(req.User))

	resp, err := client.Chat.Completions.New(ctx, sdk.ChatCompletionNewParams{
		Messages:    messages,
		Model:       sdk.ChatModel(c.model()),
		Temperature: sdk.Float(temperature),
	})
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("chat completion: status %d", apiErr.StatusCode)
		}
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices returned")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("chat completion: empty reply")
	}
	return content, nil
}

func (c *Client) key(ctx context.Context) (string, error) {
	if c.Key == nil {
		return "", fmt.Errorf("openai api key: %w", domain.ErrSecretNotFound)
	}
	key, err := c.Key(ctx)
	if err != nil {
		return "", fmt.Errorf("openai api key: %w", err)
	}
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("openai api key: %w", domain.ErrSecretNotFound)
	}
	return key, nil
}

func (c *Client) baseURL() string {
	if c.BaseURL == "" {
		return DefaultBaseURL
	}
	return c.BaseURL
}

func (c *Client) model() string {
	if c.Model == "" {
		return DefaultModel
	}
	return c.Model
}
