package generator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// ExternalServiceError reports a failed call to the completion API.
type ExternalServiceError struct {
	Service    string
	StatusCode int
	Err        error
}

func (e *ExternalServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s returned %d: %v", e.Service, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s call failed: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// Completer sends one prompt and returns the model's text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
	Configured() bool
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type OpenAIClient struct {
	cfg    OpenAIConfig
	client *openai.Client
}

func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	conf := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimRight(cfg.BaseURL, "/"); base != "" {
		conf.BaseURL = base
	}
	conf.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &OpenAIClient{
		cfg:    cfg,
		client: openai.NewClientWithConfig(conf),
	}
}

func (c *OpenAIClient) Configured() bool {
	return c.cfg.APIKey != ""
}

func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.chat(ctx, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})
}

func (c *OpenAIClient) CompleteWithImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	return c.chat(ctx, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: prompt},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
				URL:    dataURL(image, mimeType),
				Detail: openai.ImageURLDetailAuto,
			}},
		},
	})
}

func (c *OpenAIClient) chat(ctx context.Context, msg openai.ChatCompletionMessage) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.cfg.Model,
		Messages:  []openai.ChatCompletionMessage{msg},
		MaxTokens: 4000,
	})
	if err != nil {
		return "", &ExternalServiceError{Service: "openai", StatusCode: statusCode(err), Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &ExternalServiceError{Service: "openai", StatusCode: http.StatusOK, Err: errors.New("no choices in response")}
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// statusCode is zero when the request never got an HTTP response.
func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
