// Package chat provides a minimal OpenAI-compatible chat completion client
// used by the LLM-backed critics.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/crucible/llm/embedding"
	"github.com/BaSui01/crucible/types"
)

// Config OpenAI 兼容的对话接口配置
type Config struct {
	BaseURL     string        `json:"base_url" yaml:"base_url"`
	APIKey      string        `json:"api_key" yaml:"api_key"`
	Model       string        `json:"model" yaml:"model"`
	Temperature float64       `json:"temperature" yaml:"temperature"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`
}

// Client implements critic.Completer against /v1/chat/completions.
type Client struct {
	*embedding.BaseProvider
	cfg Config
}

// NewClient 创建对话客户端
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, types.NewConfigurationError("chat client requires a base url")
	}
	if cfg.Model == "" {
		return nil, types.NewConfigurationError("chat client requires a model")
	}
	return &Client{
		BaseProvider: embedding.NewBaseProvider(embedding.BaseConfig{
			Name:    "openai-chat",
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}),
		cfg: cfg,
	}, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// Complete sends prompt as a single user message and returns the first choice.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	headers := map[string]string{}
	if c.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.cfg.APIKey
	}

	body, err := c.DoRequest(ctx, "POST", "/v1/chat/completions", completionRequest{
		Model:       c.cfg.Model,
		Messages:    []message{{Role: "user", Content: prompt}},
		Temperature: c.cfg.Temperature,
	}, headers)
	if err != nil {
		return "", err
	}

	var resp completionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", types.NewError(types.ErrUpstreamError, "chat response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
