// Package openai implements an OpenAI-compatible chat-completions provider.
// Any backend speaking the same wire format (vLLM, Ollama, proxy gateways)
// works through the BaseURL setting.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mallchat/llm"
	"github.com/BaSui01/mallchat/types"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Config holds provider settings.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Provider is an llm.Provider backed by the OpenAI chat-completions API.
type Provider struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// New creates an OpenAI provider.
func New(cfg Config, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Provider{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With(zap.String("component", "provider_openai")),
	}
}

// Name implements llm.Provider.
func (p *Provider) Name() string { return "openai" }

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Completion implements llm.Provider.
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "marshal request").WithCause(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "build request").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "request failed").
			WithRetryable(true).WithProvider(p.Name()).WithCause(err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "read response").
			WithRetryable(true).WithProvider(p.Name()).WithCause(err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, p.mapStatusError(httpResp.StatusCode, respBody)
	}

	var resp llm.ChatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, types.NewError(types.ErrParseFailure, "decode response").
			WithProvider(p.Name()).WithCause(err)
	}
	return &resp, nil
}

func (p *Provider) mapStatusError(status int, body []byte) error {
	msg := fmt.Sprintf("http %d", status)
	var er errorResponse
	if json.Unmarshal(body, &er) == nil && er.Error.Message != "" {
		msg = er.Error.Message
	}

	var code types.ErrorCode
	retryable := false
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		code = types.ErrAuthentication
	case status == http.StatusTooManyRequests:
		code = types.ErrRateLimited
		retryable = true
	case status == http.StatusBadRequest:
		code = types.ErrInvalidRequest
	case status >= 500:
		code = types.ErrServiceUnavailable
		retryable = true
	default:
		code = types.ErrUpstreamError
	}

	p.logger.Warn("upstream error",
		zap.Int("status", status),
		zap.String("message", msg))

	return types.NewError(code, msg).WithRetryable(retryable).WithProvider(p.Name())
}
