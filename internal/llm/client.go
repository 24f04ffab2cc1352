// Copyright 2024 SmartHome Support Assistant Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package llm wraps the OpenAI API for chat completions (including tool
// calling and schema-constrained responses) and embeddings. It classifies
// API failures into retryable and non-retryable errors and applies
// exponential backoff to the retryable ones.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	// EmbeddingModel defines the model to use for embeddings
	EmbeddingModel = openai.SmallEmbedding3
	// ExpectedEmbeddingDimensions defines the expected embedding dimensions
	ExpectedEmbeddingDimensions = 1536
	// MaxRetries defines the maximum number of retry attempts
	MaxRetries = 3
	// BaseRetryDelay defines the base delay for exponential backoff
	BaseRetryDelay = time.Second
	// DefaultChatModel is used when a request does not specify a model
	DefaultChatModel = openai.GPT4o
)

// CompletionRequest describes one chat completion call. Tools and
// ResponseFormat are optional; a nil ResponseFormat yields free text.
type CompletionRequest struct {
	Messages       []openai.ChatCompletionMessage
	Tools          []openai.Tool
	ResponseFormat *openai.ChatCompletionResponseFormat
	Model          string
	MaxTokens      int
	Temperature    float32
}

// CompletionResult is the provider's answer: either free text, or one or
// more requested tool calls, or schema-constrained JSON in Content.
type CompletionResult struct {
	Content      string
	ToolCalls    []openai.ToolCall
	FinishReason string
	Usage        openai.Usage
}

// CompletionProvider is the seam the orchestrator depends on. The production
// implementation is *Client; tests substitute deterministic stubs.
type CompletionProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error)
}

// Embedder generates vector embeddings for free text.
type Embedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// RetryableError represents an error that can be retried
type RetryableError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, e.Message)
}

// Client wraps the go-openai client with retry and logging
type Client struct {
	client       *openai.Client
	logger       *zap.Logger
	defaultModel string
}

// NewClient creates a new OpenAI client
func NewClient(apiKey, endpoint, defaultModel string, logger *zap.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if !strings.HasPrefix(apiKey, "sk-") {
		return nil, fmt.Errorf("invalid API key format")
	}

	cfg := openai.DefaultConfig(apiKey)
	if endpoint != "" {
		cfg.BaseURL = endpoint
	}
	if defaultModel == "" {
		defaultModel = DefaultChatModel
	}

	client := &Client{
		client:       openai.NewClientWithConfig(cfg),
		logger:       logger,
		defaultModel: defaultModel,
	}

	client.logger.Info("OpenAI client initialized",
		zap.String("default_model", defaultModel),
		zap.String("embedding_model", string(EmbeddingModel)),
		zap.Int("max_retries", MaxRetries),
	)

	return client, nil
}

// Complete performs a chat completion with retry logic
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("at least one message is required")
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	openaiReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	if len(req.Tools) > 0 {
		openaiReq.Tools = req.Tools
		openaiReq.ToolChoice = "auto"
	}
	if req.ResponseFormat != nil {
		openaiReq.ResponseFormat = req.ResponseFormat
	}

	c.logger.Debug("Creating chat completion",
		zap.String("model", model),
		zap.Int("message_count", len(req.Messages)),
		zap.Int("tool_count", len(req.Tools)),
	)

	var lastErr error
	delay := BaseRetryDelay

	for attempt := 0; attempt < MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("Retrying chat completion request",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := c.client.CreateChatCompletion(ctx, openaiReq)
		if err != nil {
			lastErr = c.handleAPIError(err)

			if retryErr, ok := lastErr.(*RetryableError); ok {
				if retryErr.RetryAfter > 0 {
					delay = retryErr.RetryAfter
				} else {
					delay = BaseRetryDelay * time.Duration(1<<uint(attempt))
				}
				continue
			}

			return nil, lastErr
		}

		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("no choices returned from OpenAI")
		}

		choice := resp.Choices[0]
		c.logger.Debug("Chat completion successful",
			zap.String("finish_reason", string(choice.FinishReason)),
			zap.Int("tool_calls", len(choice.Message.ToolCalls)),
			zap.Int("total_tokens", resp.Usage.TotalTokens),
		)

		return &CompletionResult{
			Content:      choice.Message.Content,
			ToolCalls:    choice.Message.ToolCalls,
			FinishReason: string(choice.FinishReason),
			Usage:        resp.Usage,
		}, nil
	}

	return nil, fmt.Errorf("exhausted all retry attempts: %w", lastErr)
}

// EmbedTexts generates embeddings for multiple text chunks
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var lastErr error
	delay := BaseRetryDelay

	for attempt := 0; attempt < MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("Retrying embedding request",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts,
			Model: EmbeddingModel,
		})
		if err != nil {
			lastErr = c.handleAPIError(err)

			if retryErr, ok := lastErr.(*RetryableError); ok {
				if retryErr.RetryAfter > 0 {
					delay = retryErr.RetryAfter
				} else {
					delay = BaseRetryDelay * time.Duration(1<<uint(attempt))
				}
				continue
			}

			return nil, lastErr
		}

		if len(resp.Data) != len(texts) {
			return nil, fmt.Errorf("unexpected response: got %d embeddings for %d texts", len(resp.Data), len(texts))
		}

		embeddings := make([][]float32, len(resp.Data))
		for i, embedding := range resp.Data {
			if len(embedding.Embedding) != ExpectedEmbeddingDimensions {
				return nil, fmt.Errorf("embedding %d has %d dimensions, expected %d",
					i, len(embedding.Embedding), ExpectedEmbeddingDimensions)
			}
			embeddings[i] = embedding.Embedding
		}

		c.logger.Debug("Embedding request completed",
			zap.Int("embeddings_count", len(embeddings)),
			zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		)

		return embeddings, nil
	}

	return nil, fmt.Errorf("exhausted all retry attempts: %w", lastErr)
}

// EmbedQuery generates an embedding for a single query text
func (c *Client) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if query == "" {
		return nil, fmt.Errorf("query text cannot be empty")
	}

	embeddings, err := c.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned for query")
	}

	return embeddings[0], nil
}

// handleAPIError handles OpenAI API errors and determines if they are retryable
func (c *Client) handleAPIError(err error) error {
	if apiErr, ok := err.(*openai.APIError); ok {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("invalid API key or unauthorized access: %w", err)
		case http.StatusTooManyRequests:
			retryAfter := BaseRetryDelay
			return &RetryableError{
				StatusCode: apiErr.HTTPStatusCode,
				Message:    apiErr.Message,
				RetryAfter: retryAfter,
			}
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return &RetryableError{
				StatusCode: apiErr.HTTPStatusCode,
				Message:    apiErr.Message,
				RetryAfter: 0, // exponential backoff
			}
		default:
			return fmt.Errorf("OpenAI API error (status %d): %s", apiErr.HTTPStatusCode, apiErr.Message)
		}
	}

	return fmt.Errorf("OpenAI client error: %w", err)
}
