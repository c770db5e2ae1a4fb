package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/getsentry/sentry-go"

	"github.com/ledgerline/sheetmap/pkg/metrics"
	"github.com/ledgerline/sheetmap/pkg/retry"
)

const (
	// DefaultModel is the model used when none is configured. Column
	// identification is a short, structured task; the small model is enough.
	DefaultModel = anthropic.Model("claude-3-5-haiku-latest")

	defaultMaxTokens   = 1024
	defaultCallTimeout = 60 * time.Second
)

// AnthropicClient implements Client using the Anthropic API.
type AnthropicClient struct {
	client      anthropic.Client
	model       anthropic.Model
	maxTokens   int64
	callTimeout time.Duration
	retryCfg    retry.Config
	name        string // label for logging and metrics (e.g. "sheet", "column")
	log         *slog.Logger
}

// AnthropicOption configures an AnthropicClient.
type AnthropicOption func(*AnthropicClient)

// WithCallTimeout bounds each individual oracle call. A hanging call is
// surfaced as an error rather than stalling the run indefinitely.
func WithCallTimeout(d time.Duration) AnthropicOption {
	return func(c *AnthropicClient) { c.callTimeout = d }
}

// WithName sets the phase label used in logs and metrics.
func WithName(name string) AnthropicOption {
	return func(c *AnthropicClient) { c.name = name }
}

// WithRetryConfig overrides the transient-error retry policy.
func WithRetryConfig(cfg retry.Config) AnthropicOption {
	return func(c *AnthropicClient) { c.retryCfg = cfg }
}

// NewAnthropicClient creates a new Anthropic-based oracle client. The API
// key is read from ANTHROPIC_API_KEY by the SDK.
func NewAnthropicClient(model anthropic.Model, log *slog.Logger, opts ...AnthropicOption) *AnthropicClient {
	if model == "" {
		model = DefaultModel
	}
	c := &AnthropicClient{
		client:      anthropic.NewClient(),
		model:       model,
		maxTokens:   defaultMaxTokens,
		callTimeout: defaultCallTimeout,
		retryCfg:    retry.DefaultConfig(),
		name:        "classify",
		log:         log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends a prompt to the oracle and returns the response text.
// Transient transport and rate-limit errors are retried; everything else
// surfaces to the caller after one attempt.
func (c *AnthropicClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	span := sentry.StartSpan(ctx, "gen_ai.chat", sentry.WithDescription(fmt.Sprintf("chat %s", c.model)))
	span.SetData("gen_ai.operation.name", "chat")
	span.SetData("gen_ai.request.model", string(c.model))
	span.SetData("gen_ai.request.max_tokens", c.maxTokens)
	span.SetData("gen_ai.system", "anthropic")
	ctx = span.Context()
	defer span.Finish()

	start := time.Now()
	c.log.Debug("oracle call starting", "phase", c.name, "model", c.model, "maxTokens", c.maxTokens, "userPromptLen", len(userPrompt))

	var msg *anthropic.Message
	err := retry.Do(ctx, c.retryCfg, func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		defer cancel()

		var callErr error
		msg, callErr = c.client.Messages.New(callCtx, anthropic.MessageNewParams{
			Model:     c.model,
			MaxTokens: c.maxTokens,
			System: []anthropic.TextBlockParam{
				{Type: "text", Text: systemPrompt},
			},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
			},
		})
		return callErr
	})

	duration := time.Since(start)
	if err != nil {
		c.log.Error("oracle call failed", "phase", c.name, "duration", duration, "error", err)
		metrics.RecordOracleRequest(c.name, duration, err)
		span.Status = sentry.SpanStatusInternalError
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	c.log.Debug("oracle call completed",
		"phase", c.name,
		"duration", duration,
		"stopReason", msg.StopReason,
		"inputTokens", msg.Usage.InputTokens,
		"outputTokens", msg.Usage.OutputTokens,
	)

	metrics.RecordOracleRequest(c.name, duration, nil)
	metrics.RecordOracleTokens(msg.Usage.InputTokens, msg.Usage.OutputTokens)

	span.SetData("gen_ai.usage.input_tokens", msg.Usage.InputTokens)
	span.SetData("gen_ai.usage.output_tokens", msg.Usage.OutputTokens)
	span.SetData("gen_ai.usage.total_tokens", msg.Usage.InputTokens+msg.Usage.OutputTokens)
	span.Status = sentry.SpanStatusOK

	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}

	return "", fmt.Errorf("no text content in response")
}
