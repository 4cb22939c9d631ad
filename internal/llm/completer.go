package llm

import (
	"context"
	"fmt"
	"time"

	"interview-service/internal/models"

	"go.uber.org/zap"
)

// errorPrefix starts every degraded completion text.
const errorPrefix = "Error generating: "

// Completer turns provider calls into models.Completion values. A failed
// call never surfaces as an error or panic; its Text describes the failure.
type Completer struct {
	provider    Provider
	callTimeout time.Duration
	logger      *zap.Logger
}

// NewCompleter creates a completer over provider. A non-positive callTimeout leaves
// calls bounded only by the caller's context.
func NewCompleter(provider Provider, callTimeout time.Duration, logger *zap.Logger) *Completer {
	return &Completer{
		provider:    provider,
		callTimeout: callTimeout,
		logger:      logger,
	}
}

// Complete sends prompt to the provider.
func (c *Completer) Complete(ctx context.Context, prompt string) (result models.Completion) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("provider panic: %v", r)
			c.logger.Error("Completion provider panicked", zap.Any("panic", r))
			result = models.Completion{Text: errorPrefix + err.Error(), Err: err}
		}
	}()

	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	start := time.Now()
	text, err := c.provider.Generate(ctx, prompt)
	if err != nil {
		c.logger.Warn("Completion failed",
			zap.Error(err),
			zap.Duration("elapsed", time.Since(start)))
		return models.Completion{Text: errorPrefix + err.Error(), Err: err}
	}

	c.logger.Debug("Completion finished",
		zap.Int("prompt_length", len(prompt)),
		zap.Duration("elapsed", time.Since(start)))

	return models.Completion{Text: text}
}

// ModelInfo describes the provider behind this completer. Provider chains
// also list every member.
func (c *Completer) ModelInfo() map[string]interface{} {
	info := c.provider.GetModelInfo()
	if chain, ok := c.provider.(interface {
		GetProvidersInfo() []map[string]interface{}
	}); ok {
		info["providers"] = chain.GetProvidersInfo()
	}
	return info
}
