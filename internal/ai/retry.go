package ai

import (
	"context"
	"time"

	"github.com/gromoveveryday/essay-grader/internal/utils"
	"go.uber.org/zap"
)

const baseBackoff = 2 * time.Second

// WithRetries invokes fn up to maxRetries+1 times, waiting between attempts
// with a linear backoff. Only errors for which retryable returns true are
// retried; the wait respects context cancellation.
func WithRetries(ctx context.Context, logger *zap.Logger, maxRetries int, retryable func(error) bool, fn func() (string, error)) (string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	attempts := maxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := fn()
		if err == nil {
			return out, nil
		}

		lastErr = err
		if attempt == attempts || retryable == nil || !retryable(err) {
			break
		}

		backoff := time.Duration(attempt) * baseBackoff
		logger.Debug("retrying model call",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		if werr := utils.WaitFor(ctx, backoff); werr != nil {
			return "", werr
		}
	}

	return "", lastErr
}
