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

// Package resilience provides exponential backoff retries and a circuit
// breaker for calls to external collaborators (ChromaDB, OpenAI).
package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultMaxRetries is the default maximum number of retry attempts
	DefaultMaxRetries = 3
	// DefaultBaseDelay is the default initial delay between attempts
	DefaultBaseDelay = 1 * time.Second
	// DefaultMaxDelay caps the delay between attempts
	DefaultMaxDelay = 30 * time.Second
	// DefaultMultiplier is the exponential backoff multiplier
	DefaultMultiplier = 2.0
)

// BackoffConfig holds configuration for exponential backoff retry logic
type BackoffConfig struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	MaxRetries int
	Multiplier float64
	Jitter     bool
	RetryOn    func(error) bool
}

// DefaultBackoffConfig returns the default backoff configuration:
// base delay 1s, 3 retries, delay doubles per attempt.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		BaseDelay:  DefaultBaseDelay,
		MaxDelay:   DefaultMaxDelay,
		MaxRetries: DefaultMaxRetries,
		Multiplier: DefaultMultiplier,
		Jitter:     true,
		RetryOn:    DefaultRetryOn,
	}
}

// DefaultRetryOn retries every error except context cancellation
func DefaultRetryOn(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// Retry executes operation with exponential backoff until it succeeds, the
// retry budget is exhausted, or the context is done.
func Retry(ctx context.Context, cfg BackoffConfig, logger *zap.Logger, name string, operation func() error) error {
	if cfg.RetryOn == nil {
		cfg.RetryOn = DefaultRetryOn
	}

	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := cfg.delayForAttempt(attempt)
			logger.Warn("Retrying operation after delay",
				zap.String("operation", name),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))

			select {
			case <-ctx.Done():
				return fmt.Errorf("operation %s aborted: %w", name, ctx.Err())
			case <-time.After(delay):
			}
		}

		err := operation()
		if err == nil {
			if attempt > 0 {
				logger.Info("Operation succeeded after retry",
					zap.String("operation", name),
					zap.Int("attempt", attempt))
			}
			return nil
		}

		lastErr = err
		if !cfg.RetryOn(err) {
			return err
		}
	}

	logger.Error("Operation failed after all retries",
		zap.String("operation", name),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Error(lastErr))
	return fmt.Errorf("operation %s failed after %d retries: %w", name, cfg.MaxRetries, lastErr)
}

// delayForAttempt computes the delay before the given attempt (1-based)
func (c BackoffConfig) delayForAttempt(attempt int) time.Duration {
	delay := time.Duration(float64(c.BaseDelay) * math.Pow(c.Multiplier, float64(attempt-1)))
	if c.MaxDelay > 0 && delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	if c.Jitter && delay > 0 {
		// Up to 10% random jitter to avoid thundering herds
		jitter := time.Duration(rand.Int63n(int64(delay)/10 + 1))
		delay += jitter
	}
	return delay
}
