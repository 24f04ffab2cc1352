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

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func fastBackoff(retries int) BackoffConfig {
	return BackoffConfig{
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		MaxRetries: retries,
		Multiplier: 2.0,
	}
}

func TestRetrySucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastBackoff(3), zaptest.NewLogger(t), "op", func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryRecoversAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastBackoff(3), zaptest.NewLogger(t), "op", func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExhaustsBudget(t *testing.T) {
	calls := 0
	failure := errors.New("still broken")
	err := Retry(context.Background(), fastBackoff(2), zaptest.NewLogger(t), "op", func() error {
		calls++
		return failure
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, failure)
	// initial attempt plus two retries
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	cfg := fastBackoff(5)
	fatal := errors.New("bad request")
	cfg.RetryOn = func(err error) bool { return !errors.Is(err, fatal) }

	calls := 0
	err := Retry(context.Background(), cfg, zaptest.NewLogger(t), "op", func() error {
		calls++
		return fatal
	})

	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := fastBackoff(3)
	cfg.BaseDelay = time.Minute

	err := Retry(ctx, cfg, zaptest.NewLogger(t), "op", func() error {
		return errors.New("transient")
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefaultRetryOn(t *testing.T) {
	assert.False(t, DefaultRetryOn(nil))
	assert.False(t, DefaultRetryOn(context.Canceled))
	assert.False(t, DefaultRetryOn(context.DeadlineExceeded))
	assert.True(t, DefaultRetryOn(errors.New("anything else")))
}

func TestDelayForAttemptCapped(t *testing.T) {
	cfg := BackoffConfig{
		BaseDelay:  time.Second,
		MaxDelay:   4 * time.Second,
		Multiplier: 2.0,
	}

	assert.Equal(t, time.Second, cfg.delayForAttempt(1))
	assert.Equal(t, 2*time.Second, cfg.delayForAttempt(2))
	assert.Equal(t, 4*time.Second, cfg.delayForAttempt(3))
	// capped at MaxDelay
	assert.Equal(t, 4*time.Second, cfg.delayForAttempt(5))
}
