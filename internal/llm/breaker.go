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

package llm

import (
	"context"

	"github.com/your-org/smarthome-support-assistant/internal/resilience"
	"go.uber.org/zap"
)

// BreakerProvider wraps a CompletionProvider with a circuit breaker so a
// hard OpenAI outage fails fast instead of stacking up retrying requests.
type BreakerProvider struct {
	inner   CompletionProvider
	breaker *resilience.CircuitBreaker
}

// NewBreakerProvider wraps provider in a circuit breaker with default settings
func NewBreakerProvider(provider CompletionProvider, logger *zap.Logger) *BreakerProvider {
	return &BreakerProvider{
		inner:   provider,
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("openai"), logger),
	}
}

// Complete forwards to the wrapped provider through the breaker
func (p *BreakerProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	var result *CompletionResult
	err := p.breaker.Execute(func() error {
		var innerErr error
		result, innerErr = p.inner.Complete(ctx, req)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// State exposes the breaker state, for health reporting
func (p *BreakerProvider) State() resilience.CircuitState {
	return p.breaker.State()
}
