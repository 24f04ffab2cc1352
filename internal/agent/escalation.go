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

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/your-org/smarthome-support-assistant/internal/llm"
	"github.com/your-org/smarthome-support-assistant/internal/ticket"
	"go.uber.org/zap"
)

// EscalationDecision is the outcome of analyzing a struggling conversation
type EscalationDecision struct {
	NeedsTicket      bool   `json:"needs_ticket"`
	MatchesExisting  bool   `json:"matches_existing"`
	ExistingTicketID string `json:"existing_ticket_id"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	Priority         string `json:"priority"`
}

// EscalationAnalyzer decides whether a conversation that crossed the
// escalation threshold should result in a support ticket.
type EscalationAnalyzer interface {
	Analyze(ctx context.Context, userMessages []string, openTickets []ticket.Ticket) (*EscalationDecision, error)
}

// LLMEscalationAnalyzer asks the completion provider for a structured
// escalation verdict in JSON mode.
type LLMEscalationAnalyzer struct {
	provider llm.CompletionProvider
	model    string
	logger   *zap.Logger
}

// NewLLMEscalationAnalyzer creates an analyzer backed by the given provider
func NewLLMEscalationAnalyzer(provider llm.CompletionProvider, model string, logger *zap.Logger) *LLMEscalationAnalyzer {
	return &LLMEscalationAnalyzer{
		provider: provider,
		model:    model,
		logger:   logger,
	}
}

// Analyze runs the escalation analysis. Any provider or parsing failure is
// returned as an error; the caller treats errors as "no escalation".
func (a *LLMEscalationAnalyzer) Analyze(ctx context.Context, userMessages []string, openTickets []ticket.Ticket) (*EscalationDecision, error) {
	req := llm.CompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: escalationSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildEscalationUserPrompt(userMessages, openTickets)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0,
	}

	result, err := a.provider.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("escalation analysis request failed: %w", err)
	}

	decision, err := parseEscalationDecision(result.Content)
	if err != nil {
		a.logger.Warn("Escalation analysis returned unparseable content",
			zap.String("content", result.Content),
			zap.Error(err))
		return nil, err
	}

	a.logger.Debug("Escalation analysis completed",
		zap.Bool("needs_ticket", decision.NeedsTicket),
		zap.Bool("matches_existing", decision.MatchesExisting),
		zap.String("existing_ticket_id", decision.ExistingTicketID))

	return decision, nil
}

// parseEscalationDecision decodes the model's JSON verdict, tolerating a
// fenced code block around the object.
func parseEscalationDecision(content string) (*EscalationDecision, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var decision EscalationDecision
	if err := json.Unmarshal([]byte(content), &decision); err != nil {
		return nil, fmt.Errorf("invalid escalation decision: %w", err)
	}

	decision.Priority = ticket.NormalizePriority(decision.Priority)
	if decision.MatchesExisting && decision.ExistingTicketID == "" {
		decision.MatchesExisting = false
	}

	return &decision, nil
}
