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
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/smarthome-support-assistant/internal/llm"
	"github.com/your-org/smarthome-support-assistant/internal/ticket"
	"go.uber.org/zap/zaptest"
)

func TestParseEscalationDecision(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    EscalationDecision
		wantErr bool
	}{
		{
			name:    "plain JSON",
			content: `{"needs_ticket": true, "title": "Hub offline", "priority": "high"}`,
			want:    EscalationDecision{NeedsTicket: true, Title: "Hub offline", Priority: "high"},
		},
		{
			name: "fenced JSON",
			content: "```json\n" +
				`{"needs_ticket": false, "priority": "low"}` + "\n```",
			want: EscalationDecision{Priority: "low"},
		},
		{
			name:    "unknown priority normalized to medium",
			content: `{"needs_ticket": true, "priority": "urgent"}`,
			want:    EscalationDecision{NeedsTicket: true, Priority: "medium"},
		},
		{
			name:    "existing match without ID is dropped",
			content: `{"needs_ticket": true, "matches_existing": true, "existing_ticket_id": ""}`,
			want:    EscalationDecision{NeedsTicket: true, Priority: "medium"},
		},
		{
			name:    "not JSON",
			content: "I think you should open a ticket",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseEscalationDecision(tt.content)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestLLMEscalationAnalyzer(t *testing.T) {
	provider := &stubProvider{results: []*llm.CompletionResult{
		{Content: `{"needs_ticket": true, "title": "Pairing fails", "description": "Cannot pair devices", "priority": "medium"}`},
	}}
	analyzer := NewLLMEscalationAnalyzer(provider, "gpt-4o", zaptest.NewLogger(t))

	decision, err := analyzer.Analyze(context.Background(),
		[]string{"pairing fails", "tried twice", "still broken"},
		[]ticket.Ticket{{ID: "TK-001", Title: "Other issue", Status: ticket.StatusOpen, Priority: "low"}},
	)

	require.NoError(t, err)
	assert.True(t, decision.NeedsTicket)
	assert.Equal(t, "Pairing fails", decision.Title)

	require.Len(t, provider.requests, 1)
	req := provider.requests[0]
	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, req.ResponseFormat.Type)
	require.Len(t, req.Messages, 2)
	assert.Contains(t, req.Messages[1].Content, "pairing fails")
	assert.Contains(t, req.Messages[1].Content, "TK-001")
}

func TestLLMEscalationAnalyzerProviderError(t *testing.T) {
	provider := &stubProvider{err: errors.New("rate limited")}
	analyzer := NewLLMEscalationAnalyzer(provider, "gpt-4o", zaptest.NewLogger(t))

	_, err := analyzer.Analyze(context.Background(), []string{"help"}, nil)
	assert.Error(t, err)
}

func TestBuildEscalationUserPromptWithoutTickets(t *testing.T) {
	prompt := buildEscalationUserPrompt([]string{"first", "second"}, nil)

	assert.Contains(t, prompt, "1. first")
	assert.Contains(t, prompt, "2. second")
	assert.Contains(t, prompt, "no open support tickets")
}
