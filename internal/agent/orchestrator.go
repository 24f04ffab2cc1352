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

// Package agent orchestrates support conversations: it grounds each turn in
// retrieved documentation, drives the tool-calling loop against the
// completion provider, and escalates stuck conversations to support tickets.
package agent

import (
	"context"
	"encoding/json"

	"github.com/sashabaranov/go-openai"
	"github.com/your-org/smarthome-support-assistant/internal/llm"
	"github.com/your-org/smarthome-support-assistant/internal/retriever"
	"github.com/your-org/smarthome-support-assistant/internal/ticket"
	"github.com/your-org/smarthome-support-assistant/internal/tools"
	"go.uber.org/zap"
)

// Config carries the orchestrator's tunables
type Config struct {
	Model               string
	MaxTokens           int
	Temperature         float32
	EscalationThreshold int
	EscalationWindow    int
	MaxFragments        int
}

// TurnResult is what a processed message yields: the assistant's reply and
// the full conversation history including that reply.
type TurnResult struct {
	Reply   string
	History []openai.ChatCompletionMessage
}

// Orchestrator runs the conversation loop. All collaborators sit behind
// interfaces so turns are deterministic in tests.
type Orchestrator struct {
	provider  llm.CompletionProvider
	registry  *tools.Registry
	executor  *tools.Executor
	retriever retriever.DocumentRetriever
	tickets   ticket.Store
	analyzer  EscalationAnalyzer
	states    StateStore
	config    Config
	logger    *zap.Logger
}

// NewOrchestrator wires the conversation orchestrator
func NewOrchestrator(
	provider llm.CompletionProvider,
	registry *tools.Registry,
	executor *tools.Executor,
	docRetriever retriever.DocumentRetriever,
	tickets ticket.Store,
	analyzer EscalationAnalyzer,
	states StateStore,
	config Config,
	logger *zap.Logger,
) *Orchestrator {
	if config.EscalationThreshold <= 0 {
		config.EscalationThreshold = 5
	}
	if config.EscalationWindow <= 0 {
		config.EscalationWindow = config.EscalationThreshold
	}
	if config.MaxFragments <= 0 {
		config.MaxFragments = 3
	}

	return &Orchestrator{
		provider:  provider,
		registry:  registry,
		executor:  executor,
		retriever: docRetriever,
		tickets:   tickets,
		analyzer:  analyzer,
		states:    states,
		config:    config,
		logger:    logger,
	}
}

// ProcessMessage runs one conversation turn. It never returns an error:
// every failure mode is folded into a fixed apology reply so the caller
// always has something to show the user, and the state it saw is preserved.
func (o *Orchestrator) ProcessMessage(ctx context.Context, conversationID, message string) *TurnResult {
	conv, release := o.states.Acquire(conversationID)
	defer release()

	logger := o.logger.With(zap.String("conversation_id", conversationID))

	// Retrieval is best effort: a failed lookup degrades the answer, it
	// must not fail the turn.
	fragments, err := o.retriever.Retrieve(ctx, message, o.config.MaxFragments)
	if err != nil {
		logger.Warn("Documentation retrieval failed, continuing without fragments", zap.Error(err))
		fragments = nil
	}

	if len(conv.History) == 0 {
		conv.History = append(conv.History, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: BuildSystemPrompt(fragments),
		})
	}

	conv.History = append(conv.History, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: message,
	})
	conv.UserMessages = append(conv.UserMessages, message)

	if reply, escalated := o.maybeEscalate(ctx, conv, conversationID, logger); escalated {
		return &TurnResult{Reply: reply, History: conv.History}
	}

	reply := o.completeTurn(ctx, conv, conversationID, logger)
	return &TurnResult{Reply: reply, History: conv.History}
}

// maybeEscalate runs the escalation check once the conversation crosses the
// threshold. When it fires, the turn is answered with a ticket notice and
// the normal completion is skipped. Analysis failures are logged and
// treated as "no escalation".
func (o *Orchestrator) maybeEscalate(ctx context.Context, conv *Conversation, conversationID string, logger *zap.Logger) (string, bool) {
	if conv.TicketSuggested || len(conv.UserMessages) < o.config.EscalationThreshold {
		return "", false
	}

	window := conv.UserMessages
	if len(window) > o.config.EscalationWindow {
		window = window[len(window)-o.config.EscalationWindow:]
	}

	openTickets, err := o.tickets.List(ctx)
	if err != nil {
		logger.Warn("Failed to list tickets for escalation analysis", zap.Error(err))
		openTickets = nil
	}

	decision, err := o.analyzer.Analyze(ctx, window, openTickets)
	if err != nil {
		logger.Warn("Escalation analysis failed, continuing without escalation", zap.Error(err))
		return "", false
	}
	if decision == nil {
		return "", false
	}

	if decision.MatchesExisting {
		existing, err := o.tickets.Get(ctx, decision.ExistingTicketID)
		if err != nil {
			logger.Warn("Escalation referenced an unknown ticket",
				zap.String("ticket_id", decision.ExistingTicketID),
				zap.Error(err))
		} else {
			notice := existingTicketNotice(existing)
			o.appendAssistantReply(conv, notice)
			conv.TicketSuggested = true
			logger.Info("Escalation matched existing ticket",
				zap.String("ticket_id", existing.ID))
			return notice, true
		}
	}

	if !decision.NeedsTicket {
		return "", false
	}

	created, err := o.executor.CreateTicketRecord(ctx, ticket.NewTicket{
		Title:       decision.Title,
		Description: decision.Description,
		Priority:    decision.Priority,
		UserID:      conversationID,
	})
	if err != nil {
		logger.Error("Failed to create escalation ticket", zap.Error(err))
		return "", false
	}

	notice := ticketCreatedNotice(created)
	o.appendAssistantReply(conv, notice)
	conv.TicketSuggested = true
	logger.Info("Escalation created support ticket",
		zap.String("ticket_id", created.ID),
		zap.String("priority", created.Priority))

	return notice, true
}

// completeTurn runs the normal completion path. The first call offers the
// tool definitions; if the model requests tool calls, every call is executed
// and its result appended to history, then a second completion without tools
// produces the final answer. The follow-up carries no tools, so a turn
// contains at most one tool round.
func (o *Orchestrator) completeTurn(ctx context.Context, conv *Conversation, conversationID string, logger *zap.Logger) string {
	result, err := o.provider.Complete(ctx, llm.CompletionRequest{
		Model:       o.config.Model,
		Messages:    conv.History,
		Tools:       o.registry.All(),
		MaxTokens:   o.config.MaxTokens,
		Temperature: o.config.Temperature,
	})
	if err != nil {
		logger.Error("Completion request failed", zap.Error(err))
		o.appendAssistantReply(conv, ErrorReply)
		return ErrorReply
	}

	if len(result.ToolCalls) == 0 {
		return o.finishReply(conv, result.Content, logger)
	}

	conv.History = append(conv.History, openai.ChatCompletionMessage{
		Role:      openai.ChatMessageRoleAssistant,
		Content:   result.Content,
		ToolCalls: result.ToolCalls,
	})

	for _, call := range result.ToolCalls {
		toolResult := o.executor.ExecuteToolCall(ctx, call, conversationID)
		conv.History = append(conv.History, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    encodeToolResult(toolResult),
			ToolCallID: call.ID,
		})
	}

	final, err := o.provider.Complete(ctx, llm.CompletionRequest{
		Model:       o.config.Model,
		Messages:    conv.History,
		MaxTokens:   o.config.MaxTokens,
		Temperature: o.config.Temperature,
	})
	if err != nil {
		logger.Error("Follow-up completion failed after tool calls", zap.Error(err))
		o.appendAssistantReply(conv, ErrorReply)
		return ErrorReply
	}

	return o.finishReply(conv, final.Content, logger)
}

// finishReply appends the assistant's answer, substituting the fixed
// fallback when the model produced no text.
func (o *Orchestrator) finishReply(conv *Conversation, content string, logger *zap.Logger) string {
	if content == "" {
		logger.Warn("Completion returned empty content")
		content = FallbackReply
	}
	o.appendAssistantReply(conv, content)
	return content
}

// GetConversationHistory returns a copy of the conversation history, or
// false if the conversation does not exist.
func (o *Orchestrator) GetConversationHistory(conversationID string) ([]openai.ChatCompletionMessage, bool) {
	conv, ok := o.states.Snapshot(conversationID)
	if !ok {
		return nil, false
	}
	return conv.History, true
}

// ClearConversation discards a conversation's state
func (o *Orchestrator) ClearConversation(conversationID string) {
	o.states.Delete(conversationID)
	o.logger.Info("Cleared conversation", zap.String("conversation_id", conversationID))
}

// appendAssistantReply records the assistant's final answer for the turn
func (o *Orchestrator) appendAssistantReply(conv *Conversation, reply string) {
	conv.History = append(conv.History, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: reply,
	})
}

// encodeToolResult serializes a tool result for a tool-role message
func encodeToolResult(result tools.Result) string {
	data, err := json.Marshal(result)
	if err != nil {
		return `{"success":false,"error":"failed to encode tool result"}`
	}
	return string(data)
}
