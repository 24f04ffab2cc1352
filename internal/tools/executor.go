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

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/your-org/smarthome-support-assistant/internal/retriever"
	"github.com/your-org/smarthome-support-assistant/internal/ticket"
	"go.uber.org/zap"
)

const (
	// DefaultSearchLimit is the fallback result count for searchDocs
	DefaultSearchLimit = 3
	// placeholderTitle is used when the caller omits a ticket title
	placeholderTitle = "Support request"
	// placeholderDescription is used when the caller omits a description
	placeholderDescription = "No description provided"
)

// Result is the structured outcome of one tool call. It always contains a
// "success" key; failures add "error" and "details". The whole map is
// serialized into a tool-role message, so the LLM can react to failures.
type Result map[string]interface{}

// failure builds a failed Result
func failure(errMsg, details string) Result {
	res := Result{
		"success": false,
		"error":   errMsg,
	}
	if details != "" {
		res["details"] = details
	}
	return res
}

// Executor dispatches tool-call requests to their implementations. It never
// returns an error to the caller: every failure is folded into the Result.
type Executor struct {
	tickets   ticket.Store
	status    StatusProvider
	retriever retriever.DocumentRetriever
	logger    *zap.Logger
}

// NewExecutor creates a tool executor
func NewExecutor(tickets ticket.Store, status StatusProvider, docRetriever retriever.DocumentRetriever, logger *zap.Logger) *Executor {
	return &Executor{
		tickets:   tickets,
		status:    status,
		retriever: docRetriever,
		logger:    logger,
	}
}

// ExecuteToolCall parses the call's raw arguments and dispatches by name.
// conversationID is attached to tickets created through the tool path.
func (e *Executor) ExecuteToolCall(ctx context.Context, call openai.ToolCall, conversationID string) Result {
	args, err := parseArguments(call.Function.Arguments)
	if err != nil {
		e.logger.Warn("Failed to parse tool arguments",
			zap.String("tool", call.Function.Name),
			zap.Error(err))
		return failure("invalid tool arguments", err.Error())
	}

	return e.Execute(ctx, call.Function.Name, args, conversationID)
}

// Execute routes an already-parsed tool invocation by name
func (e *Executor) Execute(ctx context.Context, name string, args map[string]interface{}, conversationID string) Result {
	e.logger.Debug("Executing tool call",
		zap.String("tool", name),
		zap.String("conversation_id", conversationID))

	switch name {
	case ToolCheckStatus:
		return e.CheckStatus(stringArg(args, "service"))
	case ToolCreateTicket:
		return e.CreateTicket(ctx, ticket.NewTicket{
			Title:       stringArg(args, "title"),
			Description: stringArg(args, "description"),
			Priority:    stringArg(args, "priority"),
			UserID:      conversationID,
		})
	case ToolSearchDocs:
		return e.SearchDocs(ctx, stringArg(args, "query"), intArg(args, "limit"))
	default:
		return failure(
			fmt.Sprintf("unknown tool: %s", name),
			fmt.Sprintf("available tools: %s, %s, %s", ToolCheckStatus, ToolCreateTicket, ToolSearchDocs),
		)
	}
}

// CheckStatus reports the status of one service, or of all services with
// an aggregate computed as the worst individual status.
func (e *Executor) CheckStatus(service string) Result {
	statuses := e.status.Statuses()

	if service == "" {
		service = ServiceAll
	}

	if service == ServiceAll {
		return Result{
			"success":        true,
			"services":       statuses,
			"overall_status": AggregateStatus(statuses),
		}
	}

	record, ok := statuses[service]
	if !ok {
		return failure(
			fmt.Sprintf("unknown service: %s", service),
			fmt.Sprintf("available services: %s, all", strings.Join(knownServices(statuses), ", ")),
		)
	}

	return Result{
		"success":      true,
		"service":      service,
		"status":       record.Status,
		"last_updated": record.LastUpdated,
	}
}

// CreateTicketRecord applies the permissive defaults and persists the
// ticket. The escalation path calls it directly, bypassing tool dispatch.
func (e *Executor) CreateTicketRecord(ctx context.Context, req ticket.NewTicket) (*ticket.Ticket, error) {
	if strings.TrimSpace(req.Title) == "" {
		req.Title = placeholderTitle
	}
	if strings.TrimSpace(req.Description) == "" {
		req.Description = placeholderDescription
	}
	return e.tickets.Create(ctx, req)
}

// CreateTicket persists a support ticket. Missing fields are defaulted
// rather than rejected because the caller is an LLM.
func (e *Executor) CreateTicket(ctx context.Context, req ticket.NewTicket) Result {
	created, err := e.CreateTicketRecord(ctx, req)
	if err != nil {
		e.logger.Error("Failed to create ticket", zap.Error(err))
		return failure("failed to create support ticket", err.Error())
	}

	return Result{
		"success": true,
		"ticket":  created,
		"message": fmt.Sprintf("Ticket %s created successfully. A technician will contact you soon.", created.ID),
	}
}

// SearchDocs runs a similarity search over the documentation index
func (e *Executor) SearchDocs(ctx context.Context, query string, limit int) Result {
	if strings.TrimSpace(query) == "" {
		return failure("search query is required", "")
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	fragments, err := e.retriever.Retrieve(ctx, query, limit)
	if err != nil {
		e.logger.Error("Documentation search failed",
			zap.String("query", query),
			zap.Error(err))
		return failure("documentation search failed", err.Error())
	}

	return Result{
		"success": true,
		"results": fragments,
		"count":   len(fragments),
		"query":   query,
	}
}

// parseArguments normalizes tool arguments: a JSON-encoded object string or
// an empty payload are both accepted; anything else is rejected.
func parseArguments(raw string) (map[string]interface{}, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]interface{}{}, nil
	}

	var args map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("arguments are not a JSON object: %w", err)
	}

	return args, nil
}

// stringArg extracts a string argument, empty when absent or mistyped
func stringArg(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// intArg extracts a numeric argument, zero when absent or mistyped
func intArg(args map[string]interface{}, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
