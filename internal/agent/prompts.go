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
	"fmt"
	"strings"

	"github.com/your-org/smarthome-support-assistant/internal/retriever"
	"github.com/your-org/smarthome-support-assistant/internal/ticket"
)

// Fixed replies used when a turn cannot be completed normally. These are
// deliberately stable strings so clients can rely on them.
const (
	// FallbackReply is returned when the model produces an empty answer
	FallbackReply = "Sorry, I could not process your query correctly."
	// ErrorReply is returned when the completion provider fails
	ErrorReply = "Sorry, there was an error processing your request. Please try again later."
)

// BuildSystemPrompt assembles the assistant's system prompt, embedding the
// retrieved documentation fragments so the first answer is grounded in the
// product docs even before any tool call runs.
func BuildSystemPrompt(fragments []retriever.Fragment) string {
	var sb strings.Builder

	sb.WriteString(`You are a technical support assistant for the SmartHome Hub X1000, a home automation hub that connects smart devices (lights, thermostats, locks, cameras, sensors) to the SmartHome cloud platform.

Your job is to resolve customer problems using the product documentation and the tools available to you.

Guidelines:
- Answer only questions related to the SmartHome Hub X1000 and its ecosystem. Politely decline anything else.
- Base your answers on the documentation fragments below and on the results of the searchDocs tool. Do not invent features, menus or procedures that are not documented.
- When the user reports connectivity or login problems, check the relevant backend service with the checkStatus tool before suggesting device-side fixes.
- If the documentation and the service status do not resolve the problem, offer to create a support ticket with the createTicket tool. Always confirm with the user before creating one.
- When you cite a documented procedure, mention the source document so the user can read more.
- Be concise, friendly and practical. Use numbered steps for procedures.
`)

	if len(fragments) > 0 {
		sb.WriteString("\nRelevant documentation fragments for the current question:\n")
		for i, frag := range fragments {
			sb.WriteString(fmt.Sprintf("\nFRAGMENT %d:\n%s\n", i+1, strings.TrimSpace(frag.Content)))
			switch {
			case frag.URL != "":
				sb.WriteString(fmt.Sprintf("Source: %s\n", frag.URL))
			case frag.Source != "":
				sb.WriteString(fmt.Sprintf("Source: %s\n", frag.Source))
			}
		}
	} else {
		sb.WriteString("\nNo documentation fragments were retrieved for the current question. Use the searchDocs tool before answering technical questions.\n")
	}

	return sb.String()
}

// escalationSystemPrompt instructs the model to decide, as strict JSON,
// whether a struggling conversation warrants a support ticket.
const escalationSystemPrompt = `You are a support quality analyst for the SmartHome Hub X1000 technical support service.

You receive the recent messages a customer sent to the support assistant, plus the list of already open support tickets. Decide whether the customer is stuck on an unresolved problem that a human technician should handle.

Respond ONLY with a JSON object with exactly these fields:
{
  "needs_ticket": boolean,      // true if a support ticket should be opened
  "matches_existing": boolean,  // true if an open ticket already covers this problem
  "existing_ticket_id": string, // the matching ticket ID, or "" if none
  "title": string,              // short ticket title (empty if needs_ticket is false)
  "description": string,        // summary of the unresolved problem
  "priority": string            // "low", "medium" or "high"
}

Rules:
- Set needs_ticket to true only when the messages show a concrete unresolved technical problem, repeated failed attempts, or explicit frustration.
- If an open ticket clearly covers the same problem, set matches_existing to true and reference its ID instead of proposing a duplicate.
- General questions, small talk or resolved issues never need a ticket.`

// buildEscalationUserPrompt formats the recent user messages and open
// tickets for the escalation analysis call.
func buildEscalationUserPrompt(userMessages []string, openTickets []ticket.Ticket) string {
	var sb strings.Builder

	sb.WriteString("Recent customer messages, oldest first:\n")
	for i, msg := range userMessages {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, msg))
	}

	if len(openTickets) == 0 {
		sb.WriteString("\nThere are no open support tickets.\n")
		return sb.String()
	}

	sb.WriteString("\nOpen support tickets:\n")
	for _, t := range openTickets {
		sb.WriteString(fmt.Sprintf("- %s [%s, %s] %s\n", t.ID, t.Status, t.Priority, t.Title))
	}

	return sb.String()
}

// ticketCreatedNotice is the assistant reply appended when the escalation
// check opens a new ticket on the user's behalf.
func ticketCreatedNotice(t *ticket.Ticket) string {
	return fmt.Sprintf(
		"I can see we haven't been able to resolve your problem yet, so I've created support ticket %s (\"%s\", priority %s) for you. A technician will contact you within %s. Is there anything else I can help you with in the meantime?",
		t.ID, t.Title, t.Priority, t.EstimatedResponse,
	)
}

// existingTicketNotice is the assistant reply appended when the escalation
// check finds an open ticket already covering the problem.
func existingTicketNotice(t *ticket.Ticket) string {
	return fmt.Sprintf(
		"It looks like this problem is already being tracked under support ticket %s (\"%s\", status %s). A technician will follow up on it, so there is no need to open a duplicate. Is there anything else I can help you with?",
		t.ID, t.Title, t.Status,
	)
}
