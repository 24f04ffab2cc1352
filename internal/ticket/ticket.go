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

// Package ticket persists support tickets with sequential human-readable
// identifiers. Two backends are available: a JSON file and SQLite.
package ticket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Priority levels for tickets
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// StatusOpen is the status assigned to newly created tickets. Status
// transitions are handled by the human support workflow, not this system.
const StatusOpen = "open"

// ErrNotFound is returned when a ticket does not exist
var ErrNotFound = errors.New("ticket not found")

// Ticket is a persisted support request
type Ticket struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	Status            string    `json:"status"`
	Priority          string    `json:"priority"`
	UserID            string    `json:"user_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	EstimatedResponse string    `json:"estimated_response,omitempty"`
}

// NewTicket carries the fields needed to create a ticket
type NewTicket struct {
	Title       string
	Description string
	Priority    string
	UserID      string
}

// Store is the persistence interface for tickets
type Store interface {
	// Create assigns the next sequential ID and persists the ticket
	Create(ctx context.Context, req NewTicket) (*Ticket, error)
	// Get returns a ticket by ID, or ErrNotFound
	Get(ctx context.Context, id string) (*Ticket, error)
	// List returns all tickets in creation order
	List(ctx context.Context) ([]Ticket, error)
	// Count returns the number of persisted tickets
	Count(ctx context.Context) (int, error)
	// Close releases backend resources
	Close() error
}

// FormatID renders a sequential counter as a human-readable ticket ID
func FormatID(n int) string {
	return fmt.Sprintf("TK-%03d", n)
}

// NormalizePriority maps arbitrary input to a valid priority, defaulting
// to medium. The caller is typically an LLM and may send anything.
func NormalizePriority(priority string) string {
	switch strings.ToLower(strings.TrimSpace(priority)) {
	case PriorityLow:
		return PriorityLow
	case PriorityHigh:
		return PriorityHigh
	default:
		return PriorityMedium
	}
}

// EstimatedResponse returns the support SLA for a priority
func EstimatedResponse(priority string) string {
	switch priority {
	case PriorityHigh:
		return "4 hours"
	case PriorityLow:
		return "48 hours"
	default:
		return "24 hours"
	}
}
