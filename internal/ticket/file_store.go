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

package ticket

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// fileState is the on-disk layout: a counter plus the full ticket list,
// rewritten wholesale on every creation.
type fileState struct {
	LastID  int      `json:"last_id"`
	Tickets []Ticket `json:"tickets"`
}

// FileStore persists tickets in a single JSON file. A mutex serializes
// read-modify-write cycles so the last_id counter cannot race within the
// process.
type FileStore struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
	state  fileState
}

// NewFileStore opens (or initializes) a JSON-file ticket store
func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	store := &FileStore{
		path:   path,
		logger: logger,
	}

	if err := store.load(); err != nil {
		return nil, fmt.Errorf("failed to load ticket file: %w", err)
	}

	return store, nil
}

// load reads the ticket file into memory; a missing file starts empty
func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.state = fileState{Tickets: []Ticket{}}
			return nil
		}
		return err
	}

	if err := json.Unmarshal(data, &s.state); err != nil {
		return fmt.Errorf("failed to parse ticket file %s: %w", s.path, err)
	}
	if s.state.Tickets == nil {
		s.state.Tickets = []Ticket{}
	}

	return nil
}

// flush rewrites the whole file. Caller must hold s.mu.
func (s *FileStore) flush() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ticket state: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write ticket file: %w", err)
	}

	return nil
}

// Create assigns the next sequential ID and persists the ticket
func (s *FileStore) Create(_ context.Context, req NewTicket) (*Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.LastID++
	priority := NormalizePriority(req.Priority)

	ticket := Ticket{
		ID:                FormatID(s.state.LastID),
		Title:             req.Title,
		Description:       req.Description,
		Status:            StatusOpen,
		Priority:          priority,
		UserID:            req.UserID,
		CreatedAt:         time.Now().UTC(),
		EstimatedResponse: EstimatedResponse(priority),
	}

	s.state.Tickets = append(s.state.Tickets, ticket)

	if err := s.flush(); err != nil {
		// Roll back the in-memory mutation so the counter stays aligned
		// with what is on disk.
		s.state.LastID--
		s.state.Tickets = s.state.Tickets[:len(s.state.Tickets)-1]
		return nil, err
	}

	s.logger.Info("Created support ticket",
		zap.String("ticket_id", ticket.ID),
		zap.String("priority", ticket.Priority),
		zap.String("user_id", ticket.UserID))

	return &ticket, nil
}

// Get returns a ticket by ID
func (s *FileStore) Get(_ context.Context, id string) (*Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.state.Tickets {
		if t.ID == id {
			ticket := t
			return &ticket, nil
		}
	}

	return nil, ErrNotFound
}

// List returns all tickets in creation order
func (s *FileStore) List(_ context.Context) ([]Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tickets := make([]Ticket, len(s.state.Tickets))
	copy(tickets, s.state.Tickets)
	return tickets, nil
}

// Count returns the number of persisted tickets
func (s *FileStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.state.Tickets), nil
}

// Close is a no-op for the file backend
func (s *FileStore) Close() error {
	return nil
}
