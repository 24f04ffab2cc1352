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
	"sync"

	"github.com/sashabaranov/go-openai"
)

// Conversation is the per-conversation state. History is append-only within
// a turn; History[0] is always the system prompt once the first turn has
// run. TicketSuggested latches to true when the automatic escalation check
// fires and is never reset.
type Conversation struct {
	History         []openai.ChatCompletionMessage
	UserMessages    []string
	TicketSuggested bool
}

// StateStore holds conversation state behind a narrow interface so the
// backing store can change without touching the orchestrator. Access to a
// single conversation is serialized: Acquire blocks until the conversation
// is free and returns a release function.
type StateStore interface {
	// Acquire locks the conversation for exclusive use, creating it if
	// needed. The caller must invoke release when done.
	Acquire(conversationID string) (conv *Conversation, release func())
	// Snapshot returns a copy of the conversation state, or false if the
	// conversation does not exist.
	Snapshot(conversationID string) (Conversation, bool)
	// Delete removes a conversation
	Delete(conversationID string)
}

type conversationEntry struct {
	mu   sync.Mutex
	conv Conversation
}

// MemoryStateStore keeps conversation state in an in-memory map for the
// process lifetime. There is no TTL or eviction; conversations live until
// explicitly deleted.
type MemoryStateStore struct {
	mu      sync.Mutex
	entries map[string]*conversationEntry
}

// NewMemoryStateStore creates an empty in-memory state store
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		entries: make(map[string]*conversationEntry),
	}
}

// Acquire locks the conversation for exclusive use, creating it if needed
func (s *MemoryStateStore) Acquire(conversationID string) (*Conversation, func()) {
	s.mu.Lock()
	entry, ok := s.entries[conversationID]
	if !ok {
		entry = &conversationEntry{}
		s.entries[conversationID] = entry
	}
	s.mu.Unlock()

	entry.mu.Lock()
	return &entry.conv, entry.mu.Unlock
}

// Snapshot returns a copy of the conversation state
func (s *MemoryStateStore) Snapshot(conversationID string) (Conversation, bool) {
	s.mu.Lock()
	entry, ok := s.entries[conversationID]
	s.mu.Unlock()

	if !ok {
		return Conversation{}, false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	snapshot := Conversation{
		History:         make([]openai.ChatCompletionMessage, len(entry.conv.History)),
		UserMessages:    make([]string, len(entry.conv.UserMessages)),
		TicketSuggested: entry.conv.TicketSuggested,
	}
	copy(snapshot.History, entry.conv.History)
	copy(snapshot.UserMessages, entry.conv.UserMessages)

	return snapshot, true
}

// Delete removes a conversation
func (s *MemoryStateStore) Delete(conversationID string) {
	s.mu.Lock()
	delete(s.entries, conversationID)
	s.mu.Unlock()
}

// Len returns the number of tracked conversations
func (s *MemoryStateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
