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
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLiteStore persists tickets in a SQLite database. The sequential ID is
// derived from an AUTOINCREMENT row counter inside a transaction, so
// concurrent creators cannot observe the same counter value.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens a SQLite-backed ticket store
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db, logger: logger}

	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the tickets table if it doesn't exist
func (s *SQLiteStore) initSchema() error {
	query := `
		CREATE TABLE IF NOT EXISTS tickets (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT UNIQUE NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			status TEXT NOT NULL,
			priority TEXT NOT NULL,
			user_id TEXT,
			created_at DATETIME NOT NULL,
			estimated_response TEXT
		)
	`

	_, err := s.db.Exec(query)
	return err
}

// Create assigns the next sequential ID and persists the ticket
func (s *SQLiteStore) Create(ctx context.Context, req NewTicket) (*Ticket, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var next int
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) + 1 FROM tickets").Scan(&next); err != nil {
		return nil, fmt.Errorf("failed to read ticket counter: %w", err)
	}

	priority := NormalizePriority(req.Priority)
	ticket := Ticket{
		ID:                FormatID(next),
		Title:             req.Title,
		Description:       req.Description,
		Status:            StatusOpen,
		Priority:          priority,
		UserID:            req.UserID,
		CreatedAt:         time.Now().UTC(),
		EstimatedResponse: EstimatedResponse(priority),
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tickets (seq, id, title, description, status, priority, user_id, created_at, estimated_response)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		next, ticket.ID, ticket.Title, ticket.Description, ticket.Status,
		ticket.Priority, ticket.UserID, ticket.CreatedAt, ticket.EstimatedResponse,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert ticket: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit ticket: %w", err)
	}

	s.logger.Info("Created support ticket",
		zap.String("ticket_id", ticket.ID),
		zap.String("priority", ticket.Priority),
		zap.String("user_id", ticket.UserID))

	return &ticket, nil
}

// Get returns a ticket by ID
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Ticket, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, status, priority, user_id, created_at, estimated_response
		FROM tickets WHERE id = ?`, id)

	var t Ticket
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.UserID, &t.CreatedAt, &t.EstimatedResponse)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query ticket: %w", err)
	}

	return &t, nil
}

// List returns all tickets in creation order
func (s *SQLiteStore) List(ctx context.Context) ([]Ticket, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, status, priority, user_id, created_at, estimated_response
		FROM tickets ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickets: %w", err)
	}
	defer rows.Close()

	var tickets []Ticket
	for rows.Next() {
		var t Ticket
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.UserID, &t.CreatedAt, &t.EstimatedResponse); err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}

	return tickets, rows.Err()
}

// Count returns the number of persisted tickets
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tickets").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count tickets: %w", err)
	}
	return count, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection, for health checks
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
