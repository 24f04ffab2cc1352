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

// Package chroma provides a thin client for the ChromaDB REST API used as
// the vector similarity backend for documentation retrieval.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/your-org/smarthome-support-assistant/internal/resilience"
	"go.uber.org/zap"
)

// Client wraps the ChromaDB REST API
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	logger     *zap.Logger
	backoff    resilience.BackoffConfig
}

// NewClient creates a new ChromaDB client
func NewClient(baseURL, collection string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		collection: collection,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		backoff:    resilience.DefaultBackoffConfig(),
	}
}

// Document represents a document chunk stored in ChromaDB
type Document struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// QueryResult represents a single similarity search hit
type QueryResult struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
	Distance float64           `json:"distance"`
}

type queryRequest struct {
	QueryEmbeddings [][]float32 `json:"query_embeddings"`
	NResults        int         `json:"n_results"`
}

type queryResponse struct {
	IDs       [][]string                 `json:"ids"`
	Documents [][]string                 `json:"documents"`
	Metadatas [][]map[string]interface{} `json:"metadatas"`
	Distances [][]float64                `json:"distances"`
}

// Error represents an error response from ChromaDB
type Error struct {
	Detail string `json:"detail"`
	Type   string `json:"type"`
}

func (e Error) Error() string {
	return fmt.Sprintf("ChromaDB error [%s]: %s", e.Type, e.Detail)
}

// makeRequest performs an HTTP request with structured error handling
func (c *Client) makeRequest(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		var chromaErr Error
		if json.Unmarshal(body, &chromaErr) == nil && chromaErr.Detail != "" {
			return nil, chromaErr
		}

		return nil, fmt.Errorf("ChromaDB returned status %d: %s", resp.StatusCode, string(body))
	}

	return resp, nil
}

// EnsureCollection creates the configured collection if it does not exist
func (c *Client) EnsureCollection(ctx context.Context) error {
	url := fmt.Sprintf("%s/api/v1/collections", c.baseURL)

	payload := map[string]interface{}{
		"name":          c.collection,
		"get_or_create": true,
		"metadata":      map[string]interface{}{"hnsw:space": "cosine"},
	}

	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonPayload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.makeRequest(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.logger.Info("Collection ready", zap.String("collection", c.collection))
	return nil
}

// AddDocuments adds documents with their embeddings to ChromaDB
func (c *Client) AddDocuments(ctx context.Context, documents []Document, embeddings [][]float32) error {
	if len(documents) != len(embeddings) {
		return fmt.Errorf("document count %d does not match embedding count %d", len(documents), len(embeddings))
	}

	c.logger.Info("Adding documents to ChromaDB",
		zap.String("collection", c.collection),
		zap.Int("document_count", len(documents)))

	return resilience.Retry(ctx, c.backoff, c.logger, "chroma.AddDocuments", func() error {
		url := fmt.Sprintf("%s/api/v1/collections/%s/add", c.baseURL, c.collection)

		var metadatas []map[string]string
		var ids []string
		var docTexts []string

		for _, doc := range documents {
			metadatas = append(metadatas, doc.Metadata)
			ids = append(ids, doc.ID)
			docTexts = append(docTexts, doc.Content)
		}

		payload := map[string]interface{}{
			"documents":  docTexts,
			"metadatas":  metadatas,
			"ids":        ids,
			"embeddings": embeddings,
		}

		jsonPayload, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonPayload))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.makeRequest(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		return nil
	})
}

// Query performs a vector similarity search in ChromaDB
func (c *Client) Query(ctx context.Context, queryEmbedding []float32, nResults int) ([]QueryResult, error) {
	url := fmt.Sprintf("%s/api/v1/collections/%s/query", c.baseURL, c.collection)

	jsonPayload, err := json.Marshal(queryRequest{
		QueryEmbeddings: [][]float32{queryEmbedding},
		NResults:        nResults,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonPayload))
	if err != nil {
		return nil, fmt.Errorf("failed to create query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.makeRequest(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var queryResp queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&queryResp); err != nil {
		return nil, fmt.Errorf("failed to decode query response: %w", err)
	}

	var results []QueryResult
	if len(queryResp.IDs) > 0 {
		for i, id := range queryResp.IDs[0] {
			result := QueryResult{
				ID:      id,
				Content: queryResp.Documents[0][i],
			}
			if len(queryResp.Distances) > 0 && len(queryResp.Distances[0]) > i {
				result.Distance = queryResp.Distances[0][i]
			}
			if len(queryResp.Metadatas) > 0 && len(queryResp.Metadatas[0]) > i {
				result.Metadata = make(map[string]string)
				for k, v := range queryResp.Metadatas[0][i] {
					if str, ok := v.(string); ok {
						result.Metadata[k] = str
					}
				}
			}
			results = append(results, result)
		}
	}

	return results, nil
}

// HealthCheck checks if ChromaDB is reachable
func (c *Client) HealthCheck(ctx context.Context) error {
	url := fmt.Sprintf("%s/api/v1/heartbeat", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to check ChromaDB health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ChromaDB health check failed with status %d", resp.StatusCode)
	}

	return nil
}
