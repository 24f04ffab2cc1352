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

// Package retriever turns a free-text query into an ordered list of relevant
// documentation fragments by embedding the query and searching ChromaDB.
package retriever

import (
	"context"
	"fmt"

	"github.com/your-org/smarthome-support-assistant/internal/chroma"
	"github.com/your-org/smarthome-support-assistant/internal/llm"
	"go.uber.org/zap"
)

// Fragment is one retrieved documentation excerpt with its source
type Fragment struct {
	Content  string  `json:"content"`
	Source   string  `json:"source"`
	URL      string  `json:"url,omitempty"`
	Distance float64 `json:"distance"`
}

// DocumentRetriever is the seam the orchestrator depends on for
// documentation context.
type DocumentRetriever interface {
	Retrieve(ctx context.Context, query string, limit int) ([]Fragment, error)
}

// vectorStore is the subset of the chroma client used by the retriever
type vectorStore interface {
	Query(ctx context.Context, queryEmbedding []float32, nResults int) ([]chroma.QueryResult, error)
}

// ChromaRetriever retrieves documentation fragments from ChromaDB
type ChromaRetriever struct {
	embedder llm.Embedder
	store    vectorStore
	logger   *zap.Logger
}

// NewChromaRetriever creates a retriever backed by ChromaDB
func NewChromaRetriever(embedder llm.Embedder, store vectorStore, logger *zap.Logger) *ChromaRetriever {
	return &ChromaRetriever{
		embedder: embedder,
		store:    store,
		logger:   logger,
	}
}

// Retrieve embeds the query and returns the most similar documentation
// fragments, ordered by ascending distance.
func (r *ChromaRetriever) Retrieve(ctx context.Context, query string, limit int) ([]Fragment, error) {
	if limit <= 0 {
		limit = 3
	}

	embedding, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := r.store.Query(ctx, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query vector store: %w", err)
	}

	fragments := make([]Fragment, 0, len(results))
	for _, res := range results {
		fragment := Fragment{
			Content:  res.Content,
			Distance: res.Distance,
		}
		if res.Metadata != nil {
			fragment.Source = res.Metadata["file_name"]
			fragment.URL = res.Metadata["url"]
		}
		if fragment.Source == "" {
			fragment.Source = res.ID
		}
		fragments = append(fragments, fragment)
	}

	r.logger.Debug("Retrieved documentation fragments",
		zap.String("query", query),
		zap.Int("fragment_count", len(fragments)))

	return fragments, nil
}
