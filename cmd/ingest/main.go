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

// Package main ingests the SmartHome Hub X1000 documentation corpus into
// the vector store: it chunks each markdown file, embeds the chunks and
// writes them to ChromaDB for retrieval.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/your-org/smarthome-support-assistant/internal/chroma"
	"github.com/your-org/smarthome-support-assistant/internal/chunker"
	"github.com/your-org/smarthome-support-assistant/internal/config"
	"github.com/your-org/smarthome-support-assistant/internal/docs"
	"github.com/your-org/smarthome-support-assistant/internal/llm"
	"go.uber.org/zap"
)

const (
	// EmbedBatchSize bounds how many chunks go into one embedding request
	EmbedBatchSize = 64
	// IngestTimeout bounds the whole ingestion run
	IngestTimeout = 10 * time.Minute
)

func main() {
	docsPath := flag.String("docs-path", "", "Path to documents directory (overrides config)")
	configPath := flag.String("config", "./configs/config.yaml", "Path to configuration file")
	chunkSize := flag.Int("chunk-size", chunker.DefaultChunkSize, "Target chunk size in characters")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	dir := cfg.Docs.Path
	if *docsPath != "" {
		dir = *docsPath
	}

	ctx, cancel := context.WithTimeout(context.Background(), IngestTimeout)
	defer cancel()

	logger.Info("Starting documentation ingestion",
		zap.String("docs_path", dir),
		zap.String("chroma_url", cfg.Chroma.URL),
		zap.String("collection", cfg.Chroma.CollectionName))

	corpus, err := docs.Load(dir, cfg.Docs.BaseURL, logger)
	if err != nil {
		logger.Fatal("Failed to load documentation corpus", zap.Error(err))
	}
	if corpus.Len() == 0 {
		logger.Fatal("Documentation directory contains no markdown files", zap.String("dir", dir))
	}

	openaiClient, err := llm.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Endpoint, cfg.Agent.Model, logger)
	if err != nil {
		logger.Fatal("Failed to initialize OpenAI client", zap.Error(err))
	}

	chromaClient := chroma.NewClient(cfg.Chroma.URL, cfg.Chroma.CollectionName, logger)
	if err := chromaClient.EnsureCollection(ctx); err != nil {
		logger.Fatal("Failed to prepare ChromaDB collection", zap.Error(err))
	}

	documents := buildChunks(corpus, *chunkSize)
	logger.Info("Chunked documentation corpus",
		zap.Int("documents", corpus.Len()),
		zap.Int("chunks", len(documents)))

	total := 0
	for start := 0; start < len(documents); start += EmbedBatchSize {
		end := start + EmbedBatchSize
		if end > len(documents) {
			end = len(documents)
		}
		batch := documents[start:end]

		texts := make([]string, len(batch))
		for i, doc := range batch {
			texts[i] = doc.Content
		}

		embeddings, err := openaiClient.EmbedTexts(ctx, texts)
		if err != nil {
			logger.Fatal("Failed to embed chunk batch",
				zap.Int("batch_start", start),
				zap.Error(err))
		}

		if err := chromaClient.AddDocuments(ctx, batch, embeddings); err != nil {
			logger.Fatal("Failed to store chunk batch",
				zap.Int("batch_start", start),
				zap.Error(err))
		}

		total += len(batch)
		logger.Info("Stored chunk batch",
			zap.Int("stored", total),
			zap.Int("remaining", len(documents)-total))
	}

	logger.Info("Ingestion completed",
		zap.Int("documents", corpus.Len()),
		zap.Int("chunks", total))
}

// buildChunks converts the corpus into ChromaDB documents with retrieval
// metadata attached to every chunk.
func buildChunks(corpus *docs.Corpus, chunkSize int) []chroma.Document {
	var documents []chroma.Document

	for _, doc := range corpus.List() {
		chunks := chunker.ChunkMarkdown(doc.Content, chunkSize)
		for i, chunk := range chunks {
			documents = append(documents, chroma.Document{
				ID:      fmt.Sprintf("%s#%d", doc.FileName, i),
				Content: chunk.Content,
				Metadata: map[string]string{
					"file_name": doc.FileName,
					"title":     doc.Title,
					"section":   chunk.Section,
					"url":       doc.URL,
				},
			})
		}
	}

	return documents
}
