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

// Package docs loads the SmartHome Hub X1000 documentation corpus from disk.
// The corpus feeds the ingestion pipeline and backs the documentation routes
// of the HTTP server.
package docs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Document is one markdown file of the documentation corpus
type Document struct {
	FileName string `json:"file_name"`
	Title    string `json:"title"`
	Content  string `json:"-"`
	URL      string `json:"url"`
}

// Corpus is the loaded documentation set, indexed by file name
type Corpus struct {
	documents map[string]Document
	ordered   []string
}

// Load reads every .md file in dir. Each document's URL is derived from
// baseURL so retrieval results can link back to the served document.
func Load(dir, baseURL string, logger *zap.Logger) (*Corpus, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read documentation directory %s: %w", dir, err)
	}

	corpus := &Corpus{documents: make(map[string]Document)}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read document %s: %w", entry.Name(), err)
		}

		content := string(data)
		doc := Document{
			FileName: entry.Name(),
			Title:    extractTitle(content, entry.Name()),
			Content:  content,
			URL:      strings.TrimSuffix(baseURL, "/") + "/docs/" + entry.Name(),
		}

		corpus.documents[doc.FileName] = doc
		corpus.ordered = append(corpus.ordered, doc.FileName)
	}

	sort.Strings(corpus.ordered)

	logger.Info("Loaded documentation corpus",
		zap.String("dir", dir),
		zap.Int("documents", len(corpus.ordered)))

	return corpus, nil
}

// Get returns a document by file name
func (c *Corpus) Get(fileName string) (Document, bool) {
	doc, ok := c.documents[fileName]
	return doc, ok
}

// List returns all documents in file-name order
func (c *Corpus) List() []Document {
	list := make([]Document, 0, len(c.ordered))
	for _, name := range c.ordered {
		list = append(list, c.documents[name])
	}
	return list
}

// Len returns the number of loaded documents
func (c *Corpus) Len() int {
	return len(c.ordered)
}

// extractTitle uses the first level-1 heading as the document title,
// falling back to the file name.
func extractTitle(content, fileName string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
		}
	}
	return strings.TrimSuffix(fileName, ".md")
}
