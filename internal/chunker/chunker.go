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

// Package chunker splits documentation files into fragments sized for
// embedding and retrieval. Markdown documents are first cut at heading
// boundaries so each fragment stays on one topic, then oversized sections
// are split further on sentence boundaries.
package chunker

import (
	"strings"
)

// DefaultChunkSize is the target fragment size in characters
const DefaultChunkSize = 1200

// Chunk is one retrievable fragment of a documentation file
type Chunk struct {
	Content string
	Section string
}

// ChunkMarkdown splits a markdown document into fragments. Each fragment
// carries the heading of the section it came from, so retrieval results can
// point the user at the right part of the document.
func ChunkMarkdown(content string, chunkSize int) []Chunk {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	var chunks []Chunk
	for _, section := range splitSections(content) {
		body := strings.TrimSpace(section.body)
		if body == "" {
			continue
		}

		for _, piece := range splitBySize(body, chunkSize) {
			chunks = append(chunks, Chunk{
				Content: piece,
				Section: section.heading,
			})
		}
	}

	return chunks
}

type section struct {
	heading string
	body    string
}

// splitSections cuts a markdown document at # / ## / ### headings. Text
// before the first heading becomes a section with an empty heading.
func splitSections(content string) []section {
	var sections []section
	current := section{}

	flush := func() {
		if strings.TrimSpace(current.body) != "" || current.heading != "" {
			sections = append(sections, current)
		}
	}

	for _, line := range strings.Split(content, "\n") {
		if heading, ok := parseHeading(line); ok {
			flush()
			current = section{heading: heading}
			continue
		}
		current.body += line + "\n"
	}
	flush()

	return sections
}

// parseHeading returns the heading text for #, ## and ### lines
func parseHeading(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	for _, prefix := range []string{"### ", "## ", "# "} {
		if strings.HasPrefix(trimmed, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, prefix)), true
		}
	}
	return "", false
}

// splitBySize splits text into pieces of at most chunkSize characters,
// preferring sentence boundaries and falling back to word boundaries.
func splitBySize(text string, chunkSize int) []string {
	if len(text) <= chunkSize {
		return []string{text}
	}

	var pieces []string
	var current strings.Builder

	for _, word := range strings.Fields(text) {
		if current.Len() > 0 && current.Len()+len(word)+1 > chunkSize {
			piece := current.String()
			if head, tail := splitAtSentence(piece); head != "" {
				pieces = append(pieces, strings.TrimSpace(head))
				current.Reset()
				if tail != "" {
					current.WriteString(tail)
				}
			} else {
				pieces = append(pieces, strings.TrimSpace(piece))
				current.Reset()
			}
		}

		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}

	if strings.TrimSpace(current.String()) != "" {
		pieces = append(pieces, strings.TrimSpace(current.String()))
	}

	return pieces
}

// splitAtSentence splits text at its last sentence boundary. It returns
// empty strings when no boundary exists.
func splitAtSentence(text string) (head, tail string) {
	last := -1
	for _, ender := range []string{". ", "! ", "? ", ".\n", "!\n", "?\n"} {
		if idx := strings.LastIndex(text, ender); idx >= 0 && idx+len(ender) > last {
			last = idx + len(ender)
		}
	}

	if last <= 0 {
		return "", ""
	}

	return text[:last], strings.TrimSpace(text[last:])
}
