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

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/smarthome-support-assistant/internal/chunker"
	"github.com/your-org/smarthome-support-assistant/internal/docs"
	"go.uber.org/zap/zaptest"
)

func TestBuildChunks(t *testing.T) {
	dir := t.TempDir()
	content := "# Initial Setup\n\nPlug in the hub and wait for the LED.\n\n## Network\n\nConnect the hub to your router.\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "setup.md"), []byte(content), 0o644))

	corpus, err := docs.Load(dir, "http://localhost:8080", zaptest.NewLogger(t))
	require.NoError(t, err)

	documents := buildChunks(corpus, chunker.DefaultChunkSize)
	require.Len(t, documents, 2)

	assert.Equal(t, "setup.md#0", documents[0].ID)
	assert.Equal(t, "setup.md#1", documents[1].ID)
	assert.Contains(t, documents[0].Content, "Plug in the hub")

	meta := documents[0].Metadata
	assert.Equal(t, "setup.md", meta["file_name"])
	assert.Equal(t, "Initial Setup", meta["title"])
	assert.Equal(t, "Initial Setup", meta["section"])
	assert.Equal(t, "http://localhost:8080/docs/setup.md", meta["url"])

	assert.Equal(t, "Network", documents[1].Metadata["section"])
}
