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
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/smarthome-support-assistant/internal/ticket"
	"go.uber.org/zap/zaptest"
)

// writeTestConfig writes a minimal valid config with a file ticket store
// under dir and returns its path.
func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()
	t.Setenv("CONFIG_PATH", "")

	content := fmt.Sprintf(`
openai:
  apikey: "sk-test-key-for-unit-tests"
tickets:
  storage_type: "file"
  file_path: %q
`, filepath.Join(dir, "tickets.json"))

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// runCommand executes supportctl with args and captures its output
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return buf.String(), err
}

func TestTicketsListEmpty(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir())

	out, err := runCommand(t, "--config", cfgPath, "tickets", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No support tickets")
}

func TestTicketsListAndShow(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir)

	store, err := ticket.NewFileStore(filepath.Join(dir, "tickets.json"), zaptest.NewLogger(t))
	require.NoError(t, err)
	created, err := store.Create(context.Background(), ticket.NewTicket{
		Title:       "Hub offline after firmware update",
		Description: "Hub fails to reconnect",
		Priority:    "high",
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	out, err := runCommand(t, "--config", cfgPath, "tickets", "list")
	require.NoError(t, err)
	assert.Contains(t, out, created.ID)
	assert.Contains(t, out, "Hub offline after firmware update")
	assert.Contains(t, out, "1 ticket(s)")

	out, err = runCommand(t, "--config", cfgPath, "tickets", "show", created.ID)
	require.NoError(t, err)
	assert.Contains(t, out, created.ID)
	assert.Contains(t, out, "high")
	assert.Contains(t, out, "Hub fails to reconnect")
}

func TestTicketsShowUnknownIDFails(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir())

	_, err := runCommand(t, "--config", cfgPath, "tickets", "show", "TK-999")
	assert.Error(t, err)
}

func TestStatusCommand(t *testing.T) {
	out, err := runCommand(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "api")
	assert.Contains(t, out, "degraded")
	assert.Contains(t, out, "overall")

	out, err = runCommand(t, "status", "api")
	require.NoError(t, err)
	assert.Contains(t, out, "api: degraded")

	_, err = runCommand(t, "status", "thermostat")
	assert.Error(t, err)
}

func TestLoadQueries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "queries.txt")
	require.NoError(t, os.WriteFile(path, []byte("first query\n\n  second query  \n"), 0o644))

	queries, err := loadQueries(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"first query", "second query"}, queries)

	queries, err = loadQueries("")
	require.NoError(t, err)
	assert.Nil(t, queries)

	require.NoError(t, os.WriteFile(path, []byte("\n \n"), 0o644))
	_, err = loadQueries(path)
	assert.Error(t, err)
}
