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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/smarthome-support-assistant/internal/agent"
	"github.com/your-org/smarthome-support-assistant/internal/config"
	"github.com/your-org/smarthome-support-assistant/internal/docs"
	"github.com/your-org/smarthome-support-assistant/internal/health"
	"github.com/your-org/smarthome-support-assistant/internal/llm"
	"github.com/your-org/smarthome-support-assistant/internal/retriever"
	"github.com/your-org/smarthome-support-assistant/internal/ticket"
	"github.com/your-org/smarthome-support-assistant/internal/tools"
	"go.uber.org/zap/zaptest"
)

type cannedProvider struct {
	reply string
}

func (p *cannedProvider) Complete(_ context.Context, _ llm.CompletionRequest) (*llm.CompletionResult, error) {
	return &llm.CompletionResult{Content: p.reply}, nil
}

type cannedRetriever struct{}

func (r *cannedRetriever) Retrieve(_ context.Context, _ string, _ int) ([]retriever.Fragment, error) {
	return []retriever.Fragment{{Content: "fragment", Source: "setup.md"}}, nil
}

type neverEscalate struct{}

func (neverEscalate) Analyze(_ context.Context, _ []string, _ []ticket.Ticket) (*agent.EscalationDecision, error) {
	return &agent.EscalationDecision{}, nil
}

func newTestServer(t *testing.T) *SupportServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)

	store, err := ticket.NewFileStore(filepath.Join(t.TempDir(), "tickets.json"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	docsDir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(docsDir, "setup.md"),
		[]byte("# Initial Setup\n\nPlug in the hub."), 0o644))
	corpus, err := docs.Load(docsDir, "http://localhost:8080", logger)
	require.NoError(t, err)

	docRetriever := &cannedRetriever{}
	executor := tools.NewExecutor(store, tools.NewDefaultStatusProvider(), docRetriever, logger)
	orchestrator := agent.NewOrchestrator(
		&cannedProvider{reply: "canned reply"},
		tools.NewRegistry(),
		executor,
		docRetriever,
		store,
		neverEscalate{},
		agent.NewMemoryStateStore(),
		agent.Config{},
		logger,
	)

	healthManager := health.NewManager("support-assistant", ServiceVersion, logger)
	healthManager.AddCheckerFunc("tickets", func(ctx context.Context) health.CheckResult {
		return health.CheckResult{Status: health.StatusHealthy}
	})

	return &SupportServer{
		config:        &config.Config{},
		logger:        logger,
		orchestrator:  orchestrator,
		docRetriever:  docRetriever,
		tickets:       store,
		corpus:        corpus,
		healthManager: healthManager,
	}
}

func doRequest(t *testing.T, server *SupportServer, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	server.setupRouter().ServeHTTP(recorder, req)
	return recorder
}

func TestChatEndpoint(t *testing.T) {
	server := newTestServer(t)

	recorder := doRequest(t, server, http.MethodPost, "/chat",
		ChatRequest{Message: "my hub is offline"})

	require.Equal(t, http.StatusOK, recorder.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, "canned reply", resp.Reply)
	assert.NotEmpty(t, resp.ConversationID, "server must generate a conversation ID")
	// visible history hides the system prompt
	require.Len(t, resp.History, 2)
	assert.Equal(t, "user", resp.History[0].Role)
	assert.Equal(t, "assistant", resp.History[1].Role)
}

func TestChatEndpointKeepsConversation(t *testing.T) {
	server := newTestServer(t)

	recorder := doRequest(t, server, http.MethodPost, "/chat",
		ChatRequest{Message: "first", ConversationID: "conv-fixed"})
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = doRequest(t, server, http.MethodPost, "/chat",
		ChatRequest{Message: "second", ConversationID: "conv-fixed"})
	require.Equal(t, http.StatusOK, recorder.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, "conv-fixed", resp.ConversationID)
	assert.Len(t, resp.History, 4)
}

func TestChatEndpointRequiresMessage(t *testing.T) {
	server := newTestServer(t)

	recorder := doRequest(t, server, http.MethodPost, "/chat", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestHistoryEndpoint(t *testing.T) {
	server := newTestServer(t)

	recorder := doRequest(t, server, http.MethodGet, "/conversations/conv-x/history", nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	doRequest(t, server, http.MethodPost, "/chat",
		ChatRequest{Message: "hello", ConversationID: "conv-x"})

	recorder = doRequest(t, server, http.MethodGet, "/conversations/conv-x/history", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "canned reply")
}

func TestDeleteConversationEndpoint(t *testing.T) {
	server := newTestServer(t)

	doRequest(t, server, http.MethodPost, "/chat",
		ChatRequest{Message: "hello", ConversationID: "conv-x"})

	recorder := doRequest(t, server, http.MethodDelete, "/conversations/conv-x", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder = doRequest(t, server, http.MethodGet, "/conversations/conv-x/history", nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestEmbeddingsQueryEndpoint(t *testing.T) {
	server := newTestServer(t)

	recorder := doRequest(t, server, http.MethodGet, "/embeddings/query?query=reset", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "fragment")

	recorder = doRequest(t, server, http.MethodGet, "/embeddings/query", nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = doRequest(t, server, http.MethodGet, "/embeddings/query?query=reset&limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestTicketEndpoints(t *testing.T) {
	server := newTestServer(t)

	created, err := server.tickets.Create(context.Background(), ticket.NewTicket{
		Title: "Hub offline", Priority: "high",
	})
	require.NoError(t, err)

	recorder := doRequest(t, server, http.MethodGet, "/tickets", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), created.ID)

	recorder = doRequest(t, server, http.MethodGet, "/tickets/"+created.ID, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "Hub offline")

	recorder = doRequest(t, server, http.MethodGet, "/tickets/TK-999", nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestDocsEndpoints(t *testing.T) {
	server := newTestServer(t)

	recorder := doRequest(t, server, http.MethodGet, "/docs", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "setup.md")

	recorder = doRequest(t, server, http.MethodGet, "/docs/setup.md", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, recorder.Body.String(), "Plug in the hub.")

	recorder = doRequest(t, server, http.MethodGet, "/docs/missing.md", nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t)

	recorder := doRequest(t, server, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var report health.Report
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &report))
	assert.Equal(t, health.StatusHealthy, report.Status)
	assert.Equal(t, "support-assistant", report.Service)
}

func TestIndexEndpoint(t *testing.T) {
	server := newTestServer(t)

	recorder := doRequest(t, server, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "SmartHome Hub X1000 Support Assistant")
}
