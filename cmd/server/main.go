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

// Package main runs the SmartHome Hub X1000 support assistant HTTP service.
// It exposes the chat endpoint, conversation management, ticket inspection,
// documentation routes and a retrieval debug endpoint.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sashabaranov/go-openai"
	"github.com/your-org/smarthome-support-assistant/internal/agent"
	"github.com/your-org/smarthome-support-assistant/internal/chroma"
	"github.com/your-org/smarthome-support-assistant/internal/config"
	"github.com/your-org/smarthome-support-assistant/internal/docs"
	"github.com/your-org/smarthome-support-assistant/internal/health"
	"github.com/your-org/smarthome-support-assistant/internal/llm"
	"github.com/your-org/smarthome-support-assistant/internal/retriever"
	"github.com/your-org/smarthome-support-assistant/internal/ticket"
	"github.com/your-org/smarthome-support-assistant/internal/tools"
	"go.uber.org/zap"
)

const (
	// ServiceVersion is reported by the health endpoint
	ServiceVersion = "1.0.0"
	// RequestTimeout bounds one chat turn end to end
	RequestTimeout = 60 * time.Second
	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout = 10 * time.Second
)

// ChatRequest is an incoming chat message. ConversationID is optional; a
// new conversation is started when it is empty.
type ChatRequest struct {
	Message        string `json:"message" binding:"required"`
	ConversationID string `json:"conversation_id"`
}

// ChatResponse is the assistant's reply for one turn
type ChatResponse struct {
	Reply          string        `json:"reply"`
	ConversationID string        `json:"conversation_id"`
	History        []HistoryItem `json:"history"`
}

// HistoryItem is one conversation message in API form. Tool payloads and
// the system prompt are internal, so history exposes only user and
// assistant text.
type HistoryItem struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SupportServer wires the HTTP layer to the orchestrator
type SupportServer struct {
	config        *config.Config
	logger        *zap.Logger
	orchestrator  *agent.Orchestrator
	docRetriever  retriever.DocumentRetriever
	tickets       ticket.Store
	corpus        *docs.Corpus
	healthManager *health.Manager
}

func main() {
	bootstrapLogger, _ := zap.NewProduction()

	cfg, err := config.Load("./configs/config.yaml")
	if err != nil {
		bootstrapLogger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		bootstrapLogger.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()

	openaiClient, err := llm.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Endpoint, cfg.Agent.Model, logger)
	if err != nil {
		logger.Fatal("Failed to initialize OpenAI client", zap.Error(err))
	}
	provider := llm.NewBreakerProvider(openaiClient, logger)

	chromaClient := chroma.NewClient(cfg.Chroma.URL, cfg.Chroma.CollectionName, logger)
	docRetriever := retriever.NewChromaRetriever(openaiClient, chromaClient, logger)

	ticketStore, err := openTicketStore(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open ticket store", zap.Error(err))
	}
	defer func() { _ = ticketStore.Close() }()

	corpus, err := docs.Load(cfg.Docs.Path, cfg.Docs.BaseURL, logger)
	if err != nil {
		logger.Warn("Documentation corpus unavailable, doc routes will 404", zap.Error(err))
		corpus = nil
	}

	statusProvider := tools.NewDefaultStatusProvider()
	executor := tools.NewExecutor(ticketStore, statusProvider, docRetriever, logger)
	registry := tools.NewRegistry()
	analyzer := agent.NewLLMEscalationAnalyzer(provider, cfg.Agent.Model, logger)

	orchestrator := agent.NewOrchestrator(
		provider,
		registry,
		executor,
		docRetriever,
		ticketStore,
		analyzer,
		agent.NewMemoryStateStore(),
		agent.Config{
			Model:               cfg.Agent.Model,
			MaxTokens:           cfg.Agent.MaxTokens,
			Temperature:         float32(cfg.Agent.Temperature),
			EscalationThreshold: cfg.Agent.EscalationThreshold,
			EscalationWindow:    cfg.Agent.EscalationWindow,
			MaxFragments:        cfg.Retrieval.MaxFragments,
		},
		logger,
	)

	healthManager := health.NewManager("support-assistant", ServiceVersion, logger)
	healthManager.AddChecker("chroma", health.DegradedOnErrorChecker("chroma", chromaClient.HealthCheck))
	healthManager.AddChecker("tickets", health.PingChecker("tickets", func(ctx context.Context) error {
		_, err := ticketStore.Count(ctx)
		return err
	}))

	server := &SupportServer{
		config:        cfg,
		logger:        logger,
		orchestrator:  orchestrator,
		docRetriever:  docRetriever,
		tickets:       ticketStore,
		corpus:        corpus,
		healthManager: healthManager,
	}

	router := server.setupRouter()

	httpServer := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Starting support assistant server",
			zap.String("port", cfg.Server.Port),
			zap.String("model", cfg.Agent.Model))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Forced shutdown", zap.Error(err))
	}
}

// openTicketStore selects the ticket backend from configuration
func openTicketStore(cfg *config.Config, logger *zap.Logger) (ticket.Store, error) {
	switch cfg.Tickets.StorageType {
	case "sqlite":
		return ticket.NewSQLiteStore(cfg.Tickets.DBPath, logger)
	default:
		return ticket.NewFileStore(cfg.Tickets.FilePath, logger)
	}
}

// setupRouter registers all HTTP routes
func (s *SupportServer) setupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())

	router.GET("/", s.handleIndex)
	router.GET("/health", s.handleHealth)

	router.POST("/chat", s.handleChat)
	router.GET("/conversations/:id/history", s.handleHistory)
	router.DELETE("/conversations/:id", s.handleDeleteConversation)

	router.GET("/embeddings/query", s.handleEmbeddingsQuery)

	router.GET("/tickets", s.handleListTickets)
	router.GET("/tickets/:id", s.handleGetTicket)

	router.GET("/docs", s.handleListDocs)
	router.GET("/docs/:name", s.handleGetDoc)

	return router
}

// requestLogger logs each request through zap instead of gin's default writer
func (s *SupportServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// handleIndex describes the service and its endpoints
func (s *SupportServer) handleIndex(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "SmartHome Hub X1000 Support Assistant",
		"version": ServiceVersion,
		"endpoints": []string{
			"POST /chat",
			"GET /conversations/:id/history",
			"DELETE /conversations/:id",
			"GET /embeddings/query",
			"GET /tickets",
			"GET /tickets/:id",
			"GET /docs",
			"GET /docs/:name",
			"GET /health",
		},
	})
}

// handleHealth reports service and dependency health
func (s *SupportServer) handleHealth(c *gin.Context) {
	report := s.healthManager.Check(c.Request.Context())

	status := http.StatusOK
	if report.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, report)
}

// handleChat processes one conversation turn
func (s *SupportServer) handleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = agent.GenerateConversationID()
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), RequestTimeout)
	defer cancel()

	result := s.orchestrator.ProcessMessage(ctx, conversationID, req.Message)

	c.JSON(http.StatusOK, ChatResponse{
		Reply:          result.Reply,
		ConversationID: conversationID,
		History:        toHistoryItems(result.History),
	})
}

// handleHistory returns the visible history of a conversation
func (s *SupportServer) handleHistory(c *gin.Context) {
	id := c.Param("id")

	history, ok := s.orchestrator.GetConversationHistory(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversation_id": id,
		"history":         toHistoryItems(history),
	})
}

// handleDeleteConversation discards a conversation's state
func (s *SupportServer) handleDeleteConversation(c *gin.Context) {
	id := c.Param("id")
	s.orchestrator.ClearConversation(id)
	c.JSON(http.StatusOK, gin.H{"message": "conversation deleted"})
}

// handleEmbeddingsQuery runs a raw similarity search, for debugging the index
func (s *SupportServer) handleEmbeddingsQuery(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter is required"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	fragments, err := s.docRetriever.Retrieve(c.Request.Context(), query, limit)
	if err != nil {
		s.logger.Error("Embedding query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "retrieval failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"query":   query,
		"results": fragments,
		"count":   len(fragments),
	})
}

// handleListTickets returns all support tickets
func (s *SupportServer) handleListTickets(c *gin.Context) {
	list, err := s.tickets.List(c.Request.Context())
	if err != nil {
		s.logger.Error("Failed to list tickets", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tickets"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tickets": list, "count": len(list)})
}

// handleGetTicket returns one support ticket by ID
func (s *SupportServer) handleGetTicket(c *gin.Context) {
	t, err := s.tickets.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ticket.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ticket not found"})
			return
		}
		s.logger.Error("Failed to get ticket", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get ticket"})
		return
	}

	c.JSON(http.StatusOK, t)
}

// handleListDocs returns the documentation index
func (s *SupportServer) handleListDocs(c *gin.Context) {
	if s.corpus == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "documentation not available"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"documents": s.corpus.List()})
}

// handleGetDoc serves one documentation file as markdown
func (s *SupportServer) handleGetDoc(c *gin.Context) {
	if s.corpus == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "documentation not available"})
		return
	}

	doc, ok := s.corpus.Get(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}

	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(doc.Content))
}

// toHistoryItems filters internal messages out of a conversation history
func toHistoryItems(history []openai.ChatCompletionMessage) []HistoryItem {
	items := make([]HistoryItem, 0, len(history))
	for _, msg := range history {
		if msg.Role != openai.ChatMessageRoleUser && msg.Role != openai.ChatMessageRoleAssistant {
			continue
		}
		if msg.Content == "" {
			continue
		}
		items = append(items, HistoryItem{Role: msg.Role, Content: msg.Content})
	}
	return items
}
