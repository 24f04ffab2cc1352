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

// Package eval measures the quality of the retrieval index and of the
// assistant's answers. It replays a set of test queries through the
// retriever and the completion provider and asks a judge model to score
// each outcome, producing a JSON report for offline comparison of models
// and index settings.
package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/your-org/smarthome-support-assistant/internal/agent"
	"github.com/your-org/smarthome-support-assistant/internal/llm"
	"github.com/your-org/smarthome-support-assistant/internal/retriever"
	"go.uber.org/zap"
)

// DefaultQueries are the stock test queries covering the main support
// topics for the SmartHome Hub X1000.
var DefaultQueries = []string{
	"How do I set up my SmartHome Hub X1000 for the first time?",
	"What do I do if my device will not connect?",
	"What are the network requirements for the hub?",
	"Compatibility problems with Z-Wave devices",
	"How do I update the firmware?",
}

// RetrievalJudgment is the judge's verdict on one query's search results
type RetrievalJudgment struct {
	Score     int    `json:"score"`
	Reasoning string `json:"reasoning"`
}

// AnswerJudgment is the judge's verdict on one generated answer
type AnswerJudgment struct {
	Score       int    `json:"score"`
	Explanation string `json:"explanation"`
}

// QueryResult holds everything measured for one test query
type QueryResult struct {
	Query          string               `json:"query"`
	Fragments      []retriever.Fragment `json:"fragments"`
	Retrieval      *RetrievalJudgment   `json:"retrieval,omitempty"`
	Answer         string               `json:"answer,omitempty"`
	AnswerJudgment *AnswerJudgment      `json:"answer_judgment,omitempty"`
	Error          string               `json:"error,omitempty"`
	Timestamp      time.Time            `json:"timestamp"`
}

// Config carries the evaluator's tunables
type Config struct {
	// Model generates the answers under evaluation
	Model string
	// JudgeModel scores retrieval results and answers; defaults to Model
	JudgeModel string
	// Limit is the number of fragments retrieved per query
	Limit int
	// JudgeAnswers also generates and scores full answers, not just retrieval
	JudgeAnswers bool
}

// Evaluator replays test queries and scores the outcomes
type Evaluator struct {
	provider  llm.CompletionProvider
	retriever retriever.DocumentRetriever
	config    Config
	logger    *zap.Logger
}

// NewEvaluator wires an evaluator
func NewEvaluator(provider llm.CompletionProvider, docRetriever retriever.DocumentRetriever, config Config, logger *zap.Logger) *Evaluator {
	if config.JudgeModel == "" {
		config.JudgeModel = config.Model
	}
	if config.Limit <= 0 {
		config.Limit = 3
	}

	return &Evaluator{
		provider:  provider,
		retriever: docRetriever,
		config:    config,
		logger:    logger,
	}
}

// Run evaluates every query. A failure on one query is folded into that
// query's result as a zero-score judgment so the rest of the run and the
// report survive it.
func (e *Evaluator) Run(ctx context.Context, queries []string) *Report {
	if len(queries) == 0 {
		queries = DefaultQueries
	}

	report := &Report{
		GeneratedAt: time.Now().UTC(),
		Model:       e.config.Model,
		JudgeModel:  e.config.JudgeModel,
	}

	for _, query := range queries {
		result := e.evaluateQuery(ctx, query)
		report.Results = append(report.Results, result)

		e.logger.Info("Evaluated query",
			zap.String("query", query),
			zap.Int("fragments", len(result.Fragments)))
	}

	report.summarize()
	return report
}

func (e *Evaluator) evaluateQuery(ctx context.Context, query string) QueryResult {
	result := QueryResult{Query: query, Timestamp: time.Now().UTC()}

	fragments, err := e.retriever.Retrieve(ctx, query, e.config.Limit)
	if err != nil {
		e.logger.Warn("Retrieval failed during evaluation",
			zap.String("query", query),
			zap.Error(err))
		result.Error = err.Error()
		result.Retrieval = &RetrievalJudgment{Score: 0, Reasoning: "retrieval failed: " + err.Error()}
		return result
	}
	result.Fragments = fragments

	judgment, err := e.judgeRetrieval(ctx, query, fragments)
	if err != nil {
		e.logger.Warn("Retrieval judgment failed",
			zap.String("query", query),
			zap.Error(err))
		judgment = &RetrievalJudgment{Score: 0, Reasoning: "judgment failed: " + err.Error()}
	}
	result.Retrieval = judgment

	if !e.config.JudgeAnswers {
		return result
	}

	answer, err := e.generateAnswer(ctx, query, fragments)
	if err != nil {
		e.logger.Warn("Answer generation failed during evaluation",
			zap.String("query", query),
			zap.Error(err))
		result.Error = err.Error()
		result.AnswerJudgment = &AnswerJudgment{Score: 0, Explanation: "answer generation failed: " + err.Error()}
		return result
	}
	result.Answer = answer

	answerJudgment, err := e.judgeAnswer(ctx, query, answer, fragments)
	if err != nil {
		e.logger.Warn("Answer judgment failed",
			zap.String("query", query),
			zap.Error(err))
		answerJudgment = &AnswerJudgment{Score: 0, Explanation: "judgment failed: " + err.Error()}
	}
	result.AnswerJudgment = answerJudgment

	return result
}

// judgeRetrieval asks the judge model how well the retrieved fragments
// satisfy the query.
func (e *Evaluator) judgeRetrieval(ctx context.Context, query string, fragments []retriever.Fragment) (*RetrievalJudgment, error) {
	result, err := e.provider.Complete(ctx, llm.CompletionRequest{
		Model: e.config.JudgeModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: retrievalJudgeSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildRetrievalJudgePrompt(query, fragments)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval judgment request failed: %w", err)
	}

	var judgment RetrievalJudgment
	if err := decodeJudgment(result.Content, &judgment); err != nil {
		return nil, err
	}
	return &judgment, nil
}

// generateAnswer produces the answer under evaluation using the same
// system prompt the live assistant uses.
func (e *Evaluator) generateAnswer(ctx context.Context, query string, fragments []retriever.Fragment) (string, error) {
	result, err := e.provider.Complete(ctx, llm.CompletionRequest{
		Model: e.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: agent.BuildSystemPrompt(fragments)},
			{Role: openai.ChatMessageRoleUser, Content: query},
		},
	})
	if err != nil {
		return "", fmt.Errorf("answer generation failed: %w", err)
	}
	if result.Content == "" {
		return "", fmt.Errorf("answer generation returned empty content")
	}
	return result.Content, nil
}

// judgeAnswer asks the judge model to grade the answer against the
// documentation fragments it was grounded on.
func (e *Evaluator) judgeAnswer(ctx context.Context, query, answer string, fragments []retriever.Fragment) (*AnswerJudgment, error) {
	result, err := e.provider.Complete(ctx, llm.CompletionRequest{
		Model: e.config.JudgeModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: answerJudgeSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildAnswerJudgePrompt(query, answer, fragments)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("answer judgment request failed: %w", err)
	}

	var judgment AnswerJudgment
	if err := decodeJudgment(result.Content, &judgment); err != nil {
		return nil, err
	}
	return &judgment, nil
}

// decodeJudgment parses a judge verdict, tolerating a fenced code block
// around the JSON object.
func decodeJudgment(content string, out interface{}) error {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("invalid judgment: %w", err)
	}
	return nil
}

const retrievalJudgeSystemPrompt = `You are an expert evaluator of semantic search systems. You receive a user query and the documentation fragments a retrieval system returned for it, and you judge how well the fragments satisfy the query intent.

Respond ONLY with a JSON object with exactly these fields:
{
  "score": number,     // 0 to 10, overall quality of the retrieved fragments
  "reasoning": string  // a short explanation of the score
}

Be objective. Fragments that are on-topic but do not answer the query deserve a middling score; fragments unrelated to the query deserve a low one.`

func buildRetrievalJudgePrompt(query string, fragments []retriever.Fragment) string {
	var sb strings.Builder

	sb.WriteString("Query:\n")
	sb.WriteString(query)
	sb.WriteString("\n\nRetrieved fragments:\n")

	if len(fragments) == 0 {
		sb.WriteString("(none)\n")
		return sb.String()
	}

	for i, frag := range fragments {
		sb.WriteString(fmt.Sprintf("\nFRAGMENT %d (source %s):\n%s\n", i+1, frag.Source, strings.TrimSpace(frag.Content)))
	}

	return sb.String()
}

const answerJudgeSystemPrompt = `You are an evaluator of technical support answers for the SmartHome Hub X1000. The reference documentation provided with each task is the single source of truth: verify every claim in the answer against it, penalize contradictions heavily, and consider how completely and practically the answer addresses the user's question.

Respond ONLY with a JSON object with exactly these fields:
{
  "score": number,       // 0 to 10; 9-10 fully accurate and on point, 0-2 contradicts the documentation
  "explanation": string  // justification citing the documentation where relevant
}`

func buildAnswerJudgePrompt(query, answer string, fragments []retriever.Fragment) string {
	var sb strings.Builder

	sb.WriteString("Reference documentation:\n")
	if len(fragments) == 0 {
		sb.WriteString("(no documentation retrieved; judge on plausibility alone)\n")
	} else {
		for _, frag := range fragments {
			sb.WriteString("\n")
			sb.WriteString(strings.TrimSpace(frag.Content))
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\nQuery:\n")
	sb.WriteString(query)
	sb.WriteString("\n\nAnswer under evaluation:\n")
	sb.WriteString(answer)

	return sb.String()
}
