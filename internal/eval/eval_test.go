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

package eval

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/smarthome-support-assistant/internal/llm"
	"github.com/your-org/smarthome-support-assistant/internal/retriever"
	"go.uber.org/zap/zaptest"
)

// scriptedProvider returns queued completion results in order
type scriptedProvider struct {
	results  []*llm.CompletionResult
	err      error
	requests []llm.CompletionRequest
}

func (p *scriptedProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResult, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	if len(p.results) == 0 {
		return &llm.CompletionResult{Content: `{"score": 5, "reasoning": "default"}`}, nil
	}
	result := p.results[0]
	p.results = p.results[1:]
	return result, nil
}

type fixedRetriever struct {
	fragments []retriever.Fragment
	err       error
}

func (r *fixedRetriever) Retrieve(_ context.Context, _ string, _ int) ([]retriever.Fragment, error) {
	return r.fragments, r.err
}

func testFragments() []retriever.Fragment {
	return []retriever.Fragment{
		{Content: "Hold the reset button for 10 seconds.", Source: "troubleshooting.md"},
	}
}

func TestRunJudgesRetrieval(t *testing.T) {
	provider := &scriptedProvider{results: []*llm.CompletionResult{
		{Content: `{"score": 8, "reasoning": "fragments match the query"}`},
	}}
	evaluator := NewEvaluator(provider, &fixedRetriever{fragments: testFragments()},
		Config{Model: "gpt-4o"}, zaptest.NewLogger(t))

	report := evaluator.Run(context.Background(), []string{"how do I reset the hub?"})

	require.Len(t, report.Results, 1)
	result := report.Results[0]
	require.NotNil(t, result.Retrieval)
	assert.Equal(t, 8, result.Retrieval.Score)
	assert.Equal(t, "fragments match the query", result.Retrieval.Reasoning)
	assert.Empty(t, result.Answer, "answers are not generated unless requested")
	assert.InDelta(t, 8.0, report.AvgRetrievalScore, 0.001)

	// judge prompt carries the query and the fragment content
	require.Len(t, provider.requests, 1)
	user := provider.requests[0].Messages[1].Content
	assert.Contains(t, user, "how do I reset the hub?")
	assert.Contains(t, user, "Hold the reset button")
	require.NotNil(t, provider.requests[0].ResponseFormat)
}

func TestRunJudgesAnswers(t *testing.T) {
	provider := &scriptedProvider{results: []*llm.CompletionResult{
		{Content: `{"score": 7, "reasoning": "good"}`},
		{Content: "Hold the reset button for 10 seconds to reset the hub."},
		{Content: `{"score": 9, "explanation": "matches the documentation"}`},
	}}
	evaluator := NewEvaluator(provider, &fixedRetriever{fragments: testFragments()},
		Config{Model: "gpt-4o", JudgeModel: "gpt-4o-mini", JudgeAnswers: true}, zaptest.NewLogger(t))

	report := evaluator.Run(context.Background(), []string{"how do I reset the hub?"})

	require.Len(t, report.Results, 1)
	result := report.Results[0]
	assert.Contains(t, result.Answer, "Hold the reset button")
	require.NotNil(t, result.AnswerJudgment)
	assert.Equal(t, 9, result.AnswerJudgment.Score)
	assert.InDelta(t, 9.0, report.AvgAnswerScore, 0.001)

	// retrieval judge and answer judge use the judge model, the answer the
	// primary model
	require.Len(t, provider.requests, 3)
	assert.Equal(t, "gpt-4o-mini", provider.requests[0].Model)
	assert.Equal(t, "gpt-4o", provider.requests[1].Model)
	assert.Equal(t, "gpt-4o-mini", provider.requests[2].Model)
}

func TestRunDefaultQueries(t *testing.T) {
	provider := &scriptedProvider{}
	evaluator := NewEvaluator(provider, &fixedRetriever{fragments: testFragments()},
		Config{Model: "gpt-4o"}, zaptest.NewLogger(t))

	report := evaluator.Run(context.Background(), nil)

	assert.Len(t, report.Results, len(DefaultQueries))
}

func TestRunFoldsRetrievalFailure(t *testing.T) {
	provider := &scriptedProvider{}
	evaluator := NewEvaluator(provider, &fixedRetriever{err: errors.New("chroma unreachable")},
		Config{Model: "gpt-4o"}, zaptest.NewLogger(t))

	report := evaluator.Run(context.Background(), []string{"query one", "query two"})

	require.Len(t, report.Results, 2)
	for _, result := range report.Results {
		require.NotNil(t, result.Retrieval)
		assert.Equal(t, 0, result.Retrieval.Score)
		assert.Contains(t, result.Error, "chroma unreachable")
	}
	assert.Zero(t, report.AvgRetrievalScore)
	assert.Empty(t, provider.requests, "no judge calls when retrieval fails")
}

func TestRunFoldsJudgeFailure(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("api down")}
	evaluator := NewEvaluator(provider, &fixedRetriever{fragments: testFragments()},
		Config{Model: "gpt-4o"}, zaptest.NewLogger(t))

	report := evaluator.Run(context.Background(), []string{"query"})

	require.Len(t, report.Results, 1)
	require.NotNil(t, report.Results[0].Retrieval)
	assert.Equal(t, 0, report.Results[0].Retrieval.Score)
	assert.Contains(t, report.Results[0].Retrieval.Reasoning, "judgment failed")
}

func TestDecodeJudgmentToleratesFences(t *testing.T) {
	var judgment RetrievalJudgment
	err := decodeJudgment("```json\n{\"score\": 6, \"reasoning\": \"ok\"}\n```", &judgment)
	require.NoError(t, err)
	assert.Equal(t, 6, judgment.Score)

	err = decodeJudgment("not json at all", &judgment)
	assert.Error(t, err)
}

func TestReportSummarizeAverages(t *testing.T) {
	report := &Report{Results: []QueryResult{
		{Retrieval: &RetrievalJudgment{Score: 8}, AnswerJudgment: &AnswerJudgment{Score: 6}},
		{Retrieval: &RetrievalJudgment{Score: 4}},
	}}

	report.summarize()

	assert.InDelta(t, 6.0, report.AvgRetrievalScore, 0.001)
	assert.InDelta(t, 6.0, report.AvgAnswerScore, 0.001)
}

func TestReportSave(t *testing.T) {
	provider := &scriptedProvider{results: []*llm.CompletionResult{
		{Content: `{"score": 8, "reasoning": "good"}`},
	}}
	evaluator := NewEvaluator(provider, &fixedRetriever{fragments: testFragments()},
		Config{Model: "gpt-4o"}, zaptest.NewLogger(t))
	report := evaluator.Run(context.Background(), []string{"query"})

	dir := t.TempDir()
	path, err := report.Save(dir)
	require.NoError(t, err)
	assert.FileExists(t, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var loaded Report
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.Equal(t, "gpt-4o", loaded.Model)
	require.Len(t, loaded.Results, 1)
	assert.Equal(t, 8, loaded.Results[0].Retrieval.Score)
}
