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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Report is the aggregated outcome of one evaluation run
type Report struct {
	GeneratedAt       time.Time     `json:"generated_at"`
	Model             string        `json:"model"`
	JudgeModel        string        `json:"judge_model"`
	Results           []QueryResult `json:"results"`
	AvgRetrievalScore float64       `json:"avg_retrieval_score"`
	AvgAnswerScore    float64       `json:"avg_answer_score,omitempty"`
}

// summarize computes the average scores across all judged queries
func (r *Report) summarize() {
	var retrievalSum, answerSum float64
	var retrievalCount, answerCount int

	for _, result := range r.Results {
		if result.Retrieval != nil {
			retrievalSum += float64(result.Retrieval.Score)
			retrievalCount++
		}
		if result.AnswerJudgment != nil {
			answerSum += float64(result.AnswerJudgment.Score)
			answerCount++
		}
	}

	if retrievalCount > 0 {
		r.AvgRetrievalScore = retrievalSum / float64(retrievalCount)
	}
	if answerCount > 0 {
		r.AvgAnswerScore = answerSum / float64(answerCount)
	}
}

// Save writes the report as timestamped JSON under dir, creating the
// directory if needed, and returns the written path.
func (r *Report) Save(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	name := fmt.Sprintf("evaluation-%s.json", r.GeneratedAt.Format("20060102-150405"))
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	return path, nil
}
