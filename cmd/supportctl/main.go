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

// Package main is the supportctl admin CLI: it inspects support tickets,
// queries the documentation index, reports backend service status and runs
// retrieval/answer quality evaluations from the command line.
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/your-org/smarthome-support-assistant/internal/chroma"
	"github.com/your-org/smarthome-support-assistant/internal/config"
	"github.com/your-org/smarthome-support-assistant/internal/eval"
	"github.com/your-org/smarthome-support-assistant/internal/llm"
	"github.com/your-org/smarthome-support-assistant/internal/retriever"
	"github.com/your-org/smarthome-support-assistant/internal/ticket"
	"github.com/your-org/smarthome-support-assistant/internal/tools"
	"go.uber.org/zap"
)

const (
	// commandTimeout bounds one CLI invocation
	commandTimeout = 30 * time.Second
	// evaluateTimeout bounds a full evaluation run, which makes many
	// provider calls
	evaluateTimeout = 10 * time.Minute
)

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "supportctl",
		Short:        "Admin CLI for the SmartHome Hub X1000 support assistant",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "./configs/config.yaml", "path to configuration file")

	rootCmd.AddCommand(newTicketsCmd())
	rootCmd.AddCommand(newDocsCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newEvaluateCmd())

	return rootCmd
}

// loadEnvironment loads configuration and a quiet logger for CLI use
func loadEnvironment() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := zap.NewNop()
	return cfg, logger, nil
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

func newTicketsCmd() *cobra.Command {
	ticketsCmd := &cobra.Command{
		Use:   "tickets",
		Short: "Inspect support tickets",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all support tickets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadEnvironment()
			if err != nil {
				return err
			}

			store, err := openTicketStore(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			list, err := store.List(ctx)
			if err != nil {
				return err
			}

			if len(list) == 0 {
				cmd.Println("No support tickets")
				return nil
			}

			for _, t := range list {
				cmd.Printf("%s  [%s/%s]  %s  (created %s)\n",
					t.ID, t.Status, t.Priority, t.Title, t.CreatedAt.Format(time.RFC3339))
			}
			cmd.Printf("\n%d ticket(s)\n", len(list))
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <ticket-id>",
		Short: "Show one support ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadEnvironment()
			if err != nil {
				return err
			}

			store, err := openTicketStore(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			t, err := store.Get(ctx, args[0])
			if err != nil {
				return err
			}

			cmd.Printf("ID:                 %s\n", t.ID)
			cmd.Printf("Title:              %s\n", t.Title)
			cmd.Printf("Status:             %s\n", t.Status)
			cmd.Printf("Priority:           %s\n", t.Priority)
			cmd.Printf("Created:            %s\n", t.CreatedAt.Format(time.RFC3339))
			cmd.Printf("Estimated response: %s\n", t.EstimatedResponse)
			if t.UserID != "" {
				cmd.Printf("Conversation:       %s\n", t.UserID)
			}
			cmd.Printf("\n%s\n", t.Description)
			return nil
		},
	}

	ticketsCmd.AddCommand(listCmd, showCmd)
	return ticketsCmd
}

func newDocsCmd() *cobra.Command {
	var limit int

	docsCmd := &cobra.Command{
		Use:   "docs",
		Short: "Query the documentation index",
	}

	queryCmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Run a similarity search against the documentation index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadEnvironment()
			if err != nil {
				return err
			}

			openaiClient, err := llm.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Endpoint, cfg.Agent.Model, logger)
			if err != nil {
				return err
			}

			chromaClient := chroma.NewClient(cfg.Chroma.URL, cfg.Chroma.CollectionName, logger)
			docRetriever := retriever.NewChromaRetriever(openaiClient, chromaClient, logger)

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			query := ""
			for i, arg := range args {
				if i > 0 {
					query += " "
				}
				query += arg
			}

			fragments, err := docRetriever.Retrieve(ctx, query, limit)
			if err != nil {
				return err
			}

			if len(fragments) == 0 {
				cmd.Println("No matching documentation fragments")
				return nil
			}

			for i, frag := range fragments {
				cmd.Printf("--- Result %d (distance %.4f) ---\n", i+1, frag.Distance)
				cmd.Println(frag.Content)
				if frag.URL != "" {
					cmd.Printf("Source: %s\n", frag.URL)
				} else if frag.Source != "" {
					cmd.Printf("Source: %s\n", frag.Source)
				}
				cmd.Println()
			}
			return nil
		},
	}
	queryCmd.Flags().IntVar(&limit, "limit", 3, "maximum number of results")

	docsCmd.AddCommand(queryCmd)
	return docsCmd
}

func newEvaluateCmd() *cobra.Command {
	var (
		queriesFile string
		limit       int
		judgeModel  string
		judgeAns    bool
		outDir      string
	)

	evaluateCmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score retrieval and answer quality over a set of test queries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadEnvironment()
			if err != nil {
				return err
			}

			openaiClient, err := llm.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Endpoint, cfg.Agent.Model, logger)
			if err != nil {
				return err
			}

			chromaClient := chroma.NewClient(cfg.Chroma.URL, cfg.Chroma.CollectionName, logger)
			docRetriever := retriever.NewChromaRetriever(openaiClient, chromaClient, logger)

			queries, err := loadQueries(queriesFile)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), evaluateTimeout)
			defer cancel()

			evaluator := eval.NewEvaluator(openaiClient, docRetriever, eval.Config{
				Model:        cfg.Agent.Model,
				JudgeModel:   judgeModel,
				Limit:        limit,
				JudgeAnswers: judgeAns,
			}, logger)

			report := evaluator.Run(ctx, queries)

			for _, result := range report.Results {
				cmd.Printf("%-60s", truncate(result.Query, 58))
				if result.Retrieval != nil {
					cmd.Printf("  retrieval %2d/10", result.Retrieval.Score)
				}
				if result.AnswerJudgment != nil {
					cmd.Printf("  answer %2d/10", result.AnswerJudgment.Score)
				}
				if result.Error != "" {
					cmd.Printf("  error: %s", result.Error)
				}
				cmd.Println()
			}

			cmd.Printf("\nAverage retrieval score: %.1f/10\n", report.AvgRetrievalScore)
			if judgeAns {
				cmd.Printf("Average answer score:    %.1f/10\n", report.AvgAnswerScore)
			}

			path, err := report.Save(outDir)
			if err != nil {
				return err
			}
			cmd.Printf("Report saved to %s\n", path)
			return nil
		},
	}

	evaluateCmd.Flags().StringVar(&queriesFile, "queries", "", "file with one test query per line (default: built-in queries)")
	evaluateCmd.Flags().IntVar(&limit, "limit", 3, "fragments retrieved per query")
	evaluateCmd.Flags().StringVar(&judgeModel, "judge-model", "", "model used to score results (default: the configured agent model)")
	evaluateCmd.Flags().BoolVar(&judgeAns, "answers", false, "also generate and score full answers")
	evaluateCmd.Flags().StringVar(&outDir, "out", "./evaluation-results", "directory for the JSON report")

	return evaluateCmd
}

// loadQueries reads one query per line, skipping blanks
func loadQueries(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read queries file: %w", err)
	}

	var queries []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			queries = append(queries, line)
		}
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("queries file %s contains no queries", path)
	}
	return queries, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [service]",
		Short: "Report backend service status",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := tools.NewDefaultStatusProvider()
			statuses := provider.Statuses()

			if len(args) == 1 && args[0] != tools.ServiceAll {
				record, ok := statuses[args[0]]
				if !ok {
					return fmt.Errorf("unknown service: %s", args[0])
				}
				cmd.Printf("%s: %s\n", args[0], record.Status)
				return nil
			}

			names := make([]string, 0, len(statuses))
			for name := range statuses {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				cmd.Printf("%-16s %s\n", name, statuses[name].Status)
			}
			cmd.Printf("%-16s %s\n", "overall", tools.AggregateStatus(statuses))
			return nil
		},
	}
}
