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

// Package tools defines the callable tools exposed to the completion
// provider and executes the tool calls it requests.
package tools

import (
	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// Tool names exposed to the completion provider
const (
	ToolCheckStatus  = "checkStatus"
	ToolCreateTicket = "createTicket"
	ToolSearchDocs   = "searchDocs"
)

// Registry exposes the static list of callable tool definitions
type Registry struct {
	tools []openai.Tool
}

// NewRegistry creates the registry with the full tool set
func NewRegistry() *Registry {
	return &Registry{tools: buildToolDefinitions()}
}

// All returns every tool definition
func (r *Registry) All() []openai.Tool {
	tools := make([]openai.Tool, len(r.tools))
	copy(tools, r.tools)
	return tools
}

// ByName returns the tool definition with the given function name
func (r *Registry) ByName(name string) (openai.Tool, bool) {
	for _, tool := range r.tools {
		if tool.Function != nil && tool.Function.Name == name {
			return tool, true
		}
	}
	return openai.Tool{}, false
}

// buildToolDefinitions returns the immutable tool schema list
func buildToolDefinitions() []openai.Tool {
	return []openai.Tool{
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        ToolCheckStatus,
				Description: "Checks the current status of the SmartHome Hub X1000 backend services",
				Parameters: jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"service": {
							Type:        jsonschema.String,
							Description: "Specific service to check, or 'all' for every service",
							Enum: []string{
								ServiceCloud,
								ServiceAuthentication,
								ServiceAPI,
								ServiceConnectivity,
								ServiceAll,
							},
						},
					},
					Required: []string{"service"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        ToolCreateTicket,
				Description: "Registers a support ticket for problems the documentation cannot resolve",
				Parameters: jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"title": {
							Type:        jsonschema.String,
							Description: "Short title summarizing the problem",
						},
						"description": {
							Type:        jsonschema.String,
							Description: "Detailed description of the problem",
						},
						"priority": {
							Type:        jsonschema.String,
							Description: "Ticket priority",
							Enum:        []string{"low", "medium", "high"},
						},
					},
					Required: []string{"title", "description"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        ToolSearchDocs,
				Description: "Searches the SmartHome Hub X1000 technical documentation",
				Parameters: jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"query": {
							Type:        jsonschema.String,
							Description: "Search query or terms",
						},
						"limit": {
							Type:        jsonschema.Number,
							Description: "Maximum number of results to return",
						},
					},
					Required: []string{"query"},
				},
			},
		},
	}
}
