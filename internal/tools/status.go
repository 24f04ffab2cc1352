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

package tools

import (
	"sort"
	"time"
)

// ServiceStatus is the health of one SmartHome Hub backend service
type ServiceStatus string

const (
	// StatusOperational means the service is working normally
	StatusOperational ServiceStatus = "operational"
	// StatusDegraded means the service is up but slow or partially failing
	StatusDegraded ServiceStatus = "degraded"
	// StatusDown means the service is unavailable
	StatusDown ServiceStatus = "down"
)

// Known SmartHome Hub backend services
const (
	ServiceCloud          = "cloud"
	ServiceAuthentication = "authentication"
	ServiceAPI            = "api"
	ServiceConnectivity   = "connectivity"
	// ServiceAll requests an aggregate of every service
	ServiceAll = "all"
)

// StatusRecord is one service's status snapshot
type StatusRecord struct {
	Status      ServiceStatus `json:"status"`
	LastUpdated time.Time     `json:"last_updated"`
}

// StatusProvider supplies the current status of the hub's backend services.
// The static implementation below stands in for a live status feed.
type StatusProvider interface {
	Statuses() map[string]StatusRecord
}

// StaticStatusProvider serves a fixed status table
type StaticStatusProvider struct {
	statuses map[string]ServiceStatus
}

// NewStaticStatusProvider creates a provider with the given status table
func NewStaticStatusProvider(statuses map[string]ServiceStatus) *StaticStatusProvider {
	return &StaticStatusProvider{statuses: statuses}
}

// NewDefaultStatusProvider returns the stock status table: api degraded,
// everything else operational.
func NewDefaultStatusProvider() *StaticStatusProvider {
	return NewStaticStatusProvider(map[string]ServiceStatus{
		ServiceCloud:          StatusOperational,
		ServiceAuthentication: StatusOperational,
		ServiceAPI:            StatusDegraded,
		ServiceConnectivity:   StatusOperational,
	})
}

// Statuses returns a snapshot of every service's status
func (p *StaticStatusProvider) Statuses() map[string]StatusRecord {
	now := time.Now().UTC()
	records := make(map[string]StatusRecord, len(p.statuses))
	for name, status := range p.statuses {
		records[name] = StatusRecord{Status: status, LastUpdated: now}
	}
	return records
}

// AggregateStatus computes the overall status as the worst individual
// status: down > degraded > operational.
func AggregateStatus(records map[string]StatusRecord) ServiceStatus {
	overall := StatusOperational
	for _, rec := range records {
		switch rec.Status {
		case StatusDown:
			return StatusDown
		case StatusDegraded:
			overall = StatusDegraded
		}
	}
	return overall
}

// knownServices returns the sorted service names from a status table
func knownServices(records map[string]StatusRecord) []string {
	names := make([]string, 0, len(records))
	for name := range records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
