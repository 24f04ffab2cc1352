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

package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestManagerAllHealthy(t *testing.T) {
	manager := NewManager("support-assistant", "1.0.0", zaptest.NewLogger(t))
	manager.AddCheckerFunc("a", func(_ context.Context) CheckResult {
		return CheckResult{Status: StatusHealthy}
	})
	manager.AddCheckerFunc("b", func(_ context.Context) CheckResult {
		return CheckResult{Status: StatusHealthy}
	})

	report := manager.Check(context.Background())

	assert.Equal(t, StatusHealthy, report.Status)
	assert.Equal(t, "support-assistant", report.Service)
	assert.Equal(t, "1.0.0", report.Version)
	assert.Len(t, report.Dependencies, 2)
}

func TestManagerDegradedDependency(t *testing.T) {
	manager := NewManager("svc", "1.0.0", zaptest.NewLogger(t))
	manager.AddCheckerFunc("ok", func(_ context.Context) CheckResult {
		return CheckResult{Status: StatusHealthy}
	})
	manager.AddCheckerFunc("slow", func(_ context.Context) CheckResult {
		return CheckResult{Status: StatusDegraded, Error: "timeout"}
	})

	report := manager.Check(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
}

func TestManagerUnhealthyWinsOverDegraded(t *testing.T) {
	manager := NewManager("svc", "1.0.0", zaptest.NewLogger(t))
	manager.AddCheckerFunc("slow", func(_ context.Context) CheckResult {
		return CheckResult{Status: StatusDegraded}
	})
	manager.AddCheckerFunc("dead", func(_ context.Context) CheckResult {
		return CheckResult{Status: StatusUnhealthy, Error: "down"}
	})

	report := manager.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, report.Status)
}

func TestPingChecker(t *testing.T) {
	ok := PingChecker("db", func(_ context.Context) error { return nil })
	result := ok.Check(context.Background())
	assert.Equal(t, StatusHealthy, result.Status)

	bad := PingChecker("db", func(_ context.Context) error { return errors.New("refused") })
	result = bad.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, result.Status)
	require.Contains(t, result.Error, "db ping failed")
}

func TestDegradedOnErrorChecker(t *testing.T) {
	checker := DegradedOnErrorChecker("chroma", func(_ context.Context) error {
		return errors.New("unreachable")
	})

	result := checker.Check(context.Background())
	assert.Equal(t, StatusDegraded, result.Status)
	assert.Contains(t, result.Error, "chroma check failed")
}
