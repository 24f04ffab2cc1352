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

package ticket

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatID(t *testing.T) {
	assert.Equal(t, "TK-001", FormatID(1))
	assert.Equal(t, "TK-042", FormatID(42))
	assert.Equal(t, "TK-1000", FormatID(1000))
}

func TestNormalizePriority(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"low", PriorityLow},
		{"medium", PriorityMedium},
		{"high", PriorityHigh},
		{"HIGH", PriorityHigh},
		{" Low ", PriorityLow},
		{"", PriorityMedium},
		{"urgent", PriorityMedium},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePriority(tt.in), "input %q", tt.in)
	}
}

func TestEstimatedResponse(t *testing.T) {
	assert.Equal(t, "4 hours", EstimatedResponse(PriorityHigh))
	assert.Equal(t, "24 hours", EstimatedResponse(PriorityMedium))
	assert.Equal(t, "48 hours", EstimatedResponse(PriorityLow))
	assert.Equal(t, "24 hours", EstimatedResponse("anything else"))
}
