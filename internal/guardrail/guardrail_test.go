// Copyright 2026 The HeraCore Authors
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

package guardrail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates the two-mode governance model: warn mode collects
// data-quality violations without blocking, enforce mode blocks on any.
// Scope: Unit Test
func TestCollector_WarnModeDoesNotBlockDataQuality(t *testing.T) {
	c := NewCollector(ModeWarn)
	c.Add(Violation{Code: CodeUnbalancedPosting, Message: "debits != credits"})
	c.Add(Violation{Code: CodeShapeValidation, Field: "entity_name", Message: "required"})

	assert.False(t, c.Blocked())
	assert.Len(t, c.Violations(), 2)
	assert.NoError(t, c.Err("req-1"))
}

// TestPurpose: Validates that the tenant boundary is never warn-only; a
// cross-tenant violation blocks the write in every mode.
// Scope: Unit Test
// Security: Multi-tenant boundary enforcement
func TestCollector_CrossTenantAlwaysBlocks(t *testing.T) {
	for _, mode := range []Mode{ModeWarn, ModeEnforce} {
		c := NewCollector(mode)
		c.Add(Violation{Code: CodeCrossTenantViolation, Message: "entity belongs to another organization"})

		assert.True(t, c.Blocked(), "mode %s must block cross-tenant", mode)

		err := c.Err("req-2")
		require.Error(t, err)
		ge, ok := AsError(err)
		require.True(t, ok)
		assert.Equal(t, CodeCrossTenantViolation, ge.Code)
		assert.Equal(t, "req-2", ge.RequestID)
	}
}

// TestPurpose: Validates that a malformed smart code blocks the write even
// in warn mode, since it breaks the rest of the governance model.
// Scope: Unit Test
func TestCollector_InvalidSmartCodeAlwaysBlocks(t *testing.T) {
	c := NewCollector(ModeWarn)
	c.Add(Violation{Code: CodeInvalidSmartCode, Message: "missing version segment"})

	assert.True(t, c.Blocked())
	assert.True(t, IsCode(c.Err("req-3"), CodeInvalidSmartCode))
}

func TestCollector_EnforceBlocksAndReturnsAllViolations(t *testing.T) {
	c := NewCollector(ModeEnforce)
	c.Add(Violation{Code: CodeShapeValidation, Field: "entity_type", Message: "required"})
	c.Add(Violation{Code: CodeShapeValidation, Field: "entity_name", Message: "required"})
	c.Add(Violation{Code: CodeUnbalancedPosting, Message: "AED off by 100.00"})

	err := c.Err("req-4")
	require.Error(t, err)
	ge, _ := AsError(err)
	assert.Len(t, ge.Violations, 3, "all violations returned in one round trip")
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeWarn, ParseMode("warn"))
	assert.Equal(t, ModeEnforce, ParseMode("enforce"))
	assert.Equal(t, ModeEnforce, ParseMode(""), "unknown input defaults to enforce")
}

// TestPurpose: Validates that the envelope code prefers the security code
// over data-quality codes when both are present.
// Scope: Unit Test
func TestCollector_ErrCodePrecedence(t *testing.T) {
	c := NewCollector(ModeEnforce)
	c.Add(Violation{Code: CodeShapeValidation, Message: "bad shape"})
	c.Add(Violation{Code: CodeCrossTenantViolation, Message: "boundary breach"})

	ge, _ := AsError(c.Err("req-5"))
	assert.Equal(t, CodeCrossTenantViolation, ge.Code)
}

// TestPurpose: Validates that a missing referenced row blocks the write in
// every mode: nothing downstream can succeed against a row that is not
// there, so NOT_FOUND is never advisory.
// Scope: Unit Test
func TestCollector_NotFoundAlwaysBlocks(t *testing.T) {
	for _, mode := range []Mode{ModeWarn, ModeEnforce} {
		c := NewCollector(mode)
		c.Add(Violation{Code: CodeNotFound, Message: "referenced record not found"})

		assert.True(t, c.Blocked(), "mode %s must block on a missing ref", mode)
		assert.True(t, IsCode(c.Err("req-5"), CodeNotFound))
	}
}
