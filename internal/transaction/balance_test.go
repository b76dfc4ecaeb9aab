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

package transaction

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func glLine(amount string, side Side, currency string) *Line {
	return &Line{
		LineType:   LineTypeGL,
		LineAmount: decimal.RequireFromString(amount),
		Side:       side,
		Currency:   currency,
	}
}

// TestPurpose: Validates the double-entry invariant on a realistic sale:
// DR 472.50 Cash / CR 450.00 Revenue / CR 22.50 Tax in AED balances.
// Scope: Unit Test
func TestBalance_SaleWithTaxBalances(t *testing.T) {
	lines := []*Line{
		glLine("472.50", SideDebit, "AED"),
		glLine("450.00", SideCredit, "AED"),
		glLine("22.50", SideCredit, "AED"),
	}
	assert.NoError(t, ValidateBalance(lines))
}

// TestPurpose: Validates that an unbalanced posting is rejected and the
// reported difference equals the actual discrepancy (DR 1000 vs CR 900 =>
// 100.00) so callers can diagnose without a second query.
// Scope: Unit Test
func TestBalance_UnbalancedReportsDifference(t *testing.T) {
	lines := []*Line{
		glLine("1000.00", SideDebit, "AED"),
		glLine("900.00", SideCredit, "AED"),
	}

	err := ValidateBalance(lines)
	require.Error(t, err)

	var ue *UnbalancedError
	require.True(t, errors.As(err, &ue))
	require.Len(t, ue.Totals, 1)
	assert.Equal(t, "AED", ue.Totals[0].Currency)
	assert.True(t, ue.Totals[0].Debits.Equal(decimal.RequireFromString("1000.00")))
	assert.True(t, ue.Totals[0].Credits.Equal(decimal.RequireFromString("900.00")))
	assert.True(t, ue.Totals[0].Difference.Equal(decimal.RequireFromString("100.00")))
}

// TestPurpose: Validates that currencies are balanced independently and
// that cross-currency netting is never permitted.
// Scope: Unit Test
func TestBalance_MultiCurrencyNoNetting(t *testing.T) {
	balanced := []*Line{
		glLine("100.00", SideDebit, "AED"),
		glLine("100.00", SideCredit, "AED"),
		glLine("50.00", SideDebit, "USD"),
		glLine("50.00", SideCredit, "USD"),
	}
	assert.NoError(t, ValidateBalance(balanced))

	// AED over-debited, USD over-credited by the same amount. Netting
	// across currencies would hide both defects.
	netted := []*Line{
		glLine("100.00", SideDebit, "AED"),
		glLine("50.00", SideCredit, "AED"),
		glLine("50.00", SideDebit, "USD"),
		glLine("100.00", SideCredit, "USD"),
	}
	err := ValidateBalance(netted)
	require.Error(t, err)

	var ue *UnbalancedError
	require.True(t, errors.As(err, &ue))
	assert.Len(t, ue.Totals, 2, "both currency buckets must be reported")
	assert.Equal(t, "AED", ue.Totals[0].Currency)
	assert.Equal(t, "USD", ue.Totals[1].Currency)
}

// TestPurpose: Validates the rounding tolerance boundary: 0.01 passes,
// anything beyond fails.
// Scope: Unit Test
func TestBalance_ToleranceBoundary(t *testing.T) {
	within := []*Line{
		glLine("100.01", SideDebit, "EUR"),
		glLine("100.00", SideCredit, "EUR"),
	}
	assert.NoError(t, ValidateBalance(within))

	beyond := []*Line{
		glLine("100.02", SideDebit, "EUR"),
		glLine("100.00", SideCredit, "EUR"),
	}
	assert.Error(t, ValidateBalance(beyond))
}

// TestPurpose: Validates that non-GL lines are excluded from the posting
// balance and that a transaction with zero GL lines is trivially balanced.
// Scope: Unit Test
func TestBalance_NonGLLinesIgnored(t *testing.T) {
	lines := []*Line{
		{LineType: LineTypeItem, LineAmount: decimal.RequireFromString("999.99"), Currency: "AED"},
		{LineType: LineTypeTax, LineAmount: decimal.RequireFromString("42.00"), Currency: "AED"},
	}
	assert.NoError(t, ValidateBalance(lines))
	assert.NoError(t, ValidateBalance(nil))
}

func TestTransaction_ValidTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusDraft, StatusPosted, true},
		{StatusDraft, StatusVoided, true},
		{StatusPosted, StatusVoided, true},
		{StatusPosted, StatusReversed, true},
		{StatusDraft, StatusReversed, false},
		{StatusVoided, StatusPosted, false},
		{StatusReversed, StatusPosted, false},
		{StatusPosted, StatusDraft, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, ValidTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestTransaction_InvertedSide(t *testing.T) {
	assert.Equal(t, SideCredit, InvertedSide(SideDebit))
	assert.Equal(t, SideDebit, InvertedSide(SideCredit))
}
