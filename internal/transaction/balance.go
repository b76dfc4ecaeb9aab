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
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Tolerance is the maximum absolute debit/credit difference accepted per
// currency, in the transaction's minor currency unit.
var Tolerance = decimal.NewFromFloat(0.01)

// CurrencyTotals holds the computed sums for one currency bucket, returned
// on failure so the caller can diagnose the discrepancy without a second
// query.
type CurrencyTotals struct {
	Currency   string          `json:"currency"`
	Debits     decimal.Decimal `json:"debits"`
	Credits    decimal.Decimal `json:"credits"`
	Difference decimal.Decimal `json:"difference"`
}

// UnbalancedError reports which currency buckets failed and their totals.
type UnbalancedError struct {
	Totals []CurrencyTotals
}

func (e *UnbalancedError) Error() string {
	if len(e.Totals) == 0 {
		return "unbalanced posting"
	}
	t := e.Totals[0]
	return fmt.Sprintf("unbalanced posting: %s debits %s != credits %s (difference %s)",
		t.Currency, t.Debits.StringFixed(2), t.Credits.StringFixed(2), t.Difference.StringFixed(2))
}

// ValidateBalance verifies the double-entry invariant: for each currency
// present among GL-typed lines, sum(debit) must equal sum(credit) within
// Tolerance. Currencies are validated independently; cross-currency
// netting is never permitted. A transaction with no GL lines is trivially
// balanced. Pure function over the given lines.
func ValidateBalance(lines []*Line) error {
	type bucket struct {
		debits  decimal.Decimal
		credits decimal.Decimal
	}
	buckets := make(map[string]*bucket)

	for _, l := range lines {
		if l.LineType != LineTypeGL {
			continue
		}
		b := buckets[l.Currency]
		if b == nil {
			b = &bucket{debits: decimal.Zero, credits: decimal.Zero}
			buckets[l.Currency] = b
		}
		switch l.Side {
		case SideDebit:
			b.debits = b.debits.Add(l.LineAmount)
		case SideCredit:
			b.credits = b.credits.Add(l.LineAmount)
		}
	}

	var failed []CurrencyTotals
	for currency, b := range buckets {
		diff := b.debits.Sub(b.credits)
		if diff.Abs().GreaterThan(Tolerance) {
			failed = append(failed, CurrencyTotals{
				Currency:   currency,
				Debits:     b.debits,
				Credits:    b.credits,
				Difference: diff.Abs(),
			})
		}
	}

	if len(failed) > 0 {
		// Deterministic ordering for error messages and API payloads.
		sort.Slice(failed, func(i, j int) bool { return failed[i].Currency < failed[j].Currency })
		return &UnbalancedError{Totals: failed}
	}
	return nil
}
