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

package smartcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator("")
	require.NoError(t, err)
	return v
}

// TestPurpose: Validates that well-formed smart codes across a range of
// segment counts and version numbers are accepted and parsed correctly.
// Scope: Unit Test
// Expected: Validate succeeds and decomposes namespace, segments, version.
func TestSmartCode_ValidCodes(t *testing.T) {
	v := newTestValidator(t)

	tests := []struct {
		code     string
		segments int
		version  int
	}{
		{"HERA.SALON.TXN.SALE.CREATE.v1", 4, 1},
		{"HERA.FURN.PRODUCT.ITEM.v2", 3, 2},
		{"HERA.REST.FIN.GL.ACCRUAL.POST.v10", 5, 10},
		{"HERA.CIVIC.PROG.GRANT.ENTITY.PERSON.ACTIVE.FLAG.REV_1.v1", 8, 1},
		{"HERA.WASTE.ROUTE.PICKUP.v3", 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			parsed, err := v.Validate(tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.code, parsed.Raw)
			assert.Len(t, parsed.Segments, tt.segments)
			assert.Equal(t, tt.version, parsed.Version)
		})
	}
}

// TestPurpose: Validates that malformed smart codes are rejected with
// ErrInvalidSmartCode: wrong case, missing version, too few/many segments,
// wrong namespace, empty string.
// Scope: Unit Test
// Expected: Validate fails for every malformed input.
func TestSmartCode_InvalidCodes(t *testing.T) {
	v := newTestValidator(t)

	invalid := []string{
		"",
		"hera.salon.txn.sale",              // lowercase, no version
		"HERA.SALON.TXN.SALE",              // missing version suffix
		"HERA.SALON.TXN.SALE.V1",           // uppercase V is not a version
		"HERA.SALON.TXN.SALE.v0",           // version must be >= 1
		"HERA.SALON.v1",                    // too few segments
		"HERA.A.B.C.D.E.F.G.H.I.v1",        // too many segments
		"XERA.SALON.TXN.SALE.v1",           // wrong namespace
		"HERA.SALON.TXN.SALE.v1 ",          // trailing whitespace
		"HERA.SALON.TXN.sale.CREATE.v1",    // lowercase segment
		"HERA..TXN.SALE.CREATE.v1",         // empty segment
		"HERA.SALON.TXN.SALE.CREATE.v1.v2", // double version
	}

	for _, code := range invalid {
		t.Run("invalid_"+code, func(t *testing.T) {
			_, err := v.Validate(code)
			assert.ErrorIs(t, err, ErrInvalidSmartCode)
		})
	}
}

func TestSmartCode_Industry(t *testing.T) {
	v := newTestValidator(t)

	parsed, err := v.Validate("HERA.SALON.TXN.SALE.CREATE.v1")
	require.NoError(t, err)
	assert.Equal(t, "SALON", parsed.Industry())
}

// TestPurpose: Validates the financial classification used to force posting
// balance checks: FIN/GL/POSTING segments mark a code financial.
// Scope: Unit Test
func TestSmartCode_IsFinancial(t *testing.T) {
	v := newTestValidator(t)

	financial, err := v.Validate("HERA.SALON.FIN.GL.SALE.v1")
	require.NoError(t, err)
	assert.True(t, financial.IsFinancial())

	plain, err := v.Validate("HERA.SALON.CRM.CUSTOMER.CREATE.v1")
	require.NoError(t, err)
	assert.False(t, plain.IsFinancial())
}

func TestSmartCode_CustomGrammar(t *testing.T) {
	v, err := NewValidator(`^ACME(\.[A-Z]+){2,4}\.v[1-9][0-9]*$`)
	require.NoError(t, err)

	_, err = v.Validate("ACME.CRM.LEAD.v1")
	assert.NoError(t, err)

	_, err = v.Validate("HERA.SALON.TXN.SALE.v1")
	assert.ErrorIs(t, err, ErrInvalidSmartCode)
}

func TestSmartCode_BadGrammarPattern(t *testing.T) {
	_, err := NewValidator(`([`)
	assert.Error(t, err)
}
