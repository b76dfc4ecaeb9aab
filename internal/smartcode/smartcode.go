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

// Package smartcode parses and validates the semantic tag attached to every
// record. A smart code is a dot-delimited, versioned classifier of the form
//
//	HERA.<SEGMENT>{3,8}.vN
//
// where each segment is uppercase alphanumeric/underscore and N >= 1.
// Validation is a pure shape check; no business meaning is interpreted here.
package smartcode

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultPattern is the grammar every smart code must match unless a
// deployment overrides it via configuration.
const DefaultPattern = `^HERA(\.[A-Z0-9_]+){3,8}\.v[1-9][0-9]*$`

// ErrInvalidSmartCode is returned for any code failing the grammar.
// It is always fatal to the write, independent of guardrail mode.
var ErrInvalidSmartCode = errors.New("invalid smart code")

// Parsed is the decomposed form of a valid smart code.
type Parsed struct {
	Raw      string
	Segments []string // segments between the namespace and the version
	Version  int
}

// Industry returns the first segment (e.g. "SALON" in HERA.SALON.TXN.SALE.v1).
func (p Parsed) Industry() string {
	if len(p.Segments) == 0 {
		return ""
	}
	return p.Segments[0]
}

// IsFinancial reports whether the code marks its record as carrying
// financial postings. Transactions tagged this way are balance-validated
// even when they carry no GL lines yet.
func (p Parsed) IsFinancial() bool {
	for _, s := range p.Segments {
		switch s {
		case "FIN", "GL", "POSTING":
			return true
		}
	}
	return false
}

// Validator validates smart codes against a compiled grammar.
type Validator struct {
	re *regexp.Regexp
}

// NewValidator compiles the given grammar pattern. Pass an empty pattern
// to use DefaultPattern.
func NewValidator(pattern string) (*Validator, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to compile smart code grammar: %w", err)
	}
	return &Validator{re: re}, nil
}

// Validate checks code against the grammar and returns its parsed form.
// The match is case-sensitive and exact; an empty string or a code lacking
// a trailing version segment is invalid.
func (v *Validator) Validate(code string) (Parsed, error) {
	if code == "" {
		return Parsed{}, fmt.Errorf("%w: code is empty", ErrInvalidSmartCode)
	}
	if !v.re.MatchString(code) {
		return Parsed{}, fmt.Errorf("%w: %q does not match grammar", ErrInvalidSmartCode, code)
	}

	parts := strings.Split(code, ".")
	// parts[0] is the namespace, the last part is the version.
	version, err := strconv.Atoi(strings.TrimPrefix(parts[len(parts)-1], "v"))
	if err != nil {
		return Parsed{}, fmt.Errorf("%w: malformed version in %q", ErrInvalidSmartCode, code)
	}

	return Parsed{
		Raw:      code,
		Segments: parts[1 : len(parts)-1],
		Version:  version,
	}, nil
}
