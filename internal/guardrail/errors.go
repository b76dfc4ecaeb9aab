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
	"errors"
	"fmt"
)

// Error is the structured failure returned by a gateway call. It carries
// the full violation list so a caller can fix every issue in one round
// trip, plus the request id for audit-log correlation.
type Error struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Violations []Violation `json:"violations,omitempty"`
	RequestID  string      `json:"request_id,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%d violations)", e.Code, e.Message, len(e.Violations))
}

// NewError creates a single-violation error with the given code.
func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Violations: []Violation{
			{Code: code, Message: message},
		},
	}
}

// AsError extracts a guardrail error from an error chain.
func AsError(err error) (*Error, bool) {
	var ge *Error
	ok := errors.As(err, &ge)
	return ge, ok
}

// IsCode reports whether err is a guardrail error with the given code.
func IsCode(err error, code string) bool {
	ge, ok := AsError(err)
	return ok && ge.Code == code
}
