// Copyright 2023 The acquirecloud Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
)

// general class of errors every package in the module may return. Callers should
// compare against these with Is(), never by string value.
var (
	ErrExist         = errors.New("already exists")
	ErrNotExist      = errors.New("does not exist")
	ErrInvalid       = errors.New("invalid argument")
	ErrNotAuthorized = errors.New("not authorized")
	ErrInternal      = errors.New("internal error")
	ErrDataLoss      = errors.New("data loss")
	ErrExhausted     = errors.New("resource exhausted")
	ErrUnimplemented = errors.New("not implemented")
	ErrConflict      = errors.New("conflict")
	ErrCanceled      = errors.New("canceled")
	ErrCommunication = errors.New("communication error")
	ErrClosed        = errors.New("closed")
)

// Is tells whether err matches target, honoring both normal Go error wrapping
// and gRPC status codes (a status error "is" the general error its code maps to).
func Is(err, target error) bool {
	if errors.Is(err, target) {
		return true
	}
	return FromGRPCError(err) == target
}

const jsonErrorMarker = "\x00json-embed\x00"

// EmbedObject marshals obj as JSON and appends it to err's message, delimited by
// a marker that ExtractObject looks for. Used to carry structured context (e.g. the
// last good offset of a failed write) through a plain error return without a bespoke
// error type per call site. It panics if err already carries an embedded object.
func EmbedObject(obj any, err error) error {
	if err == nil {
		panic("EmbedObject: err must not be nil")
	}
	if obj == nil {
		panic("EmbedObject: obj must not be nil")
	}
	if ExtractObject(err, new(json.RawMessage)) {
		panic("EmbedObject: err already carries an embedded object")
	}
	buf, mErr := json.Marshal(obj)
	if mErr != nil {
		panic(fmt.Sprintf("EmbedObject: could not marshal object: %v", mErr))
	}
	return fmt.Errorf("%w: %s%s%s", err, jsonErrorMarker, buf, jsonErrorMarker)
}

// ExtractObject looks for an object embedded by EmbedObject in err's message and,
// if found, unmarshals it into v. Returns false if err carries no embedded object.
func ExtractObject(err error, v any) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	start := indexOf(msg, jsonErrorMarker)
	if start < 0 {
		return false
	}
	start += len(jsonErrorMarker)
	end := indexOf(msg[start:], jsonErrorMarker)
	if end < 0 {
		return false
	}
	return json.Unmarshal([]byte(msg[start:start+end]), v) == nil
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
