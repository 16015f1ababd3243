// Copyright 2025 TogetherCrew
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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrEmptyKey indicates the document Key field is empty.
	ErrEmptyKey = errors.New("document key cannot be empty")

	// ErrInvalidCollection indicates a Collection is missing its
	// community or platform component.
	ErrInvalidCollection = errors.New("invalid collection")

	// ErrContentTooLarge indicates a chunk exceeded the fingerprint
	// input limit.
	ErrContentTooLarge = errors.New("content too large to fingerprint")

	// ErrDimensionMismatch indicates a vector's dimension does not equal
	// the collection's configured embedding dimension. This is a fatal
	// configuration error, never silently truncated.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrUnparseableTimestamp indicates a metadata value could not be
	// interpreted as a timestamp.
	ErrUnparseableTimestamp = errors.New("unparseable timestamp")
)
