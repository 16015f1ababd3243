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

import "fmt"

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - Key must not be empty
//
// NOT validated:
//   - Text (empty text is legal and produces zero chunks)
//   - Metadata (optional; a missing date field only disables
//     watermark advancement)
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}
	if doc.Key == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyKey)
	}
	return nil
}

// ValidateCollection checks that both collection components are present.
func ValidateCollection(c Collection) error {
	if c.Community == "" {
		return fmt.Errorf("%w: community is empty", ErrInvalidCollection)
	}
	if c.Platform == "" {
		return fmt.Errorf("%w: platform is empty", ErrInvalidCollection)
	}
	return nil
}

// ValidateVector checks that a vector matches the configured embedding
// dimension. A mismatch is a fatal configuration error.
func ValidateVector(vector []float32, dim int) error {
	if len(vector) != dim {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, dim, len(vector))
	}
	return nil
}
