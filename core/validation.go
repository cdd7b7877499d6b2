// Copyright 2025 Poiesic Systems
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

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// ValidateQuestion checks that a Question carries every required field.
func ValidateQuestion(q *Question) error {
	if q == nil {
		return fmt.Errorf("%w: question is nil", ErrInvalidQuestion)
	}

	if strings.TrimSpace(q.ID) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidQuestion, ErrEmptyQuestionID)
	}

	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("%w: %s: %w", ErrInvalidQuestion, q.ID, ErrEmptyContent)
	}

	if err := ValidateCategory(q.Category); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidQuestion, q.ID, err)
	}

	return nil
}

// ValidateTerm checks that a TaxonomyTerm has text and a known level.
func ValidateTerm(t *TaxonomyTerm) error {
	if t == nil {
		return fmt.Errorf("%w: term is nil", ErrInvalidTerm)
	}

	if strings.TrimSpace(t.Term) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidTerm, ErrEmptyTerm)
	}

	if err := ValidateTermType(t.Type); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTerm, err)
	}

	return nil
}

// ValidateTag checks the key fields and confidence of a QuestionTag.
func ValidateTag(tag *QuestionTag) error {
	if tag == nil {
		return fmt.Errorf("%w: tag is nil", ErrInvalidTag)
	}

	if strings.TrimSpace(tag.QuestionID) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidTag, ErrEmptyQuestionID)
	}

	if err := ValidateTagType(tag.TagType); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTag, err)
	}

	if err := ValidateConfidence(tag.Confidence); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTag, err)
	}

	return nil
}

// ValidateCategory checks membership in the fixed category enumeration.
func ValidateCategory(c Category) error {
	if !slices.Contains(Categories, c) {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, c)
	}
	return nil
}

// ValidateTermType checks membership in {THEME, CONCEPT, ASPECT}.
func ValidateTermType(t TermType) error {
	switch t {
	case TermTypeTheme, TermTypeConcept, TermTypeAspect:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownTermType, t)
}

// ValidateTagType checks membership in {themes, concepts, aspects}.
func ValidateTagType(t TagType) error {
	if !slices.Contains(TagTypes, t) {
		return fmt.Errorf("%w: %q", ErrUnknownTagType, t)
	}
	return nil
}

// ValidateConfidence rejects NaN and values outside [0, 1].
func ValidateConfidence(c float64) error {
	if math.IsNaN(c) || c < 0 || c > 1 {
		return fmt.Errorf("%w: got %v", ErrConfidenceRange, c)
	}
	return nil
}

// ParseCategory converts user input into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if err := ValidateCategory(c); err != nil {
		return "", err
	}
	return c, nil
}

// ParseTagType converts user input into a TagType.
func ParseTagType(s string) (TagType, error) {
	t := TagType(strings.ToLower(strings.TrimSpace(s)))
	if err := ValidateTagType(t); err != nil {
		return "", err
	}
	return t, nil
}
