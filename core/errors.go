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

import "errors"

var (
	// ErrInvalidQuestion indicates a Question failed validation.
	ErrInvalidQuestion = errors.New("invalid question")

	// ErrInvalidTerm indicates a TaxonomyTerm failed validation.
	ErrInvalidTerm = errors.New("invalid taxonomy term")

	// ErrInvalidTag indicates a QuestionTag failed validation.
	ErrInvalidTag = errors.New("invalid question tag")

	// ErrEmptyQuestionID indicates the question id is empty.
	ErrEmptyQuestionID = errors.New("question id cannot be empty")

	// ErrEmptyContent indicates the question text is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrUnknownCategory indicates a category outside the fixed enumeration.
	ErrUnknownCategory = errors.New("unknown category")

	// ErrUnknownTermType indicates a term type other than THEME, CONCEPT or ASPECT.
	ErrUnknownTermType = errors.New("unknown term type")

	// ErrUnknownTagType indicates a tag type other than themes, concepts or aspects.
	ErrUnknownTagType = errors.New("unknown tag type")

	// ErrConfidenceRange indicates a confidence outside [0, 1].
	ErrConfidenceRange = errors.New("confidence must be within [0, 1]")

	// ErrEmptyTerm indicates the term text is empty.
	ErrEmptyTerm = errors.New("term cannot be empty")
)
