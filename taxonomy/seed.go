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


package taxonomy

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/poiesic/masterdb/core"
	"gopkg.in/yaml.v3"
)

//go:embed default_seed.yaml
var defaultSeed []byte

var validate = validator.New()

// Seed is the declarative form of the vocabulary.
// Child references name a term of the next level by its text or one of its aliases.
type Seed struct {
	Themes   []ThemeSeed   `yaml:"themes" validate:"required,dive"`
	Concepts []ConceptSeed `yaml:"concepts" validate:"dive"`
	Aspects  []AspectSeed  `yaml:"aspects" validate:"dive"`
}

// ThemeSeed is a top-level term bound to one question category.
type ThemeSeed struct {
	Term        string        `yaml:"term" validate:"required"`
	Category    core.Category `yaml:"category" validate:"required,oneof=OD LD MA DD"`
	Description string        `yaml:"description"`
	Concepts    []string      `yaml:"concepts" validate:"dive,required"`
}

// ConceptSeed is a mid-level term. Aliases are legacy mid category names.
type ConceptSeed struct {
	Term        string   `yaml:"term" validate:"required"`
	Description string   `yaml:"description"`
	Aliases     []string `yaml:"aliases" validate:"dive,required"`
	Aspects     []string `yaml:"aspects" validate:"dive,required"`
}

// AspectSeed is a leaf term. Aliases are legacy sub category names.
type AspectSeed struct {
	Term        string   `yaml:"term" validate:"required"`
	Description string   `yaml:"description"`
	Aliases     []string `yaml:"aliases" validate:"dive,required"`
}

// DefaultSeed returns the built-in vocabulary.
func DefaultSeed() (*Seed, error) {
	return ParseSeed(defaultSeed)
}

// LoadSeed reads and validates a seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes and validates YAML seed data.
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("%w: parsing YAML: %w", ErrInvalidSeed, err)
	}
	if err := seed.Validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

// Validate checks field constraints, term uniqueness and that every child
// reference resolves to a term of the next level.
func (s *Seed) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}

	seen := make(map[string]core.TermType)
	claim := func(term string, t core.TermType) error {
		if prev, ok := seen[term]; ok {
			return fmt.Errorf("%w: term %q declared as %s and %s", ErrInvalidSeed, term, prev, t)
		}
		seen[term] = t
		return nil
	}
	categories := make(map[core.Category]string)
	for _, th := range s.Themes {
		if err := claim(th.Term, core.TermTypeTheme); err != nil {
			return err
		}
		if other, ok := categories[th.Category]; ok {
			return fmt.Errorf("%w: themes %q and %q share category %s", ErrInvalidSeed, other, th.Term, th.Category)
		}
		categories[th.Category] = th.Term
	}
	for _, c := range s.Concepts {
		if err := claim(c.Term, core.TermTypeConcept); err != nil {
			return err
		}
	}
	for _, a := range s.Aspects {
		if err := claim(a.Term, core.TermTypeAspect); err != nil {
			return err
		}
	}

	concepts, err := s.conceptIndex()
	if err != nil {
		return err
	}
	aspects, err := s.aspectIndex()
	if err != nil {
		return err
	}
	for _, th := range s.Themes {
		for _, ref := range th.Concepts {
			if _, ok := concepts[ref]; !ok {
				return fmt.Errorf("%w: theme %q references unknown concept %q", ErrInvalidSeed, th.Term, ref)
			}
		}
	}
	for _, c := range s.Concepts {
		for _, ref := range c.Aspects {
			if _, ok := aspects[ref]; !ok {
				return fmt.Errorf("%w: concept %q references unknown aspect %q", ErrInvalidSeed, c.Term, ref)
			}
		}
	}
	return nil
}

// conceptIndex maps concept terms and aliases to the canonical concept term.
func (s *Seed) conceptIndex() (map[string]string, error) {
	index := make(map[string]string)
	for _, c := range s.Concepts {
		for _, name := range append([]string{c.Term}, c.Aliases...) {
			if err := addName(index, name, c.Term); err != nil {
				return nil, err
			}
		}
	}
	return index, nil
}

// aspectIndex maps aspect terms and aliases to the canonical aspect term.
func (s *Seed) aspectIndex() (map[string]string, error) {
	index := make(map[string]string)
	for _, a := range s.Aspects {
		for _, name := range append([]string{a.Term}, a.Aliases...) {
			if err := addName(index, name, a.Term); err != nil {
				return nil, err
			}
		}
	}
	return index, nil
}

func addName(index map[string]string, name, term string) error {
	name = strings.TrimSpace(name)
	if prev, ok := index[name]; ok && prev != term {
		return fmt.Errorf("%w: name %q refers to both %q and %q", ErrInvalidSeed, name, prev, term)
	}
	index[name] = term
	return nil
}

// ThemeFor returns the theme term bound to a category.
func (s *Seed) ThemeFor(category core.Category) (string, bool) {
	for _, th := range s.Themes {
		if th.Category == category {
			return th.Term, true
		}
	}
	return "", false
}
