package taxonomy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/masterdb/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSeed(t *testing.T) {
	seed, err := DefaultSeed()
	require.NoError(t, err)

	assert.Len(t, seed.Themes, 4)
	for _, c := range core.Categories {
		_, ok := seed.ThemeFor(c)
		assert.True(t, ok, "category %s has no theme", c)
	}

	concepts, err := seed.conceptIndex()
	require.NoError(t, err)
	assert.Equal(t, "조직프로세스", concepts["조직/프로세스"])
	assert.Equal(t, "구성원몰입", concepts["몰입도"])
	assert.Equal(t, "리더십", concepts["리더십"])

	aspects, err := seed.aspectIndex()
	require.NoError(t, err)
	assert.Equal(t, "소통경청", aspects["소통/경청"])
	assert.Equal(t, "보상제도", aspects["보상급여"])
}

func TestParseSeed(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		ok   bool
	}{
		{
			name: "minimal",
			yaml: `
themes:
  - {term: T, category: OD, concepts: [C]}
concepts:
  - {term: C, aliases: [c-alias], aspects: [a-alias]}
aspects:
  - {term: A, aliases: [a-alias]}
`,
			ok: true,
		},
		{
			name: "unknown category",
			yaml: `
themes:
  - {term: T, category: XX}
`,
		},
		{
			name: "missing term",
			yaml: `
themes:
  - {category: OD}
`,
		},
		{
			name: "duplicate term across levels",
			yaml: `
themes:
  - {term: T, category: OD}
concepts:
  - {term: T}
`,
		},
		{
			name: "two themes for one category",
			yaml: `
themes:
  - {term: T1, category: OD}
  - {term: T2, category: OD}
`,
		},
		{
			name: "unresolved concept reference",
			yaml: `
themes:
  - {term: T, category: OD, concepts: [nope]}
`,
		},
		{
			name: "unresolved aspect reference",
			yaml: `
themes:
  - {term: T, category: OD}
concepts:
  - {term: C, aspects: [nope]}
`,
		},
		{
			name: "alias shared by two aspects",
			yaml: `
themes:
  - {term: T, category: OD}
aspects:
  - {term: A1, aliases: [x]}
  - {term: A2, aliases: [x]}
`,
		},
		{
			name: "malformed yaml",
			yaml: "themes: [",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seed, err := ParseSeed([]byte(tt.yaml))
			if tt.ok {
				require.NoError(t, err)
				assert.NotNil(t, seed)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidSeed)
		})
	}
}

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("themes:\n  - {term: T, category: LD}\n"), 0o644))

	seed, err := LoadSeed(path)
	require.NoError(t, err)
	theme, ok := seed.ThemeFor(core.CategoryLeadership)
	assert.True(t, ok)
	assert.Equal(t, "T", theme)

	_, err = LoadSeed(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
