package core

import (
	"fmt"
	"time"
)

// Category is the top-level partition of questions (the diagnosis type).
// Clustering and master identifiers are always scoped to one category.
type Category string

const (
	// CategoryOrganizational covers organizational diagnosis surveys.
	CategoryOrganizational Category = "OD"
	// CategoryLeadership covers leadership diagnosis surveys.
	CategoryLeadership Category = "LD"
	// CategoryMultiRater covers multi-rater (360 degree) assessments.
	CategoryMultiRater Category = "MA"
	// CategoryDirector covers director and board evaluations.
	CategoryDirector Category = "DD"
)

// Categories lists every known category in canonical processing order.
var Categories = []Category{
	CategoryOrganizational,
	CategoryLeadership,
	CategoryMultiRater,
	CategoryDirector,
}

// TermType is the level of a taxonomy term in the THEME -> CONCEPT -> ASPECT tree.
type TermType string

const (
	TermTypeTheme   TermType = "THEME"
	TermTypeConcept TermType = "CONCEPT"
	TermTypeAspect  TermType = "ASPECT"
)

// TagType mirrors the level of a term on a question tag row.
// It is stored independently of the term's own type.
type TagType string

const (
	TagTypeThemes   TagType = "themes"
	TagTypeConcepts TagType = "concepts"
	TagTypeAspects  TagType = "aspects"
)

// TagTypes lists the tag types in the order suggestions are reported.
var TagTypes = []TagType{TagTypeThemes, TagTypeConcepts, TagTypeAspects}

// TagTypeFor returns the tag type that mirrors a term type.
func TagTypeFor(t TermType) TagType {
	switch t {
	case TermTypeTheme:
		return TagTypeThemes
	case TermTypeConcept:
		return TagTypeConcepts
	default:
		return TagTypeAspects
	}
}

// RelationHasComponent links a parent term to one of its children.
const RelationHasComponent = "HAS_COMPONENT"

// Provenance records which signal produced a tag suggestion.
type Provenance string

const (
	ProvenanceCluster Provenance = "cluster"
	ProvenanceSimilar Provenance = "similar"
)

// LegacyUnclassified is the legacy category value meaning "not yet placed".
const LegacyUnclassified = "미분류"

// Question is a single survey question as ingested.
// ClusterID and MasterID are nil until a consolidation run assigns them.
type Question struct {
	ID               string
	Text             string
	Category         Category
	LegacyMid        string // advisory legacy mid category
	LegacySub        string // advisory legacy sub category
	ClusterID        *int
	MasterID         *string
	IsRepresentative bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasLegacyCategory reports whether a legacy mid category was assigned.
func (q *Question) HasLegacyCategory() bool {
	return q.LegacyMid != "" && q.LegacyMid != LegacyUnclassified
}

// Embedding is the dense vector stored for one question.
type Embedding struct {
	QuestionID string
	Vector     []float32
	Model      string
}

// MasterQuestion is the canonical representative of one cluster.
type MasterQuestion struct {
	ID                       string
	RepresentativeQuestionID string
	Category                 Category
	ClusterID                int
	ClusterSize              int
	// CentroidDistance is the cosine distance of the representative to the
	// cluster centroid. Advisory only.
	CentroidDistance *float64
	// CoherenceScore is the mean cosine similarity of members to the
	// cluster centroid. Advisory only.
	CoherenceScore *float64
	CreatedAt      time.Time
}

// Assignment places one question into a cluster and master.
type Assignment struct {
	QuestionID       string
	ClusterID        int
	MasterID         string
	IsRepresentative bool
}

// Consolidation is the complete replacement state for one category.
type Consolidation struct {
	RunID       string
	Category    Category
	Policy      string
	Threshold   float64
	Fingerprint string
	Masters     []MasterQuestion
	Assignments []Assignment
	CreatedAt   time.Time
}

// MasterOf returns the question -> master id mapping of the plan.
func (c *Consolidation) MasterOf() map[string]string {
	out := make(map[string]string, len(c.Assignments))
	for _, a := range c.Assignments {
		out[a.QuestionID] = a.MasterID
	}
	return out
}

// TaxonomyTerm is a node of the controlled vocabulary.
type TaxonomyTerm struct {
	ID          int64
	Term        string
	Type        TermType
	Description string
	UsageCount  int
	CreatedAt   time.Time
}

// TermRelation is a directed edge between two taxonomy terms.
type TermRelation struct {
	FromTermID   int64
	ToTermID     int64
	RelationType string
	Strength     float64
}

// QuestionTag attaches a taxonomy term to a question.
// At most one row exists per (QuestionID, TermID, TagType).
type QuestionTag struct {
	QuestionID string
	TermID     int64
	Term       string // populated on reads
	TagType    TagType
	Confidence float64
	IsAuto     bool
	CreatedAt  time.Time
}

// ScoredQuestion is a ranked search hit.
type ScoredQuestion struct {
	QuestionID string
	Score      float64
}

// TagSuggestion is a proposed tag with its confidence and provenance.
type TagSuggestion struct {
	TermID        int64
	Term          string
	Confidence    float64
	Source        Provenance
	AvgSimilarity float64 // similarity provenance only
	VoteCount     int     // similarity provenance only
}

// Statistics summarizes the contents of the store.
type Statistics struct {
	Questions           int
	Embeddings          int
	Masters             int
	Terms               int
	Tags                int
	QuestionsByCategory map[Category]int
	MastersByCategory   map[Category]int
	TermsByType         map[TermType]int
	TagsByType          map[TagType]int
}

// FormatMasterID renders a master identifier scoped to a category,
// e.g. "OD_0001".
func FormatMasterID(category Category, counter int) string {
	return fmt.Sprintf("%s_%04d", category, counter)
}
