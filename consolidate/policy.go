package consolidate

import (
	"fmt"
	"strings"

	"github.com/poiesic/masterdb/core"
)

// Policy selects the representative of a cluster.
type Policy string

const (
	// PolicyFirstByID elects the member with the smallest question ID.
	PolicyFirstByID Policy = "first"
	// PolicyMedoid elects the member nearest, on average, to the other members.
	PolicyMedoid Policy = "medoid"
)

// ParsePolicy converts a configuration value into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyFirstByID, PolicyMedoid:
		return p, nil
	case "":
		return PolicyFirstByID, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
}

// VectorLookup resolves a question ID to its unit vector.
type VectorLookup interface {
	Lookup(questionID string) ([]float32, bool)
}

// elect picks the representative of members, which must be sorted by ID.
func elect(policy Policy, members []string, vectors VectorLookup) string {
	if policy != PolicyMedoid || vectors == nil || len(members) < 2 {
		return members[0]
	}

	type candidate struct {
		id  string
		vec []float32
	}
	var cands []candidate
	for _, id := range members {
		if v, ok := vectors.Lookup(id); ok {
			cands = append(cands, candidate{id: id, vec: v})
		}
	}
	if len(cands) == 0 {
		return members[0]
	}

	best, bestSum := cands[0].id, -1.0
	for i, c := range cands {
		var sum float64
		for j, o := range cands {
			if i != j {
				sum += core.CosineDistance(c.vec, o.vec)
			}
		}
		if bestSum < 0 || sum < bestSum {
			best, bestSum = c.id, sum
		}
	}
	return best
}

// coherence computes the advisory quality signals of a cluster: the cosine
// distance of the representative to the centroid and the mean cosine
// similarity of members to the centroid. Either is nil when undefined.
func coherence(representative string, members []string, vectors VectorLookup) (centroidDistance, score *float64) {
	if vectors == nil {
		return nil, nil
	}
	var vecs [][]float32
	for _, id := range members {
		if v, ok := vectors.Lookup(id); ok {
			vecs = append(vecs, v)
		}
	}
	if len(vecs) == 0 {
		return nil, nil
	}

	centroid := core.Centroid(vecs)
	var total float64
	for _, v := range vecs {
		s, ok := core.CosineSimilarity(v, centroid)
		if !ok {
			return nil, nil
		}
		total += s
	}
	mean := total / float64(len(vecs))
	score = &mean

	if rep, ok := vectors.Lookup(representative); ok {
		if s, ok := core.CosineSimilarity(rep, centroid); ok {
			d := 1 - s
			centroidDistance = &d
		}
	}
	return centroidDistance, score
}
