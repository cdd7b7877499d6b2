package core

import "math"

// NormalizeVector normalizes a vector to unit length.
// Returns a new vector and false if the input is empty or has zero magnitude,
// in which case the returned vector is all zeros.
func NormalizeVector(v []float32) ([]float32, bool) {
	result := make([]float32, len(v))
	if len(v) == 0 {
		return result, false
	}

	// Accumulate in float64 so long vectors keep their precision
	var magnitude float64
	for _, val := range v {
		magnitude += float64(val) * float64(val)
	}
	magnitude = math.Sqrt(magnitude)

	if magnitude == 0 || math.IsNaN(magnitude) || math.IsInf(magnitude, 0) {
		return result, false
	}

	for i, val := range v {
		result[i] = float32(float64(val) / magnitude)
	}
	return result, true
}

// Dot returns the dot product of two equal-length vectors.
// For unit vectors this is the cosine similarity.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// CosineSimilarity computes the cosine similarity of two raw vectors.
// Returns false when either vector has zero magnitude or the lengths differ.
func CosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}

// CosineDistance is 1 - cosine similarity of two unit vectors, clamped to [0, 2].
func CosineDistance(a, b []float32) float64 {
	d := 1 - Dot(a, b)
	if d < 0 {
		return 0
	}
	if d > 2 {
		return 2
	}
	return d
}

// Centroid returns the mean of the given equal-length vectors.
func Centroid(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	sum := make([]float64, len(vectors[0]))
	for _, v := range vectors {
		for i, x := range v {
			sum[i] += float64(x)
		}
	}
	out := make([]float32, len(sum))
	n := float64(len(vectors))
	for i, s := range sum {
		out[i] = float32(s / n)
	}
	return out
}
