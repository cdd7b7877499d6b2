package badger

import "strings"

// Key prefixes for different data types
const (
	embeddingPrefix      = "embvec:"
	embeddingModelPrefix = "embmod:"
)

// makeEmbeddingKey generates a key for a question's vector.
// Keys sort in question ID order because they share one prefix.
func makeEmbeddingKey(questionID string) []byte {
	return []byte(embeddingPrefix + questionID)
}

// makeEmbeddingModelKey generates a key for the model that produced a vector.
func makeEmbeddingModelKey(questionID string) []byte {
	return []byte(embeddingModelPrefix + questionID)
}

// questionIDFromKey strips the vector prefix from a key.
func questionIDFromKey(key []byte) string {
	return strings.TrimPrefix(string(key), embeddingPrefix)
}
