// Package vectors provides a read-mostly in-memory cache of question vectors.
//
// Store.Load reads every (question_id, vector) pair once, normalizes each
// vector to unit length and keeps them in a fixed-order array with a parallel
// ID list. Reads are served from the cache until Invalidate is called, which
// the re-embedding path does after vectors change.
//
// Blobs that do not decode to a whole vector of the configured dimension are
// skipped, logged at WARN and reported by Skipped. Zero vectors are kept but
// flagged: they have no defined cosine similarity, so searches and clustering
// exclude them.
//
// Load is safe to call concurrently with other reads. Snapshots handed out
// before an Invalidate stay valid and unchanged.
package vectors
