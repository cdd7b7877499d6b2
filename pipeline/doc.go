// Package pipeline recomputes the clusters and masters of question categories.
//
// A run loads the vector cache, then for each category gathers the question
// IDs, clusters their vectors and consolidates the result into masters.
// Categories are independent and run concurrently on a worker pool; a failing
// category is reported and never blocks the others.
package pipeline
