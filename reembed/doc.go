// Package reembed provides maintenance jobs over stored questions: filling in
// or replacing their embeddings with new or updated embedding models, and
// assigning legacy categories to questions that have none.
//
// Jobs process questions in batches with progress tracking and retry logic
// with exponential backoff. Re-embedding reports which categories changed so
// their clusters can be recomputed.
package reembed
