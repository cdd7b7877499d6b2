// Package ingestion provides pipeline orchestration for importing survey questions.
//
// The Pipeline type manages the ingestion workflow for questions, including:
//   - Adding questions to storage
//   - Generating embeddings asynchronously
//   - Assigning legacy mid/sub categories to questions imported without them
//
// Processing is performed concurrently using worker pools to maximize throughput.
// Errors during async processing are logged and collected by Wait; they do not
// fail the ingestion call itself.
package ingestion
