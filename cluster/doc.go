// Package cluster groups the questions of one category into near-duplicate
// clusters by average-linkage agglomeration over cosine distance.
//
// Starting from singletons, the two clusters with the smallest average
// pairwise distance are merged repeatedly; merging stops once the smallest
// remaining distance exceeds the threshold (0.15 by default). No cluster
// count is targeted.
//
// The dendrogram is built with the nearest-neighbour chain algorithm, which
// yields the same merges as the greedy procedure for average linkage in
// O(n^2) time over a condensed distance matrix. Because average-linkage merge
// heights never decrease, cutting the finished dendrogram at the threshold is
// equivalent to stopping the greedy loop there.
//
// Cluster IDs are local to a category and numbered from 0 in ascending order
// of each cluster's smallest question ID, so reruns over unchanged input
// produce identical IDs.
package cluster
