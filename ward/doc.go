// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package ward implements connectivity-constrained agglomerative clustering
// with Ward's minimum-variance criterion.
//
// Points start as singleton clusters. At every step the engine merges the
// pair of clusters that are adjacent in an AdjacencyGraph and whose merge
// increases the total within-cluster variance the least:
//
//	cost(a, b) = (n_a·n_b / (n_a+n_b)) · ‖c_a − c_b‖²
//
// Clusters that are not connected through the graph never merge. When the
// graph has more connected components than the requested number of
// clusters, Run stops early and returns a *DisconnectedGraphError carrying
// the achieved partition.
//
// A point is identified by its position in the slice given to NewEngine.
// Cluster ids are point ids: when two clusters merge, the lower id survives,
// so a cluster's id is always its smallest member.
//
// Typical use:
//
//	graph, err := ward.BuildKNNGraph(coords, 5, 0)
//	engine, err := ward.NewEngine(points, graph, ward.Options{TargetClusters: 8})
//	res, err := engine.Run(ctx)
//	labels := res.Partition.Labels
package ward
