package diarizer

import "math"

// AgglomerativeCluster merges the pair of clusters with the smallest
// average inter-cluster distance (UPGMA linkage) until exactly
// numClusters remain, the same stopping condition
// ivector/agglomerative-clustering.h's AgglomerativeCluster uses when
// called with a fixed target cluster count. maxSpkFraction caps any
// cluster at maxSpkFraction*len(points) members, matching the cap
// ComputeXvectorDiarization passes through from options; a merge that
// would violate the cap is skipped in favor of the next-best pair.
//
// dist is an n x n symmetric distance matrix (smaller = more similar);
// the caller negates PLDA log-likelihood-ratio scores to get this, since
// higher LLR means more similar speakers.
func AgglomerativeCluster(dist [][]float64, numClusters int, maxSpkFraction float64) []int {
	n := len(dist)
	if n == 0 {
		return nil
	}
	if numClusters < 1 {
		numClusters = 1
	}
	if numClusters > n {
		numClusters = n
	}

	clusters := make([][]int, n)
	for i := range clusters {
		clusters[i] = []int{i}
	}
	maxClusterSize := int(math.Ceil(maxSpkFraction * float64(n)))
	if maxClusterSize < 1 {
		maxClusterSize = n
	}

	for len(clusters) > numClusters {
		bestA, bestB := -1, -1
		bestDist := math.Inf(1)
		for a := 0; a < len(clusters); a++ {
			for b := a + 1; b < len(clusters); b++ {
				if len(clusters[a])+len(clusters[b]) > maxClusterSize {
					continue
				}
				d := averageLinkageDistance(dist, clusters[a], clusters[b])
				if d < bestDist {
					bestDist = d
					bestA, bestB = a, b
				}
			}
		}
		if bestA < 0 {
			// Every remaining pair would violate the size cap; stop early
			// rather than loop forever.
			break
		}
		merged := append(append([]int{}, clusters[bestA]...), clusters[bestB]...)
		next := make([][]int, 0, len(clusters)-1)
		for i, c := range clusters {
			if i == bestA || i == bestB {
				continue
			}
			next = append(next, c)
		}
		next = append(next, merged)
		clusters = next
	}

	labels := make([]int, n)
	for clusterID, members := range clusters {
		for _, idx := range members {
			labels[idx] = clusterID + 1 // speaker ids are 1-based, matching spk_id in DiarizationSegment
		}
	}
	return labels
}

func averageLinkageDistance(dist [][]float64, a, b []int) float64 {
	var sum float64
	for _, i := range a {
		for _, j := range b {
			sum += dist[i][j]
		}
	}
	return sum / float64(len(a)*len(b))
}
