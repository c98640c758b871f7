package recognition

import (
	"sort"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/rollcall/internal/store"
)

// HNSW parameters for 128-dim face embeddings
const (
	// hnswMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	hnswMaxNeighbors = 16

	// hnswSearchK is the number of candidates requested from the graph.
	// Candidates are re-scored exactly, so this only needs to be large
	// enough that the true nearest sample is among them.
	hnswSearchK = 16
)

// approxIndex preselects nearest-sample candidates from a large known set.
// Nodes are keyed by position in the snapshot slice so the exact re-scoring
// pass can visit candidates in snapshot order.
type approxIndex struct {
	graph *hnsw.Graph[int64]
}

// buildIndex builds an approximate index over a known-set snapshot.
func buildIndex(samples []store.FaceSample) *approxIndex {
	g := hnsw.NewGraph[int64]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.EuclideanDistance

	for i := range samples {
		if len(samples[i].Embedding) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(int64(i), samples[i].Embedding))
	}

	return &approxIndex{graph: g}
}

// candidates returns snapshot positions near the query, sorted ascending so
// the caller scans them in the same order as a full linear pass would.
func (a *approxIndex) candidates(query []float32) []int64 {
	neighbors := a.graph.Search(query, hnswSearchK)

	positions := make([]int64, 0, len(neighbors))
	for _, n := range neighbors {
		positions = append(positions, n.Key)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })
	return positions
}
