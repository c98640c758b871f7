package recognition

import (
	"math"

	"github.com/kozaktomas/rollcall/internal/store"
)

// FindNearest scans the known set for the sample closest to the query and
// returns its owning student ID with the distance. The scan uses strict
// less-than, so on exact ties the first sample in snapshot order wins, which
// makes the result deterministic: snapshots are ordered by student ID and
// then sample age. An empty known set yields (0, +Inf).
func FindNearest(query []float32, snapshot []store.FaceSample, index *approxIndex) (int64, float64) {
	best := int64(0)
	bestDist := math.Inf(1)

	if index != nil {
		for _, pos := range index.candidates(query) {
			if pos < 0 || pos >= int64(len(snapshot)) {
				continue
			}
			sample := &snapshot[pos]
			if d := EuclideanDistance(query, sample.Embedding); d < bestDist {
				best = sample.StudentID
				bestDist = d
			}
		}
		return best, bestDist
	}

	for i := range snapshot {
		if d := EuclideanDistance(query, snapshot[i].Embedding); d < bestDist {
			best = snapshot[i].StudentID
			bestDist = d
		}
	}
	return best, bestDist
}
