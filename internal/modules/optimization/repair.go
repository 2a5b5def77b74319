package optimization

import "sort"

// RepairCardinality forces the number of selected assets into the requested
// bounds, mutating the allocation in place. Too few selections are topped up
// with the highest-return unselected assets; too many are trimmed starting
// from the lowest-return selected ones. The quantum stage only penalizes the
// cardinality target softly, so sampled selections can land outside the
// bounds and this pass makes them hard.
//
// Absent bounds, or bounds already satisfied, leave the allocation untouched.
// Bounds are validated upstream; this never fails.
func RepairCardinality(allocation []int, returns []float64, minAssets, maxAssets *int) {
	count := 0
	for _, bit := range allocation {
		if bit == 1 {
			count++
		}
	}

	if minAssets != nil && count < *minAssets {
		candidates := indicesWithBit(allocation, 0)
		sort.SliceStable(candidates, func(a, b int) bool {
			return returns[candidates[a]] > returns[candidates[b]]
		})
		for _, idx := range candidates {
			if count >= *minAssets {
				break
			}
			allocation[idx] = 1
			count++
		}
	}

	if maxAssets != nil && count > *maxAssets {
		held := indicesWithBit(allocation, 1)
		sort.SliceStable(held, func(a, b int) bool {
			return returns[held[a]] < returns[held[b]]
		})
		for _, idx := range held {
			if count <= *maxAssets {
				break
			}
			allocation[idx] = 0
			count--
		}
	}
}

func indicesWithBit(allocation []int, bit int) []int {
	indices := make([]int, 0, len(allocation))
	for i, b := range allocation {
		if b == bit {
			indices = append(indices, i)
		}
	}
	return indices
}
