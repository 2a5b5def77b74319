package quantum

import (
	"math"
	"sort"
	"strings"
)

// BestBitstring re-scores every observed bitstring against the QUBO and
// returns the one with the lowest objective value x'Qx, as a string of
// exactly n '0'/'1' characters in natural order (character i = asset i).
//
// The most frequently sampled state is not guaranteed to be the lowest
// energy one, especially at low shot counts, so frequency is ignored and
// every distinct outcome is evaluated classically. Measured strings are
// reversed into natural order and padded with zeros or truncated to n bits
// before scoring. Candidates are visited in sorted key order with a strict
// less-than comparison, so ties resolve to the lexicographically first
// measured string regardless of map iteration order. Empty counts yield the
// all-zero string.
func BestBitstring(counts Counts, q [][]float64, n int) string {
	keys := make([]string, 0, len(counts))
	for bitstring := range counts {
		keys = append(keys, bitstring)
	}
	sort.Strings(keys)

	var best []int
	bestValue := math.Inf(1)

	for _, bitstring := range keys {
		x := selectionFromBitstring(bitstring, n)
		value := EvaluateQUBO(q, x)
		if value < bestValue {
			bestValue = value
			best = x
		}
	}

	if best == nil {
		return strings.Repeat("0", n)
	}

	var sb strings.Builder
	sb.Grow(n)
	for _, bit := range best {
		if bit == 1 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// selectionFromBitstring reverses a hardware-ordered measurement string into
// a natural-order binary vector of exactly n entries, zero-padding or
// truncating as needed.
func selectionFromBitstring(bitstring string, n int) []int {
	x := make([]int, n)
	for i := 0; i < n && i < len(bitstring); i++ {
		if bitstring[len(bitstring)-1-i] == '1' {
			x[i] = 1
		}
	}
	return x
}

// Selection parses a natural-order bitstring (as returned by BestBitstring)
// into a binary vector.
func Selection(bitstring string) []int {
	x := make([]int, len(bitstring))
	for i := 0; i < len(bitstring); i++ {
		if bitstring[i] == '1' {
			x[i] = 1
		}
	}
	return x
}
