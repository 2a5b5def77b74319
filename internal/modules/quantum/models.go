package quantum

// Counts maps a measured bitstring to the number of times it was observed.
// Bitstrings use hardware ordering: the first character corresponds to the
// highest-index qubit, so strings are reversed before indexing by qubit.
type Counts map[string]int

// Shots returns the total number of measurements in the distribution.
func (c Counts) Shots() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// PauliTerm is a weighted product of Pauli-Z operators acting on a subset of
// qubits. Encoding a QUBO produces only single-qubit Z and two-qubit ZZ terms.
type PauliTerm struct {
	Qubits      []int
	Coefficient float64
}

// Hamiltonian is a cost operator expressed as a weighted sum of Z terms plus
// a constant offset. The offset does not affect which state minimizes the
// energy but is needed to recover absolute QUBO objective values.
type Hamiltonian struct {
	Terms  []PauliTerm
	Offset float64
}

// CircuitSpec describes the variational circuit an executor must run:
// Layers repetitions of (cost unitary, mixer unitary) on NumQubits qubits,
// starting from the uniform superposition. The cost unitary is generated by
// Cost; the mixer is the standard transverse-field mixer.
type CircuitSpec struct {
	NumQubits int
	Layers    int
	Cost      Hamiltonian
}

// SolveResult is the outcome of one full QAOA run.
type SolveResult struct {
	// Selection is the binary allocation: Selection[i] == 1 means asset i
	// is included in the portfolio.
	Selection []int

	// Counts is the measurement distribution from the final full-shot
	// evaluation at the best angles found.
	Counts Counts

	// Convergence holds the estimated cost at every objective evaluation
	// of the angle search, in call order.
	Convergence []float64
}

// SelectedCount returns the number of assets included in the selection.
func (r *SolveResult) SelectedCount() int {
	count := 0
	for _, bit := range r.Selection {
		if bit == 1 {
			count++
		}
	}
	return count
}
