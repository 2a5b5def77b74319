package quantum

// Expectation estimates <H> = sum_x P(x) * H(x) from measurement counts.
//
// Each observed bitstring is evaluated directly against the Pauli terms
// instead of building the full 2^n Hamiltonian matrix: a Z operator on qubit
// k contributes the eigenvalue z_k = (-1)^bit_k, identity contributes 1.
// Bitstrings arrive in hardware order (first character = highest qubit), so
// they are reversed before indexing. A term referencing a qubit outside the
// measured register contributes zero; only Z products are representable
// here, so nothing else can appear.
//
// The per-bitstring energies are weighted by empirical probability
// count/total. This is the shot-based estimator: cheaper than an exact
// statevector, with statistical noise proportional to 1/sqrt(shots). The
// Hamiltonian offset is not included; callers that need absolute QUBO
// energies add it back.
func Expectation(counts Counts, h Hamiltonian) float64 {
	total := counts.Shots()
	if total == 0 {
		return 0
	}

	expectation := 0.0
	for bitstring, count := range counts {
		z := eigenvalues(bitstring)

		energy := 0.0
		for _, term := range h.Terms {
			value := term.Coefficient
			for _, qubit := range term.Qubits {
				if qubit >= len(z) {
					value = 0
					break
				}
				value *= z[qubit]
			}
			energy += value
		}

		expectation += energy * float64(count) / float64(total)
	}

	return expectation
}

// eigenvalues converts a hardware-ordered bitstring into per-qubit Z
// eigenvalues: bit 0 -> +1, bit 1 -> -1, indexed by qubit number.
func eigenvalues(bitstring string) []float64 {
	z := make([]float64, len(bitstring))
	for i := range z {
		// Reversed: the last character is qubit 0.
		if bitstring[len(bitstring)-1-i] == '1' {
			z[i] = -1.0
		} else {
			z[i] = 1.0
		}
	}
	return z
}
