package quantum

import "math"

// coefficientEpsilon drops Pauli terms too small to affect the energy.
const coefficientEpsilon = 1e-12

// EncodeIsing transforms a QUBO matrix into an Ising cost Hamiltonian.
//
// Binary variables x_i in {0,1} map to Z eigenvalues z_i in {+1,-1} via
// x_i = (1 - z_i) / 2. Substituting into x'Qx and collecting terms, each
// diagonal entry contributes a constant and a single-qubit Z term, and each
// symmetrized off-diagonal pair s = Q[i][j] + Q[j][i] contributes a constant,
// two Z terms, and one ZZ term:
//
//	Q[i][i] * x_i      ->  Q[i][i]/2 - (Q[i][i]/2) * z_i
//	s * x_i * x_j      ->  s/4 - (s/4) * z_i - (s/4) * z_j + (s/4) * z_i z_j
//
// The result contains only identity and Z operators, so shot-based energy
// estimation needs no circuit simulation. Terms with coefficients below
// coefficientEpsilon are dropped.
func EncodeIsing(q [][]float64) Hamiltonian {
	n := len(q)

	linear := make([]float64, n)
	offset := 0.0
	var pairs []PauliTerm

	for i := 0; i < n; i++ {
		offset += q[i][i] / 2.0
		linear[i] -= q[i][i] / 2.0

		for j := i + 1; j < n; j++ {
			s := q[i][j] + q[j][i]
			offset += s / 4.0
			linear[i] -= s / 4.0
			linear[j] -= s / 4.0

			if math.Abs(s/4.0) > coefficientEpsilon {
				pairs = append(pairs, PauliTerm{
					Qubits:      []int{i, j},
					Coefficient: s / 4.0,
				})
			}
		}
	}

	terms := make([]PauliTerm, 0, n+len(pairs))
	for i, coeff := range linear {
		if math.Abs(coeff) > coefficientEpsilon {
			terms = append(terms, PauliTerm{
				Qubits:      []int{i},
				Coefficient: coeff,
			})
		}
	}
	terms = append(terms, pairs...)

	return Hamiltonian{Terms: terms, Offset: offset}
}
