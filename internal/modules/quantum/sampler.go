package quantum

import (
	"context"
	"math"
	"math/rand"
	"strings"
)

// defaultSweeps is the number of full proposal passes per circuit layer in
// the local sampler.
const defaultSweeps = 3

// LocalSampler is the in-process circuit executor. It does not simulate
// gates; it reproduces the sampling behavior the optimization loop depends
// on with annealed Metropolis trajectories over spin configurations.
//
// Each shot starts from a uniformly random configuration, mirroring the
// uniform superposition the circuit family prepares. Every layer then acts
// twice, the way a (cost, mixer) pair does: the mixer angle beta sets how
// aggressively spin flips are proposed (proposal probability |sin beta|, so
// beta = 0 freezes the state), and the cost angle gamma sets how strongly
// the cost Hamiltonian biases acceptance (inverse temperature proportional
// to |gamma|). Small angles leave the distribution near uniform; larger cost
// angles concentrate it on low-energy bitstrings, which gives the outer
// angle search a landscape worth optimizing.
//
// Sampling is deterministic for a fixed seed. A LocalSampler is scoped to a
// single optimization request and must not be shared across goroutines.
type LocalSampler struct {
	rng    *rand.Rand
	sweeps int
}

// NewLocalSampler creates a sampler seeded for reproducible draws.
func NewLocalSampler(seed int64) *LocalSampler {
	return &LocalSampler{
		rng:    rand.New(rand.NewSource(seed)),
		sweeps: defaultSweeps,
	}
}

// Execute samples the requested number of measurement outcomes for the
// circuit bound to the given angles.
func (s *LocalSampler) Execute(ctx context.Context, spec CircuitSpec, angles []float64, shots int) (Counts, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n := spec.NumQubits
	counts := make(Counts)
	if n == 0 || shots <= 0 {
		return counts, nil
	}

	layers := spec.Layers
	if layers > len(angles)/2 {
		layers = len(angles) / 2
	}
	gammas := angles[:layers]
	betas := angles[layers : 2*layers]

	// Inverse temperatures are normalized by the Hamiltonian scale so the
	// acceptance rule reacts to gamma consistently across problem sizes.
	hScale := 0.0
	for _, term := range spec.Cost.Terms {
		if a := math.Abs(term.Coefficient); a > hScale {
			hScale = a
		}
	}
	if hScale == 0 {
		hScale = 1.0
	}

	// Terms touching each qubit, for O(degree) energy deltas per flip.
	incident := make([][]int, n)
	for t, term := range spec.Cost.Terms {
		for _, q := range term.Qubits {
			if q < n {
				incident[q] = append(incident[q], t)
			}
		}
	}

	spins := make([]float64, n)
	for shot := 0; shot < shots; shot++ {
		for i := range spins {
			if s.rng.Intn(2) == 0 {
				spins[i] = 1.0
			} else {
				spins[i] = -1.0
			}
		}

		for layer := 0; layer < layers; layer++ {
			flipProb := math.Abs(math.Sin(betas[layer]))
			invTemp := math.Abs(gammas[layer]) / hScale

			for sweep := 0; sweep < s.sweeps; sweep++ {
				for q := 0; q < n; q++ {
					if s.rng.Float64() >= flipProb {
						continue
					}
					delta := s.flipDelta(spec.Cost.Terms, incident[q], spins, q)
					if delta <= 0 || s.rng.Float64() < math.Exp(-delta*invTemp) {
						spins[q] = -spins[q]
					}
				}
			}
		}

		counts[bitstringFromSpins(spins)]++
	}

	return counts, nil
}

// flipDelta computes the energy change from flipping qubit q: every term
// containing q reverses sign, so the delta is -2 times their current sum.
func (s *LocalSampler) flipDelta(terms []PauliTerm, incident []int, spins []float64, q int) float64 {
	var local float64
	for _, t := range incident {
		value := terms[t].Coefficient
		for _, idx := range terms[t].Qubits {
			value *= spins[idx]
		}
		local += value
	}
	return -2.0 * local
}

// bitstringFromSpins renders spins in hardware order: the first character is
// the highest-index qubit, spin +1 measures as '0' and -1 as '1'.
func bitstringFromSpins(spins []float64) string {
	var sb strings.Builder
	sb.Grow(len(spins))
	for i := len(spins) - 1; i >= 0; i-- {
		if spins[i] < 0 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}
