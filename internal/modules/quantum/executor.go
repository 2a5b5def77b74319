package quantum

import "context"

// CircuitExecutor runs a parameterized circuit and returns measurement
// counts. Implementations may sample locally or submit to remote hardware;
// the optimization loop only ever sees bitstring counts, so it carries no
// dependency on how circuits are represented or executed.
//
// angles holds 2*Layers values: the cost angles (gamma) first, then the
// mixer angles (beta). Errors are fatal to the caller and are not retried
// here: an interrupted convergence trace cannot be salvaged.
type CircuitExecutor interface {
	Execute(ctx context.Context, spec CircuitSpec, angles []float64, shots int) (Counts, error)
}
