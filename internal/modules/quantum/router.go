package quantum

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/quantfolio/internal/clients/ibmq"
)

const (
	// maxHardwareAssets caps hardware routing: wider portfolios always
	// sample locally, regardless of credentials or preference.
	maxHardwareAssets = 5

	// qubitHeadroom is the multiple of the asset count a device must offer
	// in qubits to be eligible.
	qubitHeadroom = 2

	// SimulatorName identifies the in-process sampler in backend metadata.
	SimulatorName = "local-sampler"
)

// BackendKind tags which execution variant a routing decision produced.
type BackendKind string

const (
	BackendSimulator BackendKind = "simulator"
	BackendHardware  BackendKind = "hardware"
)

// BackendConfig is one routing decision: the executor the variational loop
// will call plus the metadata reported back to the caller. Constructed once
// per optimization request and immutable afterwards.
type BackendConfig struct {
	Kind                  BackendKind
	Name                  string
	UsedSimulatorFallback bool
	FallbackReason        string
	Executor              CircuitExecutor
}

// IsHardware reports whether the decision targets remote hardware.
func (b BackendConfig) IsHardware() bool {
	return b.Kind == BackendHardware
}

// Close releases any resources the executor holds, such as an open device
// session. Closing a simulator decision is a no-op.
func (b BackendConfig) Close() error {
	if closer, ok := b.Executor.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Router decides whether an optimization request runs on the local sampler
// or on remote hardware.
type Router struct {
	client *ibmq.Client
	seed   int64
	log    zerolog.Logger
}

// NewRouter creates a router. The client may lack a credential; routing then
// always selects the local sampler.
func NewRouter(client *ibmq.Client, seed int64, log zerolog.Logger) *Router {
	return &Router{
		client: client,
		seed:   seed,
		log:    log.With().Str("component", "backend_router").Logger(),
	}
}

// Select picks the execution backend for one request. The rules apply in
// order: an explicit simulator preference wins; portfolios wider than the
// hardware cap sample locally no matter what; with a credential present the
// least-busy device offering 2x the asset count in qubits is chosen, any
// failure downgrading to the sampler with the cause recorded; without a
// credential the sampler is used. A non-empty apiToken replaces the
// configured credential for this request only.
//
// Select is total: it never fails, every input yields a usable decision.
func (r *Router) Select(ctx context.Context, assetCount int, preferSimulator bool, apiToken string) BackendConfig {
	if preferSimulator {
		return r.simulator("Simulator selected by user")
	}

	if assetCount > maxHardwareAssets {
		return r.simulator(fmt.Sprintf(
			"Portfolio has %d stocks (>%d); automatically using the local sampler",
			assetCount, maxHardwareAssets,
		))
	}

	client := r.client
	if strings.TrimSpace(apiToken) != "" {
		client = r.client.WithToken(apiToken)
	}

	if client.HasCredential() {
		device, err := client.LeastBusy(ctx, qubitHeadroom*assetCount)
		if err != nil {
			r.log.Warn().Err(err).Msg("Hardware routing failed, using local sampler")
			return r.simulator(fmt.Sprintf("IBM connection failed: %v", err))
		}

		r.log.Info().
			Str("device", device.Name).
			Int("qubits", device.NumQubits).
			Int("pending_jobs", device.PendingJobs).
			Msg("Routing to hardware device")

		return BackendConfig{
			Kind:     BackendHardware,
			Name:     device.Name,
			Executor: NewDeviceExecutor(client, device.Name, r.log),
		}
	}

	return r.simulator("No IBM API key provided")
}

func (r *Router) simulator(reason string) BackendConfig {
	return BackendConfig{
		Kind:                  BackendSimulator,
		Name:                  SimulatorName,
		UsedSimulatorFallback: true,
		FallbackReason:        reason,
		Executor:              NewLocalSampler(r.seed),
	}
}
