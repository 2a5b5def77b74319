package quantum

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/quantfolio/internal/clients/ibmq"
)

// defaultPollInterval is how often a submitted job's status is re-checked.
const defaultPollInterval = 2 * time.Second

// DeviceExecutor runs circuits on remote hardware through the runtime API.
//
// The first Execute call opens a dedicated session that is kept open for the
// executor's whole lifetime, so the per-iteration evaluations of the angle
// search do not each pay the public queue's wait. Callers must Close the
// executor once the optimization request is finished.
type DeviceExecutor struct {
	client    *ibmq.Client
	device    string
	sessionID string
	poll      time.Duration
	log       zerolog.Logger
}

// NewDeviceExecutor creates an executor bound to one device.
func NewDeviceExecutor(client *ibmq.Client, device string, log zerolog.Logger) *DeviceExecutor {
	return &DeviceExecutor{
		client: client,
		device: device,
		poll:   defaultPollInterval,
		log:    log.With().Str("component", "device_executor").Str("device", device).Logger(),
	}
}

// circuitPayload is the sampler program's parameter block.
type circuitPayload struct {
	Circuit circuitDescription `json:"circuit"`
	Angles  []float64          `json:"angles"`
	Shots   int                `json:"shots"`
}

// circuitDescription serializes a CircuitSpec for the remote sampler.
type circuitDescription struct {
	NumQubits int        `json:"num_qubits"`
	Layers    int        `json:"layers"`
	CostTerms []costTerm `json:"cost_terms"`
}

type costTerm struct {
	Qubits      []int   `json:"qubits"`
	Coefficient float64 `json:"coefficient"`
}

// Execute submits one bound circuit as a sampler job and polls until the
// device reports a terminal state. Failures are returned unretried; the
// caller treats them as fatal for the whole optimization request.
func (d *DeviceExecutor) Execute(ctx context.Context, spec CircuitSpec, angles []float64, shots int) (Counts, error) {
	if d.sessionID == "" {
		sessionID, err := d.client.OpenSession(ctx, d.device)
		if err != nil {
			return nil, fmt.Errorf("failed to open device session: %w", err)
		}
		d.sessionID = sessionID
	}

	params, err := json.Marshal(circuitPayload{
		Circuit: describeCircuit(spec),
		Angles:  angles,
		Shots:   shots,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode circuit: %w", err)
	}

	jobID, err := d.client.SubmitJob(ctx, ibmq.JobRequest{
		ProgramID: "sampler",
		Backend:   d.device,
		SessionID: d.sessionID,
		Params:    params,
	})
	if err != nil {
		return nil, err
	}

	d.log.Debug().Str("job_id", jobID).Int("shots", shots).Msg("Submitted sampler job")

	raw, err := d.waitForCounts(ctx, jobID)
	if err != nil {
		return nil, err
	}

	counts := make(Counts, len(raw))
	for bitstring, count := range raw {
		counts[bitstring] = count
	}
	return counts, nil
}

// waitForCounts polls the job until it completes and fetches its counts.
func (d *DeviceExecutor) waitForCounts(ctx context.Context, jobID string) (map[string]int, error) {
	ticker := time.NewTicker(d.poll)
	defer ticker.Stop()

	for {
		status, err := d.client.JobStatus(ctx, jobID)
		if err != nil {
			return nil, err
		}

		switch status {
		case ibmq.JobCompleted:
			return d.client.JobResults(ctx, jobID)
		case ibmq.JobFailed, ibmq.JobCancelled:
			return nil, fmt.Errorf("job %s ended as %s", jobID, status)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close releases the device session, if one was opened.
func (d *DeviceExecutor) Close() error {
	if d.sessionID == "" {
		return nil
	}
	sessionID := d.sessionID
	d.sessionID = ""
	if err := d.client.CloseSession(context.Background(), sessionID); err != nil {
		d.log.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to close device session")
		return err
	}
	return nil
}

func describeCircuit(spec CircuitSpec) circuitDescription {
	terms := make([]costTerm, 0, len(spec.Cost.Terms))
	for _, term := range spec.Cost.Terms {
		terms = append(terms, costTerm{
			Qubits:      term.Qubits,
			Coefficient: term.Coefficient,
		})
	}
	return circuitDescription{
		NumQubits: spec.NumQubits,
		Layers:    spec.Layers,
		CostTerms: terms,
	}
}
