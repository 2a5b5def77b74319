package ibmq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBaseURL is the IBM Quantum runtime API root.
const DefaultBaseURL = "https://api.quantum-computing.ibm.com/runtime"

// Client for the IBM Quantum runtime API. All requests carry the account
// token as a bearer credential.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new runtime API client. An empty baseURL selects the
// public endpoint; an empty token produces a client with no credential,
// which callers check via HasCredential before routing work here.
func NewClient(baseURL, token string, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   strings.TrimSpace(token),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.With().Str("client", "ibmq").Logger(),
	}
}

// HasCredential reports whether an API token is configured.
func (c *Client) HasCredential() bool {
	return c != nil && c.token != ""
}

// WithToken returns a copy of the client using the given credential instead
// of the configured one. The underlying HTTP client is shared.
func (c *Client) WithToken(token string) *Client {
	clone := *c
	clone.token = strings.TrimSpace(token)
	return &clone
}

// Device describes one execution target exposed by the runtime API.
type Device struct {
	Name        string `json:"backend_name"`
	NumQubits   int    `json:"n_qubits"`
	Operational bool   `json:"operational"`
	Simulator   bool   `json:"simulator"`
	PendingJobs int    `json:"pending_jobs"`
}

// devicesResponse is the response for ListDevices.
type devicesResponse struct {
	Devices []Device `json:"devices"`
}

// ListDevices fetches the account's visible execution targets.
func (c *Client) ListDevices(ctx context.Context) ([]Device, error) {
	var result devicesResponse
	if err := c.get(ctx, "/backends", &result); err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return result.Devices, nil
}

// LeastBusy returns the operational non-simulator device with the fewest
// pending jobs among those offering at least minQubits qubits.
func (c *Client) LeastBusy(ctx context.Context, minQubits int) (*Device, error) {
	devices, err := c.ListDevices(ctx)
	if err != nil {
		return nil, err
	}

	var best *Device
	for i := range devices {
		d := &devices[i]
		if !d.Operational || d.Simulator || d.NumQubits < minQubits {
			continue
		}
		if best == nil || d.PendingJobs < best.PendingJobs {
			best = d
		}
	}

	if best == nil {
		return nil, fmt.Errorf("no operational device with at least %d qubits", minQubits)
	}

	c.log.Debug().
		Str("device", best.Name).
		Int("pending_jobs", best.PendingJobs).
		Msg("Selected least-busy device")
	return best, nil
}

// sessionRequest is the request for OpenSession.
type sessionRequest struct {
	Backend string `json:"backend"`
	Mode    string `json:"mode"`
}

// sessionResponse is the response for OpenSession.
type sessionResponse struct {
	ID string `json:"id"`
}

// OpenSession reserves a dedicated session on a device so that repeated job
// submissions do not re-enter the public queue.
func (c *Client) OpenSession(ctx context.Context, device string) (string, error) {
	req := sessionRequest{Backend: device, Mode: "dedicated"}

	var result sessionResponse
	if err := c.post(ctx, "/sessions", req, &result); err != nil {
		return "", fmt.Errorf("failed to open session on %s: %w", device, err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("session on %s has no id", device)
	}

	c.log.Info().Str("device", device).Str("session_id", result.ID).Msg("Opened runtime session")
	return result.ID, nil
}

// CloseSession releases a session. Safe to call after the session expired.
func (c *Client) CloseSession(ctx context.Context, sessionID string) error {
	if err := c.do(ctx, http.MethodDelete, "/sessions/"+sessionID+"/close", nil, nil); err != nil {
		return fmt.Errorf("failed to close session %s: %w", sessionID, err)
	}
	c.log.Debug().Str("session_id", sessionID).Msg("Closed runtime session")
	return nil
}

// JobRequest is the request for SubmitJob. Params carries the
// program-specific payload (circuit description, angles, shots).
type JobRequest struct {
	ProgramID string          `json:"program_id"`
	Backend   string          `json:"backend"`
	SessionID string          `json:"session_id,omitempty"`
	Params    json.RawMessage `json:"params"`
}

// jobResponse is the response for SubmitJob.
type jobResponse struct {
	ID string `json:"id"`
}

// SubmitJob queues one program execution and returns its job id.
func (c *Client) SubmitJob(ctx context.Context, req JobRequest) (string, error) {
	var result jobResponse
	if err := c.post(ctx, "/jobs", req, &result); err != nil {
		return "", fmt.Errorf("failed to submit job: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("job submission returned no id")
	}
	return result.ID, nil
}

// Job lifecycle states reported by JobStatus.
const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
	JobCancelled = "cancelled"
)

// jobStatusResponse is the response for JobStatus.
type jobStatusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// JobStatus fetches the lifecycle state of a job. For failed jobs the
// device-reported error text is included in the returned error.
func (c *Client) JobStatus(ctx context.Context, jobID string) (string, error) {
	var result jobStatusResponse
	if err := c.get(ctx, "/jobs/"+jobID, &result); err != nil {
		return "", fmt.Errorf("failed to fetch job %s: %w", jobID, err)
	}
	if result.Status == JobFailed && result.Error != "" {
		return result.Status, fmt.Errorf("job %s failed: %s", jobID, result.Error)
	}
	return result.Status, nil
}

// resultsResponse is the response for JobResults.
type resultsResponse struct {
	Counts map[string]int `json:"counts"`
}

// JobResults fetches the measurement counts of a completed job.
func (c *Client) JobResults(ctx context.Context, jobID string) (map[string]int, error) {
	var result resultsResponse
	if err := c.get(ctx, "/jobs/"+jobID+"/results", &result); err != nil {
		return nil, fmt.Errorf("failed to fetch results for job %s: %w", jobID, err)
	}
	if len(result.Counts) == 0 {
		return nil, fmt.Errorf("job %s returned no counts", jobID)
	}
	return result.Counts, nil
}

// post makes a POST request to the runtime API.
func (c *Client) post(ctx context.Context, endpoint string, request, out interface{}) error {
	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, endpoint, bytes.NewReader(body), out)
}

// get makes a GET request to the runtime API.
func (c *Client) get(ctx context.Context, endpoint string, out interface{}) error {
	return c.do(ctx, http.MethodGet, endpoint, nil, out)
}

// do executes one API request and decodes the JSON response into out.
func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
