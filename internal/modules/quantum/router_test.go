package quantum

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/quantfolio/internal/clients/ibmq"
)

func devicesServer(t *testing.T, devices []map[string]interface{}, hits *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			*hits++
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"devices": devices})
	}))
}

func TestRouterSelect_UserPreferenceWins(t *testing.T) {
	hits := 0
	server := devicesServer(t, nil, &hits)
	defer server.Close()

	client := ibmq.NewClient(server.URL, "token", zerolog.Nop())
	router := NewRouter(client, 42, zerolog.Nop())

	decision := router.Select(context.Background(), 2, true, "")

	assert.Equal(t, BackendSimulator, decision.Kind)
	assert.True(t, decision.UsedSimulatorFallback)
	assert.Equal(t, "Simulator selected by user", decision.FallbackReason)
	require.NotNil(t, decision.Executor)
	assert.Zero(t, hits, "user preference should short-circuit hardware lookup")
}

func TestRouterSelect_SizeGuardBeatsCredential(t *testing.T) {
	hits := 0
	server := devicesServer(t, []map[string]interface{}{
		{"backend_name": "ibm_calm", "n_qubits": 127, "operational": true, "pending_jobs": 0},
	}, &hits)
	defer server.Close()

	client := ibmq.NewClient(server.URL, "valid-token", zerolog.Nop())
	router := NewRouter(client, 42, zerolog.Nop())

	// Six assets exceed the hardware cap: simulation is forced even though
	// a credential and an eligible device exist.
	decision := router.Select(context.Background(), 6, false, "")

	assert.Equal(t, BackendSimulator, decision.Kind)
	assert.True(t, decision.UsedSimulatorFallback)
	assert.Contains(t, decision.FallbackReason, "6", "reason should mention the asset count")
	assert.Zero(t, hits, "size guard should short-circuit hardware lookup")
}

func TestRouterSelect_RoutesToLeastBusyEligibleDevice(t *testing.T) {
	server := devicesServer(t, []map[string]interface{}{
		{"backend_name": "ibm_small", "n_qubits": 5, "operational": true, "pending_jobs": 0},
		{"backend_name": "ibm_busy", "n_qubits": 27, "operational": true, "pending_jobs": 9},
		{"backend_name": "ibm_calm", "n_qubits": 27, "operational": true, "pending_jobs": 2},
		{"backend_name": "ibm_sim", "n_qubits": 100, "operational": true, "simulator": true, "pending_jobs": 0},
		{"backend_name": "ibm_down", "n_qubits": 127, "operational": false, "pending_jobs": 0},
	}, nil)
	defer server.Close()

	client := ibmq.NewClient(server.URL, "valid-token", zerolog.Nop())
	router := NewRouter(client, 42, zerolog.Nop())

	// Three assets need 6 qubits: ibm_small is too narrow, ibm_sim and
	// ibm_down are ineligible, and ibm_calm beats ibm_busy on queue depth.
	decision := router.Select(context.Background(), 3, false, "")

	assert.Equal(t, BackendHardware, decision.Kind)
	assert.True(t, decision.IsHardware())
	assert.Equal(t, "ibm_calm", decision.Name)
	assert.False(t, decision.UsedSimulatorFallback)
	assert.Empty(t, decision.FallbackReason)
	require.IsType(t, &DeviceExecutor{}, decision.Executor)
}

func TestRouterSelect_HardwareFailureFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := ibmq.NewClient(server.URL, "valid-token", zerolog.Nop())
	router := NewRouter(client, 42, zerolog.Nop())

	decision := router.Select(context.Background(), 3, false, "")

	assert.Equal(t, BackendSimulator, decision.Kind)
	assert.True(t, decision.UsedSimulatorFallback)
	assert.Contains(t, decision.FallbackReason, "IBM connection failed")
	require.NotNil(t, decision.Executor, "fallback must still be runnable")
}

func TestRouterSelect_NoEligibleDeviceFallsBack(t *testing.T) {
	server := devicesServer(t, []map[string]interface{}{
		{"backend_name": "ibm_small", "n_qubits": 5, "operational": true, "pending_jobs": 0},
	}, nil)
	defer server.Close()

	client := ibmq.NewClient(server.URL, "valid-token", zerolog.Nop())
	router := NewRouter(client, 42, zerolog.Nop())

	decision := router.Select(context.Background(), 4, false, "")

	assert.Equal(t, BackendSimulator, decision.Kind)
	assert.Contains(t, decision.FallbackReason, "IBM connection failed")
}

func TestRouterSelect_NoCredential(t *testing.T) {
	client := ibmq.NewClient("", "", zerolog.Nop())
	router := NewRouter(client, 42, zerolog.Nop())

	decision := router.Select(context.Background(), 2, false, "")

	assert.Equal(t, BackendSimulator, decision.Kind)
	assert.Equal(t, "No IBM API key provided", decision.FallbackReason)
	assert.Equal(t, SimulatorName, decision.Name)
}

func TestRouterSelect_RequestTokenEnablesHardware(t *testing.T) {
	hits := 0
	server := devicesServer(t, []map[string]interface{}{
		{"backend_name": "ibm_calm", "n_qubits": 27, "operational": true, "pending_jobs": 1},
	}, &hits)
	defer server.Close()

	// No configured credential: only the request-scoped token can route
	// to hardware.
	client := ibmq.NewClient(server.URL, "", zerolog.Nop())
	router := NewRouter(client, 42, zerolog.Nop())

	decision := router.Select(context.Background(), 3, false, "request-token")

	assert.Equal(t, BackendHardware, decision.Kind)
	assert.Equal(t, "ibm_calm", decision.Name)
	assert.Equal(t, 1, hits)
}

func TestBackendConfigClose_SimulatorIsNoOp(t *testing.T) {
	client := ibmq.NewClient("", "", zerolog.Nop())
	router := NewRouter(client, 42, zerolog.Nop())

	decision := router.Select(context.Background(), 2, false, "")

	assert.NoError(t, decision.Close())
}
