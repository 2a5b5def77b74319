package server

import (
	"encoding/json"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/quantfolio/internal/database"
)

// SystemHandlers handles system monitoring endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	db          *database.DB
	startupTime time.Time
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(log zerolog.Logger, db *database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("handler", "system").Logger(),
		db:          db,
		startupTime: time.Now(),
	}
}

// HandleSystemStats returns process and host runtime statistics.
// GET /api/system/stats
func (h *SystemHandlers) HandleSystemStats(w http.ResponseWriter, r *http.Request) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}
	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	memory := map[string]interface{}{}
	if memStat, err := mem.VirtualMemory(); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
	} else {
		memory = map[string]interface{}{
			"used_mb":      float64(memStat.Used) / 1024 / 1024,
			"total_mb":     float64(memStat.Total) / 1024 / 1024,
			"used_percent": memStat.UsedPercent,
		}
	}

	hostUptime := uint64(0)
	if uptime, err := host.Uptime(); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get host uptime")
	} else {
		hostUptime = uptime
	}

	stats := map[string]interface{}{
		"cpu_percent":            cpuAvg,
		"memory":                 memory,
		"host_uptime_seconds":    hostUptime,
		"service_uptime_seconds": int64(time.Since(h.startupTime).Seconds()),
		"goroutines":             runtime.NumGoroutine(),
		"database":               h.databaseStats(),
	}

	h.writeJSON(w, stats)
}

// databaseStats reports the on-disk footprint of the application database.
func (h *SystemHandlers) databaseStats() map[string]interface{} {
	if h.db == nil {
		return map[string]interface{}{}
	}

	stats := map[string]interface{}{
		"name": h.db.Name(),
		"path": h.db.Path(),
	}
	if info, err := os.Stat(h.db.Path()); err == nil {
		stats["size_mb"] = float64(info.Size()) / 1024 / 1024
	}
	return stats
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
