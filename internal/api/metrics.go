package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/entry"
)

// SystemMetrics is the /system/metrics response.
type SystemMetrics struct {
	Timestamp     string             `json:"timestamp"`
	Version       string             `json:"version"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	Runtime       RuntimeMetrics     `json:"runtime"`
	WebSocket     WSMetrics          `json:"websocket"`
	Entries       EntryMetrics       `json:"entries"`
	Coordinators  CoordinatorMetrics `json:"coordinators"`
	Entities      int                `json:"entities"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// EntryMetrics counts entries by lifecycle state.
type EntryMetrics struct {
	Total   int                 `json:"total"`
	ByState map[entry.State]int `json:"by_state"`
}

// CoordinatorMetrics counts coordinators by health.
type CoordinatorMetrics struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	Failing   int `json:"failing"`
	Rebooting int `json:"rebooting"`
	Listeners int `json:"listeners"`
}

func (s *Server) handleSystemMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
		Entries: EntryMetrics{
			ByState: make(map[entry.State]int),
		},
		Entities: len(s.states.All()),
	}

	for _, e := range s.entries.List() {
		metrics.Entries.Total++
		metrics.Entries.ByState[e.State()]++
		for _, h := range e.Coordinators() {
			st := h.Snapshot()
			metrics.Coordinators.Total++
			metrics.Coordinators.Listeners += st.Listeners
			if st.Available {
				metrics.Coordinators.Available++
			}
			if st.Failures > 0 {
				metrics.Coordinators.Failing++
			}
			if st.Rebooting {
				metrics.Coordinators.Rebooting++
			}
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
