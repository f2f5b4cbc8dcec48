package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// handleSystemStatus reports process and host health for the status page.
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	status := map[string]interface{}{
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
		"goroutines":     runtime.NumGoroutine(),
		"heap_alloc_mb":  float64(memStats.HeapAlloc) / 1024 / 1024,
		"num_gc":         memStats.NumGC,
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		status["system_memory"] = map[string]interface{}{
			"total_mb":     vm.Total / 1024 / 1024,
			"used_mb":      vm.Used / 1024 / 1024,
			"used_percent": vm.UsedPercent,
		}
	} else {
		s.log.Warn().Err(err).Msg("Failed to read system memory stats")
	}

	if du, err := disk.Usage("/"); err == nil {
		status["disk"] = map[string]interface{}{
			"total_gb":     du.Total / 1024 / 1024 / 1024,
			"free_gb":      du.Free / 1024 / 1024 / 1024,
			"used_percent": du.UsedPercent,
		}
	} else {
		s.log.Warn().Err(err).Msg("Failed to read disk usage")
	}

	s.writeJSON(w, http.StatusOK, status)
}
