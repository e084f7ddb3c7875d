package webapi

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// handleSystemInfo reports host-level resource usage for operators.
func (s *Service) handleSystemInfo(c *gin.Context) {
	info := gin.H{
		"go_version":   runtime.Version(),
		"goroutines":   runtime.NumGoroutine(),
		"collected_at": time.Now().UTC().Format(time.RFC3339),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		info["cpu_percent"] = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info["memory"] = gin.H{
			"total":        vm.Total,
			"used":         vm.Used,
			"used_percent": vm.UsedPercent,
		}
	}
	if uptime, err := host.Uptime(); err == nil {
		info["uptime_seconds"] = uptime
	}

	c.JSON(http.StatusOK, info)
}
