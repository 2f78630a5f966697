package endpoint

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// RuntimeStats is the process snapshot served on /metrics. Request and
// pipeline metrics go through OpenTelemetry instead.
type RuntimeStats struct {
	Timestamp  string  `json:"timestamp"`
	Uptime     string  `json:"uptime"`
	Goroutines int     `json:"goroutines"`
	HeapMB     float64 `json:"heap_mb"`
	SysMB      float64 `json:"sys_mb"`
	GCRuns     uint32  `json:"gc_runs"`
}

const mb = 1 << 20

// Metrics serves a RuntimeStats snapshot.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		c.JSON(http.StatusOK, RuntimeStats{
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
			Uptime:     time.Since(startTime).Round(time.Second).String(),
			Goroutines: runtime.NumGoroutine(),
			HeapMB:     float64(m.HeapAlloc) / mb,
			SysMB:      float64(m.Sys) / mb,
			GCRuns:     m.NumGC,
		})
	}
}
