package handlers

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/minerva"
)

// Build information - can be set at build time using ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

const serviceName = "minerva"

// HealthHandler handles health check requests
type HealthHandler struct {
	minerva minerva.Minerva
	started time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(m minerva.Minerva) *HealthHandler {
	return &HealthHandler{
		minerva: m,
		started: time.Now(),
	}
}

// HealthCheck handles GET /health - basic liveness check
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   Version,
	})
}

// ReadinessCheck handles GET /ready
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	breakers := h.breakerCheck()
	checks := gin.H{"client": h.clientCheck(ctx), "breakers": breakers}
	checks["system"] = gin.H{
		"status": "healthy",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	}

	response := gin.H{
		"status":    "ready",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}
	if checks["client"].(gin.H)["status"] != "healthy" {
		response["status"] = "not_ready"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	// Graphs are still served from the corpus while a lookup service is down.
	if breakers["status"] != "healthy" {
		response["status"] = "degraded"
	}
	c.JSON(http.StatusOK, response)
}

// LivenessCheck handles GET /live - Kubernetes liveness probe endpoint
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// DetailedHealthCheck handles GET /health/detailed - comprehensive health information
func (h *HealthHandler) DetailedHealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	startTime := time.Now()
	client := h.clientCheck(ctx)
	breakers := h.breakerCheck()
	metrics := h.getSystemMetrics()

	response := gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": Version,
		"build_info": gin.H{
			"git_commit": GitCommit,
			"build_time": BuildTime,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"environment": gin.H{
			"go_version": GoVersion,
		},
		"checks": gin.H{
			"client":   client,
			"breakers": breakers,
			"system": gin.H{
				"status":       "healthy",
				"memory_usage": metrics.MemoryUsage,
				"goroutines":   metrics.Goroutines,
				"gc_cycles":    metrics.GCCycles,
				"heap_objects": metrics.HeapObjects,
				"stack_usage":  metrics.StackUsage,
			},
		},
		"metrics": gin.H{
			"response_time_ms": time.Since(startTime).Milliseconds(),
			"uptime":           time.Since(h.started).Round(time.Second).String(),
		},
	}

	if client["status"] != "healthy" {
		response["status"] = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	if breakers["status"] != "healthy" {
		response["status"] = "degraded"
	}
	c.JSON(http.StatusOK, response)
}

// breakerCheck reports the circuit breakers of the client. Any open breaker
// makes the check degraded.
func (h *HealthHandler) breakerCheck() gin.H {
	reporter, ok := h.minerva.(interface{ BreakerStates() map[string]string })
	if !ok {
		return gin.H{"status": "healthy", "circuits": gin.H{}}
	}
	status := "healthy"
	circuits := gin.H{}
	for name, state := range reporter.BreakerStates() {
		circuits[name] = state
		if state == "open" {
			status = "degraded"
		}
	}
	return gin.H{"status": status, "circuits": circuits}
}

func (h *HealthHandler) clientCheck(ctx context.Context) gin.H {
	if h.minerva == nil {
		return gin.H{
			"status": "unhealthy",
			"error":  "minerva client not initialized",
		}
	}
	start := time.Now()
	if err := h.minerva.Ready(ctx); err != nil {
		return gin.H{
			"status":      "unhealthy",
			"error":       err.Error(),
			"duration_ms": time.Since(start).Milliseconds(),
		}
	}
	return gin.H{
		"status":      "healthy",
		"duration_ms": time.Since(start).Milliseconds(),
	}
}

// SystemMetrics holds system runtime metrics
type SystemMetrics struct {
	MemoryUsage string `json:"memory_usage"`
	Goroutines  int    `json:"goroutines"`
	GCCycles    uint32 `json:"gc_cycles"`
	HeapObjects uint64 `json:"heap_objects"`
	StackUsage  string `json:"stack_usage"`
}

// getSystemMetrics collects current system runtime metrics
func (h *HealthHandler) getSystemMetrics() SystemMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SystemMetrics{
		MemoryUsage: fmt.Sprintf("%.2f MB", float64(m.Alloc)/(1024*1024)),
		Goroutines:  runtime.NumGoroutine(),
		GCCycles:    m.NumGC,
		HeapObjects: m.HeapObjects,
		StackUsage:  fmt.Sprintf("%.2f MB", float64(m.StackSys)/(1024*1024)),
	}
}
