package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// HealthStatus is the overall health of the server.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheckResponse is the /health body.
type HealthCheckResponse struct {
	Status    HealthStatus           `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Version   string                 `json:"version"`
	GitCommit string                 `json:"git_commit,omitempty"`
	BuildTime string                 `json:"build_time,omitempty"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]HealthCheck `json:"checks"`
	System    SystemInfo             `json:"system"`
	RequestID string                 `json:"request_id,omitempty"`
}

// HealthCheck is one component check.
type HealthCheck struct {
	Status      HealthStatus `json:"status"`
	Message     string       `json:"message,omitempty"`
	LastChecked string       `json:"last_checked"`
	Duration    string       `json:"duration,omitempty"`
}

// SystemInfo contains runtime information.
type SystemInfo struct {
	GoVersion     string `json:"go_version"`
	NumGoroutines int    `json:"num_goroutines"`
	NumCPU        int    `json:"num_cpu"`
	MemoryAlloc   uint64 `json:"memory_alloc_bytes"`
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	db := s.checkDatabaseHealth(r)
	status := HealthStatusHealthy
	code := http.StatusOK
	if db.Status != HealthStatusHealthy {
		status = HealthStatusUnhealthy
		code = http.StatusServiceUnavailable
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	s.writeJSON(w, code, HealthCheckResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		Uptime:    time.Since(s.startTime).String(),
		Checks:    map[string]HealthCheck{"database": db},
		System: SystemInfo{
			GoVersion:     runtime.Version(),
			NumGoroutines: runtime.NumGoroutine(),
			NumCPU:        runtime.NumCPU(),
			MemoryAlloc:   m.Alloc,
		},
		RequestID: middleware.GetReqID(r.Context()),
	})
}

func (s *Server) checkDatabaseHealth(r *http.Request) HealthCheck {
	start := time.Now()
	check := HealthCheck{Status: HealthStatusHealthy, Message: "Database connection healthy"}
	if s.db == nil {
		check.Status = HealthStatusUnhealthy
		check.Message = "Database not initialized"
	} else if err := s.db.Ping(r.Context()); err != nil {
		check.Status = HealthStatusUnhealthy
		check.Message = err.Error()
	}
	check.LastChecked = time.Now().UTC().Format(time.RFC3339)
	check.Duration = time.Since(start).String()
	return check
}
