package server

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"time"
)

const healthCheckTimeout = 2 * time.Second

type healthReport struct {
	Status     string            `json:"status"`
	Env        string            `json:"env"`
	GoVersion  string            `json:"goVersion"`
	Uptime     string            `json:"uptime"`
	Goroutines int               `json:"goroutines"`
	HeapAlloc  uint64            `json:"heapAllocBytes"`
	Checks     map[string]string `json:"checks"`
}

// HealthHandler reports runtime figures and pings every registered store. Any failed ping turns
// the response into a 503.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)

		report := healthReport{
			Status:     "ok",
			Env:        s.env,
			GoVersion:  runtime.Version(),
			Uptime:     time.Since(s.startedAt).Round(time.Second).String(),
			Goroutines: runtime.NumGoroutine(),
			HeapAlloc:  mem.HeapAlloc,
			Checks:     make(map[string]string, len(s.checks)),
		}

		names := make([]string, 0, len(s.checks))
		for name := range s.checks {
			names = append(names, name)
		}
		sort.Strings(names)

		status := http.StatusOK
		for _, name := range names {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			err := s.checks[name](ctx)
			cancel()
			if err != nil {
				s.logger.Warn().Err(err).Str("check", name).Msg("health check failed")
				report.Checks[name] = "down"
				report.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			report.Checks[name] = "up"
		}

		writeSuccess(w, status, report)
	}
}
