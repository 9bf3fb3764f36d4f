package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mabu-ibm/loadtest-app/internal/echo"
	"github.com/mabu-ibm/loadtest-app/internal/stress"
)

const appVersion = "1.0.0"

// handleIndex renders the web interface with current metrics.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	s.registry.IncRequests()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, s.registry.Snapshot()); err != nil {
		s.logger.Error("Failed to render index page", zap.Error(err))
	}
}

// handleHealth is the liveness probe. Always 200 while the process is up.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.registry.IncRequests()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   appVersion,
	})
}

// handleMetrics reports application counters plus a live system sample.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.registry.IncRequests()

	// A failed sample leaves the system block empty rather than failing the
	// request; the gauges in application_metrics still carry the last
	// sampled values.
	var system interface{}
	if snap, err := s.sysinfo.Sample(r.Context()); err != nil {
		s.logger.Error("Failed to sample system metrics", zap.Error(err))
		system = map[string]interface{}{}
	} else {
		system = snap
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"application_metrics": s.registry.Snapshot(),
		"system_metrics":      system,
		"active_processes":    s.runner.ActiveCount(),
	})
}

// handleStatus reports metrics, the active-run count and static host info.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.registry.IncRequests()

	systemInfo := map[string]interface{}{}
	if count, err := s.sysinfo.CPUCount(r.Context()); err == nil {
		systemInfo["cpu_count"] = count
	}
	if snap, err := s.sysinfo.Sample(r.Context()); err == nil {
		systemInfo["memory_total_gb"] = snap.MemoryTotalGB
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"active_stress_processes": s.runner.ActiveCount(),
		"metrics":                 s.registry.Snapshot(),
		"system_info":             systemInfo,
		"timestamp":               time.Now().Format(time.RFC3339),
	})
}

// handleStress starts a stress run. The response returns as soon as the
// process is spawned; it never waits for run completion.
func (s *Server) handleStress(w http.ResponseWriter, r *http.Request) {
	s.registry.IncRequests()

	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{"error": "method not allowed"})
		return
	}

	req, err := parseStressRequest(r)
	if err != nil {
		s.respondStressError(w, r, http.StatusBadRequest, err)
		return
	}

	runID, err := s.runner.StartRun(req)
	switch {
	case errors.Is(err, stress.ErrInvalidParameter):
		s.respondStressError(w, r, http.StatusBadRequest, err)
		return
	case errors.Is(err, stress.ErrToolMissing):
		s.respondStressError(w, r, http.StatusInternalServerError, err)
		return
	case err != nil:
		s.logger.Error("Failed to start stress run", zap.Error(err))
		s.respondStressError(w, r, http.StatusInternalServerError, err)
		return
	}

	response := map[string]interface{}{
		"message": "Stress test started",
		"run_id":  runID,
		"parameters": map[string]interface{}{
			"cpu_workers":      req.CPUWorkers,
			"memory_workers":   req.MemoryWorkers,
			"duration_seconds": req.DurationSeconds,
			"memory_size":      req.MemorySize,
		},
		"timestamp": time.Now().Format(time.RFC3339),
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, response)
		return
	}
	writeFragment(w, fmt.Sprintf(
		`<div class="status success">Stress test started!<br>CPU Workers: %d, Memory Workers: %d<br>Duration: %ds, Memory Size: %s</div>
<script>setTimeout(() => window.location.href='/', 3000);</script>`,
		req.CPUWorkers, req.MemoryWorkers, req.DurationSeconds, req.MemorySize))
}

func (s *Server) respondStressError(w http.ResponseWriter, r *http.Request, code int, err error) {
	if wantsJSON(r) {
		writeJSON(w, code, map[string]interface{}{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_, _ = fmt.Fprintf(w,
		`<div class="status error">Error: %s</div>
<script>setTimeout(() => window.location.href='/', 3000);</script>`, err)
}

// handleStop terminates all active stress runs.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.registry.IncRequests()

	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{"error": "method not allowed"})
		return
	}

	result := s.runner.StopAll()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":     fmt.Sprintf("%d stress tests stopped", result.Stopped),
		"stopped":     result.Stopped,
		"not_stopped": result.NotStopped,
		"timestamp":   time.Now().Format(time.RFC3339),
	})
}

// handleEcho dispatches one probe to the downstream echo service.
func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	s.registry.IncRequests()

	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{"error": "method not allowed"})
		return
	}

	req := parseEchoRequest(r)
	result := s.echo.Call(req)

	if wantsJSON(r) {
		code := http.StatusOK
		if !result.Success {
			code = http.StatusInternalServerError
		}
		writeJSON(w, code, result)
		return
	}

	if result.Success {
		body, _ := json.MarshalIndent(result.Response, "", "  ")
		probeNote := ""
		if req.InjectProbe {
			probeNote = "Vulnerable payload sent!<br>"
		}
		writeFragment(w, fmt.Sprintf(
			`<div class="status success">Echo service response!<br>Method: %s<br>Message: %s<br>%s<br>Response: %s</div>
<script>setTimeout(() => window.location.href='/', 5000);</script>`,
			req.Method, req.Message, probeNote, body))
		return
	}
	writeFragment(w, fmt.Sprintf(
		`<div class="status error">Echo service error: %s</div>
<script>setTimeout(() => window.location.href='/', 3000);</script>`, result.Error))
}

// parseStressRequest reads parameters from a JSON or form body, applying
// the web UI defaults for missing fields.
func parseStressRequest(r *http.Request) (stress.RunRequest, error) {
	req := stress.RunRequest{
		CPUWorkers:      2,
		MemoryWorkers:   1,
		DurationSeconds: 30,
		MemorySize:      "256M",
	}

	if isJSONBody(r) {
		var body struct {
			CPUWorkers      *int    `json:"cpu_workers"`
			MemoryWorkers   *int    `json:"memory_workers"`
			DurationSeconds *int    `json:"duration_seconds"`
			Duration        *int    `json:"duration"`
			MemorySize      *string `json:"memory_size"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return req, fmt.Errorf("%w: %v", stress.ErrInvalidParameter, err)
		}
		if body.CPUWorkers != nil {
			req.CPUWorkers = *body.CPUWorkers
		}
		if body.MemoryWorkers != nil {
			req.MemoryWorkers = *body.MemoryWorkers
		}
		if body.DurationSeconds != nil {
			req.DurationSeconds = *body.DurationSeconds
		} else if body.Duration != nil {
			req.DurationSeconds = *body.Duration
		}
		if body.MemorySize != nil {
			req.MemorySize = *body.MemorySize
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return req, fmt.Errorf("%w: %v", stress.ErrInvalidParameter, err)
	}
	if v := r.PostFormValue("cpu_workers"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("%w: cpu_workers %q", stress.ErrInvalidParameter, v)
		}
		req.CPUWorkers = n
	}
	if v := r.PostFormValue("memory_workers"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("%w: memory_workers %q", stress.ErrInvalidParameter, v)
		}
		req.MemoryWorkers = n
	}
	for _, key := range []string{"duration_seconds", "duration"} {
		if v := r.PostFormValue(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return req, fmt.Errorf("%w: %s %q", stress.ErrInvalidParameter, key, v)
			}
			req.DurationSeconds = n
			break
		}
	}
	if v := r.PostFormValue("memory_size"); v != "" {
		req.MemorySize = v
	}
	return req, nil
}

// parseEchoRequest reads echo parameters from a JSON or form body.
func parseEchoRequest(r *http.Request) echo.Request {
	req := echo.Request{
		Message: "Hello from Load Test!",
		Method:  http.MethodPost,
	}

	if isJSONBody(r) {
		var body struct {
			Message     *string `json:"message"`
			Method      *string `json:"method"`
			InjectProbe bool    `json:"vulnerable_payload"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			if body.Message != nil {
				req.Message = *body.Message
			}
			if body.Method != nil {
				req.Method = strings.ToUpper(*body.Method)
			}
			req.InjectProbe = body.InjectProbe
		}
		return req
	}

	if err := r.ParseForm(); err != nil {
		return req
	}
	if v := r.PostFormValue("message"); v != "" {
		req.Message = v
	}
	if v := r.PostFormValue("method"); v != "" {
		req.Method = strings.ToUpper(v)
	}
	req.InjectProbe = r.PostFormValue("vulnerable_payload") == "true"
	return req
}

func isJSONBody(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Content-Type"), "application/json")
}

// wantsJSON decides between a JSON response and an HTML fragment: JSON
// requests get JSON back, as do clients that ask for it explicitly.
func wantsJSON(r *http.Request) bool {
	return isJSONBody(r) || strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeFragment(w http.ResponseWriter, html string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(html))
}
