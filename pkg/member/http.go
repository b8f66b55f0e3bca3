package member

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/netring-io/netring/pkg/httputil"
)

// maxBandwidthBody bounds the /bandwidth_test request body, per
// spec.md §4.2's server-side bandwidth probe contract (default 16 MiB,
// reject beyond with 413).
const maxBandwidthBody = 16 << 20

// Server wires an Agent to the local HTTP surface spec.md §6.2
// describes.
type Server struct {
	agent *Agent
}

// NewServer builds a Server.
func NewServer(agent *Agent) *Server {
	return &Server{agent: agent}
}

// Router builds the chi router for the member's HTTP API.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)
	r.Post("/bandwidth_test", s.handleBandwidthTest)

	return r
}

type healthResponse struct {
	Status       string         `json:"status"`
	InstanceID   string         `json:"instance_id"`
	Location     string         `json:"location"`
	MembersCount int            `json:"members_count"`
	Tasks        map[string]any `json:"tasks"`
	Timestamp    int64          `json:"timestamp"`
}

// handleHealth reports "degraded" when any supervised task has
// restarted within the last hour or the registry has been unreachable
// longer than two heartbeat intervals, per spec.md §7's user-visible
// behavior paragraph; "healthy" otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.agent.sup.Snapshot()
	tasks := make(map[string]any, len(snap))
	degraded := false

	now := time.Now()
	for name, st := range snap {
		tasks[name] = map[string]any{
			"alive":         st.Alive,
			"last_tick":     st.LastTick.Unix(),
			"restart_count": st.RestartCount,
		}
		if st.RestartCount > 0 && now.Sub(st.LastTick) < time.Hour {
			degraded = true
		}
	}

	twoHeartbeats := 2 * s.agent.cfg.HeartbeatInterval()
	if s.agent.registryUnreachableFor() > twoHeartbeats {
		degraded = true
	}

	status := "healthy"
	if degraded {
		status = "degraded"
	}

	httputil.WriteJSON(w, http.StatusOK, healthResponse{
		Status:       status,
		InstanceID:   s.agent.instanceID,
		Location:     s.agent.cfg.Location,
		MembersCount: s.agent.cache.Len(),
		Tasks:        tasks,
		Timestamp:    now.Unix(),
	})
}

// handleMetrics serves Prometheus text exposition of every probe
// metric, per spec.md §6.2.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.agent.metrics.Handler().ServeHTTP(w, r)
}

type bandwidthTestResponse struct {
	ReceivedBytes int64 `json:"received_bytes"`
	ElapsedMS     int64 `json:"elapsed_ms"`
}

// handleBandwidthTest drains the request body (bounded to
// maxBandwidthBody) and acknowledges how much was received, per
// spec.md §4.2's server-side bandwidth probe contract.
func (s *Server) handleBandwidthTest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	body := http.MaxBytesReader(w, r.Body, maxBandwidthBody)
	n, err := io.Copy(io.Discard, body)
	if err != nil {
		httputil.WriteError(w, http.StatusRequestEntityTooLarge, "request body exceeds maximum bandwidth test size")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, bandwidthTestResponse{
		ReceivedBytes: n,
		ElapsedMS:     time.Since(start).Milliseconds(),
	})
}
