package registry

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/netring-io/netring/pkg/apierrors"
	"github.com/netring-io/netring/pkg/config"
	"github.com/netring-io/netring/pkg/httputil"
	"github.com/netring-io/netring/pkg/metrics"
	"github.com/netring-io/netring/pkg/supervisor"
)

const maxReportMetricsBytes = 1 << 20 // 1 MiB

// Server wires a Directory to the HTTP surface spec.md §6.1 describes.
type Server struct {
	dir        *Directory
	logger     *zap.Logger
	supervisor *supervisor.Supervisor
	adminToken string
	startedAt  time.Time
	prom       *metrics.RegistryMetrics

	expectedLocations func() (config.ExpectedLocationsFile, bool)
}

// NewServer builds a Server. expectedLocations returns the currently
// loaded expected-locations config and whether analysis is enabled; it
// is a func so a config reload doesn't require rebuilding the server.
func NewServer(dir *Directory, logger *zap.Logger, sup *supervisor.Supervisor, adminToken string, expectedLocations func() (config.ExpectedLocationsFile, bool)) *Server {
	return &Server{
		dir:               dir,
		logger:            logger,
		supervisor:        sup,
		adminToken:        adminToken,
		startedAt:         time.Now(),
		prom:              metrics.NewRegistryMetrics(),
		expectedLocations: expectedLocations,
	}
}

// Router builds the chi router for the registry's HTTP API.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Post("/register", s.handleRegister)
	r.Post("/heartbeat", s.handleHeartbeat)
	r.Post("/deregister", s.handleDeregister)
	r.Get("/members", s.handleMembers)
	r.Get("/members_with_analysis", s.handleMembersWithAnalysis)
	r.Post("/report_metrics", s.handleReportMetrics)
	r.Get("/metrics", s.handleMetrics)
	r.Get("/metrics/prometheus", s.handlePrometheus)
	r.Get("/health", s.handleHealth)
	r.Post("/clear", s.handleClear)

	return r
}

type registerRequest struct {
	InstanceID string `json:"instance_id"`
	Location   string `json:"location"`
	IP         string `json:"ip"`
	Port       int    `json:"port"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	m, err := s.dir.Register(r.Context(), req.InstanceID, req.Location, req.IP, req.Port)
	if err != nil {
		s.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"instance_id": m.InstanceID,
		"status":      "registered",
	})
}

type instanceIDRequest struct {
	InstanceID string `json:"instance_id"`
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req instanceIDRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !httputil.RequireNotEmpty(w, req.InstanceID, "instance_id") {
		return
	}

	if err := s.dir.Heartbeat(r.Context(), req.InstanceID); err != nil {
		s.writeError(w, err)
		return
	}
	httputil.WriteSuccess(w)
}

func (s *Server) handleDeregister(w http.ResponseWriter, r *http.Request) {
	var req instanceIDRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !httputil.RequireNotEmpty(w, req.InstanceID, "instance_id") {
		return
	}

	if err := s.dir.Deregister(r.Context(), req.InstanceID); err != nil {
		s.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"status": "deregistered"})
}

func (s *Server) handleMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.dir.Members(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.refreshPromMembers(members)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"members": members})
}

func (s *Server) refreshPromMembers(members []Member) {
	active := make([]metrics.MemberInfo, 0, len(members))
	for _, m := range members {
		if m.Status == StatusActive {
			active = append(active, metrics.MemberInfo{
				Location: m.Location, InstanceID: m.InstanceID, LastSeen: m.LastSeen,
			})
		}
	}
	s.prom.UpdateMembers(active)
}

func (s *Server) handlePrometheus(w http.ResponseWriter, r *http.Request) {
	s.prom.Handler().ServeHTTP(w, r)
}

func (s *Server) handleMembersWithAnalysis(w http.ResponseWriter, r *http.Request) {
	members, err := s.dir.Members(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	expected, enabled := s.expectedLocations()
	var analysis Analysis
	if enabled {
		analysis = s.dir.Analyze(members, expected, time.Now())
	} else {
		analysis = Analysis{Enabled: false, Timestamp: time.Now().Unix()}
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"members":          members,
		"missing_analysis": analysis,
	})
}

type reportMetricsRequest struct {
	InstanceID string          `json:"instance_id"`
	Snapshot   json.RawMessage `json:"snapshot"`
}

func (s *Server) handleReportMetrics(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxReportMetricsBytes)

	var req reportMetricsRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusRequestEntityTooLarge, "request body too large or malformed")
		return
	}
	if !httputil.RequireNotEmpty(w, req.InstanceID, "instance_id") {
		return
	}

	if err := s.dir.ReportMetrics(r.Context(), req.InstanceID, req.Snapshot); err != nil {
		s.writeError(w, err)
		return
	}
	httputil.WriteSuccess(w)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snapshots, err := s.dir.MetricsSnapshots(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"metrics": snapshots})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	var tasks map[string]supervisor.TaskStatus
	if s.supervisor != nil {
		tasks = s.supervisor.Snapshot()
		for _, t := range tasks {
			if !t.Alive {
				status = "degraded"
			}
		}
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":   status,
		"tasks":    tasks,
		"uptime_s": int(time.Since(s.startedAt).Seconds()),
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if s.adminToken != "" {
		got := r.Header.Get("X-Admin-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.adminToken)) != 1 {
			httputil.WriteError(w, http.StatusForbidden, "invalid or missing admin token")
			return
		}
	}

	n, err := s.dir.Clear(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"keys_deleted": n})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := apierrors.StatusCode(err)
	if code >= 500 {
		s.logger.Error("request failed", zap.Error(err), zap.Int("status", code))
	}
	httputil.WriteError(w, code, err.Error())
}
