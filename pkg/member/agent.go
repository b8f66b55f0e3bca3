package member

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/netring-io/netring/pkg/apierrors"
	"github.com/netring-io/netring/pkg/config"
	"github.com/netring-io/netring/pkg/metrics"
	"github.com/netring-io/netring/pkg/probe"
	"github.com/netring-io/netring/pkg/supervisor"
)

// Agent is one member process's runtime: its identity, its view of
// the ring, its probe pipelines, and the supervisor that keeps all six
// of them alive. It is the single owner of the state spec.md §4.2
// lists: instance id, peer cache, probe-result maps (via
// metrics.Store), and scheduler state.
type Agent struct {
	cfg        config.Member
	instanceID string
	hostIP     string

	logger *zap.Logger
	warn   *warnLimiter

	registry *RegistryClient
	cache    *Cache
	metrics  *metrics.Store
	tracer   probe.Tracer
	client   *http.Client

	sup *supervisor.Supervisor

	registeredMu sync.Mutex
	registered   bool

	lastRegistrySuccessMu sync.Mutex
	lastRegistrySuccess   time.Time

	// bandwidthNextRun holds each target's next scheduled bandwidth
	// test time, jittered per spec.md §4.2 to avoid synchronized load.
	bandwidthNextRun sync.Map // instance_id (string) -> time.Time
}

// NewAgent builds an Agent. stateDir is where the instance id file is
// persisted (spec.md §6.5); version is the build version reported in
// /health and the metrics snapshot's general section.
func NewAgent(cfg config.Member, stateDir, version string, logger *zap.Logger) (*Agent, error) {
	ip, err := DetectIP(cfg.HostIP)
	if err != nil {
		return nil, apierrors.NewFatal("detect member ip", err)
	}

	instanceID, err := LoadOrCreateInstanceID(stateDir, cfg.InstanceID)
	if err != nil {
		return nil, apierrors.NewFatal("load or create instance id", err)
	}

	httpClient := probe.NewClient()

	a := &Agent{
		cfg:        cfg,
		instanceID: instanceID,
		hostIP:     ip,
		logger:     logger,
		warn:       newWarnLimiter(logger),
		registry:   NewRegistryClient(cfg.Registry.URL, httpClient),
		tracer:     probe.NewICMPTracer(),
		client:     httpClient,
	}
	a.metrics = metrics.NewStore(cfg.Location, instanceID, version)
	a.cache = NewCache(a.metrics.DropTarget)
	return a, nil
}

// InstanceID returns the member's persisted identity.
func (a *Agent) InstanceID() string { return a.instanceID }

// HostIP returns the address this member advertises to the registry.
func (a *Agent) HostIP() string { return a.hostIP }

// Metrics exposes the agent's metrics store, for the HTTP /metrics
// handler and for tests.
func (a *Agent) Metrics() *metrics.Store { return a.metrics }

// Cache exposes the agent's peer cache, for the HTTP /health handler
// and for tests.
func (a *Agent) Cache() *Cache { return a.cache }

func (a *Agent) setRegistered(v bool) {
	a.registeredMu.Lock()
	a.registered = v
	a.registeredMu.Unlock()
}

func (a *Agent) isRegistered() bool {
	a.registeredMu.Lock()
	defer a.registeredMu.Unlock()
	return a.registered
}

func (a *Agent) markRegistrySuccess() {
	a.lastRegistrySuccessMu.Lock()
	a.lastRegistrySuccess = time.Now()
	a.lastRegistrySuccessMu.Unlock()
}

// registryUnreachableFor reports how long it has been since the last
// successful registry call.
func (a *Agent) registryUnreachableFor() time.Duration {
	a.lastRegistrySuccessMu.Lock()
	defer a.lastRegistrySuccessMu.Unlock()
	if a.lastRegistrySuccess.IsZero() {
		return 0
	}
	return time.Since(a.lastRegistrySuccess)
}

// Shutdown performs the member's graceful-exit sequence per spec.md
// §5: a best-effort /deregister bounded to 3s, then stopping every
// supervised task. The caller is responsible for draining and closing
// its own HTTP server.
func (a *Agent) Shutdown(ctx context.Context) {
	dctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if a.isRegistered() {
		if err := a.registry.Deregister(dctx, a.instanceID); err != nil {
			a.logger.Warn("deregister on shutdown failed", zap.Error(err))
		}
	}

	if a.sup != nil {
		a.sup.Stop()
	}
}
