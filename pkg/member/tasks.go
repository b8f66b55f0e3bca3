package member

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/netring-io/netring/pkg/apierrors"
	"github.com/netring-io/netring/pkg/probe"
	"github.com/netring-io/netring/pkg/supervisor"
)

// Start registers all six background tasks spec.md §4.2's scheduling
// table names under sup, and performs the initial registration attempt
// synchronously so the agent is registered (or has tried) before the
// caller's HTTP server starts accepting traffic.
func (a *Agent) Start(ctx context.Context, sup *supervisor.Supervisor) {
	a.sup = sup

	a.attemptRegister(ctx)

	sup.Go("registration-maintainer", a.registrationMaintainerTask)
	sup.Go("heartbeat", a.heartbeatTask)
	sup.Go("peer-poll", a.peerPollTask)
	sup.Go("connectivity-probe", a.connectivityProbeTask)
	sup.Go("bandwidth-probe", a.bandwidthProbeTask)
	sup.Go("traceroute-probe", a.tracerouteProbeTask)
	sup.Go("metrics-push", a.metricsPushTask)
}

// attemptRegister calls /register once. Its result is swallowed into a
// log (not surfaced) — the registration maintainer task retries on its
// own schedule if this fails, per spec.md §4.2's "event-driven"
// responsibility entry.
func (a *Agent) attemptRegister(ctx context.Context) {
	rctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	id, err := a.registry.Register(rctx, a.instanceID, a.cfg.Location, a.hostIP, a.cfg.Server.Port)
	if err != nil {
		a.warn.Warn("register", "initial registration failed", zap.Error(err))
		return
	}
	a.instanceID = id
	a.setRegistered(true)
	a.markRegistrySuccess()
}

// registrationMaintainerTask is event-driven: it wakes on its own short
// poll to check the registered flag rather than on a long fixed
// interval, since re-registration must happen promptly after a
// Gone/NotFound heartbeat response (spec.md §4.2).
func (a *Agent) registrationMaintainerTask(ctx context.Context, tick func()) error {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !a.isRegistered() {
				rctx, cancel := context.WithTimeout(ctx, 10*time.Second)
				id, err := a.registry.Register(rctx, a.instanceID, a.cfg.Location, a.hostIP, a.cfg.Server.Port)
				cancel()
				if err != nil {
					a.warn.Warn("register", "re-registration failed", zap.Error(err))
				} else {
					a.instanceID = id
					a.setRegistered(true)
					a.markRegistrySuccess()
				}
			}
			tick()
		}
	}
}

func (a *Agent) heartbeatTask(ctx context.Context, tick func()) error {
	ticker := time.NewTicker(a.cfg.HeartbeatInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.doHeartbeat(ctx)
			tick()
		}
	}
}

func (a *Agent) doHeartbeat(ctx context.Context) {
	if !a.isRegistered() {
		return
	}
	hctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err := a.registry.Heartbeat(hctx, a.instanceID)
	switch {
	case err == nil:
		a.markRegistrySuccess()
	case apierrors.IsGone(err) || apierrors.IsNotFound(err):
		a.setRegistered(false)
	case apierrors.IsTransient(err):
		a.warn.Warn("heartbeat", "heartbeat to registry failed", zap.Error(err))
	default:
		a.warn.Warn("heartbeat", "heartbeat to registry failed", zap.Error(err))
	}
}

func (a *Agent) peerPollTask(ctx context.Context, tick func()) error {
	ticker := time.NewTicker(a.cfg.PollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.doPeerPoll(ctx)
			tick()
		}
	}
}

func (a *Agent) doPeerPoll(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	records, err := a.registry.Members(pctx)
	if err != nil {
		a.warn.Warn("peer-poll", "poll of /members failed", zap.Error(err))
		return
	}
	a.markRegistrySuccess()

	peers := make([]Peer, 0, len(records))
	for _, r := range records {
		if r.Status != "active" || r.InstanceID == a.instanceID {
			continue
		}
		peers = append(peers, Peer{
			InstanceID: r.InstanceID,
			Location:   r.Location,
			IP:         r.IP,
			Port:       r.Port,
		})
	}
	a.cache.Replace(peers)
}

// connectivityProbeTask runs TCP and HTTP probes to every cached peer,
// per spec.md §4.2. Probes of the same type to the same peer never
// overlap a scheduled tick: this task does all of its work within one
// tick before the next ticker fires, rather than launching unbounded
// concurrent probe goroutines.
func (a *Agent) connectivityProbeTask(ctx context.Context, tick func()) error {
	ticker := time.NewTicker(a.cfg.CheckInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.runConnectivityProbes(ctx)
			tick()
		}
	}
}

func (a *Agent) runConnectivityProbes(ctx context.Context) {
	for _, p := range a.cache.Peers() {
		tcpCtx, cancel := context.WithTimeout(ctx, a.cfg.TCPTimeout()+time.Second)
		res := probe.TCP(tcpCtx, p.IP, p.Port, a.cfg.TCPTimeout())
		cancel()
		a.metrics.RecordTCP(p.Location, p.InstanceID, p.IP, res.Success, res.DurationMS)

		for _, endpoint := range a.cfg.Checks.HTTPEndpoints {
			hctx, hcancel := context.WithTimeout(ctx, a.cfg.HTTPTimeout()+time.Second)
			hres := probe.HTTP(hctx, a.client, p.IP, p.Port, endpoint, a.cfg.HTTPTimeout())
			hcancel()
			a.metrics.RecordHTTP(p.Location, p.InstanceID, p.IP, endpoint, hres.Success, hres.DurationMS)
		}
	}
}

// bandwidthProbeTask runs a 1 MB transfer to each peer on its own
// jittered schedule: each target's next run time is
// now + interval + rand(-10%, +10%), per spec.md §4.2, rather than a
// single shared ticker that would synchronize every member's transfer.
func (a *Agent) bandwidthProbeTask(ctx context.Context, tick func()) error {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.runDueBandwidthProbes(ctx)
			tick()
		}
	}
}

func (a *Agent) runDueBandwidthProbes(ctx context.Context) {
	now := time.Now()
	for _, p := range a.cache.Peers() {
		dueRaw, ok := a.bandwidthNextRun.Load(p.InstanceID)
		due, _ := dueRaw.(time.Time)
		if ok && now.Before(due) {
			continue
		}

		bctx, cancel := context.WithTimeout(ctx, a.cfg.BandwidthTestInterval())
		result, succeeded, err := probe.Bandwidth(bctx, a.client, p.IP, p.Port, a.cfg.Checks.BandwidthTestSizeMB, a.cfg.BandwidthTestInterval())
		cancel()
		if err != nil {
			a.warn.Warn("bandwidth-probe", "bandwidth probe errored", zap.String("target", p.InstanceID), zap.Error(err))
		} else if succeeded {
			a.metrics.RecordBandwidth(p.Location, p.InstanceID, p.IP, result.Mbps)
		}

		jitter := time.Duration(float64(a.cfg.BandwidthTestInterval()) * (rand.Float64()*0.2 - 0.1))
		a.bandwidthNextRun.Store(p.InstanceID, now.Add(a.cfg.BandwidthTestInterval()+jitter))
	}
}

func (a *Agent) tracerouteProbeTask(ctx context.Context, tick func()) error {
	ticker := time.NewTicker(a.cfg.TracerouteInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.runTracerouteProbes(ctx)
			tick()
		}
	}
}

func (a *Agent) runTracerouteProbes(ctx context.Context) {
	for _, p := range a.cache.Peers() {
		deadline := time.Now().Add(a.cfg.TracerouteTimeout())
		tctx, cancel := context.WithDeadline(ctx, deadline)
		result, err := a.tracer.Trace(tctx, p.IP, deadline)
		cancel()
		if err != nil {
			a.warn.Warn("traceroute-probe", "traceroute failed", zap.String("target", p.InstanceID), zap.Error(err))
			continue
		}
		if result == nil {
			continue
		}
		a.metrics.RecordTraceroute(p.Location, p.InstanceID, result.TotalHops, result.MaxHopLatencyMs)
	}
}

// metricsPushTask runs on the poll interval: spec.md §6.4 lists no
// separate configuration knob for the push interval, and its default
// (30s) matches the poll interval's default exactly, so the two share
// one config field rather than inventing an unconfigurable constant.
func (a *Agent) metricsPushTask(ctx context.Context, tick func()) error {
	ticker := time.NewTicker(a.cfg.PollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.doMetricsPush(ctx)
			tick()
		}
	}
}

func (a *Agent) doMetricsPush(ctx context.Context) {
	if !a.isRegistered() {
		return
	}
	snapshot := a.metrics.Snapshot()

	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err := a.registry.ReportMetrics(pctx, a.instanceID, snapshot)
	switch {
	case err == nil:
		a.markRegistrySuccess()
	case apierrors.IsGone(err) || apierrors.IsNotFound(err):
		a.setRegistered(false)
	default:
		a.warn.Warn("metrics-push", "metrics push failed", zap.Error(err))
	}
}
