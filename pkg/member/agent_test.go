package member

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/netring-io/netring/pkg/config"
	"github.com/netring-io/netring/pkg/probe"
	"github.com/netring-io/netring/pkg/supervisor"
)

func newTestAgent(t *testing.T, registryURL string) *Agent {
	t.Helper()
	cfg := config.DefaultMember()
	cfg.Location = "us-east"
	cfg.HostIP = "10.0.0.9"
	cfg.Registry.URL = registryURL
	cfg.Server.Port = 9000

	a, err := NewAgent(cfg, t.TempDir(), "test", zap.NewNop())
	if err != nil {
		t.Fatalf("NewAgent: %v", err)
	}
	a.tracer = &probe.FakeTracer{Result: &probe.TraceResult{TotalHops: 3, MaxHopLatencyMs: 12}}
	return a
}

func TestAgentAttemptRegisterMarksRegistered(t *testing.T) {
	ts, _ := newTestRegistryServer(t)
	a := newTestAgent(t, ts.URL)

	a.attemptRegister(context.Background())

	if !a.isRegistered() {
		t.Fatalf("isRegistered() = false, want true after successful register")
	}
}

func TestAgentDoHeartbeatReRegistersAfterGone(t *testing.T) {
	ts, _ := newTestRegistryServer(t)
	a := newTestAgent(t, ts.URL)

	a.attemptRegister(context.Background())
	if err := a.registry.Deregister(context.Background(), a.instanceID); err != nil {
		t.Fatalf("Deregister: %v", err)
	}

	a.doHeartbeat(context.Background())

	if a.isRegistered() {
		t.Fatalf("isRegistered() = true, want false after Gone heartbeat response")
	}
}

func TestAgentDoPeerPollFiltersSelfAndInactive(t *testing.T) {
	ts, _ := newTestRegistryServer(t)
	a := newTestAgent(t, ts.URL)
	a.attemptRegister(context.Background())

	other := NewRegistryClient(ts.URL, &http.Client{})
	peerID, err := other.Register(context.Background(), "", "us-west", "10.0.0.2", 9000)
	if err != nil {
		t.Fatalf("register peer: %v", err)
	}

	a.doPeerPoll(context.Background())

	peers := a.cache.Peers()
	if len(peers) != 1 || peers[0].InstanceID != peerID {
		t.Fatalf("peers = %+v, want exactly the peer instance", peers)
	}
}

func TestAgentRunConnectivityProbesRecordsSamples(t *testing.T) {
	peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer peer.Close()

	ts, _ := newTestRegistryServer(t)
	a := newTestAgent(t, ts.URL)

	host, port := splitHostPort(t, peer.URL)
	a.cache.Replace([]Peer{{InstanceID: "peer-1", Location: "us-west", IP: host, Port: port}})

	a.runConnectivityProbes(context.Background())

	snap := a.metrics.Snapshot()
	if len(snap.ConnectivityTCP) != 1 {
		t.Fatalf("len(ConnectivityTCP) = %d, want 1", len(snap.ConnectivityTCP))
	}
	if len(snap.ConnectivityHTTP) != len(a.cfg.Checks.HTTPEndpoints) {
		t.Fatalf("len(ConnectivityHTTP) = %d, want %d", len(snap.ConnectivityHTTP), len(a.cfg.Checks.HTTPEndpoints))
	}
}

func TestAgentRunTracerouteProbesRecordsSample(t *testing.T) {
	ts, _ := newTestRegistryServer(t)
	a := newTestAgent(t, ts.URL)
	a.cache.Replace([]Peer{{InstanceID: "peer-1", Location: "us-west", IP: "10.0.0.2", Port: 9000}})

	a.runTracerouteProbes(context.Background())

	snap := a.metrics.Snapshot()
	if len(snap.TracerouteTests) != 1 {
		t.Fatalf("len(TracerouteTests) = %d, want 1", len(snap.TracerouteTests))
	}
}

func TestAgentShutdownDeregisters(t *testing.T) {
	ts, dir := newTestRegistryServer(t)
	a := newTestAgent(t, ts.URL)
	a.attemptRegister(context.Background())
	a.sup = supervisor.New(context.Background(), zap.NewNop())

	a.Shutdown(context.Background())

	members, err := dir.Members(context.Background())
	if err != nil {
		t.Fatalf("Members: %v", err)
	}
	if len(members) != 1 || members[0].Status != "deregistered" {
		t.Fatalf("members = %+v, want single deregistered record", members)
	}
}

// splitHostPort is a small test helper over net.SplitHostPort that
// returns the port as an int, since Peer.Port is typed that way.
func splitHostPort(t *testing.T, url string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(strings.TrimPrefix(url, "http://"))
	if err != nil {
		t.Fatalf("SplitHostPort(%q): %v", url, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("Atoi(%q): %v", portStr, err)
	}
	return host, port
}
