package member

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/netring-io/netring/pkg/apierrors"
	"github.com/netring-io/netring/pkg/config"
	"github.com/netring-io/netring/pkg/registry"
	"github.com/netring-io/netring/pkg/store"
)

func newTestRegistryServer(t *testing.T) (*httptest.Server, *registry.Directory) {
	t.Helper()
	dir := registry.NewDirectory(store.NewMemory(), zap.NewNop(), 300*time.Second, 3600*time.Second, 30*time.Second)
	srv := registry.NewServer(dir, zap.NewNop(), nil, "", func() (config.ExpectedLocationsFile, bool) {
		return config.ExpectedLocationsFile{}, false
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, dir
}

func TestRegistryClientRegisterAndHeartbeat(t *testing.T) {
	ts, _ := newTestRegistryServer(t)
	c := NewRegistryClient(ts.URL, &http.Client{})

	id, err := c.Register(context.Background(), "", "us-east", "10.0.0.1", 9000)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if id == "" {
		t.Fatalf("Register returned empty instance id")
	}

	if err := c.Heartbeat(context.Background(), id); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
}

func TestRegistryClientHeartbeatUnknownInstanceIsNotFound(t *testing.T) {
	ts, _ := newTestRegistryServer(t)
	c := NewRegistryClient(ts.URL, &http.Client{})

	err := c.Heartbeat(context.Background(), "does-not-exist")
	if !apierrors.IsNotFound(err) {
		t.Fatalf("Heartbeat error = %v, want NotFound", err)
	}
}

func TestRegistryClientMembersListsRegistered(t *testing.T) {
	ts, _ := newTestRegistryServer(t)
	c := NewRegistryClient(ts.URL, &http.Client{})

	if _, err := c.Register(context.Background(), "", "us-east", "10.0.0.1", 9000); err != nil {
		t.Fatalf("Register: %v", err)
	}

	members, err := c.Members(context.Background())
	if err != nil {
		t.Fatalf("Members: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("len(members) = %d, want 1", len(members))
	}
}

func TestRegistryClientReportMetricsUnknownInstanceIsNotFound(t *testing.T) {
	ts, _ := newTestRegistryServer(t)
	c := NewRegistryClient(ts.URL, &http.Client{})

	err := c.ReportMetrics(context.Background(), "does-not-exist", map[string]any{})
	if !apierrors.IsNotFound(err) {
		t.Fatalf("ReportMetrics error = %v, want NotFound", err)
	}
}

func TestRegistryClientDeregisterThenHeartbeatIsGone(t *testing.T) {
	ts, _ := newTestRegistryServer(t)
	c := NewRegistryClient(ts.URL, &http.Client{})

	id, err := c.Register(context.Background(), "", "us-east", "10.0.0.1", 9000)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := c.Deregister(context.Background(), id); err != nil {
		t.Fatalf("Deregister: %v", err)
	}

	err = c.Heartbeat(context.Background(), id)
	if !apierrors.IsGone(err) {
		t.Fatalf("Heartbeat after deregister error = %v, want Gone", err)
	}
}
