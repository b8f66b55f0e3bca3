package member

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/netring-io/netring/pkg/apierrors"
)

// RegistryClient talks to a registry's HTTP API (spec.md §6.1) on
// behalf of a member.
type RegistryClient struct {
	baseURL string
	http    *http.Client
}

// NewRegistryClient builds a client against baseURL (e.g.
// "http://registry:8080"), using httpClient for all requests — the
// member's single pooled client, per spec.md §5's shared-resources
// table.
func NewRegistryClient(baseURL string, httpClient *http.Client) *RegistryClient {
	return &RegistryClient{baseURL: baseURL, http: httpClient}
}

type registerRequest struct {
	InstanceID string `json:"instance_id,omitempty"`
	Location   string `json:"location"`
	IP         string `json:"ip"`
	Port       int    `json:"port"`
}

type registerResponse struct {
	InstanceID string `json:"instance_id"`
	Status     string `json:"status"`
}

// Register calls POST /register and returns the instance id the
// registry confirmed (identical to instanceID when instanceID is
// non-empty).
func (c *RegistryClient) Register(ctx context.Context, instanceID, location, ip string, port int) (string, error) {
	var resp registerResponse
	err := c.postJSON(ctx, "/register", registerRequest{
		InstanceID: instanceID,
		Location:   location,
		IP:         ip,
		Port:       port,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.InstanceID, nil
}

type instanceRequest struct {
	InstanceID string `json:"instance_id"`
}

// Heartbeat calls POST /heartbeat. A Gone/NotFound response surfaces
// as the corresponding apierrors kind so the registration maintainer
// task can recognize it and re-register.
func (c *RegistryClient) Heartbeat(ctx context.Context, instanceID string) error {
	return c.postJSON(ctx, "/heartbeat", instanceRequest{InstanceID: instanceID}, nil)
}

// Deregister calls POST /deregister, best-effort (caller typically
// bounds this with a short timeout during shutdown).
func (c *RegistryClient) Deregister(ctx context.Context, instanceID string) error {
	return c.postJSON(ctx, "/deregister", instanceRequest{InstanceID: instanceID}, nil)
}

// MemberRecord mirrors a registry member record, per spec.md §6.1.
type MemberRecord struct {
	InstanceID     string `json:"instance_id"`
	Location       string `json:"location"`
	IP             string `json:"ip"`
	Port           int    `json:"port"`
	RegisteredAt   int64  `json:"registered_at"`
	LastSeen       int64  `json:"last_seen"`
	Status         string `json:"status"`
	DeregisteredAt *int64 `json:"deregistered_at,omitempty"`
}

type membersResponse struct {
	Members []MemberRecord `json:"members"`
}

// Members calls GET /members.
func (c *RegistryClient) Members(ctx context.Context) ([]MemberRecord, error) {
	var resp membersResponse
	if err := c.getJSON(ctx, "/members", &resp); err != nil {
		return nil, err
	}
	return resp.Members, nil
}

type reportMetricsRequest struct {
	InstanceID string      `json:"instance_id"`
	Snapshot   interface{} `json:"snapshot"`
}

// ReportMetrics calls POST /report_metrics with the given snapshot,
// typically a metrics.Snapshot.
func (c *RegistryClient) ReportMetrics(ctx context.Context, instanceID string, snapshot interface{}) error {
	return c.postJSON(ctx, "/report_metrics", reportMetricsRequest{
		InstanceID: instanceID,
		Snapshot:   snapshot,
	}, nil)
}

func (c *RegistryClient) postJSON(ctx context.Context, path string, body, out interface{}) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *RegistryClient) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

func (c *RegistryClient) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return apierrors.NewTransient(req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return apierrors.NewNotFound("member", "")
	}
	if resp.StatusCode == http.StatusGone {
		return apierrors.NewGone("member", "")
	}
	if resp.StatusCode >= 500 {
		return apierrors.NewTransient(req.URL.Path, fmt.Errorf("registry returned %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return apierrors.NewInvalidInput(req.URL.Path, string(body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", req.URL.Path, err)
	}
	return nil
}
