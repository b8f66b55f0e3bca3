package probe

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"
)

// HTTPResult is one HTTP endpoint probe's outcome.
type HTTPResult struct {
	Success    bool
	StatusCode int
	DurationMS float64
}

// HTTP GETs http://ip:port<endpoint> with the given client and timeout.
// Per spec.md §4.2, success is any status in [200, 400).
func HTTP(ctx context.Context, client *http.Client, ip string, port int, endpoint string, timeout time.Duration) HTTPResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := "http://" + net.JoinHostPort(ip, strconv.Itoa(port)) + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return HTTPResult{Success: false}
	}

	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return HTTPResult{Success: false, DurationMS: float64(elapsed.Milliseconds())}
	}
	defer resp.Body.Close()

	success := resp.StatusCode >= 200 && resp.StatusCode < 400
	return HTTPResult{Success: success, StatusCode: resp.StatusCode, DurationMS: float64(elapsed.Milliseconds())}
}

// NewClient builds the pooled HTTP client spec.md §5's shared-resources
// section describes: max 5 connections per host, 30s keep-alive.
func NewClient() *http.Client {
	transport := &http.Transport{
		MaxConnsPerHost:     5,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     30 * time.Second,
	}
	return &http.Client{Transport: transport}
}
