package probe

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

// BandwidthResult is one bandwidth probe's outcome.
type BandwidthResult struct {
	Mbps float64
}

// bandwidthAck mirrors the JSON body a peer's /bandwidth_test handler
// returns.
type bandwidthAck struct {
	ReceivedBytes int64 `json:"received_bytes"`
	ElapsedMS     int64 `json:"elapsed_ms"`
}

// Bandwidth generates sizeMB mebibytes of random data, POSTs it to the
// peer's /bandwidth_test, and computes throughput from wall-clock time.
// Per spec.md §4.2, a timeout, non-2xx, or transport error yields no
// sample (ok=false) rather than a zero value.
func Bandwidth(ctx context.Context, client *http.Client, ip string, port int, sizeMB int, timeout time.Duration) (result BandwidthResult, ok bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload := make([]byte, sizeMB*1024*1024)
	if _, err := rand.Read(payload); err != nil {
		return BandwidthResult{}, false, fmt.Errorf("generate bandwidth payload: %w", err)
	}

	url := "http://" + net.JoinHostPort(ip, strconv.Itoa(port)) + "/bandwidth_test"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return BandwidthResult{}, false, fmt.Errorf("build bandwidth request: %w", err)
	}

	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return BandwidthResult{}, false, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return BandwidthResult{}, false, nil
	}

	var ack bandwidthAck
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return BandwidthResult{}, false, nil
	}

	seconds := elapsed.Seconds()
	if seconds <= 0 {
		return BandwidthResult{}, false, nil
	}
	mbps := (float64(len(payload)) * 8) / (seconds * 1_000_000)
	return BandwidthResult{Mbps: mbps}, true, nil
}
