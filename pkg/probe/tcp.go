// Package probe implements the four peer-probing pipelines spec.md
// §4.2 describes (TCP, HTTP, bandwidth, traceroute), each a small
// stateless function the member's supervised tasks call once per
// scheduled tick.
package probe

import (
	"context"
	"net"
	"strconv"
	"time"
)

// TCPResult is one TCP connectivity probe's outcome.
type TCPResult struct {
	Success    bool
	DurationMS float64
}

// TCP opens a connection to (ip, port) and reports whether it
// completed within timeout. Per spec.md §4.2, success is "connect
// completes" only — no data is exchanged.
func TCP(ctx context.Context, ip string, port int, timeout time.Duration) TCPResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(ip, strconv.Itoa(port)))
	elapsed := time.Since(start)

	if err != nil {
		return TCPResult{Success: false, DurationMS: float64(elapsed.Milliseconds())}
	}
	_ = conn.Close()
	return TCPResult{Success: true, DurationMS: float64(elapsed.Milliseconds())}
}
