package probe

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

const (
	maxHops        = 30
	probesPerHop   = 1
	icmpEchoID     = 0xbeef
	icmpPacketSize = 64
)

// TraceResult is a completed traceroute's summary, per spec.md §4.2.
type TraceResult struct {
	TotalHops       int
	MaxHopLatencyMs float64
}

// Tracer abstracts the traceroute mechanism, per spec.md §9's design
// note, so it can be faked in tests.
type Tracer interface {
	// Trace walks the path to target, returning nil if every hop was
	// unreachable (all "*") or the deadline was hit before any hop
	// replied.
	Trace(ctx context.Context, target string, deadline time.Time) (*TraceResult, error)
}

// ICMPTracer implements Tracer with a TTL-incrementing ICMP echo walk,
// an idiomatic Go alternative to spawning a platform `traceroute`
// binary: open one raw ICMP socket, send an echo with TTL=1,2,3...,
// and read back either an echo reply (destination reached) or a
// time-exceeded message (an intermediate hop). Requires permission to
// open a raw ICMP socket (root, or CAP_NET_RAW on Linux).
type ICMPTracer struct{}

// NewICMPTracer builds an ICMPTracer.
func NewICMPTracer() *ICMPTracer { return &ICMPTracer{} }

func (t *ICMPTracer) Trace(ctx context.Context, target string, deadline time.Time) (*TraceResult, error) {
	dst, err := net.ResolveIPAddr("ip4", target)
	if err != nil {
		return nil, fmt.Errorf("resolve traceroute target %q: %w", target, err)
	}

	conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		return nil, fmt.Errorf("open icmp socket: %w", err)
	}
	defer conn.Close()

	pconn := conn.IPv4PacketConn()

	var maxLatencyMs float64
	hopsObserved := 0
	hopsReplied := 0
	reachedDestination := false

	for ttl := 1; ttl <= maxHops && !reachedDestination; ttl++ {
		select {
		case <-ctx.Done():
			return finalize(hopsObserved, hopsReplied, maxLatencyMs)
		default:
		}
		if time.Now().After(deadline) {
			return finalize(hopsObserved, hopsReplied, maxLatencyMs)
		}

		if err := pconn.SetTTL(ttl); err != nil {
			return nil, fmt.Errorf("set ttl %d: %w", ttl, err)
		}

		msg := icmp.Message{
			Type: ipv4.ICMPTypeEcho,
			Code: 0,
			Body: &icmp.Echo{
				ID:   icmpEchoID,
				Seq:  ttl,
				Data: make([]byte, icmpPacketSize),
			},
		}
		wb, err := msg.Marshal(nil)
		if err != nil {
			return nil, fmt.Errorf("marshal icmp echo: %w", err)
		}

		sendTime := time.Now()
		if _, err := conn.WriteTo(wb, dst); err != nil {
			hopsObserved++ // treat as an unreachable ("*") hop, per spec.md §4.2
			continue
		}

		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		rb := make([]byte, 1500)
		n, _, err := conn.ReadFrom(rb)
		if err != nil {
			hopsObserved++
			continue
		}
		latencyMs := float64(time.Since(sendTime).Milliseconds())

		parsed, err := icmp.ParseMessage(1, rb[:n])
		if err != nil {
			hopsObserved++
			continue
		}

		hopsObserved++
		hopsReplied++
		if latencyMs > maxLatencyMs {
			maxLatencyMs = latencyMs
		}

		switch parsed.Type {
		case ipv4.ICMPTypeEchoReply:
			reachedDestination = true
		case ipv4.ICMPTypeTimeExceeded:
			// intermediate hop, keep walking
		default:
			// unexpected type; still counts as an observed hop
		}
	}

	return finalize(hopsObserved, hopsReplied, maxLatencyMs)
}

// finalize applies spec.md §4.2's "if all hops are *, result is
// discarded" rule: hopsReplied only counts hops that actually produced
// a parseable ICMP reply (echo reply or time-exceeded), so a fully
// unreachable target — every hop timing out or failing to parse —
// discards to nil regardless of how many TTLs were attempted.
func finalize(hopsObserved, hopsReplied int, maxLatencyMs float64) (*TraceResult, error) {
	if hopsReplied == 0 {
		return nil, nil
	}
	return &TraceResult{TotalHops: hopsObserved, MaxHopLatencyMs: maxLatencyMs}, nil
}

// FakeTracer is a canned Tracer for tests, per spec.md §9's design note
// calling for a fake-able Tracer interface.
type FakeTracer struct {
	Result *TraceResult
	Err    error
}

func (f *FakeTracer) Trace(ctx context.Context, target string, deadline time.Time) (*TraceResult, error) {
	return f.Result, f.Err
}

var _ Tracer = (*ICMPTracer)(nil)
var _ Tracer = (*FakeTracer)(nil)
