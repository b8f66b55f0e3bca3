package probe

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestTCPSuccess(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)

	res := TCP(context.Background(), host, port, time.Second)
	if !res.Success {
		t.Fatalf("TCP probe to open listener: Success = false, want true")
	}
}

func TestTCPFailureOnClosedPort(t *testing.T) {
	res := TCP(context.Background(), "127.0.0.1", 1, 200*time.Millisecond)
	if res.Success {
		t.Fatalf("TCP probe to closed port: Success = true, want false")
	}
}

func TestHTTPSuccessStatusRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	host, portStr, _ := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	port, _ := strconv.Atoi(portStr)

	res := HTTP(context.Background(), NewClient(), host, port, "/", time.Second)
	if !res.Success {
		t.Fatalf("HTTP probe: Success = false, want true for 200")
	}
}

func TestHTTPFailureStatusOutOfRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	host, portStr, _ := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	port, _ := strconv.Atoi(portStr)

	res := HTTP(context.Background(), NewClient(), host, port, "/", time.Second)
	if res.Success {
		t.Fatalf("HTTP probe: Success = true, want false for 500")
	}
}

func TestBandwidthRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, _ := io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"received_bytes":` + strconv.FormatInt(n, 10) + `,"elapsed_ms":1}`))
	}))
	defer srv.Close()

	host, portStr, _ := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	port, _ := strconv.Atoi(portStr)

	result, ok, err := Bandwidth(context.Background(), NewClient(), host, port, 1, 5*time.Second)
	if err != nil {
		t.Fatalf("Bandwidth: %v", err)
	}
	if !ok {
		t.Fatalf("Bandwidth: ok = false, want true")
	}
	if result.Mbps <= 0 {
		t.Fatalf("Mbps = %v, want > 0", result.Mbps)
	}
}

func TestFakeTracerReturnsConfiguredResult(t *testing.T) {
	ft := &FakeTracer{Result: &TraceResult{TotalHops: 4, MaxHopLatencyMs: 33}}
	res, err := ft.Trace(context.Background(), "10.0.0.1", time.Now().Add(time.Second))
	if err != nil {
		t.Fatalf("Trace: %v", err)
	}
	if res.TotalHops != 4 {
		t.Fatalf("TotalHops = %d, want 4", res.TotalHops)
	}
}

func TestFakeTracerAllHopsUnreachableReturnsNil(t *testing.T) {
	ft := &FakeTracer{Result: nil}
	res, err := ft.Trace(context.Background(), "10.0.0.1", time.Now().Add(time.Second))
	if err != nil {
		t.Fatalf("Trace: %v", err)
	}
	if res != nil {
		t.Fatalf("Trace result = %+v, want nil when all hops unreachable", res)
	}
}

func TestFinalizeDiscardsWhenNoHopReplied(t *testing.T) {
	// every TTL attempted (WriteTo/ReadFrom failures or unparseable
	// replies all bump hopsObserved) but none produced a parseable
	// reply: per spec.md §4.2, "if all hops are *, result is discarded".
	res, err := finalize(maxHops, 0, 0)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if res != nil {
		t.Fatalf("finalize(%d, 0, 0) = %+v, want nil", maxHops, res)
	}
}

func TestFinalizeKeepsResultWhenAtLeastOneHopReplied(t *testing.T) {
	res, err := finalize(maxHops, 1, 12.5)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if res == nil {
		t.Fatalf("finalize(%d, 1, 12.5) = nil, want a result", maxHops)
	}
	if res.TotalHops != maxHops {
		t.Fatalf("TotalHops = %d, want %d", res.TotalHops, maxHops)
	}
	if res.MaxHopLatencyMs != 12.5 {
		t.Fatalf("MaxHopLatencyMs = %v, want 12.5", res.MaxHopLatencyMs)
	}
}
