package member

import (
	"fmt"
	"net"
	"os"
)

// outboundProbeAddr is never actually dialed (UDP "connect" does no
// handshake); it only needs to be routable so the kernel picks a local
// source address.
const outboundProbeAddr = "8.8.8.8:80"

// DetectIP resolves the address this member advertises to the
// registry, per SPEC_FULL.md's supplemented IP auto-detection chain:
// a configured override wins outright; otherwise an outbound UDP
// socket trick finds the local route's source address; failing that,
// hostname resolution; failing that, loopback as a last resort so
// startup never blocks on network detection.
func DetectIP(configuredOverride string) (string, error) {
	if configuredOverride != "" {
		return configuredOverride, nil
	}

	if ip, err := detectViaOutboundSocket(); err == nil {
		return ip, nil
	}

	if ip, err := detectViaHostname(); err == nil {
		return ip, nil
	}

	return "127.0.0.1", nil
}

func detectViaOutboundSocket() (string, error) {
	conn, err := net.Dial("udp", outboundProbeAddr)
	if err != nil {
		return "", fmt.Errorf("dial outbound probe address: %w", err)
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("unexpected local addr type %T", conn.LocalAddr())
	}
	return addr.IP.String(), nil
}

func detectViaHostname() (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return "", err
	}
	addrs, err := net.LookupHost(hostname)
	if err != nil {
		return "", fmt.Errorf("resolve hostname %q: %w", hostname, err)
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("hostname %q resolved to no addresses", hostname)
	}
	return addrs[0], nil
}
