package location

import (
	"fmt"
	"net"
	"strconv"
)

// InterfaceAddrs lists the host's interface addresses. Replaced in tests.
var InterfaceAddrs = net.InterfaceAddrs

// Local builds the Location of this instance from its listen address.
// Explicit advertise addresses come first. When the listen host is
// unspecified (":5000", "0.0.0.0:5000", "[::]:5000") every non-link-local
// interface address is advertised with the listen port, loopback last.
func Local(id, listenAddr string, advertise ...string) (Location, error) {
	host, port, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return Location{}, fmt.Errorf("listen address %q: %w", listenAddr, err)
	}
	if _, err := strconv.Atoi(port); err != nil {
		return Location{}, fmt.Errorf("listen address %q: invalid port", listenAddr)
	}

	addrs := append([]string(nil), advertise...)
	ip := net.ParseIP(host)
	if host != "" && (ip == nil || !ip.IsUnspecified()) {
		addrs = append(addrs, net.JoinHostPort(host, port))
		return New(id, addrs...)
	}

	ifaceAddrs, err := InterfaceAddrs()
	if err != nil {
		return Location{}, fmt.Errorf("enumerate interfaces: %w", err)
	}
	var loopback []string
	for _, a := range ifaceAddrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		addr := net.JoinHostPort(ipnet.IP.String(), port)
		switch {
		case ipnet.IP.IsLinkLocalUnicast(), ipnet.IP.IsLinkLocalMulticast():
		case ipnet.IP.IsLoopback():
			loopback = append(loopback, addr)
		default:
			addrs = append(addrs, addr)
		}
	}
	addrs = append(addrs, loopback...)
	if len(addrs) == 0 {
		addrs = append(addrs, net.JoinHostPort("127.0.0.1", port))
	}
	return New(id, addrs...)
}
