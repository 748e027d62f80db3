// internal/protocol/protocol.go
package protocol

import (
	"fmt"
	"net"
	"strings"
)

// ConnectionType identifies the transport behind a port name
type ConnectionType string

const (
	ConnectionTypeSerial ConnectionType = "serial"
	ConnectionTypeTCP    ConnectionType = "tcp"
	ConnectionTypeTLS    ConnectionType = "tls"
)

const (
	tcpScheme = "tcp://"
	tlsScheme = "tls://"
)

// Endpoint is a parsed port name
type Endpoint struct {
	Type ConnectionType
	// Address is the device path for serial ports and host:port otherwise
	Address string
}

// ParseEndpoint classifies a port name. "tcp://host:port" and
// "tls://host:port" select a network serial bridge (ser2net raw mode and
// similar); anything else is a local serial device.
func ParseEndpoint(port string) (Endpoint, error) {
	lower := strings.ToLower(port)

	var ep Endpoint
	switch {
	case strings.HasPrefix(lower, tcpScheme):
		ep = Endpoint{Type: ConnectionTypeTCP, Address: port[len(tcpScheme):]}
	case strings.HasPrefix(lower, tlsScheme):
		ep = Endpoint{Type: ConnectionTypeTLS, Address: port[len(tlsScheme):]}
	default:
		return Endpoint{Type: ConnectionTypeSerial, Address: port}, nil
	}

	host, p, err := net.SplitHostPort(ep.Address)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid network port %q: %w", port, err)
	}
	if host == "" || p == "" {
		return Endpoint{}, fmt.Errorf("invalid network port %q: host and port are required", port)
	}
	return ep, nil
}
