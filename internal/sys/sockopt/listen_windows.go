//go:build windows

package sockopt

import (
	"fmt"
	"net"
	"strconv"
)

// ListenTCP4 opens an IPv4 listener. SO_REUSEADDR on Windows allows port
// hijacking, so it is not set, and the backlog is left to the platform.
func ListenTCP4(host string, port, backlog int) (net.Listener, error) {
	ip, err := ParseIPv4(host)
	if err != nil {
		return nil, err
	}
	addr := net.JoinHostPort(net.IP(ip[:]).String(), strconv.Itoa(port))
	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		return nil, fmt.Errorf("error binding stream socket: %w", err)
	}
	return ln, nil
}
