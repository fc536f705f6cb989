//go:build unix && !linux

package sockopt

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"
)

// ListenTCP4 opens an IPv4 listener with SO_REUSEADDR. The backlog depth is
// left to the platform default here.
func ListenTCP4(host string, port, backlog int) (net.Listener, error) {
	ip, err := ParseIPv4(host)
	if err != nil {
		return nil, err
	}

	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			if err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			}); err != nil {
				return err
			}
			if sockErr != nil {
				return fmt.Errorf("error setting socket options: %w", sockErr)
			}
			return nil
		},
	}

	addr := net.JoinHostPort(net.IP(ip[:]).String(), strconv.Itoa(port))
	ln, err := lc.Listen(context.Background(), "tcp4", addr)
	if err != nil {
		return nil, fmt.Errorf("error binding stream socket: %w", err)
	}
	return ln, nil
}
