//go:build linux

package sockopt

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// ListenTCP4 opens an IPv4 stream socket with SO_REUSEADDR, binds it to
// host:port and listens with the given backlog depth.
func ListenTCP4(host string, port, backlog int) (net.Listener, error) {
	ip, err := ParseIPv4(host)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("error opening stream socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("error setting socket options: %w", err)
	}

	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: port, Addr: ip}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("error binding stream socket: %w", err)
	}

	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("error listening on stream socket: %w", err)
	}

	// net.FileListener dups the descriptor, so the file is closed either way.
	file := os.NewFile(uintptr(fd), fmt.Sprintf("tcp4-listener-%d", port))
	defer file.Close()

	ln, err := net.FileListener(file)
	if err != nil {
		return nil, fmt.Errorf("error wrapping listening socket: %w", err)
	}
	return ln, nil
}
