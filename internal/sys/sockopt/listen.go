package sockopt

import (
	"fmt"
	"net"
)

// ParseIPv4 converts a bind host into the 4-byte form used by the socket calls.
// An empty host means INADDR_ANY.
func ParseIPv4(host string) ([4]byte, error) {
	var addr [4]byte
	if host == "" {
		return addr, nil
	}
	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil {
			return addr, fmt.Errorf("failed to resolve bind host %s: %w", host, err)
		}
		for _, candidate := range ips {
			if candidate.To4() != nil {
				ip = candidate
				break
			}
		}
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return addr, fmt.Errorf("bind host %s is not an IPv4 address", host)
	}
	copy(addr[:], ip4)
	return addr, nil
}

// BoundPort 返回监听器实际绑定的端口 (请求端口 0 时由系统分配)。
func BoundPort(ln net.Listener) (int, error) {
	tcpAddr, ok := ln.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("listener address %s is not a TCP address", ln.Addr())
	}
	return tcpAddr.Port, nil
}
