package app

import (
	"net"
	"net/url"
	"strings"
)

// addrSource lists the machine's interface addresses
type addrSource interface {
	Interfaces() ([]ifaceAddrs, error)
}

// ifaceAddrs is one network interface and its addresses
type ifaceAddrs struct {
	Flags net.Flags
	Addrs []net.Addr
}

// systemInterfaces reads the real network interfaces
type systemInterfaces struct{}

func (systemInterfaces) Interfaces() ([]ifaceAddrs, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	out := make([]ifaceAddrs, 0, len(ifaces))
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		out = append(out, ifaceAddrs{Flags: iface.Flags, Addrs: addrs})
	}
	return out, nil
}

// preferredIP picks the address display screens on the LAN should use:
// a private IPv4 address if there is one, then any non-loopback IPv4
// address, then localhost.
func preferredIP(src addrSource) string {
	ifaces, err := src.Interfaces()
	if err != nil {
		return "localhost"
	}

	var fallback string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		for _, addr := range iface.Addrs {
			ip := addrIP(addr).To4()
			if ip == nil || ip.IsLoopback() {
				continue
			}
			if ip.IsPrivate() {
				return ip.String()
			}
			if fallback == "" {
				fallback = ip.String()
			}
		}
	}

	if fallback != "" {
		return fallback
	}
	return "localhost"
}

func addrIP(addr net.Addr) net.IP {
	switch v := addr.(type) {
	case *net.IPNet:
		return v.IP
	case *net.IPAddr:
		return v.IP
	}
	return nil
}

// portOf returns ":port" from a listen address such as ":3000" or "0.0.0.0:3000"
func portOf(addr string) string {
	if _, port, err := net.SplitHostPort(addr); err == nil && port != "" {
		return ":" + port
	}
	return addr
}

// isLocalURL reports whether raw points at this machine only
func isLocalURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return true
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
