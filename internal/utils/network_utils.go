package utils

import (
	"net"
	"net/netip"
	"strings"
)

// cgnatPrefix is 100.64.0.0/10, used by carrier-grade NAT and overlay VPNs
// such as WARP and Tailscale.
var cgnatPrefix = netip.MustParsePrefix("100.64.0.0/10")

var tunnelNameHints = []string{"tun", "tap", "wg", "ppp", "warp", "utun"}

// NetInterface is the part of an interface the relay heuristic looks at.
type NetInterface struct {
	Name     string
	Up       bool
	Loopback bool
	Addrs    []netip.Addr
}

// ShouldForceRelay reports whether this host is likely behind a VPN or CGNAT
// where direct ICE paths rarely work.
func ShouldForceRelay() bool {
	ifaces, err := localInterfaces()
	if err != nil {
		return false
	}
	return LooksTunneled(ifaces)
}

// LooksTunneled applies the relay heuristic to an interface list: any active
// non-loopback interface with a tunnel-like name or a CGNAT address.
func LooksTunneled(ifaces []NetInterface) bool {
	for _, iface := range ifaces {
		if !iface.Up || iface.Loopback {
			continue
		}

		name := strings.ToLower(iface.Name)
		for _, hint := range tunnelNameHints {
			if strings.Contains(name, hint) {
				return true
			}
		}

		for _, addr := range iface.Addrs {
			if cgnatPrefix.Contains(addr.Unmap()) {
				return true
			}
		}
	}
	return false
}

func localInterfaces() ([]NetInterface, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	out := make([]NetInterface, 0, len(interfaces))
	for _, iface := range interfaces {
		ni := NetInterface{
			Name:     iface.Name,
			Up:       iface.Flags&net.FlagUp != 0,
			Loopback: iface.Flags&net.FlagLoopback != 0,
		}

		addrs, err := iface.Addrs()
		if err == nil {
			for _, addr := range addrs {
				var ip net.IP
				switch v := addr.(type) {
				case *net.IPNet:
					ip = v.IP
				case *net.IPAddr:
					ip = v.IP
				}
				if a, ok := netip.AddrFromSlice(ip); ok {
					ni.Addrs = append(ni.Addrs, a)
				}
			}
		}
		out = append(out, ni)
	}
	return out, nil
}
