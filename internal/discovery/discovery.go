// Package discovery advertises and finds warpchat brokers on the local
// network over mDNS.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// Service is the mDNS service type of a broker.
	Service = "_warpchat._tcp"
	Domain  = "local."

	// BrowseTimeout bounds a LAN broker scan.
	BrowseTimeout = 3 * time.Second

	wsPath = "/ws"
)

var ErrNoBroker = errors.New("no broker found on the local network")

type registerFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (*zeroconf.Server, error)
type browseFunc func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error

var (
	register registerFunc = zeroconf.Register
	browse   browseFunc   = defaultBrowse
)

func defaultBrowse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("create mDNS resolver: %w", err)
	}
	return resolver.Browse(ctx, service, domain, entries)
}

// Advertiser publishes a broker until Stop.
type Advertiser struct {
	server *zeroconf.Server
}

// Advertise announces a broker listening on port.
func Advertise(port int) (*Advertiser, error) {
	if port <= 0 {
		return nil, fmt.Errorf("invalid broker port %d", port)
	}

	instance, err := os.Hostname()
	if err != nil || instance == "" {
		instance = "warpchat"
	}

	server, err := register(instance, Service, Domain, port, []string{"path=" + wsPath}, nil)
	if err != nil {
		return nil, fmt.Errorf("register mDNS service: %w", err)
	}
	slog.Info("advertising broker", "service", Service, "instance", instance, "port", port)
	return &Advertiser{server: server}, nil
}

func (a *Advertiser) Stop() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
}

// Browse returns the websocket URL of the first broker that answers within
// timeout.
func Browse(ctx context.Context, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = BrowseTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 4)
	if err := browse(ctx, Service, Domain, entries); err != nil {
		return "", fmt.Errorf("browse %s: %w", Service, err)
	}

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return "", ErrNoBroker
			}
			if u, ok := brokerURL(entry); ok {
				slog.Debug("found LAN broker", "instance", entry.Instance, "url", u)
				return u, nil
			}
		case <-ctx.Done():
			return "", ErrNoBroker
		}
	}
}

// brokerURL builds ws://host:port/ws from an entry, preferring IPv4.
func brokerURL(entry *zeroconf.ServiceEntry) (string, bool) {
	if entry == nil || entry.Port <= 0 {
		return "", false
	}

	var host string
	switch {
	case len(entry.AddrIPv4) > 0:
		host = entry.AddrIPv4[0].String()
	case len(entry.AddrIPv6) > 0:
		host = entry.AddrIPv6[0].String()
	default:
		return "", false
	}

	return "ws://" + net.JoinHostPort(host, strconv.Itoa(entry.Port)) + wsPath, true
}
