// Package discovery advertises and finds dhke servers on the local network
// over mDNS/DNS-SD.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/grandcat/zeroconf"
)

const (
	// Service is the DNS-SD service type of a dhke server.
	Service = "_dhke._tcp"
	// Domain is the mDNS domain.
	Domain = "local."
)

// ErrNotFound is returned when no matching server answered in time.
var ErrNotFound = errors.New("no dhke server found")

// Info is the metadata a server advertises in its TXT record.
type Info struct {
	Transport string
	GroupBits int
}

func (i Info) txt() []string {
	txt := []string{"v=1"}
	if i.Transport != "" {
		txt = append(txt, "transport="+i.Transport)
	}
	if i.GroupBits > 0 {
		txt = append(txt, "bits="+strconv.Itoa(i.GroupBits))
	}
	return txt
}

// Announcement is a live mDNS registration.
type Announcement struct {
	server *zeroconf.Server
}

// Announce registers instance on port until Shutdown is called.
func Announce(instance string, port int, info Info) (*Announcement, error) {
	srv, err := zeroconf.Register(instance, Service, Domain, port, info.txt(), nil)
	if err != nil {
		return nil, fmt.Errorf("register mDNS service %q: %w", instance, err)
	}
	return &Announcement{server: srv}, nil
}

// Shutdown withdraws the registration.
func (a *Announcement) Shutdown() {
	if a != nil && a.server != nil {
		a.server.Shutdown()
	}
}

// Entry is a discovered server.
type Entry struct {
	Instance string
	Addr     string
	Info     Info
}

// Lookup browses until ctx is done and returns the first server whose
// instance name matches. An empty instance matches any server.
func Lookup(ctx context.Context, instance string) (Entry, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return Entry{}, fmt.Errorf("init mDNS resolver: %w", err)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, Service, Domain, entries); err != nil {
		return Entry{}, fmt.Errorf("browse %s: %w", Service, err)
	}
	for {
		select {
		case <-ctx.Done():
			if instance == "" {
				return Entry{}, ErrNotFound
			}
			return Entry{}, fmt.Errorf("%w: instance %q", ErrNotFound, instance)
		case e, ok := <-entries:
			if !ok {
				return Entry{}, ErrNotFound
			}
			if e == nil || (instance != "" && e.Instance != instance) {
				continue
			}
			if out, ok := toEntry(e); ok {
				return out, nil
			}
		}
	}
}

func toEntry(e *zeroconf.ServiceEntry) (Entry, bool) {
	ip := pickAddr(e.AddrIPv4)
	if ip == nil {
		ip = pickAddr(e.AddrIPv6)
	}
	if ip == nil {
		return Entry{}, false
	}
	return Entry{
		Instance: e.Instance,
		Addr:     net.JoinHostPort(ip.String(), strconv.Itoa(e.Port)),
		Info:     parseTXT(e.Text),
	}, true
}

// pickAddr prefers a global unicast address and falls back to the first one.
func pickAddr(addrs []net.IP) net.IP {
	for _, a := range addrs {
		if a.IsGlobalUnicast() && !a.IsLoopback() {
			return a
		}
	}
	if len(addrs) > 0 {
		return addrs[0]
	}
	return nil
}

func parseTXT(txt []string) Info {
	var info Info
	for _, kv := range txt {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		switch k {
		case "transport":
			info.Transport = v
		case "bits":
			info.GroupBits, _ = strconv.Atoi(v)
		}
	}
	return info
}
