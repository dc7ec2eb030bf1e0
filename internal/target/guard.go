package target

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"net/url"
	"strconv"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"hls-proxy/internal/config"
)

// LookupFunc resolves a host name to its addresses.
type LookupFunc func(ctx context.Context, host string) ([]netip.Addr, error)

// Guard extends the origin-prefix loop check by resolving the target host and
// rejecting targets that land on one of this machine's addresses on a port
// the proxy is serving. It is a no-op unless [loop] resolve_hosts is set.
type Guard struct {
	enabled bool
	ports   map[int]bool
	lookup  LookupFunc
	local   func() ([]netip.Addr, error)
	cache   *expirable.LRU[string, []netip.Addr]
	logger  *slog.Logger
}

// NewGuard creates a Guard from config.
func NewGuard(cfg *config.Config, logger *slog.Logger) *Guard {
	ports := map[int]bool{cfg.Server.Port: true}
	if cfg.Server.PublicURL != "" {
		if u, err := url.Parse(cfg.Server.PublicURL); err == nil {
			ports[effectivePort(u)] = true
		}
	}

	return &Guard{
		enabled: cfg.Loop.ResolveHosts,
		ports:   ports,
		lookup:  defaultLookup,
		local:   interfaceAddrs,
		cache:   expirable.NewLRU[string, []netip.Addr](cfg.Loop.CacheSize, nil, cfg.Loop.CacheTTL.Duration),
		logger:  logger.With("component", "loop_guard"),
	}
}

func defaultLookup(ctx context.Context, host string) ([]netip.Addr, error) {
	return net.DefaultResolver.LookupNetIP(ctx, "ip", host)
}

// Enabled reports whether resolve-and-compare is active.
func (g *Guard) Enabled() bool {
	return g != nil && g.enabled
}

// Check returns ErrLoopDetected when u resolves to this host on a served port.
// Resolution failures are not treated as loops; the fetch will surface them.
func (g *Guard) Check(ctx context.Context, u *url.URL) error {
	if !g.Enabled() {
		return nil
	}
	if !g.ports[effectivePort(u)] {
		return nil
	}

	addrs, err := g.resolve(ctx, u.Hostname())
	if err != nil {
		g.logger.Debug("resolve failed", "host", u.Hostname(), "err", err)
		return nil
	}

	local, err := g.local()
	if err != nil {
		return fmt.Errorf("list local addresses: %w", err)
	}

	for _, a := range addrs {
		a = a.Unmap()
		if a.IsLoopback() || a.IsUnspecified() {
			return ErrLoopDetected
		}
		for _, l := range local {
			if a == l.Unmap() {
				return ErrLoopDetected
			}
		}
	}
	return nil
}

func (g *Guard) resolve(ctx context.Context, host string) ([]netip.Addr, error) {
	if a, err := netip.ParseAddr(host); err == nil {
		return []netip.Addr{a}, nil
	}
	if addrs, ok := g.cache.Get(host); ok {
		return addrs, nil
	}
	addrs, err := g.lookup(ctx, host)
	if err != nil {
		return nil, err
	}
	g.cache.Add(host, addrs)
	return addrs, nil
}

func effectivePort(u *url.URL) int {
	if p := u.Port(); p != "" {
		n, _ := strconv.Atoi(p)
		return n
	}
	if u.Scheme == "https" {
		return 443
	}
	return 80
}

func interfaceAddrs() ([]netip.Addr, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}
	out := make([]netip.Addr, 0, len(addrs))
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if ip, ok := netip.AddrFromSlice(ipNet.IP); ok {
			out = append(out, ip.Unmap())
		}
	}
	return out, nil
}
