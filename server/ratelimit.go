package server

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	visitorIdleTimeout = 5 * time.Minute
	cleanupInterval    = time.Minute
	defaultBurst       = 5
)

// IPRateLimiter keeps one token bucket per client IP. Idle buckets are swept every minute.
type IPRateLimiter struct {
	visitors sync.Map
	rps      rate.Limit
	burst    int
	nowFunc  func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	lock     sync.Mutex
}

func NewIPRateLimiter(perMinute, burst int) *IPRateLimiter {
	if burst <= 0 {
		burst = defaultBurst
	}
	l := &IPRateLimiter{
		rps:     rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
		nowFunc: time.Now,
		stop:    make(chan struct{}),
	}
	go l.cleanupVisitors()
	return l
}

// Allow reports whether the request from ip fits in its bucket
func (l *IPRateLimiter) Allow(ip string) bool {
	return l.getLimiter(ip).AllowN(l.nowFunc(), 1)
}

// Stop ends the cleanup goroutine
func (l *IPRateLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	now := l.nowFunc()
	v, _ := l.visitors.LoadOrStore(ip, &visitor{limiter: rate.NewLimiter(l.rps, l.burst), lastSeen: now})
	vi := v.(*visitor)
	vi.lock.Lock()
	vi.lastSeen = now
	vi.lock.Unlock()
	return vi.limiter
}

func (l *IPRateLimiter) cleanupVisitors() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			cutoff := l.nowFunc().Add(-visitorIdleTimeout)
			l.visitors.Range(func(k, v any) bool {
				vi := v.(*visitor)
				vi.lock.Lock()
				idle := vi.lastSeen.Before(cutoff)
				vi.lock.Unlock()
				if idle {
					l.visitors.Delete(k)
				}
				return true
			})
		}
	}
}

// trustedProxies are the addresses allowed to report a client address in X-Forwarded-For
type trustedProxies []netip.Prefix

func parseTrustedProxies(entries []string) (trustedProxies, error) {
	proxies := make(trustedProxies, 0, len(entries))
	for _, entry := range entries {
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, errors.Wrapf(err, "[parseTrustedProxies] %q", entry)
			}
			proxies = append(proxies, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, errors.Wrapf(err, "[parseTrustedProxies] %q", entry)
		}
		addr = addr.Unmap()
		proxies = append(proxies, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return proxies, nil
}

func (t trustedProxies) contains(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, prefix := range t {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// clientIP is the connection's remote address. When that address is a trusted proxy the
// X-Forwarded-For chain is walked from the right and the first untrusted hop is the client.
func (t trustedProxies) clientIP(r *http.Request) string {
	remote := remoteHost(r)
	remoteAddr, err := netip.ParseAddr(remote)
	if err != nil || !t.contains(remoteAddr) {
		return remote
	}

	var hops []string
	for _, header := range r.Header.Values("X-Forwarded-For") {
		hops = append(hops, strings.Split(header, ",")...)
	}
	client := remote
	for i := len(hops) - 1; i >= 0; i-- {
		hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			break
		}
		client = hop.Unmap().String()
		if !t.contains(hop) {
			break
		}
	}
	return client
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	if r.RemoteAddr == "" {
		return "unknown"
	}
	return r.RemoteAddr
}
