package api

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultAuthRatePerMinute = 10
	defaultAuthBurst         = 10

	// Idle per-IP limiters are pruned so the map can't grow without bound
	// under address churn.
	limiterIdleExpiry = 10 * time.Minute
)

// ipRateLimiter applies a token-bucket limit per client IP to the register
// and login routes. A nil limiter (rate disabled) allows everything.
type ipRateLimiter struct {
	mu        sync.Mutex
	perIP     map[string]*ipLimiterEntry
	rate      rate.Limit
	burst     int
	lastPrune time.Time
}

type ipLimiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newIPRateLimiter(perMinute, burst int) *ipRateLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &ipRateLimiter{
		perIP:     make(map[string]*ipLimiterEntry),
		rate:      rate.Every(time.Minute / time.Duration(perMinute)),
		burst:     burst,
		lastPrune: time.Now(),
	}
}

// allow reports whether a request from ip may proceed. retryAfter is only
// meaningful when allowed is false.
func (l *ipRateLimiter) allow(ip string) (allowed bool, retryAfter time.Duration) {
	if l == nil {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.pruneLocked(now)

	entry, ok := l.perIP[ip]
	if !ok {
		entry = &ipLimiterEntry{lim: rate.NewLimiter(l.rate, l.burst)}
		l.perIP[ip] = entry
	}
	entry.lastSeen = now

	res := entry.lim.Reserve()
	if !res.OK() {
		return false, limiterIdleExpiry
	}
	if delay := res.Delay(); delay > 0 {
		res.Cancel()
		return false, delay
	}
	return true, 0
}

func (l *ipRateLimiter) pruneLocked(now time.Time) {
	if now.Sub(l.lastPrune) < limiterIdleExpiry {
		return
	}
	for ip, entry := range l.perIP {
		if now.Sub(entry.lastSeen) > limiterIdleExpiry {
			delete(l.perIP, ip)
		}
	}
	l.lastPrune = now
}

// extractClientIP returns the client IP for rate limiting, honoring proxy
// headers only when the direct peer is inside a configured trusted range.
func (a *API) extractClientIP(r *http.Request) string {
	return clientIPWithProxies(r, a.trustedProxies)
}

// clientIPWithProxies returns the best-effort client IP address.
//
// X-Forwarded-For and X-Real-IP are only honored when trustedProxies is
// non-empty AND the request's RemoteAddr falls within one of the trusted
// CIDR ranges; otherwise any client could spoof its source IP with a header.
// With no trusted proxies configured (the default), RemoteAddr always wins.
func clientIPWithProxies(r *http.Request, trustedProxies []netip.Prefix) string {
	remoteIP, _ := parseIPCandidate(r.RemoteAddr)

	proxyTrusted := false
	if len(trustedProxies) > 0 && remoteIP != "" {
		if addr, err := netip.ParseAddr(remoteIP); err == nil {
			for _, prefix := range trustedProxies {
				if prefix.Contains(addr) {
					proxyTrusted = true
					break
				}
			}
		}
	}

	if proxyTrusted {
		if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
			for _, part := range strings.Split(xff, ",") {
				if ip, ok := parseIPCandidate(part); ok {
					return ip
				}
			}
		}
		if xrip := strings.TrimSpace(r.Header.Get("X-Real-IP")); xrip != "" {
			if ip, ok := parseIPCandidate(xrip); ok {
				return ip
			}
		}
	}

	if remoteIP != "" {
		return remoteIP
	}
	return r.RemoteAddr
}

// parseIPCandidate normalizes an address that may carry a port or brackets.
func parseIPCandidate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	s = strings.Trim(s, "[]")
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return "", false
	}
	return addr.String(), true
}
