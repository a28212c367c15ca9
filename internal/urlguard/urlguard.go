// Package urlguard rejects URLs that should never be handed to the reader or
// archive services: non-web schemes and hosts on internal networks.
package urlguard

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"strings"
)

// ErrBlocked marks a URL the guard refused.
var ErrBlocked = errors.New("url blocked")

var blockedHosts = map[string]struct{}{
	"localhost":             {},
	"localhost.localdomain": {},
}

// Config controls which URLs the Guard refuses.
type Config struct {
	// AllowPrivate skips the address checks, which is only sensible when the
	// reader itself runs on a private network.
	AllowPrivate bool
	// BlockedDomains lists hosts never to fetch. "*.example.com" and
	// ".example.com" also match every subdomain.
	BlockedDomains []string
}

// Guard validates target URLs before they are fetched.
type Guard struct {
	allowPrivate bool
	blocklist    *domainBlocklist
}

// New builds a Guard.
func New(cfg Config) *Guard {
	return &Guard{
		allowPrivate: cfg.AllowPrivate,
		blocklist:    newDomainBlocklist(cfg.BlockedDomains),
	}
}

// Check returns an error wrapping ErrBlocked when rawURL must not be fetched.
// Hostnames are not resolved; only literal addresses are classified.
func (g *Guard) Check(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: parse %q: %v", ErrBlocked, rawURL, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("%w: scheme %q not allowed: %s", ErrBlocked, u.Scheme, rawURL)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("%w: missing host: %s", ErrBlocked, rawURL)
	}
	if g.blocklist.match(host) {
		return fmt.Errorf("%w: domain %q is blocklisted: %s", ErrBlocked, host, rawURL)
	}
	if g.allowPrivate {
		return nil
	}
	if _, ok := blockedHosts[host]; ok {
		return fmt.Errorf("%w: hostname %q: %s", ErrBlocked, host, rawURL)
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return nil
	}
	addr = addr.Unmap()
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() || addr.IsUnspecified() {
		return fmt.Errorf("%w: private address %s: %s", ErrBlocked, addr, rawURL)
	}
	return nil
}
