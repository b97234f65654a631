// Package validation gates outbound fetches of caller-supplied media URLs
// against SSRF, and checks local reference files before upload.
//
// The URL validator runs before every download of a remote image or video
// URL. It never runs against the configured API base host, which is trusted.
package validation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

// Reason identifies why a URL was rejected.
type Reason int

const (
	// ReasonMalformedURL means the input could not be parsed as a URL.
	ReasonMalformedURL Reason = iota

	// ReasonNonHTTPSScheme means the scheme was anything other than https,
	// including plain http.
	ReasonNonHTTPSScheme

	// ReasonBlockedHost means the hostname textually matches a known
	// internal name (localhost, cloud metadata hostnames).
	ReasonBlockedHost

	// ReasonBlockedLiteralIP means the hostname is an IP literal inside a
	// blocked range.
	ReasonBlockedLiteralIP

	// ReasonDNSRebinding means the hostname is a domain whose DNS
	// resolution, performed at validation time, returned a blocked
	// address. Resolving here defeats the TOCTOU attack where a domain
	// re-resolves to an internal address after validation.
	ReasonDNSRebinding

	// ReasonUnresolvableDomain means DNS resolution reported the domain
	// does not exist.
	ReasonUnresolvableDomain
)

// String returns the reason name for logging.
func (r Reason) String() string {
	switch r {
	case ReasonMalformedURL:
		return "malformed_url"
	case ReasonNonHTTPSScheme:
		return "non_https_scheme"
	case ReasonBlockedHost:
		return "blocked_host"
	case ReasonBlockedLiteralIP:
		return "blocked_literal_ip"
	case ReasonDNSRebinding:
		return "dns_rebinding"
	case ReasonUnresolvableDomain:
		return "unresolvable_domain"
	default:
		return "unknown"
	}
}

// ValidationError reports a rejected URL.
type ValidationError struct {
	Reason Reason
	Host   string // hostname that triggered the rejection (may be empty)
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Host != "" {
		return fmt.Sprintf("validation: %s rejected (%s): %s", e.Host, e.Reason, e.Detail)
	}
	return fmt.Sprintf("validation: url rejected (%s): %s", e.Reason, e.Detail)
}

// AsValidationError unwraps a *ValidationError from an error chain.
func AsValidationError(err error) (*ValidationError, bool) {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr, true
	}
	return nil, false
}

// blockedHostnames are names rejected on textual match alone, before any
// resolution. Covers localhost and the cloud metadata service names.
var blockedHostnames = map[string]struct{}{
	"localhost":                {},
	"metadata.google.internal": {},
	"metadata.goog":            {},
}

// blockedV4 and blockedV6 form the blocked-range predicate, applied
// uniformly to literal hosts and to resolved addresses.
var blockedV4 = []netip.Prefix{
	netip.MustParsePrefix("127.0.0.0/8"),    // loopback
	netip.MustParsePrefix("10.0.0.0/8"),     // private
	netip.MustParsePrefix("172.16.0.0/12"),  // private
	netip.MustParsePrefix("192.168.0.0/16"), // private
	netip.MustParsePrefix("169.254.0.0/16"), // link-local, includes 169.254.169.254
	netip.MustParsePrefix("0.0.0.0/8"),      // reserved
}

var blockedV6 = []netip.Prefix{
	netip.MustParsePrefix("::1/128"),   // loopback
	netip.MustParsePrefix("fe80::/10"), // link-local
	netip.MustParsePrefix("fc00::/7"),  // unique-local, includes fd00::/8
}

// mappedUnwrapLimit bounds the IPv4-mapped-IPv6 unwrap loop. Valid
// addresses nest at most one level, but adversarial input gets a hard cap
// rather than recursion.
const mappedUnwrapLimit = 4

// LookupFunc resolves a hostname to addresses. Injectable so tests can
// simulate DNS rebinding without real resolution.
type LookupFunc func(ctx context.Context, host string) ([]netip.Addr, error)

// URLValidator validates caller-supplied media URLs before they are
// fetched.
//
// Thread Safety: URLValidator is safe for concurrent use; it holds no
// mutable state.
type URLValidator struct {
	lookup LookupFunc
}

// NewURLValidator creates a validator that resolves domains through the
// default resolver.
func NewURLValidator() *URLValidator {
	return &URLValidator{
		lookup: func(ctx context.Context, host string) ([]netip.Addr, error) {
			return net.DefaultResolver.LookupNetIP(ctx, "ip", host)
		},
	}
}

// NewURLValidatorWithLookup creates a validator with a custom resolver.
// Used by tests; production code should use NewURLValidator.
func NewURLValidatorWithLookup(lookup LookupFunc) *URLValidator {
	return &URLValidator{lookup: lookup}
}

// Validate checks a URL against the SSRF policy.
//
// The checks run in order: parse, scheme, static hostname blocklist,
// literal-IP blocked ranges, and finally a validation-time DNS resolution
// for domain names, with resolved addresses tested against the same
// blocked ranges.
//
// Returns nil when the URL may be fetched, a *ValidationError when it is
// rejected, or a wrapped resolver error when resolution itself failed for
// a reason other than non-existence.
func (v *URLValidator) Validate(ctx context.Context, rawURL string) error {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return &ValidationError{Reason: ReasonMalformedURL, Detail: err.Error()}
	}

	if parsed.Scheme != "https" {
		return &ValidationError{
			Reason: ReasonNonHTTPSScheme,
			Host:   parsed.Hostname(),
			Detail: fmt.Sprintf("scheme %q is not https", parsed.Scheme),
		}
	}

	// Hostname() strips IPv6 bracket notation.
	host := parsed.Hostname()
	if host == "" {
		return &ValidationError{Reason: ReasonMalformedURL, Detail: "url has no host"}
	}

	if _, blocked := blockedHostnames[strings.ToLower(host)]; blocked {
		return &ValidationError{
			Reason: ReasonBlockedHost,
			Host:   host,
			Detail: "hostname is on the internal blocklist",
		}
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if blockedAddr(addr) {
			return &ValidationError{
				Reason: ReasonBlockedLiteralIP,
				Host:   host,
				Detail: "ip literal is in a blocked range",
			}
		}
		return nil
	}

	// Domain name: resolve now and test every returned address, so a
	// later re-resolution to an internal address cannot slip through.
	addrs, err := v.lookup(ctx, host)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return &ValidationError{
				Reason: ReasonUnresolvableDomain,
				Host:   host,
				Detail: "domain does not resolve",
			}
		}
		return fmt.Errorf("validation: resolving %s: %w", host, err)
	}
	if len(addrs) == 0 {
		return &ValidationError{
			Reason: ReasonUnresolvableDomain,
			Host:   host,
			Detail: "domain resolved to no addresses",
		}
	}

	for _, addr := range addrs {
		if blockedAddr(addr) {
			return &ValidationError{
				Reason: ReasonDNSRebinding,
				Host:   host,
				Detail: fmt.Sprintf("domain resolves to blocked address %s", addr),
			}
		}
	}

	return nil
}

// blockedAddr is the blocked-range predicate. IPv4-mapped-IPv6 addresses
// are unwrapped (bounded loop) so ::ffff: encoding cannot bypass the IPv4
// ranges.
func blockedAddr(addr netip.Addr) bool {
	addr = addr.WithZone("")
	for i := 0; i < mappedUnwrapLimit && addr.Is4In6(); i++ {
		addr = addr.Unmap()
	}

	if addr.Is4() {
		for _, p := range blockedV4 {
			if p.Contains(addr) {
				return true
			}
		}
		return false
	}

	for _, p := range blockedV6 {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
