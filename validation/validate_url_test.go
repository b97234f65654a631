package validation

import (
	"context"
	"net"
	"net/netip"
	"testing"
)

// staticLookup returns a fixed resolution for every host.
func staticLookup(addrs ...string) LookupFunc {
	return func(ctx context.Context, host string) ([]netip.Addr, error) {
		var out []netip.Addr
		for _, a := range addrs {
			out = append(out, netip.MustParseAddr(a))
		}
		return out, nil
	}
}

func TestValidateScheme(t *testing.T) {
	v := NewURLValidatorWithLookup(staticLookup("93.184.216.34"))

	tests := []struct {
		name string
		url  string
	}{
		{"http", "http://example.com/image.png"},
		{"ftp", "ftp://example.com/image.png"},
		{"file", "file:///etc/passwd"},
		{"no scheme", "example.com/image.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(context.Background(), tt.url)
			vErr, ok := AsValidationError(err)
			if !ok {
				t.Fatalf("Validate(%q) = %v, want ValidationError", tt.url, err)
			}
			if vErr.Reason != ReasonNonHTTPSScheme && vErr.Reason != ReasonMalformedURL {
				t.Errorf("Validate(%q) reason = %s, want scheme or malformed rejection", tt.url, vErr.Reason)
			}
		})
	}
}

func TestValidateBlockedHostnames(t *testing.T) {
	v := NewURLValidatorWithLookup(staticLookup("93.184.216.34"))

	tests := []string{
		"https://localhost/image.png",
		"https://LOCALHOST/image.png",
		"https://metadata.google.internal/computeMetadata/v1/",
		"https://metadata.goog/computeMetadata/v1/",
	}

	for _, url := range tests {
		t.Run(url, func(t *testing.T) {
			err := v.Validate(context.Background(), url)
			vErr, ok := AsValidationError(err)
			if !ok {
				t.Fatalf("Validate(%q) = %v, want ValidationError", url, err)
			}
			if vErr.Reason != ReasonBlockedHost {
				t.Errorf("Validate(%q) reason = %s, want blocked_host", url, vErr.Reason)
			}
		})
	}
}

func TestValidateLiteralIPs(t *testing.T) {
	v := NewURLValidatorWithLookup(staticLookup("93.184.216.34"))

	tests := []struct {
		name    string
		url     string
		blocked bool
	}{
		{"loopback v4", "https://127.0.0.1/x", true},
		{"loopback v4 high", "https://127.255.255.254/x", true},
		{"loopback v6", "https://[::1]/x", true},
		{"private 10", "https://10.1.2.3/x", true},
		{"private 172", "https://172.16.0.1/x", true},
		{"private 172 upper bound", "https://172.31.255.255/x", true},
		{"private 192.168", "https://192.168.1.1/x", true},
		{"link local", "https://169.254.169.254/x", true},
		{"reserved zero", "https://0.0.0.0/x", true},
		{"v6 link local", "https://[fe80::1]/x", true},
		{"v6 unique local", "https://[fd00::1]/x", true},
		{"mapped loopback", "https://[::ffff:127.0.0.1]/x", true},
		{"mapped private", "https://[::ffff:10.0.0.1]/x", true},
		{"public v4", "https://93.184.216.34/x", false},
		{"public 172.32", "https://172.32.0.1/x", false},
		{"public v6", "https://[2606:2800:220:1::1]/x", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(context.Background(), tt.url)
			if tt.blocked {
				vErr, ok := AsValidationError(err)
				if !ok {
					t.Fatalf("Validate(%q) = %v, want ValidationError", tt.url, err)
				}
				if vErr.Reason != ReasonBlockedLiteralIP {
					t.Errorf("Validate(%q) reason = %s, want blocked_literal_ip", tt.url, vErr.Reason)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate(%q) = %v, want nil", tt.url, err)
			}
		})
	}
}

func TestValidateDNSRebinding(t *testing.T) {
	tests := []struct {
		name   string
		addrs  []string
		reason Reason
		allow  bool
	}{
		{"resolves internal", []string{"127.0.0.1"}, ReasonDNSRebinding, false},
		{"resolves private", []string{"10.0.0.5"}, ReasonDNSRebinding, false},
		{"one of many internal", []string{"93.184.216.34", "192.168.0.2"}, ReasonDNSRebinding, false},
		{"mapped internal", []string{"::ffff:169.254.169.254"}, ReasonDNSRebinding, false},
		{"all public", []string{"93.184.216.34", "2606:2800:220:1::1"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewURLValidatorWithLookup(staticLookup(tt.addrs...))
			err := v.Validate(context.Background(), "https://cdn.example.com/clip.mp4")
			if tt.allow {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			vErr, ok := AsValidationError(err)
			if !ok {
				t.Fatalf("Validate() = %v, want ValidationError", err)
			}
			if vErr.Reason != tt.reason {
				t.Errorf("Validate() reason = %s, want %s", vErr.Reason, tt.reason)
			}
		})
	}
}

func TestValidateUnresolvableDomain(t *testing.T) {
	v := NewURLValidatorWithLookup(func(ctx context.Context, host string) ([]netip.Addr, error) {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	})

	err := v.Validate(context.Background(), "https://does-not-exist.example.invalid/x")
	vErr, ok := AsValidationError(err)
	if !ok {
		t.Fatalf("Validate() = %v, want ValidationError", err)
	}
	if vErr.Reason != ReasonUnresolvableDomain {
		t.Errorf("Validate() reason = %s, want unresolvable_domain", vErr.Reason)
	}
}

func TestValidateResolverFailurePropagates(t *testing.T) {
	v := NewURLValidatorWithLookup(func(ctx context.Context, host string) ([]netip.Addr, error) {
		return nil, &net.DNSError{Err: "server misbehaving", Name: host, IsTemporary: true}
	})

	err := v.Validate(context.Background(), "https://cdn.example.com/x")
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	if _, ok := AsValidationError(err); ok {
		t.Errorf("Validate() = ValidationError, want plain wrapped resolver error")
	}
}

func TestValidateEmptyResolution(t *testing.T) {
	v := NewURLValidatorWithLookup(staticLookup())

	err := v.Validate(context.Background(), "https://cdn.example.com/x")
	vErr, ok := AsValidationError(err)
	if !ok {
		t.Fatalf("Validate() = %v, want ValidationError", err)
	}
	if vErr.Reason != ReasonUnresolvableDomain {
		t.Errorf("Validate() reason = %s, want unresolvable_domain", vErr.Reason)
	}
}

func TestBlockedAddrUnwrapsMapped(t *testing.T) {
	tests := []struct {
		addr    string
		blocked bool
	}{
		{"::ffff:127.0.0.1", true},
		{"::ffff:192.168.1.1", true},
		{"::ffff:93.184.216.34", false},
	}

	for _, tt := range tests {
		got := blockedAddr(netip.MustParseAddr(tt.addr))
		if got != tt.blocked {
			t.Errorf("blockedAddr(%s) = %v, want %v", tt.addr, got, tt.blocked)
		}
	}
}
