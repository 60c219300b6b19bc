package util

import (
	"net/http/httptest"
	"net/netip"
	"testing"
)

func TestClientIP(t *testing.T) {
	proxies, err := NewTrustedProxies([]string{"10.0.0.0/8", "::ffff:192.168.1.10"})
	if err != nil {
		t.Fatalf("new trusted proxies: %v", err)
	}

	cases := []struct {
		name    string
		remote  string
		headers map[string]string
		trusted *TrustedProxies
		want    string
	}{
		{"untrusted peer ignores forwarding headers", "198.51.100.10:1234",
			map[string]string{"X-Forwarded-For": "203.0.113.5", "X-Real-IP": "203.0.113.6"}, proxies, "198.51.100.10"},
		{"no proxies configured", "10.0.0.20:1234",
			map[string]string{"X-Forwarded-For": "203.0.113.5"}, nil, "10.0.0.20"},
		{"trusted peer forwards client", "10.0.0.20:1234",
			map[string]string{"X-Forwarded-For": "203.0.113.5"}, proxies, "203.0.113.5"},
		{"first untrusted hop from the right", "10.0.0.20:1234",
			map[string]string{"X-Forwarded-For": "198.51.100.1, 203.0.113.5, 10.0.0.10"}, proxies, "203.0.113.5"},
		{"every hop trusted yields leftmost", "10.0.0.20:1234",
			map[string]string{"X-Forwarded-For": "10.0.0.5, 10.0.0.10"}, proxies, "10.0.0.5"},
		{"unusable forwarded-for falls back to real ip", "10.0.0.20:1234",
			map[string]string{"X-Forwarded-For": "invalid", "X-Real-IP": "203.0.113.7"}, proxies, "203.0.113.7"},
		{"ipv4-mapped peer matches ipv4 range", "[::ffff:10.0.0.20]:1234",
			map[string]string{"X-Forwarded-For": "203.0.113.5"}, proxies, "203.0.113.5"},
		{"ipv4-mapped trusted entry matches plain peer", "192.168.1.10:80",
			map[string]string{"X-Forwarded-For": "203.0.113.8"}, proxies, "203.0.113.8"},
		{"ipv4-mapped hop is reported unmapped", "10.0.0.20:1234",
			map[string]string{"X-Forwarded-For": "::ffff:203.0.113.9"}, proxies, "203.0.113.9"},
		{"untrusted mapped peer is unmapped", "[::ffff:198.51.100.10]:1234", nil, proxies, "198.51.100.10"},
		{"ipv6 peer", "[2001:db8::1]:443", nil, proxies, "2001:db8::1"},
		{"peer without port", "198.51.100.10", nil, proxies, "198.51.100.10"},
		{"unparseable peer passes through", "garbage", nil, proxies, "garbage"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "http://example.com", nil)
			req.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			if got := ClientIP(req, tc.trusted); got != tc.want {
				t.Fatalf("client ip = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNewTrustedProxies(t *testing.T) {
	set, err := NewTrustedProxies([]string{" 10.1.2.3/8 ", "", "2001:db8::/32"})
	if err != nil {
		t.Fatalf("valid entries: %v", err)
	}
	if !set.Contains(netip.MustParseAddr("10.200.0.1")) {
		t.Fatalf("prefix should be masked to 10.0.0.0/8")
	}
	if !set.Contains(netip.MustParseAddr("2001:db8::42")) || set.Contains(netip.MustParseAddr("2001:db9::1")) {
		t.Fatalf("ipv6 prefix mismatch")
	}
	if set.Contains(netip.Addr{}) {
		t.Fatalf("zero addr must not match")
	}

	for _, bad := range []string{"bad-cidr", "10.0.0.0/33", "300.1.1.1"} {
		if _, err := NewTrustedProxies([]string{bad}); err == nil {
			t.Fatalf("expected parse error for %q", bad)
		}
	}

	empty, err := NewTrustedProxies([]string{" ", ""})
	if err != nil || empty != nil {
		t.Fatalf("blank entries should yield nil, got %v %v", empty, err)
	}
	if empty.Contains(netip.MustParseAddr("10.0.0.1")) {
		t.Fatalf("nil set trusts nobody")
	}
}
