package geoip

import (
	"errors"
	"net"
	"testing"
)

func TestNewResolverEmptyPath(t *testing.T) {
	r, err := NewResolver("  ")
	if err != nil || r != nil {
		t.Fatalf("NewResolver = %v, %v", r, err)
	}
	if _, err := r.CountryCode("8.8.8.8"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("nil resolver err = %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close on nil resolver: %v", err)
	}
}

func TestNewResolverMissingFile(t *testing.T) {
	if _, err := NewResolver(t.TempDir() + "/missing.mmdb"); err == nil {
		t.Fatal("expected error for missing database")
	}
}

func TestCountryCodeCachesLookups(t *testing.T) {
	calls := 0
	r := newResolver(func(ip net.IP) (string, error) {
		calls++
		return "id", nil
	}, 2)

	for i := 0; i < 3; i++ {
		code, err := r.CountryCode("36.85.1.1")
		if err != nil {
			t.Fatalf("CountryCode: %v", err)
		}
		if code != "ID" {
			t.Fatalf("code = %q", code)
		}
	}
	if calls != 1 {
		t.Fatalf("lookup calls = %d, want 1", calls)
	}

	_, _ = r.CountryCode("1.1.1.1")
	_, _ = r.CountryCode("8.8.8.8")
	if len(r.cache) > 2 {
		t.Fatalf("cache grew to %d entries", len(r.cache))
	}
}

func TestCountryCodeSkipsLocalAddresses(t *testing.T) {
	r := newResolver(func(ip net.IP) (string, error) {
		t.Fatalf("unexpected lookup for %s", ip)
		return "", nil
	}, 8)
	for _, ip := range []string{"127.0.0.1", "10.0.0.4", "192.168.1.20", "::1"} {
		code, err := r.CountryCode(ip)
		if err != nil || code != "" {
			t.Fatalf("%s: code=%q err=%v", ip, code, err)
		}
	}
}

func TestCountryCodeErrors(t *testing.T) {
	r := newResolver(func(ip net.IP) (string, error) {
		return "", errors.New("corrupt record")
	}, 8)
	if _, err := r.CountryCode("not-an-ip"); err == nil {
		t.Fatal("expected invalid ip error")
	}
	if _, err := r.CountryCode("8.8.4.4"); err == nil {
		t.Fatal("expected lookup error")
	}
	if len(r.cache) != 0 {
		t.Fatal("failed lookups must not be cached")
	}
}
