package geoip

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/oschwald/geoip2-golang"
)

// ErrUnavailable is returned when no database is loaded.
var ErrUnavailable = errors.New("geoip resolver unavailable")

const defaultCacheSize = 4096

type countryFunc func(ip net.IP) (string, error)

// Resolver maps client IPs to ISO country codes using a MaxMind database.
// Results, including misses, are cached per address.
type Resolver struct {
	reader *geoip2.Reader
	lookup countryFunc

	mu       sync.Mutex
	cache    map[string]string
	maxCache int
}

// NewResolver opens the database at path. An empty path yields a nil resolver,
// which reports ErrUnavailable from CountryCode.
func NewResolver(path string) (*Resolver, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open database: %w", err)
	}
	r := newResolver(func(ip net.IP) (string, error) {
		record, err := reader.Country(ip)
		if err != nil {
			return "", err
		}
		if record == nil {
			return "", nil
		}
		return record.Country.IsoCode, nil
	}, defaultCacheSize)
	r.reader = reader
	return r, nil
}

func newResolver(lookup countryFunc, maxCache int) *Resolver {
	return &Resolver{lookup: lookup, cache: make(map[string]string), maxCache: maxCache}
}

// CountryCode returns the upper-case country code for ip, or "" for private
// and loopback addresses.
func (r *Resolver) CountryCode(ip string) (string, error) {
	if r == nil || r.lookup == nil {
		return "", ErrUnavailable
	}
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return "", fmt.Errorf("geoip: invalid ip %q", ip)
	}
	if parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() {
		return "", nil
	}
	key := parsed.String()

	r.mu.Lock()
	code, ok := r.cache[key]
	r.mu.Unlock()
	if ok {
		return code, nil
	}

	code, err := r.lookup(parsed)
	if err != nil {
		return "", fmt.Errorf("geoip: lookup country: %w", err)
	}
	code = strings.ToUpper(code)

	r.mu.Lock()
	if len(r.cache) >= r.maxCache {
		clear(r.cache)
	}
	r.cache[key] = code
	r.mu.Unlock()
	return code, nil
}

// Close releases the database.
func (r *Resolver) Close() error {
	if r == nil || r.reader == nil {
		return nil
	}
	return r.reader.Close()
}
