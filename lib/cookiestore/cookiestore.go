package cookiestore

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/net/publicsuffix"
)

// Store is an http.CookieJar scoped to a fixed set of trusted domains.
// The first domain passed to New is the primary domain: serialized tokens
// that cannot be attributed to any trusted domain are replayed against it.
//
// Reads may happen from many goroutines at once; writes (login steps,
// Set-Cookie responses observed mid-scrape) are serialized behind a
// single write lock so readers always see a consistent snapshot.
type Store struct {
	mu      sync.RWMutex
	jar     http.CookieJar
	domains []*url.URL
}

func New(domains ...string) (*Store, error) {
	if len(domains) == 0 {
		return nil, fmt.Errorf("cookiestore: at least one trusted domain is required")
	}

	jar, err := cookiejar.New(&cookiejar.Options{
		PublicSuffixList: publicsuffix.List,
	})
	if err != nil {
		return nil, err
	}

	parsed := make([]*url.URL, len(domains))
	for i, d := range domains {
		u, err := url.Parse(d)
		if err != nil {
			return nil, fmt.Errorf("cookiestore: invalid trusted domain %q: %w", d, err)
		}
		if u.Hostname() == "" {
			return nil, fmt.Errorf("cookiestore: trusted domain %q has no hostname", d)
		}
		parsed[i] = u
	}

	return &Store{
		jar:     jar,
		domains: parsed,
	}, nil
}

func (s *Store) SetCookies(u *url.URL, cookies []*http.Cookie) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jar.SetCookies(u, cookies)
}

func (s *Store) Cookies(u *url.URL) []*http.Cookie {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jar.Cookies(u)
}

// Domains returns the trusted domains in the order they were given to New.
func (s *Store) Domains() []*url.URL {
	return s.domains
}

// Export serializes every cookie held for the trusted domains into
// Set-Cookie style strings that Import can replay later, possibly in
// a different process. The domain is annotated on each string so that
// Import can route it back to the right host.
func (s *Store) Export() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	seen := map[string]struct{}{}
	for _, d := range s.domains {
		for _, c := range s.jar.Cookies(d) {
			line := fmt.Sprintf("%s=%s; Domain=%s; Path=/", c.Name, c.Value, d.Hostname())
			if _, ok := seen[line]; ok {
				continue
			}
			seen[line] = struct{}{}
			out = append(out, line)
		}
	}
	return out
}

// Import replays serialized cookie strings against their originating
// domains. A string that names a trusted domain is routed there,
// anything unrecognized goes to the primary domain. A malformed string
// is skipped with a warning rather than failing the whole import.
func (s *Store) Import(ctx context.Context, lines []string) {
	for _, line := range lines {
		cookies := parseSetCookie(line)
		if len(cookies) == 0 {
			slog.WarnContext(ctx, "skipping malformed session cookie", "cookie", line)
			continue
		}
		s.SetCookies(s.routeDomain(line), cookies)
	}
}

// parseSetCookie runs a single string through net/http's Set-Cookie
// header parser. Invalid strings yield an empty slice.
func parseSetCookie(line string) []*http.Cookie {
	res := http.Response{
		Header: http.Header{"Set-Cookie": []string{line}},
	}
	var out []*http.Cookie
	for _, c := range res.Cookies() {
		if c.Name == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (s *Store) routeDomain(line string) *url.URL {
	lower := strings.ToLower(line)
	for _, d := range s.domains {
		if strings.Contains(lower, strings.ToLower(d.Hostname())) {
			return d
		}
	}
	return s.domains[0]
}
