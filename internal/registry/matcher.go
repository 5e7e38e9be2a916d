// Package registry resolves request URLs to registered services.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"cas/internal/registry/models"
)

// ServiceLister is the read side of the service store.
type ServiceLister interface {
	ListEnabled(ctx context.Context) ([]*models.Service, error)
}

// Matcher maps URLs to services by their allowed-URL patterns.
//
// A pattern is a glob over "scheme://host/path", matched part by part. In the
// path '*' matches any run of characters, '/' included. In the host '*' stays
// inside one label, so "*.example.com" never reaches another domain; a host of
// just "*" matches any host. A pattern
// without '*' must equal the URL exactly. Patterns and URLs are normalized the
// same way; query string and fragment are ignored. Services are tried in id
// order and patterns in registration order; the first match wins.
//
// Matcher holds no service state. Every Resolve reads the store, so admin
// changes are visible on the next request.
type Matcher struct {
	services ServiceLister
	logger   *slog.Logger
	patterns sync.Map // pattern string -> *regexp.Regexp
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithLogger sets the logger for malformed pattern warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Matcher) {
		m.logger = logger
	}
}

// NewMatcher builds a Matcher over the given store.
func NewMatcher(services ServiceLister, opts ...Option) *Matcher {
	m := &Matcher{services: services, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Resolve returns the first enabled service with a pattern matching rawURL,
// or nil when none matches. An error means the store could not be read.
func (m *Matcher) Resolve(ctx context.Context, rawURL string) (*models.Service, error) {
	target, ok := Normalize(rawURL)
	if !ok {
		return nil, nil
	}
	services, err := m.services.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	for _, svc := range services {
		if !svc.Enabled {
			continue
		}
		for _, pattern := range svc.AllowedURLs {
			if m.matches(ctx, pattern, target) {
				return svc, nil
			}
		}
	}
	return nil, nil
}

func (m *Matcher) matches(ctx context.Context, pattern, target string) bool {
	if !strings.Contains(pattern, "*") {
		normalized, ok := Normalize(pattern)
		return ok && normalized == target
	}
	re, err := m.compile(pattern)
	if err != nil {
		m.logger.WarnContext(ctx, "skipping malformed service pattern", "pattern", pattern, "error", err)
		return false
	}
	return re.MatchString(target)
}

func (m *Matcher) compile(pattern string) (*regexp.Regexp, error) {
	if cached, ok := m.patterns.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := CompilePattern(pattern)
	if err != nil {
		return nil, err
	}
	m.patterns.Store(pattern, re)
	return re, nil
}

// Wildcard expansions per URL part. None of them can match the separators
// around its part, which pins every part to its own position.
const (
	schemeWildcard = `[a-z][a-z0-9+.-]*`
	hostWildcard   = `[^./:@]+`
	anyHost        = `[^/@]+`
	pathWildcard   = `.*`
)

// CompilePattern turns a glob into an anchored regular expression over
// normalized URLs.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	scheme, host, path, err := splitPattern(pattern)
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	b.WriteString("^")
	b.WriteString(globPart(strings.ToLower(scheme), schemeWildcard, nil))
	b.WriteString("://")
	if host == "*" {
		b.WriteString(anyHost)
	} else {
		b.WriteString(globPart(strings.ToLower(host), hostWildcard, nil))
	}
	b.WriteString(globPart(path, pathWildcard, escapePath))
	b.WriteString("$")
	return regexp.Compile(b.String())
}

func splitPattern(pattern string) (scheme, host, path string, err error) {
	pattern = strings.TrimSpace(pattern)
	if i := strings.IndexAny(pattern, "?#"); i >= 0 {
		pattern = pattern[:i]
	}
	scheme, rest, ok := strings.Cut(pattern, "://")
	if !ok || scheme == "" {
		return "", "", "", fmt.Errorf("pattern %q has no scheme", pattern)
	}
	host, path = rest, "/"
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		host, path = rest[:i], rest[i:]
	}
	if host == "" {
		return "", "", "", fmt.Errorf("pattern %q has no host", pattern)
	}
	return scheme, host, path, nil
}

// globPart quotes the literal pieces of part, optionally rewriting them first,
// and joins them with wildcard.
func globPart(part, wildcard string, rewrite func(string) string) string {
	pieces := strings.Split(part, "*")
	for i, p := range pieces {
		if rewrite != nil {
			p = rewrite(p)
		}
		pieces[i] = regexp.QuoteMeta(p)
	}
	return strings.Join(pieces, wildcard)
}

// escapePath encodes a literal path piece the way url.URL.EscapedPath encodes
// request paths, so "/a b" and "/a%20b" compare equal.
func escapePath(piece string) string {
	if unescaped, err := url.PathUnescape(piece); err == nil {
		piece = unescaped
	}
	return (&url.URL{Path: piece}).EscapedPath()
}

// Normalize reduces an absolute URL to lower-cased scheme and host plus path,
// dropping query and fragment. An empty path becomes "/".
func Normalize(rawURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) + path, true
}
