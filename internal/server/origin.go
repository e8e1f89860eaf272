package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/samber/lo"
)

const wildcardOrigin = "*"

// originPolicy decides which browser origins may open a WebSocket. It is
// built once from the configured origins and never changes afterwards.
type originPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
}

func newOriginPolicy(origins []string) originPolicy {
	normalized := normalizeOrigins(origins)
	allowed := lo.SliceToMap(normalized, func(origin string) (string, struct{}) {
		return origin, struct{}{}
	})
	return originPolicy{
		allowAll: lo.Contains(normalized, wildcardOrigin),
		allowed:  allowed,
	}
}

// allows reports whether the request carries a permitted Origin header.
// Requests without one are refused.
func (p originPolicy) allows(r *http.Request) bool {
	origin, ok := normalizeOrigin(r.Header.Get("Origin"))
	if !ok {
		return false
	}
	if p.allowAll {
		return true
	}
	_, exists := p.allowed[origin]
	return exists
}

// checker returns the upgrader's CheckOrigin hook, logging rejections.
func (p originPolicy) checker(log *slog.Logger) func(*http.Request) bool {
	return func(r *http.Request) bool {
		if p.allows(r) {
			return true
		}
		log.Warn("Blocked WebSocket connection from disallowed origin", "origin", r.Header.Get("Origin"), "addr", r.RemoteAddr)
		return false
	}
}

// normalizeOrigins lowercases scheme and host of each entry, keeps the
// wildcard as is and drops blanks, duplicates and entries that are not
// origins.
func normalizeOrigins(origins []string) []string {
	normalized := lo.FilterMap(origins, func(origin string, _ int) (string, bool) {
		trimmed := strings.TrimSpace(origin)
		switch {
		case trimmed == "":
			return "", false
		case trimmed == wildcardOrigin:
			return wildcardOrigin, true
		}
		n, ok := normalizeOrigin(trimmed)
		if !ok {
			slog.Warn("Ignoring invalid origin in configuration", "origin", origin)
		}
		return n, ok
	})
	return lo.Uniq(normalized)
}

func normalizeOrigin(origin string) (string, bool) {
	if origin == "" {
		return "", false
	}
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}
