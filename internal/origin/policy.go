package origin

import (
	"net/url"
	"strings"
)

const wildcardPrefix = "*."

// Policy decides which parent origins the widget may exchange method calls with.
type Policy struct {
	// Allowed holds exact origins ("https://portal.example.com") or wildcard
	// subdomain entries ("*.example.com").
	Allowed []string

	// Permissive disables enforcement entirely (local development only).
	Permissive bool
}

// NewPolicy creates a policy from an allow-list, dropping blank entries
func NewPolicy(allowed []string, permissive bool) *Policy {
	return &Policy{
		Allowed:    ParseList(strings.Join(allowed, ",")),
		Permissive: permissive,
	}
}

// IsDevelopment reports whether env names a development environment
func IsDevelopment(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "development" || env == "dev"
}

// ParseList splits a comma-separated allow-list
func ParseList(raw string) []string {
	var out []string
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			out = append(out, entry)
		}
	}
	return out
}

// IsAllowed reports whether origin may talk to the widget. It fails closed:
// an empty allow-list rejects everything unless the policy is permissive.
func (p *Policy) IsAllowed(origin string) bool {
	if p == nil {
		return false
	}
	if p.Permissive {
		return true
	}
	if origin == "" {
		return false
	}

	for _, allowed := range p.Allowed {
		if allowed == origin {
			return true
		}
		if strings.HasPrefix(allowed, wildcardPrefix) {
			domain := strings.ToLower(allowed[len(wildcardPrefix):])
			if domain != "" && strings.HasSuffix(hostOf(origin), "."+domain) {
				return true
			}
		}
	}
	return false
}

// hostOf returns the lowercased hostname of an origin, or the origin itself
// when it carries no scheme ("a.example.com").
func hostOf(origin string) string {
	if !strings.Contains(origin, "://") {
		return strings.ToLower(origin)
	}
	u, err := url.Parse(origin)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
