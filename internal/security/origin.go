package security

import (
	"net/url"
	"strings"
)

// OriginPolicy is an allow-list of browser origins
type OriginPolicy struct {
	allowed map[string]bool
}

// NewOriginPolicy builds a policy from origins such as "https://medgame.example".
// An empty list allows every origin.
func NewOriginPolicy(origins []string) *OriginPolicy {
	p := &OriginPolicy{allowed: make(map[string]bool)}
	for _, o := range origins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			p.allowed[o] = true
		}
	}
	return p
}

// Enabled reports whether any origin is configured
func (p *OriginPolicy) Enabled() bool {
	return len(p.allowed) > 0
}

// AllowOrigin checks an Origin header value
func (p *OriginPolicy) AllowOrigin(origin string) bool {
	return !p.Enabled() || p.allowed[origin]
}

// AllowReferer checks the origin of a Referer header value.
// Unparseable referers are let through.
func (p *OriginPolicy) AllowReferer(referer string) bool {
	if !p.Enabled() {
		return true
	}
	u, err := url.Parse(referer)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return true
	}
	return p.allowed[u.Scheme+"://"+u.Host]
}
