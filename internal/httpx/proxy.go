package httpx

import (
	"net/url"
	"strings"
)

// Proxy rewrites scrape targets through a CORS/scrape proxy prefix such as
// "https://proxy.example/?url=". The zero value is disabled.
type Proxy struct {
	prefix string
}

// NewProxy returns a proxy for prefix; an empty prefix yields a disabled proxy.
func NewProxy(prefix string) Proxy {
	return Proxy{prefix: strings.TrimSpace(prefix)}
}

// Enabled reports whether a prefix is configured.
func (p Proxy) Enabled() bool {
	return p.prefix != ""
}

// Wrap returns target routed through the proxy. Prefixes ending in "=" take
// the target query-escaped; others are concatenated.
func (p Proxy) Wrap(target string) string {
	if !p.Enabled() {
		return target
	}
	if strings.HasSuffix(p.prefix, "=") {
		return p.prefix + url.QueryEscape(target)
	}
	return p.prefix + target
}
