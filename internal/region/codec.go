package region

import (
	"strings"

	"github.com/smallbiznis/meridian/internal/config"
	"go.uber.org/fx"
)

// Extract returns the region tag prefixed to an opaque token value. A tag is
// an optional '[', one or more of [A-Za-z0-9_ -], an optional ']', then ':'.
// The returned tag keeps its brackets but not the colon. This runs on every
// token lookup, so it is a manual scan with no allocation beyond the slice
// header.
func Extract(token string) (string, bool) {
	i := 0
	n := len(token)
	if i < n && token[i] == '[' {
		i++
	}
	start := i
	for i < n && isTagChar(token[i]) {
		i++
	}
	if i == start {
		return "", false
	}
	if i < n && token[i] == ']' {
		i++
	}
	if i >= n || token[i] != ':' {
		return "", false
	}
	return token[:i], true
}

// Strip removes the region prefix from a token value, returning the bare
// token. Tokens without a prefix are returned unchanged.
func Strip(token string) string {
	if tag, ok := Extract(token); ok {
		return token[len(tag)+1:]
	}
	return token
}

func isTagChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '_' || c == ' ' || c == '-':
		return true
	default:
		return false
	}
}

// Codec applies the deployment's local region to generated token values.
type Codec struct {
	local       string
	multiRegion bool
}

func NewCodec(cfg config.Config) *Codec {
	return &Codec{
		local:       strings.ToLower(strings.TrimSpace(cfg.Region)),
		multiRegion: cfg.MultiRegion,
	}
}

// Local returns the lower-cased local region name.
func (c *Codec) Local() string {
	return c.local
}

// MultiRegion reports whether tokens are generated with region prefixes.
func (c *Codec) MultiRegion() bool {
	return c.multiRegion
}

// Apply prefixes token with the local region. Single-region deployments get
// the token back untouched.
func (c *Codec) Apply(token string) string {
	if !c.multiRegion || c.local == "" {
		return token
	}
	return c.local + ":" + token
}

// ApplyTag prefixes token with an explicit region tag, used when a refresh
// token must stay routable to the region its authorization code came from.
func (c *Codec) ApplyTag(tag, token string) string {
	if !c.multiRegion {
		return token
	}
	if tag == "" {
		return c.Apply(token)
	}
	return tag + ":" + token
}

// IsLocal reports whether the tag routes to this deployment. An empty tag is
// local: unprefixed tokens belong to whichever region stored them.
func (c *Codec) IsLocal(tag string) bool {
	if tag == "" {
		return true
	}
	return strings.EqualFold(strings.Trim(tag, "[]"), c.local)
}

var Module = fx.Module("region",
	fx.Provide(NewCodec),
)
