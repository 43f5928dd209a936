package tracing

import (
	"errors"
	"regexp"

	"go.opentelemetry.io/otel/attribute"
)

var blockedAttrKeys = map[attribute.Key]struct{}{
	"authorization":  {},
	"cookie":         {},
	"client_secret":  {},
	"access_token":   {},
	"refresh_token":  {},
	"code":           {},
	"assertion":      {},
	"http.url":       {},
	"http.target":    {},
	"http.user_agent": {},
}

// Opaque tokens are 128 base64url characters. Anything that long in an
// attribute value or error message is almost certainly a credential.
var tokenLikePattern = regexp.MustCompile(`[A-Za-z0-9_-]{64,}`)

// SafeAttributes drops credential-bearing keys and redacts token-shaped values.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	safe := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, blocked := blockedAttrKeys[attr.Key]; blocked {
			continue
		}
		if attr.Value.Type() == attribute.STRING && tokenLikePattern.MatchString(attr.Value.AsString()) {
			safe = append(safe, attribute.String(string(attr.Key), "[REDACTED]"))
			continue
		}
		safe = append(safe, attr)
	}
	return safe
}

// SafeError returns an error suitable for span recording with token-shaped
// substrings redacted, or nil when there is nothing safe to record.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if msg == "" {
		return nil
	}
	if tokenLikePattern.MatchString(msg) {
		return errors.New(tokenLikePattern.ReplaceAllString(msg, "[REDACTED]"))
	}
	return err
}
