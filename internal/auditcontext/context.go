package auditcontext

import "context"

type requestIDKey struct{}
type ipAddressKey struct{}
type userAgentKey struct{}
type platformKey struct{}
type pageKey struct{}

// WithRequestID stores the request ID for audit correlation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, requestIDKey{})
}

// WithIPAddress stores the caller IP address.
func WithIPAddress(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, ipAddressKey{}, ip)
}

func IPAddressFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ipAddressKey{})
}

// WithUserAgent stores the caller user agent (browser).
func WithUserAgent(ctx context.Context, ua string) context.Context {
	if ua == "" {
		return ctx
	}
	return context.WithValue(ctx, userAgentKey{}, ua)
}

func UserAgentFromContext(ctx context.Context) string {
	return stringFromContext(ctx, userAgentKey{})
}

// WithPlatform stores the caller platform header.
func WithPlatform(ctx context.Context, platform string) context.Context {
	if platform == "" {
		return ctx
	}
	return context.WithValue(ctx, platformKey{}, platform)
}

func PlatformFromContext(ctx context.Context) string {
	return stringFromContext(ctx, platformKey{})
}

// WithPage stores the originating page, when the caller reports one.
func WithPage(ctx context.Context, page string) context.Context {
	if page == "" {
		return ctx
	}
	return context.WithValue(ctx, pageKey{}, page)
}

func PageFromContext(ctx context.Context) string {
	return stringFromContext(ctx, pageKey{})
}

func stringFromContext(ctx context.Context, key any) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
