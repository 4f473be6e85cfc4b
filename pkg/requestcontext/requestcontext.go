// Package requestcontext carries per-request values through context without
// leaking middleware packages into services.
package requestcontext

import "context"

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	userAgentKey contextKey = "user_agent"
	clientIPKey  contextKey = "client_ip"
	deviceKey    contextKey = "device"
)

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request ID, or "" when not set.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// WithUserAgent stores the raw User-Agent header in the context.
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, userAgentKey, ua)
}

// UserAgent returns the raw User-Agent header, or "" when not set.
func UserAgent(ctx context.Context) string {
	v, _ := ctx.Value(userAgentKey).(string)
	return v
}

// WithClientIP stores the client IP in the context.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIP returns the client IP, or "" when not set.
func ClientIP(ctx context.Context) string {
	v, _ := ctx.Value(clientIPKey).(string)
	return v
}

// WithDevice stores a parsed device description (browser/OS family) in the context.
func WithDevice(ctx context.Context, device string) context.Context {
	return context.WithValue(ctx, deviceKey, device)
}

// Device returns the parsed device description, or "" when not set.
func Device(ctx context.Context) string {
	v, _ := ctx.Value(deviceKey).(string)
	return v
}
