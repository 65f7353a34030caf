package core

import (
	"context"

	"github.com/JonMunkholm/schedimport/internal/logging"
)

type contextKey string

const (
	ctxKeyIPAddress contextKey = "client_ip"
	ctxKeyUserAgent contextKey = "client_ua"
)

// ContextWithClient attaches the caller's address and user agent for logging.
func ContextWithClient(ctx context.Context, ip, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyIPAddress, ip)
	return context.WithValue(ctx, ctxKeyUserAgent, userAgent)
}

// ClientFromContext returns the values stored by ContextWithClient.
func ClientFromContext(ctx context.Context) (ip, userAgent string) {
	ip, _ = ctx.Value(ctxKeyIPAddress).(string)
	userAgent, _ = ctx.Value(ctxKeyUserAgent).(string)
	return ip, userAgent
}

// withClient makes every log line of an operation carry the caller.
func withClient(ctx context.Context) context.Context {
	ip, ua := ClientFromContext(ctx)
	if ip == "" {
		return ctx
	}
	return logging.ContextWith(ctx, "client_ip", ip, "user_agent", ua)
}
