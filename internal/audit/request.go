package audit

import "context"

// Placeholder recorded when no request context is active (seed and batch jobs).
const unknown = "unknown"

// RequestInfo carries the client attributes of the request being audited.
type RequestInfo struct {
	IP        string
	UserAgent string
}

type requestInfoKey struct{}

// WithRequestInfo attaches client request attributes to the context.
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// requestInfoFromContext returns the attached request attributes, with
// "unknown" placeholders for anything missing.
func requestInfoFromContext(ctx context.Context) RequestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(RequestInfo)
	if info.IP == "" {
		info.IP = unknown
	}
	if info.UserAgent == "" {
		info.UserAgent = unknown
	}
	return info
}
