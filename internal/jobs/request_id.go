package jobs

import "context"

type requestIDKey struct{}

// WithRequestID attaches the inbound request id so poll-loop log lines can be correlated with it.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// detach returns base carrying ctx's request id. Poll loops outlive the request that started them.
func detach(base, ctx context.Context) context.Context {
	return WithRequestID(base, requestIDFromContext(ctx))
}
