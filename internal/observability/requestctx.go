package observability

import "context"

type ctxKey int

const (
	requestIDKey ctxKey = iota
	clientIDKey
)

// ContextWithRequestID tags ctx with the request's correlation id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFrom returns the correlation id set by ContextWithRequestID, or "".
func RequestIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ContextWithClientID tags ctx with the caller identity used for rate limiting.
func ContextWithClientID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, clientIDKey, id)
}

// ClientIDFrom returns the caller identity set by ContextWithClientID, or "".
func ClientIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(clientIDKey).(string)
	return id
}
