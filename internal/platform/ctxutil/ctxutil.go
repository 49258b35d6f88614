package ctxutil

import "context"

type traceDataKey struct{}

// Origin names the surface a unit of work arrived through.
type Origin string

const (
	OriginHTTP     Origin = "http"
	OriginMQTT     Origin = "mqtt"
	OriginTemporal Origin = "temporal"
)

// TraceData follows a request from its entry point into services and the
// jobs it queues. FarmID is empty for farm-less routes.
type TraceData struct {
	TraceID   string
	RequestID string
	FarmID    string
	Origin    Origin
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(Default(ctx), traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	if td, ok := ctx.Value(traceDataKey{}).(*TraceData); ok {
		return td
	}
	return nil
}

// LogFields renders the trace data of ctx as logger key/value pairs,
// skipping empty values.
func LogFields(ctx context.Context) []interface{} {
	td := GetTraceData(ctx)
	if td == nil {
		return nil
	}
	out := make([]interface{}, 0, 8)
	add := func(k, v string) {
		if v != "" {
			out = append(out, k, v)
		}
	}
	add("trace_id", td.TraceID)
	add("request_id", td.RequestID)
	add("farm_id", td.FarmID)
	add("origin", string(td.Origin))
	return out
}

// Default returns context.Background() when ctx is nil.
func Default(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// Detached keeps the values of ctx but drops its cancellation, for work
// that must outlive the request that queued it.
func Detached(ctx context.Context) context.Context {
	return context.WithoutCancel(Default(ctx))
}
