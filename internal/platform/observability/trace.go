package observability

import (
	"encoding/binary"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/auric-atelier/api/internal/platform/requestctx"
)

const cloudTraceHeader = "X-Cloud-Trace-Context"

var tracer = otel.Tracer("github.com/auric-atelier/api/internal/platform/observability")

// TraceMiddleware continues a Cloud Trace context from the incoming request
// header, starts a server span, and publishes the trace metadata through
// requestctx. The header is echoed back so load balancer logs correlate.
func TraceMiddleware(projectID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if remote, ok := parseTraceHeader(r.Header.Get(cloudTraceHeader)); ok {
				ctx = trace.ContextWithRemoteSpanContext(ctx, remote)
			}

			ctx, span := tracer.Start(ctx, spanName(r),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(requestAttributes(r)...),
			)
			defer span.End()

			spanCtx := span.SpanContext()
			info := requestctx.TraceInfo{
				TraceID:   spanCtx.TraceID().String(),
				SpanID:    spanCtx.SpanID().String(),
				Sampled:   spanCtx.IsSampled(),
				ProjectID: projectID,
			}
			ctx = requestctx.WithTrace(ctx, info)

			sampled := "0"
			if info.Sampled {
				sampled = "1"
			}
			w.Header().Set(cloudTraceHeader, fmt.Sprintf("%s/%s;o=%s", info.TraceID, info.SpanID, sampled))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// parseTraceHeader decodes "TRACE_ID/SPAN_ID;o=OPT". Cloud Trace sends the
// span id in decimal; hex is accepted for callers that already speak it.
func parseTraceHeader(header string) (trace.SpanContext, bool) {
	traceHex, rest, found := strings.Cut(strings.TrimSpace(header), "/")
	if !found || len(traceHex) != 32 {
		return trace.SpanContext{}, false
	}
	traceID, err := trace.TraceIDFromHex(traceHex)
	if err != nil {
		return trace.SpanContext{}, false
	}

	spanPart, options, _ := strings.Cut(rest, ";")
	spanID, ok := decodeSpanID(strings.TrimSpace(spanPart))
	if !ok {
		return trace.SpanContext{}, false
	}

	var flags trace.TraceFlags
	if sampledOption(options) {
		flags = trace.FlagsSampled
	}

	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: flags,
		Remote:     true,
	}), true
}

func decodeSpanID(value string) (trace.SpanID, bool) {
	if value == "" {
		return trace.SpanID{}, false
	}

	if num, err := strconv.ParseUint(value, 10, 64); err == nil {
		var spanID trace.SpanID
		binary.BigEndian.PutUint64(spanID[:], num)
		return spanID, spanID.IsValid()
	}

	if len(value) < 16 {
		value = strings.Repeat("0", 16-len(value)) + value
	}
	spanID, err := trace.SpanIDFromHex(value)
	return spanID, err == nil
}

func sampledOption(options string) bool {
	for _, segment := range strings.Split(options, ";") {
		if strings.TrimSpace(segment) == "o=1" {
			return true
		}
	}
	return false
}

func spanName(r *http.Request) string {
	path := r.URL.Path
	if path == "" {
		path = "/"
	}
	return r.Method + " " + path
}

func requestAttributes(r *http.Request) []attribute.KeyValue {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.request.method", r.Method),
		attribute.String("url.scheme", scheme),
	}
	if r.URL != nil {
		if path := r.URL.Path; path != "" {
			attrs = append(attrs, attribute.String("url.path", path))
		}
		if target := r.URL.RequestURI(); target != "" {
			attrs = append(attrs, attribute.String("url.full", target))
		}
	}
	if r.Host != "" {
		attrs = append(attrs, attribute.String("server.address", r.Host))
	}
	if ua := r.UserAgent(); ua != "" {
		attrs = append(attrs, attribute.String("user_agent.original", ua))
	}
	return attrs
}
