package observability

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"
	"unicode"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/auric-atelier/api/internal/platform/auth"
	"github.com/auric-atelier/api/internal/platform/httpx"
	"github.com/auric-atelier/api/internal/platform/requestctx"
)

// InjectLoggerMiddleware stores the base logger on the request context.
func InjectLoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(requestctx.WithLogger(r.Context(), logger)))
		})
	}
}

// RequestLoggerMiddleware emits one structured completion log per request and
// records the response status on the active span. Request-scoped fields are
// also attached to the context logger for downstream handlers.
func RequestLoggerMiddleware(projectID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			traceInfo, _ := requestctx.Trace(ctx)
			route := sanitizeRoute(routePattern(r))

			logger := requestctx.Logger(ctx).With(
				zap.String("request_id", middleware.GetReqID(ctx)),
				zap.String("method", sanitizeLogValue(r.Method, 10)),
				zap.String("route", route),
				zap.String("trace_id", traceInfo.TraceID),
				zap.String("user_id", requestUserID(ctx)),
			)
			if traceInfo.ProjectID != "" && traceInfo.TraceID != "" {
				logger = logger.With(zap.String("logging.googleapis.com/trace",
					fmt.Sprintf("projects/%s/traces/%s", traceInfo.ProjectID, traceInfo.TraceID)))
			}
			if ip := clientIP(r); ip != "" {
				logger = logger.With(zap.String("remote_ip", ip))
			}

			r = r.WithContext(requestctx.WithLogger(ctx, logger))
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			var panicked bool
			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				if panicked && status < http.StatusInternalServerError {
					status = http.StatusInternalServerError
				}

				if span := trace.SpanFromContext(ctx); span != nil {
					span.SetAttributes(
						semconv.HTTPResponseStatusCode(status),
						semconv.HTTPRoute(route),
					)
					if status >= http.StatusInternalServerError {
						span.SetStatus(codes.Error, http.StatusText(status))
					} else {
						span.SetStatus(codes.Ok, http.StatusText(status))
					}
				}

				fields := []zap.Field{
					zap.Int("status", status),
					zap.Duration("latency", time.Since(start)),
					zap.Int("bytes", ww.BytesWritten()),
				}
				switch {
				case panicked || status >= http.StatusInternalServerError:
					logger.Error("request completed", fields...)
				case status >= http.StatusBadRequest:
					logger.Warn("request completed", fields...)
				default:
					logger.Info("request completed", fields...)
				}
			}()
			defer func() {
				// Mark the panic for the completion log, then let the
				// recovery middleware handle the response.
				if rec := recover(); rec != nil {
					panicked = true
					panic(rec)
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// RecoveryMiddleware converts panics into a JSON 500 after logging the stack.
func RecoveryMiddleware(fallback *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					ctx := r.Context()
					logger := requestctx.Logger(ctx)
					if logger == requestctx.NoopLogger() && fallback != nil {
						logger = fallback
					}
					logger.Error("panic recovered",
						zap.Any("panic", rec),
						zap.ByteString("stack", debug.Stack()),
					)
					httpx.WriteError(ctx, w, httpx.NewError("internal_server_error", "internal server error", http.StatusInternalServerError))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

func requestUserID(ctx context.Context) string {
	if identity, ok := auth.IdentityFromContext(ctx); ok {
		return sanitizeLogValue(identity.UID, 64)
	}
	return ""
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	if r.URL != nil && r.URL.Path != "" {
		return r.URL.Path
	}
	return "/"
}

func clientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return sanitizeLogValue(addr, 64)
}

func sanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return sanitizeLogValue(route, 180)
}

// sanitizeLogValue strips control characters and caps length so request
// metadata cannot inject into log output.
func sanitizeLogValue(value string, limit int) string {
	cleaned := make([]rune, 0, len(value))
	for _, r := range value {
		if unicode.IsControl(r) {
			continue
		}
		cleaned = append(cleaned, r)
		if len(cleaned) >= limit {
			break
		}
	}
	return string(cleaned)
}
