package middleware

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"wirecall/message"
)

// RetryMiddleware re-runs a dispatch whose reply carries a transient,
// transport-flavored error, with exponential backoff. Application errors
// pass through untouched: retrying a callable that deliberately failed
// would violate its contract.
func RetryMiddleware(maxRetries int, baseDelay time.Duration, logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *message.Call) *message.Reply {
			reply := next(ctx, call)
			for i := 0; i < maxRetries; i++ {
				if reply.Error == "" {
					return reply
				}
				if !retryable(reply.Error) {
					return reply
				}
				logger.Info("retrying call",
					zap.String("method", call.ServiceMethod()),
					zap.Int("attempt", i+1),
					zap.String("error", reply.Error))
				time.Sleep(baseDelay * time.Duration(1<<i))
				reply = next(ctx, call)
			}
			return reply
		}
	}
}

func retryable(errText string) bool {
	return strings.Contains(errText, "timeout") ||
		strings.Contains(errText, "timed out") ||
		strings.Contains(errText, "connection refused")
}
