package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"wirecall/message"
)

// LoggingMiddleware logs every dispatched call with its duration and,
// when the reply carries one, the error string.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *message.Call) *message.Reply {
			start := time.Now()
			reply := next(ctx, call)
			fields := []zap.Field{
				zap.String("target", call.Target),
				zap.String("method", call.ServiceMethod()),
				zap.Duration("duration", time.Since(start)),
			}
			if reply.Error != "" {
				logger.Warn("call failed", append(fields, zap.String("error", reply.Error))...)
			} else {
				logger.Info("call served", fields...)
			}
			return reply
		}
	}
}
