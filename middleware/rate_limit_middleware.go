package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"wirecall/message"
)

// RateLimitMiddleware rejects calls beyond r per second with a burst
// allowance, token-bucket style. Rejected calls get an error reply, the
// callable never runs.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *message.Call) *message.Reply {
			if !limiter.Allow() {
				return &message.Reply{Error: "rate limit exceeded"}
			}
			return next(ctx, call)
		}
	}
}
