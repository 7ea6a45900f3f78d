package middleware

import (
	"context"
	"time"

	"wirecall/message"
)

// TimeoutMiddleware bounds the time one dispatch may take. The handler
// keeps running in its goroutine after a timeout; only the reply is
// abandoned, since a local callable cannot be cancelled from outside.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *message.Call) *message.Reply {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan *message.Reply, 1)
			go func() {
				done <- next(ctx, call)
			}()

			select {
			case reply := <-done:
				return reply
			case <-ctx.Done():
				return &message.Reply{Error: "request timed out"}
			}
		}
	}
}
