// Package middleware wraps the server's dispatch path in an onion of
// reusable handlers: logging, timeouts, rate limiting, retries.
package middleware

import (
	"context"

	"wirecall/message"
)

// HandlerFunc processes one inbound call and produces its reply.
type HandlerFunc func(ctx context.Context, call *message.Call) *message.Reply

// Middleware wraps a handler with additional behavior.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares into one. Chain(A, B, C)(handler) runs
// A.before → B.before → C.before → handler → C.after → B.after → A.after.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
