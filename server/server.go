// Package server hosts endpoints behind a TCP listener: object
// registration, middleware chain, parallel request processing, and
// graceful shutdown.
//
// Request processing pipeline:
//
//	Accept conn → handleConn (single goroutine reads frames)
//	  → for each request: go handleRequest (parallel processing)
//	    → DecodeCall → middleware chain → route to endpoint →
//	      Dispatch (decode, merge, invoke, encode) → write reply frame
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"wirecall/endpoint"
	"wirecall/introspect"
	"wirecall/message"
	"wirecall/middleware"
	"wirecall/protocol"
	"wirecall/registry"
	"wirecall/wire"
)

// Server exposes registered endpoints to remote callers. Endpoints are
// grouped by object path: one process can host several objects, each
// with its own set of callable methods.
type Server struct {
	name          string                                   // service name, used as the registry key
	log           *zap.Logger
	objects       map[string]map[string]*endpoint.Endpoint // path → "Interface.Method" → endpoint
	order         map[string][]*endpoint.Endpoint          // path → endpoints in registration order
	listener      net.Listener
	wg            sync.WaitGroup          // in-flight requests, drained on shutdown
	shutdown      atomic.Bool             // suppresses the Accept error caused by Close
	middlewares   []middleware.Middleware // applied in registration order
	handler       middleware.HandlerFunc  // built once at Serve: mw(mw(...(route)))
	registry      registry.Registry       // nil when discovery is not used
	advertiseAddr string                  // routable address published to the registry
}

// NewServer creates a server for the named service. A nil logger
// disables logging.
func NewServer(name string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		name:    name,
		log:     log,
		objects: make(map[string]map[string]*endpoint.Endpoint),
		order:   make(map[string][]*endpoint.Endpoint),
	}
}

// Register exposes ep as path's iface.method. All registration happens
// before Serve; the maps are read-only once the accept loop starts.
func (svr *Server) Register(path, iface string, ep *endpoint.Endpoint) error {
	methods, ok := svr.objects[path]
	if !ok {
		methods = make(map[string]*endpoint.Endpoint)
		svr.objects[path] = methods
	}
	key := iface + "." + ep.Name()
	if _, dup := methods[key]; dup {
		return fmt.Errorf("server: %s already exposes %s", path, key)
	}
	methods[key] = ep
	svr.order[path] = append(svr.order[path], ep)
	return nil
}

// Use appends a middleware. Middlewares run in the order they are added.
func (svr *Server) Use(mw middleware.Middleware) {
	svr.middlewares = append(svr.middlewares, mw)
}

// Serve listens on the given address, optionally advertises every
// registered object to the registry, and runs the accept loop until
// Shutdown or a listener error.
//
// advertiseAddr is the address published to the registry. It differs
// from the listen address because ":8080" resolves to "[::]:8080"
// locally and peers need a routable host.
func (svr *Server) Serve(network, address string, advertiseAddr string, reg registry.Registry) error {
	listener, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	svr.listener = listener

	// Build the middleware chain once at startup, not per-request.
	// Chain(A, B, C)(route) → A(B(C(route))).
	svr.handler = middleware.Chain(svr.middlewares...)(svr.route)

	svr.advertiseAddr = advertiseAddr
	if reg != nil {
		svr.registry = reg
		for path, eps := range svr.order {
			doc, err := introspect.Service(svr.name, eps)
			if err != nil {
				return fmt.Errorf("server: assembling descriptor for %s: %w", path, err)
			}
			err = reg.Register(svr.name, registry.ServiceInstance{
				Addr:       advertiseAddr,
				Path:       path,
				Weight:     1,
				Descriptor: doc,
			}, 10) // TTL 10s, KeepAlive renews in the background
			if err != nil {
				return fmt.Errorf("server: advertising %s: %w", path, err)
			}
			svr.log.Info("advertised object",
				zap.String("service", svr.name),
				zap.String("path", path),
				zap.Int("endpoints", len(eps)))
		}
	}

	svr.log.Info("serving", zap.String("addr", listener.Addr().String()))
	for {
		conn, err := listener.Accept()
		if err != nil {
			// Shutdown closes the listener; only report errors that were
			// not ours.
			if svr.shutdown.Load() {
				return nil
			}
			return err
		}
		go svr.handleConn(conn)
	}
}

// handleConn reads frames sequentially (a single reader owns the frame
// boundaries) and dispatches each request to its own goroutine.
//
// The per-connection write mutex is shared by all request goroutines so
// concurrently written reply frames never interleave.
func (svr *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	writeMu := &sync.Mutex{}
	for {
		header, body, err := protocol.Decode(conn)
		if err != nil {
			return // connection closed or stream corrupted
		}

		// Heartbeats keep the connection alive, nothing to do.
		if header.MsgType == protocol.MsgTypeHeartbeat {
			continue
		}

		// Without `go` a slow handler would stall every later request on
		// this connection. The Add happens here, not in the goroutine, so
		// Shutdown's Wait can never miss a request that was accepted but
		// not yet scheduled.
		svr.wg.Add(1)
		go svr.handleRequest(header, body, conn, writeMu)
	}
}

// handleRequest runs one call end to end and writes the reply frame.
func (svr *Server) handleRequest(header *protocol.Header, body []byte, conn net.Conn, writeMu *sync.Mutex) {
	defer svr.wg.Done()

	call, err := message.DecodeCall(body)
	var reply *message.Reply
	if err != nil {
		reply = &message.Reply{Error: err.Error()}
	} else {
		reply = svr.handler(context.Background(), call)
	}

	msgType := protocol.MsgTypeReply
	payload := reply.Payload
	if reply.Error != "" {
		msgType = protocol.MsgTypeError
		payload, err = message.EncodeError(reply.Error)
		if err != nil {
			svr.log.Error("encoding error reply", zap.Error(err))
			return
		}
	}

	// Same Seq as the request; that is how the caller matches the reply.
	frame := protocol.Frame(&protocol.Header{
		MsgType: msgType,
		Seq:     header.Seq,
		BodyLen: uint32(len(payload)),
	}, payload)

	writeMu.Lock()
	defer writeMu.Unlock()
	if _, err := conn.Write(frame); err != nil {
		svr.log.Warn("writing reply", zap.Uint32("seq", header.Seq), zap.Error(err))
	}
}

// Shutdown performs graceful shutdown:
//  1. Deregister from the registry, so clients stop routing here first
//  2. Set the shutdown flag, so the Accept error reads as intentional
//  3. Close the listener, stopping new connections
//  4. Wait for in-flight requests to finish, bounded by timeout
func (svr *Server) Shutdown(timeout time.Duration) error {
	if svr.registry != nil {
		svr.registry.Deregister(svr.name, svr.advertiseAddr)
	}

	// Flag before closing: the other way round, Accept's error fires
	// before the flag is set and Serve returns a real error instead of nil.
	svr.shutdown.Store(true)
	if svr.listener != nil {
		svr.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		svr.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("server: timeout waiting for in-flight requests to finish")
	}
}

// route is the innermost handler: it resolves the target endpoint and
// dispatches the call. The middleware chain wraps it.
func (svr *Server) route(ctx context.Context, call *message.Call) *message.Reply {
	methods, ok := svr.objects[call.Target]
	if !ok {
		return &message.Reply{Error: fmt.Sprintf("unknown object %q", call.Target)}
	}
	ep, ok := methods[call.ServiceMethod()]
	if !ok {
		return &message.Reply{Error: fmt.Sprintf("object %q has no method %q", call.Target, call.ServiceMethod())}
	}

	in := wire.NewCursor(call.Args)
	out := wire.NewCursor(nil)
	if err := ep.Dispatch(in, out); err != nil {
		return &message.Reply{Error: err.Error()}
	}
	return &message.Reply{Payload: out.Bytes()}
}
