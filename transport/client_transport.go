// Package transport implements the outbound half of the engine: framing
// calls, tracking them in a pending-call table, and dispatching typed
// completions when replies arrive.
//
// A ClientTransport multiplexes many concurrent calls over one
// connection. Each call gets a unique sequence number; a single receive
// goroutine reads frames and routes each reply or error to the pending
// entry with the matching sequence.
//
//	goroutine-1 ──SendCall(seq=1)──┐
//	goroutine-2 ──SendCall(seq=2)──┼──→ single conn ──→ peer
//	goroutine-3 ──SendCall(seq=3)──┘
//
//	recvLoop:  ←── reply(seq=2) → pending[2].done ← typed outputs
//
// Replies are dispatched in the order the transport delivers them, which
// need not equal call-submission order.
package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"wirecall/message"
	"wirecall/protocol"
	"wirecall/wire"
)

// ErrSend reports a framing or submission failure before a call handle
// was obtained. Nothing was sent: a failed SendCall performs no partial
// send.
var ErrSend = errors.New("transport: send failed")

// Completion receives the outcome of one call: the decoded outputs on
// success, or the error (remote, decode, or transport-level) on failure.
// It is invoked exactly once per call, never both ways.
type Completion func(outs []wire.Value, err error)

// pendingCall is one in-flight call. Its captured state is owned solely
// by this entry and released atomically with it.
type pendingCall struct {
	outs  []*wire.Descriptor // expected output types, in order
	done  Completion         // nil until RegisterCompletion
	early *earlyReply        // reply that beat RegisterCompletion
}

type earlyReply struct {
	header *protocol.Header
	body   []byte
	err    error // transport-level failure, e.g. connection loss
}

const heartbeatInterval = 30 * time.Second

// ClientTransport manages a single multiplexed connection.
type ClientTransport struct {
	conn net.Conn
	log  *zap.Logger

	sending sync.Mutex // serializes frame writes; shared conn, one writer at a time

	mu      sync.Mutex // guards seq, pending, closed
	seq     uint32
	pending map[uint32]*pendingCall
	closed  bool
}

// NewClientTransport wraps conn and starts the receive and heartbeat
// loops. A nil logger disables logging.
func NewClientTransport(conn net.Conn, logger *zap.Logger) *ClientTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &ClientTransport{
		conn:    conn,
		log:     logger,
		pending: make(map[uint32]*pendingCall),
	}
	go t.recvLoop()
	go t.heartbeatLoop(heartbeatInterval)
	return t
}

// String identifies this connection as the owner of remote objects
// (wire.Conn).
func (t *ClientTransport) String() string {
	return t.conn.RemoteAddr().String()
}

// Ref returns a reference to a remote object on this connection.
func (t *ClientTransport) Ref(path string) wire.ObjectRef {
	return wire.ObjectRef{Conn: t, Path: path}
}

// SendCall frames and transmits one call: target object path, interface
// name, method name, and the typed argument list. The returned sequence
// number is the call handle; it exists only once the frame was handed to
// the connection in a single write. Any encode or write failure returns
// ErrSend-wrapped and leaves nothing on the wire.
func (t *ClientTransport) SendCall(target, iface, method string, args []wire.Tagged) (uint32, error) {
	argc := wire.NewCursor(nil)
	for _, a := range args {
		if err := wire.EncodeTagged(argc, a.Desc, a.Val); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrSend, err)
		}
	}
	body, err := message.EncodeCall(&message.Call{
		Target:    target,
		Interface: iface,
		Method:    method,
		Args:      argc.Bytes(),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSend, err)
	}

	// Register the pending entry before the frame can possibly be
	// answered, so the recvLoop always finds a home for the reply.
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, fmt.Errorf("%w: connection closed", ErrSend)
	}
	t.seq++
	seq := t.seq
	t.pending[seq] = &pendingCall{}
	t.mu.Unlock()

	frame := protocol.Frame(&protocol.Header{MsgType: protocol.MsgTypeCall, Seq: seq}, body)

	t.sending.Lock()
	_, err = t.conn.Write(frame)
	t.sending.Unlock()
	if err != nil {
		t.mu.Lock()
		delete(t.pending, seq)
		t.mu.Unlock()
		return 0, fmt.Errorf("%w: %v", ErrSend, err)
	}
	return seq, nil
}

// RegisterCompletion attaches the expected output types and the typed
// completion to an in-flight call. The completion fires exactly once,
// normally on the receive goroutine. The single exception: if the reply
// already arrived, it fires here, before RegisterCompletion returns.
func (t *ClientTransport) RegisterCompletion(seq uint32, outs []*wire.Descriptor, done Completion) error {
	t.mu.Lock()
	pc, ok := t.pending[seq]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("transport: unknown call handle %d", seq)
	}
	pc.outs = outs
	if pc.early != nil {
		// Reply beat us here. Deliver it now, exactly once.
		delete(t.pending, seq)
		early := pc.early
		t.mu.Unlock()
		if early.err != nil {
			done(nil, early.err)
		} else {
			t.dispatch(outs, done, early.header, early.body)
		}
		return nil
	}
	pc.done = done
	t.mu.Unlock()
	return nil
}

// Call is the synchronous convenience wrapper: send, register, wait.
func (t *ClientTransport) Call(target, iface, method string, args []wire.Tagged, outs []*wire.Descriptor) ([]wire.Value, error) {
	seq, err := t.SendCall(target, iface, method, args)
	if err != nil {
		return nil, err
	}
	type result struct {
		outs []wire.Value
		err  error
	}
	ch := make(chan result, 1)
	if err := t.RegisterCompletion(seq, outs, func(vals []wire.Value, err error) {
		ch <- result{vals, err}
	}); err != nil {
		return nil, err
	}
	r := <-ch
	return r.outs, r.err
}

// recvLoop runs in a dedicated goroutine. It reads frames sequentially
// (a byte stream has exactly one reader) and routes each completion to
// the pending entry that owns it.
func (t *ClientTransport) recvLoop() {
	for {
		header, body, err := protocol.Decode(t.conn)
		if err != nil {
			t.failAllPending(err)
			return
		}
		if header.MsgType == protocol.MsgTypeHeartbeat {
			continue
		}

		t.mu.Lock()
		pc, ok := t.pending[header.Seq]
		if !ok {
			t.mu.Unlock()
			t.log.Warn("reply for unknown call", zap.Uint32("seq", header.Seq))
			continue
		}
		if pc.done == nil {
			// Completion not registered yet; stash the reply so
			// RegisterCompletion can deliver it synchronously.
			pc.early = &earlyReply{header: header, body: body}
			t.mu.Unlock()
			continue
		}
		delete(t.pending, header.Seq)
		t.mu.Unlock()

		t.dispatch(pc.outs, pc.done, header, body)
	}
}

// dispatch classifies one completion frame and invokes the typed
// completion exactly once. A decode failure of any output slot aborts
// the whole decode: the completion sees the error, never partial values.
func (t *ClientTransport) dispatch(outs []*wire.Descriptor, done Completion, header *protocol.Header, body []byte) {
	switch header.MsgType {
	case protocol.MsgTypeError:
		text, err := message.DecodeError(body)
		if err != nil {
			done(nil, err)
			return
		}
		done(nil, &wire.RemoteError{Text: text})
	case protocol.MsgTypeReply:
		c := wire.NewCursor(body)
		vals := make([]wire.Value, 0, len(outs))
		for _, d := range outs {
			v, err := wire.DecodeTagged(c, d)
			if err != nil {
				done(nil, err)
				return
			}
			vals = append(vals, v)
		}
		done(vals, nil)
	default:
		done(nil, fmt.Errorf("transport: unexpected frame type %d", header.MsgType))
	}
}

// failAllPending delivers the connection error to every in-flight call
// so no caller blocks forever. Calls that have not registered their
// completion yet get the error stashed for RegisterCompletion.
func (t *ClientTransport) failAllPending(err error) {
	t.mu.Lock()
	t.closed = true
	var notify []Completion
	for seq, pc := range t.pending {
		if pc.done != nil {
			notify = append(notify, pc.done)
			delete(t.pending, seq)
		} else {
			pc.early = &earlyReply{err: err}
		}
	}
	t.mu.Unlock()

	for _, done := range notify {
		done(nil, err)
	}
}

// Close tears down the connection; the recvLoop then fails every
// remaining pending call.
func (t *ClientTransport) Close() error {
	return t.conn.Close()
}

// heartbeatLoop sends periodic empty frames so an idle connection is not
// reaped by the peer. Exits on the first write error.
func (t *ClientTransport) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		frame := protocol.Frame(&protocol.Header{MsgType: protocol.MsgTypeHeartbeat}, nil)
		t.sending.Lock()
		_, err := t.conn.Write(frame)
		t.sending.Unlock()
		if err != nil {
			return
		}
	}
}
