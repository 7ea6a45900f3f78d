// Package message defines the envelopes exchanged between peers.
//
// A Call names a remote entity, an interface and a method, and carries the
// positional argument stream. A Reply carries either the encoded return
// values or a single descriptive error string, never both. Each message is
// created per invocation and consumed once; the matching of replies to
// calls happens one layer down, in the frame header's sequence number.
package message

import (
	"fmt"

	"wirecall/wire"
)

// Call is an outgoing or incoming method invocation.
type Call struct {
	Target    string // object path of the entity being called
	Interface string // interface the method belongs to, e.g. "Arith"
	Method    string // method name, e.g. "Add"
	Args      []byte // signature-prefixed argument stream, positional
}

// ServiceMethod renders the routing key used by servers and registries.
func (m *Call) ServiceMethod() string {
	return m.Interface + "." + m.Method
}

// Reply is the outcome of one call.
type Reply struct {
	Payload []byte // signature-prefixed return-value stream
	Error   string // non-empty if the callee reported a failure
}

// EncodeCall serializes a call body.
func EncodeCall(m *Call) ([]byte, error) {
	c := wire.NewCursor(nil)
	for _, s := range []string{m.Target, m.Interface, m.Method} {
		if err := wire.String.Encode(c, s); err != nil {
			return nil, err
		}
	}
	c.Append(m.Args)
	return c.Bytes(), nil
}

// DecodeCall parses a call body. The argument stream is left encoded; the
// endpoint's decode chain consumes it positionally.
func DecodeCall(body []byte) (*Call, error) {
	c := wire.NewCursor(body)
	m := &Call{}
	for _, dst := range []*string{&m.Target, &m.Interface, &m.Method} {
		v, err := wire.String.Decode(c)
		if err != nil {
			return nil, fmt.Errorf("message: malformed call: %w", err)
		}
		*dst = v.(string)
	}
	m.Args = m.argsCopy(c.Rest())
	return m, nil
}

// argsCopy detaches the argument stream from the frame buffer so the call
// can outlive the read loop's scratch space.
func (m *Call) argsCopy(p []byte) []byte {
	if len(p) == 0 {
		return nil
	}
	args := make([]byte, len(p))
	copy(args, p)
	return args
}

// EncodeError serializes an error reply body: the single descriptive
// string, nothing structured.
func EncodeError(text string) ([]byte, error) {
	c := wire.NewCursor(nil)
	if err := wire.String.Encode(c, text); err != nil {
		return nil, err
	}
	return c.Bytes(), nil
}

// DecodeError parses an error reply body.
func DecodeError(body []byte) (string, error) {
	c := wire.NewCursor(body)
	v, err := wire.String.Decode(c)
	if err != nil {
		return "", fmt.Errorf("message: malformed error reply: %w", err)
	}
	return v.(string), nil
}
