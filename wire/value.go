package wire

// Value is the runtime union of everything representable on the wire:
// bool, the fixed-width integers, string, []Value, map[Value]Value,
// Variant, and ObjectRef. Codecs type-check dynamically against their
// descriptor's native Go type.
type Value = any

// Conn identifies the transport connection that owns a remote object.
// The codec never calls into it; it rides along for identity only, so
// two references are equal exactly when they share a connection and a
// path. Connections implement it by reporting their peer address.
type Conn interface {
	String() string
}

// ObjectRef identifies a remote entity by owning connection plus a
// path-like name. It is a plain value: copy it freely, it does not own
// the connection. A reference decoded off the wire has a nil Conn: the
// wire format carries no connection identity, the receiver attaches one
// from context.
type ObjectRef struct {
	Conn Conn
	Path string
}

// Equal reports whether both references point at the same entity:
// connection identity plus path equality.
func (r ObjectRef) Equal(other ObjectRef) bool {
	return r.Conn == other.Conn && r.Path == other.Path
}

// WithConn returns a copy of the reference bound to conn.
func (r ObjectRef) WithConn(conn Conn) ObjectRef {
	return ObjectRef{Conn: conn, Path: r.Path}
}

// Variant is a tagged union value: exactly one active alternative plus
// the signature identifying it.
type Variant struct {
	Sig string
	Val Value
}

// NewVariant wraps v as the alternative described by d.
func NewVariant(d *Descriptor, v Value) Variant {
	return Variant{Sig: d.Signature, Val: v}
}

// Tagged pairs a value with the descriptor that encodes it. Call arguments
// and reply payloads are streams of tagged values.
type Tagged struct {
	Desc *Descriptor
	Val  Value
}
