// Package wire implements the typed value codec set: a closed registry of
// descriptors that convert native Go values to and from a positional,
// self-describing wire representation.
//
// Each descriptor owns the paired encode/decode rule for one value kind.
// Composite descriptors (sequences, mappings, tagged unions) derive their
// signature recursively from their element descriptors, so signatures are
// unique per shape. Descriptor sets are built once at startup and treated
// as read-only afterwards.
package wire

import (
	"fmt"
	"reflect"
)

// Descriptor is one registry entry of the codec set: a wire type tag, the
// composite signature string, and the paired encode/decode operations.
type Descriptor struct {
	Tag       Tag
	Signature string

	goType reflect.Type
	enc    func(c *Cursor, v Value) error
	dec    func(c *Cursor) (Value, error)
}

// GoType returns the native Go type this descriptor encodes.
func (d *Descriptor) GoType() reflect.Type {
	return d.goType
}

// Matches reports whether v is encodable by this descriptor. Named types
// with the same underlying kind are accepted; cross-width integer
// conversions are not.
func (d *Descriptor) Matches(v Value) bool {
	rt := reflect.TypeOf(v)
	if rt == nil {
		return false
	}
	if rt == d.goType {
		return true
	}
	return rt.Kind() == d.goType.Kind() && rt.ConvertibleTo(d.goType)
}

// Encode appends the wire representation of v to the cursor. On failure
// nothing is left on the cursor beyond what was already there.
func (d *Descriptor) Encode(c *Cursor, v Value) error {
	mark := len(c.buf)
	if err := d.enc(c, v); err != nil {
		c.buf = c.buf[:mark]
		return err
	}
	return nil
}

// Decode consumes exactly one value of this kind from the cursor. On
// failure the cursor is rewound to where the value started, so the error
// is local to this one attempt.
func (d *Descriptor) Decode(c *Cursor) (Value, error) {
	mark := c.pos
	v, err := d.dec(c)
	if err != nil {
		c.pos = mark
		return nil, err
	}
	return v, nil
}

func coerce(v Value, t reflect.Type, tag Tag) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return reflect.Value{}, fmt.Errorf("wire: cannot encode nil as %s", tag)
	}
	if rv.Type() == t {
		return rv, nil
	}
	// Same-kind conversion accepts named types. Different widths or kinds
	// are rejected outright: no implicit narrowing.
	if rv.Kind() == t.Kind() && rv.Type().ConvertibleTo(t) {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("wire: cannot encode %T as %s", v, tag)
}

// The basic descriptors. These are the process-wide registry entries;
// composite descriptors are derived from them via ArrayOf, DictOf and
// VariantOf.
var (
	Boolean    = newBooleanDescriptor()
	Uint8      = newUintDescriptor(TagUint8, sigUint8, uint8(0))
	Int16      = newIntDescriptor(TagInt16, sigInt16, int16(0))
	Uint16     = newUintDescriptor(TagUint16, sigUint16, uint16(0))
	Int32      = newIntDescriptor(TagInt32, sigInt32, int32(0))
	Uint32     = newUintDescriptor(TagUint32, sigUint32, uint32(0))
	Int64      = newIntDescriptor(TagInt64, sigInt64, int64(0))
	Uint64     = newUintDescriptor(TagUint64, sigUint64, uint64(0))
	String     = newStringDescriptor()
	ObjectPath = newObjectPathDescriptor()
)

// nullString marks a string slot with no content. Encode never produces
// it; a peer that does gets a hard decode failure.
const nullString = ^uint32(0)

func newUintDescriptor(tag Tag, sig string, proto Value) *Descriptor {
	t := reflect.TypeOf(proto)
	size := int(t.Size())
	return &Descriptor{
		Tag:       tag,
		Signature: sig,
		goType:    t,
		enc: func(c *Cursor, v Value) error {
			rv, err := coerce(v, t, tag)
			if err != nil {
				return err
			}
			u := rv.Uint()
			switch size {
			case 1:
				c.writeUint8(uint8(u))
			case 2:
				c.writeUint16(uint16(u))
			case 4:
				c.writeUint32(uint32(u))
			default:
				c.writeUint64(u)
			}
			return nil
		},
		dec: func(c *Cursor) (Value, error) {
			switch size {
			case 1:
				return c.readUint8()
			case 2:
				return c.readUint16()
			case 4:
				return c.readUint32()
			default:
				return c.readUint64()
			}
		},
	}
}

func newIntDescriptor(tag Tag, sig string, proto Value) *Descriptor {
	t := reflect.TypeOf(proto)
	size := int(t.Size())
	return &Descriptor{
		Tag:       tag,
		Signature: sig,
		goType:    t,
		enc: func(c *Cursor, v Value) error {
			rv, err := coerce(v, t, tag)
			if err != nil {
				return err
			}
			// Two's complement survives the round trip through uint64.
			i := rv.Int()
			switch size {
			case 2:
				c.writeUint16(uint16(i))
			case 4:
				c.writeUint32(uint32(i))
			default:
				c.writeUint64(uint64(i))
			}
			return nil
		},
		dec: func(c *Cursor) (Value, error) {
			switch size {
			case 2:
				u, err := c.readUint16()
				if err != nil {
					return nil, err
				}
				return int16(u), nil
			case 4:
				u, err := c.readUint32()
				if err != nil {
					return nil, err
				}
				return int32(u), nil
			default:
				u, err := c.readUint64()
				if err != nil {
					return nil, err
				}
				return int64(u), nil
			}
		},
	}
}

func newBooleanDescriptor() *Descriptor {
	t := reflect.TypeOf(false)
	return &Descriptor{
		Tag:       TagBoolean,
		Signature: sigBoolean,
		goType:    t,
		// Booleans are marshalled as 4-byte unsigned integers restricted
		// to {0,1}, matching the message-bus convention.
		enc: func(c *Cursor, v Value) error {
			rv, err := coerce(v, t, TagBoolean)
			if err != nil {
				return err
			}
			if rv.Bool() {
				c.writeUint32(1)
			} else {
				c.writeUint32(0)
			}
			return nil
		},
		dec: func(c *Cursor) (Value, error) {
			u, err := c.readUint32()
			if err != nil {
				return nil, err
			}
			switch u {
			case 0:
				return false, nil
			case 1:
				return true, nil
			default:
				return nil, ErrInvalidBoolean
			}
		},
	}
}

func encodeString(c *Cursor, s string) {
	c.writeUint32(uint32(len(s)))
	c.writeBytes([]byte(s))
}

func decodeString(c *Cursor) (string, error) {
	n, err := c.readUint32()
	if err != nil {
		return "", err
	}
	if n == nullString {
		return "", ErrNullString
	}
	p, err := c.readBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(p), nil
}

func newStringDescriptor() *Descriptor {
	t := reflect.TypeOf("")
	return &Descriptor{
		Tag:       TagString,
		Signature: sigString,
		goType:    t,
		enc: func(c *Cursor, v Value) error {
			rv, err := coerce(v, t, TagString)
			if err != nil {
				return err
			}
			encodeString(c, rv.String())
			return nil
		},
		dec: func(c *Cursor) (Value, error) {
			s, err := decodeString(c)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
	}
}

func newObjectPathDescriptor() *Descriptor {
	t := reflect.TypeOf(ObjectRef{})
	return &Descriptor{
		Tag:       TagObject,
		Signature: sigObject,
		goType:    t,
		// A reference encodes as its path string only. The owning
		// connection never crosses the wire; the receiving side attaches
		// its own via ObjectRef.WithConn.
		enc: func(c *Cursor, v Value) error {
			ref, ok := v.(ObjectRef)
			if !ok {
				return fmt.Errorf("wire: cannot encode %T as %s", v, TagObject)
			}
			encodeString(c, ref.Path)
			return nil
		},
		dec: func(c *Cursor) (Value, error) {
			path, err := decodeString(c)
			if err != nil {
				return nil, err
			}
			return ObjectRef{Path: path}, nil
		},
	}
}

// ArrayOf derives the descriptor for a sequence of elem values. Element
// order and duplicates are preserved.
func ArrayOf(elem *Descriptor) *Descriptor {
	d := &Descriptor{
		Tag:       TagArray,
		Signature: sigArray + elem.Signature,
		goType:    reflect.TypeOf([]Value{}),
	}
	d.enc = func(c *Cursor, v Value) error {
		seq, ok := v.([]Value)
		if !ok {
			return fmt.Errorf("wire: cannot encode %T as %s", v, TagArray)
		}
		off := c.reserveUint32()
		start := len(c.buf)
		for _, el := range seq {
			if err := elem.enc(c, el); err != nil {
				return err
			}
		}
		c.patchUint32(off, uint32(len(c.buf)-start))
		return nil
	}
	d.dec = func(c *Cursor) (Value, error) {
		n, err := c.readUint32()
		if err != nil {
			return nil, err
		}
		end := c.pos + int(n)
		if int(n) < 0 || end > len(c.buf) {
			return nil, ErrCorruptContainer
		}
		seq := []Value{}
		for c.pos < end {
			el, err := elem.dec(c)
			if err != nil {
				return nil, err
			}
			if c.pos > end {
				return nil, ErrCorruptContainer
			}
			seq = append(seq, el)
		}
		return seq, nil
	}
	return d
}

// DictOf derives the descriptor for a mapping with key and val entries.
// Keys must be basic types. Wire entry order is not preserved, and a
// duplicate key on the wire keeps only the last-written value.
func DictOf(key, val *Descriptor) *Descriptor {
	switch key.Tag {
	case TagArray, TagDict, TagVariant, TagInvalid:
		panic("wire: dict key must be a basic type, got " + key.Tag.String())
	}
	d := &Descriptor{
		Tag:       TagDict,
		Signature: sigArray + "{" + key.Signature + val.Signature + "}",
		goType:    reflect.TypeOf(map[Value]Value{}),
	}
	d.enc = func(c *Cursor, v Value) error {
		m, ok := v.(map[Value]Value)
		if !ok {
			return fmt.Errorf("wire: cannot encode %T as %s", v, TagDict)
		}
		off := c.reserveUint32()
		start := len(c.buf)
		for k, mv := range m {
			if err := key.enc(c, k); err != nil {
				return err
			}
			if err := val.enc(c, mv); err != nil {
				return err
			}
		}
		c.patchUint32(off, uint32(len(c.buf)-start))
		return nil
	}
	d.dec = func(c *Cursor) (Value, error) {
		n, err := c.readUint32()
		if err != nil {
			return nil, err
		}
		end := c.pos + int(n)
		if int(n) < 0 || end > len(c.buf) {
			return nil, ErrCorruptContainer
		}
		m := map[Value]Value{}
		for c.pos < end {
			k, err := key.dec(c)
			if err != nil {
				return nil, err
			}
			mv, err := val.dec(c)
			if err != nil {
				return nil, err
			}
			if c.pos > end {
				return nil, ErrCorruptContainer
			}
			m[k] = mv
		}
		return m, nil
	}
	return d
}

// VariantOf derives a tagged-union descriptor over the given alternatives.
// Decoding tries the alternatives in the order given here and commits to
// the first whose signature equals the wire signature exactly, so this
// order is part of the schema and must stay stable. Two structurally
// different alternatives with the same signature would be unresolvable on
// the wire; duplicates are therefore rejected up front.
func VariantOf(alts ...*Descriptor) *Descriptor {
	seen := make(map[string]bool, len(alts))
	for _, alt := range alts {
		if seen[alt.Signature] {
			panic("wire: duplicate variant alternative signature " + alt.Signature)
		}
		seen[alt.Signature] = true
	}
	d := &Descriptor{
		Tag:       TagVariant,
		Signature: sigVariant,
		goType:    reflect.TypeOf(Variant{}),
	}
	d.enc = func(c *Cursor, v Value) error {
		va, ok := v.(Variant)
		if !ok {
			return fmt.Errorf("wire: cannot encode %T as %s", v, TagVariant)
		}
		var alt *Descriptor
		if va.Sig != "" {
			for _, a := range alts {
				if a.Signature == va.Sig {
					alt = a
					break
				}
			}
		} else {
			for _, a := range alts {
				if a.Matches(va.Val) {
					alt = a
					break
				}
			}
		}
		if alt == nil {
			return ErrUnsupportedVariantSignature
		}
		if err := writeSignature(c, alt.Signature); err != nil {
			return err
		}
		return alt.enc(c, va.Val)
	}
	d.dec = func(c *Cursor) (Value, error) {
		sig, err := readSignature(c)
		if err != nil {
			return nil, err
		}
		for _, a := range alts {
			if a.Signature == sig {
				val, err := a.dec(c)
				if err != nil {
					return nil, err
				}
				return Variant{Sig: sig, Val: val}, nil
			}
		}
		return nil, ErrUnsupportedVariantSignature
	}
	return d
}

func writeSignature(c *Cursor, sig string) error {
	if len(sig) > 255 {
		return fmt.Errorf("wire: signature too long: %d bytes", len(sig))
	}
	c.writeUint8(uint8(len(sig)))
	c.writeBytes([]byte(sig))
	return nil
}

func readSignature(c *Cursor) (string, error) {
	n, err := c.readUint8()
	if err != nil {
		return "", err
	}
	p, err := c.readBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(p), nil
}

// EncodeTagged appends a self-describing value: signature prefix followed
// by the payload. On failure nothing is appended.
func EncodeTagged(c *Cursor, d *Descriptor, v Value) error {
	mark := len(c.buf)
	if err := writeSignature(c, d.Signature); err != nil {
		return err
	}
	if err := d.enc(c, v); err != nil {
		c.buf = c.buf[:mark]
		return err
	}
	return nil
}

// DecodeTagged consumes one self-describing value whose signature must
// match want exactly. A differing signature rewinds the cursor and
// reports expected vs. actual tags.
func DecodeTagged(c *Cursor, want *Descriptor) (Value, error) {
	mark := c.pos
	sig, err := readSignature(c)
	if err != nil {
		c.pos = mark
		return nil, err
	}
	if sig != want.Signature {
		c.pos = mark
		return nil, &TypeMismatchError{Expected: want.Tag, Actual: TagOfSignature(sig)}
	}
	v, err := want.dec(c)
	if err != nil {
		c.pos = mark
		return nil, err
	}
	return v, nil
}
