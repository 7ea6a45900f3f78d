package wire

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func roundTrip(t *testing.T, d *Descriptor, v Value) Value {
	t.Helper()
	c := NewCursor(nil)
	if err := d.Encode(c, v); err != nil {
		t.Fatalf("encode %v as %s: %v", v, d.Tag, err)
	}
	got, err := d.Decode(NewCursor(c.Bytes()))
	if err != nil {
		t.Fatalf("decode %s: %v", d.Tag, err)
	}
	return got
}

func TestBasicRoundTrips(t *testing.T) {
	cases := []struct {
		desc *Descriptor
		val  Value
	}{
		{Boolean, true},
		{Boolean, false},
		{Uint8, uint8(0xAB)},
		{Int16, int16(-1234)},
		{Uint16, uint16(54321)},
		{Int32, int32(-2000000000)},
		{Uint32, uint32(4000000000)},
		{Int64, int64(-9000000000000000000)},
		{Uint64, uint64(18000000000000000000)},
		{String, "hello"},
		{String, ""},
		{ObjectPath, ObjectRef{Path: "/service/arith"}},
	}
	for _, tc := range cases {
		got := roundTrip(t, tc.desc, tc.val)
		if diff := cmp.Diff(tc.val, got); diff != "" {
			t.Errorf("%s round trip mismatch (-want +got):\n%s", tc.desc.Tag, diff)
		}
	}
}

func TestBooleanWireWidth(t *testing.T) {
	c := NewCursor(nil)
	if err := Boolean.Encode(c, true); err != nil {
		t.Fatal(err)
	}
	if len(c.Bytes()) != 4 {
		t.Fatalf("boolean should occupy 4 bytes on the wire, got %d", len(c.Bytes()))
	}
}

func TestBooleanRejectsOutOfRange(t *testing.T) {
	c := NewCursor(nil)
	c.writeUint32(2)
	_, err := Boolean.Decode(NewCursor(c.Bytes()))
	if !errors.Is(err, ErrInvalidBoolean) {
		t.Fatalf("expect ErrInvalidBoolean, got %v", err)
	}
}

func TestNullStringRejected(t *testing.T) {
	c := NewCursor(nil)
	c.writeUint32(nullString)
	_, err := String.Decode(NewCursor(c.Bytes()))
	if !errors.Is(err, ErrNullString) {
		t.Fatalf("expect ErrNullString, got %v", err)
	}
}

func TestNamedTypeCoercion(t *testing.T) {
	type port uint16
	got := roundTrip(t, Uint16, port(8080))
	if got != uint16(8080) {
		t.Fatalf("expect uint16 8080, got %T %v", got, got)
	}
}

func TestNoImplicitNarrowing(t *testing.T) {
	c := NewCursor(nil)
	if err := Uint16.Encode(c, uint32(8080)); err == nil {
		t.Fatal("expect cross-width encode to fail")
	}
	if len(c.Bytes()) != 0 {
		t.Fatalf("failed encode left %d bytes on the cursor", len(c.Bytes()))
	}
}

func TestArrayPreservesOrderAndDuplicates(t *testing.T) {
	arr := ArrayOf(String)
	want := []Value{"a", "b", "a"}
	got := roundTrip(t, arr, want)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("array mismatch (-want +got):\n%s", diff)
	}
}

func TestArrayOfArrays(t *testing.T) {
	arr := ArrayOf(ArrayOf(Uint32))
	if arr.Signature != "aau" {
		t.Fatalf("expect signature aau, got %s", arr.Signature)
	}
	want := []Value{[]Value{uint32(1), uint32(2)}, []Value{}}
	got := roundTrip(t, arr, want)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("nested array mismatch (-want +got):\n%s", diff)
	}
}

func TestDictRoundTrip(t *testing.T) {
	dict := DictOf(String, Int32)
	if dict.Signature != "a{si}" {
		t.Fatalf("expect signature a{si}, got %s", dict.Signature)
	}
	want := map[Value]Value{"k1": int32(7), "k2": int32(9)}
	got := roundTrip(t, dict, want)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("dict mismatch (-want +got):\n%s", diff)
	}
}

func TestDictDuplicateKeyKeepsLast(t *testing.T) {
	dict := DictOf(String, Uint32)

	// Hand-build a wire dict with the same key twice. Encode never
	// produces this, but a peer might.
	c := NewCursor(nil)
	off := c.reserveUint32()
	start := len(c.buf)
	encodeString(c, "k")
	c.writeUint32(1)
	encodeString(c, "k")
	c.writeUint32(2)
	c.patchUint32(off, uint32(len(c.buf)-start))

	got, err := dict.Decode(NewCursor(c.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	m := got.(map[Value]Value)
	if len(m) != 1 || m["k"] != uint32(2) {
		t.Fatalf("expect {k:2}, got %v", m)
	}
}

func TestDictRejectsCompositeKey(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expect panic for composite dict key")
		}
	}()
	DictOf(ArrayOf(Uint8), String)
}

func TestVariantSelectsBySignature(t *testing.T) {
	v := VariantOf(String, Boolean, Uint32)

	// A boolean occupies the same 4 bytes as a uint32 on the wire; only
	// the signature disambiguates them.
	c := NewCursor(nil)
	if err := v.Encode(c, Variant{Val: true}); err != nil {
		t.Fatal(err)
	}
	got, err := v.Decode(NewCursor(c.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	va := got.(Variant)
	if va.Sig != "b" || va.Val != true {
		t.Fatalf("expect boolean alternative true, got sig %q val %v", va.Sig, va.Val)
	}
}

func TestVariantExplicitSignature(t *testing.T) {
	v := VariantOf(Uint32, Uint64)
	c := NewCursor(nil)
	if err := v.Encode(c, NewVariant(Uint64, uint64(5))); err != nil {
		t.Fatal(err)
	}
	got, err := v.Decode(NewCursor(c.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if va := got.(Variant); va.Sig != "t" || va.Val != uint64(5) {
		t.Fatalf("expect uint64 alternative, got sig %q val %v", va.Sig, va.Val)
	}
}

func TestVariantUnknownSignature(t *testing.T) {
	v := VariantOf(String, Boolean)
	c := NewCursor(nil)
	if err := writeSignature(c, "u"); err != nil {
		t.Fatal(err)
	}
	c.writeUint32(1)
	_, err := v.Decode(NewCursor(c.Bytes()))
	if !errors.Is(err, ErrUnsupportedVariantSignature) {
		t.Fatalf("expect ErrUnsupportedVariantSignature, got %v", err)
	}
}

func TestVariantRejectsDuplicateAlternatives(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expect panic for duplicate alternative signatures")
		}
	}()
	VariantOf(Uint32, Uint32)
}

func TestDecodeRewindsOnFailure(t *testing.T) {
	c := NewCursor(nil)
	if err := EncodeTagged(c, Uint32, uint32(42)); err != nil {
		t.Fatal(err)
	}

	r := NewCursor(c.Bytes())
	_, err := DecodeTagged(r, String)
	var mismatch *TypeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expect TypeMismatchError, got %v", err)
	}
	if mismatch.Expected != TagString || mismatch.Actual != TagUint32 {
		t.Fatalf("expect string/uint32, got %s/%s", mismatch.Expected, mismatch.Actual)
	}

	// The failed attempt must not have consumed anything.
	got, err := DecodeTagged(r, Uint32)
	if err != nil {
		t.Fatal(err)
	}
	if got != uint32(42) {
		t.Fatalf("expect 42 after rewind, got %v", got)
	}
}

func TestTruncatedValue(t *testing.T) {
	c := NewCursor(nil)
	if err := Uint64.Encode(c, uint64(7)); err != nil {
		t.Fatal(err)
	}
	r := NewCursor(c.Bytes()[:5])
	if _, err := Uint64.Decode(r); !errors.Is(err, ErrCorruptContainer) {
		t.Fatalf("expect ErrCorruptContainer, got %v", err)
	}
	if r.Remaining() != 5 {
		t.Fatalf("failed decode consumed bytes: %d remaining", r.Remaining())
	}
}

func TestObjectRefIdentity(t *testing.T) {
	got := roundTrip(t, ObjectPath, ObjectRef{Path: "/a"})
	ref := got.(ObjectRef)
	if ref.Conn != nil {
		t.Fatal("decoded reference must not carry a connection")
	}
	if !ref.Equal(ObjectRef{Path: "/a"}) {
		t.Fatalf("expect /a with nil conn, got %+v", ref)
	}
}

func TestTagOfSignature(t *testing.T) {
	cases := map[string]Tag{
		"b":     TagBoolean,
		"u":     TagUint32,
		"s":     TagString,
		"o":     TagObject,
		"as":    TagArray,
		"a{su}": TagDict,
		"v":     TagVariant,
		"":      TagInvalid,
		"?":     TagInvalid,
	}
	for sig, want := range cases {
		if got := TagOfSignature(sig); got != want {
			t.Errorf("TagOfSignature(%q) = %s, want %s", sig, got, want)
		}
	}
}
