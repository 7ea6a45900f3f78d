package endpoint

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"wirecall/wire"
)

func addMetadata(t *testing.T) *Metadata {
	t.Helper()
	md, err := NewMetadata("add",
		In("x", wire.Uint32),
		In("y", wire.Uint32),
		Out("sum", wire.Uint32),
	)
	require.NoError(t, err)
	return md
}

func encodeArgs(t *testing.T, args ...wire.Tagged) *wire.Cursor {
	t.Helper()
	c := wire.NewCursor(nil)
	for _, a := range args {
		require.NoError(t, wire.EncodeTagged(c, a.Desc, a.Val))
	}
	return wire.NewCursor(c.Bytes())
}

func decodeOuts(t *testing.T, out *wire.Cursor, descs ...*wire.Descriptor) []wire.Value {
	t.Helper()
	r := wire.NewCursor(out.Bytes())
	vals := make([]wire.Value, 0, len(descs))
	for _, d := range descs {
		v, err := wire.DecodeTagged(r, d)
		require.NoError(t, err)
		vals = append(vals, v)
	}
	require.Zero(t, r.Remaining(), "trailing bytes after declared outputs")
	return vals
}

func TestDispatchReturnValue(t *testing.T) {
	ep, err := New(func(x, y uint32) uint32 { return x + y }, addMetadata(t))
	require.NoError(t, err)

	in := encodeArgs(t,
		wire.Tagged{Desc: wire.Uint32, Val: uint32(3)},
		wire.Tagged{Desc: wire.Uint32, Val: uint32(4)},
	)
	out := wire.NewCursor(nil)
	require.NoError(t, ep.Dispatch(in, out))

	vals := decodeOuts(t, out, wire.Uint32)
	require.Equal(t, uint32(7), vals[0])
}

func TestDispatchPointerOutput(t *testing.T) {
	ep, err := New(func(x, y uint32, sum *uint32) { *sum = x + y }, addMetadata(t))
	require.NoError(t, err)

	in := encodeArgs(t,
		wire.Tagged{Desc: wire.Uint32, Val: uint32(10)},
		wire.Tagged{Desc: wire.Uint32, Val: uint32(20)},
	)
	out := wire.NewCursor(nil)
	require.NoError(t, ep.Dispatch(in, out))
	require.Equal(t, uint32(30), decodeOuts(t, out, wire.Uint32)[0])
}

// Output pointers may sit between inputs in the native argument list; the
// mode sequence reconciles the orders.
func TestDispatchInterleavedArguments(t *testing.T) {
	md, err := NewMetadata("f",
		In("a", wire.Uint32),
		Out("r", wire.Uint32),
		In("b", wire.Uint32),
	)
	require.NoError(t, err)

	ep, err := New(func(a uint32, r *uint32, b uint32) { *r = a*100 + b }, md)
	require.NoError(t, err)

	in := encodeArgs(t,
		wire.Tagged{Desc: wire.Uint32, Val: uint32(4)},
		wire.Tagged{Desc: wire.Uint32, Val: uint32(2)},
	)
	out := wire.NewCursor(nil)
	require.NoError(t, ep.Dispatch(in, out))
	require.Equal(t, uint32(402), decodeOuts(t, out, wire.Uint32)[0])
}

func TestDispatchDiscardedOutput(t *testing.T) {
	md, err := NewMetadata("divmod",
		In("a", wire.Uint32),
		In("b", wire.Uint32),
		Out("quot", wire.Uint32),
		OutDiscard("rem", wire.Uint32),
	)
	require.NoError(t, err)

	ep, err := New(func(a, b uint32, quot, rem *uint32) { *quot, *rem = a/b, a%b }, md)
	require.NoError(t, err)

	in := encodeArgs(t,
		wire.Tagged{Desc: wire.Uint32, Val: uint32(17)},
		wire.Tagged{Desc: wire.Uint32, Val: uint32(5)},
	)
	out := wire.NewCursor(nil)
	require.NoError(t, ep.Dispatch(in, out))

	// Only the quotient reaches the wire.
	require.Equal(t, uint32(3), decodeOuts(t, out, wire.Uint32)[0])
}

func TestDispatchCallableError(t *testing.T) {
	ep, err := New(func(x, y uint32) (uint32, error) {
		return 0, errors.New("arithmetic refused")
	}, addMetadata(t))
	require.NoError(t, err)

	in := encodeArgs(t,
		wire.Tagged{Desc: wire.Uint32, Val: uint32(1)},
		wire.Tagged{Desc: wire.Uint32, Val: uint32(2)},
	)
	out := wire.NewCursor(nil)
	err = ep.Dispatch(in, out)
	require.EqualError(t, err, "arithmetic refused")
	require.Empty(t, out.Bytes(), "failed dispatch must encode nothing")
}

func TestDispatchDecodeFailureBeforeInvoke(t *testing.T) {
	invoked := false
	ep, err := New(func(x, y uint32) uint32 { invoked = true; return 0 }, addMetadata(t))
	require.NoError(t, err)

	// Second argument is a string where uint32 is declared.
	in := encodeArgs(t,
		wire.Tagged{Desc: wire.Uint32, Val: uint32(1)},
		wire.Tagged{Desc: wire.String, Val: "two"},
	)
	err = ep.Dispatch(in, wire.NewCursor(nil))

	var mismatch *wire.TypeMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.False(t, invoked, "callable must not run after a decode failure")
}

func TestDispatchStringsAndBooleans(t *testing.T) {
	md, err := NewMetadata("greet",
		In("name", wire.String),
		In("shout", wire.Boolean),
		Out("text", wire.String),
	)
	require.NoError(t, err)

	ep, err := New(func(name string, shout bool) string {
		if shout {
			return "HELLO " + name
		}
		return "hello " + name
	}, md)
	require.NoError(t, err)

	in := encodeArgs(t,
		wire.Tagged{Desc: wire.String, Val: "ada"},
		wire.Tagged{Desc: wire.Boolean, Val: true},
	)
	out := wire.NewCursor(nil)
	require.NoError(t, ep.Dispatch(in, out))
	require.Equal(t, "HELLO ada", decodeOuts(t, out, wire.String)[0])
}

func TestNewRejectsArityMismatch(t *testing.T) {
	md := addMetadata(t)

	cases := []struct {
		name string
		fn   any
	}{
		{"too few arguments", func(x uint32) uint32 { return x }},
		{"too many arguments", func(x, y, z uint32) uint32 { return x }},
		{"wrong input type", func(x string, y uint32) uint32 { return y }},
		{"output not a pointer", func(x, y, sum uint32) {}},
		{"wrong output type", func(x, y uint32) string { return "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.fn, md)
			require.ErrorIs(t, err, ErrArityMismatch)
		})
	}
}

func TestNewRejectsNonFunc(t *testing.T) {
	_, err := New(42, addMetadata(t))
	require.Error(t, err)
}

func TestNewRejectsVariadic(t *testing.T) {
	_, err := New(func(xs ...uint32) uint32 { return 0 }, addMetadata(t))
	require.Error(t, err)
}

func TestNamedTypesAccepted(t *testing.T) {
	type counter uint32
	ep, err := New(func(x, y counter) counter { return x + y }, addMetadata(t))
	require.NoError(t, err)

	in := encodeArgs(t,
		wire.Tagged{Desc: wire.Uint32, Val: uint32(5)},
		wire.Tagged{Desc: wire.Uint32, Val: uint32(6)},
	)
	out := wire.NewCursor(nil)
	require.NoError(t, ep.Dispatch(in, out))
	require.Equal(t, uint32(11), decodeOuts(t, out, wire.Uint32)[0])
}

func TestMustNewPanicsOnMismatch(t *testing.T) {
	require.Panics(t, func() {
		MustNew(func(x uint32) uint32 { return x }, addMetadata(t))
	})
}
