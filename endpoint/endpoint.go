package endpoint

import (
	"fmt"
	"reflect"

	"wirecall/wire"
)

var errType = reflect.TypeOf((*error)(nil)).Elem()

// outSlot is one flattened output descriptor together with where its
// value comes from after the call: a pointer argument populated by the
// callee, or one of the return values.
type outSlot struct {
	desc       *wire.Descriptor
	discard    bool
	fromParam  int // index of the pointer parameter, -1 if return-backed
	fromResult int // index of the return value, -1 if parameter-backed
}

// Endpoint is a registered binding between one native callable and its
// declared schema. It holds no per-call state: each dispatch is
// independent, so distinct inbound calls may run concurrently if the
// callable itself tolerates that.
type Endpoint struct {
	md       *Metadata
	fn       reflect.Value
	fnType   reflect.Type
	inDescs  []*wire.Descriptor // flattened inputs, declaration order
	outSlots []outSlot          // flattened outputs, declaration order
	hasErr   bool               // callable's trailing error return, if any
}

// New binds fn to md. The callable's shape is validated here, once:
// every argument-mode tag must land on a compatible native slot, output
// parameters must be pointers, and return values (except a trailing
// error) must be tagged as the final outputs. Any disagreement is an
// ErrArityMismatch before the endpoint can ever be dispatched.
func New(fn any, md *Metadata) (*Endpoint, error) {
	fv := reflect.ValueOf(fn)
	ft := fv.Type()
	if ft.Kind() != reflect.Func {
		return nil, fmt.Errorf("endpoint: %s: callable must be a func, got %T", md.name, fn)
	}
	if ft.IsVariadic() {
		return nil, fmt.Errorf("endpoint: %s: variadic callables are not supported", md.name)
	}

	e := &Endpoint{md: md, fn: fv, fnType: ft}
	for _, in := range md.inputs {
		e.inDescs = append(e.inDescs, in.Descs...)
	}
	for _, out := range md.outputs {
		for _, d := range out.Descs {
			e.outSlots = append(e.outSlots, outSlot{desc: d, discard: out.Discard, fromParam: -1, fromResult: -1})
		}
	}

	numResults := ft.NumOut()
	if numResults > 0 && ft.Out(numResults-1) == errType {
		e.hasErr = true
		numResults--
	}
	if len(md.modes) != ft.NumIn()+numResults {
		return nil, fmt.Errorf("%w: %s declares %d I/O values, callable has %d arguments and %d results",
			ErrArityMismatch, md.name, len(md.modes), ft.NumIn(), numResults)
	}

	// Walk the native argument positions and check each against the mode
	// sequence, consuming the input and output descriptor queues
	// independently.
	inIdx, outIdx := 0, 0
	for i := 0; i < ft.NumIn(); i++ {
		switch md.modes[i] {
		case ModeInput:
			if inIdx >= len(e.inDescs) {
				return nil, fmt.Errorf("%w: %s: more input tags than input descriptors", ErrArityMismatch, md.name)
			}
			d := e.inDescs[inIdx]
			if !compatible(ft.In(i), d) {
				return nil, fmt.Errorf("%w: %s: argument %d is %s, schema says %s",
					ErrArityMismatch, md.name, i, ft.In(i), d.Tag)
			}
			inIdx++
		case ModeOutput:
			if outIdx >= len(e.outSlots) {
				return nil, fmt.Errorf("%w: %s: more output tags than output descriptors", ErrArityMismatch, md.name)
			}
			d := e.outSlots[outIdx].desc
			if ft.In(i).Kind() != reflect.Ptr || !compatible(ft.In(i).Elem(), d) {
				return nil, fmt.Errorf("%w: %s: argument %d must be *%s",
					ErrArityMismatch, md.name, i, d.GoType())
			}
			e.outSlots[outIdx].fromParam = i
			outIdx++
		}
	}

	// Everything past the native arguments is a return value; by
	// convention those are the final OUTPUT-tagged slots.
	for j := 0; j < numResults; j++ {
		if md.modes[ft.NumIn()+j] != ModeOutput {
			return nil, fmt.Errorf("%w: %s: return value %d tagged as input", ErrArityMismatch, md.name, j)
		}
		d := e.outSlots[outIdx].desc
		if !compatible(ft.Out(j), d) {
			return nil, fmt.Errorf("%w: %s: return value %d is %s, schema says %s",
				ErrArityMismatch, md.name, j, ft.Out(j), d.Tag)
		}
		e.outSlots[outIdx].fromResult = j
		outIdx++
	}

	if inIdx != len(e.inDescs) || outIdx != len(e.outSlots) {
		return nil, fmt.Errorf("%w: %s: %d input and %d output descriptors left unbound",
			ErrArityMismatch, md.name, len(e.inDescs)-inIdx, len(e.outSlots)-outIdx)
	}
	return e, nil
}

// MustNew is New for registrations that are wired at startup, where a
// schema mismatch is a programming error.
func MustNew(fn any, md *Metadata) *Endpoint {
	e, err := New(fn, md)
	if err != nil {
		panic(err)
	}
	return e
}

// Name returns the declared function name.
func (e *Endpoint) Name() string { return e.md.name }

// Metadata returns the endpoint's schema.
func (e *Endpoint) Metadata() *Metadata { return e.md }

// Descriptor returns the cached introspection JSON.
func (e *Endpoint) Descriptor() []byte { return e.md.Descriptor() }

// Hash returns the schema hash, see Metadata.Hash.
func (e *Endpoint) Hash() uint64 { return e.md.Hash() }

// Dispatch runs one invocation: decode every input from in (declared
// order), merge decoded inputs with freshly allocated output storage per
// the mode sequence, invoke the callable once, and encode every
// non-discarded output onto out in declaration order.
//
// A decode failure aborts before the callable runs, so there is no
// partial invocation. An error returned by the callable aborts before
// anything is encoded; the caller turns it into an error reply.
func (e *Endpoint) Dispatch(in, out *wire.Cursor) error {
	// Decode chain: consume the argument stream positionally.
	decoded := make([]wire.Value, 0, len(e.inDescs))
	for _, d := range e.inDescs {
		v, err := wire.DecodeTagged(in, d)
		if err != nil {
			return err
		}
		decoded = append(decoded, v)
	}

	// Merge: walk the mode sequence over the native argument positions,
	// dequeuing inputs and allocating outputs independently.
	args := make([]reflect.Value, e.fnType.NumIn())
	outRefs := make([]reflect.Value, len(e.outSlots))
	inIdx, outIdx := 0, 0
	for i := 0; i < e.fnType.NumIn(); i++ {
		switch e.md.modes[i] {
		case ModeInput:
			args[i] = conform(reflect.ValueOf(decoded[inIdx]), e.fnType.In(i))
			inIdx++
		case ModeOutput:
			ptr := reflect.New(e.fnType.In(i).Elem())
			args[i] = ptr
			outRefs[outIdx] = ptr
			outIdx++
		}
	}

	results := e.fn.Call(args)
	if e.hasErr {
		if errv := results[len(results)-1]; !errv.IsNil() {
			return errv.Interface().(error)
		}
	}

	// Encode chain: outputs in declaration order, discarded slots skipped.
	for k, slot := range e.outSlots {
		var rv reflect.Value
		if slot.fromParam >= 0 {
			rv = outRefs[k].Elem()
		} else {
			rv = results[slot.fromResult]
		}
		if slot.discard {
			continue
		}
		if rv.Type() != slot.desc.GoType() {
			rv = rv.Convert(slot.desc.GoType())
		}
		if err := wire.EncodeTagged(out, slot.desc, rv.Interface()); err != nil {
			return err
		}
	}
	return nil
}

// compatible reports whether a native type can carry values of the
// descriptor's Go type. Named types with the same underlying kind are
// allowed both ways; differing widths are not.
func compatible(native reflect.Type, d *wire.Descriptor) bool {
	g := d.GoType()
	if native == g {
		return true
	}
	return native.Kind() == g.Kind() && native.ConvertibleTo(g) && g.ConvertibleTo(native)
}

func conform(rv reflect.Value, t reflect.Type) reflect.Value {
	if rv.Type() != t {
		return rv.Convert(t)
	}
	return rv
}
