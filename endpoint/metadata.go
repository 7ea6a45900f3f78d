// Package endpoint binds native Go callables to declared wire schemas.
//
// A Metadata describes one function: its name, ordered named inputs,
// ordered named outputs, and the argument mode sequence that reconciles
// wire order (all inputs, then all outputs) with the native calling order
// (inputs and output pointers freely interleaved). An Endpoint pairs a
// Metadata with one callable and performs the per-call decode, merge,
// invoke and encode pipeline. Everything derivable from the schema,
// including the introspection descriptor and the schema hash, is
// computed once at registration and immutable afterwards.
package endpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"

	"wirecall/wire"
)

// ErrArityMismatch reports a callable whose argument/return shape
// disagrees with its declared metadata. It is a registration-time
// structural error: New rejects the endpoint, nothing is discovered
// per-call.
var ErrArityMismatch = errors.New("endpoint: callable arity disagrees with metadata")

// Mode tags one native argument position as coming from the decoded
// input stream or as a freshly allocated output to be filled.
type Mode uint8

const (
	ModeInput Mode = iota
	ModeOutput
)

func (m Mode) String() string {
	if m == ModeInput {
		return "input"
	}
	return "output"
}

// InputSpec is one declared input: a name plus the descriptor(s) it
// binds. A spec usually binds a single descriptor; binding several lets
// one declared parameter span a tuple of native arguments.
type InputSpec struct {
	Name  string
	Descs []*wire.Descriptor
}

// OutputSpec is one declared output. Discard means "encode nothing for
// this output": the native slot exists but its value is irrelevant to
// the wire contract.
type OutputSpec struct {
	Name    string
	Descs   []*wire.Descriptor
	Discard bool
}

// Item is one step of a metadata declaration. The order items are given
// to NewMetadata is the native calling order, so it doubles as the
// argument mode sequence.
type Item struct {
	name    string
	descs   []*wire.Descriptor
	mode    Mode
	discard bool
}

// In declares a named input bound to the given descriptor(s).
func In(name string, descs ...*wire.Descriptor) Item {
	return Item{name: name, descs: descs, mode: ModeInput}
}

// Out declares a named output bound to the given descriptor(s).
func Out(name string, descs ...*wire.Descriptor) Item {
	return Item{name: name, descs: descs, mode: ModeOutput}
}

// OutDiscard declares a named output whose value is never encoded.
func OutDiscard(name string, descs ...*wire.Descriptor) Item {
	return Item{name: name, descs: descs, mode: ModeOutput, discard: true}
}

// Metadata is the immutable schema of one function. Built once at
// registration, read-only afterwards.
type Metadata struct {
	name    string
	inputs  []InputSpec
	outputs []OutputSpec
	modes   []Mode // one tag per descriptor, in native order
	descr   []byte // cached introspection JSON
	hash    uint64
}

// NewMetadata builds the schema for a function from its declared items.
func NewMetadata(name string, items ...Item) (*Metadata, error) {
	if name == "" {
		return nil, errors.New("endpoint: metadata needs a function name")
	}
	md := &Metadata{name: name}
	for _, item := range items {
		if item.name == "" {
			return nil, fmt.Errorf("endpoint: %s: unnamed %s spec", name, item.mode)
		}
		if len(item.descs) == 0 {
			return nil, fmt.Errorf("endpoint: %s: %s %q binds no descriptors", name, item.mode, item.name)
		}
		switch item.mode {
		case ModeInput:
			md.inputs = append(md.inputs, InputSpec{Name: item.name, Descs: item.descs})
		case ModeOutput:
			md.outputs = append(md.outputs, OutputSpec{Name: item.name, Descs: item.descs, Discard: item.discard})
		}
		for range item.descs {
			md.modes = append(md.modes, item.mode)
		}
	}
	md.descr = assembleJSON(md)
	md.hash = schemaHash(md)
	return md, nil
}

// Name returns the declared function name.
func (md *Metadata) Name() string { return md.name }

// Inputs returns the declared input specs in order.
func (md *Metadata) Inputs() []InputSpec { return md.inputs }

// Outputs returns the declared output specs in order.
func (md *Metadata) Outputs() []OutputSpec { return md.outputs }

// Modes returns the argument mode sequence, one tag per descriptor, in
// native calling order.
func (md *Metadata) Modes() []Mode { return md.modes }

// Descriptor returns the introspection JSON for this function. It is
// computed once at construction and is byte-for-byte identical across
// calls.
func (md *Metadata) Descriptor() []byte { return md.descr }

// Hash returns a stable hash over the function name and its full type
// signature. Two processes agreeing on a schema agree on the hash, so
// mismatched client/server schemas can be detected before dispatch.
func (md *Metadata) Hash() uint64 { return md.hash }

type inputJSON struct {
	Name  string `json:"name"`
	Codec string `json:"codec"`
}

type functionJSON struct {
	Name string      `json:"name"`
	In   []inputJSON `json:"in"`
}

func codecName(descs []*wire.Descriptor) string {
	if len(descs) == 1 {
		return descs[0].Tag.String()
	}
	names := make([]string, len(descs))
	for i, d := range descs {
		names[i] = d.Tag.String()
	}
	return strings.Join(names, ",")
}

func assembleJSON(md *Metadata) []byte {
	doc := functionJSON{Name: md.name, In: []inputJSON{}}
	for _, in := range md.inputs {
		doc.In = append(doc.In, inputJSON{Name: in.Name, Codec: codecName(in.Descs)})
	}
	// Marshal of a struct with these tags is deterministic, so the
	// descriptor is byte-for-byte stable. Names can only fail to encode
	// if they are invalid UTF-8, which String descriptors never produce.
	out, err := json.Marshal(doc)
	if err != nil {
		panic("endpoint: descriptor assembly failed: " + err.Error())
	}
	return out
}

// schemaHash digests name(inputSignatures)->(outputSignatures). Any
// rename or type change yields a different hash.
func schemaHash(md *Metadata) uint64 {
	var b strings.Builder
	b.WriteString(md.name)
	b.WriteString("(")
	for _, in := range md.inputs {
		for _, d := range in.Descs {
			b.WriteString(d.Signature)
		}
	}
	b.WriteString(")->(")
	for _, out := range md.outputs {
		for _, d := range out.Descs {
			b.WriteString(d.Signature)
		}
	}
	b.WriteString(")")
	sum := blake2b.Sum256([]byte(b.String()))
	var h uint64
	for i := 0; i < 8; i++ {
		h = h<<8 | uint64(sum[i])
	}
	return h
}
