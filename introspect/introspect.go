// Package introspect renders discovery descriptors for registered
// endpoints.
//
// The per-function descriptor lists the function name and its inputs
// only, in declaration order, using the declared names verbatim. It is a
// pure function of the metadata: byte-for-byte identical across calls,
// computed once at registration. Consumers use it for client-side code
// generation or dynamic dispatch.
package introspect

import (
	"encoding/json"

	"wirecall/endpoint"
)

// Function returns the descriptor for one function, e.g.
//
//	{"name":"add","in":[{"name":"x","codec":"uint32"},{"name":"y","codec":"uint32"}]}
func Function(md *endpoint.Metadata) []byte {
	return md.Descriptor()
}

type serviceJSON struct {
	Name      string            `json:"name"`
	Functions []json.RawMessage `json:"functions"`
}

// Service aggregates the descriptors of every endpoint an interface
// exposes into one document, suitable for registry advertisement.
func Service(name string, eps []*endpoint.Endpoint) ([]byte, error) {
	doc := serviceJSON{Name: name, Functions: []json.RawMessage{}}
	for _, ep := range eps {
		doc.Functions = append(doc.Functions, json.RawMessage(ep.Descriptor()))
	}
	return json.Marshal(doc)
}
