// Package registry advertises service interfaces and discovers the
// peers that expose them. An instance carries the address to dial, the
// object path the interface lives at, and the introspection descriptor
// of its functions, so a discovering client knows the schema before the
// first call.
package registry

import "encoding/json"

// ServiceInstance is one advertised provider of a service interface.
type ServiceInstance struct {
	Addr       string          // routable address, e.g. "127.0.0.1:8080"
	Path       string          // object path the interface is served under
	Weight     int             // weight for load balancing
	Version    string          // provider version string
	Descriptor json.RawMessage `json:",omitempty"` // introspection service document
}

// Registry is the advertisement/discovery contract.
type Registry interface {
	Register(serviceName string, instance ServiceInstance, ttl int64) error
	Deregister(serviceName string, addr string) error
	Discover(serviceName string) ([]ServiceInstance, error)
	Watch(serviceName string) <-chan []ServiceInstance
}
