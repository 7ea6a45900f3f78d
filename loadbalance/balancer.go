// Package loadbalance selects which discovered peer receives the next
// outbound call.
//
// Three strategies:
//   - RoundRobin:      stateless peers with similar capacity
//   - WeightedRandom:  heterogeneous peers (different CPU/memory)
//   - ConsistentHash:  key affinity, e.g. per-object routing
package loadbalance

import "wirecall/registry"

// Balancer picks one peer from the discovered instance list. Pick runs
// on every outbound call and must be goroutine-safe.
type Balancer interface {
	Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error)

	// Name identifies the strategy for logging.
	Name() string
}
