package registry

import (
	"fmt"
	"sync"
)

// StaticRegistry serves a fixed, in-process instance table. It backs
// deployments with a known peer set and tests that must not depend on a
// running etcd. TTLs are ignored: static entries do not expire.
type StaticRegistry struct {
	mu        sync.RWMutex
	instances map[string][]ServiceInstance
}

// NewStaticRegistry returns an empty static registry.
func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{instances: make(map[string][]ServiceInstance)}
}

func (r *StaticRegistry) Register(serviceName string, instance ServiceInstance, ttl int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.instances[serviceName] {
		if existing.Addr == instance.Addr {
			r.instances[serviceName][i] = instance
			return nil
		}
	}
	r.instances[serviceName] = append(r.instances[serviceName], instance)
	return nil
}

func (r *StaticRegistry) Deregister(serviceName string, addr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.instances[serviceName][:0]
	for _, existing := range r.instances[serviceName] {
		if existing.Addr != addr {
			kept = append(kept, existing)
		}
	}
	r.instances[serviceName] = kept
	return nil
}

func (r *StaticRegistry) Discover(serviceName string) ([]ServiceInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	instances := r.instances[serviceName]
	if len(instances) == 0 {
		return nil, fmt.Errorf("registry: no instances for service %q", serviceName)
	}
	out := make([]ServiceInstance, len(instances))
	copy(out, instances)
	return out, nil
}

// Watch on a static registry never fires: the table only changes via
// explicit Register/Deregister calls by the same process.
func (r *StaticRegistry) Watch(serviceName string) <-chan []ServiceInstance {
	return make(chan []ServiceInstance)
}
