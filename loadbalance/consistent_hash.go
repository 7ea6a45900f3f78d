package loadbalance

import (
	"fmt"
	"hash/crc32"
	"sort"

	"wirecall/registry"
)

// ConsistentHashBalancer maps keys (typically object paths) to peers on
// a hash ring, so the same key keeps hitting the same peer until the
// ring changes.
//
// Each real peer is placed on the ring as many virtual nodes; without
// them a handful of peers could cluster on the ring and skew the load.
type ConsistentHashBalancer struct {
	replicas int
	ring     []uint32 // sorted hash positions
	nodes    map[uint32]*registry.ServiceInstance
}

// NewConsistentHashBalancer builds a ring with 100 virtual nodes per peer.
func NewConsistentHashBalancer() *ConsistentHashBalancer {
	return &ConsistentHashBalancer{
		replicas: 100,
		ring:     []uint32{},
		nodes:    make(map[uint32]*registry.ServiceInstance),
	}
}

// Add places a peer on the ring. Each virtual node hashes "{addr}#{i}".
func (b *ConsistentHashBalancer) Add(instance *registry.ServiceInstance) {
	for i := 0; i < b.replicas; i++ {
		key := fmt.Sprintf("%s#%d", instance.Addr, i)
		hash := crc32.ChecksumIEEE([]byte(key))
		b.ring = append(b.ring, hash)
		b.nodes[hash] = instance
	}
	sort.Slice(b.ring, func(i, j int) bool {
		return b.ring[i] < b.ring[j]
	})
}

// Pick routes a key to the first ring position at or past its hash,
// wrapping around at the top. Key-based, so it does not implement the
// Balancer interface directly.
func (b *ConsistentHashBalancer) Pick(key string) (*registry.ServiceInstance, error) {
	if len(b.ring) == 0 {
		return nil, fmt.Errorf("loadbalance: empty hash ring")
	}
	hash := crc32.ChecksumIEEE([]byte(key))

	idx := sort.Search(len(b.ring), func(i int) bool {
		return b.ring[i] >= hash
	})
	if idx == len(b.ring) {
		idx = 0
	}
	return b.nodes[b.ring[idx]], nil
}

func (b *ConsistentHashBalancer) Name() string {
	return "ConsistentHash"
}
