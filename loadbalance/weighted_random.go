package loadbalance

import (
	"fmt"
	"math/rand"

	"wirecall/registry"
)

// WeightedRandomBalancer picks peers with probability proportional to
// their advertised weight. Peers that advertise no weight fall back to
// uniform selection.
type WeightedRandomBalancer struct{}

func (b *WeightedRandomBalancer) Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error) {
	if len(instances) == 0 {
		return nil, fmt.Errorf("loadbalance: no instances available")
	}

	totalWeight := 0
	for _, v := range instances {
		totalWeight += v.Weight
	}
	if totalWeight <= 0 {
		return &instances[rand.Intn(len(instances))], nil
	}

	r := rand.Intn(totalWeight)
	for _, v := range instances {
		r -= v.Weight
		if r < 0 {
			return &v, nil
		}
	}
	return nil, fmt.Errorf("loadbalance: weighted selection fell through")
}

func (b *WeightedRandomBalancer) Name() string {
	return "WeightedRandom"
}
