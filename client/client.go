// Package client is the discovery-aware caller: it resolves a service
// name to live instances through the registry, picks one via the
// configured balancer, borrows a pooled transport to it, and issues the
// typed call against the instance's advertised object path.
package client

import (
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"

	"wirecall/loadbalance"
	"wirecall/registry"
	"wirecall/transport"
	"wirecall/wire"
)

// Client routes calls to discovered service instances.
type Client struct {
	registry registry.Registry
	balancer loadbalance.Balancer
	log      *zap.Logger

	mu    sync.Mutex
	pools map[string]*transport.Pool // per-address transport pools
	size  int
}

// NewClient builds a client over the given registry and balancer. size
// caps the transports per peer address. A nil logger disables logging.
func NewClient(reg registry.Registry, bal loadbalance.Balancer, size int, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		registry: reg,
		balancer: bal,
		log:      log,
		pools:    make(map[string]*transport.Pool),
		size:     size,
	}
}

func (c *Client) pool(addr string) *transport.Pool {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pools[addr]
	if !ok {
		p = transport.NewPool(addr, c.size, func(addr string) (*transport.ClientTransport, error) {
			conn, err := net.Dial("tcp", addr)
			if err != nil {
				return nil, err
			}
			return transport.NewClientTransport(conn, c.log), nil
		})
		c.pools[addr] = p
	}
	return p
}

// Call invokes iface.method with the typed arguments on one instance of
// the named service and decodes the outputs against outs. The target
// object path comes from the instance's registry advertisement.
func (c *Client) Call(service, iface, method string, args []wire.Tagged, outs []*wire.Descriptor) ([]wire.Value, error) {
	instances, err := c.registry.Discover(service)
	if err != nil {
		return nil, err
	}

	instance, err := c.balancer.Pick(instances)
	if err != nil {
		return nil, err
	}

	pool := c.pool(instance.Addr)
	t, err := pool.Get()
	if err != nil {
		return nil, err
	}

	vals, err := t.Call(instance.Path, iface, method, args, outs)
	if err != nil {
		// A transport-level failure poisons the connection; drop it so
		// the pool replaces it on the next borrow. Remote errors keep the
		// connection healthy.
		if _, remote := err.(*wire.RemoteError); remote {
			pool.Put(t)
		} else {
			pool.Discard(t)
		}
		return nil, fmt.Errorf("client: %s/%s.%s: %w", service, iface, method, err)
	}
	pool.Put(t)
	return vals, nil
}

// Close shuts down every transport pool.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.pools {
		p.Close()
	}
	c.pools = make(map[string]*transport.Pool)
	return nil
}
