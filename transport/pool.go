// Transport pooling. A single ClientTransport already multiplexes, but a
// pool of them spreads load across connections and survives the loss of
// any one. Idle transports queue on a buffered channel; a second channel
// signals freed capacity so a borrower blocked at the limit wakes up when
// a transport is discarded, not only when one is returned.
package transport

import (
	"fmt"
	"sync"
)

// Pool manages reusable transports to a single peer address.
type Pool struct {
	mu      sync.Mutex
	idle    chan *ClientTransport
	slots   chan struct{} // one signal per capacity slot freed by Discard
	addr    string
	max     int
	cur     int
	closed  bool
	factory func(addr string) (*ClientTransport, error)
}

// NewPool creates a pool of at most max transports to addr. Transports
// are created lazily via factory: the pool starts empty and grows on
// demand.
func NewPool(addr string, max int, factory func(addr string) (*ClientTransport, error)) *Pool {
	return &Pool{
		idle:    make(chan *ClientTransport, max),
		slots:   make(chan struct{}, max),
		addr:    addr,
		max:     max,
		factory: factory,
	}
}

// Get borrows a transport: an idle one if available, a fresh one while
// under the limit, otherwise it blocks until one is returned or a slot
// is freed by Discard.
func (p *Pool) Get() (*ClientTransport, error) {
	for {
		select {
		case t, ok := <-p.idle:
			if !ok {
				return nil, fmt.Errorf("transport: pool closed")
			}
			return t, nil
		default:
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, fmt.Errorf("transport: pool closed")
		}
		if p.cur < p.max {
			// Claim the slot first so the dial happens outside the lock.
			p.cur++
			p.mu.Unlock()
			t, err := p.factory(p.addr)
			if err != nil {
				p.freeSlot()
				return nil, err
			}
			return t, nil
		}
		p.mu.Unlock()

		select {
		case t, ok := <-p.idle:
			if !ok {
				return nil, fmt.Errorf("transport: pool closed")
			}
			return t, nil
		case <-p.slots:
			// Capacity freed by a Discard; retry and create a fresh one.
		}
	}
}

// Put returns a transport to the pool. A dead transport (its connection
// already failed) should be dropped via Discard instead. After Close,
// the transport is simply closed.
func (p *Pool) Put(t *ClientTransport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		t.Close()
		return
	}
	// cur never exceeds max, so the buffered send cannot block here.
	p.idle <- t
}

// Discard closes a transport without returning it and wakes one blocked
// borrower, if any, to use the freed slot.
func (p *Pool) Discard(t *ClientTransport) {
	t.Close()
	p.freeSlot()
}

func (p *Pool) freeSlot() {
	p.mu.Lock()
	p.cur--
	p.mu.Unlock()
	select {
	case p.slots <- struct{}{}:
	default:
	}
}

// Close shuts down the pool and every idle transport. Borrowed
// transports are closed as their holders return or discard them.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.idle)
	for t := range p.idle {
		t.Close()
		p.cur--
	}
	return nil
}
