package lock

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// chain is the FIFO of lock holders for one key. Each holder waits on the
// previous holder's done channel.
type chain struct {
	head chan struct{}
}

func (c *chain) advance() (wait <-chan struct{}, done chan struct{}) {
	if c.head == nil {
		c.head = make(chan struct{})
		close(c.head)
	}
	wait = c.head
	done = make(chan struct{})
	c.head = done
	return wait, done
}

// Local is an in-process Locker. Waiters on one key are served in arrival
// order; distinct keys never contend.
//
// The zero-value Local is ready to use and waits until the caller's context
// expires.
type Local struct {
	Wait time.Duration

	initOnce sync.Once
	chains   chan map[string]*chain
}

// NewLocal creates a Local that gives up after wait.
func NewLocal(wait time.Duration) *Local {
	return &Local{Wait: wait}
}

var _ Locker = (*Local)(nil)

// Lock implements Locker.
func (l *Local) Lock(ctx context.Context, keys ...string) (Unlock, error) {
	return lockAll(ctx, l.Wait, keys, l.acquireKey)
}

// acquire gets exclusive access to the chains map.
func (l *Local) acquire() (map[string]*chain, func()) {
	l.initOnce.Do(func() {
		l.chains = make(chan map[string]*chain, 1)
		l.chains <- make(map[string]*chain)
	})
	chains := <-l.chains
	return chains, func() { l.chains <- chains }
}

func (l *Local) acquireKey(ctx context.Context, key string) (func(), error) {
	chains, release := l.acquire()
	c, ok := chains[key]
	if !ok {
		c = &chain{}
		chains[key] = c
	}
	wait, done := c.advance()
	release()

	select {
	case <-wait:
		return func() { l.finish(key, done) }, nil
	case <-ctx.Done():
		// Keep our place in the chain until the previous holder is gone, then
		// pass the key straight on.
		go func() {
			<-wait
			l.finish(key, done)
		}()
		return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, key, ctx.Err())
	}
}

func (l *Local) finish(key string, done chan struct{}) {
	chains, release := l.acquire()
	defer release()

	if c, ok := chains[key]; ok && c.head == done {
		delete(chains, key)
	}
	close(done)
}

// size reports how many keys currently have holders or waiters.
func (l *Local) size() int {
	chains, release := l.acquire()
	defer release()
	return len(chains)
}
