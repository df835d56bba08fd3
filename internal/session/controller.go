package session

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Controller drives a Session for boundaries that have no event loop of
// their own. The mutex is the single logical thread: every Submit, Apply
// and Reset runs under it, while each exchange blocks on its own goroutine.
type Controller struct {
	mu      sync.Mutex
	session *Session
	log     *zap.Logger

	// pubMu is taken before mu is released so subscribers see views in
	// the order they were produced.
	pubMu   sync.Mutex
	subs    map[int]func(View)
	nextSub int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewController(s *Session, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		session: s,
		log:     log,
		subs:    make(map[int]func(View)),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Subscribe registers fn for every state change. fn must not call Submit,
// Reset or SetLocale synchronously.
func (c *Controller) Subscribe(fn func(View)) (unsubscribe func()) {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.pubMu.Lock()
		defer c.pubMu.Unlock()
		delete(c.subs, id)
	}
}

// Submit returns the new request token, or ok=false for blank text or a
// closed controller.
func (c *Controller) Submit(text string) (token uint64, ok bool) {
	c.mu.Lock()
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		return 0, false
	}
	x, ok := c.session.Submit(text)
	if !ok {
		c.mu.Unlock()
		return 0, false
	}
	c.wg.Add(1)
	c.publishLocked()

	go c.run(x)
	return x.Token, true
}

func (c *Controller) Reset() View {
	c.mu.Lock()
	c.session.Reset()
	return c.publishLocked()
}

func (c *Controller) SetLocale(locale string) View {
	c.mu.Lock()
	c.session.SetLocale(locale)
	return c.publishLocked()
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.View()
}

// Wait blocks until every exchange goroutine has returned.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close cancels the context handed to collaborators and waits for the
// exchange goroutines.
func (c *Controller) Close() {
	c.mu.Lock()
	c.cancel()
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Controller) run(x *Exchange) {
	defer c.wg.Done()
	defer x.Abandon()

	ev := x.Resolve(c.ctx)
	for c.apply(ev) == Continue {
		ev = x.Next()
	}
}

func (c *Controller) apply(ev Event) Directive {
	c.mu.Lock()
	d, applied := c.session.Apply(ev)
	if !applied {
		c.mu.Unlock()
		return d
	}
	c.publishLocked()
	return d
}

// publishLocked must be called with mu held; it releases mu.
func (c *Controller) publishLocked() View {
	v := c.session.View()
	c.pubMu.Lock()
	c.mu.Unlock()
	defer c.pubMu.Unlock()
	for _, fn := range c.subs {
		fn(v)
	}
	return v
}
