package location

import (
	"context"
	"sync"
)

// PushSource is a Source fed by an external caller, used when fixes
// arrive over the wire (the radar gateway pushes client-reported
// coordinates into it) rather than from local hardware.
type PushSource struct {
	mu      sync.Mutex
	fn      func(Reading)
	errFn   func(error)
	stopped bool
}

// NewPushSource builds an idle push source; readings offered before
// Watch is called are dropped.
func NewPushSource() *PushSource {
	return &PushSource{}
}

// Watch implements Source.
func (p *PushSource) Watch(_ context.Context, fn func(Reading), errFn func(error)) (func(), error) {
	p.mu.Lock()
	p.fn = fn
	p.errFn = errFn
	p.stopped = false
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		p.stopped = true
		p.fn = nil
		p.errFn = nil
		p.mu.Unlock()
	}, nil
}

// Offer delivers a fix to the watcher, if any.
func (p *PushSource) Offer(r Reading) {
	p.mu.Lock()
	fn := p.fn
	p.mu.Unlock()
	if fn != nil {
		fn(r)
	}
}

// Fail reports a positioning failure to the watcher, if any.
func (p *PushSource) Fail(err error) {
	p.mu.Lock()
	errFn := p.errFn
	p.mu.Unlock()
	if errFn != nil {
		errFn(err)
	}
}
