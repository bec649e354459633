package server

import (
	"context"
	"sync"

	logger "github.com/tigerroll/gridwatch/pkg/gridwatch/support/util/logger"
)

// ComputeFunc builds the value for one dashboard slot.
type ComputeFunc func(ctx context.Context) (interface{}, error)

// slot holds the last published value for one dashboard view together with
// its generation counter. The counter makes publication last-write-wins: a
// refresh started before an invalidation carries a stale generation and its
// result is discarded on arrival, never cancelled mid-flight.
type slot struct {
	compute    ComputeFunc
	generation uint64
	value      interface{}
	ready      bool
}

// PrefetchSlots precomputes dashboard views in the background so first paint
// does not wait on a cold aggregation. All state is per-slot and owned by
// this object; nothing here is attached to the compute functions themselves.
type PrefetchSlots struct {
	mu    sync.Mutex
	slots map[string]*slot

	// safeMode disables background prefetching entirely; Get always computes
	// synchronously.
	safeMode bool
	// lazy defers a slot's first refresh until it is first requested.
	lazy bool
}

// NewPrefetchSlots creates an empty slot store.
func NewPrefetchSlots(safeMode, lazy bool) *PrefetchSlots {
	return &PrefetchSlots{
		slots:    make(map[string]*slot),
		safeMode: safeMode,
		lazy:     lazy,
	}
}

// Register adds a named slot. Must be called before Start or Get for that name.
func (p *PrefetchSlots) Register(name string, compute ComputeFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.slots[name] = &slot{compute: compute}
}

// Names returns the registered slot names.
func (p *PrefetchSlots) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.slots))
	for name := range p.slots {
		names = append(names, name)
	}
	return names
}

// Start kicks off the initial background refresh of every registered slot.
// No-op in safe mode or when views are lazy.
func (p *PrefetchSlots) Start(ctx context.Context) {
	if p.safeMode || p.lazy {
		return
	}
	for _, name := range p.Names() {
		go p.Refresh(ctx, name)
	}
}

// Refresh recomputes one slot and publishes the result if no invalidation
// happened while the compute was running.
func (p *PrefetchSlots) Refresh(ctx context.Context, name string) {
	p.mu.Lock()
	s, ok := p.slots[name]
	if !ok {
		p.mu.Unlock()
		return
	}
	gen := s.generation
	compute := s.compute
	p.mu.Unlock()

	value, err := compute(ctx)
	if err != nil {
		logger.Warnf("Prefetch of slot '%s' failed: %v", name, err)
		return
	}
	p.publish(name, gen, value)
}

// publish stores value for the slot if its generation still matches gen.
func (p *PrefetchSlots) publish(name string, gen uint64, value interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.slots[name]
	if !ok {
		return
	}
	if s.generation != gen {
		logger.Debugf("Discarding stale prefetch result for slot '%s' (generation %d, current %d).", name, gen, s.generation)
		return
	}
	s.value = value
	s.ready = true
}

// Invalidate bumps the slot's generation so any in-flight refresh result is
// discarded, and clears the published value.
func (p *PrefetchSlots) Invalidate(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.slots[name]; ok {
		s.generation++
		s.ready = false
		s.value = nil
	}
}

// InvalidateAll invalidates every slot.
func (p *PrefetchSlots) InvalidateAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.slots {
		s.generation++
		s.ready = false
		s.value = nil
	}
}

// Get returns the slot's value. In safe mode the compute always runs
// synchronously with no slot state involved. Otherwise a published value is
// served as-is; a cold slot computes synchronously for this caller and
// publishes the result for the next one.
func (p *PrefetchSlots) Get(ctx context.Context, name string) (interface{}, error) {
	p.mu.Lock()
	s, ok := p.slots[name]
	if !ok {
		p.mu.Unlock()
		return nil, errUnknownSlot(name)
	}
	if p.safeMode {
		compute := s.compute
		p.mu.Unlock()
		return compute(ctx)
	}
	if s.ready {
		v := s.value
		p.mu.Unlock()
		return v, nil
	}
	gen := s.generation
	compute := s.compute
	p.mu.Unlock()

	value, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	p.publish(name, gen, value)
	return value, nil
}
