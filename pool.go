package cirjson

import (
	"sync"
	"sync/atomic"
)

// RecyclerPool lends BufferRecyclers to parse and generate sessions. All
// implementations are safe for concurrent use.
type RecyclerPool interface {
	Acquire() *BufferRecycler
	// Release returns a recycler. Recyclers that are not bound to this pool
	// (never acquired, or already released) are ignored.
	Release(r *BufferRecycler)
	// Size is the number of idle recyclers held, -1 if unknown.
	Size() int
}

var defaultPool RecyclerPool = NewPerContextPool()

// DefaultRecyclerPool is shared by factories that don't configure a pool.
func DefaultRecyclerPool() RecyclerPool {
	return defaultPool
}

// NonRecyclingPool creates a fresh recycler on every Acquire.
type NonRecyclingPool struct{}

func NewNonRecyclingPool() *NonRecyclingPool {
	return &NonRecyclingPool{}
}

func (p *NonRecyclingPool) Acquire() *BufferRecycler {
	return NewBufferRecycler().bind(p)
}

func (p *NonRecyclingPool) Release(r *BufferRecycler) {
	if r == nil || r.pool != RecyclerPool(p) {
		return
	}
	r.unbind()
}

func (p *NonRecyclingPool) Size() int {
	return 0
}

// PerContextPool keeps recyclers in a sync.Pool, which caches per logical
// processor: the closest thing to one recycler per thread of control.
type PerContextPool struct {
	pool sync.Pool
}

func NewPerContextPool() *PerContextPool {
	return &PerContextPool{pool: sync.Pool{New: func() any { return NewBufferRecycler() }}}
}

func (p *PerContextPool) Acquire() *BufferRecycler {
	return p.pool.Get().(*BufferRecycler).bind(p)
}

func (p *PerContextPool) Release(r *BufferRecycler) {
	if r == nil || r.pool != RecyclerPool(p) {
		return
	}
	r.unbind()
	p.pool.Put(r)
}

func (p *PerContextPool) Size() int {
	return -1
}

// BoundedPool holds at most a fixed number of idle recyclers, releases
// beyond that are dropped for the GC.
type BoundedPool struct {
	mu       sync.Mutex
	stack    []*BufferRecycler
	index    int
	capacity int
}

const DefaultBoundedPoolCapacity = 100

func NewBoundedPool(capacity int) *BoundedPool {
	if capacity <= 0 {
		capacity = DefaultBoundedPoolCapacity
	}
	return &BoundedPool{stack: make([]*BufferRecycler, capacity), index: -1, capacity: capacity}
}

func (p *BoundedPool) Acquire() *BufferRecycler {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.index < 0 {
		return NewBufferRecycler().bind(p)
	}

	r := p.stack[p.index]
	p.stack[p.index] = nil
	p.index--

	return r.bind(p)
}

func (p *BoundedPool) Release(r *BufferRecycler) {
	if r == nil || r.pool != RecyclerPool(p) {
		return
	}
	r.unbind()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.index+1 >= p.capacity {
		log().WithField("capacity", p.capacity).Debug("cirjson: bounded recycler pool full, dropping recycler")
		return
	}
	p.index++
	p.stack[p.index] = r
}

func (p *BoundedPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.index + 1
}

func (p *BoundedPool) Capacity() int {
	return p.capacity
}

// ConcurrentDequePool is an unbounded lock-free stack of recyclers.
type ConcurrentDequePool struct {
	head atomic.Pointer[poolNode]
	size atomic.Int64
}

type poolNode struct {
	r    *BufferRecycler
	next *poolNode
}

func NewConcurrentDequePool() *ConcurrentDequePool {
	return &ConcurrentDequePool{}
}

func (p *ConcurrentDequePool) Acquire() *BufferRecycler {
	for {
		head := p.head.Load()
		if head == nil {
			return NewBufferRecycler().bind(p)
		}
		if p.head.CompareAndSwap(head, head.next) {
			p.size.Add(-1)
			return head.r.bind(p)
		}
	}
}

func (p *ConcurrentDequePool) Release(r *BufferRecycler) {
	if r == nil || r.pool != RecyclerPool(p) {
		return
	}
	r.unbind()

	// nodes are never reused, so the GC rules out ABA
	node := &poolNode{r: r}
	for {
		head := p.head.Load()
		node.next = head
		if p.head.CompareAndSwap(head, node) {
			p.size.Add(1)
			return
		}
	}
}

func (p *ConcurrentDequePool) Size() int {
	return int(p.size.Load())
}
