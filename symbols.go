package cirjson

import (
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	internCacheSize = 180
	// root tables above this many symbols are flushed instead of growing
	maxRootSymbols = 6000
)

var internCache *lru.Cache[string, string]

func init() {
	var err error
	internCache, err = lru.New[string, string](internCacheSize)
	if err != nil {
		panic(err)
	}
}

// Intern returns the canonical instance of s. It is a pure memory
// optimization for repeated property names.
func Intern(s string) string {
	if v, ok := internCache.Get(s); ok {
		return v
	}
	internCache.Add(s, s)
	return s
}

// SymbolTable canonicalizes property names read as bytes. The root is shared
// by all parsers of a Factory; each parser works on a child and merges its new
// names back on close. Lookups never lock.
type SymbolTable struct {
	mu    sync.Mutex
	state atomic.Pointer[symbolState]
	max   int
}

type symbolState struct {
	buckets map[uint64][]string
	count   int
}

func NewSymbolTable() *SymbolTable {
	t := &SymbolTable{max: maxRootSymbols}
	t.state.Store(&symbolState{buckets: map[uint64][]string{}})
	return t
}

// Size is the number of names in the root.
func (t *SymbolTable) Size() int {
	return t.state.Load().count
}

func (t *SymbolTable) MakeChild(intern bool) *ChildSymbols {
	return &ChildSymbols{root: t, shared: t.state.Load(), intern: intern}
}

func (t *SymbolTable) merge(local map[uint64][]string, added int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur := t.state.Load()
	next := &symbolState{}
	if cur.count+added > t.max {
		log().WithField("symbols", cur.count+added).Debug("cirjson: symbol table full, flushing")
		next.buckets = make(map[uint64][]string, len(local))
	} else {
		next.buckets = make(map[uint64][]string, len(cur.buckets)+len(local))
		for h, names := range cur.buckets {
			next.buckets[h] = names
		}
		next.count = cur.count
	}

	for h, names := range local {
	outer:
		for _, name := range names {
			for _, existing := range next.buckets[h] {
				if existing == name {
					continue outer
				}
			}
			bucket := next.buckets[h]
			// never append into a slice shared with the previous state
			next.buckets[h] = append(bucket[:len(bucket):len(bucket)], name)
			next.count++
		}
	}

	t.state.Store(next)
}

// ChildSymbols is the per-parser view of a SymbolTable, not safe for
// concurrent use.
type ChildSymbols struct {
	root   *SymbolTable
	shared *symbolState
	local  map[uint64][]string
	added  int
	intern bool
}

// Lookup returns the canonical string for name, allocating only the first
// time a name is seen.
func (c *ChildSymbols) Lookup(name []byte) string {
	h := xxhash.Sum64(name)
	for _, s := range c.shared.buckets[h] {
		if s == string(name) {
			return s
		}
	}
	for _, s := range c.local[h] {
		if s == string(name) {
			return s
		}
	}

	s := string(name)
	if c.intern {
		s = Intern(s)
	}
	if c.local == nil {
		c.local = make(map[uint64][]string)
	}
	c.local[h] = append(c.local[h], s)
	c.added++

	return s
}

// Release merges names learned by this child into the root.
func (c *ChildSymbols) Release() {
	if c.root == nil || c.added == 0 {
		return
	}
	c.root.merge(c.local, c.added)
	c.local = nil
	c.added = 0
	c.shared = c.root.state.Load()
}
