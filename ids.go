package cirjson

import (
	"reflect"
	"strconv"

	"github.com/google/uuid"
)

// IDGenerator assigns CirJSON identifiers to the values a generator writes.
// The same reference must map to the same identifier, so that shared and
// circular references can be written as back references by a binding layer.
// Implementations are used by one generator at a time.
type IDGenerator interface {
	// ID returns the identifier of ref. Values without identity (nil, plain
	// values) get a fresh identifier every time.
	ID(ref any) string
	// Seen tells whether ref already has an identifier.
	Seen(ref any) (string, bool)
}

type identity struct {
	typ reflect.Type
	ptr uintptr
}

// identityOf returns the identity of reference-like values: pointers, maps,
// slices, channels and functions.
func identityOf(ref any) (identity, bool) {
	if ref == nil {
		return identity{}, false
	}
	v := reflect.ValueOf(ref)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		if v.IsNil() {
			return identity{}, false
		}
		return identity{typ: v.Type(), ptr: v.Pointer()}, true
	}
	return identity{}, false
}

// idRegistry maps identities to identifiers produced by next.
type idRegistry struct {
	ids  map[identity]string
	next func() string
}

func (r *idRegistry) ID(ref any) string {
	key, ok := identityOf(ref)
	if !ok {
		return r.next()
	}
	if id, ok := r.ids[key]; ok {
		return id
	}
	if r.ids == nil {
		r.ids = make(map[identity]string)
	}
	id := r.next()
	r.ids[key] = id
	return id
}

func (r *idRegistry) Seen(ref any) (string, bool) {
	key, ok := identityOf(ref)
	if !ok {
		return "", false
	}
	id, ok := r.ids[key]
	return id, ok
}

// SequentialIDs hands out "0", "1", "2" and so on.
type SequentialIDs struct {
	idRegistry
	counter int64
}

func NewSequentialIDs() *SequentialIDs {
	g := &SequentialIDs{}
	g.next = func() string {
		id := strconv.FormatInt(g.counter, 10)
		g.counter++
		return id
	}
	return g
}

// UUIDGenerator hands out random version 4 UUIDs.
type UUIDGenerator struct {
	idRegistry
}

func NewUUIDGenerator() *UUIDGenerator {
	g := &UUIDGenerator{}
	g.next = uuid.NewString
	return g
}
