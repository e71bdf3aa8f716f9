package cirjson

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequentialIDs(t *testing.T) {
	g := NewSequentialIDs()
	assert.Equal(t, "0", g.ID(nil))
	assert.Equal(t, "1", g.ID(nil), "nil has no identity")
	assert.Equal(t, "2", g.ID(42), "plain values have no identity")

	m := map[string]int{}
	x, y := 1, 1
	assert.Equal(t, "3", g.ID(m))
	assert.Equal(t, "4", g.ID(&x))
	assert.Equal(t, "3", g.ID(m), "same map, same identifier")
	assert.Equal(t, "4", g.ID(&x), "same pointer, same identifier")
	assert.Equal(t, "5", g.ID(&y), "equal values behind different pointers differ")

	id, seen := g.Seen(m)
	assert.True(t, seen)
	assert.Equal(t, "3", id)

	_, seen = g.Seen(map[string]int{})
	assert.False(t, seen)
	_, seen = g.Seen(nil)
	assert.False(t, seen)

	var nilMap map[string]int
	assert.Equal(t, "6", g.ID(nilMap), "nil map has no identity")
	assert.Equal(t, "7", g.ID(nilMap))
}

func TestUUIDGenerator(t *testing.T) {
	g := NewUUIDGenerator()
	first := g.ID(nil)
	parsed, err := uuid.Parse(first)
	require.NoError(t, err, "identifier %q isn't a UUID", first)
	assert.Equal(t, uuid.Version(4), parsed.Version())
	assert.NotEqual(t, first, g.ID(nil))

	s := []int{1}
	id := g.ID(s)
	assert.Equal(t, id, g.ID(s))
}

func TestFactoryIDGenerator(t *testing.T) {
	calls := 0
	f := NewFactory(WithIDGenerator(func() IDGenerator {
		calls++
		return NewSequentialIDs()
	}))

	for i := 0; i < 2; i++ {
		out, err := f.WriteValueAsString([]any{})
		require.NoError(t, err)
		assert.Equal(t, `["0"]`, out, "every generator starts from scratch")
	}
	assert.Equal(t, 2, calls)
}
