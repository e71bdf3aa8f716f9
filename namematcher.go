package cirjson

import (
	"golang.org/x/text/cases"
)

// Results of name matching that are not ordinals.
const (
	// MatchUnknownName is a property name outside the candidate set.
	MatchUnknownName = -1
	// MatchEndObject means the parser is at the end of an object.
	MatchEndObject = -2
	// MatchOddToken means the current token is not a name at all.
	MatchOddToken = -3
)

// NameMatcher resolves property names to small ordinals for a fixed set of
// candidates, so that callers switch on an int instead of comparing strings.
// The CirJSON identifier name is always part of the set, with the ordinal
// right after the given names. A NameMatcher is immutable and safe to share.
type NameMatcher struct {
	names   []string
	byName  map[string]int
	byQuads map[[3]uint32]int

	caseInsensitive bool
	idIndex         int
}

// NewNameMatcher builds an exact matcher. Duplicate names keep their first
// ordinal.
func NewNameMatcher(names []string) *NameMatcher {
	return newNameMatcher(names, false)
}

// NewCaseInsensitiveNameMatcher matches names under Unicode case folding.
func NewCaseInsensitiveNameMatcher(names []string) *NameMatcher {
	return newNameMatcher(names, true)
}

func newNameMatcher(names []string, caseInsensitive bool) *NameMatcher {
	m := &NameMatcher{
		names:           make([]string, 0, len(names)+1),
		byName:          make(map[string]int, len(names)+1),
		byQuads:         make(map[[3]uint32]int, len(names)+1),
		caseInsensitive: caseInsensitive,
	}
	for _, name := range append(append([]string(nil), names...), IDName) {
		key := m.fold(name)
		if _, ok := m.byName[key]; ok {
			if name == IDName {
				m.idIndex = m.byName[key]
			}
			continue
		}
		ord := len(m.names)
		m.names = append(m.names, name)
		m.byName[key] = ord
		if name == IDName {
			m.idIndex = ord
		}
		if len(key) <= 12 && !hasZeroByte(key) {
			m.byQuads[quadKey(toByte(key))] = ord
		}
	}

	return m
}

func (m *NameMatcher) fold(s string) string {
	if !m.caseInsensitive {
		return s
	}
	// a Caser is stateful, never share one between goroutines
	return cases.Fold().String(s)
}

// Names returns the candidates in ordinal order, identifier name included.
func (m *NameMatcher) Names() []string {
	return append([]string(nil), m.names...)
}

// IDIndex is the ordinal of the CirJSON identifier name.
func (m *NameMatcher) IDIndex() int {
	return m.idIndex
}

func (m *NameMatcher) MatchName(name string) int {
	if ord, ok := m.byName[m.fold(name)]; ok {
		return ord
	}
	return MatchUnknownName
}

// MatchBytes matches a name given as raw UTF-8 without building a string.
func (m *NameMatcher) MatchBytes(name []byte) int {
	if m.caseInsensitive {
		return m.MatchName(string(name))
	}
	if ord, ok := m.byName[string(name)]; ok {
		return ord
	}
	return MatchUnknownName
}

// MatchQuad matches a name of at most 4 bytes packed by PackQuads.
func (m *NameMatcher) MatchQuad(q1 uint32) int {
	return m.matchShort([3]uint32{q1})
}

func (m *NameMatcher) MatchQuad2(q1, q2 uint32) int {
	return m.matchShort([3]uint32{q1, q2})
}

func (m *NameMatcher) MatchQuad3(q1, q2, q3 uint32) int {
	return m.matchShort([3]uint32{q1, q2, q3})
}

// MatchQuads matches the name packed in the first n quads.
func (m *NameMatcher) MatchQuads(quads []uint32, n int) int {
	if n <= 3 {
		var key [3]uint32
		copy(key[:], quads[:n])
		return m.matchShort(key)
	}
	return m.MatchBytes(UnpackQuads(quads[:n]))
}

func (m *NameMatcher) matchShort(key [3]uint32) int {
	if m.caseInsensitive {
		return m.MatchName(string(UnpackQuads(key[:])))
	}
	if ord, ok := m.byQuads[key]; ok {
		return ord
	}
	return MatchUnknownName
}

// PackQuads packs name bytes big-endian into 32-bit quads, the last quad
// left-aligned and zero padded.
func PackQuads(name []byte) []uint32 {
	quads := make([]uint32, (len(name)+3)/4)
	for i, c := range name {
		quads[i>>2] |= uint32(c) << (24 - 8*uint(i&3))
	}
	return quads
}

// UnpackQuads reverses PackQuads, dropping the zero padding.
func UnpackQuads(quads []uint32) []byte {
	out := make([]byte, 0, len(quads)*4)
	for _, q := range quads {
		out = append(out, byte(q>>24), byte(q>>16), byte(q>>8), byte(q))
	}
	for len(out) > 0 && out[len(out)-1] == 0 {
		out = out[:len(out)-1]
	}
	return out
}

func quadKey(name []byte) [3]uint32 {
	var key [3]uint32
	copy(key[:], PackQuads(name))
	return key
}

func hasZeroByte(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			return true
		}
	}
	return false
}
