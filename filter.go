package cirjson

import (
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring"
	"github.com/pkg/errors"
)

// TokenFilter decides which parts of a token stream are kept. Methods
// returning a TokenFilter return the filter for the nested value: nil drops
// it, IncludeAll keeps all of it without asking again, SameFilter continues
// with the filter the method was called on.
type TokenFilter interface {
	FilterStartObject() TokenFilter
	FilterStartArray() TokenFilter
	FilterFinishObject()
	FilterFinishArray()

	IncludeProperty(name string) TokenFilter
	IncludeElement(index int) TokenFilter
	IncludeRootValue(index int) TokenFilter
	IncludeScalar() bool

	// IncludeEmptyObject decides on objects that ended up with no content.
	// contentsFiltered is true when some content was dropped.
	IncludeEmptyObject(contentsFiltered bool) bool
	IncludeEmptyArray(contentsFiltered bool) bool
}

// Inclusion controls what is written around included values.
type Inclusion uint8

const (
	// OnlyIncludeAll writes included values without their enclosing path.
	OnlyIncludeAll Inclusion = iota
	// IncludeAllAndPath also writes the structures and names leading to them.
	IncludeAllAndPath
	// IncludeNonNull writes every structure the filter doesn't drop.
	IncludeNonNull
)

func (i Inclusion) String() string {
	switch i {
	case OnlyIncludeAll:
		return "ONLY_INCLUDE_ALL"
	case IncludeAllAndPath:
		return "INCLUDE_ALL_AND_PATH"
	case IncludeNonNull:
		return "INCLUDE_NON_NULL"
	}
	return "UNKNOWN"
}

// TokenFilterBase includes everything through SameFilter. Embed it and
// override what matters.
type TokenFilterBase struct{}

func (TokenFilterBase) FilterStartObject() TokenFilter { return SameFilter }
func (TokenFilterBase) FilterStartArray() TokenFilter { return SameFilter }
func (TokenFilterBase) FilterFinishObject() {}
func (TokenFilterBase) FilterFinishArray() {}
func (TokenFilterBase) IncludeProperty(string) TokenFilter { return SameFilter }
func (TokenFilterBase) IncludeElement(int) TokenFilter { return SameFilter }
func (TokenFilterBase) IncludeRootValue(int) TokenFilter { return SameFilter }
func (TokenFilterBase) IncludeScalar() bool { return true }
func (TokenFilterBase) IncludeEmptyObject(contentsFiltered bool) bool { return false }
func (TokenFilterBase) IncludeEmptyArray(contentsFiltered bool) bool { return false }

type includeAllFilter struct {
	TokenFilterBase
}

func (f *includeAllFilter) String() string {
	return "TokenFilter.IncludeAll"
}

type sameFilter struct {
	TokenFilterBase
}

var (
	// IncludeAll keeps a value and everything in it.
	IncludeAll TokenFilter = &includeAllFilter{}
	// SameFilter is returned to keep applying the current filter.
	SameFilter TokenFilter = &sameFilter{}
)

// resolve replaces SameFilter with the filter that returned it.
func resolve(next, cur TokenFilter) TokenFilter {
	if next == SameFilter {
		return cur
	}
	return next
}

// NameFilter keeps properties with the given names at any depth.
type NameFilter struct {
	TokenFilterBase
	names map[string]struct{}
}

func NewNameFilter(names ...string) *NameFilter {
	f := &NameFilter{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		f.names[n] = struct{}{}
	}
	return f
}

func (f *NameFilter) IncludeProperty(name string) TokenFilter {
	if _, ok := f.names[name]; ok {
		return IncludeAll
	}
	return SameFilter
}

func (f *NameFilter) IncludeScalar() bool {
	return false
}

// IndexFilter keeps the elements of arrays whose index is in a set. Arrays
// nested in kept elements are kept whole; properties of objects are searched
// for arrays.
type IndexFilter struct {
	TokenFilterBase
	indices *roaring.Bitmap
}

func NewIndexFilter(indices ...uint32) *IndexFilter {
	return &IndexFilter{indices: roaring.BitmapOf(indices...)}
}

func NewIndexFilterFromBitmap(b *roaring.Bitmap) *IndexFilter {
	return &IndexFilter{indices: b.Clone()}
}

func (f *IndexFilter) IncludeElement(index int) TokenFilter {
	if index >= 0 && f.indices.Contains(uint32(index)) {
		return IncludeAll
	}
	return nil
}

func (f *IndexFilter) IncludeScalar() bool {
	return false
}

func (f *IndexFilter) Indices() *roaring.Bitmap {
	return f.indices.Clone()
}

// PointerFilter keeps the value a JSON Pointer points at.
type PointerFilter struct {
	TokenFilterBase
	segments []string
	// array elements on the path are kept whatever their index
	includeAllElements bool
}

// NewPointerFilter parses pointer, for example "/ob/value" or "/list/0".
func NewPointerFilter(pointer string, includeAllElements bool) (*PointerFilter, error) {
	if pointer != "" && pointer[0] != '/' {
		return nil, errors.Errorf("invalid JSON Pointer %q: must start with '/'", pointer)
	}
	var segments []string
	if pointer != "" {
		for _, s := range strings.Split(pointer[1:], "/") {
			segments = append(segments, unescapePointerSegment(s))
		}
	}
	return &PointerFilter{segments: segments, includeAllElements: includeAllElements}, nil
}

func unescapePointerSegment(s string) string {
	if !strings.Contains(s, "~") {
		return s
	}
	return strings.NewReplacer("~1", "/", "~0", "~").Replace(s)
}

func (f *PointerFilter) next() TokenFilter {
	if len(f.segments) == 1 {
		return IncludeAll
	}
	return &PointerFilter{segments: f.segments[1:], includeAllElements: f.includeAllElements}
}

func (f *PointerFilter) IncludeProperty(name string) TokenFilter {
	if len(f.segments) == 0 || f.segments[0] != name {
		return nil
	}
	return f.next()
}

func (f *PointerFilter) IncludeElement(index int) TokenFilter {
	if len(f.segments) == 0 {
		return nil
	}
	if f.includeAllElements {
		return f.next()
	}
	seg := f.segments[0]
	if len(seg) > 1 && seg[0] == '0' {
		return nil
	}
	i, err := strconv.Atoi(seg)
	if err != nil || i != index {
		return nil
	}
	return f.next()
}

func (f *PointerFilter) IncludeScalar() bool {
	return len(f.segments) == 0
}

func (f *PointerFilter) String() string {
	return "[PointerFilter at: " + buildPointerFromNames(f.segments) + "]"
}

func buildPointerFromNames(names []string) string {
	sb := strings.Builder{}
	for _, n := range names {
		sb.WriteByte('/')
		sb.WriteString(escapePointerSegment(n))
	}
	return sb.String()
}

// TokenFilterContext tracks filtering state per structure: the filter in
// force, whether the structure start already reached the output and the
// pending property name.
type TokenFilterContext struct {
	parent *TokenFilterContext
	child  *TokenFilterContext

	typ    ContextType
	filter TokenFilter
	index  int

	name             string
	hasName          bool
	needToHandleName bool
	startHandled     bool

	id           string
	hasID        bool
	idWritten    bool
	currentValue any
}

func newRootFilterContext(f TokenFilter) *TokenFilterContext {
	c := &TokenFilterContext{}
	c.reset(ContextRoot, f, nil, true)
	return c
}

func (c *TokenFilterContext) reset(typ ContextType, f TokenFilter, currentValue any, startHandled bool) {
	c.typ = typ
	c.filter = f
	c.index = -1
	c.name = ""
	c.hasName = false
	c.needToHandleName = false
	c.startHandled = startHandled
	c.id = ""
	c.hasID = false
	c.idWritten = false
	c.currentValue = currentValue
}

func (c *TokenFilterContext) createChild(typ ContextType, f TokenFilter, currentValue any, startHandled bool) *TokenFilterContext {
	child := c.child
	if child == nil {
		child = &TokenFilterContext{parent: c}
		c.child = child
	}
	child.reset(typ, f, currentValue, startHandled)
	return child
}

// setPropertyName records name and returns the filter of the object.
func (c *TokenFilterContext) setPropertyName(name string) TokenFilter {
	c.name = name
	c.hasName = true
	c.needToHandleName = true
	return c.filter
}

// checkValue returns the filter for the next value of this structure.
func (c *TokenFilterContext) checkValue(f TokenFilter) TokenFilter {
	switch c.typ {
	case ContextArray:
		c.index++
		return resolve(f.IncludeElement(c.index), f)
	case ContextRoot:
		c.index++
		return resolve(f.IncludeRootValue(c.index), f)
	}
	return f
}

func (c *TokenFilterContext) setID(id string, ref any) {
	c.id = id
	c.hasID = true
	if ref != nil {
		c.currentValue = ref
	}
}

// writePath writes the starts, identifiers and names leading to the current
// position that did not reach g yet.
func (c *TokenFilterContext) writePath(g Generator) error {
	if c.filter == nil || c.filter == IncludeAll {
		return nil
	}
	if c.parent != nil {
		if err := c.parent.writePath(g); err != nil {
			return err
		}
	}
	if !c.startHandled {
		c.startHandled = true
		switch c.typ {
		case ContextObject:
			if err := g.WriteStartObject(); err != nil {
				return err
			}
			c.idWritten = true
			if err := g.WriteObjectID(c.currentValue); err != nil {
				return err
			}
		case ContextArray:
			if err := g.WriteStartArray(); err != nil {
				return err
			}
			c.idWritten = true
			if err := g.WriteArrayID(c.currentValue); err != nil {
				return err
			}
		}
	}
	return c.ensureNameWritten(g)
}

func (c *TokenFilterContext) ensureNameWritten(g Generator) error {
	if c.typ != ContextObject || !c.needToHandleName {
		return nil
	}
	c.needToHandleName = false
	return g.WriteName(c.name)
}

func (c *TokenFilterContext) closeObject(g Generator) (*TokenFilterContext, error) {
	if err := c.close(g, ContextObject); err != nil {
		return c.parent, err
	}
	return c.parent, nil
}

func (c *TokenFilterContext) closeArray(g Generator) (*TokenFilterContext, error) {
	if err := c.close(g, ContextArray); err != nil {
		return c.parent, err
	}
	return c.parent, nil
}

func (c *TokenFilterContext) close(g Generator, typ ContextType) error {
	f := c.filter
	var err error
	switch {
	case c.startHandled:
		err = endStructure(g, typ)
	case f != nil && f != IncludeAll:
		if c.includeEmpty() {
			err = c.writeEmpty(g)
		}
	}
	if f != nil && f != IncludeAll {
		if typ == ContextObject {
			f.FilterFinishObject()
		} else {
			f.FilterFinishArray()
		}
	}
	c.currentValue = nil
	return err
}

func (c *TokenFilterContext) includeEmpty() bool {
	if c.typ == ContextObject {
		return c.filter.IncludeEmptyObject(c.hasName)
	}
	return c.filter.IncludeEmptyArray(c.index >= 0)
}

func (c *TokenFilterContext) writeEmpty(g Generator) error {
	if c.parent != nil {
		if err := c.parent.writePath(g); err != nil {
			return err
		}
	}
	if c.typ == ContextObject {
		if err := g.WriteStartObject(); err != nil {
			return err
		}
		if err := g.WriteObjectID(c.currentValue); err != nil {
			return err
		}
		return g.WriteEndObject()
	}
	if err := g.WriteStartArray(); err != nil {
		return err
	}
	if err := g.WriteArrayID(c.currentValue); err != nil {
		return err
	}
	return g.WriteEndArray()
}

func endStructure(g Generator, typ ContextType) error {
	if typ == ContextObject {
		return g.WriteEndObject()
	}
	return g.WriteEndArray()
}

// skipParentChecks stops filtering in this structure and its parents after
// the one allowed match.
func (c *TokenFilterContext) skipParentChecks() {
	for ctx := c; ctx != nil; ctx = ctx.parent {
		ctx.filter = nil
	}
}

func (c *TokenFilterContext) Parent() *TokenFilterContext {
	return c.parent
}

func (c *TokenFilterContext) Filter() TokenFilter {
	return c.filter
}

func (c *TokenFilterContext) Type() ContextType {
	return c.typ
}

func (c *TokenFilterContext) IsStartHandled() bool {
	return c.startHandled
}

func (c *TokenFilterContext) CurrentName() string {
	return c.name
}

func (c *TokenFilterContext) Index() int {
	return c.index
}

func (c *TokenFilterContext) ID() string {
	return c.id
}

func (c *TokenFilterContext) String() string {
	return contextString(c.typ, c.name, c.hasName, c.index)
}
