package cirjson

import (
	"strconv"
	"strings"
)

// ContextType is the kind of structure a stream context tracks.
type ContextType uint8

const (
	ContextRoot ContextType = iota
	ContextArray
	ContextObject
)

func (t ContextType) String() string {
	switch t {
	case ContextRoot:
		return "ROOT"
	case ContextArray:
		return "ARRAY"
	case ContextObject:
		return "OBJECT"
	default:
		return "UNKNOWN"
	}
}

// typeDesc is the human readable name used in error messages.
func (t ContextType) typeDesc() string {
	switch t {
	case ContextArray:
		return "Array"
	case ContextObject:
		return "Object"
	default:
		return "root"
	}
}

// Write statuses returned by WriteContext so the generator knows which
// separator precedes the next token.
const (
	statusOKAsIs = iota
	statusOKAfterComma
	statusOKAfterColon
	statusOKAfterSpace
	statusExpectValue
	statusExpectName
)

// ReadContext tracks the position of a parser in the document. Contexts form
// a child to parent chain; each context caches one child that is reused
// whenever a sibling structure opens.
type ReadContext struct {
	parent *ReadContext
	child  *ReadContext

	typ   ContextType
	depth int
	index int

	name    string
	hasName bool

	id    string
	hasID bool

	dups *DupDetector

	startLine   int
	startColumn int
	startOffset int64

	currentValue any
}

// NewRootReadContext creates the context a parser starts in. dups may be nil
// to skip duplicate name detection.
func NewRootReadContext(dups *DupDetector) *ReadContext {
	c := &ReadContext{dups: dups}
	c.reset(ContextRoot, 1, 0, 0)
	return c
}

func (c *ReadContext) reset(typ ContextType, line, column int, offset int64) {
	c.typ = typ
	c.index = -1
	c.name = ""
	c.hasName = false
	c.id = ""
	c.hasID = false
	c.startLine = line
	c.startColumn = column
	c.startOffset = offset
	c.currentValue = nil
	if c.dups != nil {
		c.dups.Reset()
	}
}

func (c *ReadContext) createChild(typ ContextType, line, column int, offset int64) *ReadContext {
	child := c.child
	if child == nil {
		var dups *DupDetector
		if c.dups != nil {
			dups = c.dups.Child()
		}
		child = &ReadContext{parent: c, depth: c.depth + 1, dups: dups}
		c.child = child
	}
	child.reset(typ, line, column, offset)
	return child
}

// clearAndGetParent drops the current value reference, the context itself
// stays cached in its parent.
func (c *ReadContext) clearAndGetParent() *ReadContext {
	c.currentValue = nil
	return c.parent
}

// nextIndex moves to the next value and returns its index.
func (c *ReadContext) nextIndex() int {
	c.index++
	return c.index
}

// setCurrentName records name and reports whether it was already used in
// this object.
func (c *ReadContext) setCurrentName(name string) bool {
	c.name = name
	c.hasName = true
	if c.dups != nil {
		return c.dups.IsDup(name)
	}
	return false
}

func (c *ReadContext) setID(id string) {
	c.id = id
	c.hasID = true
}

func (c *ReadContext) Type() ContextType {
	return c.typ
}

func (c *ReadContext) Parent() *ReadContext {
	return c.parent
}

func (c *ReadContext) InRoot() bool {
	return c.typ == ContextRoot
}

func (c *ReadContext) InArray() bool {
	return c.typ == ContextArray
}

func (c *ReadContext) InObject() bool {
	return c.typ == ContextObject
}

// Depth is 0 for the root, 1 for top level structures and so on.
func (c *ReadContext) Depth() int {
	return c.depth
}

// Index of the current value, -1 before the first one. Identifiers are not
// counted.
func (c *ReadContext) Index() int {
	return c.index
}

func (c *ReadContext) EntryCount() int {
	return c.index + 1
}

func (c *ReadContext) CurrentName() string {
	return c.name
}

func (c *ReadContext) HasCurrentName() bool {
	return c.hasName
}

// ID is the CirJSON identifier of the structure, empty until it is read.
func (c *ReadContext) ID() string {
	return c.id
}

func (c *ReadContext) HasID() bool {
	return c.hasID
}

func (c *ReadContext) CurrentValue() any {
	return c.currentValue
}

func (c *ReadContext) SetCurrentValue(v any) {
	c.currentValue = v
}

func (c *ReadContext) DupDetector() *DupDetector {
	return c.dups
}

// StartLocation is where the structure opened.
func (c *ReadContext) StartLocation(source string) Location {
	return Location{Source: source, ByteOffset: c.startOffset, Line: c.startLine, Column: c.startColumn}
}

// PathAsPointer renders the path to the current value as a JSON Pointer.
func (c *ReadContext) PathAsPointer() string {
	var segments []pathSegment
	for ctx := c; ctx != nil; ctx = ctx.parent {
		segments = append(segments, pathSegment{typ: ctx.typ, name: ctx.name, hasName: ctx.hasName, index: ctx.index})
	}
	return buildPointer(segments)
}

func (c *ReadContext) String() string {
	return contextString(c.typ, c.name, c.hasName, c.index)
}

// WriteContext tracks the position of a generator and enforces legal token
// ordering: a name before every object value, never two names in a row.
type WriteContext struct {
	parent *WriteContext
	child  *WriteContext

	typ   ContextType
	depth int
	index int

	name    string
	gotName bool

	id    string
	hasID bool

	dups *DupDetector

	currentValue any
}

func NewRootWriteContext(dups *DupDetector) *WriteContext {
	c := &WriteContext{dups: dups}
	c.reset(ContextRoot, nil)
	return c
}

func (c *WriteContext) reset(typ ContextType, currentValue any) {
	c.typ = typ
	c.index = -1
	c.name = ""
	c.gotName = false
	c.id = ""
	c.hasID = false
	c.currentValue = currentValue
	if c.dups != nil {
		c.dups.Reset()
	}
}

func (c *WriteContext) createChild(typ ContextType, currentValue any) *WriteContext {
	child := c.child
	if child == nil {
		var dups *DupDetector
		if c.dups != nil {
			dups = c.dups.Child()
		}
		child = &WriteContext{parent: c, depth: c.depth + 1, dups: dups}
		c.child = child
	}
	child.reset(typ, currentValue)
	return child
}

func (c *WriteContext) clearAndGetParent() *WriteContext {
	c.currentValue = nil
	return c.parent
}

// writeName returns statusExpectValue when a name is already pending and
// reports duplicates through dup.
func (c *WriteContext) writeName(name string) (status int, dup bool) {
	if c.typ != ContextObject || c.gotName {
		return statusExpectValue, false
	}
	c.gotName = true
	c.name = name
	if c.dups != nil && c.dups.IsDup(name) {
		return statusOKAfterComma, true
	}
	if c.index < 0 && !c.hasID {
		return statusOKAsIs, false
	}
	return statusOKAfterComma, false
}

func (c *WriteContext) writeValue() int {
	switch c.typ {
	case ContextObject:
		if !c.gotName {
			return statusExpectName
		}
		c.gotName = false
		c.index++
		return statusOKAfterColon
	case ContextArray:
		c.index++
		if c.index == 0 && !c.hasID {
			return statusOKAsIs
		}
		return statusOKAfterComma
	default:
		c.index++
		if c.index == 0 {
			return statusOKAsIs
		}
		return statusOKAfterSpace
	}
}

func (c *WriteContext) setID(id string) {
	c.id = id
	c.hasID = true
}

func (c *WriteContext) Type() ContextType {
	return c.typ
}

func (c *WriteContext) Parent() *WriteContext {
	return c.parent
}

func (c *WriteContext) InRoot() bool {
	return c.typ == ContextRoot
}

func (c *WriteContext) InArray() bool {
	return c.typ == ContextArray
}

func (c *WriteContext) InObject() bool {
	return c.typ == ContextObject
}

func (c *WriteContext) Depth() int {
	return c.depth
}

func (c *WriteContext) Index() int {
	return c.index
}

func (c *WriteContext) EntryCount() int {
	return c.index + 1
}

func (c *WriteContext) CurrentName() string {
	return c.name
}

func (c *WriteContext) HasCurrentName() bool {
	return c.typ == ContextObject && (c.gotName || c.index >= 0)
}

func (c *WriteContext) ID() string {
	return c.id
}

func (c *WriteContext) HasID() bool {
	return c.hasID
}

func (c *WriteContext) CurrentValue() any {
	return c.currentValue
}

func (c *WriteContext) SetCurrentValue(v any) {
	c.currentValue = v
}

func (c *WriteContext) PathAsPointer() string {
	var segments []pathSegment
	for ctx := c; ctx != nil; ctx = ctx.parent {
		segments = append(segments, pathSegment{typ: ctx.typ, name: ctx.name, hasName: ctx.HasCurrentName(), index: ctx.index})
	}
	return buildPointer(segments)
}

func (c *WriteContext) String() string {
	return contextString(c.typ, c.name, c.HasCurrentName(), c.index)
}

type pathSegment struct {
	typ     ContextType
	name    string
	hasName bool
	index   int
}

// buildPointer takes segments leaf first.
func buildPointer(segments []pathSegment) string {
	sb := strings.Builder{}
	for i := len(segments) - 1; i >= 0; i-- {
		s := segments[i]
		switch s.typ {
		case ContextArray:
			if s.index >= 0 {
				sb.WriteByte('/')
				sb.WriteString(strconv.Itoa(s.index))
			}
		case ContextObject:
			if s.hasName {
				sb.WriteByte('/')
				sb.WriteString(escapePointerSegment(s.name))
			}
		}
	}
	return sb.String()
}

var pointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

func escapePointerSegment(s string) string {
	if !strings.ContainsAny(s, "~/") {
		return s
	}
	return pointerEscaper.Replace(s)
}

func contextString(typ ContextType, name string, hasName bool, index int) string {
	switch typ {
	case ContextArray:
		return "[" + strconv.Itoa(index) + "]"
	case ContextObject:
		if !hasName {
			return "{?}"
		}
		return "{" + strconv.Quote(name) + "}"
	default:
		return "/"
	}
}
