package cirjson

import (
	"encoding/json"
	"math"
	"math/big"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// MapUseThreshold is the number of fields starting from which Dig indexes
// object fields with a map.
var MapUseThreshold = 16

var (
	ErrNotNode        = errors.New("value isn't a *Node")
	ErrUnexpectedNode = errors.New("unexpected token for a tree node")
)

type NodeKind uint8

const (
	KindNull NodeKind = iota
	KindObject
	KindArray
	KindString
	KindNumber
	KindTrue
	KindFalse
)

func (k NodeKind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindTrue:
		return "true"
	case KindFalse:
		return "false"
	default:
		return "null"
	}
}

/*
Node is a building block of a decoded CirJSON tree. There are seven kinds:
	1. Object
	2. Array
	3. String
	4. Number
	5. True
	6. False
	7. Null
Identifiers are not part of the content: they are stripped while reading and
kept in ID, writing a tree assigns new ones.
*/
type Node struct {
	ID string

	kind   NodeKind
	data   string
	float  bool
	parent *Node
	names  []string
	nodes  []*Node
	fields map[string]int
}

func NewObject() *Node {
	return &Node{kind: KindObject}
}

func NewArray() *Node {
	return &Node{kind: KindArray}
}

func NewString(s string) *Node {
	return &Node{kind: KindString, data: s}
}

// NewNumber keeps text as is; it must be a valid number literal.
func NewNumber(text string) *Node {
	return &Node{kind: KindNumber, data: text, float: !isIntegerText(text)}
}

func NewBool(v bool) *Node {
	if v {
		return &Node{kind: KindTrue}
	}
	return &Node{kind: KindFalse}
}

func NewNull() *Node {
	return &Node{}
}

func isIntegerText(s string) bool {
	for i := 0; i < len(s); i++ {
		if c := s[i]; (c < '0' || c > '9') && c != '-' {
			return false
		}
	}
	return s != ""
}

func (n *Node) Kind() NodeKind {
	if n == nil {
		return KindNull
	}
	return n.kind
}

func (n *Node) Parent() *Node {
	if n == nil {
		return nil
	}
	return n.parent
}

// Len is the number of fields of an object or elements of an array.
func (n *Node) Len() int {
	if n == nil {
		return 0
	}
	return len(n.nodes)
}

// Fields returns object field names in document order.
func (n *Node) Fields() []string {
	if n == nil || n.kind != KindObject {
		return nil
	}
	return n.names
}

// Elements returns array elements, or object field values in the order of
// Fields.
func (n *Node) Elements() []*Node {
	if n == nil {
		return nil
	}
	return n.nodes
}

// Dig walks path through object fields and array indexes and returns nil if
// any step is missing.
func (n *Node) Dig(path ...string) *Node {
	node := n
	for _, step := range path {
		if node == nil {
			return nil
		}
		switch node.kind {
		case KindObject:
			index := node.fieldIndex(step)
			if index < 0 {
				return nil
			}
			node = node.nodes[index]
		case KindArray:
			index, err := strconv.Atoi(step)
			if err != nil || index < 0 || index >= len(node.nodes) {
				return nil
			}
			node = node.nodes[index]
		default:
			return nil
		}
	}
	return node
}

func (n *Node) fieldIndex(name string) int {
	if len(n.names) <= MapUseThreshold {
		for i, field := range n.names {
			if field == name {
				return i
			}
		}
		return -1
	}
	if n.fields == nil {
		n.fields = make(map[string]int, len(n.names))
		for i := len(n.names) - 1; i >= 0; i-- {
			n.fields[n.names[i]] = i
		}
	}
	index, has := n.fields[name]
	if !has {
		return -1
	}
	return index
}

// AddField returns the value of field name, adding it as null when the
// object doesn't have it yet. Returns nil if n isn't an object.
func (n *Node) AddField(name string) *Node {
	if n == nil || n.kind != KindObject {
		return nil
	}
	if index := n.fieldIndex(name); index >= 0 {
		return n.nodes[index]
	}
	return n.appendField(name, &Node{})
}

func (n *Node) appendField(name string, value *Node) *Node {
	value.parent = n
	if n.fields != nil {
		if _, has := n.fields[name]; !has {
			n.fields[name] = len(n.names)
		}
	}
	n.names = append(n.names, name)
	n.nodes = append(n.nodes, value)
	return value
}

// AddElement appends a null element and returns it. Returns nil if n isn't
// an array.
func (n *Node) AddElement() *Node {
	if n == nil || n.kind != KindArray {
		return nil
	}
	return n.appendElement(&Node{})
}

func (n *Node) appendElement(value *Node) *Node {
	value.parent = n
	n.nodes = append(n.nodes, value)
	return value
}

// Suicide removes the node from its parent, the root stays.
func (n *Node) Suicide() {
	if n == nil || n.parent == nil {
		return
	}
	owner := n.parent
	for i, node := range owner.nodes {
		if node != n {
			continue
		}
		owner.nodes = append(owner.nodes[:i], owner.nodes[i+1:]...)
		if owner.kind == KindObject {
			owner.names = append(owner.names[:i], owner.names[i+1:]...)
			owner.fields = nil
		}
		n.parent = nil
		return
	}
}

func (n *Node) mutate(kind NodeKind, data string) *Node {
	if n == nil {
		return nil
	}
	n.kind = kind
	n.data = data
	n.float = false
	n.names = nil
	n.nodes = nil
	n.fields = nil
	return n
}

func (n *Node) MutateToString(value string) *Node {
	return n.mutate(KindString, value)
}

func (n *Node) MutateToInt(value int) *Node {
	return n.mutate(KindNumber, strconv.Itoa(value))
}

func (n *Node) MutateToFloat(value float64) *Node {
	n = n.mutate(KindNumber, FormatDouble(value))
	if n != nil {
		n.float = true
	}
	return n
}

func (n *Node) MutateToBool(value bool) *Node {
	if value {
		return n.mutate(KindTrue, "")
	}
	return n.mutate(KindFalse, "")
}

func (n *Node) MutateToNull() *Node {
	return n.mutate(KindNull, "")
}

func (n *Node) MutateToObject() *Node {
	return n.mutate(KindObject, "")
}

func (n *Node) MutateToArray() *Node {
	return n.mutate(KindArray, "")
}

func (n *Node) AsString() string {
	if n == nil {
		return ""
	}
	switch n.kind {
	case KindString, KindNumber:
		return n.data
	case KindTrue:
		return "true"
	case KindFalse:
		return "false"
	case KindNull:
		return "null"
	default:
		return ""
	}
}

func (n *Node) AsBytes() []byte {
	return toByte(n.AsString())
}

func (n *Node) AsBool() bool {
	if n == nil {
		return false
	}
	switch n.kind {
	case KindString:
		return n.data == "true"
	case KindNumber:
		return n.data != "0"
	case KindTrue:
		return true
	default:
		return false
	}
}

// AsInt rounds numbers and numeric strings, anything else is 0.
func (n *Node) AsInt() int {
	if n == nil {
		return 0
	}
	switch n.kind {
	case KindString, KindNumber:
		if !n.float {
			if v, err := strconv.Atoi(n.data); err == nil {
				return v
			}
		}
		return int(math.Round(n.AsFloat()))
	case KindTrue:
		return 1
	default:
		return 0
	}
}

func (n *Node) AsFloat() float64 {
	if n == nil {
		return 0
	}
	switch n.kind {
	case KindString, KindNumber:
		v, err := ParseFloat64(n.data, true)
		if err != nil {
			return 0
		}
		return v
	case KindTrue:
		return 1
	default:
		return 0
	}
}

func (n *Node) IsObject() bool {
	return n != nil && n.kind == KindObject
}

func (n *Node) IsArray() bool {
	return n != nil && n.kind == KindArray
}

func (n *Node) IsNumber() bool {
	return n != nil && n.kind == KindNumber
}

func (n *Node) IsString() bool {
	return n != nil && n.kind == KindString
}

func (n *Node) IsTrue() bool {
	return n != nil && n.kind == KindTrue
}

func (n *Node) IsFalse() bool {
	return n != nil && n.kind == KindFalse
}

func (n *Node) IsNull() bool {
	return n != nil && n.kind == KindNull
}

func (n *Node) IsNil() bool {
	return n == nil
}

func (n *Node) TypeStr() string {
	if n == nil {
		return "nil"
	}
	return n.kind.String()
}

// Equal compares content, identifiers are ignored.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	if n.kind != other.kind || n.data != other.data || len(n.nodes) != len(other.nodes) {
		return false
	}
	for i, node := range n.nodes {
		if n.kind == KindObject && n.names[i] != other.names[i] {
			return false
		}
		if !node.Equal(other.nodes[i]) {
			return false
		}
	}
	return true
}

// Encode appends the CirJSON text of n to out[:0]. Identifiers are assigned
// by a fresh SequentialIDs in document order.
func (n *Node) Encode(out []byte) ([]byte, error) {
	w := &appendWriter{b: out[:0]}
	g := defaultFactory.CreateGenerator(w)
	err := writeNode(g, n)
	if cerr := g.Close(); err == nil {
		err = cerr
	}
	return w.b, err
}

// EncodeToString is slow because it allocates a new string on every call,
// use Encode to reuse a buffer.
func (n *Node) EncodeToString() string {
	out, err := n.Encode(nil)
	if err != nil {
		return ""
	}
	return toString(out)
}

var defaultFactory = NewFactory()

type appendWriter struct {
	b []byte
}

func (w *appendWriter) Write(b []byte) (int, error) {
	w.b = append(w.b, b...)
	return len(b), nil
}

// DecodeTree parses a complete document into a tree with the default
// factory.
func DecodeTree(data []byte) (*Node, error) {
	var n *Node
	if err := defaultFactory.ReadValue(data, &n); err != nil {
		return nil, err
	}
	return n, nil
}

func DecodeTreeString(s string) (*Node, error) {
	return DecodeTree(toByte(s))
}

// TreeCodec is the default ObjectReadContext and ObjectWriteContext. It
// reads into *Node and writes *Node plus the generic values produced by
// encoding/json style decoders: map[string]any, []any, strings, bools,
// numbers and json.Number.
type TreeCodec struct{}

// ReadValue reads the value starting at the current token of p into v,
// which must be a **Node or a *Node. The parser is left at the last token of
// the value.
func (TreeCodec) ReadValue(p Parser, v any) error {
	n, err := ReadTree(p)
	if err != nil {
		return err
	}
	switch t := v.(type) {
	case **Node:
		*t = n
	case *Node:
		*t = *n
		for _, child := range t.nodes {
			child.parent = t
		}
		t.parent = nil
	default:
		return errors.Wrapf(ErrNotNode, "can not read into %T", v)
	}
	return nil
}

// ReadTree builds a tree from the value at the current token of p. A
// current PropertyName is skipped.
func ReadTree(p Parser) (*Node, error) {
	t := p.CurrentToken()
	var err error
	if t == PropertyName {
		if t, err = p.NextToken(); err != nil {
			return nil, err
		}
	}

	var root, top *Node
	name := ""
	for {
		var node *Node
		switch t {
		case TokenNone, TokenNotAvailable:
			return nil, &ReadError{Msg: "Unexpected end-of-input while reading a tree", Location: p.CurrentLocation()}
		case StartObject:
			node = &Node{kind: KindObject}
		case StartArray:
			node = &Node{kind: KindArray}
		case IDPropertyName:
			if top == nil {
				return nil, errors.Wrapf(ErrUnexpectedNode, "token %s", t)
			}
			if top.kind == KindObject {
				if _, err = p.NextToken(); err != nil {
					return nil, err
				}
			}
			if top.ID, err = p.Text(); err != nil {
				return nil, err
			}
		case PropertyName:
			name = p.CurrentName()
		case EndObject, EndArray:
			if top == nil {
				return nil, errors.Wrapf(ErrUnexpectedNode, "token %s", t)
			}
			top = top.parent
			if top == nil {
				return root, nil
			}
		default:
			if node, err = readScalar(p, t); err != nil {
				return nil, err
			}
		}

		if node != nil {
			switch {
			case top == nil:
				root = node
			case top.kind == KindObject:
				top.appendField(name, node)
			default:
				top.appendElement(node)
			}
			if node.kind == KindObject || node.kind == KindArray {
				top = node
			} else if top == nil {
				return root, nil
			}
		}

		if t, err = p.NextToken(); err != nil {
			return nil, err
		}
	}
}

func readScalar(p Parser, t Token) (*Node, error) {
	switch t {
	case ValueString:
		s, err := p.Text()
		if err != nil {
			return nil, err
		}
		return &Node{kind: KindString, data: s}, nil
	case ValueNumberInt, ValueNumberFloat:
		s, err := p.Text()
		if err != nil {
			return nil, err
		}
		return &Node{kind: KindNumber, data: s, float: t == ValueNumberFloat}, nil
	case ValueTrue:
		return &Node{kind: KindTrue}, nil
	case ValueFalse:
		return &Node{kind: KindFalse}, nil
	case ValueNull:
		return &Node{kind: KindNull}, nil
	case ValueEmbeddedObject:
		b, err := p.BinaryValue(DefaultBase64Variant())
		if err != nil {
			return nil, err
		}
		return &Node{kind: KindString, data: DefaultBase64Variant().Encode(b)}, nil
	}
	return nil, errors.Wrapf(ErrUnexpectedNode, "token %s", t)
}

// WriteValue writes v to g, containers get identifiers from the IDGenerator
// of g.
func (TreeCodec) WriteValue(g Generator, v any) error {
	switch t := v.(type) {
	case *Node:
		return writeNode(g, t)
	case Node:
		return writeNode(g, &t)
	}
	return writeGeneric(g, v)
}

func writeNode(g Generator, n *Node) error {
	if n == nil {
		return g.WriteNull()
	}
	switch n.kind {
	case KindObject:
		if err := g.WriteStartObject(); err != nil {
			return err
		}
		if err := g.WriteObjectID(n); err != nil {
			return err
		}
		for i, child := range n.nodes {
			if err := g.WriteName(n.names[i]); err != nil {
				return err
			}
			if err := writeNode(g, child); err != nil {
				return err
			}
		}
		return g.WriteEndObject()
	case KindArray:
		if err := g.WriteStartArray(); err != nil {
			return err
		}
		if err := g.WriteArrayID(n); err != nil {
			return err
		}
		for _, child := range n.nodes {
			if err := writeNode(g, child); err != nil {
				return err
			}
		}
		return g.WriteEndArray()
	case KindString:
		return g.WriteString(n.data)
	case KindNumber:
		if isNonFiniteText(n.data) {
			return g.WriteDouble(n.AsFloat())
		}
		return g.WriteNumberString(n.data)
	case KindTrue:
		return g.WriteBool(true)
	case KindFalse:
		return g.WriteBool(false)
	}
	return g.WriteNull()
}

func isNonFiniteText(s string) bool {
	switch s {
	case "NaN", "Infinity", "+Infinity", "-Infinity":
		return true
	}
	return false
}

func writeGeneric(g Generator, v any) error {
	switch t := v.(type) {
	case nil:
		return g.WriteNull()
	case map[string]any:
		if err := g.WriteStartObject(); err != nil {
			return err
		}
		if err := g.WriteObjectID(t); err != nil {
			return err
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := g.WriteName(k); err != nil {
				return err
			}
			if err := writeGeneric(g, t[k]); err != nil {
				return err
			}
		}
		return g.WriteEndObject()
	case []any:
		if err := g.WriteStartArray(); err != nil {
			return err
		}
		if err := g.WriteArrayID(t); err != nil {
			return err
		}
		for _, e := range t {
			if err := writeGeneric(g, e); err != nil {
				return err
			}
		}
		return g.WriteEndArray()
	case *Node:
		return writeNode(g, t)
	case string:
		return g.WriteString(t)
	case []byte:
		return g.WriteBinary(DefaultBase64Variant(), t)
	case bool:
		return g.WriteBool(t)
	case json.Number:
		return g.WriteNumberString(t.String())
	case int:
		return g.WriteLong(int64(t))
	case int32:
		return g.WriteInt(t)
	case int64:
		return g.WriteLong(t)
	case uint32:
		return g.WriteLong(int64(t))
	case float32:
		return g.WriteFloat(t)
	case float64:
		return g.WriteDouble(t)
	case *big.Int:
		return g.WriteBigInteger(t)
	case decimal.Decimal:
		return g.WriteDecimal(t)
	}
	return writeErrorf("Can not write a value of type %T without a data binding layer", v)
}
