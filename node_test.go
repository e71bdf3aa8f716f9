package cirjson

import (
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fastjson"
)

// nodeOf builds a tree from a value decoded by fastjson, which knows nothing
// about identifiers.
func nodeOf(v *fastjson.Value) *Node {
	switch v.Type() {
	case fastjson.TypeObject:
		n := NewObject()
		v.GetObject().Visit(func(key []byte, v *fastjson.Value) {
			n.appendField(string(key), nodeOf(v))
		})
		return n
	case fastjson.TypeArray:
		n := NewArray()
		for _, e := range v.GetArray() {
			n.appendElement(nodeOf(e))
		}
		return n
	case fastjson.TypeString:
		return NewString(string(v.GetStringBytes()))
	case fastjson.TypeNumber:
		return NewNumber(v.String())
	case fastjson.TypeTrue:
		return NewBool(true)
	case fastjson.TypeFalse:
		return NewBool(false)
	}
	return NewNull()
}

func TestTreeMatchesPlainJSON(t *testing.T) {
	tests := []string{
		`[]`,
		`[0,1,2,3]`,
		`[{},{},{},{}]`,
		`[{"1":"1"},{"1":"1"},{"1":"1"},{"1":"1"}]`,
		`[["1","1"],["1","1"],["1","1"],["1","1"]]`,
		`[[],0]`,
		`["a",{"6":"5","l":[3,4]},"c","d"]`,
		`{}`,
		`{"a":null,"b":null,"c":null,"d":null}`,
		`{"x":{"a":"a","e":"e"},"b":null}`,
		`{"x":["a","a"],"b":[null,null,null]}`,
		`{"s":"é\"\\\n☃ 😀","n":-1.5e3,"i":12345678901234567890,"t":true,"f":false}`,
		`"root"`,
		`-0.25`,
	}

	parser := fastjson.Parser{}
	for _, test := range tests {
		v, err := parser.Parse(test)
		require.NoError(t, err, "reference parser failed on %s", test)
		want := nodeOf(v)

		encoded, err := want.Encode(nil)
		require.NoError(t, err, "can't encode %s", test)

		got, err := DecodeTree(encoded)
		require.NoError(t, err, "can't decode %s", encoded)
		assert.True(t, want.Equal(got), "tree of %s doesn't survive %s", test, encoded)
	}
}

func TestTreeIDs(t *testing.T) {
	root, err := DecodeTreeString(`{"__cirJsonId__":"x","a":["y",1,{"__cirJsonId__":"z"}]}`)
	require.NoError(t, err)

	assert.Equal(t, "x", root.ID)
	assert.Equal(t, "y", root.Dig("a").ID)
	assert.Equal(t, "z", root.Dig("a", "1").ID)
	assert.Equal(t, `{"__cirJsonId__":"0","a":["1",1,{"__cirJsonId__":"2"}]}`, root.EncodeToString(), "identifiers are assigned on write")
}

func TestDecodeTreeErrors(t *testing.T) {
	_, err := DecodeTreeString(`{"a":1}`)
	assert.ErrorIs(t, err, ErrMissingID)

	_, err = DecodeTreeString(`["0",1`)
	assert.Error(t, err)

	var s string
	err = NewFactory().ReadValue([]byte(`["0"]`), &s)
	assert.ErrorIs(t, err, ErrNotNode)

	var n Node
	require.NoError(t, NewFactory().ReadValue([]byte(`["0",true]`), &n))
	assert.True(t, n.IsArray())
	assert.Nil(t, n.Parent())
	assert.Same(t, &n, n.Elements()[0].Parent(), "children must point at the copy")
}

func TestDig(t *testing.T) {
	const doc = `{"__cirJsonId__":"0","1":{"__cirJsonId__":"1","2":{"__cirJsonId__":"2","3":"x","_3":"_3"}},"list":["3","a",{"__cirJsonId__":"4","b":"c"}],"":""}`

	tests := []struct {
		dig    []string
		result string
	}{
		{dig: []string{"1", "2", "3"}, result: "x"},
		{dig: []string{"list", "0"}, result: "a"},
		{dig: []string{"list", "1", "b"}, result: "c"},
		{dig: []string{""}, result: ""},
		{dig: []string{"list", "2"}, result: ""},
		{dig: []string{"list", "-1"}, result: ""},
		{dig: []string{"list", "x"}, result: ""},
		{dig: []string{"1", "2", "3", "4"}, result: ""},
		{dig: []string{"missing"}, result: ""},
	}

	root, err := DecodeTreeString(doc)
	require.NoError(t, err)
	for _, test := range tests {
		assert.Equal(t, test.result, root.Dig(test.dig...).AsString(), "wrong dig result for %v", test.dig)
	}
	assert.Same(t, root, root.Dig(), "empty path is the node itself")

	var nilNode *Node
	assert.Nil(t, nilNode.Dig("a"))
}

func TestObjectManyFields(t *testing.T) {
	root := NewObject()
	for i := 0; i < MapUseThreshold*2; i++ {
		root.AddField("f" + strconv.Itoa(i)).MutateToInt(i)
	}

	last := "f" + strconv.Itoa(MapUseThreshold*2-1)
	assert.Equal(t, MapUseThreshold*2-1, root.Dig(last).AsInt(), "field lookup through the map")

	root.Dig("f3").Suicide()
	assert.Nil(t, root.Dig("f3"))
	assert.Equal(t, 4, root.Dig("f4").AsInt(), "indexes must be rebuilt after removal")
	assert.Equal(t, MapUseThreshold*2-1, root.Len())

	root.AddField("f3").MutateToString("back")
	assert.Equal(t, "back", root.Dig("f3").AsString())
	assert.Equal(t, "f3", root.Fields()[root.Len()-1])
}

func TestAddFieldAndElement(t *testing.T) {
	root := NewObject()
	a := root.AddField("a")
	assert.True(t, a.IsNull(), "new field is null")
	assert.Same(t, a, root.AddField("a"), "existing field must be returned")

	list := root.AddField("list").MutateToArray()
	list.AddElement().MutateToString("x")
	list.AddElement().MutateToBool(true)
	list.AddElement().MutateToObject().AddField("in").MutateToFloat(1.5)

	assert.Nil(t, list.AddField("nope"), "arrays have no fields")
	assert.Nil(t, root.AddElement(), "objects have no elements")

	assert.Equal(t, `{"__cirJsonId__":"0","a":null,"list":["1","x",true,{"__cirJsonId__":"2","in":1.5}]}`, root.EncodeToString())
}

func TestSuicide(t *testing.T) {
	root, err := DecodeTreeString(`["0",1,2,3]`)
	require.NoError(t, err)

	root.Elements()[1].Suicide()
	assert.Equal(t, `["0",1,3]`, root.EncodeToString())

	root.Suicide()
	assert.Equal(t, 2, root.Len(), "root can't be removed")

	obj, err := DecodeTreeString(`{"__cirJsonId__":"a","x":1,"y":2}`)
	require.NoError(t, err)
	obj.Dig("x").Suicide()
	assert.Equal(t, []string{"y"}, obj.Fields())
}

func TestNodeConversions(t *testing.T) {
	tests := []struct {
		node *Node
		str  string
		i    int
		f    float64
		b    bool
		kind string
	}{
		{node: NewString("12"), str: "12", i: 12, f: 12, kind: "string"},
		{node: NewString("true"), str: "true", b: true, kind: "string"},
		{node: NewNumber("2.5"), str: "2.5", i: 3, f: 2.5, b: true, kind: "number"},
		{node: NewNumber("0"), str: "0", kind: "number"},
		{node: NewNumber("-7"), str: "-7", i: -7, f: -7, b: true, kind: "number"},
		{node: NewBool(true), str: "true", i: 1, f: 1, b: true, kind: "true"},
		{node: NewBool(false), str: "false", kind: "false"},
		{node: NewNull(), str: "null", kind: "null"},
		{node: NewObject(), str: "", kind: "object"},
		{node: nil, str: "", kind: "nil"},
	}

	for _, test := range tests {
		assert.Equal(t, test.str, test.node.AsString(), "AsString of %s", test.kind)
		assert.Equal(t, test.i, test.node.AsInt(), "AsInt of %s %q", test.kind, test.str)
		assert.Equal(t, test.f, test.node.AsFloat(), "AsFloat of %s %q", test.kind, test.str)
		assert.Equal(t, test.b, test.node.AsBool(), "AsBool of %s %q", test.kind, test.str)
		assert.Equal(t, test.kind, test.node.TypeStr())
	}
}

func TestNodeMutations(t *testing.T) {
	root, err := DecodeTreeString(`{"__cirJsonId__":"0","a":{"__cirJsonId__":"1","b":["2",1]}}`)
	require.NoError(t, err)

	a := root.Dig("a")
	a.MutateToInt(5)
	assert.True(t, a.IsNumber())
	assert.Equal(t, 0, a.Len(), "children must be dropped")
	assert.Nil(t, root.Dig("a", "b"))

	a.MutateToNull()
	assert.True(t, a.IsNull())
	assert.Equal(t, `{"__cirJsonId__":"0","a":null}`, root.EncodeToString())
}

func TestNodeEqual(t *testing.T) {
	a, err := DecodeTreeString(`{"__cirJsonId__":"0","x":["1",1,"s"]}`)
	require.NoError(t, err)
	b, err := DecodeTreeString(`{"__cirJsonId__":"a","x":["b",1,"s"]}`)
	require.NoError(t, err)
	c, err := DecodeTreeString(`{"__cirJsonId__":"a","y":["b",1,"s"]}`)
	require.NoError(t, err)

	assert.True(t, a.Equal(b), "identifiers don't take part in equality")
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))
}

func TestWriteGenericValues(t *testing.T) {
	f := NewFactory()
	out, err := f.WriteValueAsString(map[string]any{
		"b": []any{1, "x", json.Number("1.50"), nil},
		"a": true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"__cirJsonId__":"0","a":true,"b":["1",1,"x",1.50,null]}`, out, "keys must be sorted")

	b, err := f.WriteValueAsBytes([]byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, `"AQID"`, string(b))

	_, err = f.WriteValueAsString(struct{}{})
	assert.Error(t, err, "structs need a data binding layer")
}
