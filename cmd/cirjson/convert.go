package main

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"github.com/vitkovskii/cirjson"
)

var plainJSON = jsoniter.Config{EscapeHTML: false, UseNumber: true}.Froze()

func (r *runner) convert(c *cli.Context) error {
	path, err := oneArg(c)
	if err != nil {
		return err
	}
	in, err := openInput(path)
	if err != nil {
		return err
	}
	defer in.Close()

	g := r.factory.CreateGenerator(nopCloser{c.App.Writer})
	if err := convertJSON(jsoniter.Parse(plainJSON, in, 32*1024), g); err != nil {
		g.Close()
		return err
	}
	if err := g.Close(); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer)
	return nil
}

// convertJSON writes every root value of a plain JSON stream to g, which
// gives each object and array an identifier.
func convertJSON(iter *jsoniter.Iterator, g cirjson.Generator) error {
	for {
		next := iter.WhatIsNext()
		if next == jsoniter.InvalidValue {
			if iter.Error == nil {
				return errors.New("plain JSON: unexpected character")
			}
			if errors.Is(iter.Error, io.EOF) {
				return nil
			}
			return errors.Wrap(iter.Error, "plain JSON")
		}
		if err := convertValue(iter, g); err != nil {
			return err
		}
		if iter.Error != nil && !errors.Is(iter.Error, io.EOF) {
			return errors.Wrap(iter.Error, "plain JSON")
		}
	}
}

func convertValue(iter *jsoniter.Iterator, g cirjson.Generator) error {
	var err error
	switch iter.WhatIsNext() {
	case jsoniter.ObjectValue:
		if err = g.WriteStartObject(); err != nil {
			return err
		}
		if err = g.WriteObjectID(nil); err != nil {
			return err
		}
		iter.ReadObjectCB(func(iter *jsoniter.Iterator, name string) bool {
			if err = g.WriteName(name); err != nil {
				return false
			}
			err = convertValue(iter, g)
			return err == nil
		})
		if err != nil {
			return err
		}
		return g.WriteEndObject()
	case jsoniter.ArrayValue:
		if err = g.WriteStartArray(); err != nil {
			return err
		}
		if err = g.WriteArrayID(nil); err != nil {
			return err
		}
		iter.ReadArrayCB(func(iter *jsoniter.Iterator) bool {
			err = convertValue(iter, g)
			return err == nil
		})
		if err != nil {
			return err
		}
		return g.WriteEndArray()
	case jsoniter.StringValue:
		return g.WriteString(iter.ReadString())
	case jsoniter.NumberValue:
		return g.WriteNumberString(iter.ReadNumber().String())
	case jsoniter.BoolValue:
		return g.WriteBool(iter.ReadBool())
	case jsoniter.NilValue:
		iter.ReadNil()
		return g.WriteNull()
	}
	if iter.Error != nil {
		return errors.Wrap(iter.Error, "plain JSON")
	}
	return errors.New("plain JSON: unexpected value")
}

func (r *runner) strip(c *cli.Context) error {
	path, err := oneArg(c)
	if err != nil {
		return err
	}
	p, in, err := r.openParser(path)
	if err != nil {
		return err
	}
	defer in.Close()
	defer p.Close()

	stream := jsoniter.NewStream(plainJSON, c.App.Writer, 32*1024)
	if err := stripIDs(p, stream); err != nil {
		return err
	}
	stream.WriteRaw("\n")
	return errors.Wrap(stream.Flush(), "write output")
}

// stripIDs copies the token stream of p to stream without identifiers.
// Root values go on separate lines.
func stripIDs(p cirjson.Parser, stream *jsoniter.Stream) error {
	// one entry per open structure, true until its first entry is written
	var first []bool
	afterName := false
	roots := 0

	separate := func() {
		if afterName {
			afterName = false
			return
		}
		if len(first) == 0 {
			if roots > 0 {
				stream.WriteRaw("\n")
			}
			return
		}
		if !first[len(first)-1] {
			stream.WriteMore()
		}
		first[len(first)-1] = false
	}
	closed := func() {
		first = first[:len(first)-1]
		if len(first) == 0 {
			roots++
		}
	}

	for {
		t, err := p.NextToken()
		if err != nil {
			return err
		}
		switch t {
		case cirjson.TokenNone:
			return nil
		case cirjson.IDPropertyName:
			if !p.ReadContext().InArray() {
				if _, err := p.NextToken(); err != nil {
					return err
				}
			}
			continue
		case cirjson.StartObject:
			separate()
			stream.WriteObjectStart()
			first = append(first, true)
			continue
		case cirjson.StartArray:
			separate()
			stream.WriteArrayStart()
			first = append(first, true)
			continue
		case cirjson.EndObject:
			stream.WriteObjectEnd()
			closed()
			continue
		case cirjson.EndArray:
			stream.WriteArrayEnd()
			closed()
			continue
		case cirjson.PropertyName:
			separate()
			stream.WriteObjectField(p.CurrentName())
			afterName = true
			continue
		}

		separate()
		switch t {
		case cirjson.ValueString, cirjson.ValueEmbeddedObject:
			text, err := p.Text()
			if err != nil {
				return err
			}
			stream.WriteString(text)
		case cirjson.ValueNumberInt, cirjson.ValueNumberFloat:
			text, err := p.Text()
			if err != nil {
				return err
			}
			if p.IsNaN() {
				stream.WriteString(text)
			} else {
				stream.WriteRaw(text)
			}
		case cirjson.ValueTrue:
			stream.WriteTrue()
		case cirjson.ValueFalse:
			stream.WriteFalse()
		case cirjson.ValueNull:
			stream.WriteNil()
		}
		if len(first) == 0 {
			roots++
		}
		if stream.Error != nil {
			return errors.Wrap(stream.Error, "write output")
		}
	}
}
