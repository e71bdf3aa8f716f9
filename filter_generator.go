package cirjson

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// FilteringGeneratorDelegate writes only the parts of the content its
// TokenFilter keeps. Structures that reach the output get new identifiers
// from the wrapped generator, so the output is valid CirJSON whatever was
// dropped.
type FilteringGeneratorDelegate struct {
	GeneratorDelegate

	rootFilter           TokenFilter
	inclusion            Inclusion
	allowMultipleMatches bool

	ctx        *TokenFilterContext
	itemFilter TokenFilter
	matchCount int
}

func NewFilteringGeneratorDelegate(g Generator, f TokenFilter, inclusion Inclusion, allowMultipleMatches bool) *FilteringGeneratorDelegate {
	return &FilteringGeneratorDelegate{
		GeneratorDelegate:    GeneratorDelegate{Generator: g},
		rootFilter:           f,
		inclusion:            inclusion,
		allowMultipleMatches: allowMultipleMatches,
		ctx:                  newRootFilterContext(f),
		itemFilter:           f,
	}
}

func (d *FilteringGeneratorDelegate) Filter() TokenFilter {
	return d.rootFilter
}

func (d *FilteringGeneratorDelegate) FilterContext() *TokenFilterContext {
	return d.ctx
}

// MatchCount is the number of values the filter included.
func (d *FilteringGeneratorDelegate) MatchCount() int {
	return d.matchCount
}

// Structures

func (d *FilteringGeneratorDelegate) WriteStartObject() error {
	return d.writeStart(ContextObject)
}

func (d *FilteringGeneratorDelegate) WriteStartArray() error {
	return d.writeStart(ContextArray)
}

func (d *FilteringGeneratorDelegate) writeStart(typ ContextType) error {
	if d.itemFilter == nil {
		d.ctx = d.ctx.createChild(typ, nil, nil, false)
		return nil
	}
	if d.itemFilter == IncludeAll {
		d.ctx = d.ctx.createChild(typ, IncludeAll, nil, true)
		return d.startStructure(typ)
	}

	f := d.ctx.checkValue(d.itemFilter)
	if f != nil && f != IncludeAll {
		if typ == ContextObject {
			f = resolve(f.FilterStartObject(), f)
		} else {
			f = resolve(f.FilterStartArray(), f)
		}
	}
	d.itemFilter = f

	switch {
	case f == nil:
		d.ctx = d.ctx.createChild(typ, nil, nil, false)
	case f == IncludeAll:
		if err := d.checkParentPath(true); err != nil {
			return err
		}
		d.ctx = d.ctx.createChild(typ, f, nil, true)
		return d.startStructure(typ)
	case d.inclusion == IncludeNonNull:
		if err := d.checkParentPath(false); err != nil {
			return err
		}
		d.ctx = d.ctx.createChild(typ, f, nil, true)
		return d.startStructure(typ)
	default:
		d.ctx = d.ctx.createChild(typ, f, nil, false)
	}
	return nil
}

func (d *FilteringGeneratorDelegate) startStructure(typ ContextType) error {
	if typ == ContextObject {
		return d.Generator.WriteStartObject()
	}
	return d.Generator.WriteStartArray()
}

func (d *FilteringGeneratorDelegate) WriteEndObject() error {
	ctx, err := d.ctx.closeObject(d.Generator)
	return d.afterClose(ctx, err)
}

func (d *FilteringGeneratorDelegate) WriteEndArray() error {
	ctx, err := d.ctx.closeArray(d.Generator)
	return d.afterClose(ctx, err)
}

func (d *FilteringGeneratorDelegate) afterClose(ctx *TokenFilterContext, err error) error {
	if ctx == nil {
		return writeErrorf("Unbalanced end of structure in filtered output")
	}
	d.ctx = ctx
	d.itemFilter = ctx.filter
	return err
}

func (d *FilteringGeneratorDelegate) WriteName(name string) error {
	state := d.ctx.setPropertyName(name)
	if state == nil {
		d.itemFilter = nil
		return nil
	}
	if state == IncludeAll {
		d.itemFilter = state
		d.ctx.needToHandleName = false
		return d.Generator.WriteName(name)
	}

	state = resolve(state.IncludeProperty(name), state)
	d.itemFilter = state
	if state == IncludeAll {
		return d.checkPropertyParentPath()
	}
	return nil
}

// Identifiers are renumbered by the wrapped generator.

func (d *FilteringGeneratorDelegate) WriteObjectID(ref any) error {
	return d.writeID(ContextObject, "", ref)
}

func (d *FilteringGeneratorDelegate) WriteObjectIDString(id string) error {
	return d.writeID(ContextObject, id, nil)
}

func (d *FilteringGeneratorDelegate) WriteArrayID(ref any) error {
	return d.writeID(ContextArray, "", ref)
}

func (d *FilteringGeneratorDelegate) WriteArrayIDString(id string) error {
	return d.writeID(ContextArray, id, nil)
}

func (d *FilteringGeneratorDelegate) writeID(typ ContextType, id string, ref any) error {
	ctx := d.ctx
	if ctx.typ != typ {
		return writeErrorf("Can not write an %s identifier, current context is %s", typ.typeDesc(), ctx.typ.typeDesc())
	}
	if ctx.hasID {
		return writeErrorWrap(ErrDuplicateID, "%s identifier already written", typ.typeDesc())
	}
	ctx.setID(id, ref)
	if !ctx.startHandled || ctx.idWritten {
		return nil
	}
	ctx.idWritten = true
	if typ == ContextObject {
		return d.Generator.WriteObjectID(ref)
	}
	return d.Generator.WriteArrayID(ref)
}

// Scalars

// includeScalar decides on the next scalar and writes the path to it.
func (d *FilteringGeneratorDelegate) includeScalar() (bool, error) {
	if d.itemFilter == nil {
		return false, nil
	}
	if d.itemFilter == IncludeAll {
		return true, nil
	}
	state := d.ctx.checkValue(d.itemFilter)
	if state == nil {
		return false, nil
	}
	if state != IncludeAll && !state.IncludeScalar() {
		return false, nil
	}
	if err := d.checkParentPath(true); err != nil {
		return false, err
	}
	if !d.allowMultipleMatches {
		d.itemFilter = nil
	}
	return true, nil
}

func (d *FilteringGeneratorDelegate) WriteString(s string) error {
	if ok, err := d.includeScalar(); !ok || err != nil {
		return err
	}
	return d.Generator.WriteString(s)
}

func (d *FilteringGeneratorDelegate) WriteStringBytes(b []byte) error {
	if ok, err := d.includeScalar(); !ok || err != nil {
		return err
	}
	return d.Generator.WriteStringBytes(b)
}

func (d *FilteringGeneratorDelegate) WriteInt(v int32) error {
	if ok, err := d.includeScalar(); !ok || err != nil {
		return err
	}
	return d.Generator.WriteInt(v)
}

func (d *FilteringGeneratorDelegate) WriteLong(v int64) error {
	if ok, err := d.includeScalar(); !ok || err != nil {
		return err
	}
	return d.Generator.WriteLong(v)
}

func (d *FilteringGeneratorDelegate) WriteBigInteger(v *big.Int) error {
	if ok, err := d.includeScalar(); !ok || err != nil {
		return err
	}
	return d.Generator.WriteBigInteger(v)
}

func (d *FilteringGeneratorDelegate) WriteFloat(v float32) error {
	if ok, err := d.includeScalar(); !ok || err != nil {
		return err
	}
	return d.Generator.WriteFloat(v)
}

func (d *FilteringGeneratorDelegate) WriteDouble(v float64) error {
	if ok, err := d.includeScalar(); !ok || err != nil {
		return err
	}
	return d.Generator.WriteDouble(v)
}

func (d *FilteringGeneratorDelegate) WriteDecimal(v decimal.Decimal) error {
	if ok, err := d.includeScalar(); !ok || err != nil {
		return err
	}
	return d.Generator.WriteDecimal(v)
}

func (d *FilteringGeneratorDelegate) WriteNumberString(s string) error {
	if ok, err := d.includeScalar(); !ok || err != nil {
		return err
	}
	return d.Generator.WriteNumberString(s)
}

func (d *FilteringGeneratorDelegate) WriteBool(v bool) error {
	if ok, err := d.includeScalar(); !ok || err != nil {
		return err
	}
	return d.Generator.WriteBool(v)
}

func (d *FilteringGeneratorDelegate) WriteNull() error {
	if ok, err := d.includeScalar(); !ok || err != nil {
		return err
	}
	return d.Generator.WriteNull()
}

func (d *FilteringGeneratorDelegate) WriteRawValue(s string) error {
	if ok, err := d.includeScalar(); !ok || err != nil {
		return err
	}
	return d.Generator.WriteRawValue(s)
}

func (d *FilteringGeneratorDelegate) WriteBinary(v Base64Variant, b []byte) error {
	if ok, err := d.includeScalar(); !ok || err != nil {
		return err
	}
	return d.Generator.WriteBinary(v, b)
}

func (d *FilteringGeneratorDelegate) WriteEmbeddedObject(v any) error {
	if ok, err := d.includeScalar(); !ok || err != nil {
		return err
	}
	return d.Generator.WriteEmbeddedObject(v)
}

// WriteRaw passes s through only inside included content.
func (d *FilteringGeneratorDelegate) WriteRaw(s string) error {
	if d.itemFilter != IncludeAll && !d.ctx.startHandled {
		return nil
	}
	return d.Generator.WriteRaw(s)
}

// WriteValue serializes v through the configured ObjectWriteContext with
// this delegate as the generator, so v is filtered too.
func (d *FilteringGeneratorDelegate) WriteValue(v any) error {
	if d.itemFilter == nil {
		return nil
	}
	if v == nil {
		return d.WriteNull()
	}
	codec := writeCodecOf(d.Generator)
	if codec == nil {
		return writeErrorf("No ObjectWriteContext configured, can not write values")
	}
	return codec.WriteValue(d, v)
}

func (d *FilteringGeneratorDelegate) CopyCurrentEvent(p Parser) error {
	return copyCurrentEvent(d, p)
}

func (d *FilteringGeneratorDelegate) CopyCurrentStructure(p Parser) error {
	return copyCurrentStructure(d, p)
}

// Paths

func (d *FilteringGeneratorDelegate) checkParentPath(isMatch bool) error {
	if isMatch {
		d.matchCount++
	}
	var err error
	switch d.inclusion {
	case IncludeAllAndPath:
		err = d.ctx.writePath(d.Generator)
	case IncludeNonNull:
		err = d.ctx.ensureNameWritten(d.Generator)
	}
	if isMatch && !d.allowMultipleMatches {
		d.ctx.skipParentChecks()
	}
	return err
}

func (d *FilteringGeneratorDelegate) checkPropertyParentPath() error {
	d.matchCount++
	var err error
	switch d.inclusion {
	case IncludeAllAndPath:
		err = d.ctx.writePath(d.Generator)
	case IncludeNonNull:
		err = d.ctx.ensureNameWritten(d.Generator)
	}
	if !d.allowMultipleMatches {
		d.ctx.skipParentChecks()
	}
	return err
}

// writeCodecOf digs the ObjectWriteContext out of a generator chain.
func writeCodecOf(g Generator) ObjectWriteContext {
	for {
		switch t := g.(type) {
		case *generator:
			return t.codec
		case interface{ Delegate() Generator }:
			g = t.Delegate()
		default:
			return nil
		}
	}
}
