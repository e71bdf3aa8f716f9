package cirjson

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/valyala/bytebufferpool"
	"golang.org/x/text/transform"
)

// Factory creates parsers and generators sharing one configuration, a
// recycler pool and a property name symbol table. It is safe for concurrent
// use, the parsers and generators it creates are not.
type Factory struct {
	readFeatures     ReadFeature
	writeFeatures    WriteFeature
	readConstraints  StreamReadConstraints
	writeConstraints StreamWriteConstraints

	pool    RecyclerPool
	symbols *SymbolTable
	idGen   func() IDGenerator

	readCodec  ObjectReadContext
	writeCodec ObjectWriteContext
}

// Option configures a Factory.
type Option func(f *Factory)

// WithReadFeatures replaces the read feature set.
func WithReadFeatures(features ReadFeature) Option {
	return func(f *Factory) {
		f.readFeatures = features
	}
}

func WithWriteFeatures(features WriteFeature) Option {
	return func(f *Factory) {
		f.writeFeatures = features
	}
}

// WithReadConstraints sets parser limits, zero fields keep their defaults.
func WithReadConstraints(c StreamReadConstraints) Option {
	return func(f *Factory) {
		f.readConstraints = c.withDefaults()
	}
}

func WithWriteConstraints(c StreamWriteConstraints) Option {
	return func(f *Factory) {
		f.writeConstraints = c.withDefaults()
	}
}

func WithRecyclerPool(p RecyclerPool) Option {
	return func(f *Factory) {
		if p != nil {
			f.pool = p
		}
	}
}

// WithIDGenerator sets how generators get their IDGenerator; newFn is called
// once per generator.
func WithIDGenerator(newFn func() IDGenerator) Option {
	return func(f *Factory) {
		if newFn != nil {
			f.idGen = newFn
		}
	}
}

func WithReadContext(c ObjectReadContext) Option {
	return func(f *Factory) {
		f.readCodec = c
	}
}

func WithWriteContext(c ObjectWriteContext) Option {
	return func(f *Factory) {
		f.writeCodec = c
	}
}

func NewFactory(opts ...Option) *Factory {
	f := &Factory{
		readFeatures:     DefaultReadFeatures,
		writeFeatures:    DefaultWriteFeatures,
		readConstraints:  DefaultReadConstraints(),
		writeConstraints: DefaultWriteConstraints(),
		pool:             DefaultRecyclerPool(),
		symbols:          NewSymbolTable(),
		idGen:            func() IDGenerator { return NewSequentialIDs() },
		readCodec:        TreeCodec{},
		writeCodec:       TreeCodec{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Factory) ReadFeatures() ReadFeature {
	return f.readFeatures
}

func (f *Factory) WriteFeatures() WriteFeature {
	return f.writeFeatures
}

func (f *Factory) ReadConstraints() StreamReadConstraints {
	return f.readConstraints
}

func (f *Factory) WriteConstraints() StreamWriteConstraints {
	return f.writeConstraints
}

func (f *Factory) RecyclerPool() RecyclerPool {
	return f.pool
}

func (f *Factory) newIDGenerator() IDGenerator {
	return f.idGen()
}

func (f *Factory) newParser(source string) *parser {
	r := f.pool.Acquire()
	p := &parser{
		features:    f.readFeatures,
		constraints: f.readConstraints,
		codec:       f.readCodec,
		recycler:    r,
		source:      source,
		line:        1,
	}
	p.tb = NewTextBuffer(r, f.readConstraints)

	var dups *DupDetector
	if p.isEnabled(StrictDuplicateDetection) {
		dups = NewDupDetector(p)
	}
	p.ctx = NewRootReadContext(dups)
	if p.isEnabled(CanonicalizePropertyNames) {
		p.symbols = f.symbols.MakeChild(p.isEnabled(InternPropertyNames))
	}
	return p
}

// CreateParser parses a complete document held in memory. The encoding is
// detected; UTF-16 and UTF-32 content is transcoded up front.
func (f *Factory) CreateParser(data []byte) (Parser, error) {
	enc, bom, err := DetectEncoding(data)
	if err != nil {
		return nil, err
	}
	data = data[bom:]
	if te := enc.textEncoding(); te != nil {
		data, _, err = transform.Bytes(te.NewDecoder(), data)
		if err != nil {
			return nil, &ReadError{Msg: "Invalid " + enc.Name() + " content: " + err.Error(), Location: UnknownLocation, cause: err}
		}
	}
	return f.parserFromBytes(data, "byte[]")
}

// CreateParserFromString parses s without copying it.
func (f *Factory) CreateParserFromString(s string) (Parser, error) {
	return f.parserFromBytes(toByte(s), "String")
}

func (f *Factory) CreateParserFromRunes(r []rune) (Parser, error) {
	return f.parserFromBytes([]byte(string(r)), "char[]")
}

func (f *Factory) parserFromBytes(data []byte, kind string) (Parser, error) {
	if err := f.readConstraints.ValidateDocumentLength(int64(len(data))); err != nil {
		return nil, err
	}
	p := f.newParser(describeContent(kind, data))
	p.buf = data
	p.end = len(data)
	p.content = data
	return p, nil
}

// CreateParserFromReader reads r through a recycled buffer. The encoding is
// detected from the first bytes; with AutoCloseSource an io.Closer r is
// closed together with the parser.
func (f *Factory) CreateParserFromReader(r io.Reader) (Parser, error) {
	utf8r, _, err := NewUTF8Reader(r)
	if err != nil {
		return nil, err
	}
	p := f.newParser("(" + readerKind(r) + ")")
	p.src = utf8r
	if c, ok := r.(io.Closer); ok {
		p.closer = c
	}
	p.buf = p.recycler.Allocate(ByteReadIOBuffer, 0)
	p.ownedBuf = true
	return p, nil
}

// CreateParserFromByteReader reads one byte at a time, so nothing past the
// end of the document is consumed from r. Input must be UTF-8; a byte order
// mark is skipped.
func (f *Factory) CreateParserFromByteReader(r io.ByteReader) (Parser, error) {
	p := f.newParser("(DataInput)")
	p.buf = p.recycler.Allocate(ByteReadIOBuffer, 0)
	p.ownedBuf = true

	first, err := SkipUTF8BOM(r)
	switch {
	case err == io.EOF:
		p.eof = true
		return p, nil
	case err != nil:
		p.Close()
		return nil, wrapIO(err, "read input")
	}
	p.buf[0] = first
	p.end = 1
	p.src = byteReaderAdapter{r: r}
	if c, ok := r.(io.Closer); ok {
		p.closer = c
	}
	return p, nil
}

// CreateNonBlockingParser returns a parser fed through FeedInput. Input must
// be UTF-8.
func (f *Factory) CreateNonBlockingParser() NonBlockingParser {
	p := f.newParser("(byte[]) non-blocking input")
	p.buf = p.recycler.Allocate(ByteReadIOBuffer, 0)[:0]
	p.ownedBuf = true
	p.nonBlocking = true
	p.needInput = true
	return p
}

func readerKind(r io.Reader) string {
	switch r.(type) {
	case *os.File:
		return "File"
	case *bytes.Reader, *bytes.Buffer:
		return "ByteArrayInputStream"
	}
	return "InputStream"
}

// CreateGenerator writes UTF-8 to w.
func (f *Factory) CreateGenerator(w io.Writer) Generator {
	return newGenerator(w, UTF8, f)
}

// CreateGeneratorWithEncoding writes to w in enc. The generator must be closed
// to flush the encoder.
func (f *Factory) CreateGeneratorWithEncoding(w io.Writer, enc Encoding) Generator {
	return newGenerator(w, enc, f)
}

// CreateGeneratorToByteWriter writes byte by byte to w.
func (f *Factory) CreateGeneratorToByteWriter(w io.ByteWriter) Generator {
	return newGenerator(byteWriterAdapter{w: w}, UTF8, f)
}

// CreateGeneratorToFile creates or truncates the file at path. The file is
// closed together with the generator.
func (f *Factory) CreateGeneratorToFile(path string, enc Encoding) (Generator, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", path)
	}
	g := newGenerator(file, enc, f)
	g.ownsTarget = true
	return g, nil
}

type byteWriterAdapter struct {
	w io.ByteWriter
}

func (a byteWriterAdapter) Write(b []byte) (int, error) {
	for i, c := range b {
		if err := a.w.WriteByte(c); err != nil {
			return i, err
		}
	}
	return len(b), nil
}

func (a byteWriterAdapter) Close() error {
	if c, ok := a.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// WriteValueAsBytes serializes v through the configured ObjectWriteContext.
func (f *Factory) WriteValueAsBytes(v any) ([]byte, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := f.writeValue(buf, v); err != nil {
		return nil, err
	}
	return append([]byte(nil), buf.B...), nil
}

func (f *Factory) WriteValueAsString(v any) (string, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := f.writeValue(buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (f *Factory) writeValue(w io.Writer, v any) error {
	g := f.CreateGenerator(w)
	if err := g.WriteValue(v); err != nil {
		g.Close()
		return err
	}
	return g.Close()
}

// ReadValue parses data and decodes the first value into v through the
// configured ObjectReadContext.
func (f *Factory) ReadValue(data []byte, v any) error {
	p, err := f.CreateParser(data)
	if err != nil {
		return err
	}
	defer p.Close()

	t, err := p.NextToken()
	if err != nil {
		return err
	}
	if t == TokenNone {
		return &ReadError{Msg: "No content to map due to end-of-input", Location: p.CurrentLocation()}
	}
	return p.ReadValue(v)
}
