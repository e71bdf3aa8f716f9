package cirjson

import (
	"bytes"
	"testing"

	"github.com/valyala/fastjson"
)

func BenchmarkParse(b *testing.B) {
	doc := []byte(bigDocument())
	f := NewFactory()

	b.Run("cirjson", func(b *testing.B) {
		b.SetBytes(int64(len(doc)))
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			p, err := f.CreateParser(doc)
			if err != nil {
				b.Fatal(err)
			}
			for {
				tok, err := p.NextToken()
				if err != nil {
					b.Fatal(err)
				}
				if tok == TokenNone {
					break
				}
			}
			p.Close()
		}
	})

	b.Run("fastjson", func(b *testing.B) {
		b.SetBytes(int64(len(doc)))
		b.ReportAllocs()
		parser := fastjson.Parser{}
		for i := 0; i < b.N; i++ {
			if _, err := parser.ParseBytes(doc); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func BenchmarkNonBlocking(b *testing.B) {
	doc := []byte(bigDocument())
	f := NewFactory()
	b.SetBytes(int64(len(doc)))
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		p := f.CreateNonBlockingParser()
		pos := 0
		for {
			tok, err := p.NextToken()
			if err != nil {
				b.Fatal(err)
			}
			if tok == TokenNone {
				break
			}
			if tok != TokenNotAvailable {
				continue
			}
			if pos == len(doc) {
				p.EndOfInput()
				continue
			}
			end := min(pos+512, len(doc))
			if err := p.FeedInput(doc[pos:end]); err != nil {
				b.Fatal(err)
			}
			pos = end
		}
		p.Close()
	}
}

func BenchmarkCopy(b *testing.B) {
	doc := bigDocument()
	f := NewFactory()
	out := bytes.Buffer{}
	b.SetBytes(int64(len(doc)))
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		out.Reset()
		p, err := f.CreateParserFromString(doc)
		if err != nil {
			b.Fatal(err)
		}
		g := f.CreateGenerator(&out)
		if _, err := p.NextToken(); err != nil {
			b.Fatal(err)
		}
		if err := g.CopyCurrentStructure(p); err != nil {
			b.Fatal(err)
		}
		g.Close()
		p.Close()
	}
}

func BenchmarkTree(b *testing.B) {
	doc := []byte(bigDocument())
	b.SetBytes(int64(len(doc)))
	b.ReportAllocs()

	var out []byte
	for i := 0; i < b.N; i++ {
		root, err := DecodeTree(doc)
		if err != nil {
			b.Fatal(err)
		}
		if root.Dig("items", "250", "name").AsString() == "" {
			b.Fatal("dig failed")
		}
		if out, err = root.Encode(out); err != nil {
			b.Fatal(err)
		}
	}
}
