package cirjson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type locatedToken struct {
	textToken
	offset int64
	line   int
	column int
}

func blockingTokens(t *testing.T, f *Factory, doc []byte) []locatedToken {
	p, err := f.CreateParser(doc)
	require.NoError(t, err)
	defer p.Close()

	result := make([]locatedToken, 0)
	for {
		tok, err := p.NextToken()
		require.NoError(t, err)
		if tok == TokenNone {
			return result
		}
		result = append(result, locate(t, p, tok))
	}
}

func locate(t *testing.T, p Parser, tok Token) locatedToken {
	text, err := p.Text()
	require.NoError(t, err)
	loc := p.TokenLocation()
	return locatedToken{
		textToken: textToken{tok: tok, text: text},
		offset:    loc.ByteOffset,
		line:      loc.Line,
		column:    loc.Column,
	}
}

// feedTokens parses doc handing it over in chunks of the given size.
func feedTokens(t *testing.T, f *Factory, doc []byte, chunk int) ([]locatedToken, error) {
	p := f.CreateNonBlockingParser()
	defer p.Close()

	result := make([]locatedToken, 0)
	pos := 0
	for {
		tok, err := p.NextToken()
		if err != nil {
			return result, err
		}
		switch tok {
		case TokenNone:
			return result, nil
		case TokenNotAvailable:
			require.True(t, p.NeedMoreInput(), "parser must ask for input")
			if pos >= len(doc) {
				p.EndOfInput()
				continue
			}
			end := min(pos+chunk, len(doc))
			require.NoError(t, p.FeedInput(doc[pos:end]))
			pos = end
		default:
			result = append(result, locate(t, p, tok))
		}
	}
}

func TestNonBlockingChunks(t *testing.T) {
	docs := []string{
		`{"__cirJsonId__":"0","a":["1",1,-2.5e-3,"s",true,false,null,{"__cirJsonId__":"2"}]}`,
		"{\"__cirJsonId__\":\"0\",\n  \"snow\":\"☃ \\u00e9 \\ud83d\\ude00 \\\" \\\\\",\n  \"n\":12345678901234567890}",
		"123 456.75 \"root\" [\"0\"] true",
		"[\"0\", /* c */ 1, // line\n 2.] # yaml\n",
	}
	f := NewFactory(WithReadFeatures(DefaultReadFeatures | AllowComments | AllowYAMLComments | AllowTrailingDecimalPoint))

	for _, doc := range docs {
		want := blockingTokens(t, f, []byte(doc))
		for chunk := 1; chunk <= len(doc); chunk++ {
			got, err := feedTokens(t, f, []byte(doc), chunk)
			require.NoError(t, err, "chunk %d of %q", chunk, doc)
			require.Equal(t, want, got, "chunk %d of %q", chunk, doc)
		}
	}
}

func TestNonBlockingBigDocument(t *testing.T) {
	doc := []byte(bigDocument())
	f := NewFactory()
	want := blockingTokens(t, f, doc)

	for _, chunk := range []int{1, 7, 100, 4096, len(doc)} {
		got, err := feedTokens(t, f, doc, chunk)
		require.NoError(t, err, "chunk %d", chunk)
		assert.Equal(t, want, got, "chunk %d", chunk)
	}
}

func TestNonBlockingErrors(t *testing.T) {
	tests := []struct {
		doc string
		msg string
	}{
		{doc: `["0",tru]`, msg: "Unrecognized token 'tru'"},
		{doc: `{}`, msg: "got END_OBJECT"},
		{doc: `["0",1`, msg: "Unexpected end-of-input"},
		{doc: `["0","abc`, msg: "was expecting closing quote"},
	}

	for _, test := range tests {
		for chunk := 1; chunk <= len(test.doc); chunk++ {
			_, err := feedTokens(t, NewFactory(), []byte(test.doc), chunk)
			require.Error(t, err, "chunk %d of %s", chunk, test.doc)
			assert.Contains(t, err.Error(), test.msg, "chunk %d of %s", chunk, test.doc)
		}
	}
}

func TestNonBlockingFeedMisuse(t *testing.T) {
	p := NewFactory().CreateNonBlockingParser()
	assert.True(t, p.NeedMoreInput(), "fresh parser needs input")

	require.NoError(t, p.FeedInput([]byte(`["0",1,2]`)))
	assert.False(t, p.NeedMoreInput())

	tok, err := p.NextToken()
	require.NoError(t, err)
	assert.Equal(t, StartArray, tok)

	err = p.FeedInput([]byte(`x`))
	assert.Contains(t, err.Error(), "undecoded bytes", "feeding before input is used up must fail")

	p.EndOfInput()
	assert.False(t, p.NeedMoreInput())
	err = p.FeedInput([]byte(`x`))
	assert.Error(t, err, "feeding after the end must fail")

	require.NoError(t, p.Close())
	err = p.FeedInput([]byte(`x`))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNonBlockingSkipChildren(t *testing.T) {
	p := NewFactory().CreateNonBlockingParser()
	defer p.Close()

	require.NoError(t, p.FeedInput([]byte(`["0",["1",`)))
	tok, err := p.NextToken()
	require.NoError(t, err)
	require.Equal(t, StartArray, tok)

	err = p.SkipChildren()
	assert.Contains(t, err.Error(), "need more input")
}
