package cirjson

import (
	"github.com/pkg/errors"
)

// FilteringParserDelegate exposes only the tokens its TokenFilter keeps.
// Identifiers of the structures on an included path are replayed as they
// were read.
type FilteringParserDelegate struct {
	ParserDelegate

	rootFilter           TokenFilter
	inclusion            Inclusion
	allowMultipleMatches bool

	ctx        *TokenFilterContext
	itemFilter TokenFilter
	matchCount int

	// replayed path tokens, exposed before the token that matched
	queue    []replayToken
	replayed *replayToken
	cur      Token
	// the parser is inside an included object right after its IDPropertyName
	idValueNext bool
}

type replayToken struct {
	tok     Token
	name    string
	text    string
	inArray bool
	// the token is the current token of the wrapped parser
	live bool
}

func NewFilteringParserDelegate(p Parser, f TokenFilter, inclusion Inclusion, allowMultipleMatches bool) *FilteringParserDelegate {
	return &FilteringParserDelegate{
		ParserDelegate:       ParserDelegate{Parser: p},
		rootFilter:           f,
		inclusion:            inclusion,
		allowMultipleMatches: allowMultipleMatches,
		ctx:                  newRootFilterContext(f),
		itemFilter:           f,
	}
}

func (d *FilteringParserDelegate) Filter() TokenFilter {
	return d.rootFilter
}

func (d *FilteringParserDelegate) FilterContext() *TokenFilterContext {
	return d.ctx
}

func (d *FilteringParserDelegate) MatchCount() int {
	return d.matchCount
}

func (d *FilteringParserDelegate) CurrentToken() Token {
	return d.cur
}

func (d *FilteringParserDelegate) CurrentName() string {
	if d.replayed != nil {
		return d.replayed.name
	}
	return d.Parser.CurrentName()
}

func (d *FilteringParserDelegate) Text() (string, error) {
	if d.replayed != nil {
		return d.replayed.text, nil
	}
	return d.Parser.Text()
}

func (d *FilteringParserDelegate) TextBytes() ([]byte, error) {
	if d.replayed != nil {
		return []byte(d.replayed.text), nil
	}
	return d.Parser.TextBytes()
}

func (d *FilteringParserDelegate) arrayIDToken() bool {
	if d.replayed != nil {
		return d.replayed.inArray
	}
	return arrayIDToken(d.Parser)
}

func (d *FilteringParserDelegate) NextValue() (Token, error) {
	t, err := d.NextToken()
	if err != nil {
		return t, err
	}
	if t == PropertyName || t == IDPropertyName {
		return d.NextToken()
	}
	return t, nil
}

func (d *FilteringParserDelegate) NextNameMatch(m *NameMatcher) (int, error) {
	t, err := d.NextToken()
	if err != nil {
		return MatchOddToken, err
	}
	switch t {
	case PropertyName:
		return m.MatchName(d.CurrentName()), nil
	case IDPropertyName:
		return m.IDIndex(), nil
	case EndObject:
		return MatchEndObject, nil
	}
	return MatchOddToken, nil
}

// SkipChildren skips the rest of the current structure as this delegate
// exposes it.
func (d *FilteringParserDelegate) SkipChildren() error {
	if d.cur != StartObject && d.cur != StartArray {
		return nil
	}
	open := 1
	for {
		t, err := d.NextToken()
		if err != nil {
			return err
		}
		switch t {
		case TokenNone:
			return nil
		case StartObject, StartArray:
			open++
		case EndObject, EndArray:
			open--
			if open == 0 {
				return nil
			}
		}
	}
}

// ReadValue decodes the filtered value through the ObjectReadContext of the
// wrapped parser.
func (d *FilteringParserDelegate) ReadValue(v any) error {
	codec := readCodecOf(d.Parser)
	if codec == nil {
		return errors.New("no ObjectReadContext configured, can not read values")
	}
	return codec.ReadValue(d, v)
}

func readCodecOf(p Parser) ObjectReadContext {
	for {
		switch t := p.(type) {
		case *parser:
			return t.codec
		case interface{ Delegate() Parser }:
			p = t.Delegate()
		default:
			return nil
		}
	}
}

func (d *FilteringParserDelegate) expose(t Token) (Token, error) {
	d.replayed = nil
	d.cur = t
	return t, nil
}

func (d *FilteringParserDelegate) NextToken() (Token, error) {
	if len(d.queue) > 0 {
		next := d.queue[0]
		d.queue = d.queue[1:]
		if next.live {
			return d.expose(next.tok)
		}
		d.replayed = &next
		d.cur = next.tok
		return next.tok, nil
	}

	for {
		t, err := d.Parser.NextToken()
		if err != nil {
			return TokenNone, err
		}

		switch t {
		case TokenNone, TokenNotAvailable:
			return d.expose(t)

		case StartObject, StartArray:
			typ := ContextObject
			if t == StartArray {
				typ = ContextArray
			}
			include, err := d.startStructure(typ)
			if err != nil {
				return TokenNone, err
			}
			if include {
				return d.flushQueue(t)
			}

		case EndObject, EndArray:
			ctx := d.ctx
			returnEnd := ctx.startHandled
			if !returnEnd {
				d.replayEmpty(ctx)
			}
			if parent := ctx.parent; parent != nil {
				d.ctx = parent
				d.itemFilter = parent.filter
			}
			if ctx.filter != nil && ctx.filter != IncludeAll {
				if ctx.typ == ContextObject {
					ctx.filter.FilterFinishObject()
				} else {
					ctx.filter.FilterFinishArray()
				}
			}
			if returnEnd {
				return d.flushQueue(t)
			}
			if len(d.queue) > 0 {
				return d.NextToken()
			}

		case IDPropertyName:
			ctx := d.ctx
			if ctx.typ == ContextArray {
				id, err := d.Parser.Text()
				if err != nil {
					return TokenNone, err
				}
				ctx.setID(id, nil)
				if ctx.startHandled {
					return d.expose(t)
				}
				continue
			}
			if ctx.startHandled {
				d.idValueNext = true
				return d.expose(t)
			}
			if _, err := d.Parser.NextToken(); err != nil {
				return TokenNone, err
			}
			id, err := d.Parser.Text()
			if err != nil {
				return TokenNone, err
			}
			ctx.setID(id, nil)

		case PropertyName:
			include, err := d.property(d.Parser.CurrentName())
			if err != nil {
				return TokenNone, err
			}
			if include {
				return d.flushQueue(t)
			}

		default:
			if d.idValueNext {
				d.idValueNext = false
				return d.expose(t)
			}
			include, err := d.scalar()
			if err != nil {
				return TokenNone, err
			}
			if include {
				return d.flushQueue(t)
			}
		}
	}
}

// flushQueue exposes the queued path followed by the live token t.
func (d *FilteringParserDelegate) flushQueue(t Token) (Token, error) {
	if len(d.queue) == 0 {
		return d.expose(t)
	}
	d.queue = append(d.queue, replayToken{tok: t, live: true})
	return d.NextToken()
}

func (d *FilteringParserDelegate) skipValue() error {
	t, err := d.Parser.NextToken()
	if err != nil {
		return err
	}
	if t.IsStructStart() {
		return d.Parser.SkipChildren()
	}
	return nil
}

func (d *FilteringParserDelegate) verifyAllowedMatches() bool {
	if d.matchCount == 0 || d.allowMultipleMatches {
		d.matchCount++
		return true
	}
	return false
}

func (d *FilteringParserDelegate) startStructure(typ ContextType) (bool, error) {
	f := d.itemFilter
	if f == IncludeAll {
		d.ctx = d.ctx.createChild(typ, f, nil, true)
		return true, nil
	}
	if f == nil {
		d.itemFilter = d.ctx.filter
		return false, d.Parser.SkipChildren()
	}

	f = d.ctx.checkValue(f)
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
		// siblings after the skipped structure are decided by the enclosing filter
		d.itemFilter = d.ctx.filter
		return false, d.Parser.SkipChildren()
	case f == IncludeAll:
		if !d.verifyAllowedMatches() {
			d.itemFilter = d.ctx.filter
			return false, d.Parser.SkipChildren()
		}
		d.queuePath()
		d.ctx = d.ctx.createChild(typ, f, nil, true)
		return true, nil
	case d.inclusion == IncludeNonNull:
		d.queuePath()
		d.ctx = d.ctx.createChild(typ, f, nil, true)
		return true, nil
	}
	d.ctx = d.ctx.createChild(typ, f, nil, false)
	return false, nil
}

func (d *FilteringParserDelegate) property(name string) (bool, error) {
	state := d.ctx.setPropertyName(name)
	if state == IncludeAll {
		d.itemFilter = state
		d.ctx.needToHandleName = false
		return true, nil
	}
	if state == nil {
		d.itemFilter = nil
		return false, d.skipValue()
	}

	state = resolve(state.IncludeProperty(name), state)
	d.itemFilter = state
	if state == nil {
		return false, d.skipValue()
	}
	if state != IncludeAll {
		return false, nil
	}
	if !d.verifyAllowedMatches() {
		d.itemFilter = nil
		return false, d.skipValue()
	}
	if d.inclusion == OnlyIncludeAll {
		d.ctx.needToHandleName = false
		return false, nil
	}
	d.queuePath()
	d.ctx.needToHandleName = false
	return true, nil
}

func (d *FilteringParserDelegate) scalar() (bool, error) {
	f := d.itemFilter
	if f == IncludeAll {
		return true, nil
	}
	if f == nil {
		return false, nil
	}
	f = d.ctx.checkValue(f)
	if f == nil || f != IncludeAll && !f.IncludeScalar() {
		return false, nil
	}
	if !d.verifyAllowedMatches() {
		return false, nil
	}
	d.queuePath()
	return true, nil
}

// queuePath queues the tokens of the path to the current position that were
// not exposed yet: structure starts with their identifiers and the pending
// property name. Nothing is queued in OnlyIncludeAll mode.
func (d *FilteringParserDelegate) queuePath() {
	if d.inclusion == OnlyIncludeAll {
		return
	}
	d.queue = d.ctx.appendPath(d.queue, d.Parser.CurrentToken() == PropertyName)
}

// appendPath adds the path tokens of c and its parents; the own name of c is
// left out when the name itself is the live token.
func (c *TokenFilterContext) appendPath(dst []replayToken, nameIsLive bool) []replayToken {
	if c.parent != nil {
		dst = c.parent.appendPath(dst, false)
	}
	if !c.startHandled {
		c.startHandled = true
		switch c.typ {
		case ContextObject:
			dst = append(dst,
				replayToken{tok: StartObject},
				replayToken{tok: IDPropertyName, name: IDName, text: IDName},
				replayToken{tok: ValueString, name: IDName, text: c.id})
		case ContextArray:
			dst = append(dst,
				replayToken{tok: StartArray},
				replayToken{tok: IDPropertyName, name: IDName, text: c.id, inArray: true})
		}
	}
	if c.typ == ContextObject && c.needToHandleName {
		c.needToHandleName = false
		if !nameIsLive {
			dst = append(dst, replayToken{tok: PropertyName, name: c.name, text: c.name})
		}
	}
	return dst
}

// replayEmpty queues an empty structure the filter wants to keep.
func (d *FilteringParserDelegate) replayEmpty(ctx *TokenFilterContext) {
	f := ctx.filter
	if f == nil || f == IncludeAll || d.inclusion == OnlyIncludeAll || !ctx.includeEmpty() {
		return
	}
	if ctx.parent != nil {
		d.queue = ctx.parent.appendPath(d.queue, false)
	}
	if ctx.typ == ContextObject {
		d.queue = append(d.queue,
			replayToken{tok: StartObject},
			replayToken{tok: IDPropertyName, name: IDName, text: IDName},
			replayToken{tok: ValueString, name: IDName, text: ctx.id},
			replayToken{tok: EndObject})
		return
	}
	d.queue = append(d.queue,
		replayToken{tok: StartArray},
		replayToken{tok: IDPropertyName, name: IDName, text: ctx.id, inArray: true},
		replayToken{tok: EndArray})
}
