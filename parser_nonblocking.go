package cirjson

// The non-blocking parser shares the lexer with the blocking one. Instead of
// reading, loadMore reports errNeedMoreInput; NextToken then rolls back to the
// start of the unfinished token and returns TokenNotAvailable. All bytes from
// that start on are kept, so a token is always lexed from contiguous input no
// matter where the chunk boundaries fell.

// FeedInput appends a chunk of input. It may only be called while
// NeedMoreInput reports true.
func (p *parser) FeedInput(b []byte) error {
	if !p.nonBlocking {
		panicIllegalState("FeedInput called on a blocking parser")
	}
	if p.closed {
		return p.errorWrap(ErrClosed, "Parser closed, can not feed more input")
	}
	if p.endOfInput {
		return p.errorf("Already closed, can not feed more input")
	}
	if !p.needInput {
		return p.errorf("Still have %d undecoded bytes, should not call 'FeedInput'", p.end-p.ptr)
	}

	// the current token text may point into the region about to move
	if p.tb.inputStart >= 0 {
		p.tb.unshare(0)
	}

	if p.keep > 0 {
		shift := p.keep
		p.end = copy(p.buf, p.buf[shift:p.end])
		p.processed += int64(shift)
		p.ptr -= shift
		p.tokPtr -= shift
		p.keep = 0
	}
	p.buf = append(p.buf[:p.end], b...)
	p.end = len(p.buf)
	p.needInput = false

	if err := p.constraints.ValidateDocumentLength(p.processed + int64(p.end)); err != nil {
		return p.located(err)
	}
	return nil
}

// EndOfInput marks that no more input will be fed.
func (p *parser) EndOfInput() {
	p.endOfInput = true
	p.needInput = false
}

func (p *parser) NeedMoreInput() bool {
	return p.needInput && !p.endOfInput
}
