package cirjson

// ParserDelegate forwards every call to the wrapped Parser. Embed it and
// override the methods to intercept.
type ParserDelegate struct {
	Parser
}

func NewParserDelegate(p Parser) *ParserDelegate {
	return &ParserDelegate{Parser: p}
}

func (d *ParserDelegate) Delegate() Parser {
	return d.Parser
}

// GeneratorDelegate forwards every call to the wrapped Generator. Copy
// methods either go straight to the wrapped generator or, when
// delegateCopyMethods is false, are replayed through the delegate's own
// write methods.
type GeneratorDelegate struct {
	Generator

	delegateCopyMethods bool
}

func NewGeneratorDelegate(g Generator, delegateCopyMethods bool) *GeneratorDelegate {
	return &GeneratorDelegate{Generator: g, delegateCopyMethods: delegateCopyMethods}
}

func (d *GeneratorDelegate) Delegate() Generator {
	return d.Generator
}

func (d *GeneratorDelegate) CopyCurrentEvent(p Parser) error {
	if d.delegateCopyMethods {
		return d.Generator.CopyCurrentEvent(p)
	}
	return copyCurrentEvent(d, p)
}

func (d *GeneratorDelegate) CopyCurrentStructure(p Parser) error {
	if d.delegateCopyMethods {
		return d.Generator.CopyCurrentStructure(p)
	}
	return copyCurrentStructure(d, p)
}
