package lineparser

import "strings"

// isSpace reports the ASCII whitespace set: space, \t, \n, \v, \f and \r.
// Unicode spaces such as U+00A0 stay inside tokens.
func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// Tokenize splits a raw line into whitespace-delimited tokens.
// An empty or blank line yields an empty slice.
func Tokenize(raw string) []string {
	fields := strings.FieldsFunc(raw, isSpace)
	if fields == nil {
		return []string{}
	}
	return fields
}

// Parser holds the tokens of a single parsed command line
type Parser struct {
	tokens []string
}

// NewParser creates a parser already holding the tokens of raw
func NewParser(raw string) *Parser {
	p := &Parser{}
	p.Parse(raw)
	return p
}

// Parse replaces the held tokens with those of raw
func (p *Parser) Parse(raw string) {
	p.tokens = Tokenize(raw)
}

// Tokens returns a copy of the held tokens
func (p *Parser) Tokens() []string {
	out := make([]string, len(p.tokens))
	copy(out, p.tokens)
	return out
}

// Command returns the first token, or "" for an empty line
func (p *Parser) Command() string {
	if len(p.tokens) == 0 {
		return ""
	}
	return p.tokens[0]
}

// Args returns every token after the command name
func (p *Parser) Args() []string {
	if len(p.tokens) < 2 {
		return []string{}
	}
	out := make([]string, len(p.tokens)-1)
	copy(out, p.tokens[1:])
	return out
}

// Len returns the number of held tokens
func (p *Parser) Len() int {
	return len(p.tokens)
}
