package lineparser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty", input: "", expected: []string{}},
		{name: "blank", input: " \t \n ", expected: []string{}},
		{name: "single", input: "list", expected: []string{"list"}},
		{name: "padded runs", input: "  log   alpha  beta ", expected: []string{"log", "alpha", "beta"}},
		{name: "tabs and newlines", input: "log\talpha\nbeta", expected: []string{"log", "alpha", "beta"}},
		{name: "vertical tab and form feed", input: "log\valpha\fbeta\r", expected: []string{"log", "alpha", "beta"}},
		{name: "unicode spaces kept", input: "log a\u00a0b c\u0085d", expected: []string{"log", "a\u00a0b", "c\u0085d"}},
		{name: "no quoting", input: `log "a b"`, expected: []string{"log", `"a`, `b"`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.input)
			assert.NotNil(t, got)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParser(t *testing.T) {
	p := NewParser("  list   alpha ")
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, "list", p.Command())
	assert.Equal(t, []string{"alpha"}, p.Args())
	assert.Equal(t, []string{"list", "alpha"}, p.Tokens())

	p.Parse("")
	assert.Equal(t, 0, p.Len())
	assert.Equal(t, "", p.Command())
	assert.Empty(t, p.Args())
}

func TestParser_TokensIsCopy(t *testing.T) {
	p := NewParser("log hello")
	toks := p.Tokens()
	toks[0] = "list"
	assert.Equal(t, "log", p.Command())
}
