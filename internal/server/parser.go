package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/oicur0t/ratelog/pkg/lineparser"
	"github.com/oicur0t/ratelog/pkg/models"
)

var (
	errEmptyRequest = errors.New("command line is empty")
	errBodyTooLarge = errors.New("request body too large")
)

// CommandParser turns an HTTP request body into command tokens
type CommandParser struct {
	maxBytes int64
}

// NewCommandParser creates a parser that accepts at most maxBytes of body
func NewCommandParser(maxBytes int64) *CommandParser {
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}
	return &CommandParser{maxBytes: maxBytes}
}

// Parse reads the body as a JSON CommandRequest, or as a raw line when the
// content type is text/plain. A body over the limit is rejected whole.
func (p *CommandParser) Parse(w http.ResponseWriter, r *http.Request) ([]string, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, p.maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: limit is %d bytes", errBodyTooLarge, tooLarge.Limit)
		}
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "text/plain" {
		return nonEmpty(lineparser.Tokenize(string(body)))
	}

	var req models.CommandRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	// Pre-split tokens are taken as sent; arguments may contain spaces.
	if len(req.Tokens) > 0 {
		if req.Tokens[0] == "" {
			return nil, errEmptyRequest
		}
		return req.Tokens, nil
	}

	return nonEmpty(lineparser.Tokenize(req.Line))
}

func nonEmpty(tokens []string) ([]string, error) {
	if len(tokens) == 0 {
		return nil, errEmptyRequest
	}
	return tokens, nil
}
