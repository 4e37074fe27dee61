package bibtex

import (
	"fmt"
	"os"
	"strings"
	"unicode"
)

// SyntaxError describes a malformed portion of the input. Entries whose
// citation key was readable are still returned, carrying the fields
// parsed before the error.
type SyntaxError struct {
	Key string // citation key if one was read, else ""
	Msg string
}

func (e SyntaxError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("entry %q: %s", e.Key, e.Msg)
	}
	return e.Msg
}

// ParseFile reads a .bib file and returns its entries in source order,
// plus a SyntaxError per malformed region. The error is only for I/O.
func ParseFile(path string) ([]Entry, []SyntaxError, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading bibtex file: %w", err)
	}
	entries, syntaxErrs := Parse(string(data))
	return entries, syntaxErrs, nil
}

// Parse parses BibTeX source into entries. Text outside @entry blocks is
// ignored; @comment, @preamble and @string blocks are skipped. Malformed
// entries never fail the parse: each is reported as a SyntaxError, the
// scanner resynchronizes at the entry's closing brace, and an entry with
// a readable key is kept with whatever fields parsed cleanly.
func Parse(src string) ([]Entry, []SyntaxError) {
	p := &parser{src: []rune(src)}
	var entries []Entry
	var syntaxErrs []SyntaxError

	for {
		if !p.seekTo('@') {
			return entries, syntaxErrs
		}
		p.pos++ // consume '@'

		entryType := strings.ToLower(p.readIdent())
		if entryType == "" {
			continue
		}

		p.skipSpace()
		if !p.consume('{') {
			syntaxErrs = append(syntaxErrs, SyntaxError{
				Msg: fmt.Sprintf("expected '{' after @%s", entryType),
			})
			continue
		}

		switch entryType {
		case "comment", "preamble", "string":
			p.skipBalanced()
			continue
		}

		entry, err := p.parseEntryBody(entryType)
		if err != nil {
			syntaxErrs = append(syntaxErrs, SyntaxError{Key: entry.Key, Msg: err.Error()})
			p.skipBalanced() // resynchronize at the entry's closing brace
			if entry.Key == "" {
				continue
			}
		}
		entries = append(entries, entry)
	}
}

type parser struct {
	src []rune
	pos int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) seekTo(r rune) bool {
	for !p.eof() {
		if p.src[p.pos] == r {
			return true
		}
		p.pos++
	}
	return false
}

func (p *parser) skipSpace() {
	for !p.eof() && unicode.IsSpace(p.src[p.pos]) {
		p.pos++
	}
}

func (p *parser) consume(r rune) bool {
	if !p.eof() && p.src[p.pos] == r {
		p.pos++
		return true
	}
	return false
}

func (p *parser) readIdent() string {
	start := p.pos
	for !p.eof() {
		r := p.src[p.pos]
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			p.pos++
			continue
		}
		break
	}
	return string(p.src[start:p.pos])
}

// skipBalanced consumes up to and including the '}' matching an already
// consumed '{'. Stops silently at end of input.
func (p *parser) skipBalanced() {
	depth := 1
	for !p.eof() {
		switch p.src[p.pos] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				p.pos++
				return
			}
		}
		p.pos++
	}
}

// parseEntryBody parses "key, name = value, ..." up to the closing '}'.
// On error the entry holds the key and fields parsed so far.
func (p *parser) parseEntryBody(entryType string) (Entry, error) {
	entry := Entry{Type: entryType}

	p.skipSpace()
	keyStart := p.pos
	for !p.eof() && p.src[p.pos] != ',' && p.src[p.pos] != '}' {
		p.pos++
	}
	entry.Key = strings.TrimSpace(string(p.src[keyStart:p.pos]))
	if entry.Key == "" {
		return entry, fmt.Errorf("missing citation key")
	}

	for {
		p.skipSpace()
		if p.consume('}') {
			return entry, nil
		}
		if !p.consume(',') {
			return entry, fmt.Errorf("expected ',' or '}'")
		}
		p.skipSpace()
		if p.consume('}') {
			return entry, nil // trailing comma
		}

		name := strings.ToLower(p.readIdent())
		if name == "" {
			return entry, fmt.Errorf("expected field name")
		}
		p.skipSpace()
		if !p.consume('=') {
			return entry, fmt.Errorf("expected '=' after field %q", name)
		}
		p.skipSpace()

		value, err := p.readValue()
		if err != nil {
			return entry, fmt.Errorf("field %q: %w", name, err)
		}
		entry.Fields = append(entry.Fields, Field{Name: name, Value: value})
	}
}

// readValue reads a braced, quoted, or bare field value.
func (p *parser) readValue() (string, error) {
	if p.eof() {
		return "", fmt.Errorf("unexpected end of input")
	}

	switch p.src[p.pos] {
	case '{':
		p.pos++
		start := p.pos
		depth := 1
		for !p.eof() {
			switch p.src[p.pos] {
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					value := string(p.src[start:p.pos])
					p.pos++
					return strings.TrimSpace(value), nil
				}
			}
			p.pos++
		}
		return "", fmt.Errorf("unterminated braced value")

	case '"':
		p.pos++
		start := p.pos
		depth := 0 // braces may nest inside quoted values
		for !p.eof() {
			switch p.src[p.pos] {
			case '{':
				depth++
			case '}':
				depth--
			case '"':
				if depth == 0 {
					value := string(p.src[start:p.pos])
					p.pos++
					return strings.TrimSpace(value), nil
				}
			}
			p.pos++
		}
		return "", fmt.Errorf("unterminated quoted value")

	default:
		// Bare value: number or macro name, up to ',' or '}'.
		start := p.pos
		for !p.eof() && p.src[p.pos] != ',' && p.src[p.pos] != '}' {
			p.pos++
		}
		return strings.TrimSpace(string(p.src[start:p.pos])), nil
	}
}
