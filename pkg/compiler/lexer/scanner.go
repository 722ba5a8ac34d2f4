package lexer

import (
	"strconv"
	"strings"
)

// Scanner performs lexical analysis on ntalk source.
type Scanner struct {
	source []byte
	cursor int
	line   int
}

// NewScanner creates a new scanner for the given source.
func NewScanner(source []byte) *Scanner {
	return &Scanner{
		source: source,
		line:   1,
	}
}

// ScanAll tokenizes the whole source. The token slice always ends with a
// newline token so every statement has a terminator, even when the script
// lacks a trailing line break.
func (s *Scanner) ScanAll() ([]Token, error) {
	var toks []Token
	for {
		tok, ok, err := s.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		toks = append(toks, tok)
	}
	if len(toks) == 0 || toks[len(toks)-1].Subtype != SubNewline {
		toks = append(toks, newlineToken(s.line))
	}
	return toks, nil
}

func newlineToken(line int) Token {
	return Token{Kind: KindIdentifier, Subtype: SubNewline, Text: "\n", Normalized: "\n", Line: line}
}

func (s *Scanner) next() (Token, bool, error) {
	s.skipBlanks()

	if s.cursor >= len(s.source) {
		return Token{}, false, nil
	}

	ch := s.source[s.cursor]

	// Line comments run to the end of the line; the newline stays.
	if ch == '-' && s.peek() == '-' {
		for s.cursor < len(s.source) && s.source[s.cursor] != '\n' {
			s.cursor++
		}
		return s.next()
	}

	switch {
	case ch == '\n':
		tok := newlineToken(s.line)
		s.cursor++
		s.line++
		return tok, true, nil
	case ch == '"':
		return s.scanString()
	case isDigit(ch):
		return s.scanNumber()
	case isAlpha(ch) || ch == '_':
		return s.scanIdentifier()
	}

	if sub, ok := punctuation[ch]; ok {
		s.cursor++
		text := string(ch)
		return Token{Kind: KindIdentifier, Subtype: sub, Text: text, Normalized: text, Line: s.line}, true, nil
	}

	return Token{}, false, Errorf("", s.line, "unexpected character %q", string(ch))
}

func (s *Scanner) skipBlanks() {
	for s.cursor < len(s.source) {
		ch := s.source[s.cursor]
		if ch == ' ' || ch == '\t' || ch == '\r' {
			s.cursor++
		} else {
			break
		}
	}
}

func (s *Scanner) scanString() (Token, bool, error) {
	startLine := s.line
	s.cursor++ // opening quote
	var sb strings.Builder
	var raw strings.Builder
	raw.WriteByte('"')
	for s.cursor < len(s.source) && s.source[s.cursor] != '"' {
		ch := s.source[s.cursor]
		if ch == '\n' {
			s.line++
		}
		if ch == '\\' && s.cursor+1 < len(s.source) {
			raw.WriteByte(ch)
			s.cursor++
			esc := s.source[s.cursor]
			raw.WriteByte(esc)
			switch esc {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '"':
				sb.WriteByte('"')
			case '\\':
				sb.WriteByte('\\')
			default:
				sb.WriteByte('\\')
				sb.WriteByte(esc)
			}
			s.cursor++
			continue
		}
		sb.WriteByte(ch)
		raw.WriteByte(ch)
		s.cursor++
	}

	if s.cursor >= len(s.source) {
		return Token{}, false, Errorf("", startLine, "unterminated string literal")
	}

	s.cursor++ // closing quote
	raw.WriteByte('"')
	text := raw.String()
	return Token{
		Kind:        KindString,
		Subtype:     SubNoKeyword,
		Text:        text,
		Normalized:  strings.ToLower(text),
		StringValue: sb.String(),
		Line:        startLine,
	}, true, nil
}

// scanNumber reads an unsigned integer literal. Floats are assembled by
// the parser from an integer / period / integer token sequence, and
// negative numbers come from the unary minus operator.
func (s *Scanner) scanNumber() (Token, bool, error) {
	start := s.cursor
	for s.cursor < len(s.source) && isDigit(s.source[s.cursor]) {
		s.cursor++
	}
	text := string(s.source[start:s.cursor])
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return Token{}, false, Errorf("", s.line, "number %s out of range", text)
	}
	return Token{
		Kind:        KindNumber,
		Subtype:     SubNoKeyword,
		Text:        text,
		Normalized:  text,
		NumberValue: n,
		Line:        s.line,
	}, true, nil
}

func (s *Scanner) scanIdentifier() (Token, bool, error) {
	start := s.cursor
	for s.cursor < len(s.source) && (isAlpha(s.source[s.cursor]) || isDigit(s.source[s.cursor]) || s.source[s.cursor] == '_') {
		s.cursor++
	}

	text := string(s.source[start:s.cursor])
	normalized := strings.ToLower(text)
	sub, ok := keywords[normalized]
	if !ok {
		sub = SubNoKeyword
	}

	return Token{
		Kind:       KindIdentifier,
		Subtype:    sub,
		Text:       text,
		Normalized: normalized,
		Line:       s.line,
	}, true, nil
}

func (s *Scanner) peek() byte {
	if s.cursor+1 >= len(s.source) {
		return 0
	}
	return s.source[s.cursor+1]
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isAlpha(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}
