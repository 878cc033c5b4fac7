package formula

import (
	"fmt"
	"strconv"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokName
	tokOp // + - * / ^ ( ) [ ] ,
)

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of expression"
	}
	return fmt.Sprintf("%q", t.text)
}

// SyntaxError reports where compilation failed.
type SyntaxError struct {
	Offset  int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("offset %d: %s", e.Offset, e.Message)
}

// lex splits src into tokens. Names may contain "::" so that ROOT
// qualified functions (TMath::Log) come through as one token.
func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c >= '0' && c <= '9' || c == '.':
			start := i
			i = scanNumber(src, i)
			v, err := strconv.ParseFloat(src[start:i], 64)
			if err != nil {
				return nil, &SyntaxError{Offset: start, Message: fmt.Sprintf("malformed number %q", src[start:i])}
			}
			toks = append(toks, token{kind: tokNumber, text: src[start:i], num: v, pos: start})
		case isNameStart(rune(c)):
			start := i
			for i < len(src) {
				if isNamePart(rune(src[i])) {
					i++
					continue
				}
				if src[i] == ':' && i+2 < len(src) && src[i+1] == ':' && isNameStart(rune(src[i+2])) {
					i += 2
					continue
				}
				break
			}
			toks = append(toks, token{kind: tokName, text: src[start:i], pos: start})
		case isOp(c):
			toks = append(toks, token{kind: tokOp, text: string(c), pos: i})
			i++
		default:
			return nil, &SyntaxError{Offset: i, Message: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(src)}), nil
}

// scanNumber accepts digits, one decimal point and an optional exponent.
func scanNumber(src string, i int) int {
	for i < len(src) && (src[i] >= '0' && src[i] <= '9' || src[i] == '.') {
		i++
	}
	if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
		j := i + 1
		if j < len(src) && (src[j] == '+' || src[j] == '-') {
			j++
		}
		if j < len(src) && src[j] >= '0' && src[j] <= '9' {
			for j < len(src) && src[j] >= '0' && src[j] <= '9' {
				j++
			}
			i = j
		}
	}
	return i
}

func isNameStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) && r < unicode.MaxASCII
}

func isNamePart(r rune) bool {
	return isNameStart(r) || r >= '0' && r <= '9'
}

func isOp(c byte) bool {
	switch c {
	case '+', '-', '*', '/', '^', '(', ')', '[', ']', ',':
		return true
	}
	return false
}
