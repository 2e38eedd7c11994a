package compiler

import (
	"strings"
)

// keywords is the set of recognized tag names. Any other bare word inside a
// tag is a PROPERTY.
var keywords = map[string]bool{
	"arg":      true,
	"call":     true,
	"function": true,
	"let":      true,
	"program":  true,
	"return":   true,
	"if":       true,
	"else":     true,
}

// indentWidth is the number of spaces that make up one nesting level.
const indentWidth = 4

// Tokenize scans src line by line and returns the token sequence, terminated
// by exactly one END_OF_FILE token.
//
// Nesting depth is derived from indentation: every four leading spaces on a
// line add one depth unit, and every token on that line carries it.
func Tokenize(src, file string) []Token {
	var tokens []Token

	lines := strings.Split(src, "\n")
	for lineIdx, line := range lines {
		tokens = append(tokens, scanLine(line, file, lineIdx+1)...)
	}

	tokens = append(tokens, Token{
		Text:     "EOF",
		Type:     END_OF_FILE,
		Location: Location{File: file, Line: len(lines), Column: 1},
		Depth:    0,
	})

	return tokens
}

// scanLine produces the tokens of a single source line.
func scanLine(line, file string, lineNo int) []Token {
	var tokens []Token

	spaces := 0
	for spaces < len(line) && line[spaces] == ' ' {
		spaces++
	}
	depth := spaces / indentWidth

	emit := func(text string, tt TokenType, col int) {
		tokens = append(tokens, Token{
			Text:     text,
			Type:     tt,
			Location: Location{File: file, Line: lineNo, Column: col + 1},
			Depth:    depth,
		})
	}

	for i := spaces; i < len(line); {
		c := line[i]
		switch {
		case c == ' ' || c == '\t':
			i++

		case c == '<':
			emit("<", LEFT_ANGLE, i)
			i++

		case c == '>':
			emit(">", RIGHT_ANGLE, i)
			i++
			// Everything up to the next '<' is tag text content.
			start := i
			for i < len(line) && line[i] != '<' {
				i++
			}
			if text := line[start:i]; strings.TrimSpace(text) != "" {
				emit(text, LITERAL, start)
			}

		case c == '/':
			emit("/", SLASH, i)
			i++

		case c == '=':
			emit("=", EQUAL, i)
			i++

		case c == '"' || c == '\'':
			quote := c
			tt := DOUBLE_QUOTE
			if quote == '\'' {
				tt = SINGLE_QUOTE
			}
			emit(string(quote), tt, i)
			i++
			start := i
			for i < len(line) && line[i] != quote {
				i++
			}
			if i > start {
				emit(line[start:i], LITERAL, start)
			}
			if i < len(line) {
				emit(string(quote), tt, i)
				i++
			}

		default:
			start := i
			for i < len(line) && !strings.ContainsRune(" \t=<>\"'/", rune(line[i])) {
				i++
			}
			word := line[start:i]
			if keywords[word] {
				emit(word, KEYWORD, start)
			} else {
				emit(word, PROPERTY, start)
			}
		}
	}

	return tokens
}

type tokenLocationDump struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

type tokenDump struct {
	Text     string            `json:"text"`
	Type     string            `json:"type"`
	Location tokenLocationDump `json:"location"`
	Depth    int               `json:"depth"`
}

// DumpTokens renders a token sequence as indented JSON for tooling.
func DumpTokens(tokens []Token) ([]byte, error) {
	dump := make([]tokenDump, 0, len(tokens))
	for _, tok := range tokens {
		dump = append(dump, tokenDump{
			Text: tok.Text,
			Type: tok.Type.String(),
			Location: tokenLocationDump{
				File:   tok.Location.File,
				Line:   tok.Location.Line,
				Column: tok.Location.Column,
			},
			Depth: tok.Depth,
		})
	}
	return marshalIndentNoEscape(dump)
}
