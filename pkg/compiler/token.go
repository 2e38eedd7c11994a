package compiler

import "fmt"

// TokenType identifies the category of a scanned token.
type TokenType int

const (
	LEFT_ANGLE   TokenType = iota // <
	RIGHT_ANGLE                   // >
	DOUBLE_QUOTE                  // "
	SINGLE_QUOTE                  // '
	SLASH                         // /
	EQUAL                         // =
	KEYWORD                       // tag name: program, function, let, ...
	LITERAL                       // quoted value or text content between tags
	PROPERTY                      // attribute name inside an opening tag
	END_OF_FILE                   // sentinel: end of input
)

// tokenNames is indexed by TokenType.
var tokenNames = [...]string{
	LEFT_ANGLE:   "LEFT_ANGLE",
	RIGHT_ANGLE:  "RIGHT_ANGLE",
	DOUBLE_QUOTE: "DOUBLE_QUOTE",
	SINGLE_QUOTE: "SINGLE_QUOTE",
	SLASH:        "SLASH",
	EQUAL:        "EQUAL",
	KEYWORD:      "KEYWORD",
	LITERAL:      "LITERAL",
	PROPERTY:     "PROPERTY",
	END_OF_FILE:  "END_OF_FILE",
}

func (tt TokenType) String() string {
	if int(tt) >= 0 && int(tt) < len(tokenNames) {
		return tokenNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// Location is a source position carried by every token for diagnostics.
type Location struct {
	File   string
	Line   int // 1-based
	Column int // 1-based
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Token is a single lexical unit produced by Tokenize.
//
// Depth is the number of 4-space indentation units preceding the token's
// line content. The parser uses depth, not the tag spelling, to decide
// where a scope opens and closes.
type Token struct {
	Text     string
	Type     TokenType
	Location Location
	Depth    int
}

func (t Token) String() string {
	return fmt.Sprintf("%-12s %-14q depth %d  %s", t.Type, t.Text, t.Depth, t.Location)
}
