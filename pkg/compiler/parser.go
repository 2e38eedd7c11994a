package compiler

import (
	"errors"
)

// ErrCompileFailed is the sentinel returned by Parse once any diagnostic has
// been reported. Individual constructs recover and keep parsing so one run
// can surface several independent errors, but the compilation as a whole is
// already lost.
var ErrCompileFailed = errors.New("compilation failed, giving up")

// errParse unwinds a single construct after its diagnostic has been emitted.
var errParse = errors.New("parse error")

// Parser consumes the flat token slice produced by Tokenize and builds an AST.
//
// Grammar:
//
//	program   = "<program>" (function | statement)* "</program>"
//	function  = "<function" name type param* ">" statement* "</function>"
//	statement = let | call | return | if
//	let       = "<let" name type ">" literal "</let>"
//	call      = "<call" who ">" arg* "</call>"
//	arg       = "<arg" [value] ">" [literal] "</arg>"
//	return    = "<return>" [literal] "</return>"
//	if        = "<if" condition ">" statement* "</if>" [else]
//	else      = "<else>" statement* "</else>"
//
// Tag nesting is decided by token depth (indentation units), not by the tag
// spelling; the closing-tag spelling is validated separately so a mismatch
// gets its own two-location diagnostic.
type Parser struct {
	tokens []Token
	pos    int
	diags  *Diagnostics
}

// Parse consumes the full token stream and returns either a complete AST or
// ErrCompileFailed once any diagnostic was raised.
func Parse(tokens []Token, diags *Diagnostics) (*ProgramDecl, error) {
	p := &Parser{tokens: tokens, diags: diags}

	program, err := p.parseProgram()

	if p.diags.HadErrors() {
		return nil, ErrCompileFailed
	}
	if err != nil {
		return nil, err
	}
	return program, nil
}

// peek returns the current token without consuming it.
func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Text: "EOF", Type: END_OF_FILE}
	}
	return p.tokens[p.pos]
}

// peekNext returns the token immediately after the current one.
func (p *Parser) peekNext() Token {
	if p.pos+1 >= len(p.tokens) {
		return Token{Text: "EOF", Type: END_OF_FILE}
	}
	return p.tokens[p.pos+1]
}

// advance consumes and returns the current token.
func (p *Parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

// accept consumes the current token only when it matches tt.
func (p *Parser) accept(tt TokenType) (Token, bool) {
	if p.peek().Type != tt {
		return p.peek(), false
	}
	return p.advance(), true
}

// acceptText consumes the current token only when both kind and text match.
func (p *Parser) acceptText(tt TokenType, text string) (Token, bool) {
	if p.peek().Type != tt || p.peek().Text != text {
		return p.peek(), false
	}
	return p.advance(), true
}

// acceptQuote consumes either quote flavor.
func (p *Parser) acceptQuote() bool {
	if _, ok := p.accept(DOUBLE_QUOTE); ok {
		return true
	}
	_, ok := p.accept(SINGLE_QUOTE)
	return ok
}

// remaining returns how many tokens are still unconsumed.
func (p *Parser) remaining() int {
	return len(p.tokens) - p.pos
}

// synchronize advances past a broken construct: it stops at the next token
// back at the parent's depth, or at a tag opening a new sibling one level
// below it. This bounds error recovery to the current scope.
func (p *Parser) synchronize(parent Token) {
	for p.remaining() > 3 {
		if p.peek().Depth == parent.Depth {
			return
		}
		if p.peek().Type == LEFT_ANGLE && p.peekNext().Type == KEYWORD &&
			p.peek().Depth == parent.Depth+1 {
			return
		}
		p.advance()
	}
}

// parseExpression parses a value position. Only literals have a defined
// lowering; a keyword here is a construct the language declares but never
// implemented, and it must fail loudly rather than mis-parse.
func (p *Parser) parseExpression() (Expr, error) {
	if tok, ok := p.accept(LITERAL); ok {
		return &LiteralExpr{Token: tok, Value: tok.Text}, nil
	}

	if p.peek().Type == KEYWORD {
		p.diags.Error(UnexpectedTokenReached,
			Issue{p.peek(), "is not a literal expression (unimplemented)"})
		return nil, errParse
	}

	return nil, nil
}

// property is one name="value" pair collected from an opening tag.
type property struct {
	token Token
	value Expr
}

// findProperty returns the first property with the given name.
func findProperty(props []property, name string) (int, bool) {
	for i, prop := range props {
		if prop.token.Text == name {
			return i, true
		}
	}
	return 0, false
}

// literalValue extracts the raw text of a literal property value.
func literalValue(e Expr) string {
	if lit, ok := e.(*LiteralExpr); ok {
		return lit.Value
	}
	return ""
}

// parseOpeningTag parses <name prop="value" ...> and returns the tag's
// keyword token plus its properties in source order.
func (p *Parser) parseOpeningTag(name string) (Token, []property, error) {
	if _, ok := p.accept(LEFT_ANGLE); !ok {
		p.diags.Error(UnexpectedTokenReached, Issue{p.peek(), "was found instead of a '<'"})
		return Token{}, nil, errParse
	}

	tag, ok := p.acceptText(KEYWORD, name)
	if !ok {
		p.diags.Error(UnexpectedTokenReached, Issue{p.peek(), "was found instead of a tag"})
		return Token{}, nil, errParse
	}

	var props []property

	for p.peek().Type != RIGHT_ANGLE {
		if p.peek().Type == END_OF_FILE {
			p.diags.Error(UnexpectedEndOfFile, Issue{tag, "this tag is never completed"})
			return Token{}, nil, errParse
		}

		propName, ok := p.accept(PROPERTY)
		if !ok {
			p.diags.Error(UnexpectedTokenReached, Issue{p.peek(), "was found instead of a property"})
			return Token{}, nil, errParse
		}

		if _, ok := p.accept(EQUAL); !ok {
			p.diags.Error(ExpectedTokenMissing, Issue{p.peek(), "was found instead of equals"})
			return Token{}, nil, errParse
		}

		if !p.acceptQuote() {
			p.diags.Error(ExpectedTokenMissing, Issue{p.peek(), "was found instead of quotes"})
			return Token{}, nil, errParse
		}

		value, err := p.parseExpression()
		if err != nil {
			return Token{}, nil, err
		}
		if value == nil {
			p.diags.Error(UnexpectedTokenReached, Issue{p.peek(), "was found instead of a property value"})
			return Token{}, nil, errParse
		}

		if !p.acceptQuote() {
			p.diags.Error(ExpectedTokenMissing, Issue{p.peek(), "was found instead of quotes"})
			return Token{}, nil, errParse
		}

		props = append(props, property{token: propName, value: value})
	}

	if _, ok := p.accept(RIGHT_ANGLE); !ok {
		p.diags.Error(UnexpectedTokenReached, Issue{p.peek(), "was found instead of a '>'"})
		return Token{}, nil, errParse
	}

	return tag, props, nil
}

// parseClosingTag parses </name> and validates the name against the opening
// tag's keyword.
func (p *Parser) parseClosingTag(opening Token) error {
	if p.peek().Type == END_OF_FILE {
		p.diags.Error(EnclosingTokenMissing, Issue{opening, "this tag is never closed"})
		return errParse
	}

	if _, ok := p.accept(LEFT_ANGLE); !ok {
		p.diags.Error(UnexpectedTokenReached, Issue{p.peek(), "was found instead of a '<'"})
		return errParse
	}

	if _, ok := p.accept(SLASH); !ok {
		if p.peek().Type == END_OF_FILE {
			p.diags.Error(UnexpectedEndOfFile, Issue{opening, "this tag is never closed"})
			return errParse
		}
		p.diags.Error(UnexpectedTokenReached, Issue{p.peek(), "was found instead of a '/'"})
		return errParse
	}

	closing, ok := p.accept(KEYWORD)
	if !ok {
		if p.peek().Type == END_OF_FILE {
			p.diags.Error(UnexpectedEndOfFile, Issue{opening, "this tag is never closed"})
			return errParse
		}
		p.diags.Error(UnexpectedTokenReached, Issue{p.peek(), "was found instead of a tag"})
		return errParse
	}

	if closing.Text != opening.Text {
		p.diags.Error(EnclosingTokenMismatch,
			Issue{opening, "this tag"},
			Issue{closing, "does not match with this one"})
		return errParse
	}

	if _, ok := p.accept(RIGHT_ANGLE); !ok {
		if p.peek().Type == END_OF_FILE {
			p.diags.Error(UnexpectedEndOfFile, Issue{opening, "this tag is never closed"})
			return errParse
		}
		p.diags.Error(UnexpectedTokenReached, Issue{p.peek(), "was found instead of '>'"})
		return errParse
	}

	return nil
}

// isNextStatement reports whether the upcoming tag opens a statement.
func (p *Parser) isNextStatement() bool {
	switch p.peekNext().Text {
	case "let", "call", "arg", "return", "if":
		return true
	}
	return false
}

// isNextDeclaration reports whether the upcoming tag opens a declaration.
func (p *Parser) isNextDeclaration() bool {
	return p.peekNext().Text == "function"
}

// parseStatement dispatches on the keyword following '<'. It returns
// (nil, nil) when the upcoming construct is not a statement.
func (p *Parser) parseStatement() (Stmt, error) {
	switch p.peekNext().Text {
	case "let":
		return p.parseLet()
	case "call":
		return p.parseCall()
	case "return":
		return p.parseReturn()
	case "if":
		return p.parseIf()
	}
	return nil, nil
}

// parseLet parses <let name="n" type="t">value</let>
func (p *Parser) parseLet() (Stmt, error) {
	tag, props, err := p.parseOpeningTag("let")
	if err != nil {
		return nil, err
	}

	let := &LetStmt{Token: tag}

	if idx, ok := findProperty(props, "name"); ok {
		let.Name = literalValue(props[idx].value)
	} else {
		p.diags.Error(ExpectedTokenMissing, Issue{tag, "requires property 'name'"})
		return nil, errParse
	}

	if idx, ok := findProperty(props, "type"); ok {
		let.Type = literalValue(props[idx].value)
	} else {
		p.diags.Error(ExpectedTokenMissing, Issue{tag, "requires property 'type'"})
		return nil, errParse
	}

	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if value == nil {
		p.diags.Error(ExpectedTokenMissing, Issue{p.peek(), "was found instead of property 'value'"})
		return nil, errParse
	}
	let.Value = value

	if err := p.parseClosingTag(tag); err != nil {
		return nil, err
	}

	return let, nil
}

// parseArg parses <arg>value</arg> or <arg value="...">...</arg>
func (p *Parser) parseArg() (*ArgStmt, error) {
	tag, props, err := p.parseOpeningTag("arg")
	if err != nil {
		return nil, err
	}

	arg := &ArgStmt{Token: tag}

	if idx, ok := findProperty(props, "value"); ok {
		arg.Value = props[idx].value
	}

	if arg.Value == nil {
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if value == nil {
			p.diags.Error(ExpectedTokenMissing, Issue{p.peek(), "was found instead of 'value' property"})
			return nil, errParse
		}
		arg.Value = value
	}

	if err := p.parseClosingTag(tag); err != nil {
		return nil, err
	}

	return arg, nil
}

// parseCall parses <call who="f">args...</call>
func (p *Parser) parseCall() (Stmt, error) {
	tag, props, err := p.parseOpeningTag("call")
	if err != nil {
		return nil, err
	}

	call := &CallStmt{Token: tag}

	if idx, ok := findProperty(props, "who"); ok {
		call.Who = literalValue(props[idx].value)
	} else {
		p.diags.Error(ExpectedTokenMissing, Issue{tag, "requires property 'who'"})
		return nil, errParse
	}

	for p.remaining() > 1 && p.peek().Depth > tag.Depth {
		arg, err := p.parseArg()
		if err != nil {
			p.synchronize(tag)
			continue
		}
		call.Arguments = append(call.Arguments, arg)
	}

	if err := p.parseClosingTag(tag); err != nil {
		return nil, err
	}

	return call, nil
}

// parseReturn parses <return>value</return>. The return's result type is
// filled in later by the enclosing function.
func (p *Parser) parseReturn() (Stmt, error) {
	tag, props, err := p.parseOpeningTag("return")
	if err != nil {
		return nil, err
	}

	ret := &RetStmt{Token: tag}

	if idx, ok := findProperty(props, "value"); ok {
		p.diags.Error(UnexpectedTokenReached,
			Issue{props[idx].token, "a 'value' property on <return> is unimplemented; use tag content"})
		return nil, errParse
	}

	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	ret.Value = value // may be nil: bare <return></return>

	if err := p.parseClosingTag(tag); err != nil {
		return nil, err
	}

	return ret, nil
}

// parseIf parses <if condition="...">...</if> with an optional trailing
// <else> block. The condition is kept as a literal; it has no lowering and
// code generation refuses it.
func (p *Parser) parseIf() (Stmt, error) {
	tag, props, err := p.parseOpeningTag("if")
	if err != nil {
		return nil, err
	}

	ifStmt := &IfStmt{Token: tag}

	if idx, ok := findProperty(props, "condition"); ok {
		ifStmt.Condition = props[idx].value
	} else {
		p.diags.Error(ExpectedTokenMissing, Issue{tag, "requires property 'condition'"})
		return nil, errParse
	}

	for p.remaining() > 1 && p.peek().Depth > tag.Depth {
		node, err := p.parseStatement()
		if err != nil {
			p.synchronize(tag)
			continue
		}
		if node == nil {
			break
		}
		ifStmt.TrueBranch = append(ifStmt.TrueBranch, node)
	}

	if err := p.parseClosingTag(tag); err != nil {
		return nil, err
	}

	if p.peek().Type == LEFT_ANGLE && p.peekNext().Text == "else" {
		falseBranch, err := p.parseElse()
		if err != nil {
			return nil, err
		}
		ifStmt.FalseBranch = falseBranch
	}

	return ifStmt, nil
}

// parseElse parses <else>...</else> and returns the branch's statements.
func (p *Parser) parseElse() ([]Node, error) {
	tag, _, err := p.parseOpeningTag("else")
	if err != nil {
		return nil, err
	}

	var nodes []Node

	for p.remaining() > 1 && p.peek().Depth > tag.Depth {
		node, err := p.parseStatement()
		if err != nil {
			p.synchronize(tag)
			continue
		}
		if node == nil {
			break
		}
		nodes = append(nodes, node)
	}

	if err := p.parseClosingTag(tag); err != nil {
		return nil, err
	}

	return nodes, nil
}

// parseFunction parses <function name="f" type="t" params...>body</function>
//
// The name property must come first and the type property second; finding
// them elsewhere is only a warning and the value is still used. Every extra
// property declares one parameter, in source order.
func (p *Parser) parseFunction() (Decl, error) {
	tag, props, err := p.parseOpeningTag("function")
	if err != nil {
		return nil, err
	}

	fn := &FunctionDecl{Token: tag}

	nameIdx, ok := findProperty(props, "name")
	if !ok {
		p.diags.Error(ExpectedTokenMissing, Issue{tag, "requires property 'name'"})
		return nil, errParse
	}
	if nameIdx != 0 {
		p.diags.Warn(UnexpectedTokenPosition, Issue{props[nameIdx].token, "should appear in first"})
	}
	fn.Name = literalValue(props[nameIdx].value)

	typeIdx, ok := findProperty(props, "type")
	if !ok {
		p.diags.Error(ExpectedTokenMissing, Issue{tag, "requires property 'type'"})
		return nil, errParse
	}
	if typeIdx != 1 {
		p.diags.Warn(UnexpectedTokenPosition, Issue{props[typeIdx].token, "should appear in second"})
	}
	fn.Type = literalValue(props[typeIdx].value)

	for i, prop := range props {
		if i == nameIdx || i == typeIdx {
			continue
		}
		fn.Parameters = append(fn.Parameters, Parameter{
			Name: prop.token.Text,
			Type: literalValue(prop.value),
		})
	}

	for p.remaining() > 1 && p.peek().Depth > tag.Depth {
		node, err := p.parseStatement()
		if err != nil {
			p.synchronize(tag)
			continue
		}
		if node == nil {
			break
		}
		fn.Scope = append(fn.Scope, node)
	}

	// Every function ends in a return: implicit for "none", mandatory
	// otherwise. A found return inherits the function's result type.
	var firstReturn *RetStmt
	for _, node := range fn.Scope {
		if ret, ok := node.(*RetStmt); ok {
			firstReturn = ret
			break
		}
	}

	if firstReturn == nil {
		if fn.Type == "none" {
			fn.Scope = append(fn.Scope, &RetStmt{Type: fn.Type})
		} else {
			p.diags.Error(MissingReturnStatement,
				Issue{tag, "expects a value to be returned, yet no <return> tag was found."})
			return nil, errParse
		}
	} else {
		firstReturn.Type = fn.Type
	}

	if err := p.parseClosingTag(tag); err != nil {
		return nil, err
	}

	return fn, nil
}

// parseDeclaration dispatches to the declaration parsers. It returns
// (nil, nil) when the upcoming construct is not a declaration.
func (p *Parser) parseDeclaration() (Decl, error) {
	if p.peekNext().Text == "function" {
		return p.parseFunction()
	}
	return nil, nil
}

// parseProgram parses the <program> root. Direct children must sit exactly
// one depth unit below the program tag. When a function named "main" exists,
// a synthetic call to it is appended as the implicit entrypoint.
func (p *Parser) parseProgram() (*ProgramDecl, error) {
	tag, _, err := p.parseOpeningTag("program")
	if err != nil {
		return nil, err
	}

	program := &ProgramDecl{Token: tag}

	for p.remaining() > 1 && p.peek().Depth == tag.Depth+1 {
		var node Node
		var err error

		switch {
		case p.isNextDeclaration():
			node, err = p.parseDeclaration()
		case p.isNextStatement():
			node, err = p.parseStatement()
		}

		if err != nil {
			p.synchronize(tag)
			continue
		}
		if node == nil {
			break
		}
		program.Scope = append(program.Scope, node)
	}

	for _, node := range program.Scope {
		if fn, ok := node.(*FunctionDecl); ok && fn.Name == "main" {
			program.Scope = append(program.Scope, &CallStmt{Who: "main"})
			break
		}
	}

	if err := p.parseClosingTag(tag); err != nil {
		return nil, err
	}

	return program, nil
}
