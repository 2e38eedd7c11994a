package compiler

import (
	"fmt"
	"regexp"
	"strings"
)

// intrinsics maps the callables built into the VM runtime to their result
// type. Call resolution checks this table before user-defined functions.
var intrinsics = map[string]string{
	"print":   "none",
	"println": "none",
}

// placeholderPattern matches ${name} interpolation placeholders inside
// string literals.
var placeholderPattern = regexp.MustCompile(`\$\{(\w*)\}`)

// CodeGen lowers a parsed program to assembly text. State is scoped to one
// Generate call so compilations are re-entrant.
type CodeGen struct {
	// dataOffsets maps a raw literal value (or a string variable's name)
	// to its byte offset in the data segment.
	dataOffsets map[string]int
	dataBytes   int
	dataLines   []string
}

// Generate produces the two-segment assembly text for a program: a .data
// section of length-prefixed string entries and a .code section of function
// blocks followed by the entrypoint block.
func Generate(program *ProgramDecl) (string, error) {
	g := &CodeGen{dataOffsets: make(map[string]int)}

	if err := g.layoutData(program); err != nil {
		return "", err
	}

	code, err := g.emitProgram(program)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(".data\n\n")
	for _, line := range g.dataLines {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	sb.WriteString("\n.code\n\n")
	sb.WriteString(code)

	return sb.String(), nil
}

// isNumeric reports whether v is a plain unsigned decimal literal.
func isNumeric(v string) bool {
	if v == "" {
		return false
	}
	for _, c := range v {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// isPlaceholder reports whether v is purely a ${name} reference.
func isPlaceholder(v string) bool {
	return strings.HasPrefix(v, "${") && strings.HasSuffix(v, "}")
}

// placeholderName extracts the variable name out of a pure ${name} value.
func placeholderName(v string) string {
	m := placeholderPattern.FindStringSubmatch(v)
	if m == nil {
		return ""
	}
	return m[1]
}

// rewritePlaceholders replaces every embedded ${name} with the runtime
// interpolation marker {}.
func rewritePlaceholders(v string) string {
	return placeholderPattern.ReplaceAllString(v, "{}")
}

// registerData adds one data-segment entry. Entries are keyed by key (the
// raw literal value, or the variable name for string lets) and deduplicated:
// the first occurrence claims the offset and later identical values reuse it.
// The stored bytes have embedded placeholders rewritten, and the entry costs
// its 4-byte length prefix plus the rewritten bytes.
func (g *CodeGen) registerData(key, value string) {
	if _, ok := g.dataOffsets[key]; ok {
		return
	}

	rewritten := rewritePlaceholders(value)

	g.dataOffsets[key] = g.dataBytes
	g.dataBytes += 4 + len(rewritten)
	g.dataLines = append(g.dataLines, fmt.Sprintf("%d %s", len(rewritten), rewritten))
}

// layoutData is the first pass: a depth-first walk assigning data-segment
// offsets to every string literal that will need one. Numeric literals and
// pure ${name} placeholders never reach the data segment.
func (g *CodeGen) layoutData(node Node) error {
	switch n := node.(type) {
	case *ProgramDecl:
		for _, child := range n.Scope {
			if err := g.layoutData(child); err != nil {
				return err
			}
		}

	case *FunctionDecl:
		for _, child := range n.Scope {
			if err := g.layoutData(child); err != nil {
				return err
			}
		}

	case *CallStmt:
		for _, arg := range n.Arguments {
			if err := g.layoutData(arg); err != nil {
				return err
			}
		}

	case *ArgStmt:
		value := literalValue(n.Value)
		if !isNumeric(value) && !isPlaceholder(value) {
			g.registerData(value, value)
		}

	case *LetStmt:
		if n.Type == "string" {
			g.registerData(n.Name, literalValue(n.Value))
		}

	case *RetStmt:
		if n.Type == "none" || n.Value == nil {
			return nil
		}
		value := literalValue(n.Value)
		if n.Type == "string" && !isNumeric(value) && !isPlaceholder(value) {
			g.registerData(value, value)
		}
	}

	return nil
}

// scopeContext is the enclosing declaration's view used to resolve variable
// references while emitting a statement.
type scopeContext struct {
	params []Parameter
	scope  []Node
}

// letSlot returns the zero-based position of stmt among the statement
// children of the enclosing declaration. The slot is positional within the
// scope list, not a separately allocated index.
func (ctx *scopeContext) letSlot(stmt *LetStmt) int {
	for i, node := range ctx.scope {
		if node == Node(stmt) {
			return i
		}
	}
	return -1
}

// resolve looks name up against the declaration's parameters first, then its
// let-bound locals. A local resolves to the same scope-list slot its store
// used; parameters occupy the slots after the scope list, so the two ranges
// cannot collide.
func (ctx *scopeContext) resolve(name string) (int, bool) {
	for i, param := range ctx.params {
		if param.Name == name {
			return len(ctx.scope) + i, true
		}
	}

	for slot, node := range ctx.scope {
		if let, ok := node.(*LetStmt); ok && let.Name == name {
			return slot, true
		}
	}

	return 0, false
}

// emitProgram is the second pass: one block per function in declaration
// order, then the synthetic entrypoint block holding the program's top-level
// statements.
func (g *CodeGen) emitProgram(program *ProgramDecl) (string, error) {
	var sb strings.Builder

	for _, node := range program.Scope {
		fn, ok := node.(*FunctionDecl)
		if !ok {
			continue
		}

		fmt.Fprintf(&sb, "function %s\n", fn.Name)

		ctx := &scopeContext{params: fn.Parameters, scope: fn.Scope}
		for _, child := range fn.Scope {
			if err := g.emitStatement(&sb, ctx, child, program); err != nil {
				return "", err
			}
		}

		sb.WriteByte('\n')
	}

	sb.WriteString("entrypoint\n")

	ctx := &scopeContext{scope: program.Scope}
	for _, node := range program.Scope {
		if _, ok := node.(Decl); ok {
			continue
		}
		if err := g.emitStatement(&sb, ctx, node, program); err != nil {
			return "", err
		}
	}

	sb.WriteString("ret\n")

	return sb.String(), nil
}

func (g *CodeGen) emitStatement(sb *strings.Builder, ctx *scopeContext, node Node, program *ProgramDecl) error {
	switch n := node.(type) {
	case *LetStmt:
		return g.emitLet(sb, ctx, n)
	case *CallStmt:
		return g.emitCall(sb, ctx, n, program)
	case *RetStmt:
		return g.emitReturn(sb, n)
	case *IfStmt:
		return fmt.Errorf("cannot lower <if> at %s: conditionals are unimplemented", n.Token.Location)
	}
	return fmt.Errorf("cannot lower %s", node)
}

// emitLet pushes the let's value and stores it into the declaration's scope
// slot.
func (g *CodeGen) emitLet(sb *strings.Builder, ctx *scopeContext, let *LetStmt) error {
	value := literalValue(let.Value)

	switch {
	case let.Type == "number" && isNumeric(value):
		fmt.Fprintf(sb, "push %s\n", value)

	case let.Type == "string":
		offset, ok := g.dataOffsets[let.Name]
		if !ok {
			return fmt.Errorf("no data segment entry for variable '%s'", let.Name)
		}
		fmt.Fprintf(sb, "load .data[%d]\n", offset)

	default:
		return fmt.Errorf("cannot lower let of type '%s' at %s", let.Type, let.Token.Location)
	}

	slot := ctx.letSlot(let)
	if slot < 0 {
		return fmt.Errorf("variable '%s' is not a child of its enclosing scope", let.Name)
	}
	fmt.Fprintf(sb, "store scope[%d]\n", slot)

	return nil
}

// emitArg pushes one call argument: numeric literals directly, ${name}
// placeholders as scope loads, and registered strings as data loads.
func (g *CodeGen) emitArg(sb *strings.Builder, ctx *scopeContext, arg *ArgStmt) error {
	value := literalValue(arg.Value)

	switch {
	case isNumeric(value):
		fmt.Fprintf(sb, "push %s\n", value)

	case isPlaceholder(value):
		name := placeholderName(value)
		index, ok := ctx.resolve(name)
		if !ok {
			return fmt.Errorf("undeclared variable '%s' at %s", name, arg.Token.Location)
		}
		fmt.Fprintf(sb, "load scope[%d]\n", index)

	default:
		offset, ok := g.dataOffsets[value]
		if !ok {
			return fmt.Errorf("no data segment entry for value %q at %s", value, arg.Token.Location)
		}
		fmt.Fprintf(sb, "load .data[%d]\n", offset)
	}

	return nil
}

// emitCall pushes the arguments left to right, calls the target, and pops
// the unused result when the callee returns a value.
func (g *CodeGen) emitCall(sb *strings.Builder, ctx *scopeContext, call *CallStmt, program *ProgramDecl) error {
	for _, arg := range call.Arguments {
		if err := g.emitArg(sb, ctx, arg); err != nil {
			return err
		}
	}

	resultType, ok := intrinsics[call.Who]
	if !ok {
		fn := findFunction(program, call.Who)
		if fn == nil {
			return fmt.Errorf("call to undeclared function '%s' at %s", call.Who, call.Token.Location)
		}
		resultType = fn.Type
	}

	fmt.Fprintf(sb, "call %s\n", call.Who)

	if resultType != "none" {
		sb.WriteString("pop\n")
	}

	return nil
}

// emitReturn pushes the returned value, if any, and returns.
func (g *CodeGen) emitReturn(sb *strings.Builder, ret *RetStmt) error {
	if ret.Value != nil {
		value := literalValue(ret.Value)

		switch {
		case isNumeric(value):
			fmt.Fprintf(sb, "push %s\n", value)

		default:
			offset, ok := g.dataOffsets[value]
			if !ok {
				return fmt.Errorf("no data segment entry for value %q at %s", value, ret.Token.Location)
			}
			fmt.Fprintf(sb, "load .data[%d]\n", offset)
		}
	}

	sb.WriteString("ret\n")
	return nil
}

// findFunction looks a function up in the program's top-level scope.
func findFunction(program *ProgramDecl, name string) *FunctionDecl {
	for _, node := range program.Scope {
		if fn, ok := node.(*FunctionDecl); ok && fn.Name == name {
			return fn
		}
	}
	return nil
}
