package compiler

import "fmt"

// Node is implemented by every AST node. Tag returns the token of the node's
// opening tag, used to anchor diagnostics.
type Node interface {
	Tag() Token
	String() string
}

// Expr is implemented by every node that produces a value.
type Expr interface {
	Node
	exprNode()
}

// Stmt is implemented by every node that appears in a scope body.
type Stmt interface {
	Node
	stmtNode()
}

// Decl is implemented by the scope-owning nodes (program and function).
type Decl interface {
	Node
	declNode()
}

//  Expression nodes

// LiteralExpr is a raw literal value: quoted property text or tag content.
//
//	<let name="x" type="number">10</let>
//	                            ^^  LiteralExpr{Value: "10"}
type LiteralExpr struct {
	Token Token
	Value string
}

func (e *LiteralExpr) exprNode()      {}
func (e *LiteralExpr) Tag() Token     { return e.Token }
func (e *LiteralExpr) String() string { return fmt.Sprintf("%q", e.Value) }

// LogicalExpr is declared by the grammar but has no lowering; reaching one
// during code generation is an explicit failure.
type LogicalExpr struct {
	Token Token
	Value Node
}

func (e *LogicalExpr) exprNode()      {}
func (e *LogicalExpr) Tag() Token     { return e.Token }
func (e *LogicalExpr) String() string { return fmt.Sprintf("Logical(%s)", e.Value) }

// ArithmeticExpr is declared by the grammar but has no lowering; reaching one
// during code generation is an explicit failure.
type ArithmeticExpr struct {
	Token Token
	Value Node
}

func (e *ArithmeticExpr) exprNode()      {}
func (e *ArithmeticExpr) Tag() Token     { return e.Token }
func (e *ArithmeticExpr) String() string { return fmt.Sprintf("Arithmetic(%s)", e.Value) }

//  Statement nodes

// LetStmt represents <let name="n" type="t">value</let>
type LetStmt struct {
	Token Token
	Name  string
	Type  string
	Value Expr
}

func (s *LetStmt) stmtNode()  {}
func (s *LetStmt) Tag() Token { return s.Token }
func (s *LetStmt) String() string {
	return fmt.Sprintf("LetStmt(%s:%s = %s)", s.Name, s.Type, s.Value)
}

// ArgStmt represents <arg>value</arg> inside a call.
type ArgStmt struct {
	Token Token
	Value Expr
}

func (s *ArgStmt) stmtNode()      {}
func (s *ArgStmt) Tag() Token     { return s.Token }
func (s *ArgStmt) String() string { return fmt.Sprintf("ArgStmt(%s)", s.Value) }

// CallStmt represents <call who="f">args...</call>
type CallStmt struct {
	Token     Token
	Who       string
	Arguments []*ArgStmt
}

func (s *CallStmt) stmtNode()  {}
func (s *CallStmt) Tag() Token { return s.Token }
func (s *CallStmt) String() string {
	return fmt.Sprintf("CallStmt(%s, args=%d)", s.Who, len(s.Arguments))
}

// RetStmt represents <return>value</return>. Value is nil for the implicit
// return appended to a "none" function. Type is inherited from the enclosing
// function during parsing.
type RetStmt struct {
	Token Token
	Type  string
	Value Expr
}

func (s *RetStmt) stmtNode()  {}
func (s *RetStmt) Tag() Token { return s.Token }
func (s *RetStmt) String() string {
	if s.Value == nil {
		return "RetStmt()"
	}
	return fmt.Sprintf("RetStmt(%s)", s.Value)
}

// IfStmt represents <if condition="...">...</if> with an optional <else>.
// Conditions parse but do not lower; see codegen.
type IfStmt struct {
	Token       Token
	Condition   Expr
	TrueBranch  []Node
	FalseBranch []Node
}

func (s *IfStmt) stmtNode()  {}
func (s *IfStmt) Tag() Token { return s.Token }
func (s *IfStmt) String() string {
	return fmt.Sprintf("IfStmt(true=%d, false=%d)", len(s.TrueBranch), len(s.FalseBranch))
}

//  Declaration nodes

// Parameter is one (name, type) pair of a function declaration.
type Parameter struct {
	Name string
	Type string
}

// FunctionDecl represents <function name="f" type="t" params...>scope</function>
type FunctionDecl struct {
	Token      Token
	Name       string
	Type       string
	Parameters []Parameter
	Scope      []Node
}

func (d *FunctionDecl) declNode()  {}
func (d *FunctionDecl) Tag() Token { return d.Token }
func (d *FunctionDecl) String() string {
	return fmt.Sprintf("FunctionDecl(%s:%s, params=%d, scope=%d)",
		d.Name, d.Type, len(d.Parameters), len(d.Scope))
}

// ProgramDecl is the root of every parse: top-level functions plus top-level
// statements, in source order.
type ProgramDecl struct {
	Token Token
	Scope []Node
}

func (d *ProgramDecl) declNode()      {}
func (d *ProgramDecl) Tag() Token     { return d.Token }
func (d *ProgramDecl) String() string { return fmt.Sprintf("ProgramDecl(scope=%d)", len(d.Scope)) }
