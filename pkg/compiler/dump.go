package compiler

import (
	"bytes"
	"encoding/json"
)

// DumpAST renders a parse tree as indented JSON for tooling. Every node
// serializes as a single-key object named after its variant; field order is
// fixed by the dump structs below.
func DumpAST(program *ProgramDecl) ([]byte, error) {
	return marshalIndentNoEscape(dumpNode(program))
}

// marshalIndentNoEscape renders indented JSON without HTML-escaping, so
// angle-bracket tokens dump as "<" rather than "\u003c".
func marshalIndentNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

type literalDump struct {
	Value string `json:"value"`
}

type letDump struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

type argDump struct {
	Value any `json:"value"`
}

type callDump struct {
	Who       string `json:"who"`
	Arguments []any  `json:"arguments"`
}

type returnDump struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

type ifDump struct {
	Condition   any   `json:"condition"`
	TrueBranch  []any `json:"trueBranch"`
	FalseBranch []any `json:"falseBranch"`
}

type parameterDump struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type functionDump struct {
	Name       string          `json:"name"`
	Type       string          `json:"type"`
	Parameters []parameterDump `json:"parameters"`
	Scope      []any           `json:"scope"`
}

type programDump struct {
	Scope []any `json:"scope"`
}

func dumpScope(nodes []Node) []any {
	scope := make([]any, 0, len(nodes))
	for _, node := range nodes {
		scope = append(scope, dumpNode(node))
	}
	return scope
}

func dumpNode(node Node) any {
	switch n := node.(type) {
	case *LiteralExpr:
		return map[string]any{"LITERAL": literalDump{Value: n.Value}}

	case *LetStmt:
		return map[string]any{"LET": letDump{
			Name:  n.Name,
			Type:  n.Type,
			Value: dumpNode(n.Value),
		}}

	case *ArgStmt:
		return map[string]any{"ARG": argDump{Value: dumpNode(n.Value)}}

	case *CallStmt:
		args := make([]any, 0, len(n.Arguments))
		for _, arg := range n.Arguments {
			args = append(args, dumpNode(arg))
		}
		return map[string]any{"CALL": callDump{Who: n.Who, Arguments: args}}

	case *RetStmt:
		var value any = "none"
		if n.Value != nil {
			value = dumpNode(n.Value)
		}
		return map[string]any{"RETURN": returnDump{Type: n.Type, Value: value}}

	case *IfStmt:
		var condition any
		if n.Condition != nil {
			condition = dumpNode(n.Condition)
		}
		return map[string]any{"IF": ifDump{
			Condition:   condition,
			TrueBranch:  dumpScope(n.TrueBranch),
			FalseBranch: dumpScope(n.FalseBranch),
		}}

	case *FunctionDecl:
		params := make([]parameterDump, 0, len(n.Parameters))
		for _, param := range n.Parameters {
			params = append(params, parameterDump{Name: param.Name, Type: param.Type})
		}
		return map[string]any{"FUNCTION": functionDump{
			Name:       n.Name,
			Type:       n.Type,
			Parameters: params,
			Scope:      dumpScope(n.Scope),
		}}

	case *ProgramDecl:
		return map[string]any{"PROGRAM": programDump{Scope: dumpScope(n.Scope)}}
	}

	return nil
}
