package compiler

import (
	"errors"
	"strings"
	"testing"
)

func parseSource(t *testing.T, src string) (*ProgramDecl, *Diagnostics, error) {
	t.Helper()
	diags := NewDiagnostics(src, nil)
	program, err := Parse(Tokenize(src, "test.tag"), diags)
	return program, diags, err
}

func errorKinds(diags *Diagnostics) []DiagKind {
	var kinds []DiagKind
	for _, d := range diags.All() {
		if !d.Warning {
			kinds = append(kinds, d.Kind)
		}
	}
	return kinds
}

func TestParseMinimalProgram(t *testing.T) {
	program, diags, err := parseSource(t, "<program>\n</program>")
	if err != nil {
		t.Fatal(err)
	}
	if len(diags.All()) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags.All())
	}
	if len(program.Scope) != 0 {
		t.Fatalf("got scope %v, want empty", program.Scope)
	}
}

func TestParseFunctionWithCall(t *testing.T) {
	src := strings.Join([]string{
		`<program>`,
		`    <function name="greet" type="none">`,
		`        <call who="println">`,
		`            <arg>hello</arg>`,
		`        </call>`,
		`    </function>`,
		`</program>`,
	}, "\n")

	program, _, err := parseSource(t, src)
	if err != nil {
		t.Fatal(err)
	}

	if len(program.Scope) != 1 {
		t.Fatalf("got %d top-level nodes, want 1", len(program.Scope))
	}

	fn, ok := program.Scope[0].(*FunctionDecl)
	if !ok {
		t.Fatalf("got %T, want *FunctionDecl", program.Scope[0])
	}
	if fn.Name != "greet" || fn.Type != "none" {
		t.Fatalf("got function %s:%s, want greet:none", fn.Name, fn.Type)
	}

	// The call plus the implicit return of a "none" function.
	if len(fn.Scope) != 2 {
		t.Fatalf("got %d body nodes, want 2: %v", len(fn.Scope), fn.Scope)
	}

	call, ok := fn.Scope[0].(*CallStmt)
	if !ok {
		t.Fatalf("got %T, want *CallStmt", fn.Scope[0])
	}
	if call.Who != "println" || len(call.Arguments) != 1 {
		t.Fatalf("got call %s with %d args, want println with 1", call.Who, len(call.Arguments))
	}
	if got := literalValue(call.Arguments[0].Value); got != "hello" {
		t.Fatalf("got arg %q, want %q", got, "hello")
	}

	ret, ok := fn.Scope[1].(*RetStmt)
	if !ok {
		t.Fatalf("got %T, want implicit *RetStmt", fn.Scope[1])
	}
	if ret.Type != "none" || ret.Value != nil {
		t.Fatalf("implicit return should be empty and typed none, got %v", ret)
	}
}

func TestParseFunctionParameters(t *testing.T) {
	src := strings.Join([]string{
		`<program>`,
		`    <function name="add" type="number" lhs="number" rhs="number">`,
		`        <return>1</return>`,
		`    </function>`,
		`</program>`,
	}, "\n")

	program, _, err := parseSource(t, src)
	if err != nil {
		t.Fatal(err)
	}

	fn := program.Scope[0].(*FunctionDecl)
	if len(fn.Parameters) != 2 {
		t.Fatalf("got %d parameters, want 2", len(fn.Parameters))
	}
	if fn.Parameters[0] != (Parameter{"lhs", "number"}) ||
		fn.Parameters[1] != (Parameter{"rhs", "number"}) {
		t.Fatalf("got parameters %v", fn.Parameters)
	}
}

func TestParseReturnInheritsFunctionType(t *testing.T) {
	src := strings.Join([]string{
		`<program>`,
		`    <function name="answer" type="number">`,
		`        <return>42</return>`,
		`    </function>`,
		`</program>`,
	}, "\n")

	program, _, err := parseSource(t, src)
	if err != nil {
		t.Fatal(err)
	}

	fn := program.Scope[0].(*FunctionDecl)
	ret := fn.Scope[0].(*RetStmt)
	if ret.Type != "number" {
		t.Fatalf("got return type %q, want number", ret.Type)
	}
	if got := literalValue(ret.Value); got != "42" {
		t.Fatalf("got return value %q, want 42", got)
	}
}

func TestParseMissingReturn(t *testing.T) {
	src := strings.Join([]string{
		`<program>`,
		`    <function name="answer" type="number">`,
		`    </function>`,
		`</program>`,
	}, "\n")

	_, diags, err := parseSource(t, src)
	if !errors.Is(err, ErrCompileFailed) {
		t.Fatalf("got err %v, want ErrCompileFailed", err)
	}

	kinds := errorKinds(diags)
	if len(kinds) != 1 || kinds[0] != MissingReturnStatement {
		t.Fatalf("got error kinds %v, want [MissingReturnStatement]", kinds)
	}
}

func TestParseImplicitMainCall(t *testing.T) {
	src := strings.Join([]string{
		`<program>`,
		`    <function name="main" type="none">`,
		`    </function>`,
		`</program>`,
	}, "\n")

	program, _, err := parseSource(t, src)
	if err != nil {
		t.Fatal(err)
	}

	if len(program.Scope) != 2 {
		t.Fatalf("got %d top-level nodes, want function + injected call", len(program.Scope))
	}
	call, ok := program.Scope[1].(*CallStmt)
	if !ok || call.Who != "main" {
		t.Fatalf("got %v, want injected call to main", program.Scope[1])
	}
}

func TestParseNoImplicitCallWithoutMain(t *testing.T) {
	src := strings.Join([]string{
		`<program>`,
		`    <function name="helper" type="none">`,
		`    </function>`,
		`</program>`,
	}, "\n")

	program, _, err := parseSource(t, src)
	if err != nil {
		t.Fatal(err)
	}
	if len(program.Scope) != 1 {
		t.Fatalf("got %d top-level nodes, want 1 (no injected call)", len(program.Scope))
	}
}

func TestParseMismatchedClosingTag(t *testing.T) {
	src := strings.Join([]string{
		`<program>`,
		`    <function name="f" type="none">`,
		`    </program>`,
	}, "\n")

	_, diags, err := parseSource(t, src)
	if !errors.Is(err, ErrCompileFailed) {
		t.Fatalf("got err %v, want ErrCompileFailed", err)
	}

	var mismatch *Diagnostic
	for i, d := range diags.All() {
		if d.Kind == EnclosingTokenMismatch {
			mismatch = &diags.All()[i]
			break
		}
	}
	if mismatch == nil {
		t.Fatalf("no EnclosingTokenMismatch diagnostic in %v", diags.All())
	}

	// The diagnostic must point at both the opening and the closing tag.
	if len(mismatch.Issues) != 2 {
		t.Fatalf("got %d issues, want 2", len(mismatch.Issues))
	}
	if mismatch.Issues[0].Token.Text != "function" || mismatch.Issues[0].Token.Location.Line != 2 {
		t.Errorf("first issue points at %v, want the function tag on line 2", mismatch.Issues[0].Token)
	}
	if mismatch.Issues[1].Token.Text != "program" || mismatch.Issues[1].Token.Location.Line != 3 {
		t.Errorf("second issue points at %v, want the program tag on line 3", mismatch.Issues[1].Token)
	}
}

func TestParseUnclosedTag(t *testing.T) {
	src := strings.Join([]string{
		`<program>`,
		`    <function name="f" type="none">`,
	}, "\n")

	_, diags, err := parseSource(t, src)
	if !errors.Is(err, ErrCompileFailed) {
		t.Fatalf("got err %v, want ErrCompileFailed", err)
	}

	found := false
	for _, kind := range errorKinds(diags) {
		if kind == EnclosingTokenMissing {
			found = true
		}
	}
	if !found {
		t.Fatalf("no EnclosingTokenMissing in %v", errorKinds(diags))
	}
}

func TestParseUnterminatedOpeningTag(t *testing.T) {
	_, diags, err := parseSource(t, `<program`)
	if !errors.Is(err, ErrCompileFailed) {
		t.Fatalf("got err %v, want ErrCompileFailed", err)
	}

	kinds := errorKinds(diags)
	if len(kinds) != 1 || kinds[0] != UnexpectedEndOfFile {
		t.Fatalf("got error kinds %v, want [UnexpectedEndOfFile]", kinds)
	}
}

func TestParseTruncatedClosingTag(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"cut after slash", "<program>\n</"},
		{"cut after keyword", "<program>\n</program"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, diags, err := parseSource(t, tc.src)
			if !errors.Is(err, ErrCompileFailed) {
				t.Fatalf("got err %v, want ErrCompileFailed", err)
			}

			kinds := errorKinds(diags)
			if len(kinds) != 1 || kinds[0] != UnexpectedEndOfFile {
				t.Fatalf("got error kinds %v, want [UnexpectedEndOfFile]", kinds)
			}
		})
	}
}

func TestParseRecoversAndReportsMultipleErrors(t *testing.T) {
	src := strings.Join([]string{
		`<program>`,
		`    <let name="x">10</let>`,
		`    <let type="number">11</let>`,
		`</program>`,
	}, "\n")

	_, diags, err := parseSource(t, src)
	if !errors.Is(err, ErrCompileFailed) {
		t.Fatalf("got err %v, want ErrCompileFailed", err)
	}

	if kinds := errorKinds(diags); len(kinds) != 2 {
		t.Fatalf("got %d errors %v, want 2 (one per broken let)", len(kinds), kinds)
	}
}

func TestParseMissingRequiredProperty(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"call without who", "<program>\n    <call who>\n    </call>\n</program>"},
		{"function without name", "<program>\n    <function type=\"none\">\n    </function>\n</program>"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := parseSource(t, tc.src)
			if !errors.Is(err, ErrCompileFailed) {
				t.Fatalf("got err %v, want ErrCompileFailed", err)
			}
		})
	}
}

func TestParsePropertyPositionWarning(t *testing.T) {
	src := strings.Join([]string{
		`<program>`,
		`    <function type="none" name="f">`,
		`    </function>`,
		`</program>`,
	}, "\n")

	program, diags, err := parseSource(t, src)
	if err != nil {
		t.Fatalf("position warnings must not fail the parse: %v", err)
	}

	warnings := 0
	for _, d := range diags.All() {
		if d.Warning && d.Kind == UnexpectedTokenPosition {
			warnings++
		}
	}
	if warnings != 2 {
		t.Fatalf("got %d position warnings, want 2 (name and type both misplaced)", warnings)
	}

	// The values are still used despite the warnings.
	fn := program.Scope[0].(*FunctionDecl)
	if fn.Name != "f" || fn.Type != "none" {
		t.Fatalf("got function %s:%s, want f:none", fn.Name, fn.Type)
	}
	if len(fn.Parameters) != 0 {
		t.Fatalf("misplaced name/type must not become parameters: %v", fn.Parameters)
	}
}

func TestParseIfElse(t *testing.T) {
	src := strings.Join([]string{
		`<program>`,
		`    <function name="f" type="none">`,
		`        <if condition="1">`,
		`            <call who="println">`,
		`                <arg>yes</arg>`,
		`            </call>`,
		`        </if>`,
		`        <else>`,
		`            <call who="println">`,
		`                <arg>no</arg>`,
		`            </call>`,
		`        </else>`,
		`    </function>`,
		`</program>`,
	}, "\n")

	program, _, err := parseSource(t, src)
	if err != nil {
		t.Fatal(err)
	}

	fn := program.Scope[0].(*FunctionDecl)
	ifStmt, ok := fn.Scope[0].(*IfStmt)
	if !ok {
		t.Fatalf("got %T, want *IfStmt", fn.Scope[0])
	}
	if got := literalValue(ifStmt.Condition); got != "1" {
		t.Fatalf("got condition %q, want 1", got)
	}
	if len(ifStmt.TrueBranch) != 1 || len(ifStmt.FalseBranch) != 1 {
		t.Fatalf("got true=%d false=%d, want 1 and 1",
			len(ifStmt.TrueBranch), len(ifStmt.FalseBranch))
	}
}

func TestParseIfWithoutElse(t *testing.T) {
	src := strings.Join([]string{
		`<program>`,
		`    <function name="f" type="none">`,
		`        <if condition="1">`,
		`        </if>`,
		`    </function>`,
		`</program>`,
	}, "\n")

	program, _, err := parseSource(t, src)
	if err != nil {
		t.Fatal(err)
	}

	fn := program.Scope[0].(*FunctionDecl)
	ifStmt := fn.Scope[0].(*IfStmt)
	if len(ifStmt.FalseBranch) != 0 {
		t.Fatalf("got false branch %v, want empty", ifStmt.FalseBranch)
	}
}

func TestParseBareReturn(t *testing.T) {
	src := strings.Join([]string{
		`<program>`,
		`    <function name="f" type="none">`,
		`        <return></return>`,
		`    </function>`,
		`</program>`,
	}, "\n")

	program, _, err := parseSource(t, src)
	if err != nil {
		t.Fatal(err)
	}

	fn := program.Scope[0].(*FunctionDecl)
	if len(fn.Scope) != 1 {
		t.Fatalf("explicit return present, no implicit one expected: %v", fn.Scope)
	}
	ret := fn.Scope[0].(*RetStmt)
	if ret.Value != nil {
		t.Fatalf("got value %v, want none", ret.Value)
	}
}
