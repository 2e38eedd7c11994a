package compiler

import (
	"io"
	"strings"
	"testing"
)

// simpleBenchSource is a minimal program used for benchmarking the fast path.
const simpleBenchSource = `<program>
    <function name="main" type="none">
        <call who="println">
            <arg>hello</arg>
        </call>
    </function>
</program>`

// complexBenchSource exercises parameters, locals, string interpolation, and
// calls between user functions.
const complexBenchSource = `<program>
    <function name="banner" type="none">
        <call who="print">
            <arg>tagml</arg>
        </call>
        <call who="println">
            <arg>compiler benchmark</arg>
        </call>
    </function>
    <function name="show" type="none" label="string">
        <let name="count" type="number">10</let>
        <call who="print">
            <arg>${label}</arg>
        </call>
        <call who="println">
            <arg>${count}</arg>
        </call>
    </function>
    <function name="answer" type="number">
        <return>42</return>
    </function>
    <function name="main" type="none">
        <let name="greeting" type="string">hello there</let>
        <call who="banner">
        </call>
        <call who="show">
            <arg>${greeting}</arg>
        </call>
        <call who="answer">
        </call>
    </function>
</program>`

func BenchmarkTokenize(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Tokenize(complexBenchSource, "bench.tag")
	}
}

func BenchmarkParse(b *testing.B) {
	tokens := Tokenize(complexBenchSource, "bench.tag")
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		diags := NewDiagnostics(complexBenchSource, nil)
		if _, err := Parse(tokens, diags); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCompile_Simple(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, _, err := Compile(simpleBenchSource, "bench.tag", io.Discard); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCompile_Complex(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, _, err := Compile(complexBenchSource, "bench.tag", io.Discard); err != nil {
			b.Fatal(err)
		}
	}
}

func TestComplexBenchSourceCompiles(t *testing.T) {
	asmText, image, err := Compile(complexBenchSource, "bench.tag", io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if len(image) == 0 {
		t.Fatal("empty image")
	}
	for _, block := range []string{"function banner", "function show", "function answer", "function main", "entrypoint"} {
		if !strings.Contains(asmText, block) {
			t.Fatalf("missing block %q:\n%s", block, asmText)
		}
	}
}
