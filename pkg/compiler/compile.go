package compiler

import (
	"io"

	"tagml/pkg/asm"
)

// Compile runs the full pipeline on one source text: scan, parse, generate
// assembly, assemble. It returns both the intermediate assembly text and the
// final binary image. Diagnostics render to diagOut as they are found.
//
// Nothing is written to disk here; callers only persist the image once the
// whole pipeline has succeeded.
func Compile(src, file string, diagOut io.Writer) (string, []byte, error) {
	tokens := Tokenize(src, file)

	diags := NewDiagnostics(src, diagOut)
	program, err := Parse(tokens, diags)
	if err != nil {
		return "", nil, err
	}

	asmText, err := Generate(program)
	if err != nil {
		return "", nil, err
	}

	image, err := asm.Assemble(asmText)
	if err != nil {
		return "", nil, err
	}

	return asmText, image, nil
}
