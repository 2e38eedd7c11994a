package main

import (
	"flag"
	"fmt"
	"os"

	"tagml/pkg/compiler"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		file    string
		dump    string
		output  string
		noColor bool
	)

	flag.StringVar(&file, "f", "", "source file to compile")
	flag.StringVar(&file, "file", "", "source file to compile")
	flag.StringVar(&dump, "d", "", "dump an intermediate stage (tokens or ast) and stop")
	flag.StringVar(&dump, "dump", "", "dump an intermediate stage (tokens or ast) and stop")
	flag.StringVar(&output, "o", "out.bin", "binary output filename")
	flag.StringVar(&output, "output", "out.bin", "binary output filename")
	flag.BoolVar(&noColor, "no-color", false, "disable colored diagnostics")
	flag.Parse()

	if noColor {
		compiler.ColorEnabled = false
	}

	if file == "" {
		fmt.Fprintln(os.Stderr, "missing required flag: -f/--file <path>")
		flag.Usage()
		return 1
	}

	data, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read error:", err)
		return 1
	}
	src := string(data)

	switch dump {
	case "tokens":
		out, err := compiler.DumpTokens(compiler.Tokenize(src, file))
		if err != nil {
			fmt.Fprintln(os.Stderr, "dump error:", err)
			return 1
		}
		fmt.Println(string(out))
		return 0

	case "ast":
		tokens := compiler.Tokenize(src, file)
		diags := compiler.NewDiagnostics(src, os.Stdout)
		program, err := compiler.Parse(tokens, diags)
		if err != nil {
			fmt.Println(err)
			return 1
		}
		out, err := compiler.DumpAST(program)
		if err != nil {
			fmt.Fprintln(os.Stderr, "dump error:", err)
			return 1
		}
		fmt.Println(string(out))
		return 0

	case "":
		// Full pipeline.

	default:
		fmt.Fprintf(os.Stderr, "unknown dump stage %q: want tokens or ast\n", dump)
		return 1
	}

	_, image, err := compiler.Compile(src, file, os.Stdout)
	if err != nil {
		fmt.Println(err)
		return 1
	}

	// The output file only comes into existence once every stage has
	// succeeded; a failed compile never leaves a partial image behind.
	if err := os.WriteFile(output, image, 0o644); err != nil {
		fmt.Fprintln(os.Stderr, "write error:", err)
		return 1
	}

	return 0
}
