// Package repl implements the `lkr repl` subcommand (spec §10.4):
// read-eval-print against the register VM, persisting the VM and its
// global environment across lines the way the teacher's REPL persisted
// its chunk/VM pair. Adapted to the new lexer/parser/checker/compiler/
// vm stack in place of the teacher's since-removed tree-walking one.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"lkr/internal/checker"
	"lkr/internal/compiler"
	"lkr/internal/diag"
	"lkr/internal/lexer"
	"lkr/internal/lkrerr"
	"lkr/internal/parser"
	"lkr/internal/runtime"
	"lkr/internal/value"
	"lkr/internal/vm"
)

// Start runs the interactive loop against in/out until EOF or "exit".
func Start(in io.Reader, out io.Writer) {
	fmt.Fprintln(out, "lkr repl | type 'exit' to quit")
	scanner := bufio.NewScanner(in)

	rt := runtime.New(context.Background())
	defer rt.Shutdown()

	machine := vm.New(rt)
	rt.Bootstrap(machine.SetGlobal)
	renderer := diag.NewRenderer(out, 0)

	for {
		fmt.Fprint(out, ">>> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if line == "exit" {
			break
		}
		if line == "" {
			continue
		}
		result, err := evalLine(machine, line)
		if err != nil {
			if le, ok := err.(*lkrerr.Error); ok {
				renderer.Report(le)
			} else {
				fmt.Fprintln(out, err)
			}
			continue
		}
		if !result.IsNil() {
			fmt.Fprintln(out, result.String())
		}
	}
}

func evalLine(machine *vm.VM, line string) (result value.Val, err error) {
	lex := lexer.New(line)
	tokens := lex.Scan()

	stmts, perr := parser.ParseProgram(tokens, line)
	if perr != nil {
		if pe, ok := perr.(parser.ParseError); ok {
			return value.Nil(), lkrerr.New(lkrerr.ParseError, "<repl>", pe.Span, "%s", pe.Message)
		}
		return value.Nil(), perr
	}

	if cerr := checker.New().CheckProgram(stmts); cerr != nil {
		if te, ok := cerr.(*checker.TypeError); ok {
			return value.Nil(), lkrerr.New(lkrerr.TypeError, "<repl>", te.Span, "%s", te.Message)
		}
		return value.Nil(), cerr
	}

	fn, cerr := compiler.New().CompileProgram(stmts)
	if cerr != nil {
		return value.Nil(), cerr
	}

	return machine.Run(fn)
}
