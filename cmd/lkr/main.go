// cmd/lkr/main.go
package main

import (
	"context"
	"fmt"
	"os"

	"lkr/internal/ast"
	"lkr/internal/bytecode"
	"lkr/internal/checker"
	"lkr/internal/compiler"
	"lkr/internal/config"
	"lkr/internal/diag"
	"lkr/internal/lexer"
	"lkr/internal/lkrerr"
	"lkr/internal/observability"
	"lkr/internal/parser"
	"lkr/internal/repl"
	"lkr/internal/runtime"
	"lkr/internal/token"
	"lkr/internal/vm"
)

const version = "0.1.0"

// commandAliases mirrors the teacher's short-form alias table (spec
// §10.4), trimmed to the subcommands this tree implements.
var commandAliases = map[string]string{
	"r": "run",
	"i": "repl",
	"p": "parse",
	"c": "compile",
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		os.Exit(1)
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}
	rest := args[1:]

	renderer := diag.NewRenderer(os.Stderr, os.Stderr.Fd())

	var err error
	switch cmd {
	case "run":
		err = runCmd(rest)
	case "parse":
		err = parseCmd(rest)
	case "compile":
		err = compileCmd(rest)
	case "repl":
		repl.Start(os.Stdin, os.Stdout)
	case "version":
		fmt.Println("lkr " + version)
	case "help", "-h", "--help":
		showUsage()
	default:
		fmt.Fprintf(os.Stderr, "lkr: unknown command %q\n", cmd)
		showUsage()
		os.Exit(1)
	}

	if err != nil {
		if le, ok := err.(*lkrerr.Error); ok {
			renderer.Report(le)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`lkr - the lkr language CLI

Usage:
  lkr run <file>      compile and execute a program
  lkr parse <file>    print the parsed/folded AST
  lkr compile <file>  print the compiled instruction listing
  lkr repl            start an interactive session
  lkr version
`)
}

func runCmd(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: lkr run <file>")
	}
	fn, err := compileFile(args[0])
	if err != nil {
		return err
	}

	if _, err := config.Load(config.RunConfig{PackedDispatch: true}); err != nil {
		return err
	}

	rt := runtime.New(context.Background())
	defer rt.Shutdown()

	machine := vm.New(rt)
	rt.Bootstrap(machine.SetGlobal)

	if _, err := machine.Run(fn); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, observability.Global.Summary())
	return nil
}

func parseCmd(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: lkr parse <file>")
	}
	src, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	stmts, err := parseSource(args[0], string(src))
	if err != nil {
		return err
	}
	for _, s := range stmts {
		fmt.Printf("%T %s\n", s, s.Span())
	}
	return nil
}

func compileCmd(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: lkr compile <file>")
	}
	fn, err := compileFile(args[0])
	if err != nil {
		return err
	}
	for i, ins := range fn.Code {
		fmt.Printf("%4d  %s\n", i, ins.Op)
	}
	return nil
}

func parseSource(path, src string) ([]ast.Stmt, error) {
	lex := lexer.New(src)
	tokens := lex.Scan()
	stmts, err := parser.ParseProgram(tokens, src)
	if err != nil {
		if pe, ok := err.(parser.ParseError); ok {
			return nil, lkrerr.New(lkrerr.ParseError, path, pe.Span, "%s", pe.Message)
		}
		return nil, err
	}
	return stmts, nil
}

func compileFile(path string) (*bytecode.Function, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	stmts, err := parseSource(path, string(src))
	if err != nil {
		return nil, err
	}

	if err := checker.New().CheckProgram(stmts); err != nil {
		if te, ok := err.(*checker.TypeError); ok {
			return nil, lkrerr.New(lkrerr.TypeError, path, te.Span, "%s", te.Message)
		}
		return nil, err
	}

	fn, err := compiler.New().CompileProgram(stmts)
	if err != nil {
		return nil, lkrerr.New(lkrerr.CompileError, path, token.Span{}, "%s", err.Error())
	}
	return fn, nil
}
