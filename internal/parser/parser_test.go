package parser

import (
	"fmt"
	"testing"

	"lkr/internal/ast"
	"lkr/internal/lexer"
)

// Test helper to parse a string and report whether it succeeded.
func parseString(input string) (stmts []ast.Stmt, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("parser panic: %v", r)
			}
			stmts = nil
		}
	}()
	scanner := lexer.New(input)
	return ParseProgram(scanner.Scan(), input)
}

func assertParseSuccess(t *testing.T, input, description string) []ast.Stmt {
	stmts, err := parseString(input)
	if err != nil {
		t.Errorf("%s: parsing failed: %v", description, err)
		return nil
	}
	if stmts == nil {
		t.Errorf("%s: parsing returned no statements", description)
	}
	return stmts
}

func assertParseError(t *testing.T, input, description string) {
	_, err := parseString(input)
	if err == nil {
		t.Errorf("%s: expected parsing to fail but it succeeded", description)
	}
}

func TestLetStatements(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		shouldPass bool
	}{
		{"simple let", `let x = 5;`, true},
		{"let with string", `let s = "hi";`, true},
		{"let with float", `let f = 1.5;`, true},
		{"multiple lets", `let x = 5; let y = 10;`, true},
		{"let with expr", `let x = 1 + 2 * 3;`, true},
		{"missing equals", `let x 5;`, false},
		{"missing value", `let x = ;`, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if test.shouldPass {
				assertParseSuccess(t, test.input, test.name)
			} else {
				assertParseError(t, test.input, test.name)
			}
		})
	}
}

func TestFunctionDeclarations(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		shouldPass bool
	}{
		{"simple function", `fn test() { return 1; }`, true},
		{"positional params", `fn add(a, b) { return a + b; }`, true},
		{"named param with default", `fn greet(name: String = "x") { return name; }`, true},
		{"arrow closure literal", `let f = fn(x) => x * 2;`, true},
		{"pipe closure literal", `let f = |x| x * 2;`, true},
		{"missing closing paren", `fn test( { return 1; }`, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if test.shouldPass {
				assertParseSuccess(t, test.input, test.name)
			} else {
				assertParseError(t, test.input, test.name)
			}
		})
	}
}

func TestStructAndCallSyntax(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		shouldPass bool
	}{
		{"struct decl", `struct Point { x: Int, y: Int }`, true},
		{"struct literal", `let p = Point{x: 1, y: 2};`, true},
		{"positional call", `let r = f(1, 2);`, true},
		{"named call", `let r = f(a: 1, b: 2);`, true},
		{"mixed positional then named", `let r = f(1, b: 2);`, true},
		{"named before positional is rejected", `let r = f(a: 1, 2);`, false},
		{"unterminated struct", `struct Point { x: Int`, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if test.shouldPass {
				assertParseSuccess(t, test.input, test.name)
			} else {
				assertParseError(t, test.input, test.name)
			}
		})
	}
}

func TestMatchAndSelectExpressions(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		shouldPass bool
	}{
		{"match with wildcard", `let r = match x { 1 => "a", _ => "b" };`, true},
		{"match with guard", `let r = match x { n if n > 0 => "pos", _ => "other" };`, true},
		{"select with default", `let r = select { default => 1 };`, true},
		{"missing match arrow", `let r = match x { 1 "a" };`, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if test.shouldPass {
				assertParseSuccess(t, test.input, test.name)
			} else {
				assertParseError(t, test.input, test.name)
			}
		})
	}
}

func TestRangeExpressions(t *testing.T) {
	stmts := assertParseSuccess(t, `for i in 1..=10 { let x = i; }`, "inclusive range for-loop")
	if len(stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(stmts))
	}
	if _, ok := stmts[0].(*ast.ForRange); !ok {
		t.Fatalf("expected *ast.ForRange, got %T", stmts[0])
	}
}

func TestParseErrorReportsSpan(t *testing.T) {
	_, err := parseString(`let x = `)
	if err == nil {
		t.Fatal("expected a parse error")
	}
	if _, ok := err.(ParseError); !ok {
		t.Fatalf("expected ParseError, got %T", err)
	}
}
