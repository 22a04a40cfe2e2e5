// Package diag renders lkrerr.Error values for the two surfaces that
// need them (spec §10.2): a human-readable single-line form for an
// interactive terminal, and a plain batch form for piped output or the
// LSP collaborator's diagnostics push. Grounded on the teacher's
// cmd/sentra/main.go error-printing path, split out into its own
// package the way SPEC_FULL.md's package layout calls for.
package diag

import (
	"fmt"
	"io"

	"github.com/mattn/go-isatty"

	"lkr/internal/lkrerr"
)

// Renderer picks its output style once, at construction, off whether w
// is a real terminal (github.com/mattn/go-isatty), mirroring the
// teacher's REPL/formatter output switch.
type Renderer struct {
	w          io.Writer
	Interactive bool
}

func NewRenderer(w io.Writer, fd uintptr) *Renderer {
	return &Renderer{w: w, Interactive: isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)}
}

// Report writes one line of diagnostic for err (spec §10.2's
// "kind: message (file:line:col)"). The interactive form colors the
// kind prefix; the batch form never emits ANSI so redirected output
// stays grep-friendly.
func (r *Renderer) Report(err *lkrerr.Error) {
	if err == nil {
		return
	}
	if r.Interactive {
		fmt.Fprintf(r.w, "\x1b[31m%s\x1b[0m: %s", err.Kind, err.Message)
	} else {
		fmt.Fprintf(r.w, "%s: %s", err.Kind, err.Message)
	}
	if err.File != "" {
		fmt.Fprintf(r.w, " (%s:%s)", err.File, err.Span)
	}
	fmt.Fprintln(r.w)
	for _, fr := range err.Stack {
		fmt.Fprintf(r.w, "  at %s (%s)\n", fr.Function, fr.Span)
	}
}
