// Package lspserver is the thin, out-of-scope-internals LSP collaborator
// stub named by spec §6/§1 ("a presentation layer may exist; its
// internals are out of scope for this specification"). It accepts one
// websocket connection per document editor, re-parses+re-checks on every
// change notification and pushes the first lkrerr.Error it hits back
// over the socket via internal/diag's batch renderer — full
// textDocument/* method coverage is deliberately not attempted here,
// only enough to prove the collaborator boundary spec §6 describes.
// Transport grounded on github.com/gorilla/websocket, the dependency
// SPEC_FULL.md's domain stack table assigns to this package.
package lspserver

import (
	"bytes"
	"net/http"

	"github.com/gorilla/websocket"

	"lkr/internal/checker"
	"lkr/internal/diag"
	"lkr/internal/lexer"
	"lkr/internal/lkrerr"
	"lkr/internal/parser"
	"lkr/internal/token"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// didChange is the one notification shape this stub understands: the
// full text of a document after an edit.
type didChange struct {
	URI  string `json:"uri"`
	Text string `json:"text"`
}

type diagnostic struct {
	URI     string `json:"uri"`
	Message string `json:"message"`
}

// Handler upgrades an HTTP request to a websocket connection and serves
// one editor session until it disconnects.
func Handler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		var msg didChange
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if d := checkDocument(msg.URI, msg.Text); d != nil {
			conn.WriteJSON(d)
		} else {
			conn.WriteJSON(diagnostic{URI: msg.URI})
		}
	}
}

// checkDocument runs the lexer/parser/checker pipeline over one
// document's full text and reports the first error found, if any.
func checkDocument(uri, src string) *diagnostic {
	lex := lexer.New(src)
	tokens := lex.Scan()
	stmts, err := parser.ParseProgram(tokens, src)
	if err != nil {
		return &diagnostic{URI: uri, Message: renderErr(uri, err)}
	}
	if err := checker.New().CheckProgram(stmts); err != nil {
		return &diagnostic{URI: uri, Message: renderErr(uri, err)}
	}
	return nil
}

// renderErr reuses internal/diag's batch renderer so an LSP diagnostic
// and a CLI-reported error read identically.
func renderErr(uri string, err error) string {
	var le *lkrerr.Error
	switch e := err.(type) {
	case *checker.TypeError:
		le = lkrerr.New(lkrerr.TypeError, uri, e.Span, "%s", e.Message)
	case parser.ParseError:
		le = lkrerr.New(lkrerr.ParseError, uri, e.Span, "%s", e.Message)
	default:
		le = lkrerr.New(lkrerr.ParseError, uri, token.Span{}, "%s", err.Error())
	}
	var buf bytes.Buffer
	diag.NewRenderer(&buf, 0).Report(le)
	return buf.String()
}
