package server

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/tinyc/compiler"
	"github.com/chazu/tinyc/pkg/bytecode"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "tinyc-lsp"

var log = commonlog.GetLogger("tinyc.lsp")

// LspServer bridges LSP editor features to the compiler via Worker.
type LspServer struct {
	worker *Worker

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server compiling with the given widths.
func NewLSP(sizes compiler.Sizes) *LspServer {
	s := &LspServer{
		worker:  NewWorker(NewWorkspace(sizes)),
		docs:    make(map[string]string),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
		TextDocumentReferences: s.textDocumentReferences,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("tinyc LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.ReferencesProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			text := whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	s.worker.Do(func(ws *Workspace) interface{} {
		ws.Close(string(uri))
		return nil
	})

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	uri := string(params.TextDocument.URI)

	s.mu.Lock()
	text, ok := s.docs[uri]
	s.mu.Unlock()

	if !ok {
		return nil, nil
	}

	prefix := extractPrefix(text, params.Position)
	if prefix == "" {
		return nil, nil
	}

	return s.worker.Do(func(ws *Workspace) interface{} {
		return s.complete(ws, uri, prefix)
	})
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	uri := string(params.TextDocument.URI)

	s.mu.Lock()
	text, ok := s.docs[uri]
	s.mu.Unlock()

	if !ok {
		return nil, nil
	}

	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}

	result, err := s.worker.Do(func(ws *Workspace) interface{} {
		return s.hover(ws, uri, word)
	})
	if err != nil || result == nil {
		return nil, nil
	}

	return result.(*protocol.Hover), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := string(params.TextDocument.URI)

	s.mu.Lock()
	text, ok := s.docs[uri]
	s.mu.Unlock()

	if !ok {
		return nil, nil
	}

	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}

	result, err := s.worker.Do(func(ws *Workspace) interface{} {
		return s.definition(ws, uri, word)
	})
	if err != nil || result == nil {
		return nil, nil
	}

	return result, nil
}

func (s *LspServer) textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	uri := string(params.TextDocument.URI)

	s.mu.Lock()
	text, ok := s.docs[uri]
	s.mu.Unlock()

	if !ok {
		return nil, nil
	}

	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}

	result, err := s.worker.Do(func(ws *Workspace) interface{} {
		return s.references(ws, uri, word)
	})
	if err != nil || result == nil {
		return nil, nil
	}

	return result.([]protocol.Location), nil
}

// --- Workspace-backed logic (called on worker goroutine) ---

func (s *LspServer) complete(ws *Workspace, uri, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem

	add := func(label, detail string, kind protocol.CompletionItemKind) {
		if !strings.HasPrefix(label, prefix) {
			return
		}
		labelCopy := label
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &labelCopy,
		})
	}

	// Keywords
	for _, kw := range compiler.Keywords() {
		add(kw, "keyword", protocol.CompletionItemKindKeyword)
	}

	// Functions of the last good compile
	prog := programOf(ws, uri)
	userPrint := false
	if prog != nil {
		for _, name := range prog.FunctionNames() {
			add(name, fmt.Sprintf("function (%d parameters)", prog.Arity[name]), protocol.CompletionItemKindFunction)
			userPrint = userPrint || name == "print"
		}
	}
	if !userPrint {
		add("print", "built-in", protocol.CompletionItemKindFunction)
	}

	return items
}

func (s *LspServer) hover(ws *Workspace, uri, word string) *protocol.Hover {
	var b strings.Builder

	prog := programOf(ws, uri)
	if entry, ok := lookupFunction(prog, word); ok {
		fmt.Fprintf(&b, "**%s**(%d parameters)\n\n", word, prog.Arity[word])
		fmt.Fprintf(&b, "entry %04d, defined on line %d", entry, prog.FuncLines[word])
		if word == "main" {
			b.WriteString("\n\nprogram entry point")
		}
	} else if isKeyword(word) {
		fmt.Fprintf(&b, "**%s** keyword", word)
	} else if word == "print" {
		b.WriteString("**print**(value) built-in\n\nPrints a string literal verbatim, or a value followed by a newline.")
	} else {
		return nil
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

func (s *LspServer) definition(ws *Workspace, uri, word string) []protocol.Location {
	prog := programOf(ws, uri)
	if _, ok := lookupFunction(prog, word); !ok {
		return nil
	}

	line := prog.FuncLines[word] - 1
	char := 0
	src := ""
	if doc := ws.Get(uri); doc != nil {
		lines := strings.Split(doc.Text, "\n")
		if line >= 0 && line < len(lines) {
			src = lines[line]
			if i := indexWord(src, word); i >= 0 {
				char = i
			}
		}
	}

	return []protocol.Location{{
		URI:   protocol.DocumentUri(uri),
		Range: lineRange(src, line, char, char+len(word)),
	}}
}

// references reports each call site of a function, one location per
// source line that calls it.
func (s *LspServer) references(ws *Workspace, uri, word string) []protocol.Location {
	prog := programOf(ws, uri)
	entry, ok := lookupFunction(prog, word)
	if !ok {
		return nil
	}

	seen := make(map[int]bool)
	var lines []int
	for i, in := range prog.Code {
		if in.Op != bytecode.OpCall || int(in.Arg) != entry {
			continue
		}
		if line := prog.LineAt(i); line > 0 && !seen[line] {
			seen[line] = true
			lines = append(lines, line)
		}
	}
	sort.Ints(lines)

	var text []string
	if doc := ws.Get(uri); doc != nil {
		text = strings.Split(doc.Text, "\n")
	}

	var locations []protocol.Location
	for _, line := range lines {
		char := 0
		src := ""
		if line-1 < len(text) {
			src = text[line-1]
			if i := indexWord(src, word); i >= 0 {
				char = i
			}
		}
		locations = append(locations, protocol.Location{
			URI:   protocol.DocumentUri(uri),
			Range: lineRange(src, line-1, char, char+len(word)),
		})
	}
	return locations
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	result, err := s.worker.Do(func(ws *Workspace) interface{} {
		return ws.Update(string(uri), text).Err
	})
	if err != nil {
		log.Errorf("compiling %s: %s", uri, err)
		return
	}

	var compileErr error
	if result != nil {
		compileErr = result.(error)
	}

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnosticsFor(compileErr, text),
	})
}

// diagnosticsFor converts a compile error in text into at most one
// diagnostic, positioned at the offending token.
func diagnosticsFor(err error, text string) []protocol.Diagnostic {
	if err == nil {
		return []protocol.Diagnostic{}
	}

	line, char := 0, 0
	msg := err.Error()
	var ce *compiler.Error
	if errors.As(err, &ce) {
		line, char = ce.Line-1, ce.Column-1
		msg = ce.Msg
	}
	if line < 0 {
		line = 0
	}
	if char < 0 {
		char = 0
	}

	src := ""
	if lines := strings.Split(text, "\n"); line < len(lines) {
		src = lines[line]
	}
	end := char + 1
	if char < len(src) {
		_, w := utf8.DecodeRuneInString(src[char:])
		end = char + w
	}

	severity := protocol.DiagnosticSeverityError
	source := lspName
	return []protocol.Diagnostic{{
		Range:    lineRange(src, line, char, end),
		Severity: &severity,
		Source:   &source,
		Message:  msg,
	}}
}

// --- Helpers ---

func programOf(ws *Workspace, uri string) *bytecode.Program {
	if doc := ws.Get(uri); doc != nil {
		return doc.Program
	}
	return nil
}

func lookupFunction(prog *bytecode.Program, name string) (int, bool) {
	if prog == nil {
		return 0, false
	}
	entry, ok := prog.Functions[name]
	return entry, ok
}

func isKeyword(word string) bool {
	for _, kw := range compiler.Keywords() {
		if kw == word {
			return true
		}
	}
	return false
}

// lineRange builds a range on one line from byte offsets into src, the
// text of that line. LSP characters count UTF-16 code units.
func lineRange(src string, line, start, end int) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(utf16Column(src, start))},
		End:   protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(utf16Column(src, end))},
	}
}

// utf16Column converts a byte offset in src to UTF-16 code units. Offsets
// past the end count one unit per missing byte.
func utf16Column(src string, off int) int {
	extra := 0
	if off > len(src) {
		extra = off - len(src)
		off = len(src)
	}
	n := 0
	for _, r := range src[:off] {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n + extra
}

// byteColumn converts an LSP character position on src to a byte offset,
// clamped to the end of the line.
func byteColumn(src string, pos protocol.Position) int {
	if int(pos.Character) >= utf16Column(src, len(src)) {
		return len(src)
	}
	return protocol.Position{Character: pos.Character}.IndexIn(src)
}

// indexWord finds word in line as a whole identifier.
func indexWord(line, word string) int {
	for from := 0; from <= len(line)-len(word); {
		i := strings.Index(line[from:], word)
		if i < 0 {
			return -1
		}
		i += from
		end := i + len(word)
		if (i == 0 || !isIdentChar(rune(line[i-1]))) && (end == len(line) || !isIdentChar(rune(line[end]))) {
			return i
		}
		from = i + 1
	}
	return -1
}

// isIdentChar matches the lexer: identifiers are ASCII.
func isIdentChar(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '_'
}

// --- Text extraction helpers ---

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := byteColumn(line, pos)

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 && isIdentChar(rune(line[start-1])) {
		start--
	}

	if start == col {
		return ""
	}

	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := byteColumn(line, pos)

	// Find start
	start := col
	for start > 0 && isIdentChar(rune(line[start-1])) {
		start--
	}

	// Find end
	end := col
	for end < len(line) && isIdentChar(rune(line[end])) {
		end++
	}

	if start == end {
		return ""
	}

	return line[start:end]
}

func boolPtr(b bool) *bool {
	return &b
}
