package server

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/chazu/tinyc/compiler"
	"github.com/chazu/tinyc/pkg/bytecode"
)

// request represents a unit of work to be executed on the worker goroutine.
type request struct {
	fn   func(*Workspace) interface{}
	done chan result
}

// result holds the return value from a workspace operation.
type result struct {
	value interface{}
	err   error
}

// Document is the compiled state of one open source file.
type Document struct {
	Text string

	// Program is the last successful compilation, kept while the text has
	// errors so completion and navigation keep working.
	Program *bytecode.Program

	// Err is the compile error for Text, nil when it compiles.
	Err error
}

// Workspace holds the documents known to the language server. Only the
// worker goroutine touches it.
type Workspace struct {
	docs  map[string]*Document
	sizes compiler.Sizes
}

// NewWorkspace creates an empty workspace compiling with sizes.
func NewWorkspace(sizes compiler.Sizes) *Workspace {
	return &Workspace{
		docs:  make(map[string]*Document),
		sizes: sizes,
	}
}

// Update replaces the text of uri and recompiles it.
func (ws *Workspace) Update(uri, text string) *Document {
	doc, ok := ws.docs[uri]
	if !ok {
		doc = &Document{}
		ws.docs[uri] = doc
	}
	doc.Text = text

	prog, err := compiler.Compile(text, compiler.WithSizes(ws.sizes))
	doc.Err = err
	if err == nil {
		doc.Program = prog
	}
	return doc
}

// Get returns the document for uri, or nil.
func (ws *Workspace) Get(uri string) *Document {
	return ws.docs[uri]
}

// Close forgets uri.
func (ws *Workspace) Close(uri string) {
	delete(ws.docs, uri)
}

// URIs returns the open documents in sorted order.
func (ws *Workspace) URIs() []string {
	uris := make([]string, 0, len(ws.docs))
	for uri := range ws.docs {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	return uris
}

// Worker serializes all workspace access through a single goroutine.
// LSP handlers run concurrently; compilation and lookups go through the
// worker to avoid data races.
type Worker struct {
	ws       *Workspace
	requests chan request
	quit     chan struct{}
	stopOnce sync.Once
}

// ErrWorkerStopped is returned by Do once Stop has been called.
var ErrWorkerStopped = errors.New("worker stopped")

// NewWorker creates a Worker and starts the processing goroutine.
func NewWorker(ws *Workspace) *Worker {
	w := &Worker{
		ws:       ws,
		requests: make(chan request, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

// loop processes requests sequentially on a dedicated goroutine.
func (w *Worker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs a function on the workspace, recovering from panics.
func (w *Worker) execute(fn func(*Workspace) interface{}) result {
	var res result
	func() {
		defer func() {
			if r := recover(); r != nil {
				res.err = fmt.Errorf("%v", r)
			}
		}()
		res.value = fn(w.ws)
	}()
	return res
}

// Do submits a function for execution on the worker goroutine and blocks
// until it completes. Returns the result and any error (including panics),
// or ErrWorkerStopped when the worker is stopped before fn finishes.
func (w *Worker) Do(fn func(*Workspace) interface{}) (interface{}, error) {
	select {
	case <-w.quit:
		return nil, ErrWorkerStopped
	default:
	}

	req := request{
		fn:   fn,
		done: make(chan result, 1),
	}
	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, ErrWorkerStopped
	}

	select {
	case res := <-req.done:
		return res.value, res.err
	case <-w.quit:
		return nil, ErrWorkerStopped
	}
}

// Stop shuts down the worker goroutine. It is safe to call more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
}
