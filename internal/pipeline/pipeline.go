// Package pipeline runs the full lex → parse → resolve → validate chain over
// an ordered set of sources. Per-file lexing and parsing are pure functions
// of the input text, so they run on a bounded worker pool; results are
// collected by input position so output order always equals input order,
// which is the deterministic tie-break the resolver depends on.
package pipeline

import (
	"context"
	"errors"
	"sync"

	"mdml/internal/ast"
	"mdml/internal/lexer"
	"mdml/internal/parser"
	"mdml/internal/resolver"
	"mdml/internal/validator"
)

const defaultWorkers = 4

// Source is one input document: caller-supplied identifier plus content.
// The ID is used only for diagnostics, never for lookup.
type Source struct {
	ID      string
	Content string
}

// Options configures a pipeline run.
type Options struct {
	Workers int
	Strict  bool
	Project *ast.ProjectInfo
}

// Run processes the sources and returns the merged, validated Document.
// Imperfect input is the expected common case: content problems surface as
// diagnostics on the document, never as the returned error. The error covers
// only failure to run at all (cancelled context).
func Run(ctx context.Context, sources []Source, opts Options) (*ast.Document, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	if workers > len(sources) {
		workers = len(sources)
	}

	parsed := make([]*ast.ParsedFile, len(sources))
	jobs := make(chan int, len(sources))
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				src := sources[i]
				parsed[i] = parser.Parse(lexer.Lex(src.Content, src.ID), src.ID)
			}
		}()
	}
	for i := range sources {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, errors.Join(errors.New("pipeline cancelled"), err)
	}

	doc := resolver.Resolve(parsed, opts.Project)
	errs, warns := validator.Validate(doc, validator.Options{Strict: opts.Strict})
	doc.Errors = append(doc.Errors, errs...)
	doc.Warnings = append(doc.Warnings, warns...)
	return doc, nil
}
