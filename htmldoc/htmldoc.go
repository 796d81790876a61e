// Package htmldoc implements extract.Page over a static HTML snapshot, for
// offline inspection of saved pages and for tests.
package htmldoc

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/use-agent/postwatch/extract"
)

// Document is a parsed HTML snapshot. It is safe for concurrent reads.
type Document struct {
	root *goquery.Selection
}

// Parse reads and parses an HTML document.
func Parse(r io.Reader) (*Document, error) {
	node, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("htmldoc: parse: %w", err)
	}
	return &Document{root: goquery.NewDocumentFromNode(node).Selection}, nil
}

// ParseString parses an HTML document held in memory.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

func (d *Document) Elements(ctx context.Context, selector string) ([]extract.Element, error) {
	return find(ctx, d.root, selector)
}

func (d *Document) Count(ctx context.Context, selector string) (int, error) {
	els, err := find(ctx, d.root, selector)
	return len(els), err
}

// element wraps a single-node selection.
type element struct {
	sel *goquery.Selection
}

func (e *element) Elements(ctx context.Context, selector string) ([]extract.Element, error) {
	return find(ctx, e.sel, selector)
}

func (e *element) Count(ctx context.Context, selector string) (int, error) {
	els, err := find(ctx, e.sel, selector)
	return len(els), err
}

func (e *element) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return e.sel.Text(), nil
}

func (e *element) Attribute(ctx context.Context, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	v, ok := e.sel.Attr(name)
	return v, ok, nil
}

func (e *element) Parent(ctx context.Context) (extract.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := e.sel.Parent()
	if p.Length() == 0 {
		return nil, fmt.Errorf("htmldoc: element has no parent")
	}
	return &element{sel: p}, nil
}

// find compiles selector strictly; goquery's Find would silently match
// nothing on a malformed selector.
func find(ctx context.Context, scope *goquery.Selection, selector string) ([]extract.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("htmldoc: invalid selector %q: %w", selector, err)
	}
	matches := scope.FindMatcher(m)
	out := make([]extract.Element, 0, matches.Length())
	matches.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &element{sel: s})
	})
	return out, nil
}
