package scraper

import (
	"context"

	"github.com/go-rod/rod"

	"github.com/use-agent/postwatch/extract"
)

// rodPage adapts a live rod page to extract.Page. Queries do not wait for
// elements to appear; readiness is established by Session.Fetch.
type rodPage struct {
	page *rod.Page
}

func (p *rodPage) Elements(ctx context.Context, selector string) ([]extract.Element, error) {
	els, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	return wrapElements(els), nil
}

func (p *rodPage) Count(ctx context.Context, selector string) (int, error) {
	els, err := p.page.Context(ctx).Elements(selector)
	return len(els), err
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Elements(ctx context.Context, selector string) ([]extract.Element, error) {
	els, err := e.el.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	return wrapElements(els), nil
}

func (e *rodElement) Count(ctx context.Context, selector string) (int, error) {
	els, err := e.el.Context(ctx).Elements(selector)
	return len(els), err
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	return e.el.Context(ctx).Text()
}

func (e *rodElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, err := e.el.Context(ctx).Attribute(name)
	if err != nil || v == nil {
		return "", false, err
	}
	return *v, true, nil
}

func (e *rodElement) Parent(ctx context.Context) (extract.Element, error) {
	parent, err := e.el.Context(ctx).Parent()
	if err != nil {
		return nil, err
	}
	return &rodElement{el: parent}, nil
}

func wrapElements(els rod.Elements) []extract.Element {
	out := make([]extract.Element, len(els))
	for i, el := range els {
		out[i] = &rodElement{el: el}
	}
	return out
}
