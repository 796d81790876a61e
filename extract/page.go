package extract

import "context"

// Page is the read-only query capability the extractor needs from a
// rendered document. Both the live browser page (scraper package) and a
// saved HTML snapshot (htmldoc package) implement it.
//
// Every method may block on I/O and honours ctx.
type Page interface {
	// Elements returns all elements matching selector in document order.
	// No match is an empty slice, not an error.
	Elements(ctx context.Context, selector string) ([]Element, error)

	// Count returns the number of elements matching selector.
	Count(ctx context.Context, selector string) (int, error)
}

// Element is a single node located on a Page. Queries on an Element are
// scoped to its subtree.
type Element interface {
	Page

	// Text returns the element's rendered text.
	Text(ctx context.Context) (string, error)

	// Attribute returns the named attribute and whether it is present.
	Attribute(ctx context.Context, name string) (string, bool, error)

	// Parent returns the enclosing element.
	Parent(ctx context.Context) (Element, error)
}
