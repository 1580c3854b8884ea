// Package markdown converts the markdown subset produced by chat models into
// HTML. Parsing is a single pass over lines that yields a block list; HTML
// serialization is a separate step. The source text is always the raw answer
// buffer, never previously rendered HTML, so re-rendering a growing buffer is
// stable: nothing gets escaped or wrapped twice.
//
// Supported: # / ## / ### headings, **bold**, *italic*, `code` spans, fenced
// code blocks, [links](url), ![images](url), "- " / "* " and "N. " lists with
// one nested level.
package markdown

// BlockKind identifies the type of a Block.
type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockHeading
	BlockList
	BlockCode
)

// Block is one top-level element of a document.
type Block struct {
	Kind BlockKind

	// Level is the heading level (1-3) for BlockHeading.
	Level int

	// Lines holds paragraph lines, the heading text (single line), or the raw
	// lines of a code block.
	Lines []string

	// Lang is the info string of a fenced code block.
	Lang string

	// List is set for BlockList.
	List *List
}

// List is an ordered or unordered list.
type List struct {
	Ordered bool

	// Start is the number of the first item of an ordered list.
	Start int

	Items []*Item
}

// Item is a list item. Sub is the nested list, if any.
type Item struct {
	Text string
	Sub  *List
}
