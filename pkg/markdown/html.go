package markdown

import (
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Renderer serializes markdown to HTML.
type Renderer struct {
	policy *bluemonday.Policy
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithSanitize runs the serialized HTML through bluemonday's UGC policy,
// keeping link targets and the tel: scheme the parser accepts. Links gain
// rel="nofollow noreferrer".
func WithSanitize(sanitize bool) Option {
	return func(r *Renderer) {
		if !sanitize {
			r.policy = nil
			return
		}
		p := bluemonday.UGCPolicy()
		p.AllowURLSchemes("tel")
		p.AllowAttrs("target").Matching(bluemonday.Paragraph).OnElements("a")
		p.RequireNoReferrerOnLinks(true)
		r.policy = p
	}
}

// NewRenderer returns a Renderer.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render converts markdown source to HTML.
func (r *Renderer) Render(src string) string {
	out := RenderBlocks(Parse(src))
	if r.policy != nil {
		out = r.policy.Sanitize(out)
	}
	return out
}

// ToHTML converts markdown source to HTML without sanitizing.
func ToHTML(src string) string {
	return RenderBlocks(Parse(src))
}

// RenderBlocks serializes a parsed block list.
func RenderBlocks(blocks []Block) string {
	var b strings.Builder
	for i, block := range blocks {
		if i > 0 {
			b.WriteByte('\n')
		}
		switch block.Kind {
		case BlockHeading:
			tag := "h" + strconv.Itoa(block.Level)
			b.WriteString("<" + tag + ">")
			writeInline(&b, block.Lines[0])
			b.WriteString("</" + tag + ">")

		case BlockParagraph:
			b.WriteString("<p>")
			for j, line := range block.Lines {
				if j > 0 {
					b.WriteString("<br>")
				}
				writeInline(&b, line)
			}
			b.WriteString("</p>")

		case BlockList:
			writeList(&b, block.List)

		case BlockCode:
			b.WriteString("<pre><code")
			if block.Lang != "" {
				b.WriteString(` class="language-`)
				escapeTo(&b, block.Lang)
				b.WriteString(`"`)
			}
			b.WriteString(">")
			escapeTo(&b, strings.Join(block.Lines, "\n"))
			b.WriteString("</code></pre>")
		}
	}
	return b.String()
}

func writeList(b *strings.Builder, l *List) {
	tag := "ul"
	if l.Ordered {
		tag = "ol"
	}

	b.WriteString("<" + tag)
	if l.Ordered && l.Start > 1 {
		b.WriteString(` start="` + strconv.Itoa(l.Start) + `"`)
	}
	b.WriteString(">\n")

	for _, item := range l.Items {
		b.WriteString("<li>")
		writeInline(b, item.Text)
		if item.Sub != nil {
			b.WriteByte('\n')
			writeList(b, item.Sub)
		}
		b.WriteString("</li>\n")
	}

	b.WriteString("</" + tag + ">")
}
