package markdown_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hypedigitaly/streamer/pkg/markdown"
)

var _ = Describe("Parse", func() {
	It("splits headings, paragraphs and lists into blocks", func() {
		blocks := markdown.Parse("# Title\nfirst line\nsecond line\n\n- a\n- b\n")
		Expect(blocks).To(HaveLen(3))

		Expect(blocks[0].Kind).To(Equal(markdown.BlockHeading))
		Expect(blocks[0].Level).To(Equal(1))
		Expect(blocks[0].Lines).To(Equal([]string{"Title"}))

		Expect(blocks[1].Kind).To(Equal(markdown.BlockParagraph))
		Expect(blocks[1].Lines).To(Equal([]string{"first line", "second line"}))

		Expect(blocks[2].Kind).To(Equal(markdown.BlockList))
		Expect(blocks[2].List.Ordered).To(BeFalse())
		Expect(blocks[2].List.Items).To(HaveLen(2))
	})

	It("nests indented items one level", func() {
		blocks := markdown.Parse("1. one\n  - a\n    - deep\n2. two\n")
		Expect(blocks).To(HaveLen(1))

		list := blocks[0].List
		Expect(list.Ordered).To(BeTrue())
		Expect(list.Start).To(Equal(1))
		Expect(list.Items).To(HaveLen(2))
		Expect(list.Items[0].Sub).NotTo(BeNil())
		Expect(list.Items[0].Sub.Items).To(HaveLen(2))
		Expect(list.Items[1].Sub).To(BeNil())
	})

	It("keeps list items separated by blank lines in one list", func() {
		blocks := markdown.Parse("- a\n\n- b\n")
		Expect(blocks).To(HaveLen(1))
		Expect(blocks[0].List.Items).To(HaveLen(2))
	})

	It("starts a new list when the list kind changes", func() {
		blocks := markdown.Parse("- a\n1. b\n")
		Expect(blocks).To(HaveLen(2))
		Expect(blocks[0].List.Ordered).To(BeFalse())
		Expect(blocks[1].List.Ordered).To(BeTrue())
	})

	It("appends indented continuation lines to the last item", func() {
		blocks := markdown.Parse("- a\n  continued\n")
		Expect(blocks[0].List.Items[0].Text).To(Equal("a continued"))
	})

	It("treats an unterminated fence as code", func() {
		blocks := markdown.Parse("```go\nfmt.Println(1)\n")
		Expect(blocks).To(HaveLen(1))
		Expect(blocks[0].Kind).To(Equal(markdown.BlockCode))
		Expect(blocks[0].Lang).To(Equal("go"))
		Expect(blocks[0].Lines).To(ContainElement("fmt.Println(1)"))
	})

	It("does not read four hashes as a heading", func() {
		blocks := markdown.Parse("#### deep")
		Expect(blocks[0].Kind).To(Equal(markdown.BlockParagraph))
	})
})

var _ = Describe("ToHTML", func() {
	It("renders bold text followed by a two item list", func() {
		out := markdown.ToHTML("**hi** there\n- a\n- b\n")
		Expect(strings.Count(out, "<strong>")).To(Equal(1))
		Expect(strings.Count(out, "<li>")).To(Equal(2))
		Expect(strings.Count(out, "<ul>")).To(Equal(1))
		Expect(out).To(ContainSubstring("<p><strong>hi</strong> there</p>"))
	})

	It("renders headings at three levels", func() {
		out := markdown.ToHTML("# a\n## b\n### c")
		Expect(out).To(Equal("<h1>a</h1>\n<h2>b</h2>\n<h3>c</h3>"))
	})

	It("renders italics, code spans, links and images", func() {
		out := markdown.ToHTML("*it* `x<y` [site](https://hypedigitaly.cz) ![logo](/logo.png)")
		Expect(out).To(ContainSubstring("<em>it</em>"))
		Expect(out).To(ContainSubstring("<code>x&lt;y</code>"))
		Expect(out).To(ContainSubstring(`<a href="https://hypedigitaly.cz" target="_blank" rel="noopener noreferrer">site</a>`))
		Expect(out).To(ContainSubstring(`<img src="/logo.png" alt="logo">`))
	})

	It("keeps bold inside italics", func() {
		out := markdown.ToHTML("*a **b** c*")
		Expect(out).To(Equal("<p><em>a <strong>b</strong> c</em></p>"))
	})

	It("renders ordered lists with their start number", func() {
		out := markdown.ToHTML("3. c\n4. d")
		Expect(out).To(HavePrefix(`<ol start="3">`))
		Expect(strings.Count(out, "<li>")).To(Equal(2))
	})

	It("renders nested lists inside their parent item", func() {
		out := markdown.ToHTML("- a\n  - b\n")
		Expect(out).To(Equal("<ul>\n<li>a\n<ul>\n<li>b</li>\n</ul></li>\n</ul>"))
	})

	It("renders code blocks verbatim and escaped", func() {
		out := markdown.ToHTML("```html\n<b>**x**</b>\n```")
		Expect(out).To(Equal(`<pre><code class="language-html">&lt;b&gt;**x**&lt;/b&gt;</code></pre>`))
	})

	Describe("escaping", func() {
		It("escapes raw HTML once", func() {
			out := markdown.ToHTML("<script>alert(1)</script>")
			Expect(out).To(Equal("<p>&lt;script&gt;alert(1)&lt;/script&gt;</p>"))
		})

		It("does not re-escape existing entities", func() {
			out := markdown.ToHTML("Tom &amp; Jerry &#39;n&#x27; & co")
			Expect(out).To(Equal("<p>Tom &amp; Jerry &#39;n&#x27; &amp; co</p>"))
		})

		It("refuses script URLs in links", func() {
			out := markdown.ToHTML("[x](javascript:alert(1))")
			Expect(out).NotTo(ContainSubstring("<a "))
		})
	})

	It("leaves an unclosed bold marker literal while streaming", func() {
		Expect(markdown.ToHTML("**hal")).To(Equal("<p>**hal</p>"))
	})

	It("converges on the final output when rendered at every prefix", func() {
		src := "## Výsledek\n**hi** there\n- a\n  - b\n1. c\n\n`code` end"
		var last string
		for i := 1; i <= len(src); i++ {
			last = markdown.ToHTML(src[:i])
		}
		Expect(last).To(Equal(markdown.ToHTML(src)))
		Expect(strings.Count(last, "&amp;amp;")).To(BeZero())
	})
})

var _ = Describe("Renderer", func() {
	It("sanitizes output when asked to", func() {
		r := markdown.NewRenderer(markdown.WithSanitize(true))
		out := r.Render("**hi** [x](https://example.com)")
		Expect(out).To(ContainSubstring("<strong>hi</strong>"))
		Expect(out).To(ContainSubstring(`href="https://example.com"`))
		Expect(out).NotTo(ContainSubstring("<script"))
	})

	It("marks links nofollow and keeps tel links when sanitizing", func() {
		src := "[web](https://www.teplice.cz) [volat](tel:+420123456789)"
		Expect(markdown.ToHTML(src)).NotTo(ContainSubstring("nofollow"))

		out := markdown.NewRenderer(markdown.WithSanitize(true)).Render(src)
		Expect(out).To(ContainSubstring("nofollow"))
		Expect(out).To(ContainSubstring(`href="tel:+420123456789"`))
	})

	It("matches ToHTML without sanitizing", func() {
		r := markdown.NewRenderer()
		Expect(r.Render("- a")).To(Equal(markdown.ToHTML("- a")))
	})
})
