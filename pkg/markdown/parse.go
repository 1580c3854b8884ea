package markdown

import (
	"strconv"
	"strings"
)

// subIndent is the minimum indentation, in columns, that nests a list item.
const subIndent = 2

// Parse splits src into blocks.
func Parse(src string) []Block {
	p := &parser{}
	for _, line := range strings.Split(src, "\n") {
		p.line(strings.TrimRight(line, " \t\r"))
	}
	p.closeAll()
	return p.blocks
}

type parser struct {
	blocks []Block

	para []string
	list *List
	code *Block
}

func (p *parser) line(line string) {
	if p.code != nil {
		if isFence(line) {
			p.blocks = append(p.blocks, *p.code)
			p.code = nil
			return
		}
		p.code.Lines = append(p.code.Lines, line)
		return
	}

	if isFence(line) {
		p.closeAll()
		lang := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "`"))
		p.code = &Block{Kind: BlockCode, Lang: lang}
		return
	}

	if strings.TrimSpace(line) == "" {
		// A blank line ends a paragraph. Lists survive it so that items
		// separated by blank lines stay in one list.
		p.closePara()
		return
	}

	if level, text, ok := heading(line); ok {
		p.closeAll()
		p.blocks = append(p.blocks, Block{Kind: BlockHeading, Level: level, Lines: []string{text}})
		return
	}

	if indent, ordered, num, text, ok := listItem(line); ok {
		p.closePara()
		p.item(indent, ordered, num, text)
		return
	}

	if p.list != nil {
		if leadingSpaces(line) >= subIndent {
			// Indented continuation of the last item.
			last := lastItem(p.list)
			last.Text += " " + strings.TrimSpace(line)
			return
		}
		p.closeList()
	}

	p.para = append(p.para, strings.TrimSpace(line))
}

func (p *parser) item(indent int, ordered bool, num int, text string) {
	if indent >= subIndent && p.list != nil && len(p.list.Items) > 0 {
		// One nested level only: deeper or mixed-kind items join the
		// existing sublist of the last top-level item.
		parent := p.list.Items[len(p.list.Items)-1]
		if parent.Sub == nil {
			parent.Sub = &List{Ordered: ordered, Start: num}
		}
		parent.Sub.Items = append(parent.Sub.Items, &Item{Text: text})
		return
	}

	if p.list != nil && p.list.Ordered != ordered {
		p.closeList()
	}
	if p.list == nil {
		p.list = &List{Ordered: ordered, Start: num}
	}
	p.list.Items = append(p.list.Items, &Item{Text: text})
}

func (p *parser) closePara() {
	if len(p.para) == 0 {
		return
	}
	p.blocks = append(p.blocks, Block{Kind: BlockParagraph, Lines: p.para})
	p.para = nil
}

func (p *parser) closeList() {
	if p.list == nil {
		return
	}
	p.blocks = append(p.blocks, Block{Kind: BlockList, List: p.list})
	p.list = nil
}

func (p *parser) closeAll() {
	p.closePara()
	p.closeList()
	if p.code != nil {
		// An unterminated fence (still streaming) renders as code so far.
		p.blocks = append(p.blocks, *p.code)
		p.code = nil
	}
}

func lastItem(l *List) *Item {
	last := l.Items[len(l.Items)-1]
	if last.Sub != nil && len(last.Sub.Items) > 0 {
		return last.Sub.Items[len(last.Sub.Items)-1]
	}
	return last
}

func isFence(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "```")
}

// heading recognizes "# ", "## " and "### " lines.
func heading(line string) (int, string, bool) {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level > 3 || level >= len(line) || line[level] != ' ' {
		return 0, "", false
	}
	text := strings.TrimSpace(line[level:])
	if text == "" {
		return 0, "", false
	}
	return level, text, true
}

// listItem recognizes "- x", "* x" and "12. x" with optional indentation.
func listItem(line string) (indent int, ordered bool, num int, text string, ok bool) {
	indent = leadingSpaces(line)
	rest := line[indentBytes(line):]

	if len(rest) >= 2 && (rest[0] == '-' || rest[0] == '*') && rest[1] == ' ' {
		text = strings.TrimSpace(rest[2:])
		return indent, false, 0, text, text != ""
	}

	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits == 0 || digits > 9 || digits+1 >= len(rest) || rest[digits] != '.' || rest[digits+1] != ' ' {
		return 0, false, 0, "", false
	}
	num, err := strconv.Atoi(rest[:digits])
	if err != nil {
		return 0, false, 0, "", false
	}
	text = strings.TrimSpace(rest[digits+2:])
	return indent, true, num, text, text != ""
}

// leadingSpaces counts indentation columns; a tab counts as four.
func leadingSpaces(line string) int {
	n := 0
	for _, r := range line {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 4
		default:
			return n
		}
	}
	return n
}

func indentBytes(line string) int {
	i := 0
	for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
		i++
	}
	return i
}
