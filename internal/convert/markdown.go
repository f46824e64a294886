package convert

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var reExtraNewlines = regexp.MustCompile(`\n{3,}`)

var mdParser = goldmark.New(goldmark.WithExtensions(extension.Table))

// MarkdownToTracWiki converts markdown to Trac wiki markup by walking the
// parsed AST. The output always ends in one newline.
func MarkdownToTracWiki(markdown string) string {
	source := []byte(markdown)
	doc := mdParser.Parser().Parse(text.NewReader(source))

	r := &wikiRenderer{source: source}
	out := r.renderBlocks(doc, 0)
	out = reExtraNewlines.ReplaceAllString(out, "\n\n")
	return strings.TrimRight(out, "\n") + "\n"
}

type wikiRenderer struct {
	source []byte
}

func (r *wikiRenderer) renderBlocks(parent ast.Node, depth int) string {
	var b strings.Builder
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		b.WriteString(r.renderBlock(c, depth))
	}
	return b.String()
}

func (r *wikiRenderer) renderBlock(n ast.Node, depth int) string {
	switch v := n.(type) {
	case *ast.Heading:
		marker := strings.Repeat("=", v.Level)
		return marker + " " + r.renderInlines(v) + " " + marker + "\n"

	case *ast.Paragraph:
		return r.renderInlines(v) + "\n\n"

	case *ast.TextBlock:
		return r.renderInlines(v)

	case *ast.FencedCodeBlock:
		code := strings.TrimRight(r.linesValue(v.Lines()), "\n")
		if lang := v.Language(r.source); len(lang) > 0 {
			return "{{{#!" + fenceLangToWikiProcessor(string(lang)) + "\n" + code + "\n}}}\n"
		}
		return "{{{\n" + code + "\n}}}\n"

	case *ast.CodeBlock:
		code := strings.TrimRight(r.linesValue(v.Lines()), "\n")
		return "{{{\n" + code + "\n}}}\n"

	case *ast.Blockquote:
		inner := strings.TrimRight(r.renderBlocks(v, depth), "\n")
		var b strings.Builder
		for _, line := range strings.Split(inner, "\n") {
			b.WriteString("  " + line + "\n")
		}
		return b.String()

	case *ast.ThematicBreak:
		return "----\n"

	case *ast.List:
		return r.renderList(v, depth)

	case *ast.HTMLBlock:
		return r.linesValue(v.Lines())

	case *east.Table:
		return r.renderTable(v)
	}
	return r.renderInlines(n)
}

// renderList emits wiki list items with the indent-based nesting Trac
// expects: one space at depth zero, two more per level.
func (r *wikiRenderer) renderList(list *ast.List, depth int) string {
	var b strings.Builder
	indent := strings.Repeat(" ", depth*2+1)
	num := list.Start
	if num == 0 {
		num = 1
	}
	for c := list.FirstChild(); c != nil; c = c.NextSibling() {
		marker := "*"
		if list.IsOrdered() {
			marker = fmt.Sprintf("%d.", num)
			num++
		}

		var inline, nested strings.Builder
		for g := c.FirstChild(); g != nil; g = g.NextSibling() {
			if sub, ok := g.(*ast.List); ok {
				nested.WriteString(r.renderList(sub, depth+1))
				continue
			}
			inline.WriteString(strings.TrimRight(r.renderBlock(g, depth), "\n"))
		}
		b.WriteString(indent + marker + " " + inline.String() + "\n")
		b.WriteString(nested.String())
	}
	if depth == 0 {
		b.WriteString("\n")
	}
	return b.String()
}

func (r *wikiRenderer) renderTable(table *east.Table) string {
	var b strings.Builder
	for row := table.FirstChild(); row != nil; row = row.NextSibling() {
		_, header := row.(*east.TableHeader)
		cells := make([]string, 0, row.ChildCount())
		for c := row.FirstChild(); c != nil; c = c.NextSibling() {
			cell := c.(*east.TableCell)
			cells = append(cells, wikiCell(r.renderInlines(cell), cell.Alignment, header))
		}
		b.WriteString("||" + strings.Join(cells, "||") + "||\n")
	}
	b.WriteString("\n")
	return b.String()
}

// wikiCell applies Trac's conventions: header cells wear = markers and
// alignment is expressed through surrounding whitespace.
func wikiCell(content string, align east.Alignment, header bool) string {
	if header {
		switch align {
		case east.AlignLeft:
			return "=" + content + " ="
		case east.AlignRight:
			return "= " + content + "="
		case east.AlignCenter:
			return "= " + content + " ="
		}
		return "=" + content + "="
	}
	switch align {
	case east.AlignLeft:
		return content + " "
	case east.AlignRight:
		return " " + content
	case east.AlignCenter:
		return " " + content + " "
	}
	return content
}

func (r *wikiRenderer) renderInlines(parent ast.Node) string {
	var b strings.Builder
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		b.WriteString(r.renderInline(c))
	}
	return b.String()
}

func (r *wikiRenderer) renderInline(n ast.Node) string {
	switch v := n.(type) {
	case *ast.Text:
		out := string(v.Segment.Value(r.source))
		if v.HardLineBreak() {
			return out + "[[BR]]\n"
		}
		if v.SoftLineBreak() {
			return out + "\n"
		}
		return out

	case *ast.String:
		return string(v.Value)

	case *ast.Emphasis:
		inner := r.renderInlines(v)
		if v.Level >= 2 {
			return "'''" + inner + "'''"
		}
		return "''" + inner + "''"

	case *ast.CodeSpan:
		return "`" + r.nodeText(v) + "`"

	case *ast.Link:
		label := r.renderInlines(v)
		url := string(v.Destination)
		if isExternalURL(url) || strings.HasPrefix(url, "#") {
			return "[" + url + " " + label + "]"
		}
		return "[wiki:" + url + " " + label + "]"

	case *ast.AutoLink:
		return string(v.URL(r.source))

	case *ast.Image:
		return "[[Image(" + string(v.Destination) + ")]]"

	case *ast.RawHTML:
		return r.segmentsValue(v.Segments)
	}
	return r.renderInlines(n)
}

func isExternalURL(url string) bool {
	for _, scheme := range []string{"http://", "https://", "ftp://", "mailto:"} {
		if strings.HasPrefix(url, scheme) {
			return true
		}
	}
	return false
}

func (r *wikiRenderer) nodeText(n ast.Node) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(r.source))
		case *ast.String:
			b.Write(t.Value)
		default:
			b.WriteString(r.nodeText(c))
		}
	}
	return b.String()
}

func (r *wikiRenderer) linesValue(lines *text.Segments) string {
	var b strings.Builder
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(r.source))
	}
	return b.String()
}

func (r *wikiRenderer) segmentsValue(segments *text.Segments) string {
	var b strings.Builder
	for i := 0; i < segments.Len(); i++ {
		seg := segments.At(i)
		b.Write(seg.Value(r.source))
	}
	return b.String()
}
