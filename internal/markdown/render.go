package markdown

import (
	"fmt"
	"html"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

const codeStyle = "github"

// RenderHTML renders a parsed node tree back to HTML. Consecutive list item
// nodes are grouped under a shared list element; everything else maps one to
// one.
func RenderHTML(nodes []Node) string {
	var sb strings.Builder
	renderNodes(&sb, nodes)
	return sb.String()
}

func renderNodes(sb *strings.Builder, nodes []Node) {
	for i := 0; i < len(nodes); {
		node := nodes[i]
		if isListItem(node.Type) {
			end := i
			for end < len(nodes) && nodes[end].Type == node.Type {
				end++
			}
			renderListRun(sb, nodes[i:end])
			i = end
			continue
		}
		renderNode(sb, node)
		i++
	}
}

func isListItem(t NodeType) bool {
	return t == NodeOrderedListItem || t == NodeUnorderedListItem || t == NodeTaskListItem
}

func renderListRun(sb *strings.Builder, items []Node) {
	openTag, closeTag := "<ul>", "</ul>"
	if items[0].Type == NodeOrderedListItem {
		openTag, closeTag = "<ol>", "</ol>"
	}
	sb.WriteString(openTag)
	for _, item := range items {
		sb.WriteString("<li>")
		if item.Type == NodeTaskListItem {
			if item.Checked {
				sb.WriteString(`<input type="checkbox" checked disabled> `)
			} else {
				sb.WriteString(`<input type="checkbox" disabled> `)
			}
		}
		renderNodes(sb, item.Children)
		sb.WriteString("</li>")
	}
	sb.WriteString(closeTag)
}

func renderNode(sb *strings.Builder, node Node) {
	switch node.Type {
	case NodeText:
		sb.WriteString(html.EscapeString(node.Text))
	case NodeParagraph:
		sb.WriteString("<p>")
		renderNodes(sb, node.Children)
		sb.WriteString("</p>")
	case NodeHeading:
		level := node.Level
		if level < 1 || level > 6 {
			level = 6
		}
		fmt.Fprintf(sb, "<h%d>", level)
		renderNodes(sb, node.Children)
		fmt.Fprintf(sb, "</h%d>", level)
	case NodeBold:
		sb.WriteString("<strong>")
		renderNodes(sb, node.Children)
		sb.WriteString("</strong>")
	case NodeItalic:
		sb.WriteString("<em>")
		renderNodes(sb, node.Children)
		sb.WriteString("</em>")
	case NodeBoldItalic:
		sb.WriteString("<strong><em>")
		sb.WriteString(html.EscapeString(node.Text))
		sb.WriteString("</em></strong>")
	case NodeCode:
		sb.WriteString("<code>")
		sb.WriteString(html.EscapeString(node.Text))
		sb.WriteString("</code>")
	case NodeCodeBlock:
		renderCodeBlock(sb, node)
	case NodeLink:
		fmt.Fprintf(sb, `<a href=%q>`, node.URL)
		renderNodes(sb, node.Children)
		sb.WriteString("</a>")
	case NodeAutoLink:
		fmt.Fprintf(sb, `<a href=%q>%s</a>`, node.URL, html.EscapeString(node.Text))
	case NodeImage:
		fmt.Fprintf(sb, `<img src=%q alt=%q>`, node.URL, node.Text)
	case NodeBlockquote:
		sb.WriteString("<blockquote>")
		renderNodes(sb, node.Children)
		sb.WriteString("</blockquote>")
	case NodeStrikethrough:
		sb.WriteString("<del>")
		renderNodes(sb, node.Children)
		sb.WriteString("</del>")
	case NodeHorizontalRule:
		sb.WriteString("<hr>")
	case NodeLineBreak:
		sb.WriteString("<br>")
	case NodeTag:
		fmt.Fprintf(sb, `<span class="memo-tag">#%s</span>`, html.EscapeString(node.Text))
	case NodeHTML:
		sb.WriteString(node.Text)
	default:
		renderNodes(sb, node.Children)
	}
}

// renderCodeBlock syntax-highlights the block when a lexer exists for its
// language and falls back to a plain escaped pre block otherwise.
func renderCodeBlock(sb *strings.Builder, node Node) {
	lexer := lexers.Get(node.Language)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)
	iterator, err := lexer.Tokenise(nil, node.Text)
	if err != nil {
		renderPlainCodeBlock(sb, node)
		return
	}
	style := styles.Get(codeStyle)
	if style == nil {
		style = styles.Fallback
	}
	formatter := chromahtml.New(chromahtml.WithClasses(false))
	if err := formatter.Format(sb, style, iterator); err != nil {
		renderPlainCodeBlock(sb, node)
	}
}

func renderPlainCodeBlock(sb *strings.Builder, node Node) {
	sb.WriteString("<pre><code>")
	sb.WriteString(html.EscapeString(node.Text))
	sb.WriteString("</code></pre>")
}
