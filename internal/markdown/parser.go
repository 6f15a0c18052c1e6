package markdown

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"memoir/internal/models"
)

// Parser turns raw memo content into two outputs of one traversal: the
// document node tree used for rendering, and the payload facts used for
// filtering. Parse is a pure function of its input and safe for concurrent
// use.
type Parser struct {
	md goldmark.Markdown
}

func NewParser() *Parser {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
	)
	return &Parser{md: md}
}

func (p *Parser) Parse(content string) ([]Node, models.MemoPayload, error) {
	source := []byte(content)
	root := p.md.Parser().Parse(text.NewReader(source))
	nodes, payload := convertChildren(root, source)
	return nodes, payload.Normalize(), nil
}

// ExtractPayload is the indexing half of Parse, used when the node tree is
// not needed (memo create/update paths).
func (p *Parser) ExtractPayload(content string) (models.MemoPayload, error) {
	_, payload, err := p.Parse(content)
	return payload, err
}

func convertChildren(n ast.Node, source []byte) ([]Node, models.MemoPayload) {
	nodes := make([]Node, 0, n.ChildCount())
	payload := models.MemoPayload{}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		converted, childPayload := convertNode(c, source)
		nodes = append(nodes, converted...)
		payload = payload.Merge(childPayload)
	}
	return nodes, payload
}

func convertNode(n ast.Node, source []byte) ([]Node, models.MemoPayload) {
	switch v := n.(type) {
	case *ast.Paragraph:
		children, payload := convertChildren(v, source)
		return []Node{{Type: NodeParagraph, Children: children}}, payload
	case *ast.TextBlock:
		// tight list items wrap their inline content in a text block; it has
		// no visual counterpart of its own
		return convertChildren(v, source)
	case *ast.Heading:
		children, payload := convertChildren(v, source)
		return []Node{{Type: NodeHeading, Level: v.Level, Children: children}}, payload
	case *ast.Blockquote:
		children, payload := convertChildren(v, source)
		return []Node{{Type: NodeBlockquote, Children: children}}, payload
	case *ast.List:
		return convertList(v, source)
	case *ast.ThematicBreak:
		return []Node{{Type: NodeHorizontalRule}}, models.MemoPayload{}
	case *ast.FencedCodeBlock:
		return []Node{{
			Type:     NodeCodeBlock,
			Language: string(v.Language(source)),
			Text:     blockLines(v, source),
		}}, payloadProperty(models.MemoPayloadProperty{HasCode: true})
	case *ast.CodeBlock:
		return []Node{{
			Type: NodeCodeBlock,
			Text: blockLines(v, source),
		}}, payloadProperty(models.MemoPayloadProperty{HasCode: true})
	case *ast.HTMLBlock:
		return []Node{{Type: NodeHTML, Text: blockLines(v, source)}}, models.MemoPayload{}
	case *ast.RawHTML:
		var sb strings.Builder
		for i := 0; i < v.Segments.Len(); i++ {
			seg := v.Segments.At(i)
			sb.Write(source[seg.Start:seg.Stop])
		}
		return []Node{{Type: NodeHTML, Text: sb.String()}}, models.MemoPayload{}
	case *ast.Text:
		literal := string(source[v.Segment.Start:v.Segment.Stop])
		nodes, tags := splitTextRun(literal)
		payload := models.MemoPayload{}
		if len(tags) > 0 {
			payload = payloadProperty(models.MemoPayloadProperty{Tags: tags})
		}
		if v.HardLineBreak() || v.SoftLineBreak() {
			nodes = append(nodes, Node{Type: NodeLineBreak})
		}
		return nodes, payload
	case *ast.String:
		return []Node{{Type: NodeText, Text: string(v.Value)}}, models.MemoPayload{}
	case *ast.CodeSpan:
		return []Node{{Type: NodeCode, Text: plainText(v, source)}},
			payloadProperty(models.MemoPayloadProperty{HasCode: true})
	case *ast.Emphasis:
		return convertEmphasis(v, source)
	case *east.Strikethrough:
		children, payload := convertChildren(v, source)
		return []Node{{Type: NodeStrikethrough, Children: children}}, payload
	case *ast.Link:
		children, payload := convertChildren(v, source)
		payload = payload.Merge(payloadProperty(models.MemoPayloadProperty{HasLink: true}))
		return []Node{{Type: NodeLink, URL: string(v.Destination), Children: children}}, payload
	case *ast.AutoLink:
		url := string(v.URL(source))
		return []Node{{Type: NodeAutoLink, URL: url, Text: url}},
			payloadProperty(models.MemoPayloadProperty{HasLink: true})
	case *ast.Image:
		return []Node{{Type: NodeImage, URL: string(v.Destination), Text: plainText(v, source)}},
			models.MemoPayload{}
	case *east.TaskCheckBox:
		// the checkbox itself emits no node; the enclosing list item is
		// re-typed in convertList
		prop := models.MemoPayloadProperty{HasTaskList: true}
		if !v.IsChecked {
			prop.HasIncompleteTasks = true
		}
		return nil, payloadProperty(prop)
	default:
		return convertChildren(v, source)
	}
}

func convertList(list *ast.List, source []byte) ([]Node, models.MemoPayload) {
	itemType := NodeUnorderedListItem
	if list.IsOrdered() {
		itemType = NodeOrderedListItem
	}
	nodes := make([]Node, 0, list.ChildCount())
	payload := models.MemoPayload{}
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		children, childPayload := convertChildren(item, source)
		payload = payload.Merge(childPayload)
		node := Node{Type: itemType, Children: children}
		if cb := listItemCheckBox(item); cb != nil {
			node.Type = NodeTaskListItem
			node.Checked = cb.IsChecked
		}
		nodes = append(nodes, node)
	}
	return nodes, payload
}

// convertEmphasis collapses a strong nested directly inside an emphasis into
// one bold-italic leaf ("***x***"); downstream renderers rely on this shape
// instead of a bold node wrapping an italic node.
func convertEmphasis(v *ast.Emphasis, source []byte) ([]Node, models.MemoPayload) {
	if inner := soleEmphasisChild(v); inner != nil && inner.Level != v.Level {
		return []Node{{Type: NodeBoldItalic, Text: plainText(v, source)}}, models.MemoPayload{}
	}
	children, payload := convertChildren(v, source)
	nodeType := NodeItalic
	if v.Level == 2 {
		nodeType = NodeBold
	}
	return []Node{{Type: nodeType, Children: children}}, payload
}

func soleEmphasisChild(v *ast.Emphasis) *ast.Emphasis {
	if v.ChildCount() != 1 {
		return nil
	}
	inner, ok := v.FirstChild().(*ast.Emphasis)
	if !ok {
		return nil
	}
	return inner
}

func listItemCheckBox(item ast.Node) *east.TaskCheckBox {
	block := item.FirstChild()
	if block == nil {
		return nil
	}
	cb, ok := block.FirstChild().(*east.TaskCheckBox)
	if !ok {
		return nil
	}
	return cb
}

// splitTextRun breaks a literal text run into text and tag nodes at the
// boundaries findTags reports, and returns the extracted tag strings.
func splitTextRun(literal string) ([]Node, []string) {
	spans := findTags(literal)
	if len(spans) == 0 {
		if literal == "" {
			return nil, nil
		}
		return []Node{{Type: NodeText, Text: literal}}, nil
	}
	nodes := make([]Node, 0, len(spans)*2+1)
	tags := make([]string, 0, len(spans))
	cursor := 0
	for _, span := range spans {
		if span.start > cursor {
			nodes = append(nodes, Node{Type: NodeText, Text: literal[cursor:span.start]})
		}
		nodes = append(nodes, Node{Type: NodeTag, Text: span.tag})
		tags = append(tags, span.tag)
		cursor = span.start + 1 + len(span.tag)
	}
	if cursor < len(literal) {
		nodes = append(nodes, Node{Type: NodeText, Text: literal[cursor:]})
	}
	return nodes, tags
}

func blockLines(n ast.Node, source []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(source[seg.Start:seg.Stop])
	}
	return sb.String()
}

func plainText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			sb.Write(source[t.Segment.Start:t.Segment.Stop])
		case *ast.String:
			sb.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return sb.String()
}

func payloadProperty(prop models.MemoPayloadProperty) models.MemoPayload {
	return models.MemoPayload{Property: &prop}
}
