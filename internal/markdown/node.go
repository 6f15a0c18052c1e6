package markdown

// NodeType enumerates the kinds of nodes in the parsed document tree.
type NodeType string

const (
	NodeText              NodeType = "TEXT"
	NodeParagraph         NodeType = "PARAGRAPH"
	NodeHeading           NodeType = "HEADING"
	NodeBold              NodeType = "BOLD"
	NodeItalic            NodeType = "ITALIC"
	NodeBoldItalic        NodeType = "BOLD_ITALIC"
	NodeCode              NodeType = "CODE"
	NodeCodeBlock         NodeType = "CODE_BLOCK"
	NodeLink              NodeType = "LINK"
	NodeAutoLink          NodeType = "AUTO_LINK"
	NodeImage             NodeType = "IMAGE"
	NodeBlockquote        NodeType = "BLOCKQUOTE"
	NodeOrderedListItem   NodeType = "ORDERED_LIST_ITEM"
	NodeUnorderedListItem NodeType = "UNORDERED_LIST_ITEM"
	NodeTaskListItem      NodeType = "TASK_LIST_ITEM"
	NodeStrikethrough     NodeType = "STRIKETHROUGH"
	NodeHorizontalRule    NodeType = "HORIZONTAL_RULE"
	NodeLineBreak         NodeType = "LINE_BREAK"
	NodeTag               NodeType = "TAG"
	NodeHTML              NodeType = "HTML"
)

// Node is one element of the document tree produced by Parser.Parse. The tree
// is owned and immutable once built: container variants hold their children,
// leaf variants hold their literal content. It serializes directly as the
// render API response.
type Node struct {
	Type     NodeType `json:"type"`
	Text     string   `json:"text,omitempty"`
	URL      string   `json:"url,omitempty"`
	Language string   `json:"language,omitempty"`
	Level    int      `json:"level,omitempty"`
	Checked  bool     `json:"checked,omitempty"`
	Children []Node   `json:"children,omitempty"`
}
