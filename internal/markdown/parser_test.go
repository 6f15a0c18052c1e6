package markdown

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParse_TagBoundaries(t *testing.T) {
	p := NewParser()
	nodes, payload, err := p.Parse("#todo and #done.")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	// the payload list is sorted; the node tree keeps document order
	assertStringSlicesEqual(t, []string{"done.", "todo"}, payload.Tags())

	if len(nodes) != 1 || nodes[0].Type != NodeParagraph {
		t.Fatalf("expected a single paragraph, got %v", nodes)
	}
	children := nodes[0].Children
	if len(children) != 3 {
		t.Fatalf("expected 3 inline nodes, got %d: %v", len(children), children)
	}
	if children[0].Type != NodeTag || children[0].Text != "todo" {
		t.Fatalf("first child = %+v, want TAG todo", children[0])
	}
	if children[1].Type != NodeText || children[1].Text != " and " {
		t.Fatalf("second child = %+v, want TEXT %q", children[1], " and ")
	}
	if children[2].Type != NodeTag || children[2].Text != "done." {
		t.Fatalf("third child = %+v, want TAG done.", children[2])
	}
}

func TestParse_TagWithTrailingNewline(t *testing.T) {
	p := NewParser()
	_, payload, err := p.Parse("#todo\n")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	assertStringSlicesEqual(t, []string{"todo"}, payload.Tags())
}

func TestParse_TagAtEndOfText(t *testing.T) {
	p := NewParser()
	_, payload, err := p.Parse("note ends with #todo")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	assertStringSlicesEqual(t, []string{"todo"}, payload.Tags())
}

func TestParse_HeadingIsNotTag(t *testing.T) {
	p := NewParser()
	nodes, payload, err := p.Parse("# heading\n\nreal #tag")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	assertStringSlicesEqual(t, []string{"tag"}, payload.Tags())
	if len(nodes) != 2 || nodes[0].Type != NodeHeading || nodes[0].Level != 1 {
		t.Fatalf("expected heading then paragraph, got %v", nodes)
	}
}

func TestParse_BoldItalicCollapsesToOneLeaf(t *testing.T) {
	p := NewParser()
	nodes, _, err := p.Parse("***x***")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(nodes) != 1 || nodes[0].Type != NodeParagraph {
		t.Fatalf("expected a single paragraph, got %v", nodes)
	}
	children := nodes[0].Children
	if len(children) != 1 {
		t.Fatalf("expected 1 inline node, got %d: %v", len(children), children)
	}
	leaf := children[0]
	if leaf.Type != NodeBoldItalic {
		t.Fatalf("node type = %s, want %s", leaf.Type, NodeBoldItalic)
	}
	if leaf.Text != "x" {
		t.Fatalf("leaf text = %q, want %q", leaf.Text, "x")
	}
	if len(leaf.Children) != 0 {
		t.Fatalf("bold-italic leaf should have no children, got %v", leaf.Children)
	}
}

func TestParse_PayloadFacts(t *testing.T) {
	p := NewParser()
	content := strings.Join([]string{
		"- [ ] buy milk",
		"- [x] call home",
		"",
		"see [the site](https://example.com)",
		"",
		"```go",
		"fmt.Println(42)",
		"```",
	}, "\n")
	nodes, payload, err := p.Parse(content)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	prop := payload.Property
	if prop == nil {
		t.Fatal("expected a payload property")
	}
	if !prop.HasTaskList {
		t.Fatal("expected has_task_list")
	}
	if !prop.HasIncompleteTasks {
		t.Fatal("expected has_incomplete_tasks")
	}
	if !prop.HasLink {
		t.Fatal("expected has_link")
	}
	if !prop.HasCode {
		t.Fatal("expected has_code")
	}

	if nodes[0].Type != NodeTaskListItem || nodes[0].Checked {
		t.Fatalf("first item = %+v, want unchecked TASK_LIST_ITEM", nodes[0])
	}
	if nodes[1].Type != NodeTaskListItem || !nodes[1].Checked {
		t.Fatalf("second item = %+v, want checked TASK_LIST_ITEM", nodes[1])
	}
}

func TestParse_CheckedTasksOnly(t *testing.T) {
	p := NewParser()
	_, payload, err := p.Parse("- [x] done already")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	prop := payload.Property
	if prop == nil || !prop.HasTaskList {
		t.Fatalf("expected has_task_list, got %+v", prop)
	}
	if prop.HasIncompleteTasks {
		t.Fatal("fully checked list should not set has_incomplete_tasks")
	}
}

func TestParse_CodeSpanSetsHasCode(t *testing.T) {
	p := NewParser()
	nodes, payload, err := p.Parse("call `fmt.Println` here")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if payload.Property == nil || !payload.Property.HasCode {
		t.Fatal("expected has_code from inline code span")
	}
	children := nodes[0].Children
	if len(children) != 3 || children[1].Type != NodeCode || children[1].Text != "fmt.Println" {
		t.Fatalf("unexpected inline nodes: %v", children)
	}
}

func TestParse_NoFactsSerializesEmpty(t *testing.T) {
	p := NewParser()
	_, payload, err := p.Parse("just plain text")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if payload.Property != nil {
		t.Fatalf("expected absent property, got %+v", payload.Property)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(raw) != "{}" {
		t.Fatalf("payload JSON = %s, want {}", raw)
	}
}

func TestParse_PayloadJSONShape(t *testing.T) {
	p := NewParser()
	_, payload, err := p.Parse("#todo with a [link](https://example.com)")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"property":{"tags":["todo"],"has_link":true}}`
	if string(raw) != want {
		t.Fatalf("payload JSON = %s, want %s", raw, want)
	}
}

func TestRenderHTML_Basics(t *testing.T) {
	p := NewParser()
	nodes, _, err := p.Parse("**bold** and <b>raw</b> then #tag")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	out := RenderHTML(nodes)
	if !strings.Contains(out, "<strong>bold</strong>") {
		t.Fatalf("missing bold: %s", out)
	}
	if !strings.Contains(out, "<b>raw</b>") {
		t.Fatalf("raw HTML should pass through: %s", out)
	}
	if !strings.Contains(out, `<span class="memo-tag">#tag</span>`) {
		t.Fatalf("missing tag span: %s", out)
	}
}

func TestRenderHTML_CodeBlockHighlighted(t *testing.T) {
	p := NewParser()
	nodes, _, err := p.Parse("```go\nfmt.Println(42)\n```")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	out := RenderHTML(nodes)
	if !strings.Contains(out, "<pre") {
		t.Fatalf("expected a pre block: %s", out)
	}
	if !strings.Contains(out, "fmt") {
		t.Fatalf("expected code text in output: %s", out)
	}
}

func TestRenderHTML_ListGrouping(t *testing.T) {
	nodes := []Node{
		{Type: NodeUnorderedListItem, Children: []Node{{Type: NodeText, Text: "a"}}},
		{Type: NodeUnorderedListItem, Children: []Node{{Type: NodeText, Text: "b"}}},
		{Type: NodeOrderedListItem, Children: []Node{{Type: NodeText, Text: "c"}}},
	}
	out := RenderHTML(nodes)
	want := "<ul><li>a</li><li>b</li></ul><ol><li>c</li></ol>"
	if out != want {
		t.Fatalf("RenderHTML() = %s, want %s", out, want)
	}
}

func assertStringSlicesEqual(t *testing.T, expected []string, actual []string) {
	t.Helper()
	if len(expected) != len(actual) {
		t.Fatalf("length mismatch expected=%d actual=%d, actual=%v", len(expected), len(actual), actual)
	}
	for i := range expected {
		if expected[i] != actual[i] {
			t.Fatalf("index %d mismatch expected=%q actual=%q", i, expected[i], actual[i])
		}
	}
}
