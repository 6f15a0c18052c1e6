package store

import (
	"strings"
	"testing"

	"memoir/internal/models"
)

func TestBuildFindMemoQuery_Empty(t *testing.T) {
	query, args := BuildFindMemoQuery(&FindMemo{})
	if !strings.Contains(query, "WHERE 1 = 1") {
		t.Fatalf("missing base predicate: %s", query)
	}
	if len(args) != 0 {
		t.Fatalf("expected no args, got %v", args)
	}
	if strings.Contains(query, "LIMIT") || strings.Contains(query, "OFFSET") {
		t.Fatalf("unbounded query must carry no LIMIT/OFFSET: %s", query)
	}
	if !strings.HasSuffix(strings.TrimSpace(query), "memos.create_time DESC, memos.id DESC") {
		t.Fatalf("default ordering wrong: %s", query)
	}
}

func TestBuildFindMemoQuery_ClauseArgLockStep(t *testing.T) {
	creatorID := int64(7)
	status := models.RowStatusNormal
	limit := 10
	offset := 20
	find := &FindMemo{
		CreatorID:      &creatorID,
		RowStatus:      &status,
		VisibilityList: []models.Visibility{models.VisibilityPublic, models.VisibilityProtected},
		ContentSearch:  []string{"alpha", "beta"},
		Limit:          &limit,
		Offset:         &offset,
	}
	query, args := BuildFindMemoQuery(find)

	if got := strings.Count(query, "?"); got != len(args) {
		t.Fatalf("placeholder count %d != arg count %d\n%s", got, len(args), query)
	}
	want := []any{int64(7), "NORMAL", "%alpha%", "%beta%", "PUBLIC", "PROTECTED", 10, 20}
	if len(args) != len(want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("arg %d = %v, want %v", i, args[i], want[i])
		}
	}
	if !strings.Contains(query, "memos.visibility IN (?,?)") {
		t.Fatalf("missing visibility IN expansion: %s", query)
	}
}

func TestBuildFindMemoQuery_InjectionResistance(t *testing.T) {
	terms := []string{"100%", "a_b", "it's", "x; DROP TABLE memos"}
	for _, term := range terms {
		find := &FindMemo{ContentSearch: []string{term}}
		query, args := BuildFindMemoQuery(find)
		if strings.Contains(query, term) {
			t.Fatalf("search term %q leaked into SQL text: %s", term, query)
		}
		if len(args) != 1 || args[0] != "%"+term+"%" {
			t.Fatalf("term %q not bound as parameter: %v", term, args)
		}
	}
}

func TestBuildFindMemoQuery_TagSearchAndSemantics(t *testing.T) {
	find := &FindMemo{PayloadFind: &FindMemoPayload{TagSearch: []string{"todo", "work"}}}
	query, args := BuildFindMemoQuery(find)

	if got := strings.Count(query, "EXISTS (SELECT 1 FROM json_each(memos.payload, '$.property.tags')"); got != 2 {
		t.Fatalf("expected one EXISTS clause per tag, got %d:\n%s", got, query)
	}
	if strings.Contains(query, "IN (") {
		t.Fatalf("tag search must not compile to an IN list: %s", query)
	}
	if len(args) != 2 || args[0] != "todo" || args[1] != "work" {
		t.Fatalf("args = %v", args)
	}
}

func TestBuildFindMemoQuery_PayloadBooleans(t *testing.T) {
	find := &FindMemo{PayloadFind: &FindMemoPayload{HasLink: true, HasCode: true}}
	query, args := BuildFindMemoQuery(find)
	if !strings.Contains(query, `COALESCE(JSON_EXTRACT(memos.payload, '$.property.has_link'), 0) = ?`) {
		t.Fatalf("missing has_link clause: %s", query)
	}
	if !strings.Contains(query, `COALESCE(JSON_EXTRACT(memos.payload, '$.property.has_code'), 0) = ?`) {
		t.Fatalf("missing has_code clause: %s", query)
	}
	if strings.Contains(query, "has_task_list") || strings.Contains(query, "has_incomplete_tasks") {
		t.Fatalf("unset payload booleans must add no clause: %s", query)
	}
	if len(args) != 2 {
		t.Fatalf("args = %v", args)
	}
}

func TestBuildFindMemoQuery_OrderingTerms(t *testing.T) {
	find := &FindMemo{OrderByPinned: true, OrderByUpdateTime: true}
	query, _ := BuildFindMemoQuery(find)
	if !strings.Contains(query, "ORDER BY memos.pinned DESC, memos.update_time DESC, memos.id DESC") {
		t.Fatalf("ordering = %s", query)
	}
	if strings.Contains(query, "create_time DESC") {
		t.Fatalf("create_time and update_time ordering are mutually exclusive: %s", query)
	}

	query, _ = BuildFindMemoQuery(&FindMemo{})
	if !strings.Contains(query, "ORDER BY memos.create_time DESC, memos.id DESC") {
		t.Fatalf("default ordering = %s", query)
	}
}

func TestBuildFindMemoQuery_Random(t *testing.T) {
	query, _ := BuildFindMemoQuery(&FindMemo{Random: true})
	if !strings.Contains(query, "ORDER BY RANDOM()") {
		t.Fatalf("missing random ordering: %s", query)
	}
	if strings.Contains(query, "id DESC") {
		t.Fatalf("random ordering replaces the deterministic terms: %s", query)
	}
}

func TestBuildFindMemoQuery_CommentFiltering(t *testing.T) {
	query, _ := BuildFindMemoQuery(&FindMemo{ExcludeComments: true})
	if !strings.Contains(query, "memos.parent_id IS NULL") {
		t.Fatalf("missing comment exclusion: %s", query)
	}

	parentID := int64(5)
	query, args := BuildFindMemoQuery(&FindMemo{ParentID: &parentID, ExcludeComments: true})
	if strings.Contains(query, "IS NULL") {
		t.Fatalf("explicit parent filter overrides comment exclusion: %s", query)
	}
	if len(args) != 1 || args[0] != int64(5) {
		t.Fatalf("args = %v", args)
	}
}

func TestBuildFindMemoQuery_ExcludeContent(t *testing.T) {
	query, _ := BuildFindMemoQuery(&FindMemo{ExcludeContent: true})
	if !strings.Contains(query, `'' AS content`) {
		t.Fatalf("content not excluded: %s", query)
	}
}

func TestBuildFindResourceQuery(t *testing.T) {
	creatorID := int64(3)
	memoID := int64(9)
	limit := 5
	query, args := BuildFindResourceQuery(&FindResource{CreatorID: &creatorID, MemoID: &memoID, Limit: &limit})
	if got := strings.Count(query, "?"); got != len(args) {
		t.Fatalf("placeholder count %d != arg count %d", got, len(args))
	}
	if !strings.Contains(query, "ORDER BY resources.create_time DESC, resources.id DESC") {
		t.Fatalf("ordering = %s", query)
	}
}
