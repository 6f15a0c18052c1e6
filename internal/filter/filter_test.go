package filter

import (
	"reflect"
	"testing"
	"time"

	"memoir/internal/models"
	"memoir/internal/store"
)

func TestParseMemoFilter_AllFields(t *testing.T) {
	raw := `creator == "users/7" && visibilities == ["PUBLIC", "PROTECTED"] && tag_search == ["todo", "work"] ` +
		`&& content_search == ["milk"] && state == "NORMAL" && order_by_pinned == true && limit == 20 ` +
		`&& has_link == true && include_comments == true`
	find, err := ParseMemoFilter(raw)
	if err != nil {
		t.Fatalf("ParseMemoFilter() error = %v", err)
	}

	if find.CreatorID == nil || *find.CreatorID != 7 {
		t.Fatalf("creator = %v", find.CreatorID)
	}
	if !reflect.DeepEqual(find.VisibilityList, []models.Visibility{models.VisibilityPublic, models.VisibilityProtected}) {
		t.Fatalf("visibilities = %v", find.VisibilityList)
	}
	if find.PayloadFind == nil || !reflect.DeepEqual(find.PayloadFind.TagSearch, []string{"todo", "work"}) {
		t.Fatalf("tag search = %+v", find.PayloadFind)
	}
	if !find.PayloadFind.HasLink {
		t.Fatal("has_link not set")
	}
	if !reflect.DeepEqual(find.ContentSearch, []string{"milk"}) {
		t.Fatalf("content search = %v", find.ContentSearch)
	}
	if find.RowStatus == nil || *find.RowStatus != models.RowStatusNormal {
		t.Fatalf("state = %v", find.RowStatus)
	}
	if !find.OrderByPinned {
		t.Fatal("order_by_pinned not set")
	}
	if find.Limit == nil || *find.Limit != 20 {
		t.Fatalf("limit = %v", find.Limit)
	}
	if find.ExcludeComments {
		t.Fatal("include_comments == true must clear comment exclusion")
	}
}

func TestParseMemoFilter_Empty(t *testing.T) {
	find, err := ParseMemoFilter("   ")
	if err != nil {
		t.Fatalf("ParseMemoFilter() error = %v", err)
	}
	if !find.ExcludeComments {
		t.Fatal("default criteria must exclude comments")
	}
	if find.CreatorID != nil || find.VisibilityList != nil || find.PayloadFind != nil {
		t.Fatalf("empty filter must add no constraints: %+v", find)
	}
}

func TestParseMemoFilter_UnknownIdentifierIgnored(t *testing.T) {
	find, err := ParseMemoFilter(`favorite_color == "green" && uid == "abc"`)
	if err != nil {
		t.Fatalf("ParseMemoFilter() error = %v", err)
	}
	if find.UID == nil || *find.UID != "abc" {
		t.Fatalf("uid = %v", find.UID)
	}
}

func TestParseMemoFilter_InvalidEnumValuesIgnored(t *testing.T) {
	find, err := ParseMemoFilter(`state == "OBLITERATED" && visibilities == ["PUBLIC", "LOUD"]`)
	if err != nil {
		t.Fatalf("ParseMemoFilter() error = %v", err)
	}
	if find.RowStatus != nil {
		t.Fatalf("unrecognized state must stay unset, got %v", *find.RowStatus)
	}
	if !reflect.DeepEqual(find.VisibilityList, []models.Visibility{models.VisibilityPublic}) {
		t.Fatalf("visibilities = %v", find.VisibilityList)
	}
}

func TestParseMemoFilter_MalformedCreatorIgnored(t *testing.T) {
	find, err := ParseMemoFilter(`creator == "bob"`)
	if err != nil {
		t.Fatalf("ParseMemoFilter() error = %v", err)
	}
	if find.CreatorID != nil {
		t.Fatalf("malformed creator must stay unset, got %v", *find.CreatorID)
	}
}

func TestParseMemoFilter_GrossMalformation(t *testing.T) {
	for _, raw := range []string{
		`creator ==`,
		`uid != "abc"`,
		`order_by_pinned`,
		`creator == "users/1" || uid == "abc"`,
	} {
		if _, err := ParseMemoFilter(raw); err == nil {
			t.Fatalf("ParseMemoFilter(%q) expected error", raw)
		}
	}
}

func TestParseMemoFilter_DisplayTimeBounds(t *testing.T) {
	find, err := ParseMemoFilter(`display_time_after == 1700000000 && display_time_before == 1700003600`)
	if err != nil {
		t.Fatalf("ParseMemoFilter() error = %v", err)
	}
	wantAfter := time.Unix(1700000000, 0).UTC()
	wantBefore := time.Unix(1700003600, 0).UTC()
	if find.CreateTimeAfter == nil || !find.CreateTimeAfter.Equal(wantAfter) {
		t.Fatalf("after = %v", find.CreateTimeAfter)
	}
	if find.CreateTimeBefore == nil || !find.CreateTimeBefore.Equal(wantBefore) {
		t.Fatalf("before = %v", find.CreateTimeBefore)
	}
}

func TestRender_RoundTrip(t *testing.T) {
	creatorID := int64(7)
	uid := "memo-uid"
	status := models.RowStatusArchived
	limit := 15
	before := time.Unix(1700003600, 0).UTC()
	after := time.Unix(1700000000, 0).UTC()
	find := &store.FindMemo{
		CreatorID:        &creatorID,
		UID:              &uid,
		RowStatus:        &status,
		VisibilityList:   []models.Visibility{models.VisibilityPublic, models.VisibilityProtected},
		ContentSearch:    []string{"milk", "100%"},
		PayloadFind:      &store.FindMemoPayload{TagSearch: []string{"todo"}, HasCode: true},
		OrderByPinned:    true,
		CreateTimeBefore: &before,
		CreateTimeAfter:  &after,
		Random:           true,
		Limit:            &limit,
		ExcludeComments:  false,
	}

	rendered := Render(find)
	reparsed, err := ParseMemoFilter(rendered)
	if err != nil {
		t.Fatalf("ParseMemoFilter(%q) error = %v", rendered, err)
	}
	if !reflect.DeepEqual(find, reparsed) {
		t.Fatalf("round trip mismatch:\nrendered: %s\nwant: %+v\ngot:  %+v", rendered, find, reparsed)
	}
}

func TestRender_Empty(t *testing.T) {
	if got := Render(&store.FindMemo{ExcludeComments: true}); got != "" {
		t.Fatalf("Render(default) = %q, want empty", got)
	}
}
