package filter

import (
	"fmt"
	"strconv"
	"strings"

	"memoir/internal/store"
)

// Render reconstructs a filter string from find criteria. Parsing the result
// yields equivalent criteria, so clients can persist and edit filters in
// string form.
func Render(find *store.FindMemo) string {
	parts := []string{}
	if find.CreatorID != nil {
		parts = append(parts, fmt.Sprintf("creator == %s", strconv.Quote(fmt.Sprintf("users/%d", *find.CreatorID))))
	}
	if find.UID != nil {
		parts = append(parts, fmt.Sprintf("uid == %s", strconv.Quote(*find.UID)))
	}
	if find.RowStatus != nil {
		parts = append(parts, fmt.Sprintf("state == %s", strconv.Quote(string(*find.RowStatus))))
	}
	if len(find.VisibilityList) > 0 {
		values := make([]string, 0, len(find.VisibilityList))
		for _, v := range find.VisibilityList {
			values = append(values, string(v))
		}
		parts = append(parts, "visibilities == "+renderStringList(values))
	}
	if len(find.ContentSearch) > 0 {
		parts = append(parts, "content_search == "+renderStringList(find.ContentSearch))
	}
	if payload := find.PayloadFind; payload != nil {
		if len(payload.TagSearch) > 0 {
			parts = append(parts, "tag_search == "+renderStringList(payload.TagSearch))
		}
		if payload.HasLink {
			parts = append(parts, "has_link == true")
		}
		if payload.HasTaskList {
			parts = append(parts, "has_task_list == true")
		}
		if payload.HasCode {
			parts = append(parts, "has_code == true")
		}
		if payload.HasIncompleteTasks {
			parts = append(parts, "has_incomplete_tasks == true")
		}
	}
	if find.OrderByPinned {
		parts = append(parts, "order_by_pinned == true")
	}
	if find.CreateTimeBefore != nil {
		parts = append(parts, fmt.Sprintf("display_time_before == %d", find.CreateTimeBefore.Unix()))
	}
	if find.CreateTimeAfter != nil {
		parts = append(parts, fmt.Sprintf("display_time_after == %d", find.CreateTimeAfter.Unix()))
	}
	if find.Random {
		parts = append(parts, "random == true")
	}
	if find.Limit != nil {
		parts = append(parts, fmt.Sprintf("limit == %d", *find.Limit))
	}
	if !find.ExcludeComments {
		parts = append(parts, "include_comments == true")
	}
	return strings.Join(parts, " && ")
}

func renderStringList(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		quoted = append(quoted, strconv.Quote(v))
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
