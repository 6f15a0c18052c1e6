package store

import (
	"strings"
	"time"

	"memoir/internal/models"
)

// FindMemo is the typed query criteria for memo lookups. Every field is
// optional; absent fields add no constraint. It is built per request, either
// from structured parameters or by the filter parser, then completed by the
// service layer before compilation.
type FindMemo struct {
	ID        *int64
	UID       *string
	CreatorID *int64
	ParentID  *int64
	RowStatus *models.RowStatus

	VisibilityList []models.Visibility
	ContentSearch  []string
	PayloadFind    *FindMemoPayload

	CreateTimeAfter  *time.Time
	CreateTimeBefore *time.Time
	UpdateTimeAfter  *time.Time
	UpdateTimeBefore *time.Time

	ExcludeContent  bool
	ExcludeComments bool
	Random          bool

	OrderByUpdateTime bool
	OrderByPinned     bool

	Limit  *int
	Offset *int
}

// FindMemoPayload filters on the derived payload facts. The booleans are
// presence filters: true requires the fact, false adds no constraint.
type FindMemoPayload struct {
	Raw                *string
	TagSearch          []string
	HasLink            bool
	HasTaskList        bool
	HasCode            bool
	HasIncompleteTasks bool
}

type FindResource struct {
	ID        *int64
	UID       *string
	CreatorID *int64
	MemoID    *int64

	Limit  *int
	Offset *int
}

// BuildFindMemoQuery compiles criteria into a parameterized SELECT. All
// user-supplied values travel through args; only fixed column names and
// operators appear in the SQL text.
func BuildFindMemoQuery(find *FindMemo) (string, []any) {
	contentColumn := `memos.content`
	if find.ExcludeContent {
		contentColumn = `''`
	}
	query := `SELECT memos.id, memos.uid, memos.creator_id, memos.parent_id, ` + contentColumn + ` AS content,
		memos.visibility, memos.row_status, memos.pinned, memos.payload, memos.create_time, memos.update_time
		FROM memos WHERE 1 = 1`
	args := []any{}

	if find.ID != nil {
		query += ` AND memos.id = ?`
		args = append(args, *find.ID)
	}
	if find.UID != nil {
		query += ` AND memos.uid = ?`
		args = append(args, *find.UID)
	}
	if find.CreatorID != nil {
		query += ` AND memos.creator_id = ?`
		args = append(args, *find.CreatorID)
	}
	if find.ParentID != nil {
		query += ` AND memos.parent_id = ?`
		args = append(args, *find.ParentID)
	} else if find.ExcludeComments {
		query += ` AND memos.parent_id IS NULL`
	}
	if find.RowStatus != nil {
		query += ` AND memos.row_status = ?`
		args = append(args, string(*find.RowStatus))
	}
	if find.CreateTimeAfter != nil {
		query += ` AND memos.create_time > ?`
		args = append(args, formatTime(*find.CreateTimeAfter))
	}
	if find.CreateTimeBefore != nil {
		query += ` AND memos.create_time < ?`
		args = append(args, formatTime(*find.CreateTimeBefore))
	}
	if find.UpdateTimeAfter != nil {
		query += ` AND memos.update_time > ?`
		args = append(args, formatTime(*find.UpdateTimeAfter))
	}
	if find.UpdateTimeBefore != nil {
		query += ` AND memos.update_time < ?`
		args = append(args, formatTime(*find.UpdateTimeBefore))
	}
	for _, term := range find.ContentSearch {
		query += ` AND memos.content LIKE ?`
		args = append(args, "%"+term+"%")
	}
	if len(find.VisibilityList) > 0 {
		placeholders := strings.TrimRight(strings.Repeat("?,", len(find.VisibilityList)), ",")
		query += ` AND memos.visibility IN (` + placeholders + `)`
		for _, v := range find.VisibilityList {
			args = append(args, string(v))
		}
	}
	if payload := find.PayloadFind; payload != nil {
		if payload.Raw != nil {
			query += ` AND memos.payload = ?`
			args = append(args, *payload.Raw)
		}
		// one EXISTS clause per tag: multiple tags in a filter require the
		// memo to carry every one of them
		for _, tag := range payload.TagSearch {
			query += ` AND EXISTS (SELECT 1 FROM json_each(memos.payload, '$.property.tags') jt WHERE jt.value = ?)`
			args = append(args, tag)
		}
		addPayloadBool := func(path string, required bool) {
			if !required {
				return
			}
			query += ` AND COALESCE(JSON_EXTRACT(memos.payload, '$.property.` + path + `'), 0) = ?`
			args = append(args, 1)
		}
		addPayloadBool("has_link", payload.HasLink)
		addPayloadBool("has_task_list", payload.HasTaskList)
		addPayloadBool("has_code", payload.HasCode)
		addPayloadBool("has_incomplete_tasks", payload.HasIncompleteTasks)
	}

	if find.Random {
		query += ` ORDER BY RANDOM()`
	} else {
		orders := []string{}
		if find.OrderByPinned {
			orders = append(orders, "memos.pinned DESC")
		}
		if find.OrderByUpdateTime {
			orders = append(orders, "memos.update_time DESC")
		} else {
			orders = append(orders, "memos.create_time DESC")
		}
		// id DESC last, always: identical timestamps would otherwise make
		// page boundaries nondeterministic
		orders = append(orders, "memos.id DESC")
		query += ` ORDER BY ` + strings.Join(orders, ", ")
	}

	if find.Limit != nil {
		query += ` LIMIT ?`
		args = append(args, *find.Limit)
		if find.Offset != nil {
			query += ` OFFSET ?`
			args = append(args, *find.Offset)
		}
	}
	return query, args
}

func BuildFindResourceQuery(find *FindResource) (string, []any) {
	query := `SELECT resources.id, resources.uid, resources.creator_id, resources.memo_id, resources.filename,
		resources.type, resources.size, resources.external_link, resources.storage_type, resources.storage_key,
		resources.content_hash, resources.create_time
		FROM resources WHERE 1 = 1`
	args := []any{}

	if find.ID != nil {
		query += ` AND resources.id = ?`
		args = append(args, *find.ID)
	}
	if find.UID != nil {
		query += ` AND resources.uid = ?`
		args = append(args, *find.UID)
	}
	if find.CreatorID != nil {
		query += ` AND resources.creator_id = ?`
		args = append(args, *find.CreatorID)
	}
	if find.MemoID != nil {
		query += ` AND resources.memo_id = ?`
		args = append(args, *find.MemoID)
	}

	query += ` ORDER BY resources.create_time DESC, resources.id DESC`

	if find.Limit != nil {
		query += ` LIMIT ?`
		args = append(args, *find.Limit)
		if find.Offset != nil {
			query += ` OFFSET ?`
			args = append(args, *find.Offset)
		}
	}
	return query, args
}
