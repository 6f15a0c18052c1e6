package models

import (
	"slices"
	"strconv"
	"strings"
	"time"
)

type Visibility string

const (
	VisibilityUnknown   Visibility = "VISIBILITY_UNSPECIFIED"
	VisibilityPrivate   Visibility = "PRIVATE"
	VisibilityProtected Visibility = "PROTECTED"
	VisibilityPublic    Visibility = "PUBLIC"
)

// VisibilityFromString is total: unrecognized input parses to
// VisibilityUnknown instead of failing. Unknown is a sink value and is never
// written back to storage.
func VisibilityFromString(raw string) Visibility {
	switch Visibility(strings.ToUpper(strings.TrimSpace(raw))) {
	case VisibilityPrivate:
		return VisibilityPrivate
	case VisibilityProtected:
		return VisibilityProtected
	case VisibilityPublic:
		return VisibilityPublic
	default:
		return VisibilityUnknown
	}
}

func (v Visibility) IsValid() bool {
	return v == VisibilityPrivate || v == VisibilityProtected || v == VisibilityPublic
}

type RowStatus string

const (
	RowStatusUnknown  RowStatus = "ROW_STATUS_UNSPECIFIED"
	RowStatusNormal   RowStatus = "NORMAL"
	RowStatusArchived RowStatus = "ARCHIVED"
)

// RowStatusFromString is total, with RowStatusUnknown as the sink for
// unrecognized input.
func RowStatusFromString(raw string) RowStatus {
	switch RowStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case RowStatusNormal:
		return RowStatusNormal
	case RowStatusArchived:
		return RowStatusArchived
	default:
		return RowStatusUnknown
	}
}

func (s RowStatus) IsValid() bool {
	return s == RowStatusNormal || s == RowStatusArchived
}

type WorkspaceSettingKey string

const (
	WorkspaceSettingUnknown     WorkspaceSettingKey = "UNKNOWN"
	WorkspaceSettingGeneral     WorkspaceSettingKey = "GENERAL"
	WorkspaceSettingStorage     WorkspaceSettingKey = "STORAGE"
	WorkspaceSettingMemoRelated WorkspaceSettingKey = "MEMO_RELATED"
)

func WorkspaceSettingKeyFromString(raw string) WorkspaceSettingKey {
	switch WorkspaceSettingKey(strings.ToUpper(strings.TrimSpace(raw))) {
	case WorkspaceSettingGeneral:
		return WorkspaceSettingGeneral
	case WorkspaceSettingStorage:
		return WorkspaceSettingStorage
	case WorkspaceSettingMemoRelated:
		return WorkspaceSettingMemoRelated
	default:
		return WorkspaceSettingUnknown
	}
}

// MemoPayload holds the derived, searchable facts of a memo. It is recomputed
// in full on every content edit and persisted verbatim as the memo's payload
// column, so the JSON shape here is a storage contract: `property` is absent
// entirely when no facts were found.
type MemoPayload struct {
	Property *MemoPayloadProperty `json:"property,omitempty"`
}

type MemoPayloadProperty struct {
	Tags               []string `json:"tags,omitempty"`
	HasLink            bool     `json:"has_link,omitempty"`
	HasTaskList        bool     `json:"has_task_list,omitempty"`
	HasCode            bool     `json:"has_code,omitempty"`
	HasIncompleteTasks bool     `json:"has_incomplete_tasks,omitempty"`
}

// Merge combines two payloads field-wise: tags are unioned and the booleans
// ORed. Merge is commutative and idempotent; call Normalize once accumulation
// is finished.
func (p MemoPayload) Merge(other MemoPayload) MemoPayload {
	if other.Property == nil {
		return p
	}
	if p.Property == nil {
		prop := *other.Property
		prop.Tags = slices.Clone(other.Property.Tags)
		return MemoPayload{Property: &prop}
	}
	merged := MemoPayloadProperty{
		Tags:               append(slices.Clone(p.Property.Tags), other.Property.Tags...),
		HasLink:            p.Property.HasLink || other.Property.HasLink,
		HasTaskList:        p.Property.HasTaskList || other.Property.HasTaskList,
		HasCode:            p.Property.HasCode || other.Property.HasCode,
		HasIncompleteTasks: p.Property.HasIncompleteTasks || other.Property.HasIncompleteTasks,
	}
	return MemoPayload{Property: &merged}
}

// Normalize dedupes and sorts the tag list and drops an all-empty property so
// that a memo without facts serializes to {}. The sorted list is independent
// of document and merge order, so normalized payloads compare equal whenever
// their fact sets do.
func (p MemoPayload) Normalize() MemoPayload {
	if p.Property == nil {
		return p
	}
	prop := *p.Property
	if len(prop.Tags) > 0 {
		seen := make(map[string]struct{}, len(prop.Tags))
		tags := make([]string, 0, len(prop.Tags))
		for _, tag := range prop.Tags {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			tags = append(tags, tag)
		}
		slices.Sort(tags)
		prop.Tags = tags
	}
	if len(prop.Tags) == 0 && !prop.HasLink && !prop.HasTaskList && !prop.HasCode && !prop.HasIncompleteTasks {
		return MemoPayload{}
	}
	return MemoPayload{Property: &prop}
}

func (p MemoPayload) Tags() []string {
	if p.Property == nil {
		return []string{}
	}
	return p.Property.Tags
}

type User struct {
	ID                int64
	Username          string
	DisplayName       string
	Email             string
	PasswordHash      string
	Role              string
	DefaultVisibility Visibility
	CreateTime        time.Time
	UpdateTime        time.Time
}

type PersonalAccessToken struct {
	ID          int64
	UserID      int64
	TokenPrefix string
	TokenHash   string
	Description string
	CreatedAt   time.Time
	LastUsedAt  *time.Time
	ExpiresAt   *time.Time
	RevokedAt   *time.Time
}

type Memo struct {
	ID         int64
	UID        string
	CreatorID  int64
	ParentID   *int64
	Content    string
	Visibility Visibility
	RowStatus  RowStatus
	Pinned     bool
	CreateTime time.Time
	UpdateTime time.Time
	Payload    MemoPayload
}

type Resource struct {
	ID           int64
	UID          string
	CreatorID    int64
	MemoID       *int64
	Filename     string
	Type         string
	Size         int64
	ExternalLink string
	StorageType  string
	StorageKey   string
	ContentHash  string
	CreateTime   time.Time
}

func (m Memo) Name() string {
	return "memos/" + Int64ToString(m.ID)
}

func (u User) Name() string {
	return "users/" + Int64ToString(u.ID)
}

func (r Resource) Name() string {
	return "resources/" + Int64ToString(r.ID)
}

func Int64ToString(v int64) string {
	return strconv.FormatInt(v, 10)
}
