package http

import (
	"strings"
	"time"

	"memoir/internal/markdown"
	"memoir/internal/models"
	"memoir/internal/store"
)

type profileResponse struct {
	Version string `json:"version"`
}

type signInRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type signInResponse struct {
	User        apiUser `json:"user"`
	AccessToken string  `json:"accessToken"`
}

type getCurrentUserResponse struct {
	User apiUser `json:"user"`
}

type createUserRequest struct {
	User createUserBody `json:"user"`
}

type createUserBody struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Role        string `json:"role"`
}

type updateUserRequest struct {
	DisplayName       *string `json:"displayName"`
	Email             *string `json:"email"`
	Password          *string `json:"password"`
	DefaultVisibility *string `json:"defaultVisibility"`
}

type apiUser struct {
	Name              string `json:"name"`
	Role              string `json:"role,omitempty"`
	Username          string `json:"username"`
	DisplayName       string `json:"displayName,omitempty"`
	Email             string `json:"email,omitempty"`
	DefaultVisibility string `json:"defaultVisibility,omitempty"`
	CreateTime        string `json:"createTime,omitempty"`
	UpdateTime        string `json:"updateTime,omitempty"`
}

type createAccessTokenRequest struct {
	Description string  `json:"description"`
	ExpiresAt   *string `json:"expiresAt"`
}

type apiAccessToken struct {
	ID          int64  `json:"id"`
	TokenPrefix string `json:"tokenPrefix"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
	LastUsedAt  string `json:"lastUsedAt,omitempty"`
	ExpiresAt   string `json:"expiresAt,omitempty"`
	RevokedAt   string `json:"revokedAt,omitempty"`
}

type createAccessTokenResponse struct {
	AccessToken apiAccessToken `json:"accessToken"`
	Token       string         `json:"token"`
}

type listAccessTokensResponse struct {
	AccessTokens []apiAccessToken `json:"accessTokens"`
}

type listMemosResponse struct {
	Memos         []apiMemo `json:"memos"`
	NextPageToken string    `json:"nextPageToken,omitempty"`
}

type createMemoRequest struct {
	Content    string `json:"content"`
	Visibility string `json:"visibility"`
	Pinned     bool   `json:"pinned"`
}

type updateMemoRequest struct {
	Content    *string `json:"content"`
	Visibility *string `json:"visibility"`
	State      *string `json:"state"`
	Pinned     *bool   `json:"pinned"`
}

type apiMemo struct {
	Name       string   `json:"name"`
	UID        string   `json:"uid,omitempty"`
	State      string   `json:"state,omitempty"`
	Creator    string   `json:"creator,omitempty"`
	Parent     string   `json:"parent,omitempty"`
	CreateTime string   `json:"createTime,omitempty"`
	UpdateTime string   `json:"updateTime,omitempty"`
	Content    string   `json:"content,omitempty"`
	Visibility string   `json:"visibility,omitempty"`
	Pinned     bool     `json:"pinned"`
	Tags       []string `json:"tags,omitempty"`
}

type renderMemoResponse struct {
	Nodes []markdown.Node `json:"nodes"`
	HTML  string          `json:"html"`
}

type listMemoCommentsResponse struct {
	Memos []apiMemo `json:"memos"`
}

type userStatsResponse struct {
	TagCount map[string]int `json:"tagCount"`
}

type createResourceRequest struct {
	Filename string  `json:"filename"`
	Type     string  `json:"type"`
	Content  string  `json:"content"`
	Memo     *string `json:"memo"`
}

type apiResource struct {
	Name       string `json:"name"`
	UID        string `json:"uid,omitempty"`
	CreateTime string `json:"createTime,omitempty"`
	Filename   string `json:"filename,omitempty"`
	Type       string `json:"type,omitempty"`
	Size       string `json:"size,omitempty"`
	Memo       string `json:"memo,omitempty"`
}

type bindResourceRequest struct {
	Memo string `json:"memo"`
}

type listResourcesResponse struct {
	Resources []apiResource `json:"resources"`
}

type apiWorkspaceSetting struct {
	Key        string `json:"key"`
	Value      string `json:"value"`
	UpdateTime string `json:"updateTime,omitempty"`
}

type listWorkspaceSettingsResponse struct {
	Settings []apiWorkspaceSetting `json:"settings"`
}

type upsertWorkspaceSettingRequest struct {
	Value string `json:"value"`
}

func toAPIUser(user models.User) apiUser {
	role := strings.ToUpper(strings.TrimSpace(user.Role))
	switch role {
	case "ADMIN":
	case "USER":
	default:
		role = "ROLE_UNSPECIFIED"
	}
	name := ""
	if user.ID > 0 {
		name = user.Name()
	}
	return apiUser{
		Name:              name,
		Role:              role,
		Username:          user.Username,
		DisplayName:       user.DisplayName,
		Email:             user.Email,
		DefaultVisibility: string(user.DefaultVisibility),
		CreateTime:        formatMaybeTime(user.CreateTime),
		UpdateTime:        formatMaybeTime(user.UpdateTime),
	}
}

func toAPIMemo(memo models.Memo) apiMemo {
	parent := ""
	if memo.ParentID != nil {
		parent = "memos/" + models.Int64ToString(*memo.ParentID)
	}
	return apiMemo{
		Name:       memo.Name(),
		UID:        memo.UID,
		State:      string(memo.RowStatus),
		Creator:    "users/" + models.Int64ToString(memo.CreatorID),
		Parent:     parent,
		CreateTime: formatTime(memo.CreateTime),
		UpdateTime: formatTime(memo.UpdateTime),
		Content:    memo.Content,
		Visibility: string(memo.Visibility),
		Pinned:     memo.Pinned,
		Tags:       memo.Payload.Tags(),
	}
}

func toAPIMemos(memos []models.Memo) []apiMemo {
	out := make([]apiMemo, 0, len(memos))
	for _, memo := range memos {
		out = append(out, toAPIMemo(memo))
	}
	return out
}

func toAPIResource(resource models.Resource) apiResource {
	memoName := ""
	if resource.MemoID != nil {
		memoName = "memos/" + models.Int64ToString(*resource.MemoID)
	}
	return apiResource{
		Name:       resource.Name(),
		UID:        resource.UID,
		CreateTime: formatTime(resource.CreateTime),
		Filename:   resource.Filename,
		Type:       resource.Type,
		Size:       models.Int64ToString(resource.Size),
		Memo:       memoName,
	}
}

func toAPIAccessToken(token models.PersonalAccessToken) apiAccessToken {
	return apiAccessToken{
		ID:          token.ID,
		TokenPrefix: token.TokenPrefix,
		Description: token.Description,
		CreatedAt:   formatMaybeTime(token.CreatedAt),
		LastUsedAt:  formatMaybeTimePtr(token.LastUsedAt),
		ExpiresAt:   formatMaybeTimePtr(token.ExpiresAt),
		RevokedAt:   formatMaybeTimePtr(token.RevokedAt),
	}
}

func toAPIWorkspaceSetting(setting store.WorkspaceSetting) apiWorkspaceSetting {
	return apiWorkspaceSetting{
		Key:        string(setting.Key),
		Value:      setting.Value,
		UpdateTime: formatMaybeTime(setting.UpdateTime),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatMaybeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return formatTime(t)
}

func formatMaybeTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
