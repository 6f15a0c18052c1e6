package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"memoir/internal/filter"
	"memoir/internal/markdown"
	"memoir/internal/models"
	"memoir/internal/store"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNestedComment    = errors.New("cannot comment on a comment")
	ErrInvalidInput     = errors.New("invalid input")
)

const defaultPageSize = 50

type MemoService struct {
	store  *store.SQLStore
	parser *markdown.Parser
}

func NewMemoService(s *store.SQLStore, parser *markdown.Parser) *MemoService {
	return &MemoService{
		store:  s,
		parser: parser,
	}
}

type CreateMemoInput struct {
	Content    string
	Visibility models.Visibility
	Pinned     bool
	ParentID   *int64
}

type UpdateMemoInput struct {
	Content    *string
	Visibility *models.Visibility
	RowStatus  *models.RowStatus
	Pinned     *bool
}

func (s *MemoService) CreateMemo(ctx context.Context, creatorID int64, input CreateMemoInput) (models.Memo, error) {
	visibility := input.Visibility
	if !visibility.IsValid() {
		visibility = models.VisibilityPrivate
	}

	if input.ParentID != nil {
		parent, err := s.store.GetMemoByID(ctx, *input.ParentID)
		if err != nil {
			return models.Memo{}, err
		}
		if parent.ParentID != nil {
			return models.Memo{}, ErrNestedComment
		}
	}

	payload, err := s.parser.ExtractPayload(input.Content)
	if err != nil {
		return models.Memo{}, err
	}

	return s.store.CreateMemo(ctx, uuid.NewString(), creatorID, input.ParentID, input.Content, visibility, input.Pinned, payload)
}

func (s *MemoService) GetMemo(ctx context.Context, viewerID *int64, memoID int64) (models.Memo, error) {
	memo, err := s.store.GetMemoByID(ctx, memoID)
	if err != nil {
		return models.Memo{}, err
	}
	if !memoVisibleTo(memo, viewerID) {
		return models.Memo{}, sql.ErrNoRows
	}
	return memo, nil
}

func (s *MemoService) GetMemoByUID(ctx context.Context, viewerID *int64, uid string) (models.Memo, error) {
	memo, err := s.store.GetMemoByUID(ctx, uid)
	if err != nil {
		return models.Memo{}, err
	}
	if !memoVisibleTo(memo, viewerID) {
		return models.Memo{}, sql.ErrNoRows
	}
	return memo, nil
}

func (s *MemoService) UpdateMemo(ctx context.Context, updaterID int64, memoID int64, input UpdateMemoInput) (models.Memo, error) {
	current, err := s.store.GetMemoByID(ctx, memoID)
	if err != nil {
		return models.Memo{}, err
	}
	if current.CreatorID != updaterID {
		return models.Memo{}, ErrPermissionDenied
	}

	update := store.MemoUpdate{}
	if input.Content != nil {
		content := *input.Content
		update.Content = &content
		// payload is derived state: every content edit rebuilds it in full
		payload, err := s.parser.ExtractPayload(content)
		if err != nil {
			return models.Memo{}, err
		}
		update.Payload = &payload
	}
	if input.Visibility != nil {
		if !input.Visibility.IsValid() {
			return models.Memo{}, fmt.Errorf("%w: visibility", ErrInvalidInput)
		}
		update.Visibility = input.Visibility
	}
	if input.RowStatus != nil {
		if !input.RowStatus.IsValid() {
			return models.Memo{}, fmt.Errorf("%w: state", ErrInvalidInput)
		}
		update.RowStatus = input.RowStatus
	}
	if input.Pinned != nil {
		update.Pinned = input.Pinned
	}

	return s.store.UpdateMemo(ctx, memoID, update)
}

func (s *MemoService) DeleteMemo(ctx context.Context, requesterID int64, memoID int64) error {
	memo, err := s.store.GetMemoByID(ctx, memoID)
	if err != nil {
		return err
	}
	if memo.CreatorID != requesterID {
		return ErrPermissionDenied
	}
	return s.store.DeleteMemo(ctx, memoID)
}

// ListMemos resolves the filter string, completes the criteria for the
// caller, and pages through the result with the opaque cursor.
func (s *MemoService) ListMemos(ctx context.Context, viewerID *int64, rawFilter string, pageSize int, pageToken string) ([]models.Memo, string, error) {
	find, err := filter.ParseMemoFilter(rawFilter)
	if err != nil {
		return nil, "", err
	}

	token, err := resolvePageToken(pageSize, pageToken)
	if err != nil {
		return nil, "", err
	}

	if err := s.CompleteFindMemo(ctx, viewerID, find); err != nil {
		return nil, "", err
	}

	queryLimit := token.QueryLimit()
	find.Limit = &queryLimit
	find.Offset = &token.Offset

	memos, err := s.store.ListMemos(ctx, find)
	if err != nil {
		return nil, "", err
	}

	nextToken := ""
	if next := store.NextPage(token, &memos); next != nil {
		nextToken = next.Encode()
	}
	return memos, nextToken, nil
}

// ListMemoComments returns the comment thread under a memo, with visibility
// rules applied but without the creator defaulting used for top-level
// listings.
func (s *MemoService) ListMemoComments(ctx context.Context, viewerID *int64, memoID int64) ([]models.Memo, error) {
	if _, err := s.GetMemo(ctx, viewerID, memoID); err != nil {
		return nil, err
	}
	find := &store.FindMemo{ParentID: &memoID}
	applyVisibilityClamp(find, viewerID, true)
	return s.store.ListMemos(ctx, find)
}

// CompleteFindMemo resolves caller identity and the workspace display
// preference into concrete criteria before compilation. Anonymous callers
// are pinned to exactly {PUBLIC}.
func (s *MemoService) CompleteFindMemo(ctx context.Context, viewerID *int64, find *store.FindMemo) error {
	if find.RowStatus == nil {
		status := models.RowStatusNormal
		find.RowStatus = &status
	}

	otherCreator := viewerID != nil && find.CreatorID != nil && *find.CreatorID != *viewerID
	applyVisibilityClamp(find, viewerID, otherCreator)
	if viewerID != nil && find.CreatorID == nil && find.ParentID == nil {
		creatorID := *viewerID
		find.CreatorID = &creatorID
	}

	displayWithUpdateTime, err := s.memoDisplayWithUpdateTime(ctx)
	if err != nil {
		return err
	}
	find.OrderByUpdateTime = displayWithUpdateTime
	foldTimeBounds(find)
	return nil
}

// applyVisibilityClamp restricts what a viewer can see: an anonymous caller
// sees only PUBLIC, and a caller looking at someone else's memos sees at most
// PUBLIC and PROTECTED.
func applyVisibilityClamp(find *store.FindMemo, viewerID *int64, otherCreator bool) {
	if viewerID == nil {
		find.VisibilityList = []models.Visibility{models.VisibilityPublic}
		return
	}
	if !otherCreator {
		return
	}
	shared := []models.Visibility{models.VisibilityPublic, models.VisibilityProtected}
	if len(find.VisibilityList) == 0 {
		find.VisibilityList = shared
		return
	}
	clamped := make([]models.Visibility, 0, len(find.VisibilityList))
	for _, v := range find.VisibilityList {
		if v == models.VisibilityPublic || v == models.VisibilityProtected {
			clamped = append(clamped, v)
		}
	}
	if len(clamped) == 0 {
		clamped = shared
	}
	find.VisibilityList = clamped
}

// foldTimeBounds reinterprets whichever before/after pair does not match the
// active sort column as bounds on the active one, keeping the tighter bound
// when both are set.
func foldTimeBounds(find *store.FindMemo) {
	if find.OrderByUpdateTime {
		find.UpdateTimeBefore = tighterBefore(find.UpdateTimeBefore, find.CreateTimeBefore)
		find.UpdateTimeAfter = tighterAfter(find.UpdateTimeAfter, find.CreateTimeAfter)
		find.CreateTimeBefore = nil
		find.CreateTimeAfter = nil
		return
	}
	find.CreateTimeBefore = tighterBefore(find.CreateTimeBefore, find.UpdateTimeBefore)
	find.CreateTimeAfter = tighterAfter(find.CreateTimeAfter, find.UpdateTimeAfter)
	find.UpdateTimeBefore = nil
	find.UpdateTimeAfter = nil
}

func tighterBefore(a *time.Time, b *time.Time) *time.Time {
	if a == nil {
		return b
	}
	if b == nil || a.Before(*b) {
		return a
	}
	return b
}

func tighterAfter(a *time.Time, b *time.Time) *time.Time {
	if a == nil {
		return b
	}
	if b == nil || a.After(*b) {
		return a
	}
	return b
}

func resolvePageToken(pageSize int, pageToken string) (store.PageToken, error) {
	if pageToken != "" {
		return store.DecodePageToken(pageToken)
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > store.MaxPageLimit {
		pageSize = store.MaxPageLimit
	}
	return store.PageToken{Limit: pageSize, Offset: 0}, nil
}

func memoVisibleTo(memo models.Memo, viewerID *int64) bool {
	if viewerID != nil && memo.CreatorID == *viewerID {
		return true
	}
	switch memo.Visibility {
	case models.VisibilityPublic:
		return true
	case models.VisibilityProtected:
		return viewerID != nil
	default:
		return false
	}
}

// RenderMemo parses the memo content into the document node tree and its
// HTML rendering.
func (s *MemoService) RenderMemo(ctx context.Context, viewerID *int64, memoID int64) ([]markdown.Node, string, error) {
	memo, err := s.GetMemo(ctx, viewerID, memoID)
	if err != nil {
		return nil, "", err
	}
	nodes, _, err := s.parser.Parse(memo.Content)
	if err != nil {
		return nil, "", err
	}
	return nodes, markdown.RenderHTML(nodes), nil
}

// GetUserTagCount aggregates tag usage over the memos of one user that the
// viewer may see.
func (s *MemoService) GetUserTagCount(ctx context.Context, viewerID *int64, targetUserID int64) (map[string]int, error) {
	status := models.RowStatusNormal
	find := &store.FindMemo{
		CreatorID:       &targetUserID,
		RowStatus:       &status,
		ExcludeComments: true,
	}
	otherCreator := viewerID == nil || *viewerID != targetUserID
	applyVisibilityClamp(find, viewerID, otherCreator)
	return s.store.CountMemoTags(ctx, find)
}

// RebuildAllMemoPayloads re-derives every memo's payload from its content,
// writing back only the ones whose stored facts drifted.
func (s *MemoService) RebuildAllMemoPayloads(ctx context.Context) (int, error) {
	memos, err := s.store.ListMemos(ctx, &store.FindMemo{})
	if err != nil {
		return 0, err
	}
	updated := 0
	for _, memo := range memos {
		payload, err := s.parser.ExtractPayload(memo.Content)
		if err != nil {
			return updated, err
		}
		if payloadEqual(payload, memo.Payload) {
			continue
		}
		if _, err := s.store.UpdateMemo(ctx, memo.ID, store.MemoUpdate{Payload: &payload}); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

func payloadEqual(a models.MemoPayload, b models.MemoPayload) bool {
	rawA, errA := json.Marshal(a)
	rawB, errB := json.Marshal(b)
	return errA == nil && errB == nil && string(rawA) == string(rawB)
}

func (s *MemoService) memoDisplayWithUpdateTime(ctx context.Context) (bool, error) {
	setting, err := s.store.GetWorkspaceSetting(ctx, models.WorkspaceSettingMemoRelated)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var value struct {
		DisplayWithUpdateTime bool `json:"display_with_update_time"`
	}
	if err := json.Unmarshal([]byte(setting.Value), &value); err != nil {
		return false, nil
	}
	return value.DisplayWithUpdateTime, nil
}
