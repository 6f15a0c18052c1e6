package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"memoir/internal/models"
)

// SQLStore is the persistence layer over a single *sql.DB pool. All
// timestamps are stored as RFC3339Nano UTC text.
type SQLStore struct {
	db *sql.DB
}

func New(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) DB() *sql.DB {
	return s.db
}

type MemoUpdate struct {
	Content    *string
	Visibility *models.Visibility
	RowStatus  *models.RowStatus
	Pinned     *bool
	Payload    *models.MemoPayload
}

type UserUpdate struct {
	DisplayName       *string
	Email             *string
	PasswordHash      *string
	DefaultVisibility *models.Visibility
}

func (s *SQLStore) CreateUser(ctx context.Context, username string, displayName string, email string, passwordHash string, role string) (models.User, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO users (username, display_name, email, password_hash, role, default_visibility, create_time, update_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		username,
		displayName,
		email,
		passwordHash,
		role,
		string(models.VisibilityPrivate),
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return models.User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.User{}, err
	}
	return s.GetUserByID(ctx, id)
}

func (s *SQLStore) GetUserByID(ctx context.Context, id int64) (models.User, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, username, display_name, email, password_hash, role, default_visibility, create_time, update_time
		FROM users
		WHERE id = ?`,
		id,
	)
	return scanUser(row)
}

func (s *SQLStore) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, username, display_name, email, password_hash, role, default_visibility, create_time, update_time
		FROM users
		WHERE username = ? COLLATE NOCASE`,
		username,
	)
	return scanUser(row)
}

func (s *SQLStore) UpdateUser(ctx context.Context, userID int64, update UserUpdate) (models.User, error) {
	assignments := make([]string, 0, 5)
	args := make([]any, 0, 6)

	if update.DisplayName != nil {
		assignments = append(assignments, "display_name = ?")
		args = append(args, *update.DisplayName)
	}
	if update.Email != nil {
		assignments = append(assignments, "email = ?")
		args = append(args, *update.Email)
	}
	if update.PasswordHash != nil {
		assignments = append(assignments, "password_hash = ?")
		args = append(args, *update.PasswordHash)
	}
	if update.DefaultVisibility != nil {
		assignments = append(assignments, "default_visibility = ?")
		args = append(args, string(*update.DefaultVisibility))
	}

	assignments = append(assignments, "update_time = ?")
	args = append(args, formatTime(time.Now().UTC()))
	args = append(args, userID)

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = ?`, strings.Join(assignments, ", "))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return models.User{}, err
	}
	return s.GetUserByID(ctx, userID)
}

func (s *SQLStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *SQLStore) CreatePersonalAccessToken(ctx context.Context, userID int64, rawToken string, description string, expiresAt *time.Time) (models.PersonalAccessToken, error) {
	now := time.Now().UTC()
	tokenPrefix := rawToken
	if len(tokenPrefix) > 8 {
		tokenPrefix = tokenPrefix[:8]
	}
	var expiresValue any
	if expiresAt != nil {
		expiresValue = formatTime(*expiresAt)
	}
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO personal_access_tokens (user_id, token_prefix, token_hash, description, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		userID,
		tokenPrefix,
		HashToken(rawToken),
		description,
		formatTime(now),
		expiresValue,
	)
	if err != nil {
		return models.PersonalAccessToken{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.PersonalAccessToken{}, err
	}
	return s.GetPersonalAccessTokenByID(ctx, id)
}

func (s *SQLStore) GetPersonalAccessTokenByID(ctx context.Context, id int64) (models.PersonalAccessToken, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, user_id, token_prefix, token_hash, description, created_at, last_used_at, expires_at, revoked_at
		FROM personal_access_tokens WHERE id = ?`,
		id,
	)
	return scanPersonalAccessToken(row)
}

func (s *SQLStore) GetPersonalAccessTokenByHash(ctx context.Context, tokenHash string) (models.PersonalAccessToken, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, user_id, token_prefix, token_hash, description, created_at, last_used_at, expires_at, revoked_at
		FROM personal_access_tokens WHERE token_hash = ?`,
		tokenHash,
	)
	return scanPersonalAccessToken(row)
}

func (s *SQLStore) ListPersonalAccessTokensByUserID(ctx context.Context, userID int64) ([]models.PersonalAccessToken, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, user_id, token_prefix, token_hash, description, created_at, last_used_at, expires_at, revoked_at
		FROM personal_access_tokens
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]models.PersonalAccessToken, 0)
	for rows.Next() {
		token, err := scanPersonalAccessToken(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, token)
	}
	return result, rows.Err()
}

func (s *SQLStore) RevokePersonalAccessToken(ctx context.Context, userID int64, tokenID int64) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE personal_access_tokens SET revoked_at = ? WHERE id = ? AND user_id = ? AND revoked_at IS NULL`,
		formatTime(time.Now().UTC()),
		tokenID,
		userID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *SQLStore) TouchPersonalAccessToken(ctx context.Context, tokenID int64) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE personal_access_tokens SET last_used_at = ? WHERE id = ?`,
		formatTime(time.Now().UTC()),
		tokenID,
	)
	return err
}

func (s *SQLStore) CreateMemo(ctx context.Context, uid string, creatorID int64, parentID *int64, content string, visibility models.Visibility, pinned bool, payload models.MemoPayload) (models.Memo, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return models.Memo{}, err
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO memos (uid, creator_id, parent_id, content, visibility, row_status, pinned, payload, create_time, update_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uid,
		creatorID,
		parentID,
		content,
		string(visibility),
		string(models.RowStatusNormal),
		boolToSQLiteInt(pinned),
		string(payloadJSON),
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return models.Memo{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Memo{}, err
	}
	return s.GetMemoByID(ctx, id)
}

func (s *SQLStore) GetMemoByID(ctx context.Context, id int64) (models.Memo, error) {
	id64 := id
	memos, err := s.ListMemos(ctx, &FindMemo{ID: &id64})
	if err != nil {
		return models.Memo{}, err
	}
	if len(memos) == 0 {
		return models.Memo{}, sql.ErrNoRows
	}
	return memos[0], nil
}

func (s *SQLStore) GetMemoByUID(ctx context.Context, uid string) (models.Memo, error) {
	memos, err := s.ListMemos(ctx, &FindMemo{UID: &uid})
	if err != nil {
		return models.Memo{}, err
	}
	if len(memos) == 0 {
		return models.Memo{}, sql.ErrNoRows
	}
	return memos[0], nil
}

// ListMemos executes the compiled find query. The criteria must already be
// completed by the service layer on user-facing paths.
func (s *SQLStore) ListMemos(ctx context.Context, find *FindMemo) ([]models.Memo, error) {
	query, args := BuildFindMemoQuery(find)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	memos := make([]models.Memo, 0)
	for rows.Next() {
		memo, err := scanMemo(rows)
		if err != nil {
			return nil, err
		}
		memos = append(memos, memo)
	}
	return memos, rows.Err()
}

func (s *SQLStore) UpdateMemo(ctx context.Context, memoID int64, update MemoUpdate) (models.Memo, error) {
	assignments := make([]string, 0, 6)
	args := make([]any, 0, 7)

	if update.Content != nil {
		assignments = append(assignments, "content = ?")
		args = append(args, *update.Content)
	}
	if update.Visibility != nil {
		assignments = append(assignments, "visibility = ?")
		args = append(args, string(*update.Visibility))
	}
	if update.RowStatus != nil {
		assignments = append(assignments, "row_status = ?")
		args = append(args, string(*update.RowStatus))
	}
	if update.Pinned != nil {
		assignments = append(assignments, "pinned = ?")
		args = append(args, boolToSQLiteInt(*update.Pinned))
	}
	if update.Payload != nil {
		payloadJSON, err := json.Marshal(*update.Payload)
		if err != nil {
			return models.Memo{}, err
		}
		assignments = append(assignments, "payload = ?")
		args = append(args, string(payloadJSON))
	}

	assignments = append(assignments, "update_time = ?")
	args = append(args, formatTime(time.Now().UTC()))
	args = append(args, memoID)

	query := fmt.Sprintf(`UPDATE memos SET %s WHERE id = ?`, strings.Join(assignments, ", "))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return models.Memo{}, err
	}
	return s.GetMemoByID(ctx, memoID)
}

// DeleteMemo removes the memo, its comments and its attachment rows in one
// transaction.
func (s *SQLStore) DeleteMemo(ctx context.Context, memoID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE resources SET memo_id = NULL WHERE memo_id = ?`, memoID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM memos WHERE parent_id = ?`, memoID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM memos WHERE id = ?`, memoID)
		return err
	})
}

// CountMemoTags returns tag usage counts across the memos matching the
// criteria, expanded from the payload tag arrays.
func (s *SQLStore) CountMemoTags(ctx context.Context, find *FindMemo) (map[string]int, error) {
	inner, args := BuildFindMemoQuery(find)
	query := `SELECT jt.value, COUNT(1) FROM (` + inner + `) AS matched
		JOIN json_each(matched.payload, '$.property.tags') jt
		GROUP BY jt.value`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var tag string
		var count int
		if err := rows.Scan(&tag, &count); err != nil {
			return nil, err
		}
		counts[tag] = count
	}
	return counts, rows.Err()
}

func (s *SQLStore) CreateResource(ctx context.Context, resource models.Resource) (models.Resource, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO resources (uid, creator_id, memo_id, filename, type, size, external_link, storage_type, storage_key, content_hash, create_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		resource.UID,
		resource.CreatorID,
		resource.MemoID,
		resource.Filename,
		resource.Type,
		resource.Size,
		resource.ExternalLink,
		resource.StorageType,
		resource.StorageKey,
		resource.ContentHash,
		formatTime(now),
	)
	if err != nil {
		return models.Resource{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Resource{}, err
	}
	return s.GetResourceByID(ctx, id)
}

func (s *SQLStore) GetResourceByID(ctx context.Context, id int64) (models.Resource, error) {
	id64 := id
	resources, err := s.ListResources(ctx, &FindResource{ID: &id64})
	if err != nil {
		return models.Resource{}, err
	}
	if len(resources) == 0 {
		return models.Resource{}, sql.ErrNoRows
	}
	return resources[0], nil
}

func (s *SQLStore) FindResourceByContentHash(ctx context.Context, creatorID int64, contentHash string) (models.Resource, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, uid, creator_id, memo_id, filename, type, size, external_link, storage_type, storage_key, content_hash, create_time
		FROM resources
		WHERE creator_id = ? AND content_hash = ?
		ORDER BY id DESC`,
		creatorID,
		contentHash,
	)
	return scanResource(row)
}

func (s *SQLStore) ListResources(ctx context.Context, find *FindResource) ([]models.Resource, error) {
	query, args := BuildFindResourceQuery(find)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	resources := make([]models.Resource, 0)
	for rows.Next() {
		resource, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		resources = append(resources, resource)
	}
	return resources, rows.Err()
}

func (s *SQLStore) CountResourcesByStorageKey(ctx context.Context, storageKey string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM resources WHERE storage_key = ?`, storageKey).Scan(&count)
	return count, err
}

func (s *SQLStore) BindResourceToMemo(ctx context.Context, resourceID int64, memoID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE resources SET memo_id = ? WHERE id = ?`, memoID, resourceID)
	return err
}

func (s *SQLStore) DeleteResource(ctx context.Context, resourceID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM resources WHERE id = ?`, resourceID)
	return err
}

func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func scanUser(scanner interface {
	Scan(dest ...any) error
}) (models.User, error) {
	var user models.User
	var defaultVisibility string
	var createTime string
	var updateTime string
	if err := scanner.Scan(
		&user.ID,
		&user.Username,
		&user.DisplayName,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&defaultVisibility,
		&createTime,
		&updateTime,
	); err != nil {
		return models.User{}, err
	}
	user.DefaultVisibility = models.Visibility(defaultVisibility)
	var err error
	user.CreateTime, err = parseTime(createTime)
	if err != nil {
		return models.User{}, err
	}
	user.UpdateTime, err = parseTime(updateTime)
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func scanPersonalAccessToken(scanner interface {
	Scan(dest ...any) error
}) (models.PersonalAccessToken, error) {
	var token models.PersonalAccessToken
	var createdAt string
	var lastUsedAt sql.NullString
	var expiresAt sql.NullString
	var revokedAt sql.NullString
	if err := scanner.Scan(
		&token.ID,
		&token.UserID,
		&token.TokenPrefix,
		&token.TokenHash,
		&token.Description,
		&createdAt,
		&lastUsedAt,
		&expiresAt,
		&revokedAt,
	); err != nil {
		return models.PersonalAccessToken{}, err
	}
	var err error
	token.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return models.PersonalAccessToken{}, err
	}
	token.LastUsedAt, err = parseNullableTime(lastUsedAt)
	if err != nil {
		return models.PersonalAccessToken{}, err
	}
	token.ExpiresAt, err = parseNullableTime(expiresAt)
	if err != nil {
		return models.PersonalAccessToken{}, err
	}
	token.RevokedAt, err = parseNullableTime(revokedAt)
	if err != nil {
		return models.PersonalAccessToken{}, err
	}
	return token, nil
}

func scanMemo(scanner interface {
	Scan(dest ...any) error
}) (models.Memo, error) {
	var memo models.Memo
	var parentID sql.NullInt64
	var visibility string
	var rowStatus string
	var pinned int
	var payloadJSON string
	var createTime string
	var updateTime string
	if err := scanner.Scan(
		&memo.ID,
		&memo.UID,
		&memo.CreatorID,
		&parentID,
		&memo.Content,
		&visibility,
		&rowStatus,
		&pinned,
		&payloadJSON,
		&createTime,
		&updateTime,
	); err != nil {
		return models.Memo{}, err
	}
	if parentID.Valid {
		memo.ParentID = &parentID.Int64
	}
	memo.Visibility = models.Visibility(visibility)
	memo.RowStatus = models.RowStatus(rowStatus)
	memo.Pinned = pinned == 1
	var err error
	memo.CreateTime, err = parseTime(createTime)
	if err != nil {
		return models.Memo{}, err
	}
	memo.UpdateTime, err = parseTime(updateTime)
	if err != nil {
		return models.Memo{}, err
	}
	if strings.TrimSpace(payloadJSON) == "" {
		payloadJSON = "{}"
	}
	// derived facts are not authoritative content; an unreadable blob must
	// not make the memo itself unreadable
	if err := json.Unmarshal([]byte(payloadJSON), &memo.Payload); err != nil {
		memo.Payload = models.MemoPayload{}
	}
	return memo, nil
}

func scanResource(scanner interface {
	Scan(dest ...any) error
}) (models.Resource, error) {
	var resource models.Resource
	var memoID sql.NullInt64
	var createTime string
	if err := scanner.Scan(
		&resource.ID,
		&resource.UID,
		&resource.CreatorID,
		&memoID,
		&resource.Filename,
		&resource.Type,
		&resource.Size,
		&resource.ExternalLink,
		&resource.StorageType,
		&resource.StorageKey,
		&resource.ContentHash,
		&createTime,
	); err != nil {
		return models.Resource{}, err
	}
	if memoID.Valid {
		resource.MemoID = &memoID.Int64
	}
	var err error
	resource.CreateTime, err = parseTime(createTime)
	if err != nil {
		return models.Resource{}, err
	}
	return resource, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, raw)
}

func parseNullableTime(raw sql.NullString) (*time.Time, error) {
	if !raw.Valid {
		return nil, nil
	}
	t, err := parseTime(raw.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func boolToSQLiteInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
