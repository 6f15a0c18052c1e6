package store

import (
	"context"
	"database/sql"
	"time"

	"memoir/internal/models"
)

type WorkspaceSetting struct {
	Key        models.WorkspaceSettingKey
	Value      string
	UpdateTime time.Time
}

func (s *SQLStore) GetWorkspaceSetting(ctx context.Context, key models.WorkspaceSettingKey) (WorkspaceSetting, error) {
	var setting WorkspaceSetting
	var rawKey string
	var updateTime string
	err := s.db.QueryRowContext(
		ctx,
		`SELECT key, value, update_time FROM workspace_settings WHERE key = ?`,
		string(key),
	).Scan(&rawKey, &setting.Value, &updateTime)
	if err != nil {
		return WorkspaceSetting{}, err
	}
	setting.Key = models.WorkspaceSettingKeyFromString(rawKey)
	setting.UpdateTime, err = parseTime(updateTime)
	if err != nil {
		return WorkspaceSetting{}, err
	}
	return setting, nil
}

func (s *SQLStore) ListWorkspaceSettings(ctx context.Context) ([]WorkspaceSetting, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value, update_time FROM workspace_settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make([]WorkspaceSetting, 0)
	for rows.Next() {
		var setting WorkspaceSetting
		var rawKey string
		var updateTime string
		if err := rows.Scan(&rawKey, &setting.Value, &updateTime); err != nil {
			return nil, err
		}
		setting.Key = models.WorkspaceSettingKeyFromString(rawKey)
		setting.UpdateTime, err = parseTime(updateTime)
		if err != nil {
			return nil, err
		}
		settings = append(settings, setting)
	}
	return settings, rows.Err()
}

// UpsertWorkspaceSettings writes all given settings in one transaction so a
// logical settings update is never observed half applied.
func (s *SQLStore) UpsertWorkspaceSettings(ctx context.Context, settings ...WorkspaceSetting) error {
	now := formatTime(time.Now().UTC())
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, setting := range settings {
			if _, err := tx.ExecContext(
				ctx,
				`INSERT INTO workspace_settings (key, value, update_time) VALUES (?, ?, ?)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value, update_time = excluded.update_time`,
				string(setting.Key),
				setting.Value,
				now,
			); err != nil {
				return err
			}
		}
		return nil
	})
}
