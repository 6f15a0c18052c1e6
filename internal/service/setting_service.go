package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"memoir/internal/config"
	"memoir/internal/models"
	"memoir/internal/store"
)

var ErrUnknownSettingKey = errors.New("unknown workspace setting key")

// GeneralSetting is the value stored under the GENERAL workspace key.
type GeneralSetting struct {
	AllowRegistration *bool  `json:"allow_registration,omitempty"`
	CustomTitle       string `json:"custom_title,omitempty"`
}

// MemoRelatedSetting is the value stored under the MEMO_RELATED workspace key.
type MemoRelatedSetting struct {
	DisplayWithUpdateTime bool `json:"display_with_update_time"`
}

// StorageSetting is the value stored under the STORAGE workspace key.
type StorageSetting struct {
	Backend string          `json:"backend"`
	S3      config.S3Config `json:"s3,omitempty"`
}

type SettingService struct {
	store *store.SQLStore
}

func NewSettingService(s *store.SQLStore) *SettingService {
	return &SettingService{store: s}
}

// GetWorkspaceSetting returns the raw setting row. An unknown key name is
// rejected before touching storage.
func (s *SettingService) GetWorkspaceSetting(ctx context.Context, rawKey string) (store.WorkspaceSetting, error) {
	key := models.WorkspaceSettingKeyFromString(rawKey)
	if key == models.WorkspaceSettingUnknown {
		return store.WorkspaceSetting{}, ErrUnknownSettingKey
	}
	setting, err := s.store.GetWorkspaceSetting(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return store.WorkspaceSetting{Key: key, Value: "{}", UpdateTime: time.Time{}}, nil
	}
	return setting, err
}

func (s *SettingService) ListWorkspaceSettings(ctx context.Context) ([]store.WorkspaceSetting, error) {
	return s.store.ListWorkspaceSettings(ctx)
}

// UpsertWorkspaceSetting validates that the value is a JSON object before
// persisting it under a recognized key.
func (s *SettingService) UpsertWorkspaceSetting(ctx context.Context, rawKey string, value string) (store.WorkspaceSetting, error) {
	key := models.WorkspaceSettingKeyFromString(rawKey)
	if key == models.WorkspaceSettingUnknown {
		return store.WorkspaceSetting{}, ErrUnknownSettingKey
	}
	value = strings.TrimSpace(value)
	if value == "" {
		value = "{}"
	}
	var probe map[string]any
	if err := json.Unmarshal([]byte(value), &probe); err != nil {
		return store.WorkspaceSetting{}, fmt.Errorf("%w: setting value must be a JSON object", ErrInvalidInput)
	}
	if err := s.store.UpsertWorkspaceSettings(ctx, store.WorkspaceSetting{Key: key, Value: value}); err != nil {
		return store.WorkspaceSetting{}, err
	}
	return s.store.GetWorkspaceSetting(ctx, key)
}

func (s *SettingService) SetMemoDisplayWithUpdateTime(ctx context.Context, enabled bool) error {
	raw, err := json.Marshal(MemoRelatedSetting{DisplayWithUpdateTime: enabled})
	if err != nil {
		return err
	}
	return s.store.UpsertWorkspaceSettings(ctx, store.WorkspaceSetting{
		Key:   models.WorkspaceSettingMemoRelated,
		Value: string(raw),
	})
}

// ResolveStorageBackend reads the STORAGE setting and falls back to the
// static configuration when the setting is absent or empty.
func (s *SettingService) ResolveStorageBackend(ctx context.Context, fallback config.StorageBackend, fallbackS3 config.S3Config) (config.StorageBackend, config.S3Config, error) {
	setting, err := s.store.GetWorkspaceSetting(ctx, models.WorkspaceSettingStorage)
	if errors.Is(err, sql.ErrNoRows) {
		return fallback, fallbackS3, nil
	}
	if err != nil {
		return "", config.S3Config{}, err
	}

	var value StorageSetting
	if err := json.Unmarshal([]byte(setting.Value), &value); err != nil {
		return "", config.S3Config{}, fmt.Errorf("invalid storage setting: %w", err)
	}
	backend := config.StorageBackend(strings.ToLower(strings.TrimSpace(value.Backend)))
	switch backend {
	case "":
		return fallback, fallbackS3, nil
	case config.StorageBackendLocal:
		return config.StorageBackendLocal, config.S3Config{}, nil
	case config.StorageBackendS3:
		if err := value.S3.Validate(); err != nil {
			return "", config.S3Config{}, err
		}
		return config.StorageBackendS3, value.S3, nil
	default:
		return "", config.S3Config{}, fmt.Errorf("unsupported storage backend %q", value.Backend)
	}
}
