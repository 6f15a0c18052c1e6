package service

import (
	"context"
	"errors"
	"testing"

	"memoir/internal/config"
)

func TestWorkspaceSettings_KeyValidation(t *testing.T) {
	svc := setupTestServices(t)
	ctx := context.Background()

	if _, err := svc.settingService.GetWorkspaceSetting(ctx, "WHATEVER"); !errors.Is(err, ErrUnknownSettingKey) {
		t.Fatalf("error = %v, want ErrUnknownSettingKey", err)
	}
	if _, err := svc.settingService.UpsertWorkspaceSetting(ctx, "GENERAL", "not json"); err == nil {
		t.Fatal("expected invalid JSON to be rejected")
	}

	setting, err := svc.settingService.GetWorkspaceSetting(ctx, "general")
	if err != nil {
		t.Fatalf("GetWorkspaceSetting(unset) error = %v", err)
	}
	if setting.Value != "{}" {
		t.Fatalf("unset setting value = %q, want {}", setting.Value)
	}

	stored, err := svc.settingService.UpsertWorkspaceSetting(ctx, "GENERAL", `{"custom_title": "notes"}`)
	if err != nil {
		t.Fatalf("UpsertWorkspaceSetting() error = %v", err)
	}
	if stored.Value != `{"custom_title": "notes"}` {
		t.Fatalf("stored value = %q", stored.Value)
	}
}

func TestResolveStorageBackend(t *testing.T) {
	svc := setupTestServices(t)
	ctx := context.Background()

	backend, _, err := svc.settingService.ResolveStorageBackend(ctx, config.StorageBackendLocal, config.S3Config{})
	if err != nil || backend != config.StorageBackendLocal {
		t.Fatalf("ResolveStorageBackend(no setting) = %v, %v", backend, err)
	}

	if _, err := svc.settingService.UpsertWorkspaceSetting(ctx, "STORAGE",
		`{"backend":"s3","s3":{"Endpoint":"http://minio:9000","Region":"us-east-1","Bucket":"memoir","AccessKeyID":"key","AccessSecret":"secret","UsePathStyle":true}}`); err != nil {
		t.Fatalf("UpsertWorkspaceSetting() error = %v", err)
	}
	backend, s3cfg, err := svc.settingService.ResolveStorageBackend(ctx, config.StorageBackendLocal, config.S3Config{})
	if err != nil {
		t.Fatalf("ResolveStorageBackend(s3) error = %v", err)
	}
	if backend != config.StorageBackendS3 || s3cfg.Bucket != "memoir" || !s3cfg.UsePathStyle {
		t.Fatalf("resolved = %v %+v", backend, s3cfg)
	}

	if _, err := svc.settingService.UpsertWorkspaceSetting(ctx, "STORAGE", `{"backend":"tape"}`); err != nil {
		t.Fatalf("UpsertWorkspaceSetting() error = %v", err)
	}
	if _, _, err := svc.settingService.ResolveStorageBackend(ctx, config.StorageBackendLocal, config.S3Config{}); err == nil {
		t.Fatal("expected unsupported backend to fail")
	}
}
