package service

import (
	"context"
	"path/filepath"
	"testing"

	"memoir/internal/db"
	"memoir/internal/markdown"
	"memoir/internal/models"
	"memoir/internal/storage"
	"memoir/internal/store"
)

type testServices struct {
	store           *store.SQLStore
	memoService     *MemoService
	userService     *UserService
	resourceService *ResourceService
	settingService  *SettingService
	uploadsDir      string
}

func setupTestServices(t *testing.T) testServices {
	t.Helper()
	dir := t.TempDir()
	sqliteDB, err := db.OpenSQLite(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() {
		_ = sqliteDB.Close()
	})
	if err := db.Migrate(sqliteDB); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	sqlStore := store.New(sqliteDB)

	uploadsDir := filepath.Join(dir, "uploads")
	localStore, err := storage.NewLocalStore(uploadsDir)
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}

	return testServices{
		store:           sqlStore,
		memoService:     NewMemoService(sqlStore, markdown.NewParser()),
		userService:     NewUserService(sqlStore, "test-secret"),
		resourceService: NewResourceService(sqlStore, localStore),
		settingService:  NewSettingService(sqlStore),
		uploadsDir:      uploadsDir,
	}
}

func mustCreateUser(t *testing.T, s *store.SQLStore, username string) models.User {
	t.Helper()
	user, err := s.CreateUser(context.Background(), username, username, "", "", "USER")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	return user
}

func mustCreateMemo(t *testing.T, svc *MemoService, creatorID int64, content string, visibility models.Visibility) models.Memo {
	t.Helper()
	memo, err := svc.CreateMemo(context.Background(), creatorID, CreateMemoInput{
		Content:    content,
		Visibility: visibility,
	})
	if err != nil {
		t.Fatalf("CreateMemo() error = %v", err)
	}
	return memo
}
