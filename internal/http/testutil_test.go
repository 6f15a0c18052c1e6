package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"

	"memoir/internal/config"
	"memoir/internal/db"
	"memoir/internal/markdown"
	"memoir/internal/models"
	"memoir/internal/service"
	"memoir/internal/storage"
	"memoir/internal/store"
)

type testEnv struct {
	app             *fiber.App
	store           *store.SQLStore
	userService     *service.UserService
	memoService     *service.MemoService
	resourceService *service.ResourceService
	settingService  *service.SettingService
}

func setupTestEnv(t *testing.T) testEnv {
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

	localStore, err := storage.NewLocalStore(filepath.Join(dir, "uploads"))
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}

	cfg := config.Config{
		JWTSecret:         "test-secret",
		BodyLimitMB:       4,
		AllowRegistration: true,
	}
	userService := service.NewUserService(sqlStore, cfg.JWTSecret)
	memoService := service.NewMemoService(sqlStore, markdown.NewParser())
	resourceService := service.NewResourceService(sqlStore, localStore)
	settingService := service.NewSettingService(sqlStore)

	return testEnv{
		app:             NewRouter(cfg, userService, memoService, resourceService, settingService),
		store:           sqlStore,
		userService:     userService,
		memoService:     memoService,
		resourceService: resourceService,
		settingService:  settingService,
	}
}

// signUpAndSignIn registers a user through the service layer and returns the
// user with a bearer token for requests.
func signUpAndSignIn(t *testing.T, env testEnv, username string) (models.User, string) {
	t.Helper()
	ctx := context.Background()
	user, err := env.userService.CreateUser(ctx, nil, service.CreateUserInput{
		Username: username,
		Password: "secret-password",
	}, true)
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	_, token, err := env.userService.SignInWithPassword(ctx, username, "secret-password")
	if err != nil {
		t.Fatalf("SignInWithPassword() error = %v", err)
	}
	return user, token
}

func doJSON(t *testing.T, app *fiber.App, method string, path string, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req, 10000)
	if err != nil {
		t.Fatalf("app.Test(%s %s) error = %v", method, path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decode response %q: %v", raw, err)
	}
}
