package service

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCreateUser_FirstUserBecomesAdmin(t *testing.T) {
	svc := setupTestServices(t)
	ctx := context.Background()

	first, err := svc.userService.CreateUser(ctx, nil, CreateUserInput{
		Username: "alice",
		Password: "secret-password",
	}, false)
	if err != nil {
		t.Fatalf("CreateUser(first) error = %v", err)
	}
	if first.Role != "ADMIN" {
		t.Fatalf("first user role = %q, want ADMIN", first.Role)
	}

	if _, err := svc.userService.CreateUser(ctx, nil, CreateUserInput{
		Username: "bob",
		Password: "secret-password",
	}, false); !errors.Is(err, ErrRegistrationDisabled) {
		t.Fatalf("CreateUser(registration off) error = %v, want ErrRegistrationDisabled", err)
	}

	second, err := svc.userService.CreateUser(ctx, &first, CreateUserInput{
		Username: "bob",
		Password: "secret-password",
	}, false)
	if err != nil {
		t.Fatalf("CreateUser(by admin) error = %v", err)
	}
	if second.Role != "USER" {
		t.Fatalf("second user role = %q, want USER", second.Role)
	}
}

func TestCreateUser_Validation(t *testing.T) {
	svc := setupTestServices(t)
	ctx := context.Background()

	if _, err := svc.userService.CreateUser(ctx, nil, CreateUserInput{
		Username: "Not Valid!",
		Password: "secret-password",
	}, true); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("error = %v, want ErrInvalidUsername", err)
	}
	if _, err := svc.userService.CreateUser(ctx, nil, CreateUserInput{
		Username: "alice",
	}, true); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("error = %v, want ErrInvalidPassword", err)
	}

	if _, err := svc.userService.CreateUser(ctx, nil, CreateUserInput{
		Username: "alice",
		Password: "secret-password",
	}, true); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if _, err := svc.userService.CreateUser(ctx, nil, CreateUserInput{
		Username: "ALICE",
		Password: "secret-password",
	}, true); !errors.Is(err, ErrUsernameAlreadyExists) {
		t.Fatalf("error = %v, want ErrUsernameAlreadyExists", err)
	}
}

func TestSignInWithPassword_IssuesUsableToken(t *testing.T) {
	svc := setupTestServices(t)
	ctx := context.Background()

	created, err := svc.userService.CreateUser(ctx, nil, CreateUserInput{
		Username: "alice",
		Password: "secret-password",
	}, true)
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	if _, _, err := svc.userService.SignInWithPassword(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("SignInWithPassword(wrong) error = %v, want ErrInvalidCredentials", err)
	}

	user, token, err := svc.userService.SignInWithPassword(ctx, "Alice", "secret-password")
	if err != nil {
		t.Fatalf("SignInWithPassword() error = %v", err)
	}
	if user.ID != created.ID {
		t.Fatalf("signed in as %d, want %d", user.ID, created.ID)
	}
	if token == "" {
		t.Fatal("expected a signed access token")
	}

	authed, err := svc.userService.AuthenticateToken(ctx, token)
	if err != nil {
		t.Fatalf("AuthenticateToken() error = %v", err)
	}
	if authed.ID != created.ID {
		t.Fatalf("authenticated as %d, want %d", authed.ID, created.ID)
	}

	if _, err := svc.userService.AuthenticateToken(ctx, token+"tampered"); err == nil {
		t.Fatal("expected tampered token to fail")
	}
}

func TestPersonalAccessTokens(t *testing.T) {
	svc := setupTestServices(t)
	ctx := context.Background()
	user := mustCreateUser(t, svc.store, "alice")

	past := time.Now().UTC().Add(-time.Hour)
	if _, _, err := svc.userService.CreatePersonalAccessToken(ctx, user.ID, "expired", &past); !errors.Is(err, ErrInvalidTokenExpiry) {
		t.Fatalf("error = %v, want ErrInvalidTokenExpiry", err)
	}

	token, raw, err := svc.userService.CreatePersonalAccessToken(ctx, user.ID, "ci token", nil)
	if err != nil {
		t.Fatalf("CreatePersonalAccessToken() error = %v", err)
	}
	if raw == "" {
		t.Fatal("expected the raw token to be returned once")
	}

	authed, err := svc.userService.AuthenticateToken(ctx, raw)
	if err != nil {
		t.Fatalf("AuthenticateToken(pat) error = %v", err)
	}
	if authed.ID != user.ID {
		t.Fatalf("authenticated as %d, want %d", authed.ID, user.ID)
	}

	tokens, err := svc.userService.ListPersonalAccessTokens(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListPersonalAccessTokens() error = %v", err)
	}
	if len(tokens) != 1 || tokens[0].ID != token.ID {
		t.Fatalf("tokens = %+v", tokens)
	}

	if err := svc.userService.RevokePersonalAccessToken(ctx, user.ID, token.ID); err != nil {
		t.Fatalf("RevokePersonalAccessToken() error = %v", err)
	}
	if _, err := svc.userService.AuthenticateToken(ctx, raw); err == nil {
		t.Fatal("expected revoked token to fail authentication")
	}
	if err := svc.userService.RevokePersonalAccessToken(ctx, user.ID, token.ID); !errors.Is(err, ErrTokenAlreadyRevoked) {
		t.Fatalf("second revoke error = %v, want ErrTokenAlreadyRevoked", err)
	}
}

func TestResolveAllowRegistration(t *testing.T) {
	svc := setupTestServices(t)
	ctx := context.Background()

	allowed, err := svc.userService.ResolveAllowRegistration(ctx, true)
	if err != nil || !allowed {
		t.Fatalf("ResolveAllowRegistration(no setting) = %v, %v", allowed, err)
	}

	if _, err := svc.settingService.UpsertWorkspaceSetting(ctx, "GENERAL", `{"allow_registration": false}`); err != nil {
		t.Fatalf("UpsertWorkspaceSetting() error = %v", err)
	}
	allowed, err = svc.userService.ResolveAllowRegistration(ctx, true)
	if err != nil || allowed {
		t.Fatalf("ResolveAllowRegistration(setting off) = %v, %v", allowed, err)
	}
}
