package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"memoir/internal/models"
	"memoir/internal/store"
)

var (
	ErrInvalidUsername       = errors.New("invalid username")
	ErrInvalidDisplayName    = errors.New("invalid display name")
	ErrInvalidPassword       = errors.New("invalid password")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrUsernameAlreadyExists = errors.New("username already exists")
	ErrTokenAlreadyRevoked   = errors.New("access token already revoked")
	ErrInvalidTokenExpiry    = errors.New("invalid token expiry")
	ErrRegistrationDisabled  = errors.New("registration is disabled")

	usernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{2,31}$`)
)

const accessTokenTTL = 7 * 24 * time.Hour

type UserService struct {
	store     *store.SQLStore
	jwtSecret []byte
}

func NewUserService(s *store.SQLStore, jwtSecret string) *UserService {
	return &UserService{
		store:     s,
		jwtSecret: []byte(jwtSecret),
	}
}

type CreateUserInput struct {
	Username    string
	DisplayName string
	Email       string
	Password    string
	Role        string
}

type UpdateUserInput struct {
	DisplayName       *string
	Email             *string
	Password          *string
	DefaultVisibility *models.Visibility
}

func (s *UserService) GetUser(ctx context.Context, userID int64) (models.User, error) {
	return s.store.GetUserByID(ctx, userID)
}

func (s *UserService) GetUserByIdentifier(ctx context.Context, identifier string) (models.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return models.User{}, sql.ErrNoRows
	}
	if userID, err := strconv.ParseInt(identifier, 10, 64); err == nil {
		return s.store.GetUserByID(ctx, userID)
	}
	return s.store.GetUserByUsername(ctx, normalizeUsername(identifier))
}

func (s *UserService) CreateUser(ctx context.Context, creator *models.User, input CreateUserInput, allowRegistration bool) (models.User, error) {
	username := normalizeUsername(input.Username)
	displayName := strings.TrimSpace(input.DisplayName)
	password := strings.TrimSpace(input.Password)

	if !usernamePattern.MatchString(username) {
		return models.User{}, ErrInvalidUsername
	}
	if displayName == "" {
		displayName = username
	}
	if len([]rune(displayName)) > 64 {
		return models.User{}, ErrInvalidDisplayName
	}
	if password == "" {
		return models.User{}, ErrInvalidPassword
	}

	totalUsers, err := s.store.CountUsers(ctx)
	if err != nil {
		return models.User{}, err
	}
	isFirstUser := totalUsers == 0
	isAdminCreator := creator != nil && isAdminRole(creator.Role)
	if !isFirstUser && !allowRegistration && !isAdminCreator {
		return models.User{}, ErrRegistrationDisabled
	}

	role := "USER"
	if isFirstUser {
		role = "ADMIN"
	} else if isAdminCreator && strings.EqualFold(strings.TrimSpace(input.Role), "ADMIN") {
		role = "ADMIN"
	}

	if _, err := s.store.GetUserByUsername(ctx, username); err == nil {
		return models.User{}, ErrUsernameAlreadyExists
	} else if !errors.Is(err, sql.ErrNoRows) {
		return models.User{}, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, username, displayName, strings.TrimSpace(input.Email), string(passwordHash), role)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return models.User{}, ErrUsernameAlreadyExists
		}
		return models.User{}, err
	}
	return user, nil
}

func (s *UserService) UpdateUser(ctx context.Context, userID int64, input UpdateUserInput) (models.User, error) {
	update := store.UserUpdate{}
	if input.DisplayName != nil {
		displayName := strings.TrimSpace(*input.DisplayName)
		if displayName == "" || len([]rune(displayName)) > 64 {
			return models.User{}, ErrInvalidDisplayName
		}
		update.DisplayName = &displayName
	}
	if input.Email != nil {
		email := strings.TrimSpace(*input.Email)
		update.Email = &email
	}
	if input.Password != nil {
		password := strings.TrimSpace(*input.Password)
		if password == "" {
			return models.User{}, ErrInvalidPassword
		}
		passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return models.User{}, fmt.Errorf("hash password: %w", err)
		}
		hash := string(passwordHash)
		update.PasswordHash = &hash
	}
	if input.DefaultVisibility != nil {
		if !input.DefaultVisibility.IsValid() {
			return models.User{}, fmt.Errorf("invalid visibility")
		}
		update.DefaultVisibility = input.DefaultVisibility
	}
	return s.store.UpdateUser(ctx, userID, update)
}

// SignInWithPassword verifies credentials and issues a short-lived signed
// access token.
func (s *UserService) SignInWithPassword(ctx context.Context, username string, password string) (models.User, string, error) {
	username = normalizeUsername(username)
	if username == "" || password == "" {
		return models.User{}, "", ErrInvalidCredentials
	}

	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, "", ErrInvalidCredentials
		}
		return models.User{}, "", err
	}
	if user.PasswordHash == "" {
		return models.User{}, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, "", ErrInvalidCredentials
	}

	token, err := s.IssueAccessToken(user)
	if err != nil {
		return models.User{}, "", err
	}
	return user, token, nil
}

func (s *UserService) IssueAccessToken(user models.User) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   models.Int64ToString(user.ID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(accessTokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// AuthenticateToken resolves a bearer token to a user: first as a signed
// access token, then as a personal access token.
func (s *UserService) AuthenticateToken(ctx context.Context, rawToken string) (models.User, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return models.User{}, sql.ErrNoRows
	}
	if user, err := s.authenticateJWT(ctx, rawToken); err == nil {
		return user, nil
	}
	return s.authenticatePersonalAccessToken(ctx, rawToken)
}

func (s *UserService) authenticateJWT(ctx context.Context, rawToken string) (models.User, error) {
	parsed, err := jwt.ParseWithClaims(rawToken, &jwt.RegisteredClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		return models.User{}, ErrInvalidCredentials
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return models.User{}, ErrInvalidCredentials
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return models.User{}, ErrInvalidCredentials
	}
	return s.store.GetUserByID(ctx, userID)
}

func (s *UserService) authenticatePersonalAccessToken(ctx context.Context, rawToken string) (models.User, error) {
	token, err := s.store.GetPersonalAccessTokenByHash(ctx, store.HashToken(rawToken))
	if err != nil {
		return models.User{}, err
	}
	if token.RevokedAt != nil {
		return models.User{}, ErrInvalidCredentials
	}
	if token.ExpiresAt != nil && !token.ExpiresAt.After(time.Now().UTC()) {
		return models.User{}, ErrInvalidCredentials
	}
	user, err := s.store.GetUserByID(ctx, token.UserID)
	if err != nil {
		return models.User{}, err
	}
	_ = s.store.TouchPersonalAccessToken(ctx, token.ID)
	return user, nil
}

func (s *UserService) CreatePersonalAccessToken(ctx context.Context, userID int64, description string, expiresAt *time.Time) (models.PersonalAccessToken, string, error) {
	if expiresAt != nil && !expiresAt.UTC().After(time.Now().UTC()) {
		return models.PersonalAccessToken{}, "", ErrInvalidTokenExpiry
	}
	description = strings.TrimSpace(description)
	if description == "" {
		description = "personal access token"
	}
	rawToken, err := generateAccessToken()
	if err != nil {
		return models.PersonalAccessToken{}, "", err
	}
	token, err := s.store.CreatePersonalAccessToken(ctx, userID, rawToken, description, expiresAt)
	if err != nil {
		return models.PersonalAccessToken{}, "", err
	}
	return token, rawToken, nil
}

func (s *UserService) ListPersonalAccessTokens(ctx context.Context, userID int64) ([]models.PersonalAccessToken, error) {
	return s.store.ListPersonalAccessTokensByUserID(ctx, userID)
}

func (s *UserService) RevokePersonalAccessToken(ctx context.Context, userID int64, tokenID int64) error {
	if err := s.store.RevokePersonalAccessToken(ctx, userID, tokenID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTokenAlreadyRevoked
		}
		return err
	}
	return nil
}

// ResolveAllowRegistration reads the registration toggle from the general
// workspace setting, falling back to the configured default.
func (s *UserService) ResolveAllowRegistration(ctx context.Context, fallback bool) (bool, error) {
	setting, err := s.store.GetWorkspaceSetting(ctx, models.WorkspaceSettingGeneral)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fallback, nil
		}
		return fallback, err
	}
	var value struct {
		AllowRegistration *bool `json:"allow_registration"`
	}
	if err := json.Unmarshal([]byte(setting.Value), &value); err != nil || value.AllowRegistration == nil {
		return fallback, nil
	}
	return *value.AllowRegistration, nil
}

func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") || strings.Contains(msg, "constraint failed")
}

func normalizeUsername(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func isAdminRole(role string) bool {
	switch strings.ToUpper(strings.TrimSpace(role)) {
	case "HOST", "ADMIN":
		return true
	default:
		return false
	}
}

func generateAccessToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate access token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
