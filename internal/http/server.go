package http

import (
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"memoir/internal/config"
	"memoir/internal/filter"
	"memoir/internal/models"
	"memoir/internal/service"
	"memoir/internal/store"
)

const apiVersion = "0.1"

func NewRouter(
	cfg config.Config,
	userService *service.UserService,
	memoService *service.MemoService,
	resourceService *service.ResourceService,
	settingService *service.SettingService,
) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit: cfg.BodyLimitMB * 1024 * 1024,
	})
	app.Use(cors.New())

	app.Get("/api/v1/instance/profile", func(c *fiber.Ctx) error {
		return c.JSON(profileResponse{
			Version: apiVersion,
		})
	})

	app.Post("/api/v1/auth/signin", func(c *fiber.Ctx) error {
		var req signInRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		user, accessToken, err := userService.SignInWithPassword(c.Context(), req.Username, req.Password)
		if err != nil {
			if errors.Is(err, service.ErrInvalidCredentials) {
				return unauthorized(c, "unmatched username and password")
			}
			return internalError(c, err)
		}
		return c.JSON(signInResponse{
			User:        toAPIUser(user),
			AccessToken: accessToken,
		})
	})

	app.Post("/api/v1/users", func(c *fiber.Ctx) error {
		var req createUserRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}

		var creator *models.User
		if token, ok := bearerToken(c); ok {
			user, err := userService.AuthenticateToken(c.Context(), token)
			if err != nil {
				return unauthorized(c, "invalid access token")
			}
			creator = &user
		}

		allowRegistration, err := userService.ResolveAllowRegistration(c.Context(), cfg.AllowRegistration)
		if err != nil {
			return internalError(c, err)
		}

		user, err := userService.CreateUser(c.Context(), creator, service.CreateUserInput{
			Username:    req.User.Username,
			DisplayName: req.User.DisplayName,
			Email:       req.User.Email,
			Password:    req.User.Password,
			Role:        req.User.Role,
		}, allowRegistration)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrInvalidUsername):
				return badRequest(c, "invalid username")
			case errors.Is(err, service.ErrInvalidDisplayName):
				return badRequest(c, "invalid displayName")
			case errors.Is(err, service.ErrInvalidPassword):
				return badRequest(c, "invalid password")
			case errors.Is(err, service.ErrUsernameAlreadyExists):
				return errorJSON(c, fiber.StatusConflict, "ALREADY_EXISTS", "username already exists")
			case errors.Is(err, service.ErrRegistrationDisabled):
				return errorJSON(c, fiber.StatusForbidden, "PERMISSION_DENIED", "user registration is not allowed")
			default:
				return internalError(c, err)
			}
		}
		return c.JSON(toAPIUser(user))
	})

	// Route middleware is attached per route. Two groups carrying Use
	// middleware on the same prefix would both run for every request.
	requireAuth := AuthMiddleware(userService)
	optionalAuth := OptionalAuthMiddleware(userService)
	api := app.Group("/api/v1")

	api.Get("/auth/me", requireAuth, func(c *fiber.Ctx) error {
		return c.JSON(getCurrentUserResponse{
			User: toAPIUser(CurrentUser(c)),
		})
	})

	api.Post("/auth/access-tokens", requireAuth, func(c *fiber.Ctx) error {
		currentUser := CurrentUser(c)
		var req createAccessTokenRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		var expiresAt *time.Time
		if req.ExpiresAt != nil && strings.TrimSpace(*req.ExpiresAt) != "" {
			parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(*req.ExpiresAt))
			if err != nil {
				return badRequest(c, "invalid expiresAt")
			}
			expiresAt = &parsed
		}
		token, raw, err := userService.CreatePersonalAccessToken(c.Context(), currentUser.ID, req.Description, expiresAt)
		if err != nil {
			if errors.Is(err, service.ErrInvalidTokenExpiry) {
				return badRequest(c, "expiresAt must be in the future")
			}
			return internalError(c, err)
		}
		return c.JSON(createAccessTokenResponse{
			AccessToken: toAPIAccessToken(token),
			Token:       raw,
		})
	})

	api.Get("/auth/access-tokens", requireAuth, func(c *fiber.Ctx) error {
		currentUser := CurrentUser(c)
		tokens, err := userService.ListPersonalAccessTokens(c.Context(), currentUser.ID)
		if err != nil {
			return internalError(c, err)
		}
		resp := listAccessTokensResponse{AccessTokens: make([]apiAccessToken, 0, len(tokens))}
		for _, token := range tokens {
			resp.AccessTokens = append(resp.AccessTokens, toAPIAccessToken(token))
		}
		return c.JSON(resp)
	})

	api.Delete("/auth/access-tokens/:id", requireAuth, func(c *fiber.Ctx) error {
		currentUser := CurrentUser(c)
		tokenID, err := parseID(c.Params("id"))
		if err != nil {
			return badRequest(c, "invalid access token id")
		}
		if err := userService.RevokePersonalAccessToken(c.Context(), currentUser.ID, tokenID); err != nil {
			if errors.Is(err, service.ErrTokenAlreadyRevoked) {
				return notFound(c, "access token not found or already revoked")
			}
			return internalError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	api.Get("/users/:name\\:getStats", optionalAuth, func(c *fiber.Ctx) error {
		requestedUser, err := userService.GetUserByIdentifier(c.Context(), c.Params("name"))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound(c, "user not found")
			}
			return internalError(c, err)
		}
		tagCount, err := memoService.GetUserTagCount(c.Context(), CurrentUserID(c), requestedUser.ID)
		if err != nil {
			return internalError(c, err)
		}
		return c.JSON(userStatsResponse{TagCount: tagCount})
	})

	api.Get("/users/:name", optionalAuth, func(c *fiber.Ctx) error {
		user, err := userService.GetUserByIdentifier(c.Context(), c.Params("name"))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound(c, "user not found")
			}
			return internalError(c, err)
		}
		return c.JSON(toAPIUser(user))
	})

	api.Patch("/users/:name", requireAuth, func(c *fiber.Ctx) error {
		currentUser := CurrentUser(c)
		requestedUser, err := userService.GetUserByIdentifier(c.Context(), c.Params("name"))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound(c, "user not found")
			}
			return internalError(c, err)
		}
		if requestedUser.ID != currentUser.ID && currentUser.Role != "ADMIN" {
			return forbidden(c, "cannot update another user")
		}

		var req updateUserRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		input := service.UpdateUserInput{
			DisplayName: req.DisplayName,
			Email:       req.Email,
			Password:    req.Password,
		}
		if req.DefaultVisibility != nil {
			v := models.VisibilityFromString(*req.DefaultVisibility)
			if !v.IsValid() {
				return badRequest(c, "invalid defaultVisibility")
			}
			input.DefaultVisibility = &v
		}
		updated, err := userService.UpdateUser(c.Context(), requestedUser.ID, input)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrInvalidDisplayName):
				return badRequest(c, "invalid displayName")
			case errors.Is(err, service.ErrInvalidPassword):
				return badRequest(c, "invalid password")
			default:
				return internalError(c, err)
			}
		}
		return c.JSON(toAPIUser(updated))
	})

	api.Get("/memos", optionalAuth, func(c *fiber.Ctx) error {
		pageSize, _ := strconv.Atoi(strings.TrimSpace(c.Query("pageSize", "50")))
		memos, nextToken, err := memoService.ListMemos(
			c.Context(),
			CurrentUserID(c),
			c.Query("filter", ""),
			pageSize,
			c.Query("pageToken", ""),
		)
		if err != nil {
			if errors.Is(err, filter.ErrInvalidFilter) || errors.Is(err, store.ErrMalformedPageToken) {
				return badRequest(c, err.Error())
			}
			return internalError(c, err)
		}
		return c.JSON(listMemosResponse{
			Memos:         toAPIMemos(memos),
			NextPageToken: nextToken,
		})
	})

	api.Post("/memos", requireAuth, func(c *fiber.Ctx) error {
		currentUser := CurrentUser(c)
		var req createMemoRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		visibility := models.VisibilityFromString(req.Visibility)
		if req.Visibility == "" {
			visibility = currentUser.DefaultVisibility
		}
		created, err := memoService.CreateMemo(c.Context(), currentUser.ID, service.CreateMemoInput{
			Content:    req.Content,
			Visibility: visibility,
			Pinned:     req.Pinned,
		})
		if err != nil {
			if errors.Is(err, service.ErrInvalidInput) {
				return badRequest(c, err.Error())
			}
			return internalError(c, err)
		}
		return c.JSON(toAPIMemo(created))
	})

	api.Get("/memos/:id/comments", optionalAuth, func(c *fiber.Ctx) error {
		memoID, err := parseID(c.Params("id"))
		if err != nil {
			return badRequest(c, "invalid memo id")
		}
		comments, err := memoService.ListMemoComments(c.Context(), CurrentUserID(c), memoID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound(c, "memo not found")
			}
			return internalError(c, err)
		}
		return c.JSON(listMemoCommentsResponse{Memos: toAPIMemos(comments)})
	})

	api.Post("/memos/:id/comments", requireAuth, func(c *fiber.Ctx) error {
		currentUser := CurrentUser(c)
		memoID, err := parseID(c.Params("id"))
		if err != nil {
			return badRequest(c, "invalid memo id")
		}
		var req createMemoRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		visibility := models.VisibilityFromString(req.Visibility)
		if req.Visibility == "" {
			visibility = currentUser.DefaultVisibility
		}
		created, err := memoService.CreateMemo(c.Context(), currentUser.ID, service.CreateMemoInput{
			Content:    req.Content,
			Visibility: visibility,
			ParentID:   &memoID,
		})
		if err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				return notFound(c, "memo not found")
			case errors.Is(err, service.ErrNestedComment):
				return badRequest(c, err.Error())
			default:
				return internalError(c, err)
			}
		}
		return c.JSON(toAPIMemo(created))
	})

	api.Get("/memos/:id/render", optionalAuth, func(c *fiber.Ctx) error {
		memoID, err := parseID(c.Params("id"))
		if err != nil {
			return badRequest(c, "invalid memo id")
		}
		nodes, html, err := memoService.RenderMemo(c.Context(), CurrentUserID(c), memoID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound(c, "memo not found")
			}
			return internalError(c, err)
		}
		return c.JSON(renderMemoResponse{Nodes: nodes, HTML: html})
	})

	// The id segment is either the numeric row id or the memo uid.
	api.Get("/memos/:id", optionalAuth, func(c *fiber.Ctx) error {
		var memo models.Memo
		var err error
		if memoID, idErr := parseID(c.Params("id")); idErr == nil {
			memo, err = memoService.GetMemo(c.Context(), CurrentUserID(c), memoID)
		} else {
			memo, err = memoService.GetMemoByUID(c.Context(), CurrentUserID(c), c.Params("id"))
		}
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound(c, "memo not found")
			}
			return internalError(c, err)
		}
		return c.JSON(toAPIMemo(memo))
	})

	api.Patch("/memos/:id", requireAuth, func(c *fiber.Ctx) error {
		currentUser := CurrentUser(c)
		memoID, err := parseID(c.Params("id"))
		if err != nil {
			return badRequest(c, "invalid memo id")
		}
		var req updateMemoRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		input := service.UpdateMemoInput{
			Content: req.Content,
			Pinned:  req.Pinned,
		}
		if req.Visibility != nil {
			v := models.VisibilityFromString(*req.Visibility)
			input.Visibility = &v
		}
		if req.State != nil {
			s := models.RowStatusFromString(*req.State)
			input.RowStatus = &s
		}
		updated, err := memoService.UpdateMemo(c.Context(), currentUser.ID, memoID, input)
		if err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				return notFound(c, "memo not found")
			case errors.Is(err, service.ErrPermissionDenied):
				return forbidden(c, "cannot update another user's memo")
			case errors.Is(err, service.ErrInvalidInput):
				return badRequest(c, err.Error())
			default:
				return internalError(c, err)
			}
		}
		return c.JSON(toAPIMemo(updated))
	})

	api.Delete("/memos/:id", requireAuth, func(c *fiber.Ctx) error {
		currentUser := CurrentUser(c)
		memoID, err := parseID(c.Params("id"))
		if err != nil {
			return badRequest(c, "invalid memo id")
		}
		if err := memoService.DeleteMemo(c.Context(), currentUser.ID, memoID); err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				return notFound(c, "memo not found")
			case errors.Is(err, service.ErrPermissionDenied):
				return forbidden(c, "cannot delete another user's memo")
			default:
				return internalError(c, err)
			}
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	api.Get("/resources", requireAuth, func(c *fiber.Ctx) error {
		currentUser := CurrentUser(c)
		resources, err := resourceService.ListResources(c.Context(), currentUser.ID)
		if err != nil {
			return internalError(c, err)
		}
		resp := listResourcesResponse{Resources: make([]apiResource, 0, len(resources))}
		for _, resource := range resources {
			resp.Resources = append(resp.Resources, toAPIResource(resource))
		}
		return c.JSON(resp)
	})

	api.Post("/resources", requireAuth, func(c *fiber.Ctx) error {
		currentUser := CurrentUser(c)
		input, err := parseCreateResourceRequest(c)
		if err != nil {
			return badRequest(c, err.Error())
		}
		resource, err := resourceService.CreateResource(c.Context(), currentUser.ID, input)
		if err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				return notFound(c, "memo not found")
			case errors.Is(err, service.ErrPermissionDenied):
				return forbidden(c, "cannot attach to another user's memo")
			case errors.Is(err, service.ErrInvalidInput):
				return badRequest(c, err.Error())
			default:
				return internalError(c, err)
			}
		}
		return c.JSON(toAPIResource(resource))
	})

	api.Post("/resources/:id/bind", requireAuth, func(c *fiber.Ctx) error {
		currentUser := CurrentUser(c)
		resourceID, err := parseID(c.Params("id"))
		if err != nil {
			return badRequest(c, "invalid resource id")
		}
		var req bindResourceRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		memoID, err := parseMemoName(req.Memo)
		if err != nil {
			return badRequest(c, "invalid memo name")
		}
		if err := resourceService.BindResourceToMemo(c.Context(), currentUser.ID, resourceID, memoID); err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				return notFound(c, "resource or memo not found")
			case errors.Is(err, service.ErrPermissionDenied):
				return forbidden(c, "cannot bind another user's resource or memo")
			default:
				return internalError(c, err)
			}
		}
		resource, err := resourceService.GetResource(c.Context(), resourceID)
		if err != nil {
			return internalError(c, err)
		}
		return c.JSON(toAPIResource(resource))
	})

	api.Delete("/resources/:id", requireAuth, func(c *fiber.Ctx) error {
		currentUser := CurrentUser(c)
		resourceID, err := parseID(c.Params("id"))
		if err != nil {
			return badRequest(c, "invalid resource id")
		}
		if err := resourceService.DeleteResource(c.Context(), currentUser.ID, resourceID); err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				return notFound(c, "resource not found")
			case errors.Is(err, service.ErrPermissionDenied):
				return forbidden(c, "cannot delete another user's resource")
			default:
				return internalError(c, err)
			}
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	app.Get("/file/resources/:id/:filename", requireAuth, func(c *fiber.Ctx) error {
		currentUser := CurrentUser(c)
		resourceID, err := parseID(c.Params("id"))
		if err != nil {
			return badRequest(c, "invalid resource id")
		}

		start, end, hasRange, err := parseByteRange(c.Get(fiber.HeaderRange))
		if err != nil {
			return badRequest(c, "invalid range header")
		}

		resource, rc, err := resourceService.OpenResource(c.Context(), resourceID, start, end)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound(c, "resource not found")
			}
			return internalError(c, err)
		}

		if resource.CreatorID != currentUser.ID {
			_ = rc.Close()
			return forbidden(c, "cannot read another user's resource")
		}

		// fasthttp drains and closes the body stream after the handler
		// returns, so rc must stay open here.

		c.Set(fiber.HeaderContentType, resource.Type)
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`inline; filename="%s"`, resource.Filename))
		if hasRange {
			if end < 0 || end >= resource.Size {
				end = resource.Size - 1
			}
			c.Set(fiber.HeaderContentRange, fmt.Sprintf("bytes %d-%d/%d", start, end, resource.Size))
			c.Status(fiber.StatusPartialContent)
			return c.SendStream(rc, int(end-start+1))
		}
		return c.SendStream(rc, int(resource.Size))
	})

	api.Get("/workspace/settings", requireAuth, func(c *fiber.Ctx) error {
		settings, err := settingService.ListWorkspaceSettings(c.Context())
		if err != nil {
			return internalError(c, err)
		}
		resp := listWorkspaceSettingsResponse{Settings: make([]apiWorkspaceSetting, 0, len(settings))}
		for _, setting := range settings {
			resp.Settings = append(resp.Settings, toAPIWorkspaceSetting(setting))
		}
		return c.JSON(resp)
	})

	api.Get("/workspace/settings/:key", requireAuth, func(c *fiber.Ctx) error {
		setting, err := settingService.GetWorkspaceSetting(c.Context(), c.Params("key"))
		if err != nil {
			if errors.Is(err, service.ErrUnknownSettingKey) {
				return badRequest(c, "unknown setting key")
			}
			return internalError(c, err)
		}
		return c.JSON(toAPIWorkspaceSetting(setting))
	})

	api.Put("/workspace/settings/:key", requireAuth, func(c *fiber.Ctx) error {
		currentUser := CurrentUser(c)
		if currentUser.Role != "ADMIN" {
			return forbidden(c, "only admins can change workspace settings")
		}
		var req upsertWorkspaceSettingRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		setting, err := settingService.UpsertWorkspaceSetting(c.Context(), c.Params("key"), req.Value)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrUnknownSettingKey):
				return badRequest(c, "unknown setting key")
			case errors.Is(err, service.ErrInvalidInput):
				return badRequest(c, err.Error())
			default:
				return internalError(c, err)
			}
		}
		return c.JSON(toAPIWorkspaceSetting(setting))
	})

	return app
}

func parseCreateResourceRequest(c *fiber.Ctx) (service.CreateResourceInput, error) {
	contentType := strings.ToLower(strings.TrimSpace(c.Get(fiber.HeaderContentType)))
	if strings.HasPrefix(contentType, fiber.MIMEMultipartForm) {
		file, err := c.FormFile("file")
		if err != nil {
			return service.CreateResourceInput{}, fmt.Errorf("missing file field")
		}
		data, err := readMultipartFile(file)
		if err != nil {
			return service.CreateResourceInput{}, err
		}
		input := service.CreateResourceInput{
			Filename: file.Filename,
			Type:     file.Header.Get(fiber.HeaderContentType),
			Data:     data,
		}
		if memoName := strings.TrimSpace(c.FormValue("memo")); memoName != "" {
			memoID, err := parseMemoName(memoName)
			if err != nil {
				return service.CreateResourceInput{}, err
			}
			input.MemoID = &memoID
		}
		return input, nil
	}

	var req createResourceRequest
	if err := c.BodyParser(&req); err != nil {
		return service.CreateResourceInput{}, fmt.Errorf("invalid request body")
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(req.Content))
	if err != nil {
		return service.CreateResourceInput{}, fmt.Errorf("invalid base64 content")
	}
	input := service.CreateResourceInput{
		Filename: req.Filename,
		Type:     req.Type,
		Data:     data,
	}
	if req.Memo != nil && strings.TrimSpace(*req.Memo) != "" {
		memoID, err := parseMemoName(*req.Memo)
		if err != nil {
			return service.CreateResourceInput{}, err
		}
		input.MemoID = &memoID
	}
	return input, nil
}

func readMultipartFile(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open uploaded file: %w", err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

func parseMemoName(name string) (int64, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(name), "memos/")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid memo name")
	}
	return id, nil
}

// parseByteRange handles a single "bytes=a-b" range. An absent header returns
// the full-object range (0, -1, false).
func parseByteRange(header string) (int64, int64, bool, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0, -1, false, nil
	}
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return 0, 0, false, fmt.Errorf("unsupported range")
	}
	startRaw, endRaw, ok := strings.Cut(spec, "-")
	if !ok {
		return 0, 0, false, fmt.Errorf("malformed range")
	}
	start, err := strconv.ParseInt(strings.TrimSpace(startRaw), 10, 64)
	if err != nil || start < 0 {
		return 0, 0, false, fmt.Errorf("malformed range start")
	}
	end := int64(-1)
	if strings.TrimSpace(endRaw) != "" {
		end, err = strconv.ParseInt(strings.TrimSpace(endRaw), 10, 64)
		if err != nil || end < start {
			return 0, 0, false, fmt.Errorf("malformed range end")
		}
	}
	return start, end, true, nil
}

func parseID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("empty id")
	}
	return strconv.ParseInt(raw, 10, 64)
}

func errorJSON(c *fiber.Ctx, status int, code string, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"code":    code,
		"message": message,
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return errorJSON(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", message)
}

func notFound(c *fiber.Ctx, message string) error {
	return errorJSON(c, fiber.StatusNotFound, "NOT_FOUND", message)
}

func unauthorized(c *fiber.Ctx, message string) error {
	return errorJSON(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", message)
}

func forbidden(c *fiber.Ctx, message string) error {
	return errorJSON(c, fiber.StatusForbidden, "PERMISSION_DENIED", message)
}

// internalError logs the cause and responds with an opaque message. Driver and
// SQL details never reach the client.
func internalError(c *fiber.Ctx, err error) error {
	log.Printf("internal error on %s %s: %v", c.Method(), c.Path(), err)
	return errorJSON(c, fiber.StatusInternalServerError, "INTERNAL", "internal server error")
}
