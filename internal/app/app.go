package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"memoir/internal/config"
	"memoir/internal/db"
	httpserver "memoir/internal/http"
	"memoir/internal/markdown"
	"memoir/internal/models"
	"memoir/internal/service"
	"memoir/internal/storage"
	"memoir/internal/store"
)

type Container struct {
	Config          config.Config
	Store           *store.SQLStore
	UserService     *service.UserService
	MemoService     *service.MemoService
	ResourceService *service.ResourceService
	SettingService  *service.SettingService
	Mux             *httpserver.ProtocolMux
}

// Build opens the database, wires every service, and assembles both protocol
// stacks behind the multiplexer.
func Build(ctx context.Context, cfg config.Config) (*Container, func() error, error) {
	sqliteDB, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() error {
		return sqliteDB.Close()
	}

	if err := db.Migrate(sqliteDB); err != nil {
		_ = cleanup()
		return nil, nil, err
	}

	sqlStore := store.New(sqliteDB)
	userService := service.NewUserService(sqlStore, cfg.JWTSecret)
	memoService := service.NewMemoService(sqlStore, markdown.NewParser())
	settingService := service.NewSettingService(sqlStore)

	backend, s3Cfg, err := settingService.ResolveStorageBackend(ctx, cfg.Storage, cfg.S3)
	if err != nil {
		_ = cleanup()
		return nil, nil, fmt.Errorf("resolve storage backend: %w", err)
	}
	cfg.Storage = backend
	cfg.S3 = s3Cfg

	var fileStorage storage.Store
	switch backend {
	case config.StorageBackendLocal:
		fileStorage, err = storage.NewLocalStore(cfg.UploadsDir)
	case config.StorageBackendS3:
		fileStorage, err = storage.NewS3Store(ctx, cfg.S3)
	default:
		err = fmt.Errorf("unsupported storage backend %s", backend)
	}
	if err != nil {
		_ = cleanup()
		return nil, nil, err
	}
	resourceService := service.NewResourceService(sqlStore, fileStorage)

	if err := ensureBootstrapUser(ctx, userService, cfg); err != nil {
		_ = cleanup()
		return nil, nil, fmt.Errorf("bootstrap user: %w", err)
	}

	router := httpserver.NewRouter(cfg, userService, memoService, resourceService, settingService)
	mux := httpserver.NewProtocolMux(
		httpserver.NewRESTStack(router),
		httpserver.NewGRPCWebStack(userService, memoService),
	)

	return &Container{
		Config:          cfg,
		Store:           sqlStore,
		UserService:     userService,
		MemoService:     memoService,
		ResourceService: resourceService,
		SettingService:  settingService,
		Mux:             mux,
	}, cleanup, nil
}

// ensureBootstrapUser creates the configured bootstrap account once. It is a
// no-op when bootstrap is unconfigured or the user already exists.
func ensureBootstrapUser(ctx context.Context, userService *service.UserService, cfg config.Config) error {
	if cfg.BootstrapUser == "" || cfg.BootstrapPassword == "" {
		return nil
	}
	if _, err := userService.GetUserByIdentifier(ctx, cfg.BootstrapUser); err == nil {
		return nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	admin := &models.User{Role: "ADMIN"}
	_, err := userService.CreateUser(ctx, admin, service.CreateUserInput{
		Username: cfg.BootstrapUser,
		Password: cfg.BootstrapPassword,
		Role:     "ADMIN",
	}, true)
	return err
}
