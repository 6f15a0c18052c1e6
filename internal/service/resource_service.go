package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"memoir/internal/models"
	"memoir/internal/storage"
	"memoir/internal/store"
)

type ResourceService struct {
	store   *store.SQLStore
	storage storage.Store
}

func NewResourceService(s *store.SQLStore, fileStorage storage.Store) *ResourceService {
	return &ResourceService{
		store:   s,
		storage: fileStorage,
	}
}

type CreateResourceInput struct {
	Filename string
	Type     string
	Data     []byte
	MemoID   *int64
}

// CreateResource uploads a file and records it. Identical content from the
// same creator reuses the existing blob instead of uploading again.
func (s *ResourceService) CreateResource(ctx context.Context, creatorID int64, input CreateResourceInput) (models.Resource, error) {
	filename := sanitizeFilename(input.Filename)
	if filename == "" {
		return models.Resource{}, fmt.Errorf("%w: filename cannot be empty", ErrInvalidInput)
	}
	contentType := strings.TrimSpace(input.Type)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if len(input.Data) == 0 {
		return models.Resource{}, fmt.Errorf("%w: content cannot be empty", ErrInvalidInput)
	}
	contentHash := hashResourceContent(input.Data)

	if input.MemoID != nil {
		memo, err := s.store.GetMemoByID(ctx, *input.MemoID)
		if err != nil {
			return models.Resource{}, err
		}
		if memo.CreatorID != creatorID {
			return models.Resource{}, ErrPermissionDenied
		}
	}

	var storageKey string
	var size int64
	uploaded := false
	existing, err := s.store.FindResourceByContentHash(ctx, creatorID, contentHash)
	switch {
	case err == nil:
		storageKey = existing.StorageKey
		size = existing.Size
	case errors.Is(err, sql.ErrNoRows):
		storageKey = buildResourceStorageKey(creatorID, contentHash, filename)
		size, err = s.storage.Put(ctx, storageKey, contentType, input.Data)
		if err != nil {
			return models.Resource{}, err
		}
		uploaded = true
	default:
		return models.Resource{}, err
	}

	resource, err := s.store.CreateResource(ctx, models.Resource{
		UID:         uuid.NewString(),
		CreatorID:   creatorID,
		MemoID:      input.MemoID,
		Filename:    filename,
		Type:        contentType,
		Size:        size,
		StorageType: storageTypeName(s.storage),
		StorageKey:  storageKey,
		ContentHash: contentHash,
	})
	if err != nil {
		if uploaded {
			_ = s.storage.Delete(ctx, storageKey)
		}
		return models.Resource{}, err
	}
	return resource, nil
}

func (s *ResourceService) GetResource(ctx context.Context, resourceID int64) (models.Resource, error) {
	return s.store.GetResourceByID(ctx, resourceID)
}

func (s *ResourceService) ListResources(ctx context.Context, creatorID int64) ([]models.Resource, error) {
	return s.store.ListResources(ctx, &store.FindResource{CreatorID: &creatorID})
}

// OpenResource streams the blob behind a resource. A negative end reads to
// the end of the object.
func (s *ResourceService) OpenResource(ctx context.Context, resourceID int64, start int64, end int64) (models.Resource, io.ReadCloser, error) {
	resource, err := s.store.GetResourceByID(ctx, resourceID)
	if err != nil {
		return models.Resource{}, nil, err
	}
	var rc io.ReadCloser
	if start == 0 && end < 0 {
		rc, err = s.storage.Open(ctx, resource.StorageKey)
	} else {
		rc, err = s.storage.OpenRange(ctx, resource.StorageKey, start, end)
	}
	if err != nil {
		return models.Resource{}, nil, err
	}
	return resource, rc, nil
}

func (s *ResourceService) BindResourceToMemo(ctx context.Context, requesterID int64, resourceID int64, memoID int64) error {
	resource, err := s.store.GetResourceByID(ctx, resourceID)
	if err != nil {
		return err
	}
	if resource.CreatorID != requesterID {
		return ErrPermissionDenied
	}
	memo, err := s.store.GetMemoByID(ctx, memoID)
	if err != nil {
		return err
	}
	if memo.CreatorID != requesterID {
		return ErrPermissionDenied
	}
	return s.store.BindResourceToMemo(ctx, resourceID, memoID)
}

// DeleteResource removes the record, and the blob too once no other record
// shares its storage key.
func (s *ResourceService) DeleteResource(ctx context.Context, requesterID int64, resourceID int64) error {
	resource, err := s.store.GetResourceByID(ctx, resourceID)
	if err != nil {
		return err
	}
	if resource.CreatorID != requesterID {
		return ErrPermissionDenied
	}

	refCount, err := s.store.CountResourcesByStorageKey(ctx, resource.StorageKey)
	if err != nil {
		return err
	}
	if refCount <= 1 {
		if err := s.storage.Delete(ctx, resource.StorageKey); err != nil {
			return err
		}
	}
	return s.store.DeleteResource(ctx, resourceID)
}

func sanitizeFilename(filename string) string {
	filename = strings.TrimSpace(filename)
	filename = filepath.Base(filename)
	if filename == "." || filename == string(filepath.Separator) {
		return ""
	}
	return filename
}

func hashResourceContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func buildResourceStorageKey(creatorID int64, contentHash string, filename string) string {
	return fmt.Sprintf("resources/%d/%s/%s_%s", creatorID, contentHash[:2], contentHash, filename)
}

func storageTypeName(s storage.Store) string {
	switch s.(type) {
	case *storage.S3Store:
		return "S3"
	default:
		return "LOCAL"
	}
}
