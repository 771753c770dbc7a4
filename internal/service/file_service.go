package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/prn-tf/vaultbox/internal/auth"
	"github.com/prn-tf/vaultbox/internal/domain"
	"github.com/prn-tf/vaultbox/internal/metrics"
	"github.com/prn-tf/vaultbox/internal/pkg/crypto"
	"github.com/prn-tf/vaultbox/internal/repository"
	"github.com/prn-tf/vaultbox/internal/storage"
)

// Delete reasons recorded in metrics.
const (
	deleteReasonUser      = "user"
	deleteReasonCascade   = "cascade"
	deleteReasonReconcile = "reconcile"
)

// FileService handles per-user file storage. Metadata lives in the object
// repository and content in the blob backend under the object ID.
type FileService struct {
	objectRepo  repository.ObjectRepository
	storage     storage.Backend
	metrics     *metrics.Metrics
	maxFileSize int64
	logger      zerolog.Logger
}

// FileServiceConfig contains FileService options.
type FileServiceConfig struct {
	// MaxFileSize is the per-file limit in bytes. Zero disables the check.
	MaxFileSize int64
}

// NewFileService creates a new FileService.
func NewFileService(
	objectRepo repository.ObjectRepository,
	backend storage.Backend,
	m *metrics.Metrics,
	logger zerolog.Logger,
	config FileServiceConfig,
) *FileService {
	return &FileService{
		objectRepo:  objectRepo,
		storage:     backend,
		metrics:     m,
		maxFileSize: config.MaxFileSize,
		logger:      logger.With().Str("service", "file").Logger(),
	}
}

// UploadFile is one file of an upload request.
type UploadFile struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// UploadedFile identifies a stored file.
type UploadedFile struct {
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
}

// Upload stores each file under a new object owned by the requester and
// returns the results in input order. If any file fails, the files already
// stored by this call are removed again and the error is returned.
func (s *FileService) Upload(ctx context.Context, requester *domain.Identity, files []UploadFile) ([]UploadedFile, error) {
	if err := auth.RequireAuthenticated(requester); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, domain.ErrNoFileProvided
	}

	uploaded := make([]UploadedFile, 0, len(files))
	for _, f := range files {
		obj, err := s.store(ctx, requester, f)
		if err != nil {
			s.rollback(ctx, requester.UserID, uploaded)
			return nil, err
		}
		uploaded = append(uploaded, UploadedFile{FileID: obj.ID, Filename: obj.Filename})
	}

	return uploaded, nil
}

// store writes one file: content first, then metadata. The object becomes
// visible only once its metadata row exists.
func (s *FileService) store(ctx context.Context, requester *domain.Identity, f UploadFile) (*domain.StoredObject, error) {
	if f.Body == nil {
		return nil, domain.ErrNoFileProvided
	}

	obj := domain.NewStoredObject(*requester, f.Filename, f.ContentType)
	hr := crypto.NewLimitedHashReader(f.Body, s.maxFileSize)

	if _, err := s.storage.Put(ctx, obj.ID, hr); err != nil {
		if errors.Is(err, crypto.ErrSizeLimitExceeded) {
			return nil, fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrFileTooLarge, f.Filename, s.maxFileSize)
		}
		s.logger.Error().Err(err).Str("file_id", obj.ID).Msg("failed to store content")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	obj.Size = hr.Size()
	obj.Checksum = hr.SHA256()

	if err := s.objectRepo.Create(ctx, obj); err != nil {
		s.logger.Error().Err(err).Str("file_id", obj.ID).Msg("failed to create object metadata")
		if delErr := s.storage.Delete(ctx, obj.ID); delErr != nil {
			s.logger.Error().Err(delErr).Str("file_id", obj.ID).Msg("failed to remove content after metadata failure")
		}
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if s.metrics != nil {
		s.metrics.RecordUpload(obj.Size)
	}

	s.logger.Info().
		Str("file_id", obj.ID).
		Str("owner_id", obj.OwnerID).
		Str("filename", obj.Filename).
		Int64("size", obj.Size).
		Msg("file uploaded")

	return obj, nil
}

func (s *FileService) rollback(ctx context.Context, ownerID string, uploaded []UploadedFile) {
	for _, u := range uploaded {
		if _, err := s.remove(ctx, u.FileID, ownerID); err != nil {
			s.logger.Error().Err(err).Str("file_id", u.FileID).Msg("failed to roll back upload")
		}
	}
}

// List returns the requester's files, newest first.
func (s *FileService) List(ctx context.Context, requester *domain.Identity) ([]*domain.StoredObject, error) {
	if err := auth.RequireAuthenticated(requester); err != nil {
		return nil, err
	}

	objects, err := s.objectRepo.ListByOwner(ctx, requester.UserID)
	if err != nil {
		s.logger.Error().Err(err).Str("owner_id", requester.UserID).Msg("failed to list objects")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if objects == nil {
		objects = []*domain.StoredObject{}
	}
	return objects, nil
}

// DownloadOutput carries a file's metadata and content.
// The caller must close Body.
type DownloadOutput struct {
	Object *domain.StoredObject
	Body   io.ReadCloser
}

// Download opens one of the requester's files.
// Foreign, missing and malformed IDs all yield domain.ErrObjectNotFound.
func (s *FileService) Download(ctx context.Context, requester *domain.Identity, objectID string) (*DownloadOutput, error) {
	if err := auth.RequireAuthenticated(requester); err != nil {
		return nil, err
	}
	if !domain.IsValidObjectID(objectID) {
		return nil, domain.ErrObjectNotFound
	}

	obj, err := s.objectRepo.GetByIDAndOwner(ctx, objectID, requester.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrObjectNotFound) {
			return nil, err
		}
		s.logger.Error().Err(err).Str("file_id", objectID).Msg("failed to get object")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	body, err := s.storage.Get(ctx, obj.ID)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			s.logger.Warn().Str("file_id", obj.ID).Msg("object metadata without content")
			return nil, domain.ErrObjectNotFound
		}
		s.logger.Error().Err(err).Str("file_id", obj.ID).Msg("failed to open content")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	return &DownloadOutput{Object: obj, Body: body}, nil
}

// Delete removes one of the requester's files.
// Foreign, missing and malformed IDs all yield domain.ErrObjectNotFound.
func (s *FileService) Delete(ctx context.Context, requester *domain.Identity, objectID string) error {
	if err := auth.RequireAuthenticated(requester); err != nil {
		return err
	}
	if !domain.IsValidObjectID(objectID) {
		return domain.ErrObjectNotFound
	}

	deleted, err := s.remove(ctx, objectID, requester.UserID)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrObjectNotFound
	}

	s.recordDeletes(deleteReasonUser, 1)
	s.logger.Info().
		Str("file_id", objectID).
		Str("owner_id", requester.UserID).
		Msg("file deleted")

	return nil
}

// remove deletes the metadata row, then the content. Once the row is gone the
// object is invisible, so a content failure is only logged.
func (s *FileService) remove(ctx context.Context, objectID, ownerID string) (bool, error) {
	deleted, err := s.objectRepo.DeleteByIDAndOwner(ctx, objectID, ownerID)
	if err != nil {
		s.logger.Error().Err(err).Str("file_id", objectID).Msg("failed to delete object metadata")
		return false, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if !deleted {
		return false, nil
	}

	if err := s.storage.Delete(ctx, objectID); err != nil {
		s.logger.Error().Err(err).Str("file_id", objectID).Msg("failed to delete content")
	}
	return true, nil
}

// DeleteAllByOwner removes every object owned by ownerID and returns how
// many metadata rows were deleted. It performs no access check: callers are
// the user-deletion cascade and the Reconciler.
func (s *FileService) DeleteAllByOwner(ctx context.Context, ownerID string) (int, error) {
	n, err := s.deleteAllByOwner(ctx, ownerID)
	s.recordDeletes(deleteReasonCascade, n)
	return n, err
}

func (s *FileService) deleteAllByOwner(ctx context.Context, ownerID string) (int, error) {
	ids, err := s.objectRepo.ListIDsByOwner(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	deleted, err := s.objectRepo.DeleteByOwner(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	failed := 0
	for _, id := range ids {
		if err := s.storage.Delete(ctx, id); err != nil {
			failed++
			s.logger.Error().Err(err).Str("file_id", id).Msg("failed to delete content")
		}
	}

	s.logger.Info().
		Str("owner_id", ownerID).
		Int64("deleted", deleted).
		Int("content_failures", failed).
		Msg("deleted objects of owner")

	return int(deleted), nil
}

// countByOwner is used by dry runs.
func (s *FileService) countByOwner(ctx context.Context, ownerID string) (int, error) {
	ids, err := s.objectRepo.ListIDsByOwner(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return len(ids), nil
}

func (s *FileService) recordDeletes(reason string, n int) {
	if s.metrics != nil && n > 0 {
		s.metrics.RecordDeletes(reason, n)
	}
}
