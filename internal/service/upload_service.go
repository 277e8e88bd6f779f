package service

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/repository"
	"alcyxob/gym-app/internal/storage"
)

// --- Error Definitions ---
var (
	ErrStorageUnavailable       = errors.New("photo storage is not configured")
	ErrUploadNotFound           = errors.New("upload not found")
	ErrUploadNotImage           = errors.New("only image uploads are allowed")
	ErrUploadKeyMismatch        = errors.New("object key does not belong to this user")
	ErrUploadObjectMissing      = errors.New("uploaded object not found in storage")
	ErrUploadConfirmationFailed = errors.New("failed to confirm upload")
	ErrUploadURLError           = errors.New("failed to generate upload URL")
	ErrDownloadURLError         = errors.New("failed to generate download URL")
)

// MaxPhotoSize caps progress photos at 10 MiB.
const MaxPhotoSize = 10 << 20

// UploadURLResponse structure for returning URL and object key
type UploadURLResponse struct {
	UploadURL string `json:"uploadUrl"`
	ObjectKey string `json:"objectKey"` // The key client needs to report back on confirm
}

// Photo is an upload with a temporary URL to view it.
type Photo struct {
	domain.Upload
	URL string `json:"url"`
}

type UploadService interface {
	RequestUploadURL(ctx context.Context, userID primitive.ObjectID, contentType string) (*UploadURLResponse, error)
	ConfirmUpload(ctx context.Context, userID primitive.ObjectID, objectKey, fileName, contentType, caption string) (*domain.Upload, error)
	ListMyUploads(ctx context.Context, userID primitive.ObjectID) ([]Photo, error)
	ListTraineeUploads(ctx context.Context, actor Actor, userID primitive.ObjectID) ([]Photo, error)
	DeleteUpload(ctx context.Context, userID, uploadID primitive.ObjectID) error
}

// uploadService implements the UploadService interface.
type uploadService struct {
	uploadRepo     repository.UploadRepository
	assignmentRepo repository.AssignmentRepository
	fileStorage    storage.FileStorage
}

// NewUploadService creates a new instance of uploadService. fileStorage may
// be nil when no bucket is configured; every operation then fails with
// ErrStorageUnavailable.
func NewUploadService(
	uploadRepo repository.UploadRepository,
	assignmentRepo repository.AssignmentRepository,
	fileStorage storage.FileStorage,
) UploadService {
	return &uploadService{
		uploadRepo:     uploadRepo,
		assignmentRepo: assignmentRepo,
		fileStorage:    fileStorage,
	}
}

func userPrefix(userID primitive.ObjectID) string {
	return path.Join("uploads", userID.Hex()) + "/"
}

func isImage(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && strings.HasPrefix(mediaType, "image/")
}

// RequestUploadURL generates a pre-signed PUT URL for a new progress photo.
func (s *uploadService) RequestUploadURL(ctx context.Context, userID primitive.ObjectID, contentType string) (*UploadURLResponse, error) {
	if s.fileStorage == nil {
		return nil, ErrStorageUnavailable
	}
	if !isImage(contentType) {
		return nil, ErrUploadNotImage
	}

	mediaType, _, _ := mime.ParseMediaType(contentType)
	ext := strings.TrimPrefix(mediaType, "image/")
	if ext == "jpeg" {
		ext = "jpg"
	}
	objectKey := userPrefix(userID) + uuid.NewString() + "." + ext

	uploadURL, err := s.fileStorage.GeneratePresignedUploadURL(ctx, objectKey, contentType, storage.DefaultPresignedURLExpiry)
	if err != nil {
		log.Error().Err(err).Str("key", objectKey).Msg("presign upload failed")
		return nil, ErrUploadURLError
	}
	return &UploadURLResponse{UploadURL: uploadURL, ObjectKey: objectKey}, nil
}

// ConfirmUpload records the metadata once the client has PUT the object.
// The size is read from storage rather than trusted from the client.
func (s *uploadService) ConfirmUpload(ctx context.Context, userID primitive.ObjectID, objectKey, fileName, contentType, caption string) (*domain.Upload, error) {
	if s.fileStorage == nil {
		return nil, ErrStorageUnavailable
	}
	if !strings.HasPrefix(objectKey, userPrefix(userID)) || strings.Contains(objectKey, "..") {
		return nil, ErrUploadKeyMismatch
	}
	if !isImage(contentType) {
		return nil, ErrUploadNotImage
	}

	size, err := s.fileStorage.ObjectSize(ctx, objectKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrUploadObjectMissing
		}
		return nil, fmt.Errorf("checking uploaded object: %w", err)
	}
	if size > MaxPhotoSize {
		s.removeObject(ctx, objectKey)
		return nil, invalid("photo exceeds the 10 MiB limit")
	}

	if fileName == "" {
		fileName = path.Base(objectKey)
	}
	upload := &domain.Upload{
		UserID:      userID,
		S3ObjectKey: objectKey,
		FileName:    fileName,
		ContentType: contentType,
		Size:        size,
		Caption:     strings.TrimSpace(caption),
	}
	if _, err := s.uploadRepo.Create(ctx, upload); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, invalid("upload already confirmed")
		}
		log.Error().Err(err).Str("key", objectKey).Msg("saving upload metadata failed")
		return nil, ErrUploadConfirmationFailed
	}
	return upload, nil
}

func (s *uploadService) removeObject(ctx context.Context, key string) {
	if err := s.fileStorage.DeleteObject(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to delete object")
	}
}

func (s *uploadService) withURLs(ctx context.Context, uploads []domain.Upload) ([]Photo, error) {
	photos := make([]Photo, 0, len(uploads))
	for _, u := range uploads {
		url, err := s.fileStorage.GeneratePresignedDownloadURL(ctx, u.S3ObjectKey, storage.DefaultPresignedURLExpiry)
		if err != nil {
			log.Error().Err(err).Str("key", u.S3ObjectKey).Msg("presign download failed")
			return nil, ErrDownloadURLError
		}
		photos = append(photos, Photo{Upload: u, URL: url})
	}
	return photos, nil
}

func (s *uploadService) ListMyUploads(ctx context.Context, userID primitive.ObjectID) ([]Photo, error) {
	if s.fileStorage == nil {
		return nil, ErrStorageUnavailable
	}
	uploads, err := s.uploadRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.withURLs(ctx, uploads)
}

// ListTraineeUploads lets a trainer see the progress photos of a current trainee.
func (s *uploadService) ListTraineeUploads(ctx context.Context, actor Actor, userID primitive.ObjectID) ([]Photo, error) {
	if s.fileStorage == nil {
		return nil, ErrStorageUnavailable
	}
	ok, err := canCoach(ctx, s.assignmentRepo, actor, userID, "")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotYourTrainee
	}
	uploads, err := s.uploadRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.withURLs(ctx, uploads)
}

// DeleteUpload removes the object first, then the metadata, so a failure
// never leaves an orphaned object without a record pointing at it.
func (s *uploadService) DeleteUpload(ctx context.Context, userID, uploadID primitive.ObjectID) error {
	if s.fileStorage == nil {
		return ErrStorageUnavailable
	}
	upload, err := s.uploadRepo.GetByID(ctx, uploadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUploadNotFound
		}
		return err
	}
	if upload.UserID != userID {
		return ErrUploadNotFound
	}
	if err := s.fileStorage.DeleteObject(ctx, upload.S3ObjectKey); err != nil {
		return fmt.Errorf("deleting object: %w", err)
	}
	return s.uploadRepo.Delete(ctx, upload.ID)
}
