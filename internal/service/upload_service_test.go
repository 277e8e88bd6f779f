package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/storage"
)

// fakeStorage keeps object sizes in memory.
type fakeStorage struct {
	objects map[string]int64
	deleted []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string]int64{}}
}

func (s *fakeStorage) GeneratePresignedUploadURL(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	return "https://s3.test/put/" + key, nil
}

func (s *fakeStorage) GeneratePresignedDownloadURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://s3.test/get/" + key, nil
}

func (s *fakeStorage) ObjectSize(_ context.Context, key string) (int64, error) {
	size, ok := s.objects[key]
	if !ok {
		return 0, storage.ErrObjectNotFound
	}
	return size, nil
}

func (s *fakeStorage) DeleteObject(_ context.Context, key string) error {
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func TestUploadFlow(t *testing.T) {
	f := newFixture(t)
	store := newFakeStorage()
	svc := NewUploadService(f.repos.Uploads, f.repos.Assignments, store)
	ctx := context.Background()
	member := f.addUser(t, "maya", domain.RoleUser)
	other := f.addUser(t, "omar", domain.RoleUser)

	_, err := svc.RequestUploadURL(ctx, member.ID, "video/mp4")
	assert.ErrorIs(t, err, ErrUploadNotImage)

	res, err := svc.RequestUploadURL(ctx, member.ID, "image/jpeg")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.ObjectKey, "uploads/"+member.ID.Hex()+"/"))
	assert.True(t, strings.HasSuffix(res.ObjectKey, ".jpg"))
	assert.Contains(t, res.UploadURL, res.ObjectKey)

	_, err = svc.ConfirmUpload(ctx, member.ID, res.ObjectKey, "front.jpg", "image/jpeg", "")
	assert.ErrorIs(t, err, ErrUploadObjectMissing)

	store.objects[res.ObjectKey] = 2048
	_, err = svc.ConfirmUpload(ctx, other.ID, res.ObjectKey, "front.jpg", "image/jpeg", "")
	assert.ErrorIs(t, err, ErrUploadKeyMismatch)

	upload, err := svc.ConfirmUpload(ctx, member.ID, res.ObjectKey, "front.jpg", "image/jpeg", " week 1 ")
	require.NoError(t, err)
	assert.Equal(t, int64(2048), upload.Size)
	assert.Equal(t, "week 1", upload.Caption)

	photos, err := svc.ListMyUploads(ctx, member.ID)
	require.NoError(t, err)
	require.Len(t, photos, 1)
	assert.Equal(t, "https://s3.test/get/"+res.ObjectKey, photos[0].URL)

	assert.ErrorIs(t, svc.DeleteUpload(ctx, other.ID, upload.ID), ErrUploadNotFound)
	require.NoError(t, svc.DeleteUpload(ctx, member.ID, upload.ID))
	assert.Equal(t, []string{res.ObjectKey}, store.deleted)

	photos, err = svc.ListMyUploads(ctx, member.ID)
	require.NoError(t, err)
	assert.Empty(t, photos)
}

func TestOversizedPhotoIsRemoved(t *testing.T) {
	f := newFixture(t)
	store := newFakeStorage()
	svc := NewUploadService(f.repos.Uploads, f.repos.Assignments, store)
	member := f.addUser(t, "maya", domain.RoleUser)

	res, err := svc.RequestUploadURL(context.Background(), member.ID, "image/png")
	require.NoError(t, err)
	store.objects[res.ObjectKey] = MaxPhotoSize + 1

	_, err = svc.ConfirmUpload(context.Background(), member.ID, res.ObjectKey, "", "image/png", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, []string{res.ObjectKey}, store.deleted)
}

func TestTrainerSeesTraineePhotos(t *testing.T) {
	f := newFixture(t)
	store := newFakeStorage()
	svc := NewUploadService(f.repos.Uploads, f.repos.Assignments, store)
	ctx := context.Background()
	trainer := f.addUser(t, "tara", domain.RoleTrainer)
	member := f.addUser(t, "maya", domain.RoleUser)

	_, err := svc.ListTraineeUploads(ctx, actorOf(trainer), member.ID)
	assert.ErrorIs(t, err, ErrNotYourTrainee)

	f.assign(t, trainer, member, domain.RequestWorkout)
	photos, err := svc.ListTraineeUploads(ctx, actorOf(trainer), member.ID)
	require.NoError(t, err)
	assert.Empty(t, photos)
}

func TestUploadsWithoutStorage(t *testing.T) {
	f := newFixture(t)
	svc := NewUploadService(f.repos.Uploads, f.repos.Assignments, nil)
	_, err := svc.RequestUploadURL(context.Background(), f.addUser(t, "maya", domain.RoleUser).ID, "image/png")
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}
