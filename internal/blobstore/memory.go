package blobstore

import (
	"context"
	"errors"
	"sync"
)

var ErrObjectNotFound = errors.New("object not found")

// MemoryStore keeps objects in process memory. It is used in development and tests.
type MemoryStore struct {
	mu      sync.Mutex
	baseURL string
	prefix  string
	objects map[string]memoryObject

	uploadErr error
	deleteErr error
}

type memoryObject struct {
	data        []byte
	contentType string
}

// NewMemoryStore creates an empty MemoryStore. Object URLs are built from baseURL.
func NewMemoryStore(baseURL, prefix string) *MemoryStore {
	if baseURL == "" {
		baseURL = "memory://blobs"
	}
	return &MemoryStore{
		baseURL: baseURL,
		prefix:  prefix,
		objects: make(map[string]memoryObject),
	}
}

// FailUploads makes every following Upload return err. A nil err restores uploads.
func (s *MemoryStore) FailUploads(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploadErr = err
}

// FailDeletes makes every following Delete return err. A nil err restores deletes.
func (s *MemoryStore) FailDeletes(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteErr = err
}

func (s *MemoryStore) Upload(ctx context.Context, in UploadInput) (Reference, error) {
	if err := ctx.Err(); err != nil {
		return Reference{}, err
	}

	key, contentType, err := prepare(s.prefix, in)
	if err != nil {
		return Reference{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		return Reference{}, s.uploadErr
	}

	data := make([]byte, len(in.Data))
	copy(data, in.Data)
	s.objects[key] = memoryObject{data: data, contentType: contentType}

	return Reference{
		URL:         objectURL(s.baseURL, key),
		StorageID:   key,
		ContentType: contentType,
	}, nil
}

func (s *MemoryStore) Delete(ctx context.Context, ref Reference) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if _, ok := s.objects[ref.StorageID]; !ok {
		return ErrObjectNotFound
	}
	delete(s.objects, ref.StorageID)
	return nil
}

// Has reports whether an object with storageID is stored.
func (s *MemoryStore) Has(storageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[storageID]
	return ok
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
