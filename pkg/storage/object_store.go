package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"
)

// ErrObjectNotFound is returned when a key has no stored object.
var ErrObjectNotFound = errors.New("storage: object not found")

// ObjectStore is the durable blob store export bundles are written to.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	// URL returns a link the caller can use to download key.
	URL(ctx context.Context, key string) (string, error)
}

// FileStore serves objects from local disk through signed API download links.
type FileStore struct {
	disk        *LocalStorage
	signer      *SignedURLSigner
	downloadURL string
}

// NewFileStore builds a FileStore. downloadURL is the absolute URL of the download
// route without the trailing token, e.g. https://host/api/estimate/download.
func NewFileStore(disk *LocalStorage, signer *SignedURLSigner, downloadURL string) *FileStore {
	return &FileStore{disk: disk, signer: signer, downloadURL: downloadURL}
}

// Put writes data under key.
func (s *FileStore) Put(_ context.Context, key string, data []byte, _ string) error {
	return s.disk.Save(key, data)
}

// Get reads key from disk.
func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	return s.disk.ReadFile(key)
}

// URL signs key into an expiring download link.
func (s *FileStore) URL(_ context.Context, key string) (string, error) {
	token, _, err := s.signer.Generate(key)
	if err != nil {
		return "", fmt.Errorf("sign download url: %w", err)
	}
	return s.downloadURL + "/" + url.PathEscape(token), nil
}

// Resolve validates a download token and returns the key and its on-disk path.
func (s *FileStore) Resolve(token string) (key, path string, err error) {
	key, _, err = s.signer.Parse(token)
	if err != nil {
		return "", "", err
	}
	path, err = s.disk.Path(key)
	if err != nil {
		return "", "", err
	}
	return key, path, nil
}

// Cleanup deletes objects under prefix older than ttl.
func (s *FileStore) Cleanup(prefix string, ttl time.Duration) ([]string, error) {
	return s.disk.CleanupOlderThan(prefix, ttl)
}
