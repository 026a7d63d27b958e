// Package blobstore stores uploaded document bytes. Keys are slash-separated
// relative paths such as "<owner>/<millis>-<name>"; the document metadata
// record keeps the key.
package blobstore

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

var (
	ErrBlobNotFound = errors.New("blob not found")
	ErrFileTooLarge = errors.New("file exceeds maximum allowed size")
	ErrInvalidKey   = errors.New("invalid blob key")
)

// Object describes a stored blob.
type Object struct {
	Key         string `json:"key"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	Hash        string `json:"hash"`
}

// Store is the contract for blob storage backends.
type Store interface {
	// Put writes content under key. Writing more than maxSize bytes fails
	// with ErrFileTooLarge and leaves nothing behind.
	Put(ctx context.Context, key string, content io.Reader, maxSize int64) (*Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, *Object, error)
	Stat(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
}

// FSStore keeps blobs as files on an afero filesystem: the OS filesystem
// rooted at UPLOAD_DIR in production, an in-memory one in tests.
type FSStore struct {
	fs afero.Fs
}

// NewFSStore wraps fs directly.
func NewFSStore(fs afero.Fs) *FSStore {
	return &FSStore{fs: fs}
}

// NewDiskStore roots a store at dir on the local disk, creating it if needed.
func NewDiskStore(dir string) (*FSStore, error) {
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return NewFSStore(afero.NewBasePathFs(osFs, dir)), nil
}

func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

func (s *FSStore) Put(ctx context.Context, key string, content io.Reader, maxSize int64) (*Object, error) {
	key, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := s.fs.MkdirAll(path.Dir(key), 0o750); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}

	f, err := s.fs.OpenFile(key, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("create blob %s: %w", key, err)
	}

	br := bufio.NewReaderSize(content, 512)
	head, _ := br.Peek(512)
	contentType := http.DetectContentType(head)

	hasher := sha256.New()
	n, copyErr := io.Copy(io.MultiWriter(f, hasher), io.LimitReader(br, maxSize+1))
	closeErr := f.Close()

	switch {
	case copyErr != nil:
		s.fs.Remove(key)
		return nil, fmt.Errorf("write blob %s: %w", key, copyErr)
	case closeErr != nil:
		s.fs.Remove(key)
		return nil, fmt.Errorf("close blob %s: %w", key, closeErr)
	case n > maxSize:
		s.fs.Remove(key)
		return nil, ErrFileTooLarge
	}

	return &Object{
		Key:         key,
		Size:        n,
		ContentType: contentType,
		Hash:        hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

func (s *FSStore) Stat(ctx context.Context, key string) (*Object, error) {
	key, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	info, err := s.fs.Stat(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("stat blob %s: %w", key, err)
	}
	return &Object{Key: key, Size: info.Size()}, nil
}

func (s *FSStore) Open(ctx context.Context, key string) (io.ReadCloser, *Object, error) {
	obj, err := s.Stat(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	f, err := s.fs.Open(obj.Key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrBlobNotFound
		}
		return nil, nil, fmt.Errorf("open blob %s: %w", key, err)
	}
	return f, obj, nil
}

// Delete removes the blob. Deleting a missing blob reports ErrBlobNotFound.
func (s *FSStore) Delete(ctx context.Context, key string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(key); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrBlobNotFound
		}
		return fmt.Errorf("delete blob %s: %w", key, err)
	}
	return nil
}
