package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
)

// GCSService keeps upload blobs in one Google Cloud Storage bucket.
type GCSService struct {
	client     *storage.Client
	bucketName string
}

func NewGCSService(ctx context.Context, bucketName string) (*GCSService, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GCSService{client: client, bucketName: bucketName}, nil
}

func (s *GCSService) UploadFile(ctx context.Context, objectName string, content io.Reader) error {
	writer := s.client.Bucket(s.bucketName).Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(writer, content); err != nil {
		writer.Close()
		return err
	}
	return writer.Close()
}

func (s *GCSService) DownloadFile(ctx context.Context, objectName string) ([]byte, error) {
	reader, err := s.client.Bucket(s.bucketName).Object(objectName).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

func (s *GCSService) DeleteFile(ctx context.Context, objectName string) error {
	err := s.client.Bucket(s.bucketName).Object(objectName).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

func (s *GCSService) Close() error {
	return s.client.Close()
}

// LocalStorage keeps upload blobs under a directory on disk.
type LocalStorage struct {
	root string
}

func NewLocalStorage(root string) (*LocalStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &LocalStorage{root: root}, nil
}

func (s *LocalStorage) path(objectName string) (string, error) {
	clean := filepath.Clean("/" + objectName)
	if clean == "/" {
		return "", fmt.Errorf("invalid object name %q", objectName)
	}
	return filepath.Join(s.root, clean), nil
}

func (s *LocalStorage) UploadFile(ctx context.Context, objectName string, content io.Reader) error {
	path, err := s.path(objectName)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *LocalStorage) DownloadFile(ctx context.Context, objectName string) ([]byte, error) {
	path, err := s.path(objectName)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *LocalStorage) DeleteFile(ctx context.Context, objectName string) error {
	path, err := s.path(objectName)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
