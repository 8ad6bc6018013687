// Package storage provides the filesystem abstraction behind product images.
//
// Two drivers are available out of the box:
//   - "local"  — local filesystem (default)
//   - "s3"     — S3-compatible object storage (AWS S3, MinIO, R2, Spaces)
//
// Construct one disk at startup and inject it where images are written:
//
//	disk, err := storage.NewFromEnv()
//	disk.Put("velvet-armchair/img1.jpg", data)
//	url := disk.URL("velvet-armchair/img1.jpg")
package storage

import (
	"io"
	"time"

	"github.com/driftmarket/driftmarket/config"
)

// Disk is the filesystem driver interface.
type Disk interface {
	// Put writes content to path, creating parent directories as needed.
	Put(path string, content []byte) error

	// PutStream writes from r to path.
	PutStream(path string, r io.Reader) error

	// Get returns the full content of the file at path.
	Get(path string) ([]byte, error)

	// GetStream returns a ReadCloser for the file. Caller must close it.
	GetStream(path string) (io.ReadCloser, error)

	// Exists reports whether a file exists at path.
	Exists(path string) bool

	// Size returns the byte size of the file.
	Size(path string) (int64, error)

	// LastModified returns the file's last-modified time.
	LastModified(path string) (time.Time, error)

	// URL returns the public URL for path.
	URL(path string) string

	// Delete removes a file.
	Delete(path string) error

	// Files lists non-recursive filenames directly inside directory.
	Files(directory string) ([]string, error)

	// AllFiles lists all files inside directory, recursively.
	AllFiles(directory string) ([]string, error)

	// DeleteDirectory removes directory and all its contents.
	DeleteDirectory(path string) error
}

// NewFromEnv builds the disk selected by STORAGE_DISK.
func NewFromEnv() (Disk, error) {
	if config.StorageDefault() == "s3" {
		return NewS3Disk(S3ConfigFromEnv())
	}
	return NewLocalDisk(config.StorageLocalRoot(), config.StorageURL()), nil
}
