package templates

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/cesuma/contratos-api/internal/security"
)

// ErrNotFound is returned by a Source when the named template does not exist
var ErrNotFound = errors.New("template not found")

// ErrTooLarge is returned when a template exceeds the configured size limit
var ErrTooLarge = errors.New("template exceeds maximum size")

// Source is a backing store of template PDFs. Implementations must return an
// independent byte slice on every Read.
type Source interface {
	// Exists reports whether name is present in the store
	Exists(ctx context.Context, name string) (bool, error)
	// Read loads name fully into memory
	Read(ctx context.Context, name string) ([]byte, error)
	// Location describes where name lives, for operators
	Location(name string) string
}

// FSSource serves templates from a local directory
type FSSource struct {
	paths   *security.PathValidator
	maxSize int64
}

// NewFSSource creates a filesystem source rooted at dir
func NewFSSource(dir string, maxSize int64) (*FSSource, error) {
	paths, err := security.NewPathValidator(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to create template source: %w", err)
	}
	return &FSSource{paths: paths, maxSize: maxSize}, nil
}

// Exists reports whether name is a regular file under the template directory
func (s *FSSource) Exists(_ context.Context, name string) (bool, error) {
	path, err := s.paths.Resolve(name)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cannot access template %s: %w", name, err)
	}
	return !info.IsDir(), nil
}

// Read loads name into memory, enforcing the size limit
func (s *FSSource) Read(_ context.Context, name string) ([]byte, error) {
	path, err := s.paths.Resolve(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open template %s: %w", name, err)
	}
	defer f.Close()

	return readLimited(f, s.maxSize)
}

// Location returns the absolute path of name
func (s *FSSource) Location(name string) string {
	if path, err := s.paths.Resolve(name); err == nil {
		return path
	}
	return name
}

// MinioConfig holds the object storage settings of a MinioSource
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// MinioSource serves templates from an S3-compatible bucket
type MinioSource struct {
	client  *minio.Client
	bucket  string
	prefix  string
	maxSize int64
}

// NewMinioSource creates a bucket-backed source
func NewMinioSource(cfg MinioConfig, maxSize int64) (*MinioSource, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("minio bucket cannot be empty")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioSource{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		maxSize: maxSize,
	}, nil
}

func (s *MinioSource) objectName(name string) string {
	return s.prefix + name
}

// Exists stats the object
func (s *MinioSource) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, s.objectName(name), minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat template %s: %w", name, err)
	}
	return true, nil
}

// Read downloads the object into memory
func (s *MinioSource) Read(ctx context.Context, name string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.objectName(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get template %s: %w", name, err)
	}
	defer obj.Close()

	data, err := readLimited(obj, s.maxSize)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, err
	}
	return data, nil
}

// Location returns the s3-style URL of name
func (s *MinioSource) Location(name string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.objectName(name))
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

func readLimited(r io.Reader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrTooLarge, maxSize)
	}
	return data, nil
}
