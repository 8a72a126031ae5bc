package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

const connectTimeout = 5 * time.Second

type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL is the base that object names are appended to. Empty means
	// {scheme}://{endpoint}/{bucket}.
	PublicURL string
}

// MinioImageStore stores images as public-read objects in one bucket.
type MinioImageStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
	now     func() time.Time
	logger  *zap.Logger
}

// NewMinioImageStore connects and creates the bucket if it is missing.
func NewMinioImageStore(ctx context.Context, opts MinioOptions, logger *zap.Logger) (*MinioImageStore, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
		logger.Info("created image bucket", zap.String("bucket", opts.Bucket))
	}

	baseURL := opts.PublicURL
	if baseURL == "" {
		scheme := "http"
		if opts.UseSSL {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s/%s", scheme, opts.Endpoint, opts.Bucket)
	}

	logger.Info("image storage ready", zap.String("endpoint", opts.Endpoint), zap.String("bucket", opts.Bucket))
	return &MinioImageStore{
		client:  client,
		bucket:  opts.Bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
		logger:  logger,
	}, nil
}

func (s *MinioImageStore) Upload(ctx context.Context, img Image) (*Stored, error) {
	if err := Validate(img.ContentType, img.Size); err != nil {
		return nil, err
	}

	now := s.now()
	name := ObjectName(img.AnimalTag, img.Filename, now, uuid.New())
	_, err := s.client.PutObject(ctx, s.bucket, name, img.Body, img.Size, minio.PutObjectOptions{
		ContentType: img.ContentType,
		UserMetadata: map[string]string{
			"animal-id":        strconv.FormatInt(img.AnimalID, 10),
			"animal-chapeta":   img.AnimalTag,
			"uploaded-by":      strconv.FormatInt(img.UploadedBy, 10),
			"upload-timestamp": now.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("put object: %w", err)
	}
	return &Stored{URL: s.baseURL + "/" + name, ObjectName: name}, nil
}

func (s *MinioImageStore) Delete(ctx context.Context, url string) error {
	name, ok := ObjectNameFromURL(s.baseURL, url)
	if !ok {
		return ErrNotOwned
	}
	if err := s.client.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

// ObjectNameFromURL strips baseURL and any query string from url.
func ObjectNameFromURL(baseURL, url string) (string, bool) {
	prefix := strings.TrimRight(baseURL, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	name := strings.TrimPrefix(url, prefix)
	if i := strings.IndexByte(name, '?'); i >= 0 {
		name = name[:i]
	}
	return name, name != ""
}
