package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const gcsTimeout = 50 * time.Second

// GCSStore keeps objects in a Google Cloud Storage bucket, under uploadPath.
type GCSStore struct {
	cl         *gcs.Client
	bucketName string
	uploadPath string
}

func NewGCSStore(ctx context.Context, bucketName, uploadPath, credentialsFile string) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}

	return newGCSStore(client, bucketName, uploadPath), nil
}

func newGCSStore(client *gcs.Client, bucketName, uploadPath string) *GCSStore {
	return &GCSStore{
		cl:         client,
		bucketName: bucketName,
		uploadPath: normalizePrefix(uploadPath),
	}
}

func normalizePrefix(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return p + "/"
}

func (s *GCSStore) objectPath(key string) string {
	return s.uploadPath + key
}

func (s *GCSStore) object(key string) *gcs.ObjectHandle {
	return s.cl.Bucket(s.bucketName).Object(s.objectPath(key))
}

func (s *GCSStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, gcsTimeout)
	defer cancel()

	wc := s.object(key).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return fmt.Errorf("Writer.Write %q: %w", key, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("Writer.Close %q: %w", key, err)
	}
	return nil
}

func (s *GCSStore) Get(ctx context.Context, key string) (*Object, error) {
	ctx, cancel := context.WithTimeout(ctx, gcsTimeout)
	defer cancel()

	rc, err := s.object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, ErrObjectNotExist
		}
		return nil, fmt.Errorf("Object.NewReader %q: %w", key, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", key, err)
	}

	return &Object{Key: key, ContentType: rc.Attrs.ContentType, Data: data}, nil
}

func (s *GCSStore) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, gcsTimeout)
	defer cancel()

	_, err := s.object(key).Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("Object.Attrs %q: %w", key, err)
	}
	return true, nil
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, gcsTimeout)
	defer cancel()

	err := s.object(key).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("Object.Delete %q: %w", key, err)
	}
	return nil
}

// SignedURL generates a V4 signed GET URL. Signing credentials are taken
// from the client's service account.
func (s *GCSStore) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	opts := &gcs.SignedURLOptions{
		Scheme:  gcs.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(ttl),
	}

	signedURL, err := s.cl.Bucket(s.bucketName).SignedURL(s.objectPath(key), opts)
	if err != nil {
		return "", fmt.Errorf("failed to generate signed URL: %w", err)
	}
	return signedURL, nil
}

// BlobNameFromURL extracts the object key from a public bucket URL such as
// https://storage.googleapis.com/<bucket>/<uploadPath><key>. It returns ""
// when the URL does not point into the bucket.
func (s *GCSStore) BlobNameFromURL(link string) string {
	return blobNameFromURL(link, s.bucketName, s.uploadPath)
}

func blobNameFromURL(link, bucket, prefix string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}

	marker := bucket + "/"
	p := strings.TrimPrefix(u.Path, "/")
	idx := strings.Index(p, marker)
	if idx < 0 {
		return ""
	}

	name := strings.TrimPrefix(p[idx+len(marker):], prefix)
	if name == "" || strings.Contains(name, "/") {
		return ""
	}
	return name
}

func (s *GCSStore) Close() error {
	return s.cl.Close()
}
