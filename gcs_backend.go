package geobase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSBackend implements Backend using Google Cloud Storage.
// Object generations stand in for ETags, so PutIfMatch is a true conditional write.
type GCSBackend struct {
	client *storage.Client
	bucket string
}

// GCSConfig contains GCS-specific configuration
type GCSConfig struct {
	Bucket          string
	CredentialsFile string // Service account JSON; Application Default Credentials when empty
	Endpoint        string // Optional override, e.g. a local emulator
}

// NewGCSBackend creates a new GCS backend. The client dials lazily.
func NewGCSBackend(ctx context.Context, cfg GCSConfig) (*GCSBackend, error) {
	if cfg.Bucket == "" {
		return nil, WithContext(ErrInvalidConfig, map[string]interface{}{
			"reason": "gcs bucket is required",
		})
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSBackend{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

func translateGCSError(err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ErrNotFound
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusPreconditionFailed:
			return ErrConflict
		case http.StatusForbidden, http.StatusUnauthorized:
			return ErrUnauthorized
		}
	}
	return err
}

func (b *GCSBackend) Get(ctx context.Context, key string) ([]byte, error) {
	data, _, err := b.GetWithETag(ctx, key)
	return data, err
}

func (b *GCSBackend) Put(ctx context.Context, key string, data []byte) error {
	_, err := b.write(ctx, b.client.Bucket(b.bucket).Object(key), data)
	return err
}

func (b *GCSBackend) write(ctx context.Context, obj *storage.ObjectHandle, data []byte) (int64, error) {
	writer := obj.NewWriter(ctx)
	writer.ContentType = "application/json"

	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return 0, translateGCSError(err)
	}
	if err := writer.Close(); err != nil {
		return 0, translateGCSError(err)
	}
	return writer.Attrs().Generation, nil
}

func (b *GCSBackend) Delete(ctx context.Context, key string) error {
	return translateGCSError(b.client.Bucket(b.bucket).Object(key).Delete(ctx))
}

func (b *GCSBackend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.client.Bucket(b.bucket).Object(key).Attrs(ctx)
	if err != nil {
		if err = translateGCSError(err); errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (b *GCSBackend) GetWithETag(ctx context.Context, key string) ([]byte, string, error) {
	reader, err := b.client.Bucket(b.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, "", translateGCSError(err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", err
	}

	return data, strconv.FormatInt(reader.Attrs.Generation, 10), nil
}

// PutIfMatch writes only if the object is still at the expected generation
func (b *GCSBackend) PutIfMatch(ctx context.Context, key string, data []byte, expectedETag string) (string, error) {
	obj := b.client.Bucket(b.bucket).Object(key)

	if expectedETag != "" {
		gen, err := strconv.ParseInt(expectedETag, 10, 64)
		if err != nil {
			return "", WithContext(ErrValidation, map[string]interface{}{
				"etag":   expectedETag,
				"reason": "gcs etags are object generations",
			})
		}
		obj = obj.If(storage.Conditions{GenerationMatch: gen})
	}

	gen, err := b.write(ctx, obj, data)
	if err != nil {
		if IsConflict(err) {
			return "", WithContext(ErrConflict, map[string]interface{}{
				"key":      key,
				"expected": expectedETag,
			})
		}
		return "", err
	}
	return strconv.FormatInt(gen, 10), nil
}

func (b *GCSBackend) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	it := b.client.Bucket(b.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, translateGCSError(err)
		}
		keys = append(keys, attrs.Name)
	}

	sort.Strings(keys)
	return keys, nil
}

// Ping checks bucket access
func (b *GCSBackend) Ping(ctx context.Context) error {
	_, err := b.client.Bucket(b.bucket).Attrs(ctx)
	return translateGCSError(err)
}

func (b *GCSBackend) Close() error {
	return b.client.Close()
}
