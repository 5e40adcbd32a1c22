package geobase

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// DefaultCloudBucket is the bucket used on the hosted endpoint unless Options names another
const DefaultCloudBucket = "geobase"

// MinIOConfig contains MinIO-specific configuration
type MinIOConfig struct {
	Endpoint        string // e.g., "localhost:9000" or "storage.geobase.cloud"
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Bucket          string
	Region          string // MinIO doesn't enforce regions, but the SDK requires one
}

// NewMinIOBackend creates an S3Backend against a MinIO (or other S3-compatible) endpoint
func NewMinIOBackend(cfg MinIOConfig) (*S3Backend, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, WithContext(ErrInvalidConfig, map[string]interface{}{
			"endpoint": cfg.Endpoint,
			"bucket":   cfg.Bucket,
			"reason":   "endpoint and bucket are required",
		})
	}

	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	client := s3.New(s3.Options{
		BaseEndpoint: aws.String(fmt.Sprintf("%s://%s", scheme, cfg.Endpoint)),
		Region:       region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		UsePathStyle: true, // MinIO uses path-style addressing: http://host/bucket/key
	})

	return NewS3Backend(client, cfg.Bucket), nil
}
