package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Backends accepted by Open.
const (
	BackendLocal  = "local"
	BackendS3     = "s3"
	BackendMemory = "memory"
)

// Config selects and configures a FileStore.
type Config struct {
	Backend string `json:"backend" yaml:"backend"`

	// Dir is the root directory of the local backend.
	Dir string `json:"dir,omitzero" yaml:"dir,omitempty"`

	Bucket string `json:"bucket,omitzero" yaml:"bucket,omitempty"`
	Prefix string `json:"prefix,omitzero" yaml:"prefix,omitempty"`
	Region string `json:"region,omitzero" yaml:"region,omitempty"`
	// Endpoint overrides the S3 endpoint for MinIO, R2 and similar.
	Endpoint  string `json:"endpoint,omitzero" yaml:"endpoint,omitempty"`
	PathStyle bool   `json:"path_style,omitzero" yaml:"path_style,omitempty"`

	AccessKeyID     string `json:"access_key_id,omitzero" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secret_access_key,omitzero" yaml:"secret_access_key,omitempty"`
}

// Open creates the FileStore described by cfg. An empty backend selects
// local storage.
func Open(cfg Config) (FileStore, error) {
	switch cfg.Backend {
	case "", BackendLocal:
		if cfg.Dir == "" {
			return nil, fmt.Errorf("storage: local backend needs a dir")
		}
		return NewLocal(cfg.Dir)
	case BackendMemory:
		return NewMemory(), nil
	case BackendS3:
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("storage: s3 backend needs a bucket")
		}
		return NewS3(newS3Client(cfg), cfg.Bucket, cfg.Prefix), nil
	}
	return nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
}

func newS3Client(cfg Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		UsePathStyle: cfg.PathStyle,
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	if cfg.AccessKeyID != "" {
		creds := aws.Credentials{
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			Source:          "storage.Config",
		}
		opts.Credentials = aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return creds, nil
		})
	}
	return s3.New(opts)
}
