// Package snapshot uploads the composed map image and its report to an
// S3-compatible object store.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"path"
	"strings"

	"github.com/carlaviz/startpositions/internal/viewer"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

// ErrIncompleteConfig is returned when endpoint, credentials or bucket are missing.
var ErrIncompleteConfig = errors.New("snapshot configuration is incomplete")

// Config holds object store settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// Prefix is prepended to every object key.
	Prefix string
}

func (c Config) validate() error {
	if c.Endpoint == "" || c.AccessKey == "" || c.SecretKey == "" || c.Bucket == "" {
		return ErrIncompleteConfig
	}
	return nil
}

// Store writes one image and one report object per session.
type Store struct {
	Client *minio.Client
	Logger zerolog.Logger

	bucket string
	prefix string
}

// NewStore connects to the object store and creates the bucket if needed.
func NewStore(ctx context.Context, cfg Config, log zerolog.Logger) (*Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
		log.Info().Str("bucket", cfg.Bucket).Msg("Created bucket")
	}

	return &Store{
		Client: client,
		Logger: log,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Name identifies the sink in logs.
func (s *Store) Name() string { return "snapshot" }

// Record uploads <prefix>/<session>/<map>.png and <prefix>/<session>/report.json.
func (s *Store) Record(ctx context.Context, r *viewer.Report) error {
	if r.Image == nil {
		return errors.New("report has no image")
	}
	imageKey, reportKey := ObjectKeys(s.prefix, r)

	var img bytes.Buffer
	if err := png.Encode(&img, r.Image); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	if err := s.put(ctx, imageKey, img.Bytes(), "image/png"); err != nil {
		return err
	}

	doc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := s.put(ctx, reportKey, doc, "application/json"); err != nil {
		return err
	}

	s.Logger.Debug().
		Str("bucket", s.bucket).
		Str("image", imageKey).
		Str("report", reportKey).
		Msg("Uploaded snapshot")
	return nil
}

func (s *Store) put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.Client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// ObjectKeys returns the image and report keys of r under prefix.
func ObjectKeys(prefix string, r *viewer.Report) (imageKey, reportKey string) {
	dir := path.Join(prefix, r.SessionID.String())
	name := r.MapName
	if name == "" {
		name = "map"
	}
	return path.Join(dir, name+".png"), path.Join(dir, "report.json")
}
