package storage

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"media-studio-server/modules/common/config"
)

// Mirror - copies artifacts to an S3 compatible bucket as <namespace dir>/<file>
type Mirror struct {
	client *minio.Client
	bucket string
	region string

	mu    sync.Mutex
	ready bool
}

// NewMirror - minio client for the MIRROR_S3_* settings
func NewMirror(cfg *config.Config) (*Mirror, error) {
	endpoint := strings.TrimSpace(cfg.MirrorEndpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("mirror endpoint is required")
	}
	access := strings.TrimSpace(cfg.MirrorAccessKey)
	secret := strings.TrimSpace(cfg.MirrorSecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("mirror access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.MirrorBucket)
	if bucket == "" {
		return nil, fmt.Errorf("mirror bucket is required")
	}
	region := strings.TrimSpace(cfg.MirrorRegion)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.MirrorUseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init mirror client: %w", err)
	}

	log.Printf("✅ [Mirror] Client initialized for %s/%s", endpoint, bucket)
	return &Mirror{client: client, bucket: bucket, region: region}, nil
}

// ensureBucket - check (or create) the bucket until it succeeds once; failures are retried on the next call
func (m *Mirror) ensureBucket(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ready {
		return nil
	}

	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: m.region}); err != nil {
			return err
		}
		log.Printf("🪣 [Mirror] Created bucket %s", m.bucket)
	}
	m.ready = true
	return nil
}

// ObjectKey - bucket key of an artifact
func ObjectKey(a Artifact) string {
	return a.Namespace.DefaultDir() + "/" + a.Filename
}

// Upload - copy the artifact file to the bucket
func (m *Mirror) Upload(ctx context.Context, a Artifact) error {
	if err := m.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	_, err := m.client.FPutObject(ctx, m.bucket, ObjectKey(a), a.Path, minio.PutObjectOptions{
		ContentType: MediaType(a.Ext()),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	log.Printf("☁️  [Mirror] Uploaded %s", ObjectKey(a))
	return nil
}

// Remove - delete the mirrored object
func (m *Mirror) Remove(ctx context.Context, a Artifact) error {
	if err := m.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	if err := m.client.RemoveObject(ctx, m.bucket, ObjectKey(a), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}
