package targets

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/trolltrack/trolltrack/internal/backup"
	"github.com/trolltrack/trolltrack/internal/errors"
	"github.com/trolltrack/trolltrack/internal/logger"
)

// S3TargetConfig holds the settings for S3-compatible storage (AWS S3,
// MinIO, Cloudflare R2, Backblaze B2).
type S3TargetConfig struct {
	Endpoint  string // host[:port], a scheme is stripped
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	Prefix    string
	UseSSL    bool
}

// S3Target stores backups as objects.
type S3Target struct {
	config S3TargetConfig
	client *minio.Client
	log    logger.Logger
}

// NewS3Target creates a target and its client. No request is made until
// the first operation.
func NewS3Target(cfg S3TargetConfig, log logger.Logger) (*S3Target, error) {
	switch lower := strings.ToLower(cfg.Endpoint); {
	case strings.HasPrefix(lower, "https://"):
		cfg.UseSSL = true
	case strings.HasPrefix(lower, "http://"):
		cfg.UseSSL = false
	}
	cfg.Endpoint = sanitizeEndpoint(cfg.Endpoint)
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")
	if log == nil {
		log = logger.NewDiscardLogger()
	}

	t := &S3Target{config: cfg, log: log}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, errors.New(err).
			Component("backup").
			Category(errors.CategoryConfiguration).
			Context("target", TypeS3).
			Build()
	}
	t.client = client
	return t, nil
}

// NewS3TargetFromMap reads endpoint, bucket, access_key, secret_key,
// region, prefix and use_ssl.
func NewS3TargetFromMap(settings map[string]string, log logger.Logger) (*S3Target, error) {
	p := NewSettingsParser(TypeS3, settings)
	cfg := S3TargetConfig{
		Endpoint:  p.RequireString("endpoint"),
		Bucket:    p.RequireString("bucket"),
		AccessKey: p.RequireString("access_key"),
		SecretKey: p.RequireString("secret_key"),
		Region:    p.OptionalString("region", ""),
		Prefix:    p.OptionalPath("prefix", "trolltrack"),
		UseSSL:    p.OptionalBool("use_ssl", true),
	}
	if err := p.Error(); err != nil {
		return nil, err
	}
	return NewS3Target(cfg, log)
}

func (t *S3Target) Name() string { return TypeS3 }

func (t *S3Target) Validate() error {
	var problems []string
	if t.config.Endpoint == "" {
		problems = append(problems, "endpoint is required")
	}
	if t.config.Bucket == "" {
		problems = append(problems, "bucket is required")
	}
	if t.config.AccessKey == "" || t.config.SecretKey == "" {
		problems = append(problems, "access_key and secret_key are required")
	}
	if len(problems) > 0 {
		return errors.Newf("s3: %s", strings.Join(problems, "; ")).
			Component("backup").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

func (t *S3Target) key(name string) string {
	return remotePath(t.config.Prefix, name)
}

func (t *S3Target) ensureBucket(ctx context.Context) error {
	exists, err := t.client.BucketExists(ctx, t.config.Bucket)
	if err == nil && exists {
		return nil
	}
	err = t.client.MakeBucket(ctx, t.config.Bucket, minio.MakeBucketOptions{Region: t.config.Region})
	if err != nil && minio.ToErrorResponse(err).Code != "BucketAlreadyOwnedByYou" {
		return targetError(err, t.Name(), "make_bucket")
	}
	return nil
}

// Store uploads the file and then its metadata object.
func (t *S3Target) Store(ctx context.Context, sourcePath string, meta *backup.Metadata) error {
	data, err := encodeMetadata(meta)
	if err != nil {
		return targetError(err, t.Name(), "encode_metadata")
	}
	if err := t.ensureBucket(ctx); err != nil {
		return err
	}

	objectKey := t.key(meta.FileName)
	_, err = t.client.FPutObject(ctx, t.config.Bucket, objectKey, sourcePath, minio.PutObjectOptions{
		ContentType: "application/vnd.sqlite3",
		UserMetadata: map[string]string{
			"backup-id": meta.ID,
			"sha256":    meta.Checksum,
		},
	})
	if err != nil {
		return targetError(err, t.Name(), "upload")
	}

	_, err = t.client.PutObject(ctx, t.config.Bucket, backup.MetadataName(objectKey),
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		_ = t.client.RemoveObject(ctx, t.config.Bucket, objectKey, minio.RemoveObjectOptions{})
		return targetError(err, t.Name(), "upload_metadata")
	}

	t.log.Debug("backup uploaded",
		logger.String("target", t.Name()),
		logger.String("bucket", t.config.Bucket),
		logger.String("key", objectKey))
	return nil
}

// List reads every metadata object under the prefix.
func (t *S3Target) List(ctx context.Context) ([]backup.BackupInfo, error) {
	prefix := t.config.Prefix
	if prefix != "" {
		prefix += "/"
	}

	var infos []backup.BackupInfo
	for obj := range t.client.ListObjects(ctx, t.config.Bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			if minio.ToErrorResponse(obj.Err).Code == "NoSuchBucket" {
				return nil, nil
			}
			return nil, targetError(obj.Err, t.Name(), "list")
		}
		if !backup.IsMetadataName(obj.Key) {
			continue
		}
		info, err := t.readMetadata(ctx, obj.Key)
		if err != nil {
			t.log.Warn("skipping unreadable backup metadata", logger.String("key", obj.Key), logger.Error(err))
			continue
		}
		infos = append(infos, info)
	}
	backup.SortNewestFirst(infos)
	return infos, nil
}

func (t *S3Target) readMetadata(ctx context.Context, key string) (backup.BackupInfo, error) {
	obj, err := t.client.GetObject(ctx, t.config.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return backup.BackupInfo{}, err
	}
	defer obj.Close()
	data, err := io.ReadAll(io.LimitReader(obj, 1<<20))
	if err != nil {
		return backup.BackupInfo{}, err
	}
	return decodeMetadata(data, t.Name())
}

// Delete removes a backup and its metadata object.
func (t *S3Target) Delete(ctx context.Context, id string) error {
	infos, err := t.List(ctx)
	if err != nil {
		return err
	}
	info, ok := findByID(infos, id)
	if !ok {
		return notFound(t.Name(), id)
	}
	objectKey := t.key(info.FileName)
	if err := t.client.RemoveObject(ctx, t.config.Bucket, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return targetError(err, t.Name(), "delete")
	}
	if err := t.client.RemoveObject(ctx, t.config.Bucket, backup.MetadataName(objectKey), minio.RemoveObjectOptions{}); err != nil {
		return targetError(err, t.Name(), "delete_metadata")
	}
	return nil
}

// sanitizeEndpoint removes schemes and paths to satisfy minio.New.
func sanitizeEndpoint(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	host, _, _ := strings.Cut(raw, "/")
	return host
}
