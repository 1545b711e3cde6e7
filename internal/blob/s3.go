package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	activePrefix = "objects/"
	trashPrefix  = "trash/"

	metaDisplayName = "display-name"
)

// S3Client stores every object under an active or a trash key prefix; the
// trash transition is a server-side copy between the two. The display name
// and mime type live in object metadata so a rename never moves bytes
// between keys.
type S3Client struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	logger    *zap.Logger
}

type S3Config struct {
	Client    *s3.Client
	Bucket    string
	KeyPrefix string
}

func NewS3Client(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3Client, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	// The bucket must already exist; verify access up front.
	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return &S3Client{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		logger:    logger,
	}, nil
}

func (c *S3Client) activeKey(ref string) string {
	return c.keyPrefix + activePrefix + ref
}

func (c *S3Client) trashKey(ref string) string {
	return c.keyPrefix + trashPrefix + ref
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

func (c *S3Client) Create(ctx context.Context, name, mimeType string, data []byte) (string, error) {
	ref := uuid.NewString()

	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(c.activeKey(ref)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mimeType),
		Metadata:    map[string]string{metaDisplayName: name},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create object: %w", err)
	}

	return ref, nil
}

func (c *S3Client) UpdateContent(ctx context.Context, ref string, data []byte) error {
	head, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.activeKey(ref)),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("object %s: %w", ref, ErrNotFound)
		}
		return fmt.Errorf("failed to head object %s: %w", ref, err)
	}

	_, err = c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(c.activeKey(ref)),
		Body:        bytes.NewReader(data),
		ContentType: head.ContentType,
		Metadata:    head.Metadata,
	})
	if err != nil {
		return fmt.Errorf("failed to update object %s: %w", ref, err)
	}

	return nil
}

func (c *S3Client) Rename(ctx context.Context, ref, newName string) error {
	key := c.activeKey(ref)

	head, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("object %s: %w", ref, ErrNotFound)
		}
		return fmt.Errorf("failed to head object %s: %w", ref, err)
	}

	metadata := map[string]string{}
	for k, v := range head.Metadata {
		metadata[k] = v
	}
	metadata[metaDisplayName] = newName

	// Copy onto itself with replaced metadata; S3 has no metadata-only update.
	_, err = c.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:            aws.String(c.bucket),
		Key:               aws.String(key),
		CopySource:        aws.String(url.PathEscape(c.bucket + "/" + key)),
		ContentType:       head.ContentType,
		Metadata:          metadata,
		MetadataDirective: types.MetadataDirectiveReplace,
	})
	if err != nil {
		return fmt.Errorf("failed to rename object %s: %w", ref, err)
	}

	return nil
}

func (c *S3Client) move(ctx context.Context, ref, fromKey, toKey string) error {
	_, err := c.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(c.bucket),
		Key:        aws.String(toKey),
		CopySource: aws.String(url.PathEscape(c.bucket + "/" + fromKey)),
	})
	if err != nil {
		if isNotFound(err) {
			// Already moved; idempotent success when the target exists.
			_, headErr := c.client.HeadObject(ctx, &s3.HeadObjectInput{
				Bucket: aws.String(c.bucket),
				Key:    aws.String(toKey),
			})
			if headErr == nil {
				return nil
			}
			return fmt.Errorf("object %s: %w", ref, ErrNotFound)
		}
		return fmt.Errorf("failed to copy object %s: %w", ref, err)
	}

	_, err = c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(fromKey),
	})
	if err != nil {
		// The copy landed; losing the source delete leaves a duplicate key
		// that the next move will clean up.
		c.logger.Warn("failed to delete source key after move",
			zap.String("ref", ref),
			zap.String("key", fromKey),
			zap.Error(err))
	}

	return nil
}

func (c *S3Client) Trash(ctx context.Context, ref string) error {
	return c.move(ctx, ref, c.activeKey(ref), c.trashKey(ref))
}

func (c *S3Client) Untrash(ctx context.Context, ref string) error {
	return c.move(ctx, ref, c.trashKey(ref), c.activeKey(ref))
}

// Delete removes the object from both key spaces. DeleteObject is already
// idempotent on S3, so a missing key is not an error.
func (c *S3Client) Delete(ctx context.Context, ref string) error {
	for _, key := range []string{c.activeKey(ref), c.trashKey(ref)} {
		_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(c.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return fmt.Errorf("failed to delete object %s: %w", ref, err)
		}
	}
	return nil
}

func (c *S3Client) Stream(ctx context.Context, ref string) (io.ReadCloser, error) {
	result, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.activeKey(ref)),
	})
	if err == nil {
		return result.Body, nil
	}
	if !isNotFound(err) {
		return nil, fmt.Errorf("failed to get object %s: %w", ref, err)
	}

	// Trashed files are still streamable until permanently deleted.
	result, err = c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.trashKey(ref)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("object %s: %w", ref, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get object %s: %w", ref, err)
	}

	return result.Body, nil
}

func (c *S3Client) List(ctx context.Context, trashed bool) ([]ObjectInfo, error) {
	prefix := c.keyPrefix + activePrefix
	if trashed {
		prefix = c.keyPrefix + trashPrefix
	}

	var infos []ObjectInfo
	paginator := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}

		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			info := ObjectInfo{
				Ref:     (*obj.Key)[len(prefix):],
				Trashed: trashed,
			}
			if obj.Size != nil {
				info.SizeBytes = *obj.Size
			}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			infos = append(infos, info)
		}
	}

	return infos, nil
}

func (c *S3Client) Quota(ctx context.Context) (*QuotaInfo, error) {
	var quota QuotaInfo

	paginator := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(c.keyPrefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Size != nil {
				quota.UsedBytes += *obj.Size
			}
			quota.ObjectCount++
		}
	}

	return &quota, nil
}
