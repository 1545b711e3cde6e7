//go:build integration
// +build integration

package blob

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestS3ClientIntegration exercises the client against a real S3-compatible
// service (Localstack or MinIO).
//
// Prerequisites:
//   - Localstack running on localhost:4566 (or BLOB_TEST_ENDPOINT set)
//   - Run with: go test -tags=integration ./internal/blob/...
func TestS3ClientIntegration(t *testing.T) {
	ctx := context.Background()

	endpoint := os.Getenv("BLOB_TEST_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:4566"
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	require.NoError(t, err)

	awsClient := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	bucket := "blobdrive-test-bucket"
	_, err = awsClient.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	require.NoError(t, err)

	client, err := NewS3Client(ctx, S3Config{Client: awsClient, Bucket: bucket}, zap.NewNop())
	require.NoError(t, err)

	ref, err := client.Create(ctx, "a.txt", "text/plain", []byte("hello"))
	require.NoError(t, err)

	rc, err := client.Stream(ctx, ref)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	require.Equal(t, "hello", string(data))

	require.NoError(t, client.Rename(ctx, ref, "b.txt"))
	require.NoError(t, client.UpdateContent(ctx, ref, []byte("updated")))

	// Trash moves the object between key prefixes; it stays streamable.
	require.NoError(t, client.Trash(ctx, ref))
	rc, err = client.Stream(ctx, ref)
	require.NoError(t, err)
	data, _ = io.ReadAll(rc)
	rc.Close()
	require.Equal(t, "updated", string(data))

	// Trash is idempotent once the object sits under the trash prefix.
	require.NoError(t, client.Trash(ctx, ref))

	trashed, err := client.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, trashed, 1)
	require.Equal(t, ref, trashed[0].Ref)

	require.NoError(t, client.Untrash(ctx, ref))
	active, err := client.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, active, 1)

	quota, err := client.Quota(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), quota.ObjectCount)
	require.Equal(t, int64(len("updated")), quota.UsedBytes)

	require.NoError(t, client.Delete(ctx, ref))
	_, err = client.Stream(ctx, ref)
	require.ErrorIs(t, err, ErrNotFound)

	// Delete twice is fine.
	require.NoError(t, client.Delete(ctx, ref))
}
