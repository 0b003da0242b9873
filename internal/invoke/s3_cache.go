package invoke

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client the cache reads with.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Uploader is the subset of manager.Uploader the cache writes with.
type Uploader interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Cache stores one object per fingerprint:
//
//	s3://<bucket>/<prefix>/<fingerprint[0:2]>/<fingerprint>.txt
type S3Cache struct {
	bucket   string
	prefix   string
	client   S3API
	uploader Uploader
}

// NewS3Cache builds a cache from the default AWS credential chain
// (AWS_REGION, AWS_PROFILE, AWS_ACCESS_KEY_ID, ...).
func NewS3Cache(ctx context.Context, bucket string, prefix string) (*S3Cache, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket required")
	}
	cfg, err := awsConfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return NewS3CacheWithClient(bucket, prefix, client, manager.NewUploader(client)), nil
}

func NewS3CacheWithClient(bucket string, prefix string, client S3API, uploader Uploader) *S3Cache {
	return &S3Cache{
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		client:   client,
		uploader: uploader,
	}
}

func (c *S3Cache) key(fingerprint string) string {
	shard := fingerprint
	if len(shard) > 2 {
		shard = shard[:2]
	}
	return path.Join(c.prefix, shard, fingerprint+".txt")
}

func (c *S3Cache) Get(ctx context.Context, fingerprint string) (string, bool, error) {
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.key(fingerprint)),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if stderrors.As(err, &nsk) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("s3 get: %w", err)
	}
	defer out.Body.Close()

	b, err := io.ReadAll(out.Body)
	if err != nil {
		return "", false, fmt.Errorf("s3 read: %w", err)
	}
	return string(b), true, nil
}

func (c *S3Cache) Put(ctx context.Context, fingerprint string, response string) error {
	_, err := c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(c.bucket),
		Key:                  aws.String(c.key(fingerprint)),
		Body:                 strings.NewReader(response),
		ContentType:          aws.String("text/plain; charset=utf-8"),
		ServerSideEncryption: s3types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return fmt.Errorf("s3 upload failed: %w", err)
	}
	return nil
}
