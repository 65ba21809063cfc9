// Package storage caches downloadable movie artwork in S3 compatible
// object storage (MinIO in development).
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/cineflix/cineflix/internal/config"
)

// ArtworkPrefix is the key prefix of every cached object
const ArtworkPrefix = "artwork/"

// deleteBatchSize is the S3 DeleteObjects limit
const deleteBatchSize = 1000

// s3API is the subset of the S3 client the store uses
type s3API interface {
	s3.ListObjectsV2APIClient
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

type presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Object is a cached object as listed from the bucket
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ArtworkStore handles S3/MinIO operations for the artwork cache
type ArtworkStore struct {
	client             s3API
	presign            presigner
	bucket             string
	presignedURLExpiry time.Duration
}

// NewArtworkStore creates a new artwork store with an S3/MinIO client
func NewArtworkStore(cfg *config.StorageConfig) (*ArtworkStore, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("storage endpoint not configured")
	}

	// Build endpoint URL - handle case where endpoint already includes protocol
	var endpointURL string
	if strings.HasPrefix(cfg.Endpoint, "http://") || strings.HasPrefix(cfg.Endpoint, "https://") {
		endpointURL = cfg.Endpoint
	} else {
		protocol := "http"
		if cfg.UseSSL {
			protocol = "https"
		}
		endpointURL = protocol + "://" + cfg.Endpoint
	}

	client := s3.New(s3.Options{
		Region: cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
		BaseEndpoint: aws.String(endpointURL),
		UsePathStyle: true, // Required for MinIO
	})

	return newArtworkStore(client, s3.NewPresignClient(client), cfg.Bucket, cfg.PresignedURLExpiry), nil
}

func newArtworkStore(client s3API, presign presigner, bucket string, expiry time.Duration) *ArtworkStore {
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &ArtworkStore{
		client:             client,
		presign:            presign,
		bucket:             bucket,
		presignedURLExpiry: expiry,
	}
}

// Key returns the object key of a movie's artwork file
func (s *ArtworkStore) Key(movieID int64, fileName string) string {
	return ArtworkPrefix + strconv.FormatInt(movieID, 10) + "/" + strings.TrimPrefix(fileName, "/")
}

// Exists reports whether key is present in the bucket
func (s *ArtworkStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, fmt.Errorf("failed to head object %s: %w", key, err)
}

// Put stores data under key
func (s *ArtworkStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "image/jpeg"
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		CacheControl:  aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

// PresignGet returns a time-limited URL that downloads key as fileName
func (s *ArtworkStore) PresignGet(ctx context.Context, key, fileName string) (string, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if fileName != "" {
		input.ResponseContentDisposition = aws.String(mime.FormatMediaType("attachment", map[string]string{"filename": fileName}))
	}

	req, err := s.presign.PresignGetObject(ctx, input, s3.WithPresignExpires(s.presignedURLExpiry))
	if err != nil {
		return "", fmt.Errorf("failed to generate pre-signed URL: %w", err)
	}
	return req.URL, nil
}

// PresignedURLExpiry returns how long presigned URLs stay valid
func (s *ArtworkStore) PresignedURLExpiry() time.Duration {
	return s.presignedURLExpiry
}

// ListOlderThan lists cached objects last modified before cutoff. It also
// returns how many objects were scanned.
func (s *ArtworkStore) ListOlderThan(ctx context.Context, cutoff time.Time) ([]Object, int, error) {
	var (
		objects []Object
		scanned int
	)

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(ArtworkPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return objects, scanned, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			scanned++
			if obj.Key == nil {
				continue
			}
			modified := aws.ToTime(obj.LastModified)
			if !modified.Before(cutoff) {
				continue
			}
			objects = append(objects, Object{
				Key:          *obj.Key,
				Size:         aws.ToInt64(obj.Size),
				LastModified: modified,
			})
		}
	}
	return objects, scanned, nil
}

// DeleteByKeys deletes objects in batches and returns how many were deleted
// along with the per-key failures reported by the bucket
func (s *ArtworkStore) DeleteByKeys(ctx context.Context, keys []string) (int, []string, error) {
	var (
		deleted  int
		failures []string
	)

	for i := 0; i < len(keys); i += deleteBatchSize {
		end := min(i+deleteBatchSize, len(keys))

		ids := make([]types.ObjectIdentifier, 0, end-i)
		for _, key := range keys[i:end] {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(key)})
		}

		output, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{
				Objects: ids,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return deleted, failures, fmt.Errorf("failed to delete objects: %w", err)
		}

		deleted += len(ids) - len(output.Errors)
		for _, e := range output.Errors {
			failures = append(failures, fmt.Sprintf("%s: %s", aws.ToString(e.Key), aws.ToString(e.Message)))
		}
	}
	return deleted, failures, nil
}
