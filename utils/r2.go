// utils/r2.go
package utils

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gosimple/slug"
)

// ObjectPutter is the slice of the S3 API the archive needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// R2Archive stores raw IPN payloads in a Cloudflare R2 bucket.
type R2Archive struct {
	client ObjectPutter
	bucket string
}

func NewR2Archive(client ObjectPutter, bucket string) *R2Archive {
	return &R2Archive{client: client, bucket: bucket}
}

// InitR2 builds an S3 client pointed at the account's R2 endpoint.
func InitR2(accountID, accessKeyID, accessKeySecret, bucket string) (*R2Archive, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID, accessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID))
	})
	return NewR2Archive(client, bucket), nil
}

// ArchiveKey builds "ipn/2026/03/lifai-123-finished-<id>.json".
func ArchiveKey(receivedAt time.Time, orderID, paymentStatus, eventID string) string {
	return fmt.Sprintf("ipn/%s/%s-%s-%s.json",
		receivedAt.UTC().Format("2006/01"),
		slug.Make(orderID),
		slug.Make(paymentStatus),
		eventID,
	)
}

// Archive uploads body under key.
func (a *R2Archive) Archive(ctx context.Context, key string, body []byte) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to R2: %w", err)
	}
	return nil
}
