package services

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/yeremiapane/qr-restaurant/models"
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3ReceiptArchiver uploads receipts as JSON documents under receipts/<date>/.
type S3ReceiptArchiver struct {
	client objectPutter
	bucket string
}

func NewS3ReceiptArchiver(ctx context.Context, region, accessKey, secretKey, bucket string) (*S3ReceiptArchiver, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3ReceiptArchiver{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

// ReceiptObjectKey is where a receipt lands in the bucket.
func ReceiptObjectKey(r *models.Receipt) string {
	return fmt.Sprintf("receipts/%s/%s.json", r.GeneratedAt.Format("2006/01/02"), r.ReceiptNumber)
}

func (a *S3ReceiptArchiver) Archive(ctx context.Context, receipt *models.Receipt) error {
	body, err := receiptDocument(receipt)
	if err != nil {
		return err
	}
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(ReceiptObjectKey(receipt)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put receipt %s: %w", receipt.ReceiptNumber, err)
	}
	return nil
}
