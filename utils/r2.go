// utils/r2.go
package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"match-engine/services"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rotisserie/eris"
)

// R2Config holds the Cloudflare R2 credentials.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
}

// objectPutter is the slice of *s3.Client the archiver uses.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// R2Archiver uploads scorer sweep reports to an R2 bucket.
type R2Archiver struct {
	client objectPutter
	bucket string
	prefix string
}

func NewR2Archiver(ctx context.Context, c R2Config) (*R2Archiver, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.AccessKeyID, c.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, eris.Wrap(err, "failed to load R2 config")
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.AccountID)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
	return newArchiver(client, c.Bucket), nil
}

func newArchiver(client objectPutter, bucket string) *R2Archiver {
	return &R2Archiver{client: client, bucket: bucket, prefix: "scoring-runs"}
}

// ReportKey is the object key of a report, e.g. "scoring-runs/2025-03-01/<run-id>.json".
func (a *R2Archiver) ReportKey(r *services.SweepReport) string {
	return path.Join(a.prefix, r.StartedAt.UTC().Format("2006-01-02"), r.RunID+".json")
}

func (a *R2Archiver) Archive(ctx context.Context, r *services.SweepReport) error {
	body, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "encode sweep report")
	}
	key := a.ReportKey(r)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return eris.Wrapf(err, "failed to upload %s to R2", key)
	}
	return nil
}
