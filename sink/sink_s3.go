package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 uploads each export as one object. Keys keep S3 semantics: they are
// joined to the prefix as-is, without path cleaning.
type S3 struct {
	client s3API
	bucket string
	prefix string
}

func NewS3(client s3API, bucket, prefix string) (*S3, error) {
	if client == nil {
		return nil, errors.New("s3 client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("bucket is required")
	}
	return &S3{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

func (s *S3) Target() string { return "s3" }

// Key returns the object key req.Key is stored under.
func (s *S3) Key(key string) string {
	key = strings.TrimLeft(key, "/")
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

// Write uploads req. The object is served as an attachment named after
// the last key segment so browsers download it under the export name.
func (s *S3) Write(ctx context.Context, req WriteRequest) error {
	if strings.TrimLeft(req.Key, "/") == "" {
		return fmt.Errorf("empty key")
	}
	key := s.Key(req.Key)

	in := &s3.PutObjectInput{
		Bucket:             aws.String(s.bucket),
		Key:                aws.String(key),
		Body:               bytes.NewReader(req.Data),
		ContentLength:      aws.Int64(int64(len(req.Data))),
		ContentDisposition: aws.String(mime.FormatMediaType("attachment", map[string]string{"filename": path.Base(key)})),
	}
	if req.ContentType != "" {
		in.ContentType = aws.String(req.ContentType)
	}

	if _, err := s.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("put s3 object key=%q: %w", key, err)
	}
	return nil
}
