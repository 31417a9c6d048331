package bier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gocarina/gocsv"
	"github.com/sirupsen/logrus"
)

// S3API is the slice of the S3 client the store depends on, narrow enough to
// mock in tests.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Interface for object storage used by the feed scripts.
type ObjectStore interface {
	Upload(key string, body []byte, contentType string, public bool) error
	UploadJSON(key string, v interface{}, public bool) error
	UploadCSV(key string, records interface{}, public bool) error
	Download(key string) ([]byte, error)
	DownloadJSON(key string, v interface{}) error
	List(prefix string) ([]string, error)
}

// S3Config holds the connection settings for an S3-compatible object store.
type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
}

// S3Store reads and writes bucket objects with a small fixed retry budget.
// Missing keys are returned immediately, everything else is retried.
type S3Store struct {
	s3         S3API
	bucketName string
	policy     RetryPolicy
}

func NewS3Store(cfg S3Config) (*S3Store, error) {
	if cfg.Endpoint == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("object store config: %w", ErrMissingConfig)
	}

	awsCfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("loading object store config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		// The provincial object store does not route virtual-host buckets.
		o.UsePathStyle = true
	})

	return NewS3StoreWithClient(cfg.Bucket, client), nil
}

func NewS3StoreWithClient(bucketName string, s3Client S3API) *S3Store {
	policy := DefaultStorePolicy()
	policy.Retryable = func(err error) bool {
		var nsk *types.NoSuchKey
		return !errors.As(err, &nsk)
	}
	return &S3Store{
		s3:         s3Client,
		bucketName: bucketName,
		policy:     policy,
	}
}

// Upload writes body to the bucket. Public uploads carry a public-read ACL
// so the object is servable directly from the bucket URL.
func (s *S3Store) Upload(key string, body []byte, contentType string, public bool) error {
	return s.withRetry("upload", key, func() error {
		input := &s3.PutObjectInput{
			Bucket:      aws.String(s.bucketName),
			Key:         aws.String(key),
			Body:        bytes.NewReader(body),
			ContentType: aws.String(contentType),
		}
		if public {
			input.ACL = types.ObjectCannedACLPublicRead
		}
		_, err := s.s3.PutObject(context.TODO(), input)
		return err
	})
}

func (s *S3Store) UploadJSON(key string, v interface{}, public bool) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return s.Upload(key, data, "application/json", public)
}

func (s *S3Store) UploadCSV(key string, records interface{}, public bool) error {
	data, err := gocsv.MarshalBytes(records)
	if err != nil {
		return fmt.Errorf("marshaling csv for %s: %w", key, err)
	}
	return s.Upload(key, data, "text/csv", public)
}

func (s *S3Store) Download(key string) ([]byte, error) {
	var data []byte
	err := s.withRetry("download", key, func() error {
		resp, err := s.s3.GetObject(context.TODO(), &s3.GetObjectInput{
			Bucket: aws.String(s.bucketName),
			Key:    aws.String(key),
		})
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *S3Store) DownloadJSON(key string, v interface{}) error {
	data, err := s.Download(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}

// List returns all keys under prefix.
func (s *S3Store) List(prefix string) ([]string, error) {
	var keys []string
	err := s.withRetry("list", prefix, func() error {
		keys = keys[:0]
		var token *string
		for {
			resp, err := s.s3.ListObjectsV2(context.TODO(), &s3.ListObjectsV2Input{
				Bucket:            aws.String(s.bucketName),
				Prefix:            aws.String(prefix),
				ContinuationToken: token,
			})
			if err != nil {
				return err
			}
			for _, obj := range resp.Contents {
				keys = append(keys, aws.ToString(obj.Key))
			}
			if resp.IsTruncated == nil || !*resp.IsTruncated {
				return nil
			}
			token = resp.NextContinuationToken
		}
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// withRetry runs fn under the store retry policy and wraps exhaustion in a
// StoreError carrying the number of attempts actually made.
func (s *S3Store) withRetry(op, key string, fn func() error) error {
	attempts := 0
	err := s.policy.Do(func() error {
		attempts++
		return fn()
	}, func(attempt int, err error) {
		logrus.Warnf("Attempt %d to %s %s failed: %s", attempt, op, key, err.Error())
	})
	if err != nil {
		return &StoreError{Op: op, Path: key, Attempts: attempts, Err: err}
	}
	return nil
}
