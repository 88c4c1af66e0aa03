/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"k8s.io/klog/v2"

	"github.com/nasa/harmony-core/pkg/config"
)

// DefaultTimeout bounds a single object operation, in seconds.
const DefaultTimeout = 180

var (
	once     sync.Once
	instance Interface
)

type s3Store struct {
	s3Client *s3.S3
}

// Instance returns the process-wide S3-backed store, initialized from the
// system config on first use.
func Instance() Interface {
	once.Do(func() {
		if instance != nil {
			return
		}
		store, err := NewS3Store()
		if err != nil {
			klog.ErrorS(err, "failed to init s3 object store")
			return
		}
		instance = store
	})
	return instance
}

// NewS3Store builds a store from the system S3 settings. A non-empty
// s3_endpoint (localstack, minio) overrides the AWS default.
func NewS3Store() (Interface, error) {
	awsConfig := aws.NewConfig().WithRegion(config.GetS3Region())
	if endpoint := config.GetS3Endpoint(); endpoint != "" {
		awsConfig = awsConfig.WithEndpoint(endpoint)
	}
	if config.IsS3ForcePathStyle() {
		awsConfig = awsConfig.WithS3ForcePathStyle(true)
	}
	newSession, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, err
	}
	return &s3Store{s3Client: s3.New(newSession)}, nil
}

func (s *s3Store) GetObject(ctx context.Context, objectURL string) ([]byte, error) {
	loc, err := ParseURL(objectURL)
	if err != nil {
		return nil, err
	}
	timeoutCtx, cancel := withOptionalTimeout(ctx, DefaultTimeout)
	defer cancel()

	resp, err := s.s3Client.GetObjectWithContext(timeoutCtx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", objectURL, err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (s *s3Store) PutObject(ctx context.Context, objectURL string, data []byte) error {
	loc, err := ParseURL(objectURL)
	if err != nil {
		return err
	}
	timeoutCtx, cancel := withOptionalTimeout(ctx, DefaultTimeout)
	defer cancel()

	if _, err = s.s3Client.PutObjectWithContext(timeoutCtx, &s3.PutObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
		Body:   bytes.NewReader(data),
	}); err != nil {
		return fmt.Errorf("failed to put %s: %w", objectURL, err)
	}
	return nil
}

func (s *s3Store) ObjectExists(ctx context.Context, objectURL string) (bool, error) {
	loc, err := ParseURL(objectURL)
	if err != nil {
		return false, err
	}
	timeoutCtx, cancel := withOptionalTimeout(ctx, DefaultTimeout)
	defer cancel()

	_, err = s.s3Client.HeadObjectWithContext(timeoutCtx, &s3.HeadObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok {
			switch aerr.Code() {
			case s3.ErrCodeNoSuchKey, "NotFound":
				return false, nil
			}
		}
		return false, err
	}
	return true, nil
}

func (s *s3Store) ListObjects(ctx context.Context, prefixURL string) ([]string, error) {
	loc, err := ParseURL(prefixURL)
	if err != nil {
		return nil, err
	}
	timeoutCtx, cancel := withOptionalTimeout(ctx, DefaultTimeout)
	defer cancel()

	var urls []string
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(loc.Bucket),
		Prefix: aws.String(loc.Key),
	}
	err = s.s3Client.ListObjectsV2PagesWithContext(timeoutCtx, input,
		func(page *s3.ListObjectsV2Output, _ bool) bool {
			for _, obj := range page.Contents {
				urls = append(urls, "s3://"+loc.Bucket+"/"+aws.StringValue(obj.Key))
			}
			return true
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefixURL, err)
	}
	return urls, nil
}

func withOptionalTimeout(parent context.Context, timeout int64) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return parent, func() {}
	}
	return context.WithTimeout(parent, time.Duration(timeout)*time.Second)
}
