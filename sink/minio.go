package sink

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/minio/minio-go/v7"
)

// MinioAPI is the part of a MinIO client used to store datasets.
type MinioAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinioSink uploads datasets to an S3 compatible bucket. The bucket is
// created on the first write when it does not exist.
type MinioSink struct {
	Client MinioAPI
	Bucket string
	Region string

	mutex       sync.Mutex
	bucketReady bool
}

func (s *MinioSink) Name() string {
	return "minio"
}

func (s *MinioSink) Write(ctx context.Context, key string, data []byte) error {
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}

	_, err := s.Client.PutObject(ctx, s.Bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: GeoJSONContentType,
	})
	if err != nil {
		return errors.New("uploading object failed").
			WithType(ErrTypeWriteFailed).
			WithTag("sink", s.Name()).
			WithTag("bucket", s.Bucket).
			WithTag("key", key).
			Wrap(err)
	}
	return nil
}

func (s *MinioSink) ensureBucket(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.bucketReady {
		return nil
	}

	exists, err := s.Client.BucketExists(ctx, s.Bucket)
	if err != nil {
		return errors.New("checking bucket failed").
			WithType(ErrTypeWriteFailed).
			WithTag("bucket", s.Bucket).
			Wrap(err)
	}

	if !exists {
		if err := s.Client.MakeBucket(ctx, s.Bucket, minio.MakeBucketOptions{Region: s.Region}); err != nil {
			return errors.New("creating bucket failed").
				WithType(ErrTypeWriteFailed).
				WithTag("bucket", s.Bucket).
				Wrap(err)
		}
	}

	s.bucketReady = true
	return nil
}
