// Package miniostorage provides structure to work with minio-storage
package miniostorage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log"

	"github.com/UnendingLoop/ScanDesk/internal/model"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Options struct {
	Addr   string
	User   string
	Pass   string
	Bucket string
}

type MinioPageStorage struct {
	bucket string
	client *minio.Client
}

func NewMinioClient(opts Options) (*MinioPageStorage, error) {
	bucket := opts.Bucket
	if bucket == "" {
		bucket = "default"
		log.Printf("Bucket name is empty. Using default value %q...", bucket)
	}

	// подключаемся к минио - создаем клиента
	strg, err := minio.New(opts.Addr+":9000", &minio.Options{
		Creds:  credentials.NewStaticV4(opts.User, opts.Pass, ""),
		Secure: false,
	})
	if err != nil {
		return nil, err
	}

	// создаем бакет если его нет
	if err := ensureBucket(context.Background(), strg, bucket); err != nil {
		log.Println("Failed to create bucket in MinIO:", err)
		return nil, err
	}

	return &MinioPageStorage{bucket: bucket, client: strg}, nil
}

func (s *MinioPageStorage) Put(ctx context.Context, key string, size int64, contentType string, r io.Reader) error {
	if r == nil {
		return errors.New("nil reader passed to storage.Put")
	}

	if _, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return err
	}

	return nil
}

// PutContent stores data under its content address and returns the key. Identical pages share one
// object, so a page that is already stored is not uploaded again.
func (s *MinioPageStorage) PutContent(ctx context.Context, prefix string, data []byte, contentType string) (string, error) {
	key, _, err := s.StoreContent(ctx, prefix, data, contentType)
	return key, err
}

// StoreContent is PutContent that also reports whether the object was created by this call.
// Only created objects may be removed when the caller rolls back.
func (s *MinioPageStorage) StoreContent(ctx context.Context, prefix string, data []byte, contentType string) (string, bool, error) {
	key := ContentKey(prefix, data, contentType)

	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err == nil {
		return key, false, nil
	} else if minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return "", false, err
	}

	if err := s.Put(ctx, key, int64(len(data)), contentType, bytes.NewReader(data)); err != nil {
		return "", false, err
	}
	return key, true, nil
}

func (s *MinioPageStorage) Delete(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

func (s *MinioPageStorage) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	res, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", err
	}

	resStat, err := res.Stat()
	if err != nil {
		if closeErr := res.Close(); closeErr != nil {
			log.Println("Failed to close minio object after failed stat:", closeErr)
		}
		return nil, "", err
	}

	return res, resStat.ContentType, nil
}

// ContentKey is prefix + sha256 of data + the file extension of contentType.
func ContentKey(prefix string, data []byte, contentType string) string {
	sum := sha256.Sum256(data)
	return prefix + hex.EncodeToString(sum[:]) + model.GetImageFileExt[contentType]
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}

	if exists {
		return nil
	}

	return client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
}
