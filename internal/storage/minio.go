// Package storage stages source documents and extraction artifacts in an
// S3-compatible bucket the analysis backend reads from.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/expenselens/invoice-extract-service/internal/models"
)

var Client *minio.Client
var BucketName string
var Prefix string

// Init builds the object storage client. Endpoint and credentials come from
// MINIO_* environment variables, falling back to the standard AWS variables
// so the same credentials serve both the bucket and the analysis backend.
func Init(cfg models.BackendConfig) error {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "s3.amazonaws.com"
	}

	accessKey := os.Getenv("MINIO_ACCESS_KEY")
	if accessKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
	}

	secretKey := os.Getenv("MINIO_SECRET_KEY")
	if secretKey == "" {
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}

	BucketName = os.Getenv("MINIO_BUCKET")
	if BucketName == "" {
		BucketName = cfg.Bucket
	}
	if BucketName == "" {
		return fmt.Errorf("no bucket configured")
	}

	Prefix = cfg.Prefix

	useSSL := os.Getenv("MINIO_USE_SSL") != "false"

	var err error
	Client, err = minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return fmt.Errorf("failed to create storage client: %w", err)
	}

	// Verify bucket exists
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := Client.BucketExists(ctx, BucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", BucketName)
	}

	return nil
}

// UploadSourceFile stages a source document under a uuid-prefixed key so
// repeated uploads of the same filename never collide. Returns the object
// key the analysis backend should read.
func UploadSourceFile(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	base := strings.ReplaceAll(filepath.Base(filename), " ", "_")
	key := fmt.Sprintf("%s%s-%s", Prefix, uuid.New().String()[:8], base)

	_, err := Client.PutObject(ctx, BucketName, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload source file: %w", err)
	}
	return key, nil
}

// SaveJSONArtifact persists an intermediate or final extraction result as a
// JSON object next to the source file.
func SaveJSONArtifact(ctx context.Context, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}

	_, err = Client.PutObject(ctx, BucketName, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to save artifact: %w", err)
	}
	return nil
}

// ArtifactKey derives an artifact object key from a source key:
// "invoices/ab12-doc.pdf" + "clean" -> "invoices/ab12-doc.clean.json".
func ArtifactKey(sourceKey, stage string) string {
	base := strings.TrimSuffix(sourceKey, filepath.Ext(sourceKey))
	return fmt.Sprintf("%s.%s.json", base, stage)
}

// GetPresignedURL generates a presigned URL for fetching an object.
func GetPresignedURL(ctx context.Context, key string) (string, error) {
	url, err := Client.PresignedGetObject(ctx, BucketName, key, 24*time.Hour, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return url.String(), nil
}

// DeleteObject removes an object from the bucket.
func DeleteObject(ctx context.Context, key string) error {
	return Client.RemoveObject(ctx, BucketName, key, minio.RemoveObjectOptions{})
}

// ContentTypeFor guesses a content type from a filename.
func ContentTypeFor(filename string) string {
	if ctype := mime.TypeByExtension(filepath.Ext(filename)); ctype != "" {
		return ctype
	}
	return "application/octet-stream"
}
