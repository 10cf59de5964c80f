package services

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	appConfig "github.com/kendall-kelly/appliance-repair-api/config"
	"github.com/kendall-kelly/appliance-repair-api/utils"
)

const presignExpiry = time.Hour

var allowedMediaTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"video/mp4":  ".mp4",
}

// MediaUpload is a storage key and the presigned URL the client uploads it to
type MediaUpload struct {
	Key       string    `json:"key"`
	UploadURL string    `json:"upload_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// MediaStorage resolves order media keys to URLs clients can use directly
type MediaStorage interface {
	PresignUpload(ctx context.Context, userID uint, contentType string, size int64) (*MediaUpload, error)
	PresignDownload(ctx context.Context, key string) (string, error)
}

// S3MediaService keeps order photos and videos in a private S3 bucket
type S3MediaService struct {
	presign *s3.PresignClient
	bucket  string
}

var mediaStorageInstance MediaStorage

// InitMediaService builds the S3 media storage from the application config
func InitMediaService(ctx context.Context, cfg *appConfig.Config) (MediaStorage, error) {
	awsConfig, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AWSAccessKeyID,
			cfg.AWSSecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	mediaStorageInstance = &S3MediaService{
		presign: s3.NewPresignClient(s3.NewFromConfig(awsConfig)),
		bucket:  cfg.AWSS3Bucket,
	}
	return mediaStorageInstance, nil
}

// GetMediaService returns the initialized media storage
func GetMediaService() MediaStorage {
	return mediaStorageInstance
}

// SetMediaService sets the media storage (primarily for testing)
func SetMediaService(storage MediaStorage) {
	mediaStorageInstance = storage
}

// MediaKey builds the object key for a new upload by userID
func MediaKey(userID uint, contentType string) (string, error) {
	ext, ok := allowedMediaTypes[strings.ToLower(contentType)]
	if !ok {
		return "", fmt.Errorf("unsupported media type %q", contentType)
	}
	return path.Join("orders", fmt.Sprintf("%d", userID), uuid.NewString()+ext), nil
}

// ValidMediaKey reports whether key was issued to userID by MediaKey
func ValidMediaKey(userID uint, key string) bool {
	prefix := path.Join("orders", fmt.Sprintf("%d", userID)) + "/"
	return strings.HasPrefix(key, prefix) && path.Clean(key) == key
}

// PresignUpload issues a key and a presigned PUT URL valid for one hour. The
// URL is signed for the declared size, so S3 rejects any other body.
func (s *S3MediaService) PresignUpload(ctx context.Context, userID uint, contentType string, size int64) (*MediaUpload, error) {
	if err := utils.ValidateMedia(contentType, size); err != nil {
		return nil, err
	}
	key, err := MediaKey(userID, contentType)
	if err != nil {
		return nil, err
	}

	request, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}

	return &MediaUpload{Key: key, UploadURL: request.URL, ExpiresAt: time.Now().Add(presignExpiry)}, nil
}

// PresignDownload generates a presigned GET URL valid for one hour
func (s *S3MediaService) PresignDownload(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}

	request, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return request.URL, nil
}

// ResolveMediaURLs presigns every key. Keys that fail are skipped so one
// broken object does not hide the order.
func ResolveMediaURLs(ctx context.Context, storage MediaStorage, keys []string) []string {
	urls := make([]string, 0, len(keys))
	if storage == nil {
		return urls
	}
	for _, key := range keys {
		url, err := storage.PresignDownload(ctx, key)
		if err != nil || url == "" {
			continue
		}
		urls = append(urls, url)
	}
	return urls
}
