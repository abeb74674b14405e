// Package evidence stores task completion photos and their thumbnails.
package evidence

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/disintegration/imaging"

	"github.com/dukerupert/chorequest/internal/clock"
	"github.com/dukerupert/chorequest/internal/objectstore"
)

const (
	MaxUploadSize = 10 << 20
	ThumbWidth    = 320
)

var (
	ErrTooLarge = errors.New("photo exceeds 10 MiB")
	ErrNotImage = errors.New("only image uploads are accepted")
)

type Uploader struct {
	client    objectstore.Client
	bucket    string
	publicURL string
	clock     clock.Clock
	logger    *slog.Logger
}

func NewUploader(client objectstore.Client, bucket, publicURL string, clk clock.Clock, logger *slog.Logger) *Uploader {
	return &Uploader{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		clock:     clk,
		logger:    logger,
	}
}

// Upload stores the photo at {memberID}/{taskID}-{unixMillis}.{ext} and a
// JPEG thumbnail under thumbs/. A thumbnail failure only drops thumbURL.
func (u *Uploader) Upload(ctx context.Context, memberID, taskID int64, filename, contentType string, data []byte) (string, string, error) {
	if len(data) > MaxUploadSize {
		return "", "", ErrTooLarge
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", "", ErrNotImage
	}

	base := fmt.Sprintf("%d/%d-%d", memberID, taskID, u.clock.Now().UnixMilli())
	key := base + "." + extension(filename, contentType)

	if err := u.put(ctx, key, contentType, data); err != nil {
		return "", "", fmt.Errorf("upload photo: %w", err)
	}
	url := u.publicURL + "/" + key

	thumbKey := "thumbs/" + base + ".jpg"
	thumb, err := Thumbnail(data)
	if err != nil {
		u.logger.Warn("thumbnail failed", "key", key, "error", err)
		return url, "", nil
	}
	if err := u.put(ctx, thumbKey, "image/jpeg", thumb); err != nil {
		u.logger.Warn("thumbnail upload failed", "key", thumbKey, "error", err)
		return url, "", nil
	}
	return url, u.publicURL + "/" + thumbKey, nil
}

func (u *Uploader) put(ctx context.Context, key, contentType string, data []byte) error {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	return err
}

// Thumbnail decodes an image and re-encodes it as a ThumbWidth-wide JPEG.
func Thumbnail(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if img.Bounds().Dx() > ThumbWidth {
		img = imaging.Resize(img, ThumbWidth, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func extension(filename, contentType string) string {
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), "."); ext != "" {
		return ext
	}
	switch contentType {
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	}
	return "jpg"
}
