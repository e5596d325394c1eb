package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

// DirectImageURL turns a stored photo reference into a URL usable inside a
// flex card image component. References may be a bare Drive file id, a Drive
// viewer link, or already a direct URL; anything unusable falls back to the
// configured placeholder.
func DirectImageURL(ref, fallback string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return fallback
	}

	if id := driveFileID(ref); id != "" {
		return "https://drive.google.com/thumbnail?id=" + id + "&sz=w500"
	}

	if strings.HasPrefix(ref, "https://") {
		return ref
	}
	return fallback
}

// driveFileID extracts the file id from the Drive reference shapes that occur
// in legacy photo columns: a viewer link, an open?id= link, or a bare id.
func driveFileID(ref string) string {
	if idx := strings.Index(ref, "/file/d/"); idx >= 0 {
		rest := ref[idx+len("/file/d/"):]
		if end := strings.IndexAny(rest, "/?"); end >= 0 {
			rest = rest[:end]
		}
		return rest
	}
	if idx := strings.Index(ref, "open?id="); idx >= 0 {
		rest := ref[idx+len("open?id="):]
		if end := strings.IndexAny(rest, "&"); end >= 0 {
			rest = rest[:end]
		}
		return rest
	}
	if !strings.Contains(ref, "/") && !strings.Contains(ref, ".") && len(ref) >= 20 {
		return ref
	}
	return ""
}

// getGoogleClient initializes a Google Cloud Storage client. Prefer ADC
// (service account / GOOGLE_APPLICATION_CREDENTIALS); GCS_CREDENTIALS_JSON
// provides explicit JSON for local runs.
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

const photoMaxWidth = 800

// StoreItemPhoto resizes raw image bytes to card width and uploads them under
// a fresh object key, returning the public access URL to store as the item's
// photo reference.
func StoreItemPhoto(ctx context.Context, data []byte) (string, error) {
	bucketName := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if bucketName == "" {
		return "", errors.New("GCS_BUCKET is required")
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decoding photo: %w", err)
	}
	if img.Bounds().Dx() > photoMaxWidth {
		img = imaging.Resize(img, photoMaxWidth, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG); err != nil {
		return "", fmt.Errorf("encoding photo: %w", err)
	}

	client, err := getGoogleClient(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	objectKey := "items/" + uuid.New().String() + ".jpg"
	wc := client.Bucket(bucketName).Object(objectKey).NewWriter(ctx)
	wc.ContentType = "image/jpeg"
	wc.Metadata = map[string]string{
		"x-goog-acl": "public-read",
	}
	if _, err := wc.Write(buf.Bytes()); err != nil {
		return "", fmt.Errorf("uploading photo: %w", err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("closing photo writer: %w", err)
	}

	return "https://storage.googleapis.com/" + bucketName + "/" + objectKey, nil
}

// UploadBytesToGCS writes arbitrary bytes to an object. Used by the inventory
// export to publish generated workbooks.
func UploadBytesToGCS(ctx context.Context, objectName string, data []byte, contentType string) error {
	bucketName := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if bucketName == "" {
		return errors.New("GCS_BUCKET is required")
	}

	client, err := getGoogleClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	wc := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := wc.Write(data); err != nil {
		return fmt.Errorf("failed to upload bytes to Google Cloud Storage: %v", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %v", err)
	}
	return nil
}
