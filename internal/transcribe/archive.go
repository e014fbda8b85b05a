package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// GCSArchiver stores raw voice messages in a Cloud Storage bucket.
type GCSArchiver struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSArchiver creates an archiver writing to gs://bucket/prefix/...
func NewGCSArchiver(client *storage.Client, bucket, prefix string) *GCSArchiver {
	return &GCSArchiver{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

// ObjectName returns the object path used for name.
func (a *GCSArchiver) ObjectName(name string) string {
	if a.prefix == "" {
		return name
	}
	return a.prefix + "/" + name
}

// Archive implements Archiver.
func (a *GCSArchiver) Archive(ctx context.Context, name, contentType string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	objectName := a.ObjectName(name)

	w := a.client.Bucket(a.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType
	defer func() {
		// Ensure the writer is closed even on early returns
		_ = w.Close()
	}()

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("copy audio to GCS writer: %w", err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload of gs://%s/%s: %w", a.bucket, objectName, err)
	}

	return nil
}
