// Package storage writes raw artifact bytes to the one-time upload
// destination issued by the ingest service. Three target shapes exist in
// the wild: a presigned PUT URL, a presigned POST with form fields, and
// (for a local stack) direct S3/MinIO coordinates.
package storage

import (
	"context"
	"fmt"
	"strings"

	"bepview/internal/transport"
)

// Target is the write destination returned by upload init. It is valid
// for a single upload and never reused.
type Target struct {
	// Presigned URL forms.
	URL    string            `json:"url,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`

	// Direct S3 form, only populated for local/dev stacks.
	Endpoint  string `json:"endpoint,omitempty"`
	Region    string `json:"region,omitempty"`
	Bucket    string `json:"bucket,omitempty"`
	Key       string `json:"key,omitempty"`
	AccessKey string `json:"access_key,omitempty"`
	SecretKey string `json:"secret_key,omitempty"`
	UseSSL    bool   `json:"use_ssl,omitempty"`
}

// Kind reports which upload mechanism the target selects.
type Kind int

const (
	KindUnknown Kind = iota
	KindPresignedPut
	KindPresignedPost
	KindS3Direct
)

func (t Target) Kind() Kind {
	switch {
	case strings.TrimSpace(t.Bucket) != "" && strings.TrimSpace(t.Key) != "":
		return KindS3Direct
	case len(t.Fields) > 0 && strings.TrimSpace(t.URL) != "":
		return KindPresignedPost
	case strings.TrimSpace(t.URL) != "":
		return KindPresignedPut
	default:
		return KindUnknown
	}
}

// Upload dispatches the file bytes to the target using whichever
// mechanism it specifies.
func Upload(ctx context.Context, tc *transport.Client, target Target, filename, contentType string, data []byte) error {
	switch target.Kind() {
	case KindPresignedPut:
		return tc.PutBytes(ctx, target.URL, contentType, data)
	case KindPresignedPost:
		return postForm(ctx, tc, target, filename, contentType, data)
	case KindS3Direct:
		up, err := NewS3Uploader(S3Config{
			Endpoint:  target.Endpoint,
			Region:    target.Region,
			AccessKey: target.AccessKey,
			SecretKey: target.SecretKey,
			Bucket:    target.Bucket,
			UseSSL:    target.UseSSL,
		})
		if err != nil {
			return err
		}
		return up.Put(ctx, target.Key, contentType, data)
	default:
		return fmt.Errorf("upload target specifies no destination")
	}
}
