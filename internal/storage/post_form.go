package storage

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"

	"bepview/internal/transport"
)

// postForm performs the S3 presigned-POST dance: every field from the
// policy document first, the file part last. S3 ignores anything after
// the file part, so ordering matters.
func postForm(ctx context.Context, tc *transport.Client, target Target, filename, contentType string, data []byte) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for name, value := range target.Fields {
		if err := w.WriteField(name, value); err != nil {
			return err
		}
	}
	if contentType != "" {
		if _, ok := target.Fields["Content-Type"]; !ok {
			if err := w.WriteField("Content-Type", contentType); err != nil {
				return err
			}
		}
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := tc.Do(req)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}
