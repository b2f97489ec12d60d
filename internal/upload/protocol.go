package upload

import (
	"fmt"
	"strings"

	"bepview/internal/artifact"
	"bepview/internal/storage"
)

// Processing statuses reported by the ingest service. Anything not
// listed here is treated as still-in-progress and polled again.
const (
	StatusUploading  = "uploading"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

type initRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// initResponse covers both server generations: the presigned-POST form
// (url + fields), the older presigned-PUT form (upload_url), and the
// local-stack direct target.
type initResponse struct {
	FileID    string            `json:"file_id"`
	URL       string            `json:"url,omitempty"`
	UploadURL string            `json:"upload_url,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	ExpiresIn int               `json:"expires_in,omitempty"`
	Target    *storage.Target   `json:"target,omitempty"`
}

func (r *initResponse) validate() error {
	if strings.TrimSpace(r.FileID) == "" {
		return fmt.Errorf("init response is missing file_id")
	}
	return nil
}

func (r *initResponse) target() storage.Target {
	if r.Target != nil {
		return *r.Target
	}
	url := strings.TrimSpace(r.URL)
	if url == "" {
		url = strings.TrimSpace(r.UploadURL)
	}
	return storage.Target{URL: url, Fields: r.Fields}
}

type completeRequest struct {
	FileID string `json:"file_id"`
}

// statusResponse doubles as the body of both the completion notice reply
// and the poll endpoint.
type statusResponse struct {
	FileID           string `json:"file_id"`
	Status           string `json:"status"`
	OriginalFilename string `json:"original_filename,omitempty"`
	ErrorMessage     string `json:"error_message,omitempty"`
	Detail           string `json:"detail,omitempty"`
}

func (r *statusResponse) failureDetail() string {
	if strings.TrimSpace(r.ErrorMessage) != "" {
		return r.ErrorMessage
	}
	return r.Detail
}

type artifactsResponse struct {
	FileID           string `json:"file_id"`
	SummaryURL       string `json:"summary_url,omitempty"`
	GraphURL         string `json:"graph_url,omitempty"`
	ResourceUsageURL string `json:"resource_usage_url,omitempty"`
}

func (r *artifactsResponse) manifest() artifact.Manifest {
	locations := make(map[string]string, 3)
	if strings.TrimSpace(r.SummaryURL) != "" {
		locations[artifact.NameSummary] = r.SummaryURL
	}
	if strings.TrimSpace(r.GraphURL) != "" {
		locations[artifact.NameGraph] = r.GraphURL
	}
	if strings.TrimSpace(r.ResourceUsageURL) != "" {
		locations[artifact.NameResourceUsage] = r.ResourceUsageURL
	}
	return artifact.Manifest{FileID: r.FileID, Locations: locations}
}
