package domain

import "time"

type UploadStatus string

const (
	UploadStatusUploaded  UploadStatus = "uploaded"
	UploadStatusDuplicate UploadStatus = "duplicate"
	UploadStatusFailed    UploadStatus = "failed"
)

// Document is an uploaded PDF as the backend knows it. The document code is
// the identity key; everything else is immutable after upload except the
// upload status.
type Document struct {
	Code         string
	Filename     string
	SizeBytes    int64
	PageCount    int
	UploadStatus UploadStatus
	UploadedAt   time.Time
}

// SensitiveField is one detected region reported by the processing service.
type SensitiveField struct {
	Page   int    `json:"page"`
	Type   string `json:"type"`
	Value  string `json:"value"`
	Method string `json:"method"`
}

// Preview carries the artifact URLs for the side-by-side preview pane.
type Preview struct {
	OriginalURL  string `json:"original_url"`
	ProcessedURL string `json:"processed_url"`
}

// JobDetail is the processed-document detail fetched once a job completes.
type JobDetail struct {
	Status          JobStatus        `json:"status"`
	SensitiveFields []SensitiveField `json:"sensitive_fields"`
	TotalFields     int              `json:"total_fields"`
	ProcessedFields int              `json:"processed_fields"`
	FailedFields    int              `json:"failed_fields"`
}
