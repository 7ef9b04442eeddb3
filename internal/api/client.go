package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fadehq/redact-client/internal/domain"
)

type ClientConfig struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

// Client talks to the remote processing service over authenticated JSON
// requests. All job and document state is authoritative on the backend;
// the client never treats its own copies as source of truth.
type Client struct {
	baseURL    string
	token      string
	timeout    time.Duration
	maxRetries int
	httpClient *http.Client
}

func NewClient(config ClientConfig) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 2
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(strings.TrimSpace(config.BaseURL), "/"),
		token:      strings.TrimSpace(config.Token),
		timeout:    config.Timeout,
		maxRetries: config.MaxRetries,
		httpClient: config.HTTPClient,
	}
}

type documentWire struct {
	DocumentCode string  `json:"document_code"`
	Filename     string  `json:"filename"`
	FileSize     int64   `json:"file_size"`
	FileSizeMB   float64 `json:"file_size_mb"`
	PageCount    int     `json:"page_count"`
	Status       string  `json:"status"`
	UploadTime   string  `json:"upload_time"`
}

func (w documentWire) toDocument(status domain.UploadStatus) domain.Document {
	doc := domain.Document{
		Code:         w.DocumentCode,
		Filename:     w.Filename,
		SizeBytes:    w.FileSize,
		PageCount:    w.PageCount,
		UploadStatus: status,
	}
	if parsed, err := time.Parse(time.RFC3339, w.UploadTime); err == nil {
		doc.UploadedAt = parsed
	}
	return doc
}

// UploadDocument sends one PDF as a multipart request. A 409 duplicate is
// returned as a *ConflictError carrying the pre-existing document.
func (c *Client) UploadDocument(ctx context.Context, filename string, content io.Reader) (domain.Document, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return domain.Document{}, fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return domain.Document{}, fmt.Errorf("copy upload body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return domain.Document{}, fmt.Errorf("close multipart writer: %w", err)
	}

	raw, err := c.do(ctx, http.MethodPost, "/api/documents/upload/", &body, writer.FormDataContentType())
	if err != nil {
		return domain.Document{}, err
	}

	var response struct {
		Success  bool         `json:"success"`
		Document documentWire `json:"document"`
	}
	if err := json.Unmarshal(raw, &response); err != nil {
		return domain.Document{}, fmt.Errorf("decode upload response: %w", err)
	}
	return response.Document.toDocument(domain.UploadStatusUploaded), nil
}

// ListDocuments fetches the authoritative document list.
func (c *Client) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	raw, err := c.getWithRetry(ctx, "/api/documents/list/")
	if err != nil {
		return nil, err
	}
	var response struct {
		Success   bool           `json:"success"`
		Documents []documentWire `json:"documents"`
	}
	if err := json.Unmarshal(raw, &response); err != nil {
		return nil, fmt.Errorf("decode document list: %w", err)
	}
	documents := make([]domain.Document, 0, len(response.Documents))
	for _, wire := range response.Documents {
		documents = append(documents, wire.toDocument(domain.UploadStatusUploaded))
	}
	return documents, nil
}

type processRequest struct {
	DocumentCode string                 `json:"document_code"`
	Config       domain.RedactionConfig `json:"config"`
	Reprocess    bool                   `json:"reprocess,omitempty"`
}

// SubmitJob asks the backend to redact one document with the given config.
// The response carries the new job id; tracking starts with that id.
func (c *Client) SubmitJob(ctx context.Context, documentCode string, config domain.RedactionConfig) (domain.Job, error) {
	return c.process(ctx, "/api/documents/process/", processRequest{
		DocumentCode: documentCode,
		Config:       config,
	})
}

// ReprocessJob submits the same document again with a changed config. The
// backend creates a new processed-document record; prior jobs are untouched.
func (c *Client) ReprocessJob(ctx context.Context, documentCode string, config domain.RedactionConfig) (domain.Job, error) {
	return c.process(ctx, "/api/documents/reprocess/", processRequest{
		DocumentCode: documentCode,
		Config:       config,
		Reprocess:    true,
	})
}

func (c *Client) process(ctx context.Context, path string, request processRequest) (domain.Job, error) {
	encoded, err := json.Marshal(request)
	if err != nil {
		return domain.Job{}, fmt.Errorf("encode process request: %w", err)
	}
	raw, err := c.do(ctx, http.MethodPost, path, bytes.NewReader(encoded), "application/json")
	if err != nil {
		return domain.Job{}, err
	}

	var response struct {
		Success           bool `json:"success"`
		ProcessedDocument struct {
			ID     int64  `json:"id"`
			Status string `json:"status"`
		} `json:"processed_document"`
	}
	if err := json.Unmarshal(raw, &response); err != nil {
		return domain.Job{}, fmt.Errorf("decode process response: %w", err)
	}

	status := domain.JobStatus(response.ProcessedDocument.Status)
	if status == "" {
		status = domain.JobStatusPending
	}
	now := time.Now().UTC()
	return domain.Job{
		ID:             response.ProcessedDocument.ID,
		DocumentCode:   request.DocumentCode,
		ConfigSnapshot: request.Config.Clone(),
		Status:         status,
		SubmittedAt:    now,
		UpdatedAt:      now,
	}, nil
}

// ListJobs fetches the authoritative list of processed documents. Used to
// reconstruct the watch set on view re-entry instead of trusting stale
// client memory.
func (c *Client) ListJobs(ctx context.Context) ([]domain.Job, error) {
	raw, err := c.getWithRetry(ctx, "/api/documents/processed_list/")
	if err != nil {
		return nil, err
	}
	var response struct {
		Success            bool `json:"success"`
		ProcessedDocuments []struct {
			ID          int64        `json:"id"`
			Status      string       `json:"status"`
			ProcessTime string       `json:"process_time"`
			Document    documentWire `json:"document"`
		} `json:"processed_documents"`
	}
	if err := json.Unmarshal(raw, &response); err != nil {
		return nil, fmt.Errorf("decode processed list: %w", err)
	}

	jobs := make([]domain.Job, 0, len(response.ProcessedDocuments))
	for _, wire := range response.ProcessedDocuments {
		job := domain.Job{
			ID:           wire.ID,
			DocumentCode: wire.Document.DocumentCode,
			Status:       domain.JobStatus(wire.Status),
		}
		if parsed, err := time.Parse(time.RFC3339, wire.ProcessTime); err == nil {
			job.SubmittedAt = parsed
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// JobDetail fetches the current status and detected-field list for one job.
func (c *Client) JobDetail(ctx context.Context, jobID int64) (domain.JobDetail, error) {
	raw, err := c.getWithRetry(ctx, fmt.Sprintf("/api/documents/processed-info/%d/", jobID))
	if err != nil {
		return domain.JobDetail{}, err
	}
	var detail domain.JobDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		return domain.JobDetail{}, fmt.Errorf("decode job detail: %w", err)
	}
	return detail, nil
}

// JobStatus fetches only the status of one job. Used by the poller.
func (c *Client) JobStatus(ctx context.Context, jobID int64) (domain.JobStatus, error) {
	detail, err := c.JobDetail(ctx, jobID)
	if err != nil {
		return "", err
	}
	return detail.Status, nil
}

// PreviewURLs fetches the original/processed artifact URLs for the preview
// pane.
func (c *Client) PreviewURLs(ctx context.Context, documentCode string, jobID int64) (domain.Preview, error) {
	raw, err := c.getWithRetry(ctx, fmt.Sprintf("/api/documents/preview/%s/%d/", documentCode, jobID))
	if err != nil {
		return domain.Preview{}, err
	}
	var preview domain.Preview
	if err := json.Unmarshal(raw, &preview); err != nil {
		return domain.Preview{}, fmt.Errorf("decode preview response: %w", err)
	}
	return preview, nil
}

// DownloadArtifact streams the processed PDF for one job. The caller owns
// the returned body.
func (c *Client) DownloadArtifact(ctx context.Context, jobID int64) (io.ReadCloser, error) {
	return c.stream(ctx, fmt.Sprintf("/api/documents/download/%d/", jobID))
}

// ExportAll streams a zip of every processed document.
func (c *Client) ExportAll(ctx context.Context) (io.ReadCloser, error) {
	return c.stream(ctx, "/api/documents/export_all/")
}

// DeleteDocument removes a document; the backend cascades to its jobs.
func (c *Client) DeleteDocument(ctx context.Context, documentCode string) error {
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/documents/delete/%s/", documentCode), nil, "")
	return err
}

func (c *Client) getWithRetry(ctx context.Context, path string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		raw, err := c.do(ctx, http.MethodGet, path, nil, "")
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if !IsTransient(err) || attempt == c.maxRetries {
			break
		}
		backoff := time.Duration(350*(attempt+1)) * time.Millisecond
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(timeoutCtx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(request, contentType)

	response, err := c.httpClient.Do(request)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("redact service timeout: %w", err)
		}
		return nil, fmt.Errorf("redact service transport error: %w", err)
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, c.decodeError(response.StatusCode, raw)
	}
	return raw, nil
}

func (c *Client) stream(ctx context.Context, path string) (io.ReadCloser, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(request, "")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("redact service transport error: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		raw, _ := io.ReadAll(response.Body)
		response.Body.Close()
		return nil, c.decodeError(response.StatusCode, raw)
	}
	return response.Body, nil
}

func (c *Client) setHeaders(request *http.Request, contentType string) {
	if c.token != "" {
		request.Header.Set("Authorization", "Token "+c.token)
	}
	request.Header.Set("Accept", "application/json")
	request.Header.Set("X-Request-Id", uuid.NewString())
	if contentType != "" {
		request.Header.Set("Content-Type", contentType)
	}
}

func (c *Client) decodeError(statusCode int, raw []byte) error {
	var payload struct {
		Error            string        `json:"error"`
		Message          string        `json:"message"`
		ExistingDocument *documentWire `json:"existing_document"`
		DuplicateReason  string        `json:"duplicate_reason"`
	}
	_ = json.Unmarshal(raw, &payload)

	switch statusCode {
	case http.StatusForbidden:
		return fmt.Errorf("%s: %w", firstNonEmpty(payload.Error, "session rejected"), ErrAuthExpired)
	case http.StatusConflict:
		conflict := &ConflictError{Reason: firstNonEmpty(payload.DuplicateReason, payload.Error, "duplicate document")}
		if payload.ExistingDocument != nil {
			conflict.ExistingDocument = payload.ExistingDocument.toDocument(domain.UploadStatusDuplicate)
		}
		return conflict
	default:
		message := firstNonEmpty(payload.Error, strings.TrimSpace(string(raw)))
		if len(message) > 700 {
			message = message[:700]
		}
		return &APIError{StatusCode: statusCode, Message: message}
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
