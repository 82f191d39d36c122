// Package analysis implements the HTTP/JSON client of the spreadsheet
// analysis service.
//
// Every operation the import workflow consumes maps to one endpoint under
// /api/v1. Files travel as multipart form uploads; everything else is JSON.
// Non-2xx responses become *APIError carrying the service's own message,
// which the workflow shows to users verbatim.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/activity-import/internal/core"
	"github.com/google/uuid"
)

// DefaultTimeout bounds a single request when no timeout is configured.
// Analysis of large workbooks is slow, so this is generous.
const DefaultTimeout = 2 * time.Minute

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// Client talks to the analysis service. It implements core.Backend.
type Client struct {
	baseURL   *url.URL
	token     string
	userAgent string
	http      *http.Client
}

var _ core.Backend = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a client for the service at baseURL.
func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("analysis: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("analysis: base url %q must be http or https", baseURL)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		baseURL:   u,
		userAgent: "activity-import",
		http:      &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// APIError is a non-2xx response of the analysis service.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.StatusCode)
}

// UserMessage returns the service's message for display.
func (e *APIError) UserMessage() string { return e.Message }

// IsNotFound reports whether err is a 404 from the service.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// PreviewImport runs a dry-run template match of file for a period.
func (c *Client) PreviewImport(ctx context.Context, periodID string, file core.File) (*core.StandardPreview, error) {
	var out core.StandardPreview
	fields := url.Values{"period_id": {periodID}}
	if err := c.upload(ctx, "preview_import", "/api/v1/import/preview", fields, file, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UnifiedImportPreview analyzes every sheet of file without importing.
func (c *Client) UnifiedImportPreview(ctx context.Context, file core.File) (*core.UnifiedPreview, error) {
	var out core.UnifiedPreview
	if err := c.upload(ctx, "unified_import_preview", "/api/v1/import/unified/preview", nil, file, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ImportActivities imports file into a period, optionally attributing the
// activities to a site.
func (c *Client) ImportActivities(ctx context.Context, periodID string, file core.File, siteID string) (*core.ImportResult, error) {
	fields := url.Values{"period_id": {periodID}}
	if siteID != "" {
		fields.Set("site_id", siteID)
	}
	var out core.ImportResult
	if err := c.upload(ctx, "import_activities", "/api/v1/import/activities", fields, file, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UnifiedImport imports the selected sheets of a workbook.
func (c *Client) UnifiedImport(ctx context.Context, req core.UnifiedImportRequest) (*core.UnifiedImportResult, error) {
	fields := url.Values{"period_id": {req.PeriodID}}
	if req.SiteID != "" {
		fields.Set("site_id", req.SiteID)
	}
	for _, s := range req.Sheets {
		fields.Add("sheets", s)
	}
	var out core.UnifiedImportResult
	if err := c.upload(ctx, "unified_import", "/api/v1/import/unified", fields, req.File, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SmartImport analyzes and imports file in one request.
func (c *Client) SmartImport(ctx context.Context, periodID string, file core.File) (*core.SmartImportResult, error) {
	var out core.SmartImportResult
	fields := url.Values{"period_id": {periodID}}
	if err := c.upload(ctx, "smart_import", "/api/v1/import/smart", fields, file, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetImportBatches lists recent import batches, newest first.
func (c *Client) GetImportBatches(ctx context.Context, periodID string, limit int) ([]core.ImportBatch, error) {
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	if periodID != "" {
		q.Set("period_id", periodID)
	}
	var out []core.ImportBatch
	if err := c.doJSON(ctx, "get_import_batches", http.MethodGet, "/api/v1/import/batches", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetImportBatchActivities returns the emission detail of every activity of a batch.
func (c *Client) GetImportBatchActivities(ctx context.Context, batchID string) (*core.BatchActivities, error) {
	var out core.BatchActivities
	p := "/api/v1/import/batches/" + url.PathEscape(batchID) + "/activities"
	if err := c.doJSON(ctx, "get_import_batch_activities", http.MethodGet, p, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteImportBatch deletes a batch, and its activities when deleteActivities is set.
func (c *Client) DeleteImportBatch(ctx context.Context, batchID string, deleteActivities bool) error {
	q := url.Values{"delete_activities": {strconv.FormatBool(deleteActivities)}}
	p := "/api/v1/import/batches/" + url.PathEscape(batchID)
	return c.doJSON(ctx, "delete_import_batch", http.MethodDelete, p, q, nil)
}

// DeletePeriodActivities deletes every activity of a period.
func (c *Client) DeletePeriodActivities(ctx context.Context, periodID string) (*core.DeletionSummary, error) {
	var out core.DeletionSummary
	p := "/api/v1/periods/" + url.PathEscape(periodID) + "/activities"
	if err := c.doJSON(ctx, "delete_period_activities", http.MethodDelete, p, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteOrganizationActivities deletes every activity of the organization.
// The service refuses the request unless confirm is true.
func (c *Client) DeleteOrganizationActivities(ctx context.Context, confirm bool) (*core.DeletionSummary, error) {
	var out core.DeletionSummary
	q := url.Values{"confirm": {strconv.FormatBool(confirm)}}
	if err := c.doJSON(ctx, "delete_organization_activities", http.MethodDelete, "/api/v1/organization/activities", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DownloadTemplate fetches the import template for a scope.
func (c *Client) DownloadTemplate(ctx context.Context, scope core.TemplateScope) (*core.Artifact, error) {
	q := url.Values{"scope": {string(scope)}}
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/import/template", q, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(req, "download_template")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("download_template: read body: %w", err)
	}

	name := fmt.Sprintf("activity_import_template_scope_%s.xlsx", scope)
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = filepath.Base(params["filename"])
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = contentTypeFor(name)
	}
	return &core.Artifact{FileName: name, ContentType: ct, Data: data}, nil
}

// upload posts file and fields as multipart/form-data and decodes the JSON response into out.
func (c *Client) upload(ctx context.Context, op, p string, fields url.Values, file core.File, out any) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	for key, values := range fields {
		for _, v := range values {
			if err := mw.WriteField(key, v); err != nil {
				return fmt.Errorf("%s: write field %s: %w", op, key, err)
			}
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(file.Name)))
	h.Set("Content-Type", contentTypeFor(file.Name))
	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("%s: create file part: %w", op, err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return fmt.Errorf("%s: write file part: %w", op, err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("%s: close multipart: %w", op, err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, p, nil, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.send(req, op)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(resp, op, out)
}

// doJSON issues a request without a body and decodes the JSON response into out.
// out may be nil when the response carries nothing of interest.
func (c *Client) doJSON(ctx context.Context, op, method, p string, q url.Values, out any) error {
	req, err := c.newRequest(ctx, method, p, q, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.send(req, op)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(resp, op, out)
}

func (c *Client) newRequest(ctx context.Context, method, p string, q url.Values, body io.Reader) (*http.Request, error) {
	u := *c.baseURL
	u.Path = path.Join(u.Path, p)
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	return req, nil
}

// send executes req and converts non-2xx responses to *APIError.
// On success the caller owns resp.Body.
func (c *Client) send(req *http.Request, op string) (*http.Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	slog.Debug("analysis request",
		"op", op,
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"request_id", req.Header.Get("X-Request-ID"),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}
	return resp, nil
}

func decode(resp *http.Response, op string, out any) error {
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// errorMessage extracts the human-readable message of an error body.
// The service answers {"detail": "..."}, {"detail": [{"msg": "..."}]},
// {"message": "..."} or {"error": "..."}; anything else is returned as text.
func errorMessage(body []byte) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.TrimSpace(string(body))
	}

	if len(payload.Detail) > 0 {
		var s string
		if err := json.Unmarshal(payload.Detail, &s); err == nil && s != "" {
			return s
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(payload.Detail, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				if it.Msg != "" {
					msgs = append(msgs, it.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}

func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".xls":
		return "application/vnd.ms-excel"
	default:
		return "application/octet-stream"
	}
}
