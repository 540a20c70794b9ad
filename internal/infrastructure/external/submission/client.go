// Package submission is the HTTP client of the remote reports API.
package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fieldops/field-reports/internal/domain/entity"
	"go.uber.org/zap"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 4 << 10

var ErrMissingReportID = errors.New("response carries no report id")

// TokenSource supplies the bearer token for each call.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// Config holds reports API settings
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Client issues authenticated calls to the reports API.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	tokens     TokenSource
	logger     *zap.Logger
}

// NewClient creates a reports API client.
func NewClient(cfg Config, tokens TokenSource, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "field-reports"
	}
	if tokens == nil {
		tokens = StaticToken("")
	}
	return &Client{
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		userAgent: ua,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		tokens: tokens,
		logger: logger,
	}
}

type createResponse struct {
	ID   json.RawMessage `json:"id"`
	Data *struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

// CreateReport creates a report and returns its server id.
func (c *Client) CreateReport(ctx context.Context, payload Payload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &entity.NetworkError{Op: "create", Err: fmt.Errorf("failed to encode payload: %w", err)}
	}

	respBody, err := c.do(ctx, "create", http.MethodPost, "/reports", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	var resp createResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", &entity.NetworkError{Op: "create", Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	raw := resp.ID
	if len(raw) == 0 && resp.Data != nil {
		raw = resp.Data.ID
	}
	id := rawID(raw)
	if id == "" {
		return "", &entity.NetworkError{Op: "create", Err: ErrMissingReportID}
	}

	c.logger.Info("Report created",
		zap.String("report_type", payload.ReportType),
		zap.String("draft_id", payload.DraftID),
		zap.String("report_id", id))
	return id, nil
}

// UpdateReport replaces the report with id.
func (c *Client) UpdateReport(ctx context.Context, id string, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &entity.NetworkError{Op: "update", Err: fmt.Errorf("failed to encode payload: %w", err)}
	}
	_, err = c.do(ctx, "update", http.MethodPut, "/reports/"+url.PathEscape(id), "application/json", bytes.NewReader(body))
	return err
}

// DeleteReport deletes the report with id.
func (c *Client) DeleteReport(ctx context.Context, id string) error {
	_, err := c.do(ctx, "delete", http.MethodDelete, "/reports/"+url.PathEscape(id), "", nil)
	return err
}

// UploadPhoto attaches one photo to a report as multipart/form-data.
func (c *Client) UploadPhoto(ctx context.Context, reportID string, blob []byte, meta PhotoMetadata) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := map[string]string{
		"name":        meta.Name,
		"contentType": meta.ContentType,
		"capturedAt":  meta.CapturedAt,
		"index":       strconv.Itoa(meta.Index),
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return &entity.NetworkError{Op: "upload", Err: err}
		}
	}

	filename := meta.Name
	if filename == "" {
		filename = fmt.Sprintf("photo-%d", meta.Index+1)
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", meta.ContentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return &entity.NetworkError{Op: "upload", Err: err}
	}
	if _, err := part.Write(blob); err != nil {
		return &entity.NetworkError{Op: "upload", Err: err}
	}
	if err := w.Close(); err != nil {
		return &entity.NetworkError{Op: "upload", Err: err}
	}

	_, err = c.do(ctx, "upload", http.MethodPost, "/reports/"+url.PathEscape(reportID)+"/photos", w.FormDataContentType(), &buf)
	return err
}

func (c *Client) do(ctx context.Context, op, method, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &entity.NetworkError{Op: op, Err: fmt.Errorf("failed to build request: %w", err)}
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, &entity.NetworkError{Op: op, Err: fmt.Errorf("failed to get token: %w", err)}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Reports API call failed",
			zap.String("op", op),
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return nil, &entity.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &entity.NetworkError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	c.logger.Debug("Reports API call",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(respBody))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &entity.NetworkError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}
	return respBody, nil
}

// rawID accepts string or numeric ids.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
