// Package enrollment submits a captured photo and invite code to the remote
// enrollment service.
package enrollment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/okian/facegate/internal/domain/model"
	"github.com/okian/facegate/pkg/logger"
	"github.com/okian/facegate/pkg/metrics"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseBody = 1 << 20

	photoField    = "photo"
	codeField     = "invite_code"
	photoFilename = "capture.jpg"
)

// Result is the decoded body of an accepted enrollment.
type Result struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	AttendeeID string `json:"attendee_id,omitempty"`
	Raw        string `json:"-"`
}

// Client posts enrollment requests. It never retries.
type Client struct {
	url      string
	http     *http.Client
	timeout  time.Duration
	validate bool
	logger   logger.Logger
}

// NewClient creates a client for the enrollment endpoint url, e.g.
// https://host/register.
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:      strings.TrimSpace(url),
		http:     &http.Client{},
		timeout:  defaultTimeout,
		validate: true,
		logger:   logger.Get().Named("enrollment"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit uploads photo with code. Failures are *Error values.
func (c *Client) Submit(ctx context.Context, photo model.CapturedPhoto, code model.InviteCode) (Result, error) { //nolint:gocritic // hugeParam: photo is immutable and passed by value
	start := time.Now()

	if code == "" {
		return Result{}, c.fail(start, "invalid", &Error{Detail: "Invite code is missing", Err: ErrEmptyInviteCode})
	}
	if c.validate {
		if err := Validate(photo.JPEG); err != nil {
			return Result{}, c.fail(start, "invalid", &Error{Detail: err.Error(), Err: err})
		}
	}

	body, contentType, err := buildForm(photo.JPEG, code)
	if err != nil {
		return Result{}, c.fail(start, "invalid", &Error{Detail: "Could not prepare the upload", Err: err})
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return Result{}, c.fail(start, "invalid", &Error{Detail: "Enrollment endpoint is misconfigured", Err: err})
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, c.fail(start, "network", &Error{Network: true, Err: err})
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return Result{}, c.fail(start, "network", &Error{Network: true, StatusCode: resp.StatusCode, Err: err})
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, c.fail(start, "rejected", &Error{
			StatusCode: resp.StatusCode,
			Detail:     failureDetail(resp.StatusCode, raw),
			Err:        model.ErrSubmissionFailure,
		})
	}

	res := decodeResult(raw)
	metrics.RecordSubmission("accepted", float64(time.Since(start).Milliseconds()))
	c.logger.Info(ctx, "enrollment accepted",
		logger.String("invite", code.Masked()),
		logger.String("photo_id", photo.ID),
		logger.Int("status_code", resp.StatusCode),
		logger.String("attendee_id", res.AttendeeID),
	)
	return res, nil
}

func (c *Client) fail(start time.Time, outcome string, e *Error) error {
	metrics.RecordSubmission(outcome, float64(time.Since(start).Milliseconds()))
	metrics.RecordErrorByComponent("enrollment", outcome)
	c.logger.Warn(context.Background(), "enrollment failed",
		logger.String("outcome", outcome),
		logger.Int("status_code", e.StatusCode),
		logger.String("detail", e.Detail),
		logger.Error(e.Err),
	)
	return e
}

func buildForm(photo []byte, code model.InviteCode) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, photoField, photoFilename))
	h.Set("Content-Type", "image/jpeg")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create photo part: %w", err)
	}
	if _, err := part.Write(photo); err != nil {
		return nil, "", fmt.Errorf("failed to write photo: %w", err)
	}
	if err := w.WriteField(codeField, code.String()); err != nil {
		return nil, "", fmt.Errorf("failed to write invite code: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// failureDetail prefers a string "detail" field, then the raw body, then the
// status text.
func failureDetail(status int, raw []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && len(body.Detail) > 0 {
		var s string
		if json.Unmarshal(body.Detail, &s) == nil && s != "" {
			return s
		}
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return text
	}
	return http.StatusText(status)
}

func decodeResult(raw []byte) Result {
	res := Result{Raw: string(raw)}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return res
	}
	res.Status = stringField(body["status"])
	res.Message = stringField(body["message"])
	res.AttendeeID = stringField(body["attendee_id"])
	return res
}

func stringField(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return fmt.Sprintf("%.0f", t)
	default:
		return fmt.Sprint(t)
	}
}
