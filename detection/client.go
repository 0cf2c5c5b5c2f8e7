package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

var ErrUnexpectedStatus = errors.New("unexpected HTTP status")

const defaultRequestTimeout = 30 * time.Second

// Client speaks the detection provider's four-call protocol.
type Client struct {
	baseURL    string
	apiKey     string
	HTTPClient *http.Client
}

func NewClient(apiKey string, baseURL url.URL) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL.String(),
		HTTPClient: &http.Client{Timeout: defaultRequestTimeout},
	}
}

func (c *Client) AcquireSlot(ctx context.Context, filename, contentType string) (*AcquireSlotResponse, error) {
	var slot AcquireSlotResponse
	err := c.postJSON(ctx, "/upload-slots", AcquireSlotRequest{Filename: filename, ContentType: contentType}, &slot)
	if err != nil {
		return nil, err
	}
	if slot.UploadURL == "" {
		return nil, errors.New("provider returned no upload target")
	}
	return &slot, nil
}

func (c *Client) Upload(ctx context.Context, uploadURL string, body []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Add("X-API-KEY", c.apiKey)
	req.ContentLength = int64(len(body))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: upload returned %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	return nil
}

func (c *Client) Submit(ctx context.Context, objectKey, filename string) (*SubmitResponse, error) {
	var submitted SubmitResponse
	err := c.postJSON(ctx, "/jobs", SubmitRequest{ObjectKey: objectKey, Filename: filename}, &submitted)
	if err != nil {
		return nil, err
	}
	if submitted.JobID == "" {
		return nil, errors.New("provider returned no job id")
	}
	return &submitted, nil
}

func (c *Client) JobStatus(ctx context.Context, jobID string) (*JobStatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jobs/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Add("X-API-KEY", c.apiKey)

	var status JobStatusResponse
	if err := c.do(req, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Add("X-API-KEY", c.apiKey)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s %s returned %d: %s", ErrUnexpectedStatus, req.Method, req.URL.Path, resp.StatusCode, truncate(body, 200))
	}
	if err = json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func truncate(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n]) + "..."
}
