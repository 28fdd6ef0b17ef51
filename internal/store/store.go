// Package store is the dataset-record collaborator: a client for the
// PocketBase collection that holds uploaded training images, run status,
// and the exported classifier artifact.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"
)

// Record status lifecycle. The scheduler picks up pending records; the
// runner moves them to training and then ready or failed.
const (
	StatusPending  = "pending"
	StatusTraining = "training"
	StatusReady    = "ready"
	StatusFailed   = "failed"
)

const collection = "datasets"

// Record is a dataset record: a set of uploaded image files plus the run
// status and, once trained, the classifier artifact.
type Record struct {
	ID     string   `json:"id"`
	Status string   `json:"status"`
	Images []string `json:"images"`
}

// Client talks to one PocketBase instance with admin credentials.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// New creates a client for the store at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Authenticate performs admin password auth and keeps the returned token
// for subsequent requests.
func (c *Client) Authenticate(ctx context.Context, identity, password string) error {
	body, err := json.Marshal(map[string]string{
		"identity": identity,
		"password": password,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/admins/auth-with-password", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(req, &out); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	c.token = out.Token
	return nil
}

// Record fetches one dataset record by ID.
func (c *Client) Record(ctx context.Context, id string) (*Record, error) {
	req, err := c.request(ctx, http.MethodGet, c.recordURL(id), nil, "")
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := c.do(req, &rec); err != nil {
		return nil, fmt.Errorf("fetch record %s: %w", id, err)
	}
	return &rec, nil
}

// PendingRecords lists up to limit records awaiting training, oldest first.
func (c *Client) PendingRecords(ctx context.Context, limit int) ([]Record, error) {
	q := url.Values{}
	q.Set("page", "1")
	q.Set("perPage", fmt.Sprint(limit))
	q.Set("filter", `status = "pending"`)
	q.Set("sort", "created")

	u := fmt.Sprintf("%s/api/collections/%s/records?%s", c.baseURL, collection, q.Encode())
	req, err := c.request(ctx, http.MethodGet, u, nil, "")
	if err != nil {
		return nil, err
	}

	var out struct {
		Items []Record `json:"items"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, fmt.Errorf("list pending records: %w", err)
	}
	return out.Items, nil
}

// SetStatus updates a record's status field.
func (c *Client) SetStatus(ctx context.Context, id, status string) error {
	body, err := json.Marshal(map[string]string{"status": status})
	if err != nil {
		return err
	}
	req, err := c.request(ctx, http.MethodPatch, c.recordURL(id), bytes.NewReader(body), "application/json")
	if err != nil {
		return err
	}
	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("set record %s status %q: %w", id, status, err)
	}
	return nil
}

// DownloadImage fetches the bytes of one image file attached to a record.
func (c *Client) DownloadImage(ctx context.Context, rec *Record, filename string) ([]byte, error) {
	u := fmt.Sprintf("%s/api/files/%s/%s/%s", c.baseURL, collection,
		url.PathEscape(rec.ID), url.PathEscape(filename))
	req, err := c.request(ctx, http.MethodGet, u, nil, "")
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", filename, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: status %d", filename, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", filename, err)
	}
	return data, nil
}

// UploadArtifact attaches the exported classifier to the record and marks
// it ready in the same update. The bytes are passed through unmodified.
func (c *Client) UploadArtifact(ctx context.Context, id, filename string, data []byte) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("status", StatusReady); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("classifier_file", filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := c.request(ctx, http.MethodPatch, c.recordURL(id), &buf, mw.FormDataContentType())
	if err != nil {
		return err
	}
	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("upload artifact for record %s: %w", id, err)
	}
	return nil
}

func (c *Client) recordURL(id string) string {
	return fmt.Sprintf("%s/api/collections/%s/records/%s", c.baseURL, collection, url.PathEscape(id))
}

func (c *Client) request(ctx context.Context, method, u string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}
	return req, nil
}

// do executes a request expecting a 2xx JSON response, decoding into out
// when non-nil.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
