package smoke

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/okian/greenalloc/internal/domain/model"
	"github.com/okian/greenalloc/internal/domain/types"
)

// Client is a small typed client for the greenalloc HTTP API.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

// Upload posts files as one multipart batch.
func (c *Client) Upload(ctx context.Context, uploadID string, files []string) (model.Batch, bool, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if uploadID != "" {
		if err := mw.WriteField("upload_id", uploadID); err != nil {
			return model.Batch{}, false, err
		}
	}
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return model.Batch{}, false, fmt.Errorf("read %s: %w", path, err)
		}
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="documents"; filename=%q`, filepath.Base(path)))
		header.Set("Content-Type", contentTypeFor(path))
		part, err := mw.CreatePart(header)
		if err != nil {
			return model.Batch{}, false, err
		}
		if _, err := part.Write(data); err != nil {
			return model.Batch{}, false, err
		}
	}
	if err := mw.Close(); err != nil {
		return model.Batch{}, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/batches", &buf)
	if err != nil {
		return model.Batch{}, false, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out uploadResponse
	status, err := c.do(req, &out, http.StatusAccepted, http.StatusOK)
	if err != nil {
		return model.Batch{}, false, err
	}
	return out.Batch, status == http.StatusOK && out.Duplicate, nil
}

// Batch fetches GET /batches/{id}.
func (c *Client) Batch(ctx context.Context, id string) (model.Batch, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/batches/"+url.PathEscape(id), http.NoBody)
	if err != nil {
		return model.Batch{}, err
	}
	var b model.Batch
	_, err = c.do(req, &b, http.StatusOK)
	return b, err
}

// Allocations fetches GET /batches/{id}/allocations at riskTolerance.
func (c *Client) Allocations(ctx context.Context, id string, riskTolerance float64) (types.AllocationSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.batchView(id, "allocations", riskTolerance), http.NoBody)
	if err != nil {
		return types.AllocationSet{}, err
	}
	var set types.AllocationSet
	_, err = c.do(req, &set, http.StatusOK)
	return set, err
}

// Ranking fetches GET /batches/{id}/ranking at riskTolerance.
func (c *Client) Ranking(ctx context.Context, id string, riskTolerance float64) ([]types.RankedProject, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.batchView(id, "ranking", riskTolerance), http.NoBody)
	if err != nil {
		return nil, err
	}
	var out rankingResponse
	_, err = c.do(req, &out, http.StatusOK)
	return out.Projects, err
}

func (c *Client) batchView(id, view string, riskTolerance float64) string {
	q := url.Values{}
	q.Set("risk_tolerance", strconv.FormatFloat(riskTolerance, 'f', -1, 64))
	return c.baseURL + "/batches/" + url.PathEscape(id) + "/" + view + "?" + q.Encode()
}

// do sends req and decodes a JSON body when the status is one of ok.
func (c *Client) do(req *http.Request, out any, ok ...int) (int, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response body: %w", err)
	}
	for _, code := range ok {
		if resp.StatusCode == code {
			if err := json.Unmarshal(body, out); err != nil {
				return resp.StatusCode, fmt.Errorf("decode %s %s: %w", req.Method, req.URL.Path, err)
			}
			return resp.StatusCode, nil
		}
	}
	return resp.StatusCode, fmt.Errorf("%w: %s %s returned %d: %s",
		ErrUnexpectedStatus, req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "application/yaml"
	case ".json":
		return "application/json"
	case ".pdf":
		return "application/pdf"
	}
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}
