package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/websocket"

	"lala/internal/api"
	"lala/internal/progress"
)

// ErrUnavailable reports that no daemon answered at the configured address.
var ErrUnavailable = errors.New("lala daemon unavailable")

// Error is a non-2xx response from the daemon.
type Error struct {
	Status  int
	Message string
	Hint    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned status %d", e.Status)
	}
	return e.Message
}

// Client is a thin HTTP client for the daemon API.
type Client struct {
	base *url.URL
	http *http.Client
}

// New builds a client for bind, either host:port or a full URL.
func New(bind string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, errors.New("api bind address required")
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, fmt.Errorf("parse api address: %w", err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""
	return &Client{
		base: base,
		// Uploads of large recordings can take a while; callers bound requests with ctx.
		http: &http.Client{},
	}, nil
}

// Status returns daemon runtime information.
func (c *Client) Status(ctx context.Context) (api.DaemonStatus, error) {
	var out api.DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &out)
	return out, err
}

// ListFiles returns every file, newest first.
func (c *Client) ListFiles(ctx context.Context) ([]api.File, error) {
	var out []api.File
	err := c.do(ctx, http.MethodGet, "/api/files", nil, &out)
	return out, err
}

// Summaries returns the status row of every file.
func (c *Client) Summaries(ctx context.Context) ([]api.FileSummary, error) {
	var out []api.FileSummary
	err := c.do(ctx, http.MethodGet, "/api/summaries", nil, &out)
	return out, err
}

// GetFile returns one file.
func (c *Client) GetFile(ctx context.Context, fileID string) (api.File, error) {
	var out api.File
	err := c.do(ctx, http.MethodGet, "/api/files/"+url.PathEscape(fileID), nil, &out)
	return out, err
}

// ListAssets returns the assets of a file, oldest first.
func (c *Client) ListAssets(ctx context.Context, fileID string) ([]api.Asset, error) {
	var out []api.Asset
	err := c.do(ctx, http.MethodGet, "/api/files/"+url.PathEscape(fileID)+"/assets", nil, &out)
	return out, err
}

// RequestStage asks the daemon to drive a file toward stage.
func (c *Client) RequestStage(ctx context.Context, fileID, stage string) (api.StageResult, error) {
	var out api.StageResult
	err := c.do(ctx, http.MethodPost, "/api/files/"+url.PathEscape(fileID)+"/stage", api.StageRequest{Stage: stage}, &out)
	return out, err
}

// Cancel stops queued and running work for a file.
func (c *Client) Cancel(ctx context.Context, fileID string) (api.CancelResult, error) {
	var out api.CancelResult
	err := c.do(ctx, http.MethodPost, "/api/files/"+url.PathEscape(fileID)+"/cancel", nil, &out)
	return out, err
}

// Delete removes a file with all of its assets.
func (c *Client) Delete(ctx context.Context, fileID string) error {
	return c.do(ctx, http.MethodDelete, "/api/files/"+url.PathEscape(fileID), nil, nil)
}

// Export copies a completed asset to destination on the daemon host or to
// the configured bucket.
func (c *Client) Export(ctx context.Context, assetID, destination string) (api.ExportResult, error) {
	var out api.ExportResult
	err := c.do(ctx, http.MethodPost, "/api/assets/"+url.PathEscape(assetID)+"/export", api.ExportRequest{Destination: destination}, &out)
	return out, err
}

// Upload streams the recording at path to the daemon.
func (c *Client) Upload(ctx context.Context, path string) (api.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return api.File{}, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/api/files", ""), pr)
	if err != nil {
		_ = pr.Close()
		return api.File{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var out api.File
	err = c.send(req, &out)
	_ = pr.Close()
	return out, err
}

// Watch streams progress events until ctx is cancelled or the daemon closes
// the connection. An empty fileID streams every file.
func (c *Client) Watch(ctx context.Context, fileID string, onEvent func(progress.Event) bool) error {
	wsURL := *c.base
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	wsURL.Path = "/api/events"
	if fileID != "" {
		wsURL.RawQuery = url.Values{"file_id": []string{fileID}}.Encode()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		return classify(err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	for {
		var event progress.Event
		if err := conn.ReadJSON(&event); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		if !onEvent(event) {
			return nil
		}
	}
}

func (c *Client) endpoint(path, rawQuery string) string {
	return c.base.ResolveReference(&url.URL{Path: path, RawQuery: rawQuery}).String()
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, ""), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &Error{Status: resp.StatusCode}
		var payload api.ErrorResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload); err == nil {
			apiErr.Message = payload.Error
			apiErr.Hint = payload.Hint
		}
		return apiErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func classify(err error) error {
	if IsUnavailable(err) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}

// IsUnavailable reports whether err means no daemon is listening.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
