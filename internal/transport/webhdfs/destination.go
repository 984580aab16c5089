// Package webhdfs publishes files to HDFS through the WebHDFS REST API.
package webhdfs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"
	"time"
)

// Config holds the WebHDFS endpoint settings.
type Config struct {
	// BaseURL is the namenode HTTP address, e.g. http://namenode:9870.
	BaseURL string
	User    string
	Timeout time.Duration
}

// Destination is a transport.Destination writing through the two-step WebHDFS CREATE.
type Destination struct {
	cfg    Config
	client *http.Client
}

// NewDestination creates a WebHDFS destination.
func NewDestination(cfg Config) *Destination {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Destination{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			// The namenode answers CREATE with a redirect to a datanode; the body must be
			// sent to that location, not replayed by the client.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (d *Destination) Kind() string { return "hdfs" }

// RemoteError is the error body returned by the namenode or datanode.
type RemoteError struct {
	StatusCode int
	Exception  string
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Exception == "" {
		return fmt.Sprintf("webhdfs returned status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("webhdfs returned status %d: %s: %s", e.StatusCode, e.Exception, e.Message)
}

// Publish uploads localPath to destinationPath. Success means the datanode acknowledged
// the write with 201 Created.
func (d *Destination) Publish(ctx context.Context, localPath, destinationPath string, overwrite bool) error {
	location, err := d.createLocation(ctx, destinationPath, overwrite)
	if err != nil {
		return err
	}

	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", localPath, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, location, file)
	if err != nil {
		return fmt.Errorf("failed to build upload request: %w", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", destinationPath, err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusCreated {
		return remoteError(resp)
	}
	return nil
}

func (d *Destination) createLocation(ctx context.Context, destinationPath string, overwrite bool) (string, error) {
	query := url.Values{}
	query.Set("op", "CREATE")
	query.Set("overwrite", strconv.FormatBool(overwrite))
	if d.cfg.User != "" {
		query.Set("user.name", d.cfg.User)
	}

	endpoint := d.cfg.BaseURL + "/webhdfs/v1" + path.Clean("/"+destinationPath) + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build create request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call namenode for %s: %w", destinationPath, err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusTemporaryRedirect {
		return "", remoteError(resp)
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return "", fmt.Errorf("namenode redirect for %s has no location", destinationPath)
	}
	return location, nil
}

func remoteError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var payload struct {
		RemoteException struct {
			Exception string `json:"exception"`
			Message   string `json:"message"`
		} `json:"RemoteException"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.RemoteException.Exception != "" {
		return &RemoteError{
			StatusCode: resp.StatusCode,
			Exception:  payload.RemoteException.Exception,
			Message:    payload.RemoteException.Message,
		}
	}
	return &RemoteError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
