package capture

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Frame is one still captured from the camera.
type Frame struct {
	Data        []byte
	ContentType string
	CapturedAt  time.Time
}

// FrameSource produces stills from a live video stream.
type FrameSource interface {
	Snapshot(ctx context.Context) (Frame, error)
}

// HTTPSnapshotSource pulls JPEG stills from the camera's HTTP snapshot
// endpoint (ISAPI on Hikvision devices).
type HTTPSnapshotSource struct {
	url      string
	username string
	password string
	client   *http.Client
}

// NewHTTPSnapshotSource builds a source for host+path. Credentials are taken
// from the user info of rtspURL, which is where camera configs keep them.
func NewHTTPSnapshotSource(host, path, rtspURL string, timeout time.Duration) (*HTTPSnapshotSource, error) {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		return nil, fmt.Errorf("camera http host is empty")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	src := &HTTPSnapshotSource{
		url:    host + path,
		client: &http.Client{Timeout: timeout},
	}
	if rtspURL != "" {
		u, err := url.Parse(rtspURL)
		if err != nil {
			return nil, fmt.Errorf("parse rtsp url: %w", err)
		}
		if u.User != nil {
			src.username = u.User.Username()
			src.password, _ = u.User.Password()
		}
	}
	return src, nil
}

func (s *HTTPSnapshotSource) Snapshot(ctx context.Context) (Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return Frame{}, err
	}
	if s.username != "" {
		req.SetBasicAuth(s.username, s.password)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Frame{}, fmt.Errorf("camera snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Frame{}, fmt.Errorf("camera snapshot returned %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Frame{}, fmt.Errorf("read camera snapshot: %w", err)
	}
	if len(data) == 0 {
		return Frame{}, fmt.Errorf("camera snapshot is empty")
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return Frame{Data: data, ContentType: contentType, CapturedAt: time.Now()}, nil
}
