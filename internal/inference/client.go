package inference

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
	"strings"

	"lpr-service/internal/config"
	"lpr-service/internal/detection"
)

var ErrUpstream = errors.New("inference backend error")

// UpstreamError carries the status and body of a failed backend call.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("inference backend returned %d: %s", e.StatusCode, e.Body)
}

func (e *UpstreamError) Unwrap() error {
	return ErrUpstream
}

// Upload is a file forwarded to the backend.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

type ImageResponse struct {
	Detections       []detection.RawDetection `json:"detections"`
	AnnotatedWebpB64 string                   `json:"annotated_webp_b64,omitempty"`
}

type FrameResponse struct {
	Detections []detection.RawDetection `json:"detections"`
}

type VideoFrame struct {
	Detections        []detection.RawDetection `json:"detections"`
	PreviewJPEGBase64 string                   `json:"preview_jpeg_base64,omitempty"`
}

type VideoSummary struct {
	UniqueCount int                      `json:"unique_count"`
	Plates      []detection.RawDetection `json:"plates"`
}

type VideoResponse struct {
	Frames  []VideoFrame  `json:"frames"`
	Summary *VideoSummary `json:"summary,omitempty"`
}

// AllDetections flattens per-frame detections followed by the backend's
// per-plate summary entries.
func (r *VideoResponse) AllDetections() []detection.RawDetection {
	var out []detection.RawDetection
	for _, f := range r.Frames {
		out = append(out, f.Detections...)
	}
	if r.Summary != nil {
		out = append(out, r.Summary.Plates...)
	}
	return out
}

// Client talks to the plate detection/OCR backend.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	videoClient   *http.Client
	videoPreviews bool
}

func NewClient(cfg config.InferenceConfig) *Client {
	videoTimeout := cfg.VideoTimeout
	if videoTimeout < cfg.Timeout {
		videoTimeout = cfg.Timeout
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.URL, "/"),
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		videoClient:   &http.Client{Timeout: videoTimeout},
		videoPreviews: cfg.VideoPreviews,
	}
}

func (c *Client) PredictImage(ctx context.Context, file Upload) (*ImageResponse, error) {
	var out ImageResponse
	if err := c.post(ctx, c.httpClient, "/predict-image", nil, file, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) PredictVideo(ctx context.Context, file Upload) (*VideoResponse, error) {
	query := url.Values{}
	if c.videoPreviews {
		query.Set("previews", "true")
	}
	var out VideoResponse
	if err := c.post(ctx, c.videoClient, "/predict-video", query, file, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) PredictFrame(ctx context.Context, file Upload) (*FrameResponse, error) {
	var out FrameResponse
	if err := c.post(ctx, c.httpClient, "/predict-frame", nil, file, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ping reports whether the backend answers at all.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("inference backend unreachable: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		return &UpstreamError{StatusCode: resp.StatusCode}
	}
	return nil
}

func (c *Client) post(ctx context.Context, client *http.Client, path string, query url.Values, file Upload, out any) error {
	body, contentType, err := encodeUpload(file)
	if err != nil {
		return err
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UpstreamError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}
	return nil
}

func encodeUpload(file Upload) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	filename := file.Filename
	if filename == "" {
		filename = "upload"
	}
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, "", fmt.Errorf("write form file: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
