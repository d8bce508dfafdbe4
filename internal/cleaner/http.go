package cleaner

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dgallion1/pagewash/internal/page"
)

// DefaultServiceURL is the public docleaner endpoint.
const DefaultServiceURL = "http://service.docleaner.cn"

// DefaultFilters is the filter set applied to every page: denoise,
// despeckle, remove black borders, remove background, deskew.
const DefaultFilters = "降噪,去斑点,去黑边,去背景,自动纠斜"

// Client cleans pages through the docleaner HTTP API. The protocol is
// two calls: upload the image, then trigger the filters against the
// returned store path and decode the base64 result.
type Client struct {
	baseURL    string
	filters    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultServiceURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		filters: DefaultFilters,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// uploadResponse is the body of POST /attachCollect/upload.
type uploadResponse struct {
	Data struct {
		StorePath string `json:"storePath"`
	} `json:"data"`
}

// execResponse is the body of POST /exe/daqw.
type execResponse struct {
	Data struct {
		OutFileStr string `json:"outFileStr"`
	} `json:"data"`
}

func (c *Client) Clean(ctx context.Context, img page.RawImage) (page.RawImage, error) {
	storePath, err := c.upload(ctx, img)
	if err != nil {
		return page.RawImage{}, err
	}
	data, err := c.exec(ctx, storePath)
	if err != nil {
		return page.RawImage{}, err
	}
	return page.RawImage{Data: data, Format: img.Format}, nil
}

func (c *Client) upload(ctx context.Context, img page.RawImage) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "image."+img.Format)
	if err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if _, err := fw.Write(img.Data); err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/attachCollect/upload", &body)
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: upload: %v", ErrService, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("%w: upload: status %d: %s", ErrService, resp.StatusCode, respBody)
	}

	var up uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&up); err != nil {
		return "", fmt.Errorf("%w: decode upload response: %v", ErrService, err)
	}
	if up.Data.StorePath == "" {
		return "", fmt.Errorf("%w: upload response has no storePath", ErrService)
	}
	return up.Data.StorePath, nil
}

func (c *Client) exec(ctx context.Context, storePath string) ([]byte, error) {
	form := url.Values{
		// "paramers" is a typo in the remote API, kept verbatim.
		"paramers":  {c.filters},
		"type":      {"image"},
		"storePath": {storePath},
		"userId":    {""},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/exe/daqw", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create exec request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: exec: %v", ErrService, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: exec: status %d: %s", ErrService, resp.StatusCode, respBody)
	}

	var ex execResponse
	if err := json.NewDecoder(resp.Body).Decode(&ex); err != nil {
		return nil, fmt.Errorf("%w: decode exec response: %v", ErrService, err)
	}
	data, err := base64.StdEncoding.DecodeString(ex.Data.OutFileStr)
	if err != nil {
		return nil, fmt.Errorf("%w: decode cleaned image: %v", ErrService, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: exec response has no image data", ErrService)
	}
	return data, nil
}
