// Package openai calls the OpenAI image edit endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

const defaultImageModel = "gpt-image-1"

// Options configures Client.
type Options struct {
	APIKey       string
	Model        string
	BaseURL      string
	Organization string
	HTTPClient   *http.Client
}

// Client edits images through /images/edits.
type Client struct {
	apiKey       string
	model        string
	baseURL      string
	organization string
	client       *http.Client
}

// EditRequest is a single image edit.
type EditRequest struct {
	Prompt     string
	Source     []byte
	SourceMIME string
	Size       string
	Quality    string
}

// EditResult is the decoded image returned by the API.
type EditResult struct {
	Data   []byte
	Format string
}

type imagesResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
		URL     string `json:"url"`
	} `json:"data"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultImageModel
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 180 * time.Second}
	}
	return &Client{
		apiKey:       strings.TrimSpace(opts.APIKey),
		model:        model,
		baseURL:      baseURL,
		organization: strings.TrimSpace(opts.Organization),
		client:       client,
	}, nil
}

func (c *Client) Model() string { return c.model }

// Edit uploads the source image with the prompt and returns the first result.
func (c *Client) Edit(ctx context.Context, req EditRequest) (*EditResult, error) {
	if len(req.Source) == 0 {
		return nil, errors.New("openai: source image is required")
	}
	body, contentType, err := c.buildMultipart(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/edits", body)
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", contentType)
	if c.organization != "" {
		httpReq.Header.Set("OpenAI-Organization", c.organization)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai: request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("openai status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("openai status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded imagesResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("openai: decode response: %w", err)
	}
	for _, item := range decoded.Data {
		if item.B64JSON == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(item.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("openai: decode image: %w", err)
		}
		return &EditResult{Data: data, Format: http.DetectContentType(data)}, nil
	}
	return nil, errors.New("openai: response contained no image")
}

func (c *Client) buildMultipart(req EditRequest) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := map[string]string{
		"model":  c.model,
		"prompt": req.Prompt,
		"n":      "1",
		"size":   firstNonEmpty(req.Size, "1024x1024"),
	}
	if req.Quality != "" {
		fields["quality"] = req.Quality
	}
	for _, key := range []string{"model", "prompt", "n", "size", "quality"} {
		value, ok := fields[key]
		if !ok {
			continue
		}
		if err := mw.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("openai: write field %s: %w", key, err)
		}
	}

	mime := firstNonEmpty(req.SourceMIME, http.DetectContentType(req.Source))
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="image"; filename="source`+extensionFor(mime)+`"`)
	header.Set("Content-Type", mime)
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("openai: create image part: %w", err)
	}
	if _, err := part.Write(req.Source); err != nil {
		return nil, "", fmt.Errorf("openai: write image part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("openai: close multipart: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

func extensionFor(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
