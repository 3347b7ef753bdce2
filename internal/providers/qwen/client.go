// Package qwen calls the DashScope qwen-image-edit multimodal endpoint.
package qwen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://dashscope-intl.aliyuncs.com/api/v1"
	defaultModel   = "qwen-image-edit"
)

// Options configures Client.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// Client edits a hosted image by instruction. The API fetches the source
// itself, so only its URL is sent.
type Client struct {
	httpClient *http.Client
	baseURL    string
	model      string
	token      string
}

// EditRequest is a single image edit.
type EditRequest struct {
	ImageURL       string
	Instruction    string
	NegativePrompt string
	Seed           *int
}

type content struct {
	Image string `json:"image,omitempty"`
	Text  string `json:"text,omitempty"`
}

type message struct {
	Role    string    `json:"role"`
	Content []content `json:"content"`
}

type request struct {
	Model string `json:"model"`
	Input struct {
		Messages []message `json:"messages"`
	} `json:"input"`
	Parameters struct {
		NegativePrompt string `json:"negative_prompt,omitempty"`
		Watermark      bool   `json:"watermark"`
		Seed           *int   `json:"seed,omitempty"`
	} `json:"parameters"`
}

type response struct {
	Output struct {
		Choices []struct {
			Message message `json:"message"`
		} `json:"choices"`
	} `json:"output"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewClient(opts Options) (*Client, error) {
	token := strings.TrimSpace(opts.APIKey)
	if token == "" {
		return nil, errors.New("qwen api key is required")
	}
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	return &Client{httpClient: client, baseURL: base, model: model, token: token}, nil
}

func (c *Client) Model() string { return c.model }

// Edit returns the URL of the edited image hosted by DashScope.
func (c *Client) Edit(ctx context.Context, req EditRequest) (string, error) {
	imageURL := strings.TrimSpace(req.ImageURL)
	if imageURL == "" {
		return "", errors.New("qwen: image url is required")
	}

	var payload request
	payload.Model = c.model
	payload.Input.Messages = []message{{
		Role:    "user",
		Content: []content{{Image: imageURL}, {Text: req.Instruction}},
	}}
	payload.Parameters.NegativePrompt = strings.TrimSpace(req.NegativePrompt)
	payload.Parameters.Seed = req.Seed

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("qwen: encode request: %w", err)
	}
	endpoint := c.baseURL + "/services/aigc/multimodal-generation/generation"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("qwen: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("qwen: request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("qwen: read response: %w", err)
	}
	var out response
	decodeErr := json.Unmarshal(raw, &out)
	if resp.StatusCode >= http.StatusBadRequest {
		if decodeErr == nil && out.Message != "" {
			return "", fmt.Errorf("qwen: %s (%s)", out.Message, out.Code)
		}
		return "", fmt.Errorf("qwen: http %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("qwen: decode response: %w", decodeErr)
	}
	for _, choice := range out.Output.Choices {
		for _, part := range choice.Message.Content {
			if url := strings.TrimSpace(part.Image); url != "" {
				return url, nil
			}
		}
	}
	if out.Message != "" {
		return "", fmt.Errorf("qwen: %s (%s)", out.Message, out.Code)
	}
	return "", errors.New("qwen: response contained no image")
}
