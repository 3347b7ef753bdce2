package image

import (
	"context"

	"coloringbook/internal/providers/qwen"
)

// QwenGenerator hands the source URL to DashScope, which fetches it directly.
type QwenGenerator struct {
	client *qwen.Client
}

func NewQwenGenerator(client *qwen.Client) *QwenGenerator {
	return &QwenGenerator{client: client}
}

func (g *QwenGenerator) Generate(ctx context.Context, req GenerateRequest) (*Asset, error) {
	url, err := g.client.Edit(ctx, qwen.EditRequest{
		ImageURL:       req.Source.URL,
		Instruction:    req.Prompt,
		NegativePrompt: "color, shading, gray fill, photorealism, text, watermark",
	})
	if err != nil {
		return nil, err
	}
	return &Asset{URL: url, Format: "image/png"}, nil
}

var _ Generator = (*QwenGenerator)(nil)
