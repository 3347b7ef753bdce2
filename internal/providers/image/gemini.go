package image

import (
	"context"

	"coloringbook/internal/providers/genai"
)

type GeminiGenerator struct {
	client *genai.Client
}

func NewGeminiGenerator(client *genai.Client) *GeminiGenerator {
	return &GeminiGenerator{client: client}
}

func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) (*Asset, error) {
	asset, err := g.client.RemixImage(ctx, genai.ImageRequest{
		Prompt:     req.Prompt,
		Source:     req.Source.Data,
		SourceMIME: req.Source.MIME,
		RequestID:  req.RequestID,
	})
	if err != nil {
		return nil, err
	}
	return &Asset{
		URL:    asset.URL,
		Format: asset.Format,
		Width:  asset.Width,
		Height: asset.Height,
		Data:   asset.Data,
	}, nil
}

var _ Generator = (*GeminiGenerator)(nil)
