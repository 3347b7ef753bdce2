package image

import (
	"context"

	"coloringbook/internal/providers/openai"
)

type OpenAIGenerator struct {
	client *openai.Client
}

func NewOpenAIGenerator(client *openai.Client) *OpenAIGenerator {
	return &OpenAIGenerator{client: client}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req GenerateRequest) (*Asset, error) {
	res, err := g.client.Edit(ctx, openai.EditRequest{
		Prompt:     req.Prompt,
		Source:     req.Source.Data,
		SourceMIME: req.Source.MIME,
		Quality:    NormalizeDetail(req.Detail),
	})
	if err != nil {
		return nil, err
	}
	return &Asset{Format: res.Format, Data: res.Data}, nil
}

var _ Generator = (*OpenAIGenerator)(nil)
