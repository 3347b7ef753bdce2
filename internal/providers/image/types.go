package image

import (
	"context"
	"strings"
)

// Detail levels accepted by providers that expose a quality knob.
const (
	DetailLow    = "low"
	DetailMedium = "medium"
	DetailHigh   = "high"
)

// SourceImage is the coloring page being remixed.
type SourceImage struct {
	URL  string
	MIME string
	Data []byte
}

// GenerateRequest describes a normalized request passed to any image provider.
type GenerateRequest struct {
	Prompt    string
	Source    SourceImage
	Detail    string
	RequestID string
}

// Asset represents a generated image. Providers return either Data or a
// hosted URL.
type Asset struct {
	URL    string
	Format string
	Width  int
	Height int
	Data   []byte
}

// Generator is the contract implemented by all image providers.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Asset, error)
}

// NormalizeDetail maps free-form input onto a supported detail level.
func NormalizeDetail(detail string) string {
	switch strings.ToLower(strings.TrimSpace(detail)) {
	case DetailLow:
		return DetailLow
	case DetailHigh, "hd":
		return DetailHigh
	case "":
		return ""
	default:
		return DetailMedium
	}
}
