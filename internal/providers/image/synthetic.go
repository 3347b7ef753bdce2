package image

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"strconv"
)

// SyntheticGenerator renders deterministic line-art placeholders so local and
// CI environments can run the full pipeline without provider credentials.
type SyntheticGenerator struct {
	Width  int
	Height int
}

func NewSyntheticGenerator() *SyntheticGenerator {
	return &SyntheticGenerator{Width: 512, Height: 512}
}

func (g *SyntheticGenerator) Generate(ctx context.Context, req GenerateRequest) (*Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seed := deterministicSeed(req.RequestID, req.Prompt, len(req.Source.Data))
	data, err := renderLineArt(g.Width, g.Height, seed)
	if err != nil {
		return nil, fmt.Errorf("synthetic: encode png: %w", err)
	}
	return &Asset{Format: "image/png", Width: g.Width, Height: g.Height, Data: data}, nil
}

func renderLineArt(width, height int, seed string) ([]byte, error) {
	if width <= 0 {
		width = 512
	}
	if height <= 0 {
		height = 512
	}
	img := image.NewGray(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)

	ink := color.Gray{Y: 0}
	stroke := maxInt(2, width/128)
	strokeRect(img, 8, 8, width-9, height-9, stroke, ink)

	// a handful of outlined circles placed from the seed bytes
	for i := 0; i+3 < len(seed) && i < 12; i += 3 {
		cx := int(hexByte(seed[i:i+2])) * width / 256
		cy := int(hexByte(seed[i+1:i+3])) * height / 256
		r := 20 + int(hexByte(seed[i+2:i+4]))%(minInt(width, height)/5)
		strokeCircle(img, cx, cy, r, stroke, ink)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func strokeRect(img *image.Gray, x0, y0, x1, y1, stroke int, c color.Gray) {
	for s := 0; s < stroke; s++ {
		for x := x0; x <= x1; x++ {
			img.SetGray(x, y0+s, c)
			img.SetGray(x, y1-s, c)
		}
		for y := y0; y <= y1; y++ {
			img.SetGray(x0+s, y, c)
			img.SetGray(x1-s, y, c)
		}
	}
}

func strokeCircle(img *image.Gray, cx, cy, r, stroke int, c color.Gray) {
	steps := int(2 * math.Pi * float64(r+stroke))
	for s := 0; s < stroke; s++ {
		rr := float64(r - s)
		for i := 0; i < steps; i++ {
			a := 2 * math.Pi * float64(i) / float64(steps)
			img.SetGray(cx+int(math.Round(rr*math.Cos(a))), cy+int(math.Round(rr*math.Sin(a))), c)
		}
	}
}

func hexByte(s string) uint8 {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0
	}
	return uint8(v)
}

func deterministicSeed(parts ...any) string {
	hasher := sha256.New()
	for _, part := range parts {
		hasher.Write([]byte(fmt.Sprintf("%v", part)))
		hasher.Write([]byte{'|'})
	}
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

var _ Generator = (*SyntheticGenerator)(nil)
