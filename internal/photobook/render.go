package photobook

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	pageMargin    = 15.0
	captionHeight = 10.0
	fontFamily    = "Helvetica"
)

var (
	errUnsupportedImage = errors.New("unsupported image format")
	errDocument         = errors.New("pdf document broken")
)

// document is an A4 portrait photobook under construction.
type document struct {
	pdf   *fpdf.Fpdf
	tr    func(string) string
	seq   int
	pages int
}

func newDocument(title, description string, l labels, generatedAt time.Time, total int) *document {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(false, pageMargin)
	pdf.SetTitle(title, true)
	pdf.SetCreator("ColoringBook.AI", true)

	d := &document{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	d.titlePage(title, description, l, generatedAt, total)
	return d
}

func (d *document) titlePage(title, description string, l labels, generatedAt time.Time, total int) {
	pdf := d.pdf
	pdf.AddPage()
	w, h := pdf.GetPageSize()
	contentW := w - 2*pageMargin

	pdf.SetY(h / 3)
	pdf.SetFont(fontFamily, "B", 28)
	pdf.MultiCell(contentW, 12, d.tr(title), "", "C", false)
	if description != "" {
		pdf.Ln(4)
		pdf.SetFont(fontFamily, "", 14)
		pdf.MultiCell(contentW, 7, d.tr(description), "", "C", false)
	}

	pdf.Ln(10)
	pdf.SetFont(fontFamily, "I", 11)
	pdf.SetTextColor(90, 90, 90)
	pdf.CellFormat(contentW, 6, d.tr(l.generatedLabel(generatedAt)), "", 1, "C", false, 0, "")
	pdf.CellFormat(contentW, 6, d.tr(l.pageCountLabel(total)), "", 1, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}

// addImage appends one page with data centered and scaled to fit above the
// caption. Nothing is added when the image cannot be embedded. A failure
// after the page exists is reported as errDocument.
func (d *document) addImage(data []byte, caption string) error {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	imageType, ok := map[string]string{"png": "PNG", "jpeg": "JPG", "gif": "GIF"}[format]
	if !ok {
		return fmt.Errorf("%w: %s", errUnsupportedImage, format)
	}

	info, name, err := d.register(imageType, data)
	if err != nil {
		// fpdf rejects interlaced and 16-bit PNGs; retry as a plain 8-bit PNG
		flat, ferr := flattenPNG(data)
		if ferr != nil {
			return err
		}
		if info, name, err = d.register("PNG", flat); err != nil {
			return err
		}
		imageType = "PNG"
	}

	pdf := d.pdf
	w, h := pdf.GetPageSize()
	availW := w - 2*pageMargin
	availH := h - 2*pageMargin - captionHeight
	iw, ih := info.Width(), info.Height()
	if iw <= 0 || ih <= 0 {
		return fmt.Errorf("image %s has no size", name)
	}
	scale := min(availW/iw, availH/ih)
	dw, dh := iw*scale, ih*scale
	x := (w - dw) / 2
	y := pageMargin + (availH-dh)/2
	text := d.tr(caption)

	pdf.AddPage()
	pdf.ImageOptions(name, x, y, dw, dh, false, fpdf.ImageOptions{ImageType: imageType}, 0, "")
	pdf.SetXY(pageMargin, h-pageMargin-captionHeight+2)
	pdf.SetFont(fontFamily, "", 11)
	pdf.CellFormat(availW, 8, text, "", 0, "C", false, 0, "")
	if !pdf.Ok() {
		return fmt.Errorf("%w: %v", errDocument, pdf.Error())
	}
	d.pages++
	return nil
}

func (d *document) register(imageType string, data []byte) (*fpdf.ImageInfoType, string, error) {
	d.seq++
	name := fmt.Sprintf("page-%03d", d.seq)
	info := d.pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: imageType}, bytes.NewReader(data))
	if !d.pdf.Ok() {
		err := d.pdf.Error()
		d.pdf.ClearError()
		return nil, "", err
	}
	if info == nil {
		return nil, "", fmt.Errorf("register image %s failed", name)
	}
	return info, name, nil
}

// PageCount includes the title page.
func (d *document) PageCount() int {
	return d.pdf.PageCount()
}

// Bytes renders the finished PDF.
func (d *document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func flattenPNG(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	dst := image.NewNRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// captionFor returns the display caption for a page. File-like names such as
// "sunny_beach-02.png" are turned into "Sunny Beach 02".
func captionFor(name, imageURL string, index int) string {
	name = strings.TrimSpace(name)
	if name == "" {
		if u, err := url.Parse(imageURL); err == nil {
			name = path.Base(u.Path)
		}
	}
	if name == "" || name == "." || name == "/" {
		return fmt.Sprintf("Page %d", index+1)
	}
	if !looksLikeFilename(name) {
		return name
	}
	name = strings.TrimSuffix(name, path.Ext(name))
	name = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(name)
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return fmt.Sprintf("Page %d", index+1)
	}
	return cases.Title(language.Und).String(name)
}

func looksLikeFilename(name string) bool {
	if strings.ContainsAny(name, " ") {
		return false
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return true
	}
	return strings.ContainsAny(name, "_-")
}
