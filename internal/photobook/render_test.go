package photobook

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestDocumentAddsOnePagePerImage(t *testing.T) {
	doc := newDocument("Farm Animals", "A short book", labelsFor("id", "en"), time.Date(2026, 3, 1, 8, 5, 0, 0, time.UTC), 3)

	if err := doc.addImage(testPNG(t, 60, 80), "Cow"); err != nil {
		t.Fatalf("addImage png: %v", err)
	}
	var jpg bytes.Buffer
	if err := jpeg.Encode(&jpg, image.NewGray(image.Rect(0, 0, 50, 20)), nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	if err := doc.addImage(jpg.Bytes(), "Horse"); err != nil {
		t.Fatalf("addImage jpeg: %v", err)
	}
	if err := doc.addImage([]byte("<svg/>"), "Broken"); err == nil {
		t.Fatal("expected error for undecodable image")
	}

	if doc.pages != 2 {
		t.Fatalf("image pages = %d, want 2", doc.pages)
	}
	if doc.PageCount() != 3 {
		t.Fatalf("pdf pages = %d, want 3 including the title page", doc.PageCount())
	}
	data, err := doc.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatal("output is not a pdf")
	}
}

func TestDocumentFlattensSixteenBitPNG(t *testing.T) {
	img := image.NewGray16(image.Rect(0, 0, 16, 16))
	img.SetGray16(3, 3, color.Gray16{Y: 0x1234})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	doc := newDocument("Book", "", labelsFor("en", ""), time.Now(), 1)
	if err := doc.addImage(buf.Bytes(), "Deep"); err != nil {
		t.Fatalf("addImage: %v", err)
	}
	if doc.pages != 1 {
		t.Fatalf("pages = %d", doc.pages)
	}
}

func TestCaptionFor(t *testing.T) {
	cases := []struct {
		name, url string
		index     int
		want      string
	}{
		{"sunny_beach-02.png", "", 0, "Sunny Beach 02"},
		{"My Cat", "", 0, "My Cat"},
		{"", "https://cdn.example.com/pages/happy_dragon.jpg?sig=1", 0, "Happy Dragon"},
		{"", "", 4, "Page 5"},
	}
	for _, tc := range cases {
		if got := captionFor(tc.name, tc.url, tc.index); got != tc.want {
			t.Fatalf("captionFor(%q, %q) = %q, want %q", tc.name, tc.url, got, tc.want)
		}
	}
}

func TestCaptionForConcurrentUse(t *testing.T) {
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				name := fmt.Sprintf("sleepy_cat-%d.png", i)
				want := fmt.Sprintf("Sleepy Cat %d", i)
				if got := captionFor(name, "", i); got != want {
					t.Errorf("captionFor(%q) = %q, want %q", name, got, want)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestLabels(t *testing.T) {
	at := time.Date(2026, 8, 17, 9, 30, 0, 0, time.UTC)
	id := labelsFor("id-ID", "en")
	if got := id.generatedLabel(at); got != "Dibuat pada 17 Agustus 2026, 09:30 UTC" {
		t.Fatalf("id label = %q", got)
	}
	if id.code() != "id" {
		t.Fatalf("code = %q", id.code())
	}
	en := labelsFor("", "en-US")
	if got := en.pageCountLabel(1200); !strings.Contains(got, "1,200") {
		t.Fatalf("en page count = %q", got)
	}
	if got := labelsFor("fr", "").code(); got != "en" {
		t.Fatalf("unsupported locale should fall back to en, got %q", got)
	}
}
