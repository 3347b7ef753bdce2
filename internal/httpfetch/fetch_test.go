package httpfetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFetchReturnsBodyAndContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("pngdata"))
	}))
	defer srv.Close()

	res, err := NewClient(Options{}).Fetch(context.Background(), srv.URL+"/a.png")
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if string(res.Data) != "pngdata" || res.ContentType != "image/png" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestFetchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.Error(w, "nope", http.StatusNotFound)
		case "/big":
			_, _ = w.Write([]byte(strings.Repeat("x", 64)))
		case "/slow":
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte("late"))
		}
	}))
	defer srv.Close()

	client := NewClient(Options{MaxBytes: 16, Timeout: 50 * time.Millisecond})

	if _, err := client.Fetch(context.Background(), srv.URL+"/missing"); err == nil || !strings.Contains(err.Error(), "status 404") {
		t.Fatalf("expected 404 error, got %v", err)
	}
	if _, err := client.Fetch(context.Background(), srv.URL+"/big"); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if _, err := client.Fetch(context.Background(), srv.URL+"/slow"); err == nil {
		t.Fatal("expected timeout error")
	}
	if _, err := client.Fetch(context.Background(), "ftp://example.com/a.png"); err == nil {
		t.Fatal("expected unsupported scheme error")
	}
}
