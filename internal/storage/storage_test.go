package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{key: "photobooks/u/j.pdf", want: "photobooks/u/j.pdf"},
		{key: "/leading/slash.png", want: "leading/slash.png"},
		{key: `windows\style\key.png`, want: "windows/style/key.png"},
		{key: "a/../b.png", want: "b.png"},
		{key: "../escape.png", wantErr: true},
		{key: "..", wantErr: true},
		{key: "  ", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			got, err := sanitizeKey(tc.key)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("sanitizeKey(%q) = %q, want %q", tc.key, got, tc.want)
			}
		})
	}
}

func TestFileStoreUpload(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, "http://localhost:8080/static/")
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}

	key, err := store.Upload(context.Background(), "photobooks/user-1/job-1", []byte("%PDF-1.3"), "application/pdf")
	if err != nil {
		t.Fatalf("Upload error: %v", err)
	}
	if key != "photobooks/user-1/job-1.pdf" {
		t.Fatalf("key = %q", key)
	}
	data, err := os.ReadFile(filepath.Join(dir, "photobooks", "user-1", "job-1.pdf"))
	if err != nil || string(data) != "%PDF-1.3" {
		t.Fatalf("stored file = %q, %v", data, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "photobooks", "user-1", "job-1.pdf.tmp")); !os.IsNotExist(err) {
		t.Fatal("temporary file should be renamed away")
	}
	if got := store.PublicURL(key); got != "http://localhost:8080/static/photobooks/user-1/job-1.pdf" {
		t.Fatalf("PublicURL = %q", got)
	}
}

func TestFileStoreUploadHonorsContext(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Upload(ctx, "a.png", []byte{1}, "image/png"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Upload error = %v, want context.Canceled", err)
	}
}

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	f.body, _ = io.ReadAll(params.Body)
	return &s3.PutObjectOutput{}, f.err
}

func TestS3StoreUpload(t *testing.T) {
	putter := &fakePutter{}
	store := &S3Store{client: putter, bucket: "books", publicURL: "https://cdn.example.com"}

	key, err := store.Upload(context.Background(), "remix/job-1/01", []byte("png"), "image/png")
	if err != nil {
		t.Fatalf("Upload error: %v", err)
	}
	if key != "remix/job-1/01.png" {
		t.Fatalf("key = %q", key)
	}
	if *putter.input.Bucket != "books" || *putter.input.Key != key || *putter.input.ContentType != "image/png" {
		t.Fatalf("unexpected input: %+v", putter.input)
	}
	if string(putter.body) != "png" {
		t.Fatalf("body = %q", putter.body)
	}
	if got := store.PublicURL(key); got != "https://cdn.example.com/remix/job-1/01.png" {
		t.Fatalf("PublicURL = %q", got)
	}

	putter.err = errors.New("denied")
	if _, err := store.Upload(context.Background(), "x.png", nil, "image/png"); err == nil {
		t.Fatal("expected upload error")
	}
}

func TestEnsureExtension(t *testing.T) {
	if got := EnsureExtension("a/b", "image/jpeg"); got != "a/b.jpg" {
		t.Fatalf("got %q", got)
	}
	if got := EnsureExtension("a/b.png", "image/jpeg"); got != "a/b.png" {
		t.Fatalf("got %q", got)
	}
	if got := EnsureExtension("a/b", "application/octet-stream"); got != "a/b" {
		t.Fatalf("got %q", got)
	}
}
