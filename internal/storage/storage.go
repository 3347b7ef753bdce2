package storage

import (
	"context"
	"path"
	"strings"
)

// Store is durable blob storage for generated images and photobook PDFs.
type Store interface {
	// Upload writes data under key and returns the canonical key.
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// PublicURL returns the download url for a canonical key.
	PublicURL(key string) string
}

func joinURL(base, key string) string {
	base = strings.TrimRight(base, "/")
	key = strings.TrimLeft(key, "/")
	if base == "" {
		return "/" + key
	}
	return base + "/" + key
}

// ExtensionForMIME maps the content types we store to file extensions.
func ExtensionForMIME(mime string) string {
	switch strings.ToLower(strings.TrimSpace(strings.Split(mime, ";")[0])) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "application/pdf":
		return ".pdf"
	default:
		return ""
	}
}

// EnsureExtension appends the extension for mime when key has none.
func EnsureExtension(key, mime string) string {
	if key == "" {
		return key
	}
	expected := ExtensionForMIME(mime)
	if expected == "" || path.Ext(key) != "" {
		return key
	}
	return key + expected
}
