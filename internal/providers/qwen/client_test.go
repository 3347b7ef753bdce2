package qwen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClientEdit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/services/aigc/multimodal-generation/generation" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", got)
		}
		var payload request
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if payload.Model != defaultModel || len(payload.Input.Messages) != 1 {
			t.Errorf("unexpected payload: %+v", payload)
		}
		parts := payload.Input.Messages[0].Content
		if len(parts) != 2 || parts[0].Image != "https://example.com/in.png" || parts[1].Text != "at the beach" {
			t.Errorf("unexpected content: %+v", parts)
		}
		_, _ = w.Write([]byte(`{"output":{"choices":[{"message":{"role":"assistant","content":[{"image":"https://dashscope.example.com/out.png"}]}}]}}`))
	}))
	defer ts.Close()

	client, err := NewClient(Options{APIKey: "test-key", BaseURL: ts.URL + "/"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	got, err := client.Edit(context.Background(), EditRequest{ImageURL: "https://example.com/in.png", Instruction: "at the beach"})
	if err != nil {
		t.Fatalf("Edit error: %v", err)
	}
	if got != "https://dashscope.example.com/out.png" {
		t.Fatalf("unexpected url: %s", got)
	}
}

func TestClientEditErrors(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"api error", http.StatusBadRequest, `{"code":"DataInspectionFailed","message":"input image is inappropriate"}`, "input image is inappropriate"},
		{"bare status", http.StatusBadGateway, `upstream down`, "http 502"},
		{"no image", http.StatusOK, `{"output":{"choices":[]}}`, "no image"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer ts.Close()

			client, _ := NewClient(Options{APIKey: "k", BaseURL: ts.URL})
			_, err := client.Edit(context.Background(), EditRequest{ImageURL: "https://example.com/in.png", Instruction: "x"})
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err = %v, want %q", err, tc.wantErr)
			}
		})
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(Options{}); err == nil {
		t.Fatal("expected error without api key")
	}
}
