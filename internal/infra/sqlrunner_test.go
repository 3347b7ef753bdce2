package infra

import (
	"context"
	"errors"
	"testing"
)

func TestExtractMarker(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantMarker string
		wantBody   string
		wantErr    bool
	}{
		{
			name:       "valid marker",
			query:      "--sql 4f55a9b7-4e9f-4e45-a3b3-5a532d21d9db\nselect 1;",
			wantMarker: "4f55a9b7-4e9f-4e45-a3b3-5a532d21d9db",
			wantBody:   "select 1;",
		},
		{
			name:       "leading whitespace tolerated",
			query:      "\n  --sql 4f55a9b7-4e9f-4e45-a3b3-5a532d21d9db\nselect 1;\n",
			wantMarker: "4f55a9b7-4e9f-4e45-a3b3-5a532d21d9db",
			wantBody:   "select 1;",
		},
		{
			name:    "missing marker",
			query:   "select 1;",
			wantErr: true,
		},
		{
			name:    "uppercase uuid rejected",
			query:   "--sql 4F55A9B7-4E9F-4E45-A3B3-5A532D21D9DB\nselect 1;",
			wantErr: true,
		},
		{
			name:    "empty",
			query:   "   ",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			marker, body, err := extractMarker(tc.query)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got marker %q", marker)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if marker != tc.wantMarker {
				t.Fatalf("marker = %q, want %q", marker, tc.wantMarker)
			}
			if body != tc.wantBody {
				t.Fatalf("body = %q, want %q", body, tc.wantBody)
			}
		})
	}
}

func TestSQLRunnerRejectsUnmarkedQueriesBeforeTouchingPool(t *testing.T) {
	runner := NewSQLRunner(nil, NopLogger())

	if _, err := runner.Exec(context.Background(), "select 1"); !errors.Is(err, ErrMissingMarker) {
		t.Fatalf("Exec error = %v, want ErrMissingMarker", err)
	}
	if _, err := runner.Query(context.Background(), "select 1"); !errors.Is(err, ErrMissingMarker) {
		t.Fatalf("Query error = %v, want ErrMissingMarker", err)
	}
	var n int
	if err := runner.QueryRow(context.Background(), "select 1").Scan(&n); !errors.Is(err, ErrMissingMarker) {
		t.Fatalf("QueryRow error = %v, want ErrMissingMarker", err)
	}
}
