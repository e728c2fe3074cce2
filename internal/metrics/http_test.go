package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientRead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/metric" {
			t.Fatalf("path = %q, want /metric", r.URL.Path)
		}
		if got := r.URL.Query().Get("content"); got != "vid-1" {
			t.Fatalf("content = %q, want vid-1", got)
		}
		if got := r.URL.Query().Get("metric"); got != "views" {
			t.Fatalf("metric = %q, want views", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value": 1234.5}`))
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), srv.URL)
	value, err := client.Read(context.Background(), "vid-1", "views")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if value != 1234.5 {
		t.Fatalf("value = %v, want 1234.5", value)
	}
}

func TestClientReadErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "content not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), srv.URL)
	_, err := client.Read(context.Background(), "vid-1", "views")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("got %v, want APIError", err)
	}
	if apiErr.Status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", apiErr.Status)
	}
}

func TestClientReadRequiresParams(t *testing.T) {
	client := NewClient(http.DefaultClient, "http://localhost:0")
	if _, err := client.Read(context.Background(), "", "views"); err == nil {
		t.Fatal("expected error for empty content ref")
	}
	if _, err := client.Read(context.Background(), "vid-1", ""); err == nil {
		t.Fatal("expected error for empty metric type")
	}
}
