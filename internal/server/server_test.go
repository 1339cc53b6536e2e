package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestServerNotFound(t *testing.T) {
	srv := New("127.0.0.1", 0, nil, "dev")

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	var body errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "NOT_FOUND" {
		t.Fatalf("error code = %q, want NOT_FOUND", body.Error.Code)
	}
}

func TestServerMethodNotAllowed(t *testing.T) {
	srv := New("127.0.0.1", 0, nil, "dev")

	req := httptest.NewRequest(http.MethodPost, "/version", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}

	var body errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "METHOD_NOT_ALLOWED" {
		t.Fatalf("error code = %q, want METHOD_NOT_ALLOWED", body.Error.Code)
	}
}

func TestServerPort(t *testing.T) {
	tests := []int{8080, 9000, 0}
	for _, port := range tests {
		srv := New("127.0.0.1", port, nil, "dev")
		if srv.Port() != port {
			t.Errorf("Port() = %d, want %d", srv.Port(), port)
		}
	}
}

func TestServerRoutesRegistered(t *testing.T) {
	srv := New("127.0.0.1", 0, nil, "1.2.3")

	endpoints := []struct {
		path string
		want int
	}{
		{"/healthz", http.StatusOK},
		{"/version", http.StatusOK},
		{"/status", http.StatusServiceUnavailable}, // no project opened
	}

	for _, ep := range endpoints {
		req := httptest.NewRequest(http.MethodGet, ep.path, nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if rec.Code != ep.want {
			t.Errorf("GET %s = %d, want %d", ep.path, rec.Code, ep.want)
		}
	}
}

func TestServerVersionBody(t *testing.T) {
	srv := New("127.0.0.1", 0, nil, "1.2.3")

	req := httptest.NewRequest(http.MethodGet, "/version", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["version"] != "1.2.3" {
		t.Fatalf("version = %q, want 1.2.3", body["version"])
	}
}
