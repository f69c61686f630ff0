package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"clipfinder/internal/storage"
)

type fakeChecker struct {
	exists bool
	err    error
}

func (f *fakeChecker) CollectionExists(_ context.Context, _ string) (bool, error) {
	return f.exists, f.err
}

func openHealthDB(t *testing.T) *HealthHandler {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return NewHealthHandler(db, &fakeChecker{exists: true}, "clips")
}

func TestHealthHandler_Healthy(t *testing.T) {
	h := openHealthDB(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Status != "healthy" || body.Checks["vector_store"] != "ok" || body.Checks["database"] != "ok" {
		t.Errorf("body = %+v, want all checks ok", body)
	}
}

func TestHealthHandler_VectorStoreDown(t *testing.T) {
	h := openHealthDB(t)
	h.vectorStore = &fakeChecker{err: errors.New("connection refused")}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var body HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Status != "unhealthy" || body.Checks["vector_store"] != "error" {
		t.Errorf("body = %+v, want vector_store error", body)
	}
}

func TestHealthHandler_MissingCollection(t *testing.T) {
	h := openHealthDB(t)
	h.vectorStore = &fakeChecker{exists: false}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
