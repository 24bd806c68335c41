package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/scatterstore/scatterstore/internal/backend"
	"github.com/scatterstore/scatterstore/internal/dbbackend"
	"github.com/scatterstore/scatterstore/internal/frontend"
	"github.com/scatterstore/scatterstore/internal/fsbackend"
)

func newStatelessServer(t *testing.T) *Server {
	t.Helper()
	fs := fsbackend.New(fsbackend.Config{Root: t.TempDir()})
	if _, err := fs.Init(context.Background()).Wait(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	fe := frontend.NewStateless([]backend.Backend{fs})
	if _, err := fe.Init(context.Background()).Wait(context.Background()); err != nil {
		t.Fatalf("frontend Init: %v", err)
	}
	srv, err := New(fe)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv
}

func newStatefulServer(t *testing.T) *Server {
	t.Helper()
	fs := fsbackend.New(fsbackend.Config{Root: t.TempDir()})
	if _, err := fs.Init(context.Background()).Wait(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	fe, err := frontend.NewStateful([]backend.Backend{fs}, []string{"fs_1"}, dbbackend.IndexConfig{Path: filepath.Join(t.TempDir(), "index.db")})
	if err != nil {
		t.Fatalf("NewStateful: %v", err)
	}
	if _, err := fe.Init(context.Background()).Wait(context.Background()); err != nil {
		t.Fatalf("frontend Init: %v", err)
	}
	srv, err := New(fe)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	srv := newStatelessServer(t)

	data := base64.StdEncoding.EncodeToString([]byte("hello world"))
	body, _ := json.Marshal(writeRequest{ID: "obj-1", Data: data})
	req := httptest.NewRequest(http.MethodPost, "/v1/blobs", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("write status = %d, body = %s", rec.Code, rec.Body.String())
	}

	readReq := httptest.NewRequest(http.MethodGet, "/v1/blobs/obj-1", nil)
	readRec := httptest.NewRecorder()
	srv.router.ServeHTTP(readRec, readReq)
	if readRec.Code != http.StatusOK {
		t.Fatalf("read status = %d, body = %s", readRec.Code, readRec.Body.String())
	}

	var resp readResponse
	if err := json.Unmarshal(readRec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	decoded, err := base64.StdEncoding.DecodeString(resp.Data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(decoded) != "hello world" {
		t.Errorf("data = %q, want %q", decoded, "hello world")
	}
}

func TestWriteRejectsNonJSONContentType(t *testing.T) {
	srv := newStatelessServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/blobs", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnsupportedMediaType)
	}
}

func TestWriteRejectsMalformedBase64(t *testing.T) {
	srv := newStatelessServer(t)

	body, _ := json.Marshal(writeRequest{ID: "obj-1", Data: "not-valid-base64!!"})
	req := httptest.NewRequest(http.MethodPost, "/v1/blobs", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d, body = %s", rec.Code, http.StatusUnprocessableEntity, rec.Body.String())
	}
}

func TestWriteRejectsDuplicateID(t *testing.T) {
	srv := newStatelessServer(t)

	body, _ := json.Marshal(writeRequest{ID: "dup", Data: base64.StdEncoding.EncodeToString([]byte("x"))})
	req := httptest.NewRequest(http.MethodPost, "/v1/blobs", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first write status = %d", rec.Code)
	}

	req2 := httptest.NewRequest(http.MethodPost, "/v1/blobs", strings.NewReader(string(body)))
	req2.Header.Set("Content-Type", "application/json")
	rec2 := httptest.NewRecorder()
	srv.router.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusUnprocessableEntity {
		t.Errorf("second write status = %d, want %d", rec2.Code, http.StatusUnprocessableEntity)
	}
}

func TestReadReturnsNotFoundForAbsentID(t *testing.T) {
	srv := newStatelessServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/blobs/missing", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestStatefulReadEnforcesBearer(t *testing.T) {
	srv := newStatefulServer(t)

	body, _ := json.Marshal(writeRequest{ID: "secret", Data: base64.StdEncoding.EncodeToString([]byte("shh"))})
	req := httptest.NewRequest(http.MethodPost, "/v1/blobs", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer tok-A")
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("write status = %d, body = %s", rec.Code, rec.Body.String())
	}

	wrongReq := httptest.NewRequest(http.MethodGet, "/v1/blobs/secret", nil)
	wrongReq.Header.Set("Authorization", "Bearer tok-B")
	wrongRec := httptest.NewRecorder()
	srv.router.ServeHTTP(wrongRec, wrongReq)
	if wrongRec.Code != http.StatusUnauthorized {
		t.Errorf("wrong bearer status = %d, want %d", wrongRec.Code, http.StatusUnauthorized)
	}

	rightReq := httptest.NewRequest(http.MethodGet, "/v1/blobs/secret", nil)
	rightReq.Header.Set("Authorization", "Bearer tok-A")
	rightRec := httptest.NewRecorder()
	srv.router.ServeHTTP(rightRec, rightReq)
	if rightRec.Code != http.StatusOK {
		t.Errorf("correct bearer status = %d, want %d", rightRec.Code, http.StatusOK)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newStatelessServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
