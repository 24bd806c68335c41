// Package httpapi is the thin HTTP adapter in front of a frontend
// dispatcher. It holds no business logic beyond translating the two
// documented routes into Frontend calls and mapping the returned error
// kind to a status code. Grounded on internal/server/server.go's
// chi + huma wiring; the S3-specific route table there collapses here
// to two routes since the gateway's surface is far smaller.
package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scatterstore/scatterstore/internal/errors"
	"github.com/scatterstore/scatterstore/internal/frontend"
	"github.com/scatterstore/scatterstore/internal/metrics"
)

// frontendAdapter is the uniform, blocking shape httpapi dispatches
// against, hiding whether the underlying dispatcher is stateless (no
// bearer enforcement) or stateful.
type frontendAdapter interface {
	Write(ctx context.Context, payload frontend.Payload, bearer string) (int, error)
	Read(ctx context.Context, id string, bearer string) (*frontend.Object, error)
}

// statelessAdapter adapts *frontend.Stateless to frontendAdapter,
// ignoring the bearer argument since the stateless dispatcher has no
// notion of ownership.
type statelessAdapter struct{ fe *frontend.Stateless }

func (a statelessAdapter) Write(ctx context.Context, payload frontend.Payload, _ string) (int, error) {
	return a.fe.Write(ctx, payload, nil).Wait(ctx)
}

func (a statelessAdapter) Read(ctx context.Context, id string, _ string) (*frontend.Object, error) {
	return a.fe.Read(ctx, id, nil).Wait(ctx)
}

// statefulAdapter adapts *frontend.Stateful to frontendAdapter.
type statefulAdapter struct{ fe *frontend.Stateful }

func (a statefulAdapter) Write(ctx context.Context, payload frontend.Payload, bearer string) (int, error) {
	return a.fe.Write(ctx, payload, bearer).Wait(ctx)
}

func (a statefulAdapter) Read(ctx context.Context, id string, bearer string) (*frontend.Object, error) {
	return a.fe.Read(ctx, id, bearer).Wait(ctx)
}

func adaptFrontend(fe any) (frontendAdapter, error) {
	switch v := fe.(type) {
	case *frontend.Stateful:
		return statefulAdapter{v}, nil
	case *frontend.Stateless:
		return statelessAdapter{v}, nil
	default:
		return nil, fmt.Errorf("httpapi: unsupported frontend type %T", fe)
	}
}

// Server is the scatterstore HTTP server: a chi mux carrying the two
// gateway routes plus /health, /docs, /openapi and /metrics.
type Server struct {
	router     chi.Router
	api        huma.API
	frontend   frontendAdapter
	httpServer *http.Server
}

// HealthBody is the JSON body returned by the health check endpoint.
type HealthBody struct {
	Status string `json:"status" example:"ok" doc:"Health status"`
}

// HealthOutput is the Huma output struct for the health check endpoint.
type HealthOutput struct {
	Body HealthBody
}

// New builds a Server dispatching against fe, which must be either a
// *frontend.Stateless or a *frontend.Stateful.
func New(fe any) (*Server, error) {
	adapter, err := adaptFrontend(fe)
	if err != nil {
		return nil, err
	}

	router := chi.NewMux()
	humaConfig := huma.DefaultConfig("scatterstore API", "1.0.0")
	humaConfig.DocsPath = "/docs"
	humaConfig.OpenAPIPath = "/openapi"
	api := humachi.New(router, humaConfig)

	s := &Server{router: router, api: api, frontend: adapter}
	s.registerRoutes()
	return s, nil
}

// ListenAndServe starts the HTTP server on addr, blocking until Shutdown
// closes it.
func (s *Server) ListenAndServe(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server, waiting for in-flight
// requests within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"System"},
	}, func(ctx context.Context, input *struct{}) (*HealthOutput, error) {
		return &HealthOutput{Body: HealthBody{Status: "ok"}}, nil
	})

	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Post("/v1/blobs", s.handleWrite)
	s.router.Get("/v1/blobs/{id}", s.handleRead)
}

// writeRequest is the POST /v1/blobs JSON body.
type writeRequest struct {
	ID   string `json:"id"`
	Data string `json:"data"`
}

type writeResponse struct {
	Message string `json:"message"`
}

func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "application/json") {
		writeError(w, &httpError{status: http.StatusUnsupportedMediaType, message: "expected application/json"})
		return
	}

	var body writeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		metrics.WritesTotal.WithLabelValues(string(errors.KindClient)).Inc()
		writeError(w, errors.Client("malformed request body", err))
		return
	}
	if body.ID == "" {
		metrics.WritesTotal.WithLabelValues(string(errors.KindClient)).Inc()
		writeError(w, errors.Client("id is required", nil))
		return
	}

	bearer := bearerToken(r)
	_, err := s.frontend.Write(r.Context(), frontend.Payload{ID: body.ID, Data: body.Data}, bearer)
	if err != nil {
		metrics.WritesTotal.WithLabelValues(outcomeFor(err)).Inc()
		writeError(w, err)
		return
	}

	metrics.WritesTotal.WithLabelValues("ok").Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(writeResponse{Message: "stored"})
}

type readResponse struct {
	ID        string `json:"id"`
	Size      int64  `json:"size"`
	CreatedAt int64  `json:"created_at"`
	Data      string `json:"data"`
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	bearer := bearerToken(r)

	obj, err := s.frontend.Read(r.Context(), id, bearer)
	if err != nil {
		metrics.ReadsTotal.WithLabelValues(outcomeFor(err)).Inc()
		writeError(w, err)
		return
	}
	if obj == nil {
		metrics.ReadsTotal.WithLabelValues("absent").Inc()
		writeError(w, &httpError{status: http.StatusNotFound, message: fmt.Sprintf("object %q not found", id)})
		return
	}

	metrics.ReadsTotal.WithLabelValues("ok").Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(readResponse{
		ID:        obj.ID,
		Size:      obj.Size,
		CreatedAt: obj.CreatedAt,
		Data:      base64.StdEncoding.EncodeToString(obj.Data),
	})
}

// bearerToken parses the Authorization header as the substring after a
// leading "Bearer", whitespace trimmed. Anything not starting with
// "Bearer" is treated as no bearer.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer"))
}

type errorBody struct {
	Error string `json:"error"`
}

// httpError covers adapter-local conditions (404, 415) with no
// corresponding errors.Kind.
type httpError struct {
	status  int
	message string
}

func (e *httpError) Error() string { return e.message }

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch e := err.(type) {
	case *errors.Error:
		status = e.HTTPStatus
	case *httpError:
		status = e.status
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{Error: err.Error()})
}

func outcomeFor(err error) string {
	if e, ok := err.(*errors.Error); ok {
		return string(e.Kind)
	}
	return "error"
}
