// Package s3backend implements the S3-compatible object-store backend.
// Every request is signed with internal/sigv4 rather than delegated to
// aws-sdk-go-v2 the way the teacher's internal/storage/aws.go does —
// spec's home-grown signer is a first-class deliverable here, so the SDK
// is deliberately not used. XML metadata parsing follows the spirit of
// the teacher's internal/xmlutil package.
package s3backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/scatterstore/scatterstore/internal/backend"
	"github.com/scatterstore/scatterstore/internal/errors"
	"github.com/scatterstore/scatterstore/internal/promise"
	"github.com/scatterstore/scatterstore/internal/sigv4"
	"github.com/scatterstore/scatterstore/internal/xmlutil"
)

// Config recognizes the S3 backend option table from spec §6: host,
// bucket, access_key, secret_key, timeout.
type Config struct {
	Host      string
	Bucket    string
	AccessKey string
	SecretKey string
	Timeout   time.Duration
}

// S3 is a backend.Backend fronting an S3-compatible object store over
// raw, self-signed HTTP requests.
type S3 struct {
	cfg    Config
	client *http.Client

	mu    sync.RWMutex
	ready *promise.Promise[bool]
}

var _ backend.Backend = (*S3)(nil)

// New constructs an S3 backend that has not yet been initialized;
// callers must call Init before using it.
func New(cfg Config) *S3 {
	return &S3{cfg: cfg, ready: promise.New[bool]()}
}

func (s *S3) IsReady() *promise.Promise[bool] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Init builds the HTTP client. There is no remote handshake: the object
// store is assumed reachable until a request proves otherwise.
func (s *S3) Init(ctx context.Context) *promise.Promise[bool] {
	fresh := promise.New[bool]()
	s.mu.Lock()
	s.ready = fresh
	s.client = &http.Client{}
	s.mu.Unlock()

	fresh.Resolve(true)
	return fresh
}

// Backup is a no-op: the remote object store is inherently durable.
func (s *S3) Backup(ctx context.Context) *promise.Promise[bool] {
	return promise.Resolve(true)
}

func (s *S3) Close(ctx context.Context) *promise.Promise[bool] {
	s.mu.Lock()
	closed := errors.Frontend("backend closed", nil)
	if !s.ready.Reject(closed) {
		s.ready = promise.Reject[bool](closed)
	}
	s.mu.Unlock()
	return promise.Resolve(true)
}

// IsOnline probes the bucket root with HEAD and never rejects: any
// failure, including a timeout, reports the absent latency value.
func (s *S3) IsOnline(ctx context.Context) *promise.Promise[*int64] {
	start := time.Now()
	resp := s.issue(ctx, http.MethodHead, "/"+s.cfg.Bucket, "", []byte{})
	return promise.ThenCatch(resp,
		func(r *http.Response) (*int64, error) {
			r.Body.Close()
			latency := time.Since(start).Milliseconds()
			return &latency, nil
		},
		func(err error) (*int64, error) {
			return nil, nil
		},
	)
}

func (s *S3) GetObjectMetadata(ctx context.Context, id string) *promise.Promise[backend.ObjectMetadata] {
	return promise.Then(s.issue(ctx, http.MethodGet, s.objectPath(id), "attributes=", []byte{}),
		func(resp *http.Response) (backend.ObjectMetadata, error) {
			defer resp.Body.Close()
			if isAbsentStatus(resp.StatusCode) {
				return backend.ObjectMetadata{}, errors.Backend(fmt.Sprintf("object %q not found", id), nil)
			}
			if !is2xx(resp.StatusCode) {
				return backend.ObjectMetadata{}, unexpectedStatus(resp.StatusCode, id)
			}
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return backend.ObjectMetadata{}, errors.Backend("reading response body", err)
			}
			size, err := xmlutil.ParseObjectAttributes(body)
			if err != nil {
				return backend.ObjectMetadata{}, errors.Backend("parsing object attributes", err)
			}
			var createdAt int64
			if lm := resp.Header.Get("Last-Modified"); lm != "" {
				if t, err := http.ParseTime(lm); err == nil {
					createdAt = t.UnixMilli()
				}
			}
			return backend.ObjectMetadata{ID: id, Size: size, CreatedAt: createdAt}, nil
		})
}

func (s *S3) ApproveObjectMetadata(ctx context.Context, id string, size int64) *promise.Promise[bool] {
	return promise.Then(s.issue(ctx, http.MethodHead, s.objectPath(id), "", []byte{}),
		func(resp *http.Response) (bool, error) {
			defer resp.Body.Close()
			if isAbsentStatus(resp.StatusCode) {
				return true, nil
			}
			if is2xx(resp.StatusCode) {
				return false, errors.Backend(fmt.Sprintf("object %q already exists", id), nil)
			}
			return false, unexpectedStatus(resp.StatusCode, id)
		})
}

func (s *S3) GetObject(ctx context.Context, id string) *promise.Promise[[]byte] {
	return promise.Then(s.issue(ctx, http.MethodGet, s.objectPath(id), "", []byte{}),
		func(resp *http.Response) ([]byte, error) {
			defer resp.Body.Close()
			if isAbsentStatus(resp.StatusCode) {
				return nil, errors.Backend(fmt.Sprintf("object %q not found", id), nil)
			}
			if !is2xx(resp.StatusCode) {
				return nil, unexpectedStatus(resp.StatusCode, id)
			}
			return io.ReadAll(resp.Body)
		})
}

// SetObject issues a PUT, then re-reads metadata to obtain the
// committed created_at, exactly per spec's §4.7 write-then-re-read
// contract.
func (s *S3) SetObject(ctx context.Context, id string, data []byte) *promise.Promise[backend.ObjectMetadata] {
	put := promise.Then(s.issue(ctx, http.MethodPut, s.objectPath(id), "", data),
		func(resp *http.Response) (bool, error) {
			defer resp.Body.Close()
			if !is2xx(resp.StatusCode) {
				return false, unexpectedStatus(resp.StatusCode, id)
			}
			return true, nil
		})
	return promise.ThenCompose(put, func(bool) (*promise.Promise[backend.ObjectMetadata], error) {
		return s.GetObjectMetadata(ctx, id), nil
	})
}

func (s *S3) DelObject(ctx context.Context, id string) *promise.Promise[bool] {
	return promise.Then(s.issue(ctx, http.MethodDelete, s.objectPath(id), "", []byte{}),
		func(resp *http.Response) (bool, error) {
			defer resp.Body.Close()
			return resp.StatusCode == http.StatusNoContent, nil
		})
}

func (s *S3) objectPath(id string) string {
	return "/" + s.cfg.Bucket + "/" + id
}

func isAbsentStatus(code int) bool {
	return code == http.StatusNotFound || code == http.StatusForbidden
}

func is2xx(code int) bool {
	return code >= 200 && code < 300
}

func unexpectedStatus(code int, id string) error {
	return errors.Backend(fmt.Sprintf("unexpected status %d for object %q", code, id), nil)
}

// issue signs and dispatches an HTTP request, racing it against a
// timeout promise so a hung socket fails deterministically rather than
// blocking the caller forever.
func (s *S3) issue(ctx context.Context, method, pathname, query string, body []byte) *promise.Promise[*http.Response] {
	request := promise.New[*http.Response]()

	go func() {
		headers := sigv4.Sign(s.cfg.Host, pathname, sigv4.Config{
			AccessKey: s.cfg.AccessKey,
			SecretKey: s.cfg.SecretKey,
			Method:    method,
			Query:     query,
			Payload:   body,
		})

		url := "https://" + s.cfg.Host + pathname
		if query != "" {
			url += "?" + query
		}

		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			request.Reject(errors.Backend(fmt.Sprintf("building request to %s", s.cfg.Host), err))
			return
		}
		for k, v := range headers {
			if k == "host" {
				continue
			}
			req.Header.Set(k, v)
		}
		req.Host = s.cfg.Host

		resp, err := s.httpClient().Do(req)
		if err != nil {
			request.Reject(errors.Backend(fmt.Sprintf("request to %s failed", s.cfg.Host), err))
			return
		}
		request.Resolve(resp)
	}()

	if s.cfg.Timeout <= 0 {
		return request
	}

	timeout := s.cfg.Timeout
	bound := promise.Timeout[*http.Response](nil, &timeout, nil, errors.Timeout(fmt.Sprintf("request to %s timed out", s.cfg.Host)))
	return promise.Race([]*promise.Promise[*http.Response]{request, bound})
}

func (s *S3) httpClient() *http.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return http.DefaultClient
	}
	return s.client
}
