// Package httpx abstracts the health/status listener over two engines
// (net/http and fasthttp) behind one handler signature, so the engine
// is a config choice.
package httpx

import (
	"context"
	"io"
	"net/http"
)

// Request is the unified request representation used by handlers.
type Request struct {
	Ctx        context.Context
	Method     string
	Path       string
	Header     http.Header
	Body       io.ReadCloser
	RemoteAddr string
}

// ResponseWriter is the subset of http.ResponseWriter semantics the
// adapters provide.
type ResponseWriter interface {
	Header() http.Header
	Write([]byte) (int, error)
	WriteHeader(status int)
}

// HandlerFunc is the engine-independent handler signature.
type HandlerFunc func(w ResponseWriter, r *Request)
