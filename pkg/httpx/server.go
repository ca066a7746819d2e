package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
)

// Server runs a HandlerFunc on the engine selected by config
// ("nethttp" or "fasthttp").
type Server struct {
	engine string
	addr   string
	net    *http.Server
	fast   *fasthttp.Server
}

func NewServer(engine, addr string, h HandlerFunc) *Server {
	s := &Server{engine: engine, addr: addr}
	switch engine {
	case "fasthttp":
		s.fast = &fasthttp.Server{
			Handler:            FastHTTPAdapter(h),
			Name:               "relayd",
			ReadTimeout:        5 * time.Second,
			WriteTimeout:       5 * time.Second,
			MaxRequestBodySize: 1 << 20,
		}
	default:
		s.net = &http.Server{
			Addr:         addr,
			Handler:      NetHTTPAdapter(h),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		}
	}
	return s
}

func (s *Server) ListenAndServe() error {
	if s.fast != nil {
		return s.fast.ListenAndServe(s.addr)
	}
	return s.net.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.fast != nil {
		return s.fast.ShutdownWithContext(ctx)
	}
	return s.net.Shutdown(ctx)
}
